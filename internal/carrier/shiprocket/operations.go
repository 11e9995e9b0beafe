package shiprocket

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RateQuote 快递公司报价
type RateQuote struct {
	CourierID             string   `json:"courier_id"`
	Name                  string   `json:"name"`
	Rate                  *float64 `json:"rate"`
	EstimatedDeliveryDays float64  `json:"estimated_delivery_days"`
	Rating                float64  `json:"rating"`
}

// RateQuery 报价查询参数
type RateQuery struct {
	PickupPostcode   string
	DeliveryPostcode string
	Weight           float64
	COD              bool
}

// Party 收发件人信息
type Party struct {
	Name       string
	Phone      string
	Email      string
	Address1   string
	Address2   string
	City       string
	State      string
	PostalCode string
	Country    string
}

// LineItem 运单商品
type LineItem struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Units        int     `json:"units"`
	SellingPrice float64 `json:"selling_price"`
}

// ShipmentRequest 建单参数
type ShipmentRequest struct {
	OrderNo   string
	OrderDate time.Time
	Customer  Party
	Items     []LineItem
	COD       bool
	SubTotal  float64
	Length    float64
	Breadth   float64
	Height    float64
	Weight    float64
}

// ShipmentResult 建单结果
type ShipmentResult struct {
	CarrierOrderID    string
	CarrierShipmentID string
	TrackingURL       string
	AWB               string
	CourierID         string
	CourierName       string
	FreightCharges    float64
	CODCharges        float64
}

// AWBResult AWB 分配结果，AWB 为空表示承运商暂未分配
type AWBResult struct {
	AWB         string
	CourierID   string
	CourierName string
	Message     string
}

// QuoteRates 查询可用快递公司报价
func (c *Client) QuoteRates(ctx context.Context, query RateQuery) ([]RateQuote, error) {
	params := url.Values{}
	params.Set("pickup_postcode", query.PickupPostcode)
	params.Set("delivery_postcode", query.DeliveryPostcode)
	params.Set("weight", strconv.FormatFloat(query.Weight, 'f', 3, 64))
	if query.COD {
		params.Set("cod", "1")
	} else {
		params.Set("cod", "0")
	}
	raw, status, err := c.call(ctx, http.MethodGet, "/courier/serviceability/?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: serviceability http %d: %s", ErrResponseInvalid, status, readMessage(raw))
	}
	companies, _ := readMap(raw, "data")["available_courier_companies"].([]interface{})
	quotes := make([]RateQuote, 0, len(companies))
	for _, item := range companies {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		quote := RateQuote{
			CourierID:             readString(entry, "courier_company_id"),
			Name:                  readString(entry, "courier_name"),
			EstimatedDeliveryDays: readFloat(entry, "estimated_delivery_days"),
			Rating:                readFloat(entry, "rating"),
		}
		if rate, ok := readOptionalFloat(entry, "rate"); ok {
			quote.Rate = &rate
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

// CreateShipment 创建正向运单
func (c *Client) CreateShipment(ctx context.Context, req ShipmentRequest) (*ShipmentResult, error) {
	paymentMethod := "Prepaid"
	if req.COD {
		paymentMethod = "COD"
	}
	payload := map[string]interface{}{
		"order_id":              req.OrderNo,
		"order_date":            req.OrderDate.Format("2006-01-02 15:04"),
		"pickup_location":       c.cfg.PickupLocation,
		"billing_customer_name": req.Customer.Name,
		"billing_last_name":     "",
		"billing_address":       req.Customer.Address1,
		"billing_address_2":     req.Customer.Address2,
		"billing_city":          req.Customer.City,
		"billing_state":         req.Customer.State,
		"billing_pincode":       req.Customer.PostalCode,
		"billing_country":       req.Customer.Country,
		"billing_email":         req.Customer.Email,
		"billing_phone":         req.Customer.Phone,
		"shipping_is_billing":   true,
		"order_items":           req.Items,
		"payment_method":        paymentMethod,
		"sub_total":             req.SubTotal,
		"length":                req.Length,
		"breadth":               req.Breadth,
		"height":                req.Height,
		"weight":                req.Weight,
	}
	if c.cfg.ChannelID != "" {
		payload["channel_id"] = c.cfg.ChannelID
	}
	return c.createOrder(ctx, "/orders/create/adhoc", payload)
}

// CreateReturnShipment 创建退货取件单，从客户处取件送回发货仓
func (c *Client) CreateReturnShipment(ctx context.Context, req ShipmentRequest, warehouse Party) (*ShipmentResult, error) {
	payload := map[string]interface{}{
		"order_id":               req.OrderNo,
		"order_date":             req.OrderDate.Format("2006-01-02"),
		"pickup_customer_name":   req.Customer.Name,
		"pickup_address":         req.Customer.Address1,
		"pickup_address_2":       req.Customer.Address2,
		"pickup_city":            req.Customer.City,
		"pickup_state":           req.Customer.State,
		"pickup_country":         req.Customer.Country,
		"pickup_pincode":         req.Customer.PostalCode,
		"pickup_email":           req.Customer.Email,
		"pickup_phone":           req.Customer.Phone,
		"shipping_customer_name": warehouse.Name,
		"shipping_address":       warehouse.Address1,
		"shipping_city":          warehouse.City,
		"shipping_state":         warehouse.State,
		"shipping_country":       warehouse.Country,
		"shipping_pincode":       warehouse.PostalCode,
		"shipping_phone":         warehouse.Phone,
		"order_items":            req.Items,
		"payment_method":         "Prepaid",
		"sub_total":              req.SubTotal,
		"length":                 req.Length,
		"breadth":                req.Breadth,
		"height":                 req.Height,
		"weight":                 req.Weight,
	}
	return c.createOrder(ctx, "/orders/create/return", payload)
}

func (c *Client) createOrder(ctx context.Context, path string, payload map[string]interface{}) (*ShipmentResult, error) {
	raw, status, err := c.call(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: create order http %d: %s", ErrResponseInvalid, status, readMessage(raw))
	}
	result := &ShipmentResult{
		CarrierOrderID:    readString(raw, "order_id"),
		CarrierShipmentID: readString(raw, "shipment_id"),
		AWB:               readString(raw, "awb_code"),
		CourierID:         readString(raw, "courier_company_id"),
		CourierName:       readString(raw, "courier_name"),
		FreightCharges:    readFloat(raw, "freight_charges"),
		CODCharges:        readFloat(raw, "cod_charges"),
	}
	if result.CarrierOrderID == "" || result.CarrierShipmentID == "" {
		return nil, fmt.Errorf("%w: order_id/shipment_id missing: %s", ErrResponseInvalid, readMessage(raw))
	}
	result.TrackingURL = TrackingURL(result.AWB)
	return result, nil
}

// AssignAWB 为运单分配 AWB；courierID 为空时由承运商自动选择
func (c *Client) AssignAWB(ctx context.Context, carrierShipmentID, courierID string) (*AWBResult, error) {
	payload := map[string]interface{}{"shipment_id": carrierShipmentID}
	if strings.TrimSpace(courierID) != "" {
		payload["courier_id"] = courierID
	}
	raw, status, err := c.call(ctx, http.MethodPost, "/courier/assign/awb", payload)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: http %d: %s", ErrCourierRejected, status, readMessage(raw))
	}
	data := readMap(readMap(raw, "response"), "data")
	result := &AWBResult{
		AWB:         readString(data, "awb_code"),
		CourierID:   readString(data, "courier_company_id"),
		CourierName: readString(data, "courier_name"),
		Message:     readMessage(raw),
	}
	if result.AWB == "" && readString(data, "awb_assign_error") != "" {
		result.Message = readString(data, "awb_assign_error")
	}
	return result, nil
}

// CancelShipments 按承运商订单号取消
func (c *Client) CancelShipments(ctx context.Context, carrierOrderIDs []string) error {
	if len(carrierOrderIDs) == 0 {
		return nil
	}
	ids := make([]interface{}, 0, len(carrierOrderIDs))
	for _, id := range carrierOrderIDs {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			ids = append(ids, n)
			continue
		}
		ids = append(ids, id)
	}
	raw, status, err := c.call(ctx, http.MethodPost, "/orders/cancel", map[string]interface{}{"ids": ids})
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: cancel http %d: %s", ErrResponseInvalid, status, readMessage(raw))
	}
	return nil
}

func readMessage(raw map[string]interface{}) string {
	if msg := readString(raw, "message"); msg != "" {
		return msg
	}
	return "unknown error"
}

func readString(raw map[string]interface{}, key string) string {
	if raw == nil {
		return ""
	}
	switch typed := raw[key].(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return ""
	}
}

func readMap(raw map[string]interface{}, key string) map[string]interface{} {
	if raw == nil {
		return nil
	}
	mapped, _ := raw[key].(map[string]interface{})
	return mapped
}

func readFloat(raw map[string]interface{}, key string) float64 {
	value, _ := readOptionalFloat(raw, key)
	return value
}

func readOptionalFloat(raw map[string]interface{}, key string) (float64, bool) {
	if raw == nil {
		return 0, false
	}
	var parsed float64
	switch typed := raw[key].(type) {
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		parsed = f
	case float64:
		parsed = typed
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		parsed = f
	default:
		return 0, false
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false
	}
	return parsed, true
}
