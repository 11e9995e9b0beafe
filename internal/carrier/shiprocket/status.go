package shiprocket

import (
	"strings"

	"github.com/ayurwell-next/internal/constants"
)

// StatusDelivered 承运商签收状态码
const StatusDelivered = 7

var statusNames = map[string]string{
	"NEW":                        constants.ShipmentStatusCreated,
	"AWB ASSIGNED":               constants.ShipmentStatusAWBAssigned,
	"LABEL GENERATED":            constants.ShipmentStatusAWBAssigned,
	"PICKUP SCHEDULED":           constants.ShipmentStatusAWBAssigned,
	"PICKUP GENERATED":           constants.ShipmentStatusAWBAssigned,
	"PICKED UP":                  constants.ShipmentStatusPickedUp,
	"SHIPPED":                    constants.ShipmentStatusInTransit,
	"IN TRANSIT":                 constants.ShipmentStatusInTransit,
	"REACHED AT DESTINATION HUB": constants.ShipmentStatusInTransit,
	"OUT FOR DELIVERY":           constants.ShipmentStatusOutForDelivery,
	"DELIVERED":                  constants.ShipmentStatusDelivered,
	"CANCELED":                   constants.ShipmentStatusCancelled,
	"CANCELLED":                  constants.ShipmentStatusCancelled,
	"RTO INITIATED":              constants.ShipmentStatusRTOInitiated,
	"RTO IN TRANSIT":             constants.ShipmentStatusRTOInitiated,
	"RTO DELIVERED":              constants.ShipmentStatusRTODelivered,
}

// NormalizeStatusName 统一状态名称格式
func NormalizeStatusName(name string) string {
	replacer := strings.NewReplacer("_", " ", "-", " ")
	return strings.Join(strings.Fields(strings.ToUpper(replacer.Replace(name))), " ")
}

// MapStatus 将承运商状态名称转换为本地运单状态
func MapStatus(name string) (string, bool) {
	status, ok := statusNames[NormalizeStatusName(name)]
	return status, ok
}
