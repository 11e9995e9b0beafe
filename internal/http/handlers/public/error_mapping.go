package public

import (
	"errors"

	"github.com/ayurwell-next/internal/http/response"
	"github.com/ayurwell-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var orderAccessErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrForbidden, code: response.CodeForbidden, key: "error.forbidden"},
}

var shipmentQueryExtraErrorRules = []mappedHandlerError{
	{target: service.ErrShipmentNotFound, code: response.CodeNotFound, key: "error.shipment_not_found"},
}

var orderCreateErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidInput, code: response.CodeBadRequest, key: "error.bad_request"},
	{target: service.ErrInvalidOrderItem, code: response.CodeBadRequest, key: "error.order_item_invalid"},
	{target: service.ErrEmptyCart, code: response.CodeBadRequest, key: "error.cart_empty"},
	{target: service.ErrAddressNotFound, code: response.CodeNotFound, key: "error.address_not_found"},
	{target: service.ErrProductNotFound, code: response.CodeNotFound, key: "error.product_not_found"},
	{target: service.ErrProductUnavailable, code: response.CodeBadRequest, key: "error.product_unavailable"},
	{target: service.ErrInsufficientStock, code: response.CodeBadRequest, key: "error.stock_insufficient"},
	{target: service.ErrMissingDimensions, code: response.CodeBadRequest, key: "error.dimensions_missing"},
	{target: service.ErrNoCourierAvailable, code: response.CodeBadRequest, key: "error.courier_unavailable"},
	{target: service.ErrInvalidPaymentMethod, code: response.CodeBadRequest, key: "error.payment_method_invalid"},
	{target: service.ErrForbidden, code: response.CodeForbidden, key: "error.forbidden"},
}

var deliveryQuoteExtraErrorRules = []mappedHandlerError{
	{target: service.ErrCarrierRequestFailed, code: response.CodeBadGateway, key: "error.carrier_request_failed"},
}

var orderCancelExtraErrorRules = []mappedHandlerError{
	{target: service.ErrOrderAlreadyCancelled, code: response.CodeConflict, key: "error.order_already_cancelled"},
	{target: service.ErrOrderNotCancellable, code: response.CodeBadRequest, key: "error.order_not_cancellable"},
	{target: service.ErrTerminalOrderStatus, code: response.CodeBadRequest, key: "error.order_status_terminal"},
	{target: service.ErrIllegalTransition, code: response.CodeBadRequest, key: "error.order_transition_illegal"},
	{target: service.ErrShipmentNotCancellable, code: response.CodeBadRequest, key: "error.shipment_not_cancellable"},
	{target: service.ErrRefundAlreadyInitiated, code: response.CodeConflict, key: "error.refund_in_progress"},
	{target: service.ErrRefundRejected, code: response.CodeBadGateway, key: "error.refund_rejected"},
	{target: service.ErrPaymentGatewayFailed, code: response.CodeBadGateway, key: "error.payment_gateway_failed"},
	{target: service.ErrCarrierRequestFailed, code: response.CodeBadGateway, key: "error.carrier_request_failed"},
}

var codConfirmExtraErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotCOD, code: response.CodeBadRequest, key: "error.order_not_cod"},
	{target: service.ErrShipmentAlreadyExists, code: response.CodeConflict, key: "error.shipment_exists"},
	{target: service.ErrShipmentNotAllowed, code: response.CodeBadRequest, key: "error.shipment_not_allowed"},
	{target: service.ErrIllegalTransition, code: response.CodeBadRequest, key: "error.order_transition_illegal"},
	{target: service.ErrMissingDimensions, code: response.CodeBadRequest, key: "error.dimensions_missing"},
	{target: service.ErrNoCourierAvailable, code: response.CodeBadRequest, key: "error.courier_unavailable"},
	{target: service.ErrCarrierRequestFailed, code: response.CodeBadGateway, key: "error.carrier_request_failed"},
}

var paymentInitiateExtraErrorRules = []mappedHandlerError{
	{target: service.ErrPaymentNotPrepaid, code: response.CodeBadRequest, key: "error.payment_not_prepaid"},
	{target: service.ErrPaymentAlreadyInitiated, code: response.CodeConflict, key: "error.payment_already_initiated"},
	{target: service.ErrInvalidOrderStatus, code: response.CodeBadRequest, key: "error.order_status_invalid"},
	{target: service.ErrPaymentGatewayFailed, code: response.CodeBadGateway, key: "error.payment_gateway_failed"},
}

var paymentVerifyErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidInput, code: response.CodeBadRequest, key: "error.bad_request"},
	{target: service.ErrPaymentNotFound, code: response.CodeNotFound, key: "error.payment_not_found"},
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrForbidden, code: response.CodeForbidden, key: "error.forbidden"},
	{target: service.ErrPaymentSignatureInvalid, code: response.CodeBadRequest, key: "error.payment_signature_invalid"},
	{target: service.ErrPaymentNotCaptured, code: response.CodeBadRequest, key: "error.payment_not_captured"},
	{target: service.ErrIllegalTransition, code: response.CodeBadRequest, key: "error.order_transition_illegal"},
	{target: service.ErrPaymentGatewayFailed, code: response.CodeBadGateway, key: "error.payment_gateway_failed"},
}

var returnAccessErrorRules = []mappedHandlerError{
	{target: service.ErrReturnNotFound, code: response.CodeNotFound, key: "error.return_not_found"},
	{target: service.ErrForbidden, code: response.CodeForbidden, key: "error.forbidden"},
}

var returnCreateExtraErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidInput, code: response.CodeBadRequest, key: "error.bad_request"},
	{target: service.ErrReturnReasonRequired, code: response.CodeBadRequest, key: "error.return_reason_required"},
	{target: service.ErrReturnNotEligible, code: response.CodeBadRequest, key: "error.return_not_eligible"},
	{target: service.ErrReturnWindowExpired, code: response.CodeBadRequest, key: "error.return_window_expired"},
	{target: service.ErrReturnInProgress, code: response.CodeConflict, key: "error.return_in_progress"},
	{target: service.ErrReturnItemInvalid, code: response.CodeBadRequest, key: "error.return_item_invalid"},
}

var returnCancelExtraErrorRules = []mappedHandlerError{
	{target: service.ErrReturnNotCancellable, code: response.CodeBadRequest, key: "error.return_not_cancellable"},
	{target: service.ErrIllegalTransition, code: response.CodeBadRequest, key: "error.order_transition_illegal"},
}

func respondOrderCreateError(c *gin.Context, err error) {
	respondWithMappedError(c, err, orderCreateErrorRules, response.CodeInternal, "error.order_create_failed")
}

func respondDeliveryQuoteError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(orderCreateErrorRules, deliveryQuoteExtraErrorRules), response.CodeInternal, "error.delivery_quote_failed")
}

func respondOrderQueryError(c *gin.Context, err error) {
	respondWithMappedError(c, err, orderAccessErrorRules, response.CodeInternal, "error.order_fetch_failed")
}

func respondShipmentQueryError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(orderAccessErrorRules, shipmentQueryExtraErrorRules), response.CodeInternal, "error.shipment_fetch_failed")
}

func respondOrderCancelError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(orderAccessErrorRules, orderCancelExtraErrorRules), response.CodeInternal, "error.order_update_failed")
}

func respondCODConfirmError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(orderAccessErrorRules, codConfirmExtraErrorRules), response.CodeInternal, "error.shipment_create_failed")
}

func respondPaymentInitiateError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(orderAccessErrorRules, paymentInitiateExtraErrorRules), response.CodeInternal, "error.payment_create_failed")
}

func respondPaymentVerifyError(c *gin.Context, err error) {
	respondWithMappedError(c, err, paymentVerifyErrorRules, response.CodeInternal, "error.payment_verify_failed")
}

func respondReturnCreateError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(orderAccessErrorRules, returnCreateExtraErrorRules), response.CodeInternal, "error.return_create_failed")
}

func respondReturnQueryError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(returnAccessErrorRules, orderAccessErrorRules), response.CodeInternal, "error.return_fetch_failed")
}

func respondReturnCancelError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(returnAccessErrorRules, returnCancelExtraErrorRules), response.CodeInternal, "error.return_update_failed")
}
