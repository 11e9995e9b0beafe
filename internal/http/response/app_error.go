package response

// 外部依赖标识，记录在 AppError.Upstream 中
const (
	UpstreamPaymentGateway = "payment_gateway"
	UpstreamCarrier        = "carrier"
)

// AppError 统一错误包装
type AppError struct {
	Code     int
	Message  string
	Upstream string
	Err      error
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Upstream != "" {
		msg = e.Upstream + ": " + msg
	}
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
func WrapError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WrapUpstreamError 包装支付网关或物流商调用失败，统一返回 502
func WrapUpstreamError(upstream, message string, err error) *AppError {
	return &AppError{
		Code:     CodeBadGateway,
		Message:  message,
		Upstream: upstream,
		Err:      err,
	}
}
