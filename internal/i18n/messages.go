package i18n

var catalog = map[string]map[string]string{
	LocaleEN: {
		"error.bad_request":            "Invalid request parameters",
		"error.unauthorized":           "Unauthorized",
		"error.forbidden":              "Permission denied",
		"error.not_found":              "Resource not found",
		"error.internal":               "Internal server error",
		"error.auth_header_missing":    "Authorization header missing",
		"error.auth_header_invalid":    "Authorization header invalid",
		"error.token_invalid":          "Token is invalid or expired",
		"error.jwt_secret_missing":     "Token secret is not configured",
		"error.user_id_invalid":        "Invalid user id",
		"error.user_id_type_invalid":   "Invalid user id type",
		"error.rate_limited":           "Too many requests, retry after %d seconds",
		"error.rate_limit_unavailable": "Rate limiter unavailable",

		"error.order_not_found":          "Order not found",
		"error.order_item_invalid":       "Invalid order item",
		"error.cart_empty":               "Cart is empty",
		"error.address_not_found":        "Address not found",
		"error.product_not_found":        "Product not found",
		"error.product_unavailable":      "Product is unavailable",
		"error.stock_insufficient":       "Insufficient stock",
		"error.dimensions_missing":       "Product shipping dimensions are missing",
		"error.courier_unavailable":      "No courier serves this address",
		"error.payment_method_invalid":   "Invalid payment method",
		"error.order_status_invalid":     "Invalid order status",
		"error.order_status_same":        "Order is already in the target status",
		"error.order_status_terminal":    "Order is in a final status",
		"error.order_transition_illegal": "Status change is not allowed",
		"error.order_already_cancelled":  "Order is already cancelled",
		"error.order_not_cancellable":    "Order can no longer be cancelled",
		"error.order_not_cod":            "Order is not cash on delivery",
		"error.cod_not_collected":        "Cash on delivery amount was not collected",
		"error.cod_already_settled":      "Cash on delivery amount already settled",
		"error.cod_filter_invalid":       "Invalid cod_status filter",
		"error.order_create_failed":      "Failed to create order",
		"error.order_fetch_failed":       "Failed to fetch orders",
		"error.order_update_failed":      "Failed to update order",

		"error.payment_not_found":         "Payment not found",
		"error.payment_not_prepaid":       "Online payment requires a prepaid order",
		"error.payment_already_initiated": "Payment already initiated",
		"error.payment_signature_invalid": "Payment signature is invalid",
		"error.payment_not_captured":      "Payment was not captured",
		"error.payment_already_refunded":  "Payment already refunded",
		"error.payment_gateway_failed":    "Payment gateway is unavailable, please retry",
		"error.payment_create_failed":     "Failed to initiate payment",
		"error.payment_verify_failed":     "Failed to verify payment",

		"error.shipment_not_found":       "Shipment not found",
		"error.shipment_fetch_failed":    "Failed to fetch shipment",
		"error.delivery_quote_failed":    "Failed to quote delivery",
		"error.shipment_exists":          "Shipment already exists",
		"error.shipment_not_allowed":     "Order is not ready for shipment",
		"error.shipment_not_cancellable": "Shipment can no longer be cancelled",
		"error.rto_not_allowed":          "Return to origin is not allowed now",
		"error.rto_already_initiated":    "Return to origin already initiated",
		"error.carrier_request_failed":   "Carrier is unavailable, please retry",
		"error.awb_not_assigned":         "Tracking number not assigned yet",
		"error.awb_retry_running":        "Tracking number retry is already running",
		"error.shipment_create_failed":   "Failed to create shipment",
		"error.shipment_update_failed":   "Failed to update shipment",

		"error.refund_not_found":     "Refund not found",
		"error.refund_in_progress":   "A refund is already in progress",
		"error.refund_not_retryable": "Only failed refunds can be retried",
		"error.refund_rejected":      "Refund was rejected by the gateway",
		"error.nothing_to_refund":    "Nothing left to refund",
		"error.refund_not_allowed":   "Refund is not allowed for this order",
		"error.cod_refund_manual":    "Cash on delivery refunds are handled manually",
		"error.refund_failed":        "Failed to process refund",
		"error.refund_fetch_failed":  "Failed to fetch refunds",

		"error.return_not_found":       "Return request not found",
		"error.return_not_eligible":    "Order is not eligible for return",
		"error.return_window_expired":  "Return window has expired",
		"error.return_in_progress":     "A return request is already in progress",
		"error.return_item_invalid":    "Return item does not belong to the order",
		"error.return_reason_required": "Return reason is required",
		"error.return_not_cancellable": "Return request can no longer be cancelled",
		"error.return_not_received":    "Returned items have not been received",
		"error.return_create_failed":   "Failed to create return request",
		"error.return_fetch_failed":    "Failed to fetch return requests",
		"error.return_update_failed":   "Failed to update return request",

		"error.webhook_signature_invalid": "Webhook signature is invalid",
		"error.webhook_token_invalid":     "Webhook token is invalid",
		"error.webhook_payload_invalid":   "Webhook payload is invalid",
	},
	LocaleZH: {
		"error.bad_request":            "请求参数错误",
		"error.unauthorized":           "未登录或登录已失效",
		"error.forbidden":              "无权限执行该操作",
		"error.not_found":              "资源不存在",
		"error.internal":               "服务器内部错误",
		"error.auth_header_missing":    "缺少认证信息",
		"error.auth_header_invalid":    "认证信息格式错误",
		"error.token_invalid":          "令牌无效或已过期",
		"error.jwt_secret_missing":     "未配置令牌密钥",
		"error.user_id_invalid":        "用户 ID 无效",
		"error.user_id_type_invalid":   "用户 ID 类型错误",
		"error.rate_limited":           "请求过于频繁，请 %d 秒后重试",
		"error.rate_limit_unavailable": "限流服务不可用",

		"error.order_not_found":          "订单不存在",
		"error.order_item_invalid":       "订单商品无效",
		"error.cart_empty":               "购物车为空",
		"error.address_not_found":        "收货地址不存在",
		"error.product_not_found":        "商品不存在",
		"error.product_unavailable":      "商品已下架",
		"error.stock_insufficient":       "库存不足",
		"error.dimensions_missing":       "商品缺少包裹尺寸信息",
		"error.courier_unavailable":      "该地址暂无可用快递",
		"error.payment_method_invalid":   "支付方式无效",
		"error.order_status_invalid":     "订单状态无效",
		"error.order_status_same":        "订单已处于目标状态",
		"error.order_status_terminal":    "订单已处于终态",
		"error.order_transition_illegal": "不允许的状态变更",
		"error.order_already_cancelled":  "订单已取消",
		"error.order_not_cancellable":    "订单当前不可取消",
		"error.order_not_cod":            "订单不是货到付款",
		"error.cod_not_collected":        "货到付款尚未收款",
		"error.cod_already_settled":      "货到付款已结算",
		"error.cod_filter_invalid":       "cod_status 筛选条件无效",
		"error.order_create_failed":      "创建订单失败",
		"error.order_fetch_failed":       "获取订单失败",
		"error.order_update_failed":      "更新订单失败",

		"error.payment_not_found":         "支付记录不存在",
		"error.payment_not_prepaid":       "仅预付订单可在线支付",
		"error.payment_already_initiated": "支付已发起",
		"error.payment_signature_invalid": "支付签名校验失败",
		"error.payment_not_captured":      "支付未完成扣款",
		"error.payment_already_refunded":  "支付已退款",
		"error.payment_gateway_failed":    "支付网关暂不可用，请稍后重试",
		"error.payment_create_failed":     "发起支付失败",
		"error.payment_verify_failed":     "支付校验失败",

		"error.shipment_not_found":       "运单不存在",
		"error.shipment_fetch_failed":    "获取运单失败",
		"error.delivery_quote_failed":    "运费试算失败",
		"error.shipment_exists":          "运单已存在",
		"error.shipment_not_allowed":     "订单当前不可发货",
		"error.shipment_not_cancellable": "运单当前不可取消",
		"error.rto_not_allowed":          "当前状态不允许退回发件人",
		"error.rto_already_initiated":    "已发起退回发件人",
		"error.carrier_request_failed":   "承运商暂不可用，请稍后重试",
		"error.awb_not_assigned":         "运单号尚未分配",
		"error.awb_retry_running":        "运单号重试任务正在运行",
		"error.shipment_create_failed":   "创建运单失败",
		"error.shipment_update_failed":   "更新运单失败",

		"error.refund_not_found":     "退款记录不存在",
		"error.refund_in_progress":   "已有退款在处理中",
		"error.refund_not_retryable": "仅失败的退款可以重试",
		"error.refund_rejected":      "退款被支付网关拒绝",
		"error.nothing_to_refund":    "没有可退金额",
		"error.refund_not_allowed":   "该订单不允许退款",
		"error.cod_refund_manual":    "货到付款订单需人工退款",
		"error.refund_failed":        "退款处理失败",
		"error.refund_fetch_failed":  "获取退款记录失败",

		"error.return_not_found":       "退货申请不存在",
		"error.return_not_eligible":    "订单不满足退货条件",
		"error.return_window_expired":  "已超过退货期限",
		"error.return_in_progress":     "已有进行中的退货申请",
		"error.return_item_invalid":    "退货商品不属于该订单",
		"error.return_reason_required": "请填写退货原因",
		"error.return_not_cancellable": "退货申请当前不可取消",
		"error.return_not_received":    "退货尚未签收",
		"error.return_create_failed":   "创建退货申请失败",
		"error.return_fetch_failed":    "获取退货申请失败",
		"error.return_update_failed":   "更新退货申请失败",

		"error.webhook_signature_invalid": "回调签名校验失败",
		"error.webhook_token_invalid":     "回调令牌无效",
		"error.webhook_payload_invalid":   "回调数据无效",
	},
}
