package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/models"
	"github.com/ayurwell-next/internal/payment/razorpay"
	"github.com/ayurwell-next/internal/repository"
)

// seedShippedPrepaid 下单、捕获并完成发货任务，返回带 AWB 的订单
func seedShippedPrepaid(t *testing.T, env *testEnv, email string, quantity int) (*models.User, *models.Order, *models.Product) {
	t.Helper()
	user, address := env.seedCustomer(t, email)
	product := env.seedProduct(t, "SKU-"+email, 300, 10, 0.5, 10, 10, 5)
	order := env.placeOrder(t, user, address, constants.PaymentMethodPrepaid, CreateOrderItem{ProductID: product.ID, Quantity: quantity})
	env.capturePrepaid(t, order)
	if err := env.shipments.FulfillPaidOrder(context.Background(), order.ID); err != nil {
		t.Fatalf("fulfil failed: %v", err)
	}
	return user, env.reloadOrder(t, order.ID), product
}

func TestClassifyAdminRefund(t *testing.T) {
	cases := map[string]string{
		"Item DAMAGED in transit": constants.RefundTypeDamaged,
		"wrong colour delivered":  constants.RefundTypeWrongProduct,
		"goodwill gesture":        constants.RefundTypeAdminInitiated,
	}
	for reason, want := range cases {
		if got := ClassifyAdminRefund(reason); got != want {
			t.Fatalf("reason %q: expected %s, got %s", reason, want, got)
		}
	}
}

func TestProcessAdminRefund(t *testing.T) {
	env := newTestEnv(t)
	user, order, product := seedShippedPrepaid(t, env, "admin-refund@example.com", 1)
	ctx := context.Background()

	if _, err := env.refunds.ProcessAdminRefund(ctx, order.ID, "damaged", Actor{UserID: user.ID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := env.refunds.ProcessAdminRefund(ctx, order.ID, "  ", adminActor); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	refund, err := env.refunds.ProcessAdminRefund(ctx, order.ID, "Box arrived damaged", adminActor)
	if err != nil {
		t.Fatalf("admin refund failed: %v", err)
	}
	if refund.Type != constants.RefundTypeDamaged || refund.Reason != "Admin Refund: Box arrived damaged" {
		t.Fatalf("unexpected refund: type=%s reason=%s", refund.Type, refund.Reason)
	}
	if refund.InitiatedBy != adminActor.UserID || refund.GatewayRefundID == nil {
		t.Fatalf("expected initiator and gateway id, got %+v", refund)
	}
	if got := env.reloadOrder(t, order.ID).Status; got != constants.OrderStatusRefunded {
		t.Fatalf("expected refunded order, got %s", got)
	}
	if got := env.reloadProduct(t, product.ID).StockQuantity; got != 9 {
		t.Fatalf("admin refund must not restock, got %d", got)
	}
	if _, err := env.refunds.ProcessAdminRefund(ctx, order.ID, "again", adminActor); !errors.Is(err, ErrPaymentAlreadyRefunded) {
		t.Fatalf("expected already refunded, got %v", err)
	}

	_, codOrder := seedCODOrder(t, env, "admin-cod@example.com")
	if _, err := env.refunds.ProcessAdminRefund(ctx, codOrder.ID, "damaged", adminActor); !errors.Is(err, ErrPaymentNotPrepaid) {
		t.Fatalf("expected not prepaid, got %v", err)
	}
}

func TestProcessRTORefund(t *testing.T) {
	env := newTestEnv(t)
	_, order, product := seedShippedPrepaid(t, env, "rto-refund@example.com", 2)
	ctx := context.Background()

	if _, err := env.refunds.ProcessRTORefund(ctx, order.ID); !errors.Is(err, ErrRefundNotAllowed) {
		t.Fatalf("expected refund not allowed before rto, got %v", err)
	}
	shipment, _ := env.shipmentRepo.GetForwardByOrderID(order.ID)
	env.setStatus(t, &models.Shipment{}, shipment.ID, constants.ShipmentStatusInTransit)
	if _, err := env.shipments.RequestRTO(ctx, shipment.ID); err != nil {
		t.Fatalf("rto failed: %v", err)
	}

	refund, err := env.refunds.ProcessRTORefund(ctx, order.ID)
	if err != nil {
		t.Fatalf("rto refund failed: %v", err)
	}
	if refund.Type != constants.RefundTypeRTO || refund.Status != constants.RefundStatusProcessing {
		t.Fatalf("unexpected refund: %+v", refund)
	}
	if got := env.reloadProduct(t, product.ID).StockQuantity; got != 10 {
		t.Fatalf("expected stock restored, got %d", got)
	}

	_, codOrder := seedCODOrder(t, env, "rto-cod@example.com")
	if _, err := env.refunds.ProcessRTORefund(ctx, codOrder.ID); !errors.Is(err, ErrCODRefundNotAutomated) {
		t.Fatalf("expected cod not automated, got %v", err)
	}
}

func TestRefundTransportErrorKeepsInitiated(t *testing.T) {
	env := newTestEnv(t)
	_, order, _ := seedShippedPrepaid(t, env, "transport@example.com", 1)
	env.gateway.refundErr = razorpay.ErrRequestFailed

	_, err := env.refunds.ProcessAdminRefund(context.Background(), order.ID, "goodwill", adminActor)
	if !errors.Is(err, ErrPaymentGatewayFailed) {
		t.Fatalf("expected gateway failure, got %v", err)
	}
	refunds, _ := env.refundRepo.ListByOrder(order.ID)
	if len(refunds) != 1 || refunds[0].Status != constants.RefundStatusInitiated {
		t.Fatalf("expected initiated refund, got %+v", refunds)
	}
	if refunds[0].FailureReason == "" || refunds[0].GatewayRefundID != nil {
		t.Fatalf("expected failure reason without gateway id, got %+v", refunds[0])
	}
	if containsTopic(env.outboxTopics(t), constants.EventRefundFailed) {
		t.Fatalf("transport errors must not emit refund.failed")
	}
	if got := env.reloadOrder(t, order.ID).Status; got != constants.OrderStatusConfirmed {
		t.Fatalf("order must be unchanged, got %s", got)
	}
	if _, err := env.refunds.ProcessAdminRefund(context.Background(), order.ID, "goodwill", adminActor); !errors.Is(err, ErrRefundAlreadyInitiated) {
		t.Fatalf("second refund must wait on the pending one, got %v", err)
	}
}

func TestRefundTimeoutSettledByReceiptWebhook(t *testing.T) {
	env := newTestEnv(t)
	_, order, _ := seedShippedPrepaid(t, env, "timeout-webhook@example.com", 1)
	env.gateway.refundErr = razorpay.ErrRequestFailed
	if _, err := env.refunds.ProcessAdminRefund(context.Background(), order.ID, "goodwill", adminActor); !errors.Is(err, ErrPaymentGatewayFailed) {
		t.Fatalf("expected gateway failure, got %v", err)
	}
	refunds, _ := env.refundRepo.ListByOrder(order.ID)
	pending := refunds[0]

	body := refundWebhookBodyFor(t, razorpay.EventRefundProcessed, "rfnd_late_1", pending.RefundNo)
	result, err := env.webhooks.HandlePaymentWebhook(context.Background(), razorpay.SignWebhook(testWebhookSecret, body), "evt_late_1", body)
	if err != nil || result.Action != WebhookActionApplied {
		t.Fatalf("expected applied, got %+v err=%v", result, err)
	}
	settled, _ := env.refundRepo.GetByID(pending.ID)
	if settled.Status != constants.RefundStatusSuccess {
		t.Fatalf("expected success, got %s", settled.Status)
	}
	if settled.GatewayRefundID == nil || *settled.GatewayRefundID != "rfnd_late_1" || settled.FailureReason != "" {
		t.Fatalf("expected gateway id recorded and reason cleared, got %+v", settled)
	}
	topics := env.outboxTopics(t)
	if !containsTopic(topics, constants.EventRefundInitiated) || !containsTopic(topics, constants.EventRefundSuccess) {
		t.Fatalf("expected refund.initiated and refund.success, got %v", topics)
	}
	if got := env.reloadOrder(t, order.ID).Status; got != constants.OrderStatusRefunded {
		t.Fatalf("expected refunded order, got %s", got)
	}
	payment, _ := env.paymentRepo.GetByOrderID(order.ID)
	if payment.Status != constants.PaymentStatusRefunded {
		t.Fatalf("expected refunded payment, got %s", payment.Status)
	}
}

func TestRefundTimeoutFailedByReceiptWebhook(t *testing.T) {
	env := newTestEnv(t)
	_, order, _ := seedShippedPrepaid(t, env, "timeout-failed@example.com", 1)
	env.gateway.refundErr = razorpay.ErrRequestFailed
	_, _ = env.refunds.ProcessAdminRefund(context.Background(), order.ID, "goodwill", adminActor)
	refunds, _ := env.refundRepo.ListByOrder(order.ID)

	body := refundWebhookBodyFor(t, razorpay.EventRefundFailed, "rfnd_late_2", refunds[0].RefundNo)
	result, err := env.webhooks.HandlePaymentWebhook(context.Background(), razorpay.SignWebhook(testWebhookSecret, body), "evt_late_2", body)
	if err != nil || result.Action != WebhookActionApplied || result.Status != constants.RefundStatusFailed {
		t.Fatalf("expected applied failure, got %+v err=%v", result, err)
	}
	if !containsTopic(env.outboxTopics(t), constants.EventRefundFailed) {
		t.Fatalf("expected refund.failed event")
	}
	if got := env.reloadOrder(t, order.ID).Status; got != constants.OrderStatusConfirmed {
		t.Fatalf("order must be unchanged, got %s", got)
	}
}

func TestRetryUncertainRefund(t *testing.T) {
	env := newTestEnv(t)
	_, order, _ := seedShippedPrepaid(t, env, "retry-uncertain@example.com", 1)
	env.gateway.refundErr = razorpay.ErrRequestFailed
	_, _ = env.refunds.ProcessAdminRefund(context.Background(), order.ID, "goodwill", adminActor)
	refunds, _ := env.refundRepo.ListByOrder(order.ID)

	env.gateway.refundErr = nil
	retried, err := env.refunds.RetryFailedRefund(context.Background(), refunds[0].ID, adminActor)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retried.ID != refunds[0].ID || retried.Status != constants.RefundStatusProcessing || retried.GatewayRefundID == nil {
		t.Fatalf("expected same refund processing, got %+v", retried)
	}
	if env.gateway.refundCount() != 1 {
		t.Fatalf("expected one gateway refund, got %d", env.gateway.refundCount())
	}

	// 网关其实已受理上一次请求时，重试不再重复退款
	_, landed, _ := seedShippedPrepaid(t, env, "retry-landed@example.com", 1)
	env.gateway.refundErr = razorpay.ErrRequestFailed
	_, _ = env.refunds.ProcessAdminRefund(context.Background(), landed.ID, "goodwill", adminActor)
	env.gateway.refundErr = nil
	payment, _ := env.paymentRepo.GetByOrderID(landed.ID)
	state := env.gateway.payments[payment.PaymentRef()]
	state.AmountRefunded = state.AmountCaptured
	pending, _ := env.refundRepo.ListByOrder(landed.ID)
	if _, err := env.refunds.RetryFailedRefund(context.Background(), pending[0].ID, adminActor); !errors.Is(err, ErrNothingToRefund) {
		t.Fatalf("expected nothing to refund, got %v", err)
	}
	if env.gateway.refundCount() != 1 {
		t.Fatalf("gateway must not be called again, got %d", env.gateway.refundCount())
	}
}

func TestRetryFailedRefundOnlyFromFailed(t *testing.T) {
	env := newTestEnv(t)
	user, order, _ := seedShippedPrepaid(t, env, "retry@example.com", 1)
	refund, err := env.refunds.ProcessAdminRefund(context.Background(), order.ID, "goodwill", adminActor)
	if err != nil {
		t.Fatalf("admin refund failed: %v", err)
	}

	if _, err := env.refunds.RetryFailedRefund(context.Background(), refund.ID, Actor{UserID: user.ID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := env.refunds.RetryFailedRefund(context.Background(), refund.ID, adminActor); !errors.Is(err, ErrRefundNotRetryable) {
		t.Fatalf("expected not retryable, got %v", err)
	}
	if _, err := env.refunds.RetryFailedRefund(context.Background(), 9999, adminActor); !errors.Is(err, ErrRefundNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRefundNothingLeftAtGateway(t *testing.T) {
	env := newTestEnv(t)
	_, order, _ := seedShippedPrepaid(t, env, "drained@example.com", 1)
	payment, _ := env.paymentRepo.GetByOrderID(order.ID)
	state := env.gateway.payments[payment.PaymentRef()]
	state.AmountRefunded = state.AmountCaptured

	if _, err := env.refunds.ProcessAdminRefund(context.Background(), order.ID, "goodwill", adminActor); !errors.Is(err, ErrNothingToRefund) {
		t.Fatalf("expected nothing to refund, got %v", err)
	}
	if got := env.countRows(t, &models.Refund{}, "order_id = ?", order.ID); got != 0 {
		t.Fatalf("no refund row expected, got %d", got)
	}
	if env.gateway.refundCount() != 0 {
		t.Fatalf("gateway refund must not be called")
	}
}

func TestMarkCODRefunded(t *testing.T) {
	env := newTestEnv(t)
	user, order := seedCODOrder(t, env, "cod-manual@example.com")
	ctx := context.Background()

	if _, err := env.refunds.MarkCODRefunded(ctx, order.ID, "", adminActor); !errors.Is(err, ErrCODNotCollected) {
		t.Fatalf("expected not collected, got %v", err)
	}
	if _, err := env.orders.UpdateStatus(ctx, order.ID, constants.OrderStatusDelivered, "", adminActor); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("pending cod order cannot jump to delivered, got %v", err)
	}
	if _, err := env.shipments.ConfirmCODOrder(ctx, order.ID, Actor{UserID: user.ID}); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if _, err := env.orders.UpdateStatus(ctx, order.ID, constants.OrderStatusDelivered, "", adminActor); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if _, err := env.refunds.MarkCODRefunded(ctx, order.ID, "cash returned", Actor{UserID: user.ID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	refunded, err := env.refunds.MarkCODRefunded(ctx, order.ID, "cash returned", adminActor)
	if err != nil {
		t.Fatalf("mark cod refunded failed: %v", err)
	}
	if refunded.Status != constants.OrderStatusRefunded {
		t.Fatalf("expected refunded, got %s", refunded.Status)
	}
	if got := env.countRows(t, &models.Refund{}, "order_id = ?", order.ID); got != 0 {
		t.Fatalf("manual cod refund must not create refund rows, got %d", got)
	}
	if got := env.countRows(t, &models.OrderStatusHistory{}, "order_id = ? AND note = ?", order.ID, "COD refund recorded manually: cash returned"); got != 1 {
		t.Fatalf("expected manual refund history, got %d", got)
	}

	_, prepaid, _ := seedShippedPrepaid(t, env, "cod-manual-prepaid@example.com", 1)
	if _, err := env.refunds.MarkCODRefunded(ctx, prepaid.ID, "", adminActor); !errors.Is(err, ErrOrderNotCOD) {
		t.Fatalf("expected not cod, got %v", err)
	}
}

func TestRefundQueries(t *testing.T) {
	env := newTestEnv(t)
	user, order, _ := seedShippedPrepaid(t, env, "queries@example.com", 1)
	if _, err := env.refunds.ProcessAdminRefund(context.Background(), order.ID, "wrong size", adminActor); err != nil {
		t.Fatalf("admin refund failed: %v", err)
	}

	rows, err := env.refunds.GetRefundsByOrder(context.Background(), order.ID, Actor{UserID: user.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected owner to see refund, rows=%d err=%v", len(rows), err)
	}
	if _, err := env.refunds.GetRefundsByOrder(context.Background(), order.ID, Actor{UserID: user.ID + 1}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for foreign user, got %v", err)
	}
	list, total, err := env.refunds.ListRefunds(context.Background(), repository.RefundListFilter{Page: 1, PageSize: 10, Type: constants.RefundTypeWrongProduct})
	if err != nil || total != 1 || len(list) != 1 {
		t.Fatalf("expected one wrong_product refund, total=%d err=%v", total, err)
	}
	_, total, _ = env.refunds.ListRefunds(context.Background(), repository.RefundListFilter{Page: 1, PageSize: 10, Type: constants.RefundTypeDamaged})
	if total != 0 {
		t.Fatalf("expected no damaged refunds, got %d", total)
	}
}
