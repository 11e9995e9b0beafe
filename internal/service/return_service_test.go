package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/models"
)

// seedDeliveredPrepaid 两个商品的预付订单，已捕获、发货并签收
func seedDeliveredPrepaid(t *testing.T, env *testEnv, email string) (*models.User, *models.Order, []*models.Product) {
	t.Helper()
	user, address := env.seedCustomer(t, email)
	soap := env.seedProduct(t, "SOAP-"+email, 150, 10, 0.2, 8, 6, 3)
	balm := env.seedProduct(t, "BALM-"+email, 220, 10, 0.1, 5, 5, 5)
	order := env.placeOrder(t, user, address, constants.PaymentMethodPrepaid,
		CreateOrderItem{ProductID: soap.ID, Quantity: 2},
		CreateOrderItem{ProductID: balm.ID, Quantity: 1},
	)
	env.capturePrepaid(t, order)
	if err := env.shipments.FulfillPaidOrder(context.Background(), order.ID); err != nil {
		t.Fatalf("fulfil failed: %v", err)
	}
	if _, err := env.orders.UpdateStatus(context.Background(), order.ID, constants.OrderStatusDelivered, "", adminActor); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	return user, env.reloadOrder(t, order.ID), []*models.Product{soap, balm}
}

func itemFor(order *models.Order, productID uint) models.OrderItem {
	for _, item := range order.Items {
		if item.ProductID == productID {
			return item
		}
	}
	return models.OrderItem{}
}

func TestCreateReturnRequiresDeliveredOrder(t *testing.T) {
	env := newTestEnv(t)
	user, order := seedCODOrder(t, env, "notdelivered@example.com")

	_, err := env.returns.CreateReturn(context.Background(), CreateReturnInput{OrderID: order.ID, Reason: "changed mind"}, Actor{UserID: user.ID})
	if !errors.Is(err, ErrReturnNotEligible) {
		t.Fatalf("expected not eligible, got %v", err)
	}
	_, err = env.returns.CreateReturn(context.Background(), CreateReturnInput{OrderID: order.ID, Reason: " "}, Actor{UserID: user.ID})
	if !errors.Is(err, ErrReturnReasonRequired) {
		t.Fatalf("expected reason required, got %v", err)
	}
}

func TestCreateReturnWindow(t *testing.T) {
	env := newTestEnv(t)
	user, order, _ := seedDeliveredPrepaid(t, env, "window@example.com")
	ctx := context.Background()

	// 以签收历史为准，而不是订单上的 delivered_at
	old := time.Now().Add(-30 * 24 * time.Hour)
	if err := env.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("delivered_at", old).Error; err != nil {
		t.Fatalf("rewrite delivered_at failed: %v", err)
	}
	env.returns.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	if _, err := env.returns.CreateReturn(ctx, CreateReturnInput{OrderID: order.ID, Reason: "late"}, Actor{UserID: user.ID}); !errors.Is(err, ErrReturnWindowExpired) {
		t.Fatalf("expected window expired, got %v", err)
	}

	env.returns.now = func() time.Time { return time.Now().Add(6 * 24 * time.Hour) }
	ret, err := env.returns.CreateReturn(ctx, CreateReturnInput{OrderID: order.ID, Reason: "not as described"}, Actor{UserID: user.ID})
	if err != nil {
		t.Fatalf("create return inside window failed: %v", err)
	}
	if ret.Status != constants.ReturnStatusRequested || ret.IsPartial {
		t.Fatalf("unexpected return: status=%s partial=%v", ret.Status, ret.IsPartial)
	}
	if _, err := env.returns.CreateReturn(ctx, CreateReturnInput{OrderID: order.ID, Reason: "again"}, Actor{UserID: user.ID}); !errors.Is(err, ErrReturnInProgress) {
		t.Fatalf("expected return in progress, got %v", err)
	}
}

func TestReturnNotesDoNotExtendWindow(t *testing.T) {
	env := newTestEnv(t)
	user, order, _ := seedDeliveredPrepaid(t, env, "window-notes@example.com")
	ctx := context.Background()

	env.returns.now = func() time.Time { return time.Now().Add(5 * 24 * time.Hour) }
	first, err := env.returns.CreateReturn(ctx, CreateReturnInput{OrderID: order.ID, Reason: "wrong size"}, Actor{UserID: user.ID})
	if err != nil {
		t.Fatalf("create return failed: %v", err)
	}
	if _, err := env.returns.CancelReturn(ctx, first.ID, Actor{UserID: user.ID}); err != nil {
		t.Fatalf("cancel return failed: %v", err)
	}

	// 备注行与 delivered 同状态，但签收时间只取迁移行
	var delivered int64
	if err := env.db.Model(&models.OrderStatusHistory{}).
		Where("order_id = ? AND status = ? AND transition = ?", order.ID, constants.OrderStatusDelivered, true).
		Count(&delivered).Error; err != nil {
		t.Fatalf("count history failed: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("expected one delivered transition, got %d", delivered)
	}

	env.returns.now = func() time.Time { return time.Now().Add(9 * 24 * time.Hour) }
	if _, err := env.returns.CreateReturn(ctx, CreateReturnInput{OrderID: order.ID, Reason: "second try"}, Actor{UserID: user.ID}); !errors.Is(err, ErrReturnWindowExpired) {
		t.Fatalf("expected window expired after notes, got %v", err)
	}
}

func TestCreateReturnValidatesItems(t *testing.T) {
	env := newTestEnv(t)
	user, order, _ := seedDeliveredPrepaid(t, env, "items@example.com")
	ctx := context.Background()

	if _, err := env.returns.CreateReturn(ctx, CreateReturnInput{OrderID: order.ID, Reason: "x", OrderItemIDs: []uint{99999}}, Actor{UserID: user.ID}); !errors.Is(err, ErrReturnItemInvalid) {
		t.Fatalf("expected invalid item, got %v", err)
	}
	if _, err := env.returns.CreateReturn(ctx, CreateReturnInput{OrderID: order.ID, Reason: "x"}, Actor{UserID: user.ID + 1}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected foreign order hidden, got %v", err)
	}

	all := []uint{order.Items[0].ID, order.Items[1].ID, order.Items[0].ID}
	ret, err := env.returns.CreateReturn(ctx, CreateReturnInput{OrderID: order.ID, Reason: "both", OrderItemIDs: all}, Actor{UserID: user.ID})
	if err != nil {
		t.Fatalf("create return failed: %v", err)
	}
	if ret.IsPartial || len(ret.Items) != 0 {
		t.Fatalf("selecting every item is a full return, got partial=%v items=%d", ret.IsPartial, len(ret.Items))
	}
}

func TestPrepaidReturnLifecycleRestocksReturnedItems(t *testing.T) {
	env := newTestEnv(t)
	user, order, products := seedDeliveredPrepaid(t, env, "lifecycle@example.com")
	soap, balm := products[0], products[1]
	ctx := context.Background()

	ret, err := env.returns.CreateReturn(ctx, CreateReturnInput{
		OrderID:      order.ID,
		Reason:       "soap irritated skin",
		OrderItemIDs: []uint{itemFor(order, soap.ID).ID},
	}, Actor{UserID: user.ID})
	if err != nil {
		t.Fatalf("create return failed: %v", err)
	}
	if !ret.IsPartial || len(ret.Items) != 1 {
		t.Fatalf("expected partial return with one item, got %+v", ret)
	}

	if _, err := env.returns.UpdateReturnStatus(ctx, ret.ID, constants.ReturnStatusReceived, "", adminActor); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected illegal transition, got %v", err)
	}
	if _, err := env.returns.UpdateReturnStatus(ctx, ret.ID, constants.ReturnStatusApproved, "", Actor{UserID: user.ID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := env.returns.UpdateReturnStatus(ctx, ret.ID, constants.ReturnStatusApproved, "looks valid", adminActor); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	scheduled, err := env.returns.UpdateReturnStatus(ctx, ret.ID, constants.ReturnStatusPickupScheduled, "", adminActor)
	if err != nil {
		t.Fatalf("schedule pickup failed: %v", err)
	}
	if scheduled.Status != constants.ReturnStatusPickupScheduled || env.carrier.returnCreated != 1 {
		t.Fatalf("expected pickup scheduled with carrier booking, status=%s bookings=%d", scheduled.Status, env.carrier.returnCreated)
	}
	returnShipment, err := env.shipmentRepo.GetByReturnID(ret.ID)
	if err != nil || returnShipment == nil || returnShipment.Type != constants.ShipmentTypeReturn {
		t.Fatalf("expected return shipment, err=%v", err)
	}

	// 承运商直接回传签收时自动经过揽收
	if err := env.returns.applyCarrierStatus(ret.ID, constants.ShipmentStatusDelivered); err != nil {
		t.Fatalf("apply carrier status failed: %v", err)
	}
	received, _ := env.returnRepo.GetByID(ret.ID)
	if received.Status != constants.ReturnStatusReceived {
		t.Fatalf("expected received, got %s", received.Status)
	}

	soapBefore := env.reloadProduct(t, soap.ID).StockQuantity
	balmBefore := env.reloadProduct(t, balm.ID).StockQuantity
	completed, err := env.returns.UpdateReturnStatus(ctx, ret.ID, constants.ReturnStatusCompleted, "", adminActor)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Status != constants.ReturnStatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("expected completed return, got %s", completed.Status)
	}
	if got := env.reloadProduct(t, soap.ID).StockQuantity; got != soapBefore+2 {
		t.Fatalf("expected soap restocked by 2, got %d -> %d", soapBefore, got)
	}
	if got := env.reloadProduct(t, balm.ID).StockQuantity; got != balmBefore {
		t.Fatalf("balm was not returned, stock changed %d -> %d", balmBefore, got)
	}
	refunds, _ := env.refundRepo.ListByOrder(order.ID)
	if len(refunds) != 1 || refunds[0].Type != constants.RefundTypeCustomerReturn || refunds[0].ReturnID == nil || *refunds[0].ReturnID != ret.ID {
		t.Fatalf("expected one customer_return refund, got %+v", refunds)
	}
	if got := env.reloadOrder(t, order.ID).Status; got != constants.OrderStatusRefunded {
		t.Fatalf("expected refunded order, got %s", got)
	}

	// 重复完成返回同一笔退款
	again, err := env.refunds.ProcessCustomerReturnRefund(ctx, ret.ID, adminActor)
	if err != nil || again.ID != refunds[0].ID {
		t.Fatalf("expected existing refund, got %+v err=%v", again, err)
	}
}

func TestCancelReturnOnlyBeforePickup(t *testing.T) {
	env := newTestEnv(t)
	user, order, _ := seedDeliveredPrepaid(t, env, "cancel-return@example.com")
	ctx := context.Background()

	ret, err := env.returns.CreateReturn(ctx, CreateReturnInput{OrderID: order.ID, Reason: "ordered twice"}, Actor{UserID: user.ID})
	if err != nil {
		t.Fatalf("create return failed: %v", err)
	}
	if _, err := env.returns.CancelReturn(ctx, ret.ID, Actor{UserID: user.ID + 1}); !errors.Is(err, ErrReturnNotFound) {
		t.Fatalf("expected foreign return hidden, got %v", err)
	}
	cancelled, err := env.returns.CancelReturn(ctx, ret.ID, Actor{UserID: user.ID})
	if err != nil {
		t.Fatalf("cancel return failed: %v", err)
	}
	if cancelled.Status != constants.ReturnStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if !containsTopic(env.outboxTopics(t), constants.EventReturnCancelled) {
		t.Fatalf("expected return.cancelled event")
	}

	second, err := env.returns.CreateReturn(ctx, CreateReturnInput{OrderID: order.ID, Reason: "second try"}, Actor{UserID: user.ID})
	if err != nil {
		t.Fatalf("new return after cancel failed: %v", err)
	}
	if _, err := env.returns.UpdateReturnStatus(ctx, second.ID, constants.ReturnStatusApproved, "", adminActor); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := env.returns.UpdateReturnStatus(ctx, second.ID, constants.ReturnStatusPickupScheduled, "", adminActor); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if _, err := env.returns.CancelReturn(ctx, second.ID, Actor{UserID: user.ID}); !errors.Is(err, ErrReturnNotCancellable) {
		t.Fatalf("expected not cancellable after scheduling, got %v", err)
	}

	stats, err := env.returns.ReturnStatistics(ctx)
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}
	if stats["total"] != 2 || stats[constants.ReturnStatusCancelled] != 1 || stats[constants.ReturnStatusPickupScheduled] != 1 {
		t.Fatalf("unexpected statistics: %v", stats)
	}
}

func TestCODReturnCompletesWithoutRefund(t *testing.T) {
	env := newTestEnv(t)
	user, order := seedCODOrder(t, env, "cod-return@example.com")
	ctx := context.Background()
	if _, err := env.shipments.ConfirmCODOrder(ctx, order.ID, Actor{UserID: user.ID}); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if _, err := env.orders.UpdateStatus(ctx, order.ID, constants.OrderStatusDelivered, "", adminActor); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	ret, err := env.returns.CreateReturn(ctx, CreateReturnInput{OrderID: order.ID, Reason: "broken seal"}, Actor{UserID: user.ID})
	if err != nil {
		t.Fatalf("create return failed: %v", err)
	}
	env.setStatus(t, &models.ReturnRequest{}, ret.ID, constants.ReturnStatusReceived)

	completed, err := env.returns.UpdateReturnStatus(ctx, ret.ID, constants.ReturnStatusCompleted, "", adminActor)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Status != constants.ReturnStatusCompleted || completed.AdminNote == "" {
		t.Fatalf("expected completed with manual note, got %+v", completed)
	}
	if got := env.countRows(t, &models.Refund{}, "order_id = ?", order.ID); got != 0 {
		t.Fatalf("cod return must not create refunds, got %d", got)
	}
}
