package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupRepositoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("migrate models failed: %v", err)
	}
	return db
}

func createRepositoryTestOrder(t *testing.T, db *gorm.DB, status string) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNo:       fmt.Sprintf("AW-%d", time.Now().UnixNano()),
		UserID:        1,
		AddressID:     1,
		PaymentMethod: constants.PaymentMethodPrepaid,
		Status:        status,
		Currency:      "INR",
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func TestOrderTransitionStatusIsConditional(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewOrderRepository(db)
	order := createRepositoryTestOrder(t, db, constants.OrderStatusPending)

	ok, err := repo.TransitionStatus(order.ID, constants.OrderStatusPending, constants.OrderStatusPaid, nil)
	if err != nil || !ok {
		t.Fatalf("first transition should succeed, ok=%v err=%v", ok, err)
	}
	ok, err = repo.TransitionStatus(order.ID, constants.OrderStatusPending, constants.OrderStatusCancelled, nil)
	if err != nil {
		t.Fatalf("second transition failed: %v", err)
	}
	if ok {
		t.Fatalf("stale transition should not apply")
	}

	reloaded, err := repo.GetByID(order.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if reloaded.Status != constants.OrderStatusPaid {
		t.Fatalf("status want paid got %s", reloaded.Status)
	}
}

func TestLatestHistoryByStatusSkipsNotes(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewOrderRepository(db)
	order := createRepositoryTestOrder(t, db, constants.OrderStatusDelivered)

	if err := repo.AppendHistory(order.ID, constants.OrderStatusDelivered, "Delivered by carrier"); err != nil {
		t.Fatalf("append history failed: %v", err)
	}
	if err := repo.AppendNote(order.ID, constants.OrderStatusDelivered, "Return requested: damaged"); err != nil {
		t.Fatalf("append note failed: %v", err)
	}

	row, err := repo.LatestHistoryByStatus(order.ID, constants.OrderStatusDelivered)
	if err != nil || row == nil {
		t.Fatalf("latest history failed: row=%v err=%v", row, err)
	}
	if !row.Transition || row.Note != "Delivered by carrier" {
		t.Fatalf("expected delivered transition row, got %+v", row)
	}
	rows, err := repo.ListHistory(order.ID)
	if err != nil {
		t.Fatalf("list history failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("history rows want 2 got %d", len(rows))
	}
}

func TestShipmentCreateIfAbsentDedupes(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewShipmentRepository(db)
	order := createRepositoryTestOrder(t, db, constants.OrderStatusPaid)

	first := &models.Shipment{
		OrderID:   order.ID,
		Type:      constants.ShipmentTypeForward,
		DedupeKey: fmt.Sprintf("forward:%d", order.ID),
		Status:    constants.ShipmentStatusCreated,
	}
	created, err := repo.CreateIfAbsent(first)
	if err != nil || !created {
		t.Fatalf("first create should succeed, created=%v err=%v", created, err)
	}
	second := &models.Shipment{
		OrderID:   order.ID,
		Type:      constants.ShipmentTypeForward,
		DedupeKey: fmt.Sprintf("forward:%d", order.ID),
		Status:    constants.ShipmentStatusCreated,
	}
	created, err = repo.CreateIfAbsent(second)
	if err != nil {
		t.Fatalf("duplicate create failed: %v", err)
	}
	if created {
		t.Fatalf("duplicate shipment should not be created")
	}

	var count int64
	db.Model(&models.Shipment{}).Where("order_id = ?", order.ID).Count(&count)
	if count != 1 {
		t.Fatalf("shipment count want 1 got %d", count)
	}
}

func TestShipmentListPendingAWB(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewShipmentRepository(db)
	awb := "AWB123"

	rows := []models.Shipment{
		{OrderID: 1, Type: constants.ShipmentTypeForward, DedupeKey: "p1", CarrierShipmentID: "S1", Status: constants.ShipmentStatusCreated},
		{OrderID: 2, Type: constants.ShipmentTypeForward, DedupeKey: "p2", CarrierShipmentID: "S2", Status: constants.ShipmentStatusAWBAssigned, AWB: &awb},
		{OrderID: 3, Type: constants.ShipmentTypeForward, DedupeKey: "p3", CarrierShipmentID: "", Status: constants.ShipmentStatusCreated},
		{OrderID: 4, Type: constants.ShipmentTypeForward, DedupeKey: "p4", CarrierShipmentID: "S4", Status: constants.ShipmentStatusCancelled},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("create shipments failed: %v", err)
	}

	pending, err := repo.ListPendingAWB(10)
	if err != nil {
		t.Fatalf("list pending awb failed: %v", err)
	}
	if len(pending) != 1 || pending[0].OrderID != 1 {
		t.Fatalf("only shipment of order 1 should be pending, got %+v", pending)
	}
}

func TestShipmentListAndStaleReservations(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewShipmentRepository(db)
	awb := "AWB-7"
	old := time.Now().Add(-time.Hour)
	rows := []*models.Shipment{
		{OrderID: 7, Type: constants.ShipmentTypeForward, DedupeKey: "l7", CarrierOrderID: "SR7", CarrierShipmentID: "S7", Status: constants.ShipmentStatusAWBAssigned, AWB: &awb},
		{OrderID: 8, Type: constants.ShipmentTypeForward, DedupeKey: "l8", Status: constants.ShipmentStatusCreated, CreatedAt: old},
		{OrderID: 9, Type: constants.ShipmentTypeForward, DedupeKey: "l9", Status: constants.ShipmentStatusCreated},
		{OrderID: 7, Type: constants.ShipmentTypeReturn, DedupeKey: "r7", Status: constants.ShipmentStatusCreated, CreatedAt: old},
	}
	for _, row := range rows {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("create shipment failed: %v", err)
		}
	}

	list, total, err := repo.List(ShipmentListFilter{OrderID: 7})
	if err != nil || total != 2 || len(list) != 2 {
		t.Fatalf("order filter want 2 got total=%d err=%v", total, err)
	}
	_, total, err = repo.List(ShipmentListFilter{OrderID: 7, PendingAWB: true})
	if err != nil || total != 1 {
		t.Fatalf("pending awb within order want 1 got %d err=%v", total, err)
	}
	list, total, err = repo.List(ShipmentListFilter{AWB: awb})
	if err != nil || total != 1 || list[0].OrderID != 7 {
		t.Fatalf("awb filter failed: total=%d err=%v", total, err)
	}

	stale, err := repo.ListStaleReservations(time.Now().Add(-time.Minute), 10)
	if err != nil {
		t.Fatalf("list stale reservations failed: %v", err)
	}
	if len(stale) != 1 || stale[0].OrderID != 8 {
		t.Fatalf("only the old forward reservation should be stale, got %+v", stale)
	}
}

func TestWebhookEventRecordIsIdempotent(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewWebhookEventRepository(db)

	event := func() *models.WebhookEvent {
		return &models.WebhookEvent{
			Source:    constants.WebhookSourceGateway,
			EventKey:  "evt_001",
			EventType: "payment.captured",
		}
	}
	fresh, err := repo.Record(event())
	if err != nil || !fresh {
		t.Fatalf("first record should be fresh, fresh=%v err=%v", fresh, err)
	}
	fresh, err = repo.Record(event())
	if err != nil {
		t.Fatalf("duplicate record failed: %v", err)
	}
	if fresh {
		t.Fatalf("duplicate event should be reported as seen")
	}

	other := event()
	other.Source = constants.WebhookSourceCarrier
	fresh, err = repo.Record(other)
	if err != nil || !fresh {
		t.Fatalf("same key from another source should be fresh, fresh=%v err=%v", fresh, err)
	}

	fresh, err = repo.Record(&models.WebhookEvent{Source: constants.WebhookSourceCarrier})
	if err != nil || !fresh {
		t.Fatalf("event without key should always pass, fresh=%v err=%v", fresh, err)
	}
}

func TestOutboxClaimOnceAndReclaimStale(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewOutboxRepository(db)
	now := time.Now()

	msg := &models.OutboxMessage{
		MessageID:     "msg-1",
		Kind:          constants.OutboxKindEvent,
		Topic:         constants.EventOrderPaid,
		AggregateType: constants.AggregateOrder,
		AggregateID:   1,
		Status:        constants.OutboxStatusPending,
		NextAttemptAt: now.Add(-time.Minute),
	}
	if err := repo.Create(msg); err != nil {
		t.Fatalf("create outbox message failed: %v", err)
	}

	claimed, err := repo.Claim(msg.ID, now, now.Add(-5*time.Minute))
	if err != nil || !claimed {
		t.Fatalf("first claim should succeed, claimed=%v err=%v", claimed, err)
	}
	claimed, err = repo.Claim(msg.ID, now, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if claimed {
		t.Fatalf("message should not be claimed twice")
	}

	due, err := repo.ListDue(now, now.Add(-5*time.Minute), 10)
	if err != nil {
		t.Fatalf("list due failed: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("fresh claim should hide the message, got %d", len(due))
	}

	// 认领超时后重新可见
	later := now.Add(10 * time.Minute)
	due, err = repo.ListDue(later, later.Add(-5*time.Minute), 10)
	if err != nil {
		t.Fatalf("list due after timeout failed: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("stale claim should be visible again, got %d", len(due))
	}

	if err := repo.MarkSent(msg.ID, later); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	due, _ = repo.ListDue(later.Add(time.Hour), later, 10)
	if len(due) != 0 {
		t.Fatalf("sent message should not be due, got %d", len(due))
	}
}

func TestUserListByIDs(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewUserRepository(db)

	users := []models.User{
		{Email: "a@example.com", Role: constants.UserRoleCustomer},
		{Email: "b@example.com", Role: constants.UserRoleCustomer},
		{Email: "c@example.com", Role: constants.UserRoleAdmin},
	}
	if err := db.Create(&users).Error; err != nil {
		t.Fatalf("create users failed: %v", err)
	}

	rows, err := repo.ListByIDs([]uint{users[0].ID, users[2].ID, 999})
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("users want 2 got %d", len(rows))
	}

	rows, err = repo.ListByIDs(nil)
	if err != nil {
		t.Fatalf("empty list failed: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("empty ids should return no users, got %d", len(rows))
	}
}
