package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ayurwell-next/internal/logger"
	"github.com/ayurwell-next/internal/models"
	"github.com/ayurwell-next/internal/repository"
)

const defaultAWBRetryBatch = 10

// AWBAssigner 单个运单的 AWB 分配与中断建单的续建
type AWBAssigner interface {
	AssignAWB(ctx context.Context, shipmentID uint) (*models.Shipment, error)
	ResumeReservation(ctx context.Context, shipmentID uint) (*models.Shipment, error)
}

// AWBRetryResult 单次补分配结果
type AWBRetryResult struct {
	Resumed  int `json:"resumed"`
	Scanned  int `json:"scanned"`
	Assigned int `json:"assigned"`
	Pending  int `json:"pending"`
	Failed   int `json:"failed"`
}

// AWBRetryScheduler 定时为尚无 AWB 的运单补分配，同一时刻只允许一个批次运行
type AWBRetryScheduler struct {
	shipmentRepo repository.ShipmentRepository
	assigner     AWBAssigner
	batchSize    int
	running      atomic.Bool
}

// NewAWBRetryScheduler 创建补分配调度器
func NewAWBRetryScheduler(shipmentRepo repository.ShipmentRepository, assigner AWBAssigner, batchSize int) *AWBRetryScheduler {
	if batchSize <= 0 {
		batchSize = defaultAWBRetryBatch
	}
	return &AWBRetryScheduler{
		shipmentRepo: shipmentRepo,
		assigner:     assigner,
		batchSize:    batchSize,
	}
}

// RunOnce 执行一个批次，单个运单失败不影响其余运单
func (s *AWBRetryScheduler) RunOnce(ctx context.Context) (AWBRetryResult, error) {
	var result AWBRetryResult
	if !s.running.CompareAndSwap(false, true) {
		return result, ErrAWBRetryRunning
	}
	defer s.running.Store(false)

	// 先续建中断的占位运单，成功后它们会出现在下面的待分配列表中
	stale, err := s.shipmentRepo.ListStaleReservations(time.Now().Add(-reservationStaleAfter), s.batchSize)
	if err != nil {
		return result, err
	}
	for i := range stale {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if _, err := s.assigner.ResumeReservation(ctx, stale[i].ID); err != nil {
			result.Failed++
			logger.Warnw("awb_retry_resume_failed", "shipment_id", stale[i].ID, "error", err)
			continue
		}
		result.Resumed++
	}

	shipments, err := s.shipmentRepo.ListPendingAWB(s.batchSize)
	if err != nil {
		return result, err
	}
	for i := range shipments {
		if ctx.Err() != nil {
			break
		}
		result.Scanned++
		updated, err := s.assigner.AssignAWB(ctx, shipments[i].ID)
		switch {
		case err != nil:
			result.Failed++
			logger.Warnw("awb_retry_item_failed", "shipment_id", shipments[i].ID, "error", err)
		case updated != nil && updated.HasAWB():
			result.Assigned++
		default:
			result.Pending++
		}
	}
	if result.Scanned > 0 || result.Resumed > 0 {
		logger.Infow("awb_retry_batch_done",
			"resumed", result.Resumed,
			"scanned", result.Scanned,
			"assigned", result.Assigned,
			"pending", result.Pending,
			"failed", result.Failed,
		)
	}
	return result, ctx.Err()
}
