package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ayurwell-next/internal/config"
	"github.com/ayurwell-next/internal/logger"
	"github.com/ayurwell-next/internal/queue"
	"github.com/ayurwell-next/internal/service"

	"github.com/hibiken/asynq"
)

const (
	defaultOutboxSweepInterval = 15 * time.Second
	defaultAWBRetryInterval    = 10 * time.Minute
)

// Service 后台服务：asynq 消费、发件箱兜底扫描、AWB 定时补分配
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer

	outboxInterval time.Duration
	outboxBatch    int
	awbInterval    time.Duration
}

// NewService 创建后台服务；队列未启用时只运行定时扫描
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if consumer == nil || consumer.Container == nil {
		return nil, errors.New("consumer is nil")
	}
	s := &Service{
		name:           "worker",
		consumer:       consumer,
		outboxInterval: secondsOr(cfg.Scheduler.OutboxIntervalSeconds, defaultOutboxSweepInterval),
		outboxBatch:    cfg.Scheduler.OutboxBatchSize,
		awbInterval:    minutesOr(cfg.Scheduler.AWBRetryIntervalMinutes, defaultAWBRetryInterval),
	}
	if cfg.Queue.Enabled {
		opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
		s.server = asynq.NewServer(opt, serverCfg)
		s.mux = asynq.NewServeMux()
		consumer.Register(s.mux)
	}
	return s, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务，阻塞至 ctx 结束或 asynq 退出
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.consumer == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer.OutboxService != nil {
		go s.runLoop(ctx, "outbox_sweep", s.outboxInterval, s.sweepOutbox)
	}
	if s.consumer.AWBRetryScheduler != nil {
		go s.runLoop(ctx, "awb_retry", s.awbInterval, s.retryAWB)
	}
	if s.server == nil {
		<-ctx.Done()
		return nil
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

func (s *Service) runLoop(ctx context.Context, name string, interval time.Duration, runOnce func(context.Context)) {
	logger.Infow("worker_loop_start", "loop", name, "interval", interval.String())
	runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce(ctx)
		}
	}
}

func (s *Service) sweepOutbox(ctx context.Context) {
	result, err := s.consumer.OutboxService.DispatchPending(ctx, s.outboxBatch)
	if err != nil {
		logger.Warnw("worker_outbox_sweep_failed", "error", err)
		return
	}
	if result.Claimed > 0 {
		logger.Infow("worker_outbox_sweep_done",
			"claimed", result.Claimed,
			"sent", result.Sent,
			"retried", result.Retried,
			"dead", result.Dead,
		)
	}
}

func (s *Service) retryAWB(ctx context.Context) {
	if _, err := s.consumer.AWBRetryScheduler.RunOnce(ctx); err != nil {
		if errors.Is(err, service.ErrAWBRetryRunning) {
			logger.Debugw("worker_awb_retry_skip_running")
			return
		}
		if !errors.Is(err, context.Canceled) {
			logger.Warnw("worker_awb_retry_failed", "error", err)
		}
	}
}

func secondsOr(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}

func minutesOr(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Minute
}
