package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/finbridge/sms-gateway/internal/domain"
	"github.com/finbridge/sms-gateway/internal/port"
)

// RecoverySweep re-dispatches messages left pending by a crash. It runs once
// per process start, after a delay that lets normal traffic settle, and pages
// through pending rows in insertion order.
type RecoverySweep struct {
	store      port.MessageStore
	dispatcher *DispatchService
	delay      time.Duration
	pageSize   int
	logger     *zap.Logger
}

func NewRecoverySweep(store port.MessageStore, dispatcher *DispatchService, delay time.Duration, pageSize int, logger *zap.Logger) *RecoverySweep {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &RecoverySweep{
		store:      store,
		dispatcher: dispatcher,
		delay:      delay,
		pageSize:   pageSize,
		logger:     logger,
	}
}

// Run blocks for the startup delay, sweeps once and returns.
func (s *RecoverySweep) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.delay):
	}
	s.sweep(ctx)
}

func (s *RecoverySweep) sweep(ctx context.Context) {
	var (
		afterID   int64
		recovered int
	)

	for {
		if ctx.Err() != nil {
			return
		}

		page, err := s.store.ListByStatus(ctx, domain.StatusPending, afterID, s.pageSize)
		if err != nil {
			s.logger.Error("recovery sweep aborted", zap.Error(err))
			return
		}
		if len(page) == 0 {
			break
		}

		// Synchronous on purpose: the next page query must not see rows
		// that are already in flight.
		s.dispatcher.ProcessBatch(ctx, page)

		recovered += len(page)
		afterID = page[len(page)-1].ID

		if len(page) < s.pageSize {
			break
		}
	}

	if recovered > 0 {
		s.logger.Info("recovery sweep finished", zap.Int("recovered", recovered))
	} else {
		s.logger.Debug("recovery sweep found no pending messages")
	}
}
