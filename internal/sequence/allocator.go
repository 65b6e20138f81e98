// Package sequence generates MES-format plan IDs: "H" + order type (2
// letters) + a 9-digit zero-padded, durably-persisted, per-(order_type,
// plan_date) sequence number. It is grounded on the original
// work_order_sequence_service.py's database-backed counter and fallback
// behavior.
package sequence

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/pinggolf/aps-scheduler/internal/model"
)

// sequenceRepo is the durable counter Allocator advances. *db.Queries
// satisfies it; tests supply a fake.
type sequenceRepo interface {
	NextWorkOrderSequence(ctx context.Context, orderType string, planDate time.Time) (int, error)
}

// Allocator hands out MES plan IDs, retrying transient database failures
// with backoff before falling back to a randomly-numbered backup ID.
type Allocator struct {
	repo        sequenceRepo
	limiters    *LimiterFactory
	MaxRetries  int
	BaseBackoff time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewAllocator(repo sequenceRepo, limiters *LimiterFactory, maxRetries int, baseBackoff time.Duration) *Allocator {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if baseBackoff <= 0 {
		baseBackoff = 100 * time.Millisecond
	}
	return &Allocator{
		repo:        repo,
		limiters:    limiters,
		MaxRetries:  maxRetries,
		BaseBackoff: baseBackoff,
		rng:         rand.New(rand.NewSource(1)),
	}
}

// Result is one allocated plan ID plus whether it had to fall back to a
// non-durable backup sequence.
type Result struct {
	PlanID       string
	IsBackup     bool
	BackupReason string
}

// Next allocates the next plan ID for (orderType, planDate). It retries
// MaxRetries times with exponential backoff against transient errors from
// the durable counter, rate-limited by the shared limiter, before falling
// back to a random 9-digit sequence flagged as a backup.
func (a *Allocator) Next(ctx context.Context, orderType model.OrderType, planDate time.Time) Result {
	var lastErr error
	for attempt := 0; attempt <= a.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := a.BaseBackoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return a.backup(orderType, ctx.Err().Error())
			}
		}
		if a.limiters != nil {
			if err := a.limiters.For(string(orderType)).Wait(ctx); err != nil {
				return a.backup(orderType, err.Error())
			}
		}

		seq, err := a.repo.NextWorkOrderSequence(ctx, string(orderType), planDate)
		if err == nil {
			return Result{PlanID: formatPlanID(orderType, seq)}
		}
		lastErr = err
	}
	return a.backup(orderType, lastErr.Error())
}

func (a *Allocator) backup(orderType model.OrderType, reason string) Result {
	a.rngMu.Lock()
	seq := a.rng.Intn(999999999) + 1
	a.rngMu.Unlock()
	return Result{
		PlanID:       formatPlanID(orderType, seq),
		IsBackup:     true,
		BackupReason: reason,
	}
}

// formatPlanID builds the MES plan ID: "H" + order type + 9-digit
// zero-padded sequence. OrderType already carries the "HWS"/"HJB" letters,
// so this reduces to orderType + zero-padded sequence.
func formatPlanID(orderType model.OrderType, seq int) string {
	return fmt.Sprintf("%s%09d", orderType, seq)
}
