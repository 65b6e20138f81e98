package sequence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pinggolf/aps-scheduler/internal/model"
)

// fakeRepo is a sequenceRepo whose responses are scripted per call.
type fakeRepo struct {
	mu    sync.Mutex
	calls int
	errs  []error // one error per call; nil once exhausted means success
	seq   int
}

func (f *fakeRepo) NextWorkOrderSequence(ctx context.Context, orderType string, planDate time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return 0, f.errs[idx]
	}
	f.seq++
	return f.seq, nil
}

func TestAllocatorSucceedsOnFirstTry(t *testing.T) {
	repo := &fakeRepo{}
	a := NewAllocator(repo, nil, 3, time.Millisecond)
	result := a.Next(context.Background(), model.OrderTypeHWS, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	if result.IsBackup {
		t.Fatalf("expected a durable sequence, got a backup fallback: %s", result.BackupReason)
	}
	if result.PlanID != "HWS000000001" {
		t.Fatalf("expected plan id HWS000000001, got %s", result.PlanID)
	}
}

func TestAllocatorRetriesThenSucceeds(t *testing.T) {
	repo := &fakeRepo{errs: []error{errors.New("transient"), errors.New("transient")}}
	a := NewAllocator(repo, nil, 3, time.Millisecond)
	result := a.Next(context.Background(), model.OrderTypeHJB, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	if result.IsBackup {
		t.Fatalf("expected retries to eventually succeed without falling back")
	}
	if repo.calls != 3 {
		t.Fatalf("expected 3 attempts (2 failures + 1 success), got %d", repo.calls)
	}
}

func TestAllocatorFallsBackToBackupAfterExhaustingRetries(t *testing.T) {
	repo := &fakeRepo{errs: []error{
		errors.New("down"), errors.New("down"), errors.New("down"), errors.New("down"),
	}}
	a := NewAllocator(repo, nil, 3, time.Millisecond)
	result := a.Next(context.Background(), model.OrderTypeHWS, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	if !result.IsBackup {
		t.Fatalf("expected fallback to a backup sequence after exhausting retries")
	}
	if result.BackupReason != "down" {
		t.Fatalf("expected backup reason to carry the last error, got %q", result.BackupReason)
	}
	if len(result.PlanID) != len("HWS")+9 {
		t.Fatalf("expected a 9-digit zero-padded backup plan id, got %s", result.PlanID)
	}
}

func TestAllocatorWithGenerousRateLimitDoesNotFallBack(t *testing.T) {
	repo := &fakeRepo{}
	limiters := NewLimiterFactory(1000, 1000)
	a := NewAllocator(repo, limiters, 3, time.Millisecond)
	result := a.Next(context.Background(), model.OrderTypeHWS, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	if result.IsBackup {
		t.Fatalf("expected a generous rate limit to not force a fallback")
	}
}
