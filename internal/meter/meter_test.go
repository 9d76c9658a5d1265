package meter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/snapdish/snapdish/internal/config"
	"github.com/snapdish/snapdish/internal/database"
	"github.com/snapdish/snapdish/internal/log"
	"github.com/snapdish/snapdish/internal/source"
)

type fakeMeterStore struct {
	attemptCount  int64
	oldestAttempt time.Time
	noAttempts    bool
	balance       int32

	deductions []database.DeductTokensParams
	recorded   []database.RecordImportAttemptParams
	deductErr  error
	balanceErr error
}

func (f *fakeMeterStore) CountImportAttempts(_ context.Context, _ int64, _ time.Time) (int64, error) {
	return f.attemptCount, nil
}

func (f *fakeMeterStore) OldestImportAttempt(_ context.Context, _ int64, _ time.Time) (time.Time, error) {
	if f.noAttempts {
		return time.Time{}, pgx.ErrNoRows
	}
	return f.oldestAttempt, nil
}

func (f *fakeMeterStore) GetTokenBalance(_ context.Context, _ int64) (int32, error) {
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balance, nil
}

func (f *fakeMeterStore) DeductTokens(_ context.Context, arg database.DeductTokensParams) error {
	if f.deductErr != nil {
		return f.deductErr
	}
	f.deductions = append(f.deductions, arg)
	f.balance -= arg.Amount
	return nil
}

func (f *fakeMeterStore) RecordImportAttempt(_ context.Context, arg database.RecordImportAttemptParams) error {
	f.recorded = append(f.recorded, arg)
	return nil
}

func newTestGate(store *fakeMeterStore, now time.Time) *Gate {
	g := NewGate(store, log.NullLogger())
	g.now = func() time.Time { return now }
	return g
}

func TestCost(t *testing.T) {
	tests := []struct {
		kind source.Kind
		want int
	}{
		{source.KindWebsite, config.CostWebsite},
		{source.KindVideo, config.CostVideo},
		{source.KindImage, config.CostImage},
		{source.KindPDF, config.CostPDF},
	}

	for _, tt := range tests {
		if got := Cost(tt.kind); got != tt.want {
			t.Errorf("Cost(%q) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestAdmitRateLimit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	oldest := now.Add(-20 * time.Hour)

	tests := []struct {
		name          string
		attemptCount  int64
		wantAdmitted  bool
		wantRemaining int
	}{
		{
			name:          "well under the ceiling",
			attemptCount:  10,
			wantAdmitted:  true,
			wantRemaining: config.RateLimitCeiling - 10,
		},
		{
			name:          "one slot left",
			attemptCount:  config.RateLimitCeiling - 1,
			wantAdmitted:  true,
			wantRemaining: 1,
		},
		{
			name:         "at the ceiling",
			attemptCount: config.RateLimitCeiling,
			wantAdmitted: false,
		},
		{
			name:         "over the ceiling",
			attemptCount: config.RateLimitCeiling + 5,
			wantAdmitted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeMeterStore{attemptCount: tt.attemptCount, oldestAttempt: oldest, balance: 100}
			g := newTestGate(store, now)

			admission, err := g.Admit(context.Background(), 1, source.KindWebsite)

			if !tt.wantAdmitted {
				var rateErr *RateLimitError
				if !errors.As(err, &rateErr) {
					t.Fatalf("Admit() error = %v, want *RateLimitError", err)
				}
				if rateErr.Remaining != 0 {
					t.Errorf("remaining = %d, want 0", rateErr.Remaining)
				}
				if want := oldest.Add(config.RateLimitWindow); !rateErr.ResetAt.Equal(want) {
					t.Errorf("reset at = %v, want %v", rateErr.ResetAt, want)
				}
				return
			}

			if err != nil {
				t.Fatalf("Admit() unexpected error: %v", err)
			}
			if admission.RateLimitRemaining != tt.wantRemaining {
				t.Errorf("remaining = %d, want %d", admission.RateLimitRemaining, tt.wantRemaining)
			}
		})
	}
}

func TestAdmitBalance(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		kind         source.Kind
		balance      int32
		wantAdmitted bool
	}{
		{
			name:         "balance covers website",
			kind:         source.KindWebsite,
			balance:      1,
			wantAdmitted: true,
		},
		{
			name:         "balance exactly equals video cost",
			kind:         source.KindVideo,
			balance:      config.CostVideo,
			wantAdmitted: true,
		},
		{
			name:         "balance one below image cost",
			kind:         source.KindImage,
			balance:      config.CostImage - 1,
			wantAdmitted: false,
		},
		{
			name:         "empty account",
			kind:         source.KindWebsite,
			balance:      0,
			wantAdmitted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeMeterStore{noAttempts: true, balance: tt.balance}
			g := newTestGate(store, now)

			admission, err := g.Admit(context.Background(), 1, tt.kind)

			if !tt.wantAdmitted {
				var tokensErr *InsufficientTokensError
				if !errors.As(err, &tokensErr) {
					t.Fatalf("Admit() error = %v, want *InsufficientTokensError", err)
				}
				if tokensErr.Required != Cost(tt.kind) {
					t.Errorf("required = %d, want %d", tokensErr.Required, Cost(tt.kind))
				}
				if tokensErr.Available != int(tt.balance) {
					t.Errorf("available = %d, want %d", tokensErr.Available, tt.balance)
				}
				return
			}

			if err != nil {
				t.Fatalf("Admit() unexpected error: %v", err)
			}
			if admission.Cost != Cost(tt.kind) {
				t.Errorf("cost = %d, want %d", admission.Cost, Cost(tt.kind))
			}
			if len(store.deductions) != 0 {
				t.Error("Admit() must not deduct tokens")
			}
		})
	}
}

func TestAdmitEmptyWindowResetsNow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeMeterStore{noAttempts: true, balance: 10}
	g := newTestGate(store, now)

	admission, err := g.Admit(context.Background(), 1, source.KindWebsite)
	if err != nil {
		t.Fatalf("Admit() unexpected error: %v", err)
	}
	if !admission.RateLimitReset.Equal(now) {
		t.Errorf("reset = %v, want now for an empty window", admission.RateLimitReset)
	}
}

func TestDeduct(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeMeterStore{noAttempts: true, balance: 10}
	g := newTestGate(store, now)

	remaining := g.Deduct(context.Background(), 1, config.CostVideo, 10)

	if remaining != 10-config.CostVideo {
		t.Errorf("Deduct() remaining = %d, want %d", remaining, 10-config.CostVideo)
	}
	if len(store.deductions) != 1 {
		t.Fatalf("expected 1 deduction, got %d", len(store.deductions))
	}
	if store.deductions[0].Amount != int32(config.CostVideo) {
		t.Errorf("deducted %d, want %d", store.deductions[0].Amount, config.CostVideo)
	}
}

func TestDeductFailureDoesNotPanic(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeMeterStore{noAttempts: true, balance: 10, deductErr: database.ErrInsufficientBalance}
	g := newTestGate(store, now)

	// The recipe already exists at this point; the failure is logged and the
	// current balance reported.
	remaining := g.Deduct(context.Background(), 1, config.CostVideo, 10)
	if remaining != 10 {
		t.Errorf("Deduct() remaining = %d, want unchanged balance 10", remaining)
	}
}

func TestDeductBalanceReadFailure(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("deduction applied", func(t *testing.T) {
		store := &fakeMeterStore{noAttempts: true, balance: 10, balanceErr: errors.New("connection reset")}
		g := newTestGate(store, now)

		// The debit went through, so the admission-time balance minus the cost
		// is the best available answer.
		remaining := g.Deduct(context.Background(), 1, config.CostVideo, 10)
		if remaining != 10-config.CostVideo {
			t.Errorf("Deduct() remaining = %d, want %d", remaining, 10-config.CostVideo)
		}
	})

	t.Run("deduction failed too", func(t *testing.T) {
		store := &fakeMeterStore{
			noAttempts: true,
			balance:    10,
			deductErr:  database.ErrInsufficientBalance,
			balanceErr: errors.New("connection reset"),
		}
		g := newTestGate(store, now)

		remaining := g.Deduct(context.Background(), 1, config.CostVideo, 10)
		if remaining != 10 {
			t.Errorf("Deduct() remaining = %d, want unchanged balance 10", remaining)
		}
	})
}

func TestQuota(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeMeterStore{
		attemptCount:  config.RateLimitCeiling + 3,
		oldestAttempt: now.Add(-23 * time.Hour),
		balance:       7,
	}
	g := newTestGate(store, now)

	quota, err := g.Quota(context.Background(), 1)
	if err != nil {
		t.Fatalf("Quota() unexpected error: %v", err)
	}
	if quota.RateLimitRemaining != 0 {
		t.Errorf("remaining = %d, want clamped to 0", quota.RateLimitRemaining)
	}
	if quota.Balance != 7 {
		t.Errorf("balance = %d, want 7", quota.Balance)
	}
	if want := now.Add(time.Hour); !quota.RateLimitReset.Equal(want) {
		t.Errorf("reset = %v, want %v", quota.RateLimitReset, want)
	}
}

func TestRecordAttempt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeMeterStore{noAttempts: true}
	g := newTestGate(store, now)

	g.RecordAttempt(context.Background(), 42, source.KindVideo, false)

	if len(store.recorded) != 1 {
		t.Fatalf("expected 1 recorded attempt, got %d", len(store.recorded))
	}
	got := store.recorded[0]
	if got.AccountID != 42 || got.SourceKind != "video" || got.Succeeded {
		t.Errorf("recorded attempt = %+v", got)
	}
}
