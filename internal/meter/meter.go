// Package meter enforces the rolling rate limit and prepaid token balance
// around the import pipeline.
package meter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/snapdish/snapdish/internal/config"
	"github.com/snapdish/snapdish/internal/database"
	"github.com/snapdish/snapdish/internal/source"
)

// Store is the slice of the database the gate needs.
type Store interface {
	CountImportAttempts(ctx context.Context, accountID int64, since time.Time) (int64, error)
	OldestImportAttempt(ctx context.Context, accountID int64, since time.Time) (time.Time, error)
	GetTokenBalance(ctx context.Context, accountID int64) (int32, error)
	DeductTokens(ctx context.Context, arg database.DeductTokensParams) error
	RecordImportAttempt(ctx context.Context, arg database.RecordImportAttemptParams) error
}

// RateLimitError reports a rejected import with the remaining quota and the
// window's reset time.
type RateLimitError struct {
	Remaining int
	ResetAt   time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("meter: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// InsufficientTokensError reports a rejected import with the exact required
// and available balances.
type InsufficientTokensError struct {
	Required  int
	Available int
}

func (e *InsufficientTokensError) Error() string {
	return fmt.Sprintf("meter: insufficient tokens: required %d, available %d", e.Required, e.Available)
}

// Cost returns the token cost for a source kind. Costs are configuration
// constants, not computed values.
func Cost(kind source.Kind) int {
	switch kind {
	case source.KindWebsite:
		return config.CostWebsite
	case source.KindVideo:
		return config.CostVideo
	case source.KindImage:
		return config.CostImage
	case source.KindPDF:
		return config.CostPDF
	}
	return config.CostPDF // unreachable for classified sources; charge the ceiling
}

// Admission is the gate's verdict for an admitted import.
type Admission struct {
	Cost               int
	Balance            int
	RateLimitRemaining int
	RateLimitReset     time.Time
}

type Gate struct {
	store   Store
	log     *slog.Logger
	ceiling int
	window  time.Duration
	now     func() time.Time
}

func NewGate(store Store, log *slog.Logger) *Gate {
	return &Gate{
		store:   store,
		log:     log,
		ceiling: config.RateLimitCeiling,
		window:  config.RateLimitWindow,
		now:     time.Now,
	}
}

// Admit runs the rate check then the balance check, rejecting before any
// paid work begins. The checks are read-then-act without a transactional
// guard; concurrent imports from one account can race past both. That window
// is accepted.
func (g *Gate) Admit(ctx context.Context, accountID int64, kind source.Kind) (*Admission, error) {
	now := g.now()
	since := now.Add(-g.window)

	count, err := g.store.CountImportAttempts(ctx, accountID, since)
	if err != nil {
		return nil, fmt.Errorf("meter: counting import attempts: %w", err)
	}
	remaining := g.ceiling - int(count)
	resetAt, err := g.windowReset(ctx, accountID, since, now)
	if err != nil {
		return nil, err
	}
	if remaining <= 0 {
		return nil, &RateLimitError{Remaining: 0, ResetAt: resetAt}
	}

	cost := Cost(kind)
	balance, err := g.store.GetTokenBalance(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("meter: reading token balance: %w", err)
	}
	if int(balance) < cost {
		return nil, &InsufficientTokensError{Required: cost, Available: int(balance)}
	}

	return &Admission{
		Cost:               cost,
		Balance:            int(balance),
		RateLimitRemaining: remaining,
		RateLimitReset:     resetAt,
	}, nil
}

// Quota reports the current rate-limit and balance state without admitting
// an import.
func (g *Gate) Quota(ctx context.Context, accountID int64) (*Admission, error) {
	now := g.now()
	since := now.Add(-g.window)

	count, err := g.store.CountImportAttempts(ctx, accountID, since)
	if err != nil {
		return nil, fmt.Errorf("meter: counting import attempts: %w", err)
	}
	remaining := max(g.ceiling-int(count), 0)
	resetAt, err := g.windowReset(ctx, accountID, since, now)
	if err != nil {
		return nil, err
	}
	balance, err := g.store.GetTokenBalance(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("meter: reading token balance: %w", err)
	}

	return &Admission{
		Balance:            int(balance),
		RateLimitRemaining: remaining,
		RateLimitReset:     resetAt,
	}, nil
}

// Deduct debits the account after the recipe row has been durably created.
// A deduction failure is logged but does not roll back the recipe; that
// inconsistency window (recipe created, balance not charged) is accepted.
// balance is the admission-time reading, used to derive the remaining
// balance when the post-deduction read fails. Returns the remaining balance.
func (g *Gate) Deduct(ctx context.Context, accountID int64, cost, balance int) int {
	deductErr := g.store.DeductTokens(ctx, database.DeductTokensParams{
		AccountID: accountID,
		Amount:    int32(cost),
	})
	if deductErr != nil {
		g.log.ErrorContext(ctx, "meter: token deduction failed",
			slog.Int64("account_id", accountID), slog.Int("cost", cost), slog.Any("error", deductErr))
	}

	current, err := g.store.GetTokenBalance(ctx, accountID)
	if err != nil {
		g.log.ErrorContext(ctx, "meter: reading balance after deduction", slog.Any("error", err))
		if deductErr != nil {
			return balance
		}
		return balance - cost
	}
	return int(current)
}

// RecordAttempt appends the import to the attempt log that the rate window
// is derived from.
func (g *Gate) RecordAttempt(ctx context.Context, accountID int64, kind source.Kind, succeeded bool) {
	err := g.store.RecordImportAttempt(ctx, database.RecordImportAttemptParams{
		AccountID:  accountID,
		SourceKind: string(kind),
		Succeeded:  succeeded,
	})
	if err != nil {
		g.log.ErrorContext(ctx, "meter: recording import attempt", slog.Any("error", err))
	}
}

// windowReset computes when the trailing window next frees a slot: the
// oldest attempt inside the window ages out after one full window length.
func (g *Gate) windowReset(ctx context.Context, accountID int64, since, now time.Time) (time.Time, error) {
	oldest, err := g.store.OldestImportAttempt(ctx, accountID, since)
	if errors.Is(err, pgx.ErrNoRows) {
		return now, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("meter: finding oldest attempt: %w", err)
	}
	return oldest.Add(g.window), nil
}
