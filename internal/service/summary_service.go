package service

import (
	"context"
	"iter"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/fee-ledger-api/internal/models"
	appErrors "github.com/noah-isme/fee-ledger-api/pkg/errors"
)

type balanceSource interface {
	Balances(ctx context.Context) iter.Seq2[models.StudentBalance, error]
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SummaryService computes institution-wide fee totals from current store state.
type SummaryService struct {
	balances balanceSource
	policy   models.FeePolicy
	cache    summaryCache
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewSummaryService constructs the aggregation service. cache may be nil.
func NewSummaryService(balances balanceSource, policy models.FeePolicy, cache summaryCache, cacheTTL time.Duration, logger *zap.Logger) *SummaryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = (*CacheService)(nil)
	}
	return &SummaryService{
		balances: balances,
		policy:   policy,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// PendingOutstandingTotal sums max(TotalFee - paid, 0) over every student.
// Students without payments contribute the full fee.
func (s *SummaryService) PendingOutstandingTotal(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for balance, err := range s.balances.Balances(ctx) {
		if err != nil {
			return decimal.Zero, appErrors.Storage(err, "failed to compute outstanding total")
		}
		total = total.Add(s.policy.Remaining(balance.Paid))
	}
	return total, nil
}

// ClearedValueTotal sums the full paid amount, overpayment included, of every
// student whose payments meet the total fee.
func (s *SummaryService) ClearedValueTotal(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for balance, err := range s.balances.Balances(ctx) {
		if err != nil {
			return decimal.Zero, appErrors.Storage(err, "failed to compute cleared total")
		}
		if s.policy.StatusFor(balance.Paid) == models.PaymentStatusCleared {
			total = total.Add(balance.Paid)
		}
	}
	return total, nil
}

// Summary returns every institution-wide total in one pass. The bool reports
// whether the value came from cache.
func (s *SummaryService) Summary(ctx context.Context) (*models.LedgerSummary, bool, error) {
	var cached models.LedgerSummary
	if hit, err := s.cache.Get(ctx, summaryCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	summary := &models.LedgerSummary{
		TotalFee:           s.policy.TotalFee(),
		PendingOutstanding: decimal.Zero,
		ClearedValue:       decimal.Zero,
		GeneratedAt:        s.now().UTC(),
	}
	for balance, err := range s.balances.Balances(ctx) {
		if err != nil {
			return nil, false, appErrors.Storage(err, "failed to compute summary")
		}
		summary.StudentCount++
		summary.PendingOutstanding = summary.PendingOutstanding.Add(s.policy.Remaining(balance.Paid))
		if s.policy.StatusFor(balance.Paid) == models.PaymentStatusCleared {
			summary.ClearedStudents++
			summary.ClearedValue = summary.ClearedValue.Add(balance.Paid)
		} else {
			summary.OutstandingStudents++
		}
	}

	if err := s.cache.Set(ctx, summaryCacheKey, summary, s.cacheTTL); err != nil {
		s.logger.Debug("summary not cached", zap.Error(err))
	}
	return summary, false, nil
}

// Outstanding yields every student still owing part of the fee, ordered by
// class then name. Each range recomputes from the store; nothing is cached.
// The consumer must not issue other store calls while ranging.
func (s *SummaryService) Outstanding(ctx context.Context) iter.Seq2[models.OutstandingBalance, error] {
	return func(yield func(models.OutstandingBalance, error) bool) {
		for balance, err := range s.balances.Balances(ctx) {
			if err != nil {
				yield(models.OutstandingBalance{}, appErrors.Storage(err, "failed to list outstanding balances"))
				return
			}
			if balance.Paid.GreaterThanOrEqual(s.policy.TotalFee()) {
				continue
			}
			entry := models.OutstandingBalance{
				Student: balance.Student,
				Paid:    balance.Paid,
				Pending: s.policy.Remaining(balance.Paid),
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

// OutstandingList collects Outstanding into a slice.
func (s *SummaryService) OutstandingList(ctx context.Context) ([]models.OutstandingBalance, error) {
	entries := []models.OutstandingBalance{}
	for entry, err := range s.Outstanding(ctx) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
