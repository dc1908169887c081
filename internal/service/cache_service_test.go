package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fee-ledger-api/internal/models"
	appErrors "github.com/noah-isme/fee-ledger-api/pkg/errors"
)

type memoryCacheRepo struct {
	values  map[string][]byte
	deleted []string
	getErr  error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{values: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.values {
		if strings.HasPrefix(key, prefix) {
			delete(m.values, key)
		}
	}
	m.deleted = append(m.deleted, pattern)
	return nil
}

func TestCacheServiceHitMissAndMetrics(t *testing.T) {
	repo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	cache := NewCacheService(repo, metrics, time.Minute, nil, true)
	ctx := context.Background()

	var out map[string]int
	hit, err := cache.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, "k", map[string]int{"a": 1}, 0))
	hit, err = cache.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, out["a"])

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))

	repo.getErr = errors.New("connection refused")
	hit, err = cache.Get(ctx, "k", &out)
	require.Error(t, err)
	assert.False(t, hit)
}

func TestCacheServiceDisabled(t *testing.T) {
	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	hit, err := nilCache.Get(context.Background(), "k", &struct{}{})
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, nilCache.Invalidate(context.Background(), "*"))

	repo := newMemoryCacheRepo()
	off := NewCacheService(repo, nil, 0, nil, false)
	require.NoError(t, off.Set(context.Background(), "k", 1, 0))
	assert.Empty(t, repo.values)
}

func TestSummaryUsesCacheUntilLedgerChanges(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	f.summarySvc = NewSummaryService(f.students, f.policy, cache, time.Minute, nil)
	f.paymentSvc.cache = cache

	s := f.addStudent(t, "Asha", "JR KG")
	summary, cached, err := f.summarySvc.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.True(t, summary.PendingOutstanding.Equal(decimal.NewFromInt(19000)))

	summary, cached, err = f.summarySvc.Summary(ctx)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.True(t, summary.PendingOutstanding.Equal(decimal.NewFromInt(19000)))

	f.pay(t, s.ID, 19000, "2024-01-01")
	assert.Contains(t, repo.deleted, summaryCachePattern)

	summary, cached, err = f.summarySvc.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.True(t, summary.PendingOutstanding.IsZero())
	assert.Equal(t, 1, summary.ClearedStudents)
}

func TestMetricsServiceCountsLedgerActivity(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordLedgerMutation(OpPaymentCreated)
	metrics.RecordLedgerMutation(OpPaymentCreated)
	metrics.RecordStatusChanges(3)
	metrics.RecordStatusChanges(0)
	metrics.RecordReceipt()
	metrics.RecordReportJob(string(models.ReportTypeHistory), string(models.ReportStatusFinished))
	metrics.ObserveHTTPRequest("GET", "/api/v1/summary", 200, 5*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ledgerMutations.WithLabelValues(OpPaymentCreated)))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.statusChanges))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.receiptsGenerated))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.reportJobs.WithLabelValues("history", "FINISHED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requestTotal.WithLabelValues("GET", "/api/v1/summary", "200")))

	var nilMetrics *MetricsService
	nilMetrics.RecordReceipt()
	nilMetrics.ObserveLedgerTx(OpPaymentDeleted, time.Second)
}
