package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/reconcile"
)

const (
	// DefaultReportTTL is the default TTL for report entries
	DefaultReportTTL = 24 * time.Hour
	// DefaultHistorySize caps the report history list
	DefaultHistorySize = 100
)

// commander is the subset of the go-redis client the store uses.
type commander interface {
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	Get(ctx context.Context, key string) *redis.StringCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// ReportStore publishes cycle reports to Redis. It is write-mostly: the
// reconciler never reads reports back to drive a sweep.
type ReportStore struct {
	client      commander
	ttl         time.Duration
	historySize int64
}

// NewReportStore creates a new Redis report store
func NewReportStore(client *redis.Client, ttl time.Duration) *ReportStore {
	return newReportStore(client, ttl)
}

func newReportStore(client commander, ttl time.Duration) *ReportStore {
	if ttl <= 0 {
		ttl = DefaultReportTTL
	}
	return &ReportStore{
		client:      client,
		ttl:         ttl,
		historySize: DefaultHistorySize,
	}
}

// Record stores report as the latest one, appends it to the history and
// publishes it on ChannelReports, in a single transaction.
func (s *ReportStore) Record(ctx context.Context, report *reconcile.Report) error {
	if report == nil {
		return nil
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, KeyLastReport, data, s.ttl)
		pipe.Set(ctx, ReportKey(report.CycleID), data, s.ttl)
		pipe.LPush(ctx, KeyReportHistory, report.CycleID)
		pipe.LTrim(ctx, KeyReportHistory, 0, s.historySize-1)
		pipe.Publish(ctx, ChannelReports, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record report %s: %w", report.CycleID, err)
	}
	return nil
}

// Last returns the latest stored report, or nil when none is stored.
func (s *ReportStore) Last(ctx context.Context) (*reconcile.Report, error) {
	data, err := s.client.Get(ctx, KeyLastReport).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last report: %w", err)
	}

	var report reconcile.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// History returns up to n recent cycle IDs, newest first.
func (s *ReportStore) History(ctx context.Context, n int64) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	ids, err := s.client.LRange(ctx, KeyReportHistory, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get report history: %w", err)
	}
	return ids, nil
}

// Ping checks the connection.
func (s *ReportStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
