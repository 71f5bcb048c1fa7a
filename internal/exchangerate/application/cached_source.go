package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	exchangerate "splitledger/internal/exchangerate/domain"
	"splitledger/internal/observability/metrics"
)

const (
	defaultTTL          = 60 * time.Minute
	defaultFetchTimeout = 10 * time.Second
	defaultSourceTag    = "bluelytics"
	defaultHistoryLimit = 100
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Option configures a CachedSource.
type Option func(*CachedSource)

// WithTTL sets how long a fetched rate is served without re-fetching.
func WithTTL(ttl time.Duration) Option {
	return func(s *CachedSource) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithFetchTimeout bounds each upstream fetch.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(s *CachedSource) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithSourceTag sets the source recorded in the history log.
func WithSourceTag(tag string) Option {
	return func(s *CachedSource) {
		if tag != "" {
			s.sourceTag = tag
		}
	}
}

// WithLogger sets the logger used for fetch failures.
func WithLogger(logger *log.Logger) Option {
	return func(s *CachedSource) {
		s.logger = logger
	}
}

// CachedSource serves the current rate from a TTL cache, falling back to
// the last good value when the upstream fails.
type CachedSource struct {
	fetcher   exchangerate.Fetcher
	history   exchangerate.HistoryRepository
	clock     Clock
	ttl       time.Duration
	timeout   time.Duration
	sourceTag string
	logger    *log.Logger

	mu     sync.Mutex
	cached *exchangerate.Rate
}

// NewCachedSource constructs a cached source. history may be nil.
func NewCachedSource(fetcher exchangerate.Fetcher, history exchangerate.HistoryRepository, clock Clock, opts ...Option) (*CachedSource, error) {
	if fetcher == nil {
		return nil, errors.New("exchange rate source: nil fetcher")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	s := &CachedSource{
		fetcher:   fetcher,
		history:   history,
		clock:     clock,
		ttl:       defaultTTL,
		timeout:   defaultFetchTimeout,
		sourceTag: defaultSourceTag,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Rate returns the current USD->ARS rate.
func (s *CachedSource) Rate(ctx context.Context) (decimal.Decimal, error) {
	rate, err := s.Current(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return rate.Value, nil
}

// Current returns the current rate with provenance. The lock is held across
// the fetch so concurrent callers share one upstream request.
func (s *CachedSource) Current(ctx context.Context) (exchangerate.Rate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.cached != nil && now.Sub(s.cached.FetchedAt) < s.ttl {
		metrics.IncRateLookup(metrics.RateResultCache)
		out := *s.cached
		out.Cached = true
		return out, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	value, err := s.fetcher.Fetch(fetchCtx)
	if err == nil && !value.IsPositive() {
		err = exchangerate.ErrInvalidRate
	}
	if err != nil {
		metrics.ObserveRateFetch(metrics.ResultError, time.Since(start))
		if s.logger != nil {
			s.logger.Printf("exchange rate fetch failed: %v", err)
		}
		if s.cached != nil {
			metrics.IncRateLookup(metrics.RateResultFallback)
			out := *s.cached
			out.Cached = true
			return out, nil
		}
		return exchangerate.Rate{}, errors.Join(exchangerate.ErrRateUnavailable, err)
	}
	metrics.ObserveRateFetch(metrics.RateResultLive, time.Since(start))

	rate := exchangerate.Rate{Value: value, Source: s.sourceTag, FetchedAt: now}
	s.cached = &rate
	if s.history != nil {
		entry := exchangerate.LogEntry{
			ID:           uuid.NewString(),
			RateUSDToARS: value,
			Source:       s.sourceTag,
			FetchedAt:    now,
		}
		if err := s.history.Append(ctx, entry); err != nil && s.logger != nil {
			s.logger.Printf("exchange rate history append failed: %v", err)
		}
	}
	return rate, nil
}

// Invalidate drops the cached value.
func (s *CachedSource) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// History lists logged fetches, newest first.
func (s *CachedSource) History(ctx context.Context, limit int) ([]exchangerate.LogEntry, error) {
	if s.history == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.history.List(ctx, limit)
}
