package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	exchangerate "splitledger/internal/exchangerate/domain"
	"splitledger/internal/exchangerate/infrastructure/memory"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type stubFetcher struct {
	values []string
	err    error
	calls  int
}

func (f *stubFetcher) Fetch(context.Context) (decimal.Decimal, error) {
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.values) {
		idx = len(f.values) - 1
	}
	return decimal.RequireFromString(f.values[idx]), nil
}

func TestCachedSource_ServesFromCacheWithinTTL(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)}
	fetcher := &stubFetcher{values: []string{"1000", "1100"}}
	history := memory.NewHistoryRepository()
	source, err := NewCachedSource(fetcher, history, clock, WithTTL(time.Hour))
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	first, err := source.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if first.Cached || !first.Value.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected first rate %+v", first)
	}

	clock.now = clock.now.Add(59 * time.Minute)
	second, err := source.Rate(context.Background())
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if !second.Equal(decimal.NewFromInt(1000)) || fetcher.calls != 1 {
		t.Fatalf("expected cached rate, got %s after %d calls", second, fetcher.calls)
	}

	clock.now = clock.now.Add(2 * time.Minute)
	third, err := source.Rate(context.Background())
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if !third.Equal(decimal.NewFromInt(1100)) || fetcher.calls != 2 {
		t.Fatalf("expected refetch, got %s after %d calls", third, fetcher.calls)
	}

	entries, err := source.History(context.Background(), 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 || !entries[0].RateUSDToARS.Equal(decimal.NewFromInt(1100)) || entries[0].Source != defaultSourceTag {
		t.Fatalf("unexpected history %+v", entries)
	}
}

func TestCachedSource_FallsBackToStaleCache(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)}
	fetcher := &stubFetcher{values: []string{"950.5"}}
	source, err := NewCachedSource(fetcher, nil, clock, WithTTL(time.Minute))
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	if _, err := source.Current(context.Background()); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	fetcher.err = errors.New("upstream down")
	clock.now = clock.now.Add(time.Hour)
	rate, err := source.Current(context.Background())
	if err != nil {
		t.Fatalf("expected fallback, got %v", err)
	}
	if !rate.Cached || !rate.Value.Equal(decimal.RequireFromString("950.5")) {
		t.Fatalf("unexpected fallback rate %+v", rate)
	}
}

func TestCachedSource_NoCacheReturnsUnavailable(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("timeout")}
	source, err := NewCachedSource(fetcher, nil, &fixedClock{now: time.Now()})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	if _, err := source.Rate(context.Background()); !errors.Is(err, exchangerate.ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}

func TestCachedSource_RejectsNonPositiveUpstream(t *testing.T) {
	fetcher := &stubFetcher{values: []string{"0"}}
	source, err := NewCachedSource(fetcher, nil, &fixedClock{now: time.Now()})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	if _, err := source.Rate(context.Background()); !errors.Is(err, exchangerate.ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
}

func TestCachedSource_InstancesDoNotShareCache(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	a, _ := NewCachedSource(&stubFetcher{values: []string{"10"}}, nil, clock)
	b, _ := NewCachedSource(&stubFetcher{values: []string{"20"}}, nil, clock)
	ra, _ := a.Rate(context.Background())
	rb, _ := b.Rate(context.Background())
	if ra.Equal(rb) {
		t.Fatalf("expected independent caches, both returned %s", ra)
	}
}
