package crmclient

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheDeduplicatesConcurrentReaders(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	cache := NewCache(time.Minute)
	const readers = 8

	var wg sync.WaitGroup
	results := make([]any, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value, err := cache.Get(context.Background(), "list", fetch)
			if err != nil {
				t.Errorf("reader %d: %v", i, err)
				return
			}
			results[i] = value
		}(i)
	}

	// Let every reader reach the shared flight before it completes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("fetch ran %d times, want 1", got)
	}
	for i, value := range results {
		if value != "value" {
			t.Fatalf("reader %d got %v", i, value)
		}
	}
}

func TestCacheServesFreshValueWithoutRefetch(t *testing.T) {
	var calls atomic.Int64
	fetch := func(ctx context.Context) (any, error) {
		return calls.Add(1), nil
	}

	cache := NewCache(time.Minute)
	first, err := cache.Get(context.Background(), "list", fetch)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	second, err := cache.Get(context.Background(), "list", fetch)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if first != second {
		t.Fatalf("second get refetched: %v != %v", first, second)
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch ran %d times, want 1", calls.Load())
	}
}

func TestCacheServesExpiredValueAndRefreshesInBackground(t *testing.T) {
	var calls atomic.Int64
	fetch := func(ctx context.Context) (any, error) {
		return calls.Add(1), nil
	}

	cache := NewCache(10 * time.Millisecond)
	if _, err := cache.Get(context.Background(), "list", fetch); err != nil {
		t.Fatalf("first get: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	updates, cancel := cache.Subscribe("list")
	defer cancel()

	// The expired value comes back immediately; the read never blocks on
	// the refresh.
	value, err := cache.Get(context.Background(), "list", fetch)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if value != int64(1) {
		t.Fatalf("got %v, want the cached value served while refreshing", value)
	}

	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("no notification after background refresh")
	}
	if cached, ok := cache.Peek("list"); !ok || cached != int64(2) {
		t.Fatalf("cached = %v (ok=%v), want refreshed value 2", cached, ok)
	}
}

func TestCacheNotifiesObserversWhenRefetchFails(t *testing.T) {
	var calls atomic.Int64
	fetch := func(ctx context.Context) (any, error) {
		if calls.Add(1) > 1 {
			return nil, context.DeadlineExceeded
		}
		return "value", nil
	}

	cache := NewCache(time.Minute)
	if _, err := cache.Get(context.Background(), "list", fetch); err != nil {
		t.Fatalf("prime: %v", err)
	}

	updates, cancel := cache.Subscribe("list")
	defer cancel()

	cache.Invalidate("list")

	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("observer never notified of the failed refetch")
	}
	if _, ok := cache.Peek("list"); ok {
		t.Fatal("failed refetch left a value at the new generation")
	}
}

func TestCacheDiscardsResponseResolvedAcrossInvalidation(t *testing.T) {
	var calls atomic.Int64
	entered := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		n := calls.Add(1)
		if n == 1 {
			close(entered)
			<-release
			return "stale", nil
		}
		return "fresh", nil
	}

	cache := NewCache(time.Minute)

	type result struct {
		value any
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := cache.Get(context.Background(), "list", fetch)
		done <- result{value, err}
	}()

	<-entered
	cache.Invalidate("list")
	close(release)

	got := <-done
	if got.err != nil {
		t.Fatalf("get: %v", got.err)
	}
	if got.value != "fresh" {
		t.Fatalf("got %v, want the post-invalidation value", got.value)
	}
	if cached, ok := cache.Peek("list"); !ok || cached != "fresh" {
		t.Fatalf("cached = %v (ok=%v), want fresh", cached, ok)
	}
}

func TestCacheNotifiesObserversAfterRefetch(t *testing.T) {
	var calls atomic.Int64
	fetch := func(ctx context.Context) (any, error) {
		return calls.Add(1), nil
	}

	cache := NewCache(time.Minute)
	if _, err := cache.Get(context.Background(), "list", fetch); err != nil {
		t.Fatalf("prime: %v", err)
	}

	updates, cancel := cache.Subscribe("list")
	defer cancel()

	cache.Invalidate("list")

	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("no notification after invalidation")
	}

	value, ok := cache.Peek("list")
	if !ok || value != int64(2) {
		t.Fatalf("cached = %v (ok=%v), want refetched value 2", value, ok)
	}
}
