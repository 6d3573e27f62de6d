package ratelimit

import (
	"sync"
	"testing"
	"time"
)

var t0 = time.Unix(1700000000, 0).UTC()

func at(sec float64) time.Time {
	return t0.Add(time.Duration(sec * float64(time.Second)))
}

func TestLimiter_SixthCallDeniedWithRetryAfter(t *testing.T) {
	l := New(5, 60*time.Second)

	for i := 0; i < 5; i++ {
		ok, _ := l.Check(at(0))
		if !ok {
			t.Fatalf("call %d should be allowed", i+1)
		}
		l.Record(at(0))
	}

	ok, retry := l.Check(at(10))
	if ok {
		t.Fatalf("6th call should be denied")
	}
	if retry != 50 {
		t.Fatalf("expected retry_after 50, got %d", retry)
	}
}

func TestLimiter_EntryExactlyWindowOldIsExpired(t *testing.T) {
	l := New(1, 60*time.Second)
	if ok, _ := l.Acquire(at(0)); !ok {
		t.Fatalf("first call should be allowed")
	}
	if ok, _ := l.Check(at(59.999)); ok {
		t.Fatalf("entry is still inside the window")
	}
	if ok, _ := l.Check(at(60)); !ok {
		t.Fatalf("entry aged exactly the window should be expired")
	}
}

func TestLimiter_RetryAfterFloorsAge(t *testing.T) {
	l := New(1, 60*time.Second)
	l.Acquire(at(0))

	_, retry := l.Check(at(10.9))
	if retry != 50 {
		t.Fatalf("expected retry_after 50 with floored age, got %d", retry)
	}
	_, retry = l.Check(at(59.5))
	if retry != 1 {
		t.Fatalf("expected retry_after 1, got %d", retry)
	}
}

func TestLimiter_NeverExceedsCapacityInTrailingWindow(t *testing.T) {
	const capacity = 3
	window := 60 * time.Second
	l := New(capacity, window)

	var admitted []time.Time
	for i := 0; i < 400; i++ {
		now := at(float64(i) * 1.7)
		if ok, _ := l.Acquire(now); ok {
			admitted = append(admitted, now)
		}
		in := 0
		for _, ts := range admitted {
			if now.Sub(ts) < window {
				in++
			}
		}
		if in > capacity {
			t.Fatalf("admitted %d calls in trailing window at step %d", in, i)
		}
	}
	if len(admitted) == 0 {
		t.Fatalf("expected some admissions")
	}
}

func TestLimiter_StatsInvariants(t *testing.T) {
	l := New(2, 60*time.Second)
	l.Acquire(at(0))
	l.Acquire(at(1))
	l.Acquire(at(2)) // denied

	u := l.Stats(at(3))
	if u.CallsInWindow != 2 || u.Capacity != 2 || u.Remaining != 0 || u.TotalCalls != 2 {
		t.Fatalf("unexpected usage: %+v", u)
	}

	u = l.Stats(at(60.5))
	if u.CallsInWindow != 1 || u.Remaining != 1 || u.TotalCalls != 2 {
		t.Fatalf("unexpected usage after partial expiry: %+v", u)
	}
	if u.Remaining != u.Capacity-u.CallsInWindow {
		t.Fatalf("remaining must equal capacity - calls_in_window: %+v", u)
	}
}

func TestLimiter_Defaults(t *testing.T) {
	u := New(0, 0).Stats(t0)
	if u.Capacity != DefaultCapacity || u.WindowSeconds != 60 {
		t.Fatalf("expected defaults, got %+v", u)
	}
}

func TestLimiter_ConcurrentAcquireAdmitsExactlyCapacity(t *testing.T) {
	l := New(5, time.Minute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Acquire(t0); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 5 {
		t.Fatalf("expected exactly 5 admissions, got %d", allowed)
	}
}
