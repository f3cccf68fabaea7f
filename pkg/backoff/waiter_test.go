package backoff

import (
	"testing"
	"time"
)

func TestWaiterSchedule(t *testing.T) {
	tests := []struct {
		name string
		call int
		want time.Duration
	}{
		{"first call sleeps 5ms", 1, 5 * time.Millisecond},
		{"second call sleeps 10ms", 2, 10 * time.Millisecond},
		{"third call sleeps 20ms", 3, 20 * time.Millisecond},
		{"fourth call sleeps 40ms", 4, 40 * time.Millisecond},
		{"fifth call sleeps 80ms", 5, 80 * time.Millisecond},
		{"sixth call saturates at 100ms", 6, 100 * time.Millisecond},
		{"seventh call stays at 100ms", 7, 100 * time.Millisecond},
	}

	w := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Next(); got != tt.want {
				t.Errorf("before call %d: Next() = %v, want %v", tt.call, got, tt.want)
			}
			start := time.Now()
			w.Wait()
			if elapsed := time.Since(start); elapsed < tt.want {
				t.Errorf("call %d: Wait() slept %v, want >= %v", tt.call, elapsed, tt.want)
			}
		})
	}
}

func TestWaiterIndependentInstances(t *testing.T) {
	w1 := New()
	w1.Wait()
	w1.Wait()

	w2 := New()
	if got := w2.Next(); got != 5*time.Millisecond {
		t.Errorf("fresh Waiter.Next() = %v, want 5ms; state leaked across instances", got)
	}
}

func TestWaiterNeverDecreases(t *testing.T) {
	w := New()
	last := time.Duration(0)
	for i := 0; i < 10; i++ {
		next := w.Next()
		if next < last {
			t.Fatalf("iteration %d: schedule decreased from %v to %v", i, last, next)
		}
		last = next
		w.Wait()
	}
}
