package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"go5gcore.dev/pdcp/executor"
)

func TestTimerFires(t *testing.T) {
	in := executor.NewInline()
	var fired int32
	tm := New(in, func() { atomic.StoreInt32(&fired, 1) })
	tm.Start(10 * time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&fired) == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timer did not fire")
}

func TestTimerStopPreventsFire(t *testing.T) {
	in := executor.NewInline()
	var fired int32
	tm := New(in, func() { atomic.StoreInt32(&fired, 1) })
	tm.Start(20 * time.Millisecond)
	tm.Stop()

	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&fired) == 1 {
		t.Fatal("expected stopped timer not to fire")
	}
}

func TestTimerInfinityNeverStarts(t *testing.T) {
	in := executor.NewInline()
	tm := New(in, func() {})
	tm.Start(0)
	if tm.IsRunning() {
		t.Fatal("expected zero/negative duration to mean infinity (never armed)")
	}
}

func TestTimerRestart(t *testing.T) {
	in := executor.NewInline()
	var count int32
	tm := New(in, func() { atomic.AddInt32(&count, 1) })
	tm.Start(5 * time.Hour)
	tm.Start(10 * time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&count) == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("restarted timer did not fire exactly once in time")
}
