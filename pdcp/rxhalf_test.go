package pdcp

import (
	"testing"
	"time"

	"go5gcore.dev/pdcp/executor"
	"go5gcore.dev/pdcp/metrics"
	"go5gcore.dev/pdcp/security"
)

func newTestRxHalf(cfg Config, sec SecurityConfig, upper RXUpperDataNotifier, ctrl RXUpperControlNotifier, m *metrics.RxMetrics) (*RxHalf, func()) {
	crypto := executor.NewCryptoPool(1, 64)
	tokens := NewCryptoTokenManager()
	rx := NewRxHalf(cfg, sec, 0, security.NewDefaultProvider(), crypto, executor.NewInline(), tokens, upper, ctrl, nil, m, nil)
	return rx, crypto.Stop
}

// TestReorderingWindowAdvance grounds scenario 2: feeding COUNTs 2, 3, 1, 0
// (in that order) to a 12-bit RX half holds everything back until COUNT 0
// finally closes the gap, at which point all four SDUs deliver in COUNT
// order in a single step and the reordering timer stops.
func TestReorderingWindowAdvance(t *testing.T) {
	cfg := DefaultDRBConfig()
	cfg.SNSize = SNSize12
	cfg.TReordering = 10 * time.Second // long enough to never fire in this test.

	upper := &recordingUpper{}
	rx, stop := newTestRxHalf(cfg, testSecurityConfig(), upper, noopCtrl{}, metrics.NewRxMetrics(true))
	defer stop()

	sduFor := func(count uint32) []byte { return []byte{byte(count)} }

	rx.applyReordering(2, sduFor(2), time.Now())
	rxNext, rxDeliv, rxReord := rx.State()
	if rxNext != 3 || rxDeliv != 0 || rxReord != 3 {
		t.Fatalf("after COUNT 2: state = (%d,%d,%d), want (3,0,3)", rxNext, rxDeliv, rxReord)
	}
	if upper.len() != 0 {
		t.Fatalf("after COUNT 2: expected no delivery, got %d SDUs", upper.len())
	}

	rx.applyReordering(3, sduFor(3), time.Now())
	rxNext, rxDeliv, rxReord = rx.State()
	if rxNext != 4 || rxDeliv != 0 || rxReord != 3 {
		t.Fatalf("after COUNT 3: state = (%d,%d,%d), want (4,0,3)", rxNext, rxDeliv, rxReord)
	}
	if upper.len() != 0 {
		t.Fatalf("after COUNT 3: expected no delivery, got %d SDUs", upper.len())
	}
	if !rx.reorderTimer.IsRunning() {
		t.Fatalf("after COUNT 3: reordering timer should still be running")
	}

	rx.applyReordering(1, sduFor(1), time.Now())
	if upper.len() != 0 {
		t.Fatalf("after COUNT 1: expected no delivery, got %d SDUs", upper.len())
	}

	rx.applyReordering(0, sduFor(0), time.Now())
	rxNext, rxDeliv, rxReord = rx.State()
	if rxDeliv != 4 {
		t.Fatalf("after COUNT 0: RX_DELIV = %d, want 4", rxDeliv)
	}
	if rxNext != 4 || rxReord != 3 {
		t.Fatalf("after COUNT 0: state = (%d,%d,%d), want rxNext=4 rxReord=3", rxNext, rxDeliv, rxReord)
	}
	if upper.len() != 4 {
		t.Fatalf("after COUNT 0: expected 4 SDUs delivered, got %d", upper.len())
	}
	for i := 0; i < 4; i++ {
		if got := upper.get(i); len(got) != 1 || got[0] != byte(i) {
			t.Fatalf("SDU %d = %v, want COUNT %d's payload", i, got, i)
		}
	}
	if rx.reorderTimer.IsRunning() {
		t.Fatalf("after COUNT 0 closes the gap: reordering timer should be stopped")
	}
}

// TestTReorderingExpiryDeliversHeldSDUs grounds scenario 3: a lone
// out-of-order COUNT is held until t-Reordering expires, at which point it
// delivers alone and the expiry is counted in RxMetrics; a duplicate of
// the COUNT that was never received is then silently dropped.
func TestTReorderingExpiryDeliversHeldSDUs(t *testing.T) {
	cfg := DefaultDRBConfig()
	cfg.SNSize = SNSize12
	cfg.TReordering = 30 * time.Millisecond

	upper := &recordingUpper{}
	rxMetrics := metrics.NewRxMetrics(true)
	rx, stop := newTestRxHalf(cfg, testSecurityConfig(), upper, noopCtrl{}, rxMetrics)
	defer stop()

	rx.applyReordering(1, []byte("one"), time.Now())
	if upper.len() != 0 {
		t.Fatalf("before expiry: expected no delivery, got %d SDUs", upper.len())
	}

	deadline := time.Now().Add(time.Second)
	for upper.len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if upper.len() != 1 {
		t.Fatalf("after t-Reordering expiry: expected exactly 1 SDU delivered, got %d", upper.len())
	}
	if string(upper.get(0)) != "one" {
		t.Fatalf("delivered SDU = %q, want %q", upper.get(0), "one")
	}

	_, rxDeliv, _ := rx.State()
	if rxDeliv != 2 {
		t.Fatalf("RX_DELIV after expiry = %d, want 2", rxDeliv)
	}
	if got := rxMetrics.Snapshot().NumReorderTimeout; got != 1 {
		t.Fatalf("NumReorderTimeout = %d, want 1", got)
	}

	rx.applyReordering(0, []byte("zero-late"), time.Now())
	if upper.len() != 1 {
		t.Fatalf("late duplicate COUNT below RX_DELIV must be dropped, got %d SDUs delivered", upper.len())
	}
}
