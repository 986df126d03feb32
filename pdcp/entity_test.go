package pdcp

import (
	"sync"
	"testing"
	"time"

	"go5gcore.dev/pdcp/security"
)

type recordingLower struct {
	mu   sync.Mutex
	pdus [][]byte
	retx []bool
}

func newRecordingLower() *recordingLower {
	return &recordingLower{}
}

func (l *recordingLower) OnNewPDU(pdu []byte, isRetx bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pdus = append(l.pdus, append([]byte(nil), pdu...))
	l.retx = append(l.retx, isRetx)
}

func (l *recordingLower) OnDiscardPDU(sn uint32) {}

func (l *recordingLower) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pdus)
}

func (l *recordingLower) get(i int) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pdus[i]
}

type recordingUpper struct {
	mu   sync.Mutex
	sdus [][]byte
}

func (u *recordingUpper) OnNewSDU(sdu []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sdus = append(u.sdus, append([]byte(nil), sdu...))
}

func (u *recordingUpper) len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.sdus)
}

func (u *recordingUpper) get(i int) []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.sdus[i]
}

type noopCtrl struct{}

func (noopCtrl) OnMaxCountReached()   {}
func (noopCtrl) OnProtocolFailure()   {}
func (noopCtrl) OnIntegrityFailure()  {}

func testSecurityConfig() SecurityConfig {
	return SecurityConfig{
		Keys: security.Sec128AsConfig{
			KUPInt:    [16]byte{1, 2, 3, 4},
			KUPEnc:    [16]byte{5, 6, 7, 8},
			IntegAlgo: security.NIA1,
			CipherAlgo: security.NEA1,
		},
		Domain:           security.DomainUP,
		IntegrityEnabled: true,
		CipheringEnabled: true,
	}
}

func TestEntityInOrderRoundTrip(t *testing.T) {
	cfg := DefaultDRBConfig()
	cfg.RLCMode = RLCModeUM
	cfg.StatusReportRequired = false
	sec := testSecurityConfig()

	lower := newRecordingLower()
	upper := &recordingUpper{}

	e, err := NewEntity(cfg, sec, EntityDeps{
		UEIndex:   1,
		RBID:      4,
		UpperData: upper,
		TxCtrl:    noopCtrl{},
		RxCtrl:    noopCtrl{},
		Lower:     lower,
	})
	if err != nil {
		t.Fatalf("NewEntity: %v", err)
	}
	defer e.Stop()

	sdu := []byte("hello pdcp")
	if err := e.TX().HandleSDU(sdu); err != nil {
		t.Fatalf("HandleSDU: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for lower.len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if lower.len() != 1 {
		t.Fatalf("expected 1 PDU delivered, got %d", lower.len())
	}

	if err := e.RX().HandlePDU(lower.get(0)); err != nil {
		t.Fatalf("HandlePDU: %v", err)
	}

	deadline = time.Now().Add(time.Second)
	for upper.len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if upper.len() != 1 {
		t.Fatalf("expected 1 SDU delivered, got %d", upper.len())
	}
	if string(upper.get(0)) != string(sdu) {
		t.Fatalf("round-trip mismatch: got %q want %q", upper.get(0), sdu)
	}
}

func TestRxHalfReordersOutOfOrderPDUs(t *testing.T) {
	cfg := DefaultDRBConfig()
	cfg.RLCMode = RLCModeUM
	cfg.TReordering = 50 * time.Millisecond
	sec := testSecurityConfig()

	lower := newRecordingLower()
	upper := &recordingUpper{}

	e, err := NewEntity(cfg, sec, EntityDeps{
		UEIndex:   2,
		RBID:      5,
		UpperData: upper,
		TxCtrl:    noopCtrl{},
		RxCtrl:    noopCtrl{},
		Lower:     lower,
	})
	if err != nil {
		t.Fatalf("NewEntity: %v", err)
	}
	defer e.Stop()

	sdus := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, s := range sdus {
		if err := e.TX().HandleSDU(s); err != nil {
			t.Fatalf("HandleSDU: %v", err)
		}
	}

	deadline := time.Now().Add(time.Second)
	for lower.len() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if lower.len() != 3 {
		t.Fatalf("expected 3 PDUs, got %d", lower.len())
	}

	// Deliver out of order: 2, then 0, then 1.
	if err := e.RX().HandlePDU(lower.get(2)); err != nil {
		t.Fatalf("HandlePDU(2): %v", err)
	}
	if err := e.RX().HandlePDU(lower.get(0)); err != nil {
		t.Fatalf("HandlePDU(0): %v", err)
	}
	if err := e.RX().HandlePDU(lower.get(1)); err != nil {
		t.Fatalf("HandlePDU(1): %v", err)
	}

	deadline = time.Now().Add(time.Second)
	for upper.len() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if upper.len() != 3 {
		t.Fatalf("expected 3 SDUs delivered in order, got %d", upper.len())
	}
	for i, s := range sdus {
		if string(upper.get(i)) != string(s) {
			t.Fatalf("SDU %d mismatch: got %q want %q", i, upper.get(i), s)
		}
	}
}
