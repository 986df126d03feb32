package pdcp

import (
	"sync"
	"time"

	"go5gcore.dev/pdcp/executor"
	"go5gcore.dev/pdcp/internal/bearerlog"
	"go5gcore.dev/pdcp/metrics"
	"go5gcore.dev/pdcp/security"
	"go5gcore.dev/pdcp/timer"
	"go5gcore.dev/pdcp/window"
)

type rxSDU struct {
	sduBytes []byte
	arrival  time.Time
}

// RxHalf is the RX side of a PDCP entity (spec.md §4.2).
type RxHalf struct {
	cfg    Config
	bearer uint8

	mu       sync.Mutex
	sec      SecurityConfig
	rxNext   uint32
	rxDeliv  uint32
	rxReord  uint32
	stopped      bool
	maxHit       bool
	protoFailHit bool
	window       *window.Window[*rxSDU]

	reorderTimer *timer.Timer

	provider security.Provider
	crypto   *executor.CryptoPool
	exec     executor.Executor
	tokens   *CryptoTokenManager

	upperData     RXUpperDataNotifier
	upperCtrl     RXUpperControlNotifier
	statusHandler StatusHandler

	metrics *metrics.RxMetrics
	logger  *bearerlog.Logger
}

// NewRxHalf constructs an RX half.
func NewRxHalf(cfg Config, sec SecurityConfig, bearer uint8, provider security.Provider, crypto *executor.CryptoPool, exec executor.Executor, tokens *CryptoTokenManager, upperData RXUpperDataNotifier, upperCtrl RXUpperControlNotifier, statusHandler StatusHandler, m *metrics.RxMetrics, logger *bearerlog.Logger) *RxHalf {
	rx := &RxHalf{
		cfg:           cfg,
		bearer:        bearer,
		sec:           sec,
		window:        window.New[*rxSDU](cfg.SNSize.WindowSize()),
		provider:      provider,
		crypto:        crypto,
		exec:          exec,
		tokens:        tokens,
		upperData:     upperData,
		upperCtrl:     upperCtrl,
		statusHandler: statusHandler,
		metrics:       m,
		logger:        logger,
	}
	rx.reorderTimer = timer.New(exec, rx.onTReorderingExpire)
	return rx
}

// ConfigureSecurity replaces the active security config atomically.
func (rx *RxHalf) ConfigureSecurity(sec SecurityConfig) {
	rx.mu.Lock()
	rx.sec = sec
	rx.mu.Unlock()
}

// NotifyPDUProcessingStopped gates HandlePDU: further PDUs are dropped
// until RestartPDUProcessing is called (used by CU-CP during mobility).
func (rx *RxHalf) NotifyPDUProcessingStopped() {
	rx.mu.Lock()
	rx.stopped = true
	rx.mu.Unlock()
}

// RestartPDUProcessing lifts the admission gate set by
// NotifyPDUProcessingStopped.
func (rx *RxHalf) RestartPDUProcessing() {
	rx.mu.Lock()
	rx.stopped = false
	rx.mu.Unlock()
}

// HandlePDU dispatches a received PDU by its D/C bit.
func (rx *RxHalf) HandlePDU(buf []byte) error {
	rx.mu.Lock()
	stopped := rx.stopped
	rx.mu.Unlock()
	if stopped {
		return nil
	}
	if len(buf) < 1 {
		if rx.metrics != nil {
			rx.metrics.AddDroppedPDUs(1)
		}
		return ErrShortPDU
	}
	if IsDataPDU(buf[0]) {
		return rx.handleDataPDU(buf)
	}
	rx.handleControlPDU(buf)
	return nil
}

func (rx *RxHalf) handleControlPDU(buf []byte) {
	if rx.metrics != nil {
		rx.metrics.AddPDUs(1, uint64(len(buf)))
	}
	if DecodeControlType(buf[0]) != ControlPDUStatusReport {
		return // ROHC/EHC feedback: recognized, not interpreted.
	}
	if rx.statusHandler != nil {
		rx.statusHandler.OnStatusReport(buf)
	}
}

func (rx *RxHalf) handleDataPDU(buf []byte) error {
	sn, err := rx.cfg.SNSize.DecodeDataSN(buf)
	if err != nil {
		if rx.metrics != nil {
			rx.metrics.AddDroppedPDUs(1)
		}
		return err
	}

	rx.mu.Lock()
	rxDeliv := rx.rxDeliv
	sec := rx.sec
	rx.mu.Unlock()
	count := rx.cfg.SNSize.RecoverCountRX(sn, rxDeliv)

	if count >= rx.cfg.MaxCount.Hard {
		rx.mu.Lock()
		alreadyHit := rx.protoFailHit
		rx.protoFailHit = true
		rx.mu.Unlock()
		if !alreadyHit && rx.upperCtrl != nil {
			rx.upperCtrl.OnProtocolFailure()
		}
		if rx.metrics != nil {
			rx.metrics.AddDroppedPDUs(1)
		}
		return ErrProtocolFailure
	}
	rx.mu.Lock()
	if !rx.maxHit && count >= rx.cfg.MaxCount.Notify {
		rx.maxHit = true
		rx.mu.Unlock()
		if rx.upperCtrl != nil {
			rx.upperCtrl.OnMaxCountReached()
		}
	} else {
		rx.mu.Unlock()
	}

	arrival := time.Now()
	_, payload, mac, err := SplitDataPDU(rx.cfg.SNSize, buf, sec.IntegrityEnabled)
	if err != nil {
		if rx.metrics != nil {
			rx.metrics.AddDroppedPDUs(1)
		}
		return err
	}
	header := buf[:rx.cfg.SNSize.HeaderLen()]

	token, ok := rx.tokens.Acquire()
	if !ok {
		return ErrStopped
	}
	submitted := rx.crypto.Submit(func() {
		defer token.Release()
		if sec.IntegrityEnabled {
			kInt, _ := sec.Keys.KeysFor(sec.Domain)
			macMsg := append(append([]byte(nil), header...), payload...)
			var macArr [4]byte
			copy(macArr[:], mac)
			if err := security.VerifyIntegrity(rx.provider, sec.Keys.IntegAlgo, kInt, count, rx.bearer, rx.cfg.Direction, macMsg, macArr); err != nil {
				if rx.metrics != nil {
					rx.metrics.AddIntegrityFailures(1)
				}
				if rx.upperCtrl != nil {
					rx.upperCtrl.OnIntegrityFailure()
				}
				return
			}
		}
		sdu := payload
		if sec.CipheringEnabled {
			_, kEnc := sec.Keys.KeysFor(sec.Domain)
			plaintext, err := rx.provider.Cipher(sec.Keys.CipherAlgo, kEnc, count, rx.bearer, rx.cfg.Direction, payload)
			if err == nil {
				sdu = plaintext
			}
		}
		rx.exec.Execute(func() {
			rx.applyReordering(count, sdu, arrival)
		})
	})
	if !submitted {
		token.Release()
		if rx.metrics != nil {
			rx.metrics.AddDroppedPDUs(1)
		}
		return ErrCryptoQueueFull
	}
	if rx.metrics != nil {
		rx.metrics.AddPDUs(1, uint64(len(buf)))
		rx.metrics.AddDataPDUs(1, uint64(len(buf)))
	}
	return nil
}

// applyReordering implements the TS 38.323 §5.2.2.1 reordering discipline.
// Must run on rx.exec.
func (rx *RxHalf) applyReordering(count uint32, sdu []byte, arrival time.Time) {
	rx.mu.Lock()
	if count < rx.rxDeliv {
		rx.mu.Unlock()
		if rx.metrics != nil {
			rx.metrics.AddDroppedPDUs(1)
		}
		return
	}
	if rx.window.Has(count) {
		rx.mu.Unlock()
		if rx.metrics != nil {
			rx.metrics.AddDroppedPDUs(1)
		}
		return
	}
	if err := rx.window.Insert(count, rx.rxDeliv, &rxSDU{sduBytes: sdu, arrival: arrival}); err != nil {
		rx.mu.Unlock()
		if rx.metrics != nil {
			rx.metrics.AddDroppedPDUs(1)
		}
		return
	}
	if count+1 > rx.rxNext {
		rx.rxNext = count + 1
	}

	deliverable := rx.collectDeliverableLocked()

	if rx.reorderTimer.IsRunning() && rx.rxDeliv >= rx.rxReord {
		rx.reorderTimer.Stop()
	}
	startReorder := !rx.reorderTimer.IsRunning() && rx.rxDeliv < rx.rxNext
	if startReorder {
		rx.rxReord = rx.rxNext
	}
	tReordering := rx.cfg.TReordering
	rx.mu.Unlock()

	for _, s := range deliverable {
		rx.upperData.OnNewSDU(s)
	}
	if rx.metrics != nil && len(deliverable) > 0 {
		rx.metrics.AddReorderLatency(time.Since(arrival))
	}

	if !startReorder {
		return
	}
	switch {
	case tReordering < 0:
		// infinity: never start, only deliver once holes close.
	case tReordering == 0:
		rx.onTReorderingExpire()
	default:
		rx.reorderTimer.Start(tReordering)
	}
}

func (rx *RxHalf) collectDeliverableLocked() [][]byte {
	var out [][]byte
	for {
		item, ok := rx.window.Get(rx.rxDeliv)
		if !ok {
			break
		}
		out = append(out, item.sduBytes)
		rx.window.Remove(rx.rxDeliv)
		rx.rxDeliv++
	}
	return out
}

// onTReorderingExpire implements TS 38.323 §5.2.2.2's t-Reordering expiry.
func (rx *RxHalf) onTReorderingExpire() {
	rx.mu.Lock()
	var delivered [][]byte
	for c := rx.rxDeliv; c < rx.rxReord; c++ {
		if item, ok := rx.window.Get(c); ok {
			delivered = append(delivered, item.sduBytes)
			rx.window.Remove(c)
		}
	}
	rx.rxDeliv = rx.rxReord
	delivered = append(delivered, rx.collectDeliverableLocked()...)

	restart := rx.rxDeliv < rx.rxNext
	if restart {
		rx.rxReord = rx.rxNext
	}
	tReordering := rx.cfg.TReordering
	rx.mu.Unlock()

	for _, s := range delivered {
		rx.upperData.OnNewSDU(s)
	}
	if rx.metrics != nil {
		rx.metrics.AddReorderTimeout()
	}
	if restart && tReordering > 0 {
		rx.reorderTimer.Start(tReordering)
	} else if restart && tReordering == 0 {
		rx.onTReorderingExpire()
	}
}

// CompileStatusReport implements StatusProvider for the TX peer (§4.2,
// §5.4.1).
func (rx *RxHalf) CompileStatusReport() []byte {
	rx.mu.Lock()
	defer rx.mu.Unlock()
	return CompileStatusReport(rx.rxDeliv, rx.rxNext, rx.window.Has)
}

// PDCPCountInfo is the status-transfer payload for SetCount/GetCount
// (handover).
type PDCPCountInfo struct {
	RXNext  uint32
	RXDeliv uint32
}

// SetCount applies status-transfer state during handover; warns if
// applied over non-zero existing state, per pdcp_entity_rx.h.
func (rx *RxHalf) SetCount(info PDCPCountInfo) {
	rx.mu.Lock()
	defer rx.mu.Unlock()
	if rx.rxNext != 0 || rx.rxDeliv != 0 {
		if rx.logger != nil {
			rx.logger.Warn("set_count applied over non-zero rx state")
		}
	}
	rx.rxNext = info.RXNext
	rx.rxDeliv = info.RXDeliv
}

// GetCount returns the current RX state for status-transfer.
func (rx *RxHalf) GetCount() PDCPCountInfo {
	rx.mu.Lock()
	defer rx.mu.Unlock()
	return PDCPCountInfo{RXNext: rx.rxNext, RXDeliv: rx.rxDeliv}
}

// Reestablish replaces the security configuration and applies the
// mode-dependent RX cleanup of spec.md §4.5.
func (rx *RxHalf) Reestablish(sec SecurityConfig) {
	rx.mu.Lock()
	rx.sec = sec
	switch {
	case rx.cfg.RBType == RBTypeSRB:
		rx.window.Clear()
		rx.rxNext, rx.rxDeliv, rx.rxReord = 0, 0, 0
		rx.mu.Unlock()
		rx.reorderTimer.Stop()
	case rx.cfg.RLCMode == RLCModeUM:
		counts := rx.window.Counts()
		var toDeliver [][]byte
		for _, c := range counts {
			if item, ok := rx.window.Get(c); ok {
				toDeliver = append(toDeliver, item.sduBytes)
			}
		}
		rx.window.Clear()
		rx.rxNext, rx.rxDeliv, rx.rxReord = 0, 0, 0
		rx.mu.Unlock()
		rx.reorderTimer.Stop()
		for _, s := range toDeliver {
			rx.upperData.OnNewSDU(s)
		}
	default: // DRB-AM: preserve state and window contents, keep t-Reordering running.
		rx.mu.Unlock()
	}
}

// State returns the current RX state, for tests and metrics.
func (rx *RxHalf) State() (rxNext, rxDeliv, rxReord uint32) {
	rx.mu.Lock()
	defer rx.mu.Unlock()
	return rx.rxNext, rx.rxDeliv, rx.rxReord
}
