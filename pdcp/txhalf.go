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

type txSDU struct {
	count       uint32
	sduBytes    []byte // kept only for AM (data_recovery retransmission)
	pduBytes    int
	deadline    time.Time // zero means no discard timer armed
	submittedAt time.Time
	done        bool
	ciphered    []byte
}

// TxHalf is the TX side of a PDCP entity (spec.md §4.1).
type TxHalf struct {
	cfg    Config
	bearer uint8

	mu            sync.Mutex
	sec           SecurityConfig
	txNext        uint32
	txTrans       uint32
	txTransCrypto uint32
	txNextAck     uint32
	bufferSet     bool
	desiredBudget uint64
	inWindowBytes uint64
	maxCountHit   bool
	protoFailHit  bool

	window *window.Window[*txSDU]

	discardTimer *timer.Timer
	gapTimer     *timer.Timer

	provider security.Provider
	crypto   *executor.CryptoPool
	exec     executor.Executor
	tokens   *CryptoTokenManager

	upperCtrl StatusHolder
	lower     TXLowerNotifier
	status    StatusProvider

	metrics *metrics.TxMetrics
	logger  *bearerlog.Logger
}

// StatusHolder is an alias of TXUpperControlNotifier, the type of the
// notifier the TX half raises max-count and protocol-failure events on.
type StatusHolder = TXUpperControlNotifier

// NewTxHalf constructs a TX half. provider, crypto, exec, tokens, lower and
// status must be non-nil; upperCtrl may be nil (events silently dropped).
func NewTxHalf(cfg Config, sec SecurityConfig, bearer uint8, provider security.Provider, crypto *executor.CryptoPool, exec executor.Executor, tokens *CryptoTokenManager, upperCtrl TXUpperControlNotifier, lower TXLowerNotifier, status StatusProvider, m *metrics.TxMetrics, logger *bearerlog.Logger) *TxHalf {
	tx := &TxHalf{
		cfg:       cfg,
		bearer:    bearer,
		sec:       sec,
		window:    window.New[*txSDU](cfg.SNSize.WindowSize()),
		provider:  provider,
		crypto:    crypto,
		exec:      exec,
		tokens:    tokens,
		upperCtrl: upperCtrl,
		lower:     lower,
		status:    status,
		metrics:   m,
		logger:    logger,
	}
	tx.discardTimer = timer.New(exec, tx.onDiscardTimer)
	tx.gapTimer = timer.New(exec, tx.onGapTimer)
	return tx
}

// ConfigureSecurity replaces the active security config atomically;
// subsequent crypto tasks observe it.
func (tx *TxHalf) ConfigureSecurity(sec SecurityConfig) {
	tx.mu.Lock()
	tx.sec = sec
	tx.mu.Unlock()
}

// HandleSDU processes an upper-layer SDU submission. Must run on tx.exec.
func (tx *TxHalf) HandleSDU(buf []byte) error {
	tx.mu.Lock()

	if tx.txNext >= tx.cfg.MaxCount.Hard {
		alreadyHit := tx.protoFailHit
		tx.protoFailHit = true
		tx.mu.Unlock()
		if !alreadyHit {
			tx.notifyProtocolFailure()
		}
		return ErrProtocolFailure
	}
	if !tx.maxCountHit && tx.txNext >= tx.cfg.MaxCount.Notify {
		tx.maxCountHit = true
		tx.mu.Unlock()
		if tx.upperCtrl != nil {
			tx.upperCtrl.OnMaxCountReached()
		}
		tx.mu.Lock()
	}

	windowSize := tx.cfg.SNSize.WindowSize()
	if tx.txNext-tx.txNextAck >= windowSize {
		tx.mu.Unlock()
		tx.dropSDU(tx.cfg.SNSize.SN(tx.txNext))
		return ErrWindowFull
	}

	hlen := tx.cfg.SNSize.HeaderLen()
	pduBytes := hlen + len(buf)
	if tx.sec.IntegrityEnabled {
		pduBytes += macLen
	}
	if tx.bufferSet {
		budget := uint64(0)
		if tx.desiredBudget > tx.inWindowBytes {
			budget = tx.desiredBudget - tx.inWindowBytes
		}
		if uint64(pduBytes) > budget {
			tx.mu.Unlock()
			tx.dropSDU(tx.cfg.SNSize.SN(tx.txNext))
			return ErrBackpressure
		}
	}

	count := tx.txNext
	now := time.Now()
	var deadline time.Time
	if tx.cfg.DiscardTimer >= 0 {
		deadline = now.Add(tx.cfg.DiscardTimer)
	}
	item := &txSDU{count: count, pduBytes: pduBytes, deadline: deadline, submittedAt: now}
	if tx.cfg.RLCMode == RLCModeAM {
		item.sduBytes = append([]byte(nil), buf...)
	}
	if err := tx.window.Insert(count, tx.txNextAck, item); err != nil {
		tx.mu.Unlock()
		tx.dropSDU(tx.cfg.SNSize.SN(count))
		return err
	}
	tx.inWindowBytes += uint64(pduBytes)
	tx.txNext++
	sec := tx.sec
	tx.mu.Unlock()

	tx.rearmDiscardTimer()

	if tx.metrics != nil {
		tx.metrics.AddSDUs(1, uint64(len(buf)))
	}

	return tx.submitCrypto(count, buf, sec, false)
}

func (tx *TxHalf) submitCrypto(count uint32, sdu []byte, sec SecurityConfig, isRetx bool) error {
	token, ok := tx.tokens.Acquire()
	if !ok {
		return ErrStopped
	}
	submitted := tx.crypto.Submit(func() {
		start := time.Now()
		pdu := tx.cipherAndIntegrity(count, sdu, sec)
		latency := time.Since(start)
		token.Release()
		tx.exec.Execute(func() {
			tx.onCryptoDone(count, pdu, latency, isRetx)
		})
	})
	if !submitted {
		token.Release()
		tx.mu.Lock()
		if item, found := tx.window.Get(count); found {
			tx.inWindowBytes -= uint64(item.pduBytes)
		}
		tx.window.Remove(count)
		tx.mu.Unlock()
		if tx.metrics != nil {
			tx.metrics.AddDroppedSDUs(1)
		}
		return ErrCryptoQueueFull
	}
	return nil
}

func (tx *TxHalf) cipherAndIntegrity(count uint32, sdu []byte, sec SecurityConfig) []byte {
	hlen := tx.cfg.SNSize.HeaderLen()
	header := make([]byte, hlen)
	tx.cfg.SNSize.EncodeDataHeader(header, count)

	payload := sdu
	if sec.CipheringEnabled {
		_, kEnc := sec.Keys.KeysFor(sec.Domain)
		ciphertext, err := tx.provider.Cipher(sec.Keys.CipherAlgo, kEnc, count, tx.bearer, tx.cfg.Direction, sdu)
		if err == nil {
			payload = ciphertext
		}
	}

	out := make([]byte, 0, hlen+len(payload)+macLen)
	out = append(out, header...)
	out = append(out, payload...)
	if sec.IntegrityEnabled {
		kInt, _ := sec.Keys.KeysFor(sec.Domain)
		mac := tx.provider.Integrity(sec.Keys.IntegAlgo, kInt, count, tx.bearer, tx.cfg.Direction, out)
		out = append(out, mac[:]...)
	}
	return out
}

func (tx *TxHalf) onCryptoDone(count uint32, pdu []byte, latency time.Duration, isRetx bool) {
	tx.mu.Lock()
	item, ok := tx.window.Get(count)
	if !ok {
		tx.mu.Unlock()
		return // already discarded/acked/purged before crypto finished
	}
	item.done = true
	item.ciphered = pdu
	tx.mu.Unlock()

	if tx.metrics != nil {
		tx.metrics.AddCryptoLatency(latency)
	}
	if isRetx {
		tx.lower.OnNewPDU(pdu, true)
		if tx.metrics != nil {
			tx.metrics.AddPDUs(1, uint64(len(pdu)))
		}
		return
	}
	tx.drain()
}

// drain walks TX_TRANS_CRYPTO upward over completed slots, preserving FIFO
// delivery order to the lower layer despite out-of-order crypto
// completion (spec.md §4.1, "Crypto path").
func (tx *TxHalf) drain() {
	for {
		tx.mu.Lock()
		if tx.txTransCrypto >= tx.txNext {
			tx.mu.Unlock()
			return
		}
		item, ok := tx.window.Get(tx.txTransCrypto)
		if !ok {
			// already discarded: just skip past the hole.
			tx.txTransCrypto++
			tx.mu.Unlock()
			continue
		}
		if !item.done {
			if time.Since(item.submittedAt) > tx.cfg.CryptoReorderTimeout && tx.cfg.CryptoReorderTimeout > 0 {
				tx.txTransCrypto++
				tx.mu.Unlock()
				if tx.metrics != nil {
					tx.metrics.AddDroppedSDUs(1)
				}
				continue
			}
			tx.mu.Unlock()
			tx.armGapTimer(tx.cfg.CryptoReorderTimeout)
			return
		}
		pdu := item.ciphered
		tx.txTransCrypto++
		tx.mu.Unlock()

		tx.lower.OnNewPDU(pdu, false)
		if tx.metrics != nil {
			tx.metrics.AddPDUs(1, uint64(len(pdu)))
		}
	}
}

func (tx *TxHalf) armGapTimer(d time.Duration) {
	if d <= 0 {
		return
	}
	tx.gapTimer.Start(d)
}

func (tx *TxHalf) onGapTimer() {
	tx.drain()
}

func (tx *TxHalf) dropSDU(sn uint32) {
	if tx.metrics != nil {
		tx.metrics.AddDroppedSDUs(1)
	}
	tx.lower.OnDiscardPDU(sn)
}

func (tx *TxHalf) notifyProtocolFailure() {
	if tx.upperCtrl != nil {
		tx.upperCtrl.OnProtocolFailure()
	}
}

// HandleTransmitNotification advances TX_TRANS and disarms discard timers
// for SDUs at or below the recovered COUNT.
func (tx *TxHalf) HandleTransmitNotification(sn uint32) {
	tx.advanceNotification(sn, false)
}

// HandleRetransmitNotification behaves like HandleTransmitNotification for
// a PDU RLC reports it retransmitted.
func (tx *TxHalf) HandleRetransmitNotification(sn uint32) {
	tx.advanceNotification(sn, false)
}

// HandleDeliveryNotification advances TX_NEXT_ACK and purges delivered
// SDUs from the window.
func (tx *TxHalf) HandleDeliveryNotification(sn uint32) {
	tx.advanceNotification(sn, true)
}

// HandleDeliveryRetransmittedNotification behaves like
// HandleDeliveryNotification for a retransmitted PDU's delivery.
func (tx *TxHalf) HandleDeliveryRetransmittedNotification(sn uint32) {
	tx.advanceNotification(sn, true)
}

func (tx *TxHalf) advanceNotification(sn uint32, isDelivery bool) {
	tx.mu.Lock()
	count, ok := tx.cfg.SNSize.RecoverCountTXNotification(sn, tx.txNextAck, tx.txNext)
	if !ok {
		tx.mu.Unlock()
		return // spec.md §9 Open Question (a): silently ignored, no state change.
	}
	tx.disarmUpToLocked(count)
	if isDelivery {
		if count+1 > tx.txNextAck {
			for c := tx.txNextAck; c <= count; c++ {
				if item, found := tx.window.Get(c); found {
					tx.inWindowBytes -= uint64(item.pduBytes)
					tx.window.Remove(c)
				}
			}
			tx.txNextAck = count + 1
		}
	} else if count+1 > tx.txTrans {
		tx.txTrans = count + 1
	}
	tx.mu.Unlock()
	tx.rearmDiscardTimer()
}

func (tx *TxHalf) disarmUpToLocked(count uint32) {
	tx.window.Range(func(c uint32, item *txSDU) bool {
		if c > count {
			return false
		}
		item.deadline = time.Time{}
		return true
	})
}

// HandleDesiredBufferSizeNotification updates the RLC backpressure budget.
func (tx *TxHalf) HandleDesiredBufferSizeNotification(bytes uint64) {
	tx.mu.Lock()
	tx.desiredBudget = bytes
	tx.bufferSet = true
	tx.mu.Unlock()
}

// OnStatusReport consumes a received status-report control PDU (AM DRBs
// only): every SDU strictly below FMC is implicitly acked (FMC is
// RX_DELIV, so anything below it was already delivered) and every SDU the
// bitmap marks received (bit set) is purged and its discard timer
// disarmed. FMC itself is never purged here — it is the first
// still-missing COUNT and stays armed under its own discard timer. SDUs
// the bitmap marks still-missing (bit cleared) are left running toward
// their normal expiry.
func (tx *TxHalf) OnStatusReport(buf []byte) {
	if tx.cfg.RLCMode != RLCModeAM {
		return
	}
	report, err := ParseStatusReport(buf)
	if err != nil {
		return
	}
	tx.mu.Lock()
	var belowFMC []uint32
	tx.window.Range(func(c uint32, _ *txSDU) bool {
		if c < report.FMC {
			belowFMC = append(belowFMC, c)
		}
		return true
	})
	for _, c := range belowFMC {
		tx.purgeLocked(c)
	}
	for _, c := range report.AckedCounts() {
		tx.purgeLocked(c)
	}
	for tx.txNextAck < tx.txTrans && !tx.window.Has(tx.txNextAck) {
		tx.txNextAck++
	}
	tx.mu.Unlock()
	tx.rearmDiscardTimer()
}

func (tx *TxHalf) purgeLocked(count uint32) {
	if item, found := tx.window.Get(count); found {
		tx.inWindowBytes -= uint64(item.pduBytes)
		tx.window.Remove(count)
	}
}

// DataRecovery implements TS 38.323 data-recovery (AM DRBs only): emit a
// fresh status report, then retransmit every SDU still held in the TX
// window.
func (tx *TxHalf) DataRecovery() {
	if tx.cfg.RLCMode != RLCModeAM {
		return
	}
	if tx.status != nil {
		tx.lower.OnNewPDU(tx.status.CompileStatusReport(), false)
	}
	tx.retransmitWindow()
}

// retransmitWindow re-ciphers and resends every SDU still held in the TX
// window as a retx PDU, under the currently active security config.
func (tx *TxHalf) retransmitWindow() {
	tx.mu.Lock()
	counts := tx.window.Counts()
	sec := tx.sec
	tx.mu.Unlock()
	for _, c := range counts {
		tx.mu.Lock()
		item, ok := tx.window.Get(c)
		tx.mu.Unlock()
		if !ok || item.sduBytes == nil {
			continue
		}
		_ = tx.submitCrypto(c, item.sduBytes, sec, true)
	}
}

func (tx *TxHalf) rearmDiscardTimer() {
	if tx.cfg.DiscardTimer < 0 {
		return
	}
	tx.mu.Lock()
	var soonest time.Time
	tx.window.Range(func(_ uint32, item *txSDU) bool {
		if item.deadline.IsZero() {
			return true
		}
		if soonest.IsZero() || item.deadline.Before(soonest) {
			soonest = item.deadline
		}
		return true
	})
	tx.mu.Unlock()
	if soonest.IsZero() {
		tx.discardTimer.Stop()
		return
	}
	d := time.Until(soonest)
	if d <= 0 {
		d = time.Nanosecond
	}
	tx.discardTimer.Start(d)
}

func (tx *TxHalf) onDiscardTimer() {
	now := time.Now()
	var expired []uint32
	tx.mu.Lock()
	tx.window.Range(func(c uint32, item *txSDU) bool {
		if !item.deadline.IsZero() && !item.deadline.After(now) {
			expired = append(expired, c)
		}
		return true
	})
	for _, c := range expired {
		item, ok := tx.window.Get(c)
		if ok {
			tx.inWindowBytes -= uint64(item.pduBytes)
		}
		tx.window.Remove(c)
	}
	for tx.txNextAck < tx.txNext && !tx.window.Has(tx.txNextAck) && tx.txNextAck < tx.txTrans {
		tx.txNextAck++
	}
	tx.mu.Unlock()

	for _, c := range expired {
		tx.lower.OnDiscardPDU(tx.cfg.SNSize.SN(c))
		if tx.metrics != nil {
			tx.metrics.AddDiscardTimeouts(1)
		}
	}
	tx.rearmDiscardTimer()
}

// Reestablish replaces the security configuration and applies the
// mode-dependent TX cleanup of spec.md §4.5.
func (tx *TxHalf) Reestablish(sec SecurityConfig) {
	tx.mu.Lock()
	tx.sec = sec
	switch {
	case tx.cfg.RBType == RBTypeSRB:
		tx.clearWindowLocked()
		tx.txNext, tx.txTrans, tx.txTransCrypto, tx.txNextAck = 0, 0, 0, 0
	case tx.cfg.RLCMode == RLCModeUM:
		counts := tx.window.Counts()
		var toFlush [][]byte
		for _, c := range counts {
			if item, ok := tx.window.Get(c); ok && item.ciphered != nil {
				toFlush = append(toFlush, item.ciphered)
			}
		}
		tx.clearWindowLocked()
		tx.txNext, tx.txTrans, tx.txTransCrypto, tx.txNextAck = 0, 0, 0, 0
		tx.mu.Unlock()
		for _, pdu := range toFlush {
			tx.lower.OnNewPDU(pdu, false)
		}
		tx.discardTimer.Stop()
		return
	default: // DRB-AM
		tx.txTrans = tx.txNextAck
		tx.txTransCrypto = tx.txNextAck
		tx.mu.Unlock()
		tx.retransmitWindow()
		return
	}
	tx.mu.Unlock()
}

func (tx *TxHalf) clearWindowLocked() {
	tx.window.Clear()
	tx.inWindowBytes = 0
	tx.discardTimer.Stop()
	tx.gapTimer.Stop()
}

// State returns the current TX state, for tests and metrics.
func (tx *TxHalf) State() (txNext, txTrans, txTransCrypto, txNextAck uint32) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.txNext, tx.txTrans, tx.txTransCrypto, tx.txNextAck
}
