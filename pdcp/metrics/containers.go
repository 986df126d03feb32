package metrics

import (
	"sync/atomic"
	"time"
)

// TxReport is an immutable point-in-time snapshot of TxMetrics, mirroring
// srsRAN's pdcp_tx_metrics_container.
type TxReport struct {
	NumSDUs            uint64
	NumSDUBytes        uint64
	NumDroppedSDUs     uint64
	NumDiscardedSDUs   uint64
	NumDiscardTimeouts uint64
	NumPDUs            uint64
	NumPDUBytes        uint64
	CryptoLatencyN     uint64
	CryptoLatencyMean  time.Duration
	CryptoLatencyBins  [8]uint64
}

// TxMetrics accumulates TX-side counters. Every method is safe to call
// concurrently, since SDU submission (application goroutine) and crypto
// completion (crypto pool worker) update it from different goroutines.
type TxMetrics struct {
	enabled bool

	numSDUs            uint64
	numSDUBytes        uint64
	numDroppedSDUs     uint64
	numDiscardedSDUs   uint64
	numDiscardTimeouts uint64
	numPDUs            uint64
	numPDUBytes        uint64
	cryptoLatency      LatencyHistogram
}

// NewTxMetrics returns a TxMetrics container; when enabled is false, every
// Add method is a no-op (matches the original's "metrics disabled" fast
// path).
func NewTxMetrics(enabled bool) *TxMetrics { return &TxMetrics{enabled: enabled} }

func (m *TxMetrics) Enabled() bool { return m.enabled }

func (m *TxMetrics) AddSDUs(n uint64, bytes uint64) {
	if !m.enabled {
		return
	}
	atomic.AddUint64(&m.numSDUs, n)
	atomic.AddUint64(&m.numSDUBytes, bytes)
}

func (m *TxMetrics) AddDroppedSDUs(n uint64) {
	if !m.enabled {
		return
	}
	atomic.AddUint64(&m.numDroppedSDUs, n)
}

func (m *TxMetrics) AddDiscardedSDUs(n uint64) {
	if !m.enabled {
		return
	}
	atomic.AddUint64(&m.numDiscardedSDUs, n)
}

func (m *TxMetrics) AddDiscardTimeouts(n uint64) {
	if !m.enabled {
		return
	}
	atomic.AddUint64(&m.numDiscardTimeouts, n)
}

func (m *TxMetrics) AddPDUs(n uint64, bytes uint64) {
	if !m.enabled {
		return
	}
	atomic.AddUint64(&m.numPDUs, n)
	atomic.AddUint64(&m.numPDUBytes, bytes)
}

func (m *TxMetrics) AddCryptoLatency(d time.Duration) {
	if !m.enabled {
		return
	}
	m.cryptoLatency.Observe(d)
}

func (m *TxMetrics) Snapshot() TxReport {
	bins, n, mean := m.cryptoLatency.Snapshot()
	return TxReport{
		NumSDUs:            atomic.LoadUint64(&m.numSDUs),
		NumSDUBytes:        atomic.LoadUint64(&m.numSDUBytes),
		NumDroppedSDUs:     atomic.LoadUint64(&m.numDroppedSDUs),
		NumDiscardedSDUs:   atomic.LoadUint64(&m.numDiscardedSDUs),
		NumDiscardTimeouts: atomic.LoadUint64(&m.numDiscardTimeouts),
		NumPDUs:            atomic.LoadUint64(&m.numPDUs),
		NumPDUBytes:        atomic.LoadUint64(&m.numPDUBytes),
		CryptoLatencyN:     n,
		CryptoLatencyMean:  mean,
		CryptoLatencyBins:  bins,
	}
}

// SnapshotAndReset returns the current snapshot and zeroes the container.
func (m *TxMetrics) SnapshotAndReset() TxReport {
	r := m.Snapshot()
	atomic.StoreUint64(&m.numSDUs, 0)
	atomic.StoreUint64(&m.numSDUBytes, 0)
	atomic.StoreUint64(&m.numDroppedSDUs, 0)
	atomic.StoreUint64(&m.numDiscardedSDUs, 0)
	atomic.StoreUint64(&m.numDiscardTimeouts, 0)
	atomic.StoreUint64(&m.numPDUs, 0)
	atomic.StoreUint64(&m.numPDUBytes, 0)
	m.cryptoLatency.Reset()
	return r
}

// RxReport is an immutable point-in-time snapshot of RxMetrics, mirroring
// srsRAN's pdcp_rx_metrics_container.
type RxReport struct {
	NumPDUs           uint64
	NumPDUBytes       uint64
	NumDataPDUs       uint64
	NumDataPDUBytes   uint64
	NumDroppedPDUs    uint64
	NumIntegrityFail  uint64
	NumLostPDUs       uint64
	NumReorderTimeout uint64
	ReorderLatencyN   uint64
	ReorderLatencyAvg time.Duration
	ReorderLatencyBins [8]uint64
}

// RxMetrics accumulates RX-side counters.
type RxMetrics struct {
	enabled bool

	numPDUs           uint64
	numPDUBytes       uint64
	numDataPDUs       uint64
	numDataPDUBytes   uint64
	numDroppedPDUs    uint64
	numIntegrityFail  uint64
	numLostPDUs       uint64
	numReorderTimeout uint64
	reorderLatency    LatencyHistogram
}

func NewRxMetrics(enabled bool) *RxMetrics { return &RxMetrics{enabled: enabled} }

func (m *RxMetrics) Enabled() bool { return m.enabled }

func (m *RxMetrics) AddPDUs(n uint64, bytes uint64) {
	if !m.enabled {
		return
	}
	atomic.AddUint64(&m.numPDUs, n)
	atomic.AddUint64(&m.numPDUBytes, bytes)
}

func (m *RxMetrics) AddDataPDUs(n uint64, bytes uint64) {
	if !m.enabled {
		return
	}
	atomic.AddUint64(&m.numDataPDUs, n)
	atomic.AddUint64(&m.numDataPDUBytes, bytes)
}

func (m *RxMetrics) AddDroppedPDUs(n uint64) {
	if !m.enabled {
		return
	}
	atomic.AddUint64(&m.numDroppedPDUs, n)
}

func (m *RxMetrics) AddIntegrityFailures(n uint64) {
	if !m.enabled {
		return
	}
	atomic.AddUint64(&m.numIntegrityFail, n)
}

func (m *RxMetrics) AddLostPDUs(n uint64) {
	if !m.enabled {
		return
	}
	atomic.AddUint64(&m.numLostPDUs, n)
}

func (m *RxMetrics) AddReorderTimeout() {
	if !m.enabled {
		return
	}
	atomic.AddUint64(&m.numReorderTimeout, 1)
}

func (m *RxMetrics) AddReorderLatency(d time.Duration) {
	if !m.enabled {
		return
	}
	m.reorderLatency.Observe(d)
}

func (m *RxMetrics) Snapshot() RxReport {
	bins, n, mean := m.reorderLatency.Snapshot()
	return RxReport{
		NumPDUs:            atomic.LoadUint64(&m.numPDUs),
		NumPDUBytes:        atomic.LoadUint64(&m.numPDUBytes),
		NumDataPDUs:        atomic.LoadUint64(&m.numDataPDUs),
		NumDataPDUBytes:    atomic.LoadUint64(&m.numDataPDUBytes),
		NumDroppedPDUs:     atomic.LoadUint64(&m.numDroppedPDUs),
		NumIntegrityFail:   atomic.LoadUint64(&m.numIntegrityFail),
		NumLostPDUs:        atomic.LoadUint64(&m.numLostPDUs),
		NumReorderTimeout:  atomic.LoadUint64(&m.numReorderTimeout),
		ReorderLatencyN:    n,
		ReorderLatencyAvg:  mean,
		ReorderLatencyBins: bins,
	}
}

func (m *RxMetrics) SnapshotAndReset() RxReport {
	r := m.Snapshot()
	atomic.StoreUint64(&m.numPDUs, 0)
	atomic.StoreUint64(&m.numPDUBytes, 0)
	atomic.StoreUint64(&m.numDataPDUs, 0)
	atomic.StoreUint64(&m.numDataPDUBytes, 0)
	atomic.StoreUint64(&m.numDroppedPDUs, 0)
	atomic.StoreUint64(&m.numIntegrityFail, 0)
	atomic.StoreUint64(&m.numLostPDUs, 0)
	atomic.StoreUint64(&m.numReorderTimeout, 0)
	m.reorderLatency.Reset()
	return r
}
