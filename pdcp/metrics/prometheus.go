package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusNotifier is a Notifier that republishes every Report as
// Prometheus counters/gauges labeled by ue_index and rb_id, for scraping
// by a collector registered against a *prometheus.Registry.
type PrometheusNotifier struct {
	txSDUs       *prometheus.CounterVec
	txSDUBytes   *prometheus.CounterVec
	txPDUs       *prometheus.CounterVec
	txPDUBytes   *prometheus.CounterVec
	txDiscards   *prometheus.CounterVec
	rxPDUs       *prometheus.CounterVec
	rxPDUBytes   *prometheus.CounterVec
	rxDropped    *prometheus.CounterVec
	rxLost       *prometheus.CounterVec
	cryptoLatNs  *prometheus.GaugeVec
}

// NewPrometheusNotifier constructs and registers the PDCP metric family on
// reg.
func NewPrometheusNotifier(reg prometheus.Registerer) *PrometheusNotifier {
	labels := []string{"ue_index", "rb_id"}
	n := &PrometheusNotifier{
		txSDUs:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "pdcp", Subsystem: "tx", Name: "sdus_total"}, labels),
		txSDUBytes:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "pdcp", Subsystem: "tx", Name: "sdu_bytes_total"}, labels),
		txPDUs:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "pdcp", Subsystem: "tx", Name: "pdus_total"}, labels),
		txPDUBytes:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "pdcp", Subsystem: "tx", Name: "pdu_bytes_total"}, labels),
		txDiscards:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "pdcp", Subsystem: "tx", Name: "discard_timeouts_total"}, labels),
		rxPDUs:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "pdcp", Subsystem: "rx", Name: "pdus_total"}, labels),
		rxPDUBytes:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "pdcp", Subsystem: "rx", Name: "pdu_bytes_total"}, labels),
		rxDropped:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "pdcp", Subsystem: "rx", Name: "dropped_pdus_total"}, labels),
		rxLost:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "pdcp", Subsystem: "rx", Name: "lost_pdus_total"}, labels),
		cryptoLatNs: prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "pdcp", Subsystem: "tx", Name: "crypto_latency_ns_mean"}, labels),
	}
	reg.MustRegister(n.txSDUs, n.txSDUBytes, n.txPDUs, n.txPDUBytes, n.txDiscards,
		n.rxPDUs, n.rxPDUBytes, n.rxDropped, n.rxLost, n.cryptoLatNs)
	return n
}

func (n *PrometheusNotifier) ReportMetrics(r Report) {
	lbl := prometheus.Labels{
		"ue_index": strconv.FormatUint(r.UEIndex, 10),
		"rb_id":    strconv.FormatUint(uint64(r.RBID), 10),
	}
	n.txSDUs.With(lbl).Add(float64(r.Tx.NumSDUs))
	n.txSDUBytes.With(lbl).Add(float64(r.Tx.NumSDUBytes))
	n.txPDUs.With(lbl).Add(float64(r.Tx.NumPDUs))
	n.txPDUBytes.With(lbl).Add(float64(r.Tx.NumPDUBytes))
	n.txDiscards.With(lbl).Add(float64(r.Tx.NumDiscardTimeouts))
	n.rxPDUs.With(lbl).Add(float64(r.Rx.NumPDUs))
	n.rxPDUBytes.With(lbl).Add(float64(r.Rx.NumPDUBytes))
	n.rxDropped.With(lbl).Add(float64(r.Rx.NumDroppedPDUs))
	n.rxLost.With(lbl).Add(float64(r.Rx.NumLostPDUs))
	if r.Tx.CryptoLatencyN > 0 {
		n.cryptoLatNs.With(lbl).Set(float64(r.Tx.CryptoLatencyMean.Nanoseconds()))
	}
}
