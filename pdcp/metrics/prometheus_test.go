package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusNotifierPublishesCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	n := NewPrometheusNotifier(reg)

	n.ReportMetrics(Report{
		UEIndex: 3,
		RBID:    2,
		Tx:      TxReport{NumSDUs: 5, NumPDUs: 5},
		Rx:      RxReport{NumPDUs: 4, NumDroppedPDUs: 1},
	})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var foundTxSDUs bool
	for _, f := range families {
		if f.GetName() == "pdcp_tx_sdus_total" {
			foundTxSDUs = true
			for _, metric := range f.GetMetric() {
				if metric.GetCounter().GetValue() != 5 {
					t.Fatalf("expected counter value 5, got %v", metric.GetCounter().GetValue())
				}
			}
		}
	}
	if !foundTxSDUs {
		t.Fatal("expected pdcp_tx_sdus_total metric family to be registered")
	}
}
