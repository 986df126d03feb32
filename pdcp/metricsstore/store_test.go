package metricsstore

import (
	"path/filepath"
	"testing"

	"go5gcore.dev/pdcp/metrics"
)

func TestPutAndListReports(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "metrics.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	for seq := uint64(0); seq < 3; seq++ {
		r := metrics.Report{UEIndex: 9, RBID: 1, Tx: metrics.TxReport{NumSDUs: seq + 1}}
		if err := s.PutReport(seq, r); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	reports, err := s.ListReports(9, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}
	for i, r := range reports {
		if r.Tx.NumSDUs != uint64(i+1) {
			t.Fatalf("expected ascending seq order, got %+v at index %d", r, i)
		}
	}
}

func TestLatestReport(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "metrics.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	_, found, err := s.LatestReport(1, 1)
	if err != nil {
		t.Fatalf("latest on empty store: %v", err)
	}
	if found {
		t.Fatal("expected no report in an empty store")
	}

	if err := s.PutReport(0, metrics.Report{UEIndex: 1, RBID: 1, Rx: metrics.RxReport{NumPDUs: 1}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutReport(1, metrics.Report{UEIndex: 1, RBID: 1, Rx: metrics.RxReport{NumPDUs: 2}}); err != nil {
		t.Fatalf("put: %v", err)
	}

	latest, found, err := s.LatestReport(1, 1)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !found {
		t.Fatal("expected a report to be found")
	}
	if latest.Rx.NumPDUs != 2 {
		t.Fatalf("expected the latest seq's report, got %+v", latest)
	}
}

func TestReportsIsolatedPerBearer(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "metrics.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.PutReport(0, metrics.Report{UEIndex: 1, RBID: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutReport(0, metrics.Report{UEIndex: 1, RBID: 2}); err != nil {
		t.Fatalf("put: %v", err)
	}

	rb1, err := s.ListReports(1, 1)
	if err != nil {
		t.Fatalf("list rb1: %v", err)
	}
	rb2, err := s.ListReports(1, 2)
	if err != nil {
		t.Fatalf("list rb2: %v", err)
	}
	if len(rb1) != 1 || len(rb2) != 1 {
		t.Fatalf("expected one report per bearer, got rb1=%d rb2=%d", len(rb1), len(rb2))
	}
}
