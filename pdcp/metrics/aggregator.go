package metrics

import (
	"time"

	"go5gcore.dev/pdcp/executor"
	"go5gcore.dev/pdcp/internal/bearerlog"
	"go5gcore.dev/pdcp/timer"
)

// Report pairs a TX and RX snapshot for one bearer at one reporting
// instant, mirroring pdcp_metrics_aggregator's combined push_report.
// EntityID correlates the report back to the owning Entity's log lines
// across a reestablishment, where UEIndex/RBID are reused by a fresh
// Entity.
type Report struct {
	UEIndex  uint64
	RBID     uint8
	EntityID string
	Tx       TxReport
	Rx       RxReport
}

// Notifier receives periodic Reports. Implementations must not block for
// long, since ReportMetrics is invoked from the bearer's own executor for
// periodic reports (FlushNow invokes it on the caller's goroutine).
type Notifier interface {
	ReportMetrics(Report)
}

// Aggregator periodically pulls TxMetrics/RxMetrics snapshots and pushes a
// combined Report to a Notifier, the Go equivalent of
// pdcp_metrics_aggregator. It runs its period timer on the caller-supplied
// executor so reporting is serialized with the rest of the bearer's state
// machine.
type Aggregator struct {
	ueIndex  uint64
	rbID     uint8
	entityID string
	period   time.Duration
	notifier Notifier
	exec     executor.Executor
	logger   *bearerlog.Logger

	tx *TxMetrics
	rx *RxMetrics

	reportTimer *timer.Timer
}

// NewAggregator wires tx/rx metric containers to a Notifier, reporting a
// combined Report every period on exec. Either tx or rx may be nil for a
// bearer that only ever carries traffic in one direction (e.g. a
// reestablished SRB pending RRC reconfiguration). entityID is stamped onto
// every pushed Report; it may be empty.
func NewAggregator(ueIndex uint64, rbID uint8, entityID string, period time.Duration, notifier Notifier, exec executor.Executor, tx *TxMetrics, rx *RxMetrics, logger *bearerlog.Logger) *Aggregator {
	a := &Aggregator{
		ueIndex:  ueIndex,
		rbID:     rbID,
		entityID: entityID,
		period:   period,
		notifier: notifier,
		exec:     exec,
		logger:   logger,
		tx:       tx,
		rx:       rx,
	}
	a.reportTimer = timer.New(exec, a.onPeriod)
	return a
}

// Start arms the periodic report timer. A non-positive period disables
// periodic reporting entirely (metrics can still be pulled via Snapshot).
func (a *Aggregator) Start() {
	if a.period <= 0 {
		return
	}
	a.reportTimer.Start(a.period)
}

// Stop cancels the periodic report timer.
func (a *Aggregator) Stop() {
	a.reportTimer.Stop()
}

func (a *Aggregator) onPeriod() {
	a.pushReport()
	a.reportTimer.Start(a.period)
}

func (a *Aggregator) pushReport() {
	if a.notifier == nil {
		return
	}
	r := Report{UEIndex: a.ueIndex, RBID: a.rbID, EntityID: a.entityID}
	if a.tx != nil {
		r.Tx = a.tx.SnapshotAndReset()
	}
	if a.rx != nil {
		r.Rx = a.rx.SnapshotAndReset()
	}
	a.notifier.ReportMetrics(r)
}

// FlushNow pushes a report immediately, outside the periodic schedule; used
// on entity Stop so a final report is never lost.
func (a *Aggregator) FlushNow() {
	a.pushReport()
}
