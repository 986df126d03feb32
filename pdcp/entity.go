package pdcp

import (
	"github.com/rs/xid"
	"go.uber.org/zap"

	"go5gcore.dev/pdcp/executor"
	"go5gcore.dev/pdcp/internal/bearerlog"
	"go5gcore.dev/pdcp/metrics"
	"go5gcore.dev/pdcp/security"
)

// EntityDeps are the collaborators an Entity does not own the lifecycle
// of: the peer notifiers it raises events toward, the crypto provider, and
// the base logger/metrics sink. Everything else (executors, crypto pool,
// token manager, metrics containers) is constructed by NewEntity.
type EntityDeps struct {
	UEIndex uint64
	RBID    uint8

	Provider security.Provider

	UpperData RXUpperDataNotifier
	TxCtrl    TXUpperControlNotifier
	RxCtrl    RXUpperControlNotifier
	Lower     TXLowerNotifier

	MetricsNotifier metrics.Notifier
	BaseLogger      *zap.Logger
}

// Entity is one PDCP entity terminating a single radio bearer: a TX half,
// an RX half, and the shared executors/crypto pool/token manager/metrics
// aggregator that bind them together (spec.md §5, "Concurrency model").
type Entity struct {
	// ID correlates this entity's log lines and metrics reports across a
	// reestablishment, where UEIndex/RBID are reused by a fresh Entity.
	ID xid.ID

	cfg Config

	dlExec executor.Executor
	ulExec executor.Executor

	crypto *executor.CryptoPool
	tokens *CryptoTokenManager

	tx *TxHalf
	rx *RxHalf

	aggregator *metrics.Aggregator
}

// NewEntity builds and wires a complete PDCP entity. For SRBs, cfg's
// RequiresInlineExecutors is honored: a single inline executor drives both
// halves so RRC observes every result synchronously.
func NewEntity(cfg Config, sec SecurityConfig, deps EntityDeps) (*Entity, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Provider == nil {
		deps.Provider = security.NewDefaultProvider()
	}
	if deps.BaseLogger == nil {
		deps.BaseLogger = zap.NewNop()
	}

	var dlExec, ulExec executor.Executor
	if cfg.RequiresInlineExecutors() {
		shared := executor.NewInline()
		dlExec, ulExec = shared, shared
	} else {
		dlExec = executor.NewSerial(cfg.CryptoPoolQueueDepth)
		ulExec = executor.NewSerial(cfg.CryptoPoolQueueDepth)
	}

	crypto := executor.NewCryptoPool(cfg.CryptoPoolWorkers, cfg.CryptoPoolQueueDepth)
	tokens := NewCryptoTokenManager()

	id := xid.New()

	txLogger := bearerlog.New(deps.BaseLogger, deps.UEIndex, deps.RBID, "tx", id.String())
	rxLogger := bearerlog.New(deps.BaseLogger, deps.UEIndex, deps.RBID, "rx", id.String())

	txMetrics := metrics.NewTxMetrics(cfg.MetricsEnabled)
	rxMetrics := metrics.NewRxMetrics(cfg.MetricsEnabled)

	bearerID := bearerIDFromRBID(deps.RBID)

	e := &Entity{
		ID:     id,
		cfg:    cfg,
		dlExec: dlExec,
		ulExec: ulExec,
		crypto: crypto,
		tokens: tokens,
	}

	rx := NewRxHalf(cfg, sec, bearerID, deps.Provider, crypto, ulExec, tokens, deps.UpperData, deps.RxCtrl, nil, rxMetrics, rxLogger)
	tx := NewTxHalf(cfg, sec, bearerID, deps.Provider, crypto, dlExec, tokens, deps.TxCtrl, deps.Lower, rx, txMetrics, txLogger)
	rx.statusHandler = tx

	e.tx = tx
	e.rx = rx

	if deps.MetricsNotifier != nil {
		e.aggregator = metrics.NewAggregator(deps.UEIndex, deps.RBID, id.String(), cfg.MetricsPeriod, deps.MetricsNotifier, dlExec, txMetrics, rxMetrics, txLogger)
		e.aggregator.Start()
	}

	return e, nil
}

// bearerIDFromRBID implements spec.md's bearer_id = rb_id - 1 convention.
func bearerIDFromRBID(rbID uint8) uint8 {
	if rbID == 0 {
		return 0
	}
	return rbID - 1
}

// TX returns the entity's TX half.
func (e *Entity) TX() *TxHalf { return e.tx }

// RX returns the entity's RX half.
func (e *Entity) RX() *RxHalf { return e.rx }

// ConfigureSecurity applies a new key/algorithm configuration to both
// halves atomically (per-half, not cross-half).
func (e *Entity) ConfigureSecurity(sec SecurityConfig) {
	e.tx.ConfigureSecurity(sec)
	e.rx.ConfigureSecurity(sec)
}

// Reestablish applies the spec.md §4.5 mode-dependent reestablishment
// procedure to both halves under a new security configuration.
func (e *Entity) Reestablish(sec SecurityConfig) {
	e.tx.Reestablish(sec)
	e.rx.Reestablish(sec)
}

// Stop idempotently tears down the entity: it stops accepting further
// crypto submissions, flushes a final metrics report, and blocks until
// every in-flight crypto task has released its token before stopping the
// shared crypto pool and per-direction executors.
func (e *Entity) Stop() {
	if e.aggregator != nil {
		e.aggregator.FlushNow()
		e.aggregator.Stop()
	}
	<-e.tokens.Stop()
	e.crypto.Stop()
	if s, ok := e.dlExec.(*executor.Serial); ok {
		s.Stop()
	}
	if s, ok := e.ulExec.(*executor.Serial); ok && e.ulExec != e.dlExec {
		s.Stop()
	}
}
