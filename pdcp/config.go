package pdcp

import (
	"errors"
	"fmt"
	"time"

	"go5gcore.dev/pdcp/security"
)

// RBType distinguishes a Signalling Radio Bearer from a Data Radio Bearer.
type RBType uint8

const (
	RBTypeSRB RBType = iota
	RBTypeDRB
)

// RLCMode is the lower-layer RLC mode the bearer rides on.
type RLCMode uint8

const (
	RLCModeUM RLCMode = iota
	RLCModeAM
)

// Direction is fixed per half at init; reestablishment may reset state but
// never flips it.
type Direction = security.Direction

const (
	Downlink = security.Downlink
	Uplink   = security.Uplink
)

// Infinity marks a discard/t-Reordering timer configuration as never
// armed. It is distinct from a zero duration, which is itself a valid
// enumerated value (ms0) meaning "fire as soon as possible".
const Infinity time.Duration = -1

// MaxCount bounds the lifetime of a bearer's COUNT space: Notify is a soft
// warning threshold, Hard is where the bearer fails the protocol.
type MaxCount struct {
	Notify uint32
	Hard   uint32
}

// Config is the read-only-after-init configuration of one PDCP entity.
type Config struct {
	SNSize                SNSize        `json:"sn_size"`
	RBType                RBType        `json:"rb_type"`
	RLCMode               RLCMode       `json:"rlc_mode"`
	Direction             Direction     `json:"direction"`
	DiscardTimer          time.Duration `json:"discard_timer"`
	TReordering           time.Duration `json:"t_reordering"`
	StatusReportRequired  bool          `json:"status_report_required"`
	MaxCount              MaxCount      `json:"max_count"`
	CryptoPoolWorkers     int           `json:"crypto_pool_workers"`
	CryptoPoolQueueDepth  int           `json:"crypto_pool_queue_depth"`
	CryptoReorderTimeout  time.Duration `json:"crypto_reorder_timeout"`
	MetricsEnabled        bool          `json:"metrics_enabled"`
	MetricsPeriod         time.Duration `json:"metrics_period"`
}

// DefaultSRBConfig returns the configuration of a 12-bit SRB over AM, the
// most common CU-CP signalling bearer shape.
func DefaultSRBConfig() Config {
	return Config{
		SNSize:               SNSize12,
		RBType:               RBTypeSRB,
		RLCMode:              RLCModeAM,
		DiscardTimer:         Infinity,
		TReordering:          45 * time.Millisecond,
		StatusReportRequired: false,
		MaxCount:             MaxCount{Notify: 1 << 20, Hard: (1 << 31) - 1},
		CryptoPoolWorkers:    4,
		CryptoPoolQueueDepth: 64,
		CryptoReorderTimeout: 100 * time.Millisecond,
		MetricsEnabled:       true,
		MetricsPeriod:        time.Second,
	}
}

// DefaultDRBConfig returns the configuration of an 18-bit AM DRB, the
// common CU-UP user-plane bearer shape.
func DefaultDRBConfig() Config {
	cfg := DefaultSRBConfig()
	cfg.SNSize = SNSize18
	cfg.RBType = RBTypeDRB
	cfg.DiscardTimer = 100 * time.Millisecond
	cfg.StatusReportRequired = true
	return cfg
}

// Validate rejects configurations the TX/RX halves cannot operate under.
func (c Config) Validate() error {
	if c.SNSize != SNSize12 && c.SNSize != SNSize18 {
		return fmt.Errorf("invalid sn_size %d", c.SNSize)
	}
	if c.RBType == RBTypeSRB && c.SNSize != SNSize12 {
		return errors.New("SRBs must use 12-bit sequence numbers")
	}
	if c.RLCMode == RLCModeUM && c.StatusReportRequired {
		return errors.New("status reports require AM")
	}
	if c.MaxCount.Hard < c.MaxCount.Notify {
		return errors.New("max_count.hard must be >= max_count.notify")
	}
	if c.CryptoPoolWorkers <= 0 {
		return errors.New("crypto_pool_workers must be > 0")
	}
	if c.CryptoPoolQueueDepth <= 0 {
		return errors.New("crypto_pool_queue_depth must be > 0")
	}
	return nil
}

// RequiresInlineExecutors reports whether this bearer must be driven on an
// inline (synchronous) executor, per spec.md §5: SRBs are required to use
// the same inline executor for DL/UL/control so RRC observes results
// synchronously.
func (c Config) RequiresInlineExecutors() bool {
	return c.RBType == RBTypeSRB
}

// SecurityConfig wraps the keyed NIA/NEA selection plus independent
// integrity/ciphering enable toggles (spec.md §3).
type SecurityConfig struct {
	Keys              security.Sec128AsConfig
	Domain            security.Domain
	IntegrityEnabled  bool
	CipheringEnabled  bool
}

// DefaultSecurityConfig returns a null-algorithm configuration (NIA0/NEA0,
// both disabled) suitable before configure_security has run.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{}
}
