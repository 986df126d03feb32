// Package bearerlog provides a per-bearer structured logger, the Go
// equivalent of srsRAN's pdcp_bearer_logger: every line is pre-tagged with
// the UE index, radio bearer id and TX/RX direction so log lines from many
// concurrent entities can be filtered back to one bearer.
package bearerlog

import "go.uber.org/zap"

// Logger wraps a *zap.Logger pre-seeded with bearer-identifying fields.
type Logger struct {
	*zap.Logger
}

// New returns a Logger derived from base, tagged with ue_index, rb_id,
// dir ("tx" or "rx") and the owning entity's correlation id. entityID may
// be empty, e.g. in tests that construct a Logger outside an Entity.
func New(base *zap.Logger, ueIndex uint64, rbID uint8, dir string, entityID string) *Logger {
	return &Logger{base.With(
		zap.Uint64("ue_index", ueIndex),
		zap.Uint8("rb_id", rbID),
		zap.String("dir", dir),
		zap.String("entity_id", entityID),
	)}
}
