// Package metricsstore persists PDCP metrics reports to a local bbolt
// database, the Go equivalent of how the teacher's node/store package
// persists chain state: one bucket, binary-prefixed keys, JSON-encoded
// values.
package metricsstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"go5gcore.dev/pdcp/metrics"
)

var bucketReports = []byte("pdcp_metrics_reports")

// Store archives metrics.Report snapshots keyed by (ue_index, rb_id, seq),
// so a report notifier can retain history beyond the live Prometheus
// scrape window.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) a bbolt database at path and ensures the
// report bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("metricsstore: open bbolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReports)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("metricsstore: create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PutReport persists r under (r.UEIndex, r.RBID, seq). seq should be a
// caller-maintained monotonically increasing sequence per bearer so
// ListReports returns reports in submission order.
func (s *Store) PutReport(seq uint64, r metrics.Report) error {
	val, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("metricsstore: encode report: %w", err)
	}
	key := reportKey(r.UEIndex, r.RBID, seq)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReports).Put(key, val)
	})
}

// ListReports returns every archived report for (ueIndex, rbID) in
// ascending seq order.
func (s *Store) ListReports(ueIndex uint64, rbID uint8) ([]metrics.Report, error) {
	prefix := reportKeyPrefix(ueIndex, rbID)
	var out []metrics.Report
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketReports).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var r metrics.Report
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("metricsstore: decode report: %w", err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LatestReport returns the most recently archived report for the bearer,
// if any.
func (s *Store) LatestReport(ueIndex uint64, rbID uint8) (metrics.Report, bool, error) {
	prefix := reportKeyPrefix(ueIndex, rbID)
	var out metrics.Report
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketReports).Cursor()
		var lastVal []byte
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			lastVal = v
		}
		if lastVal == nil {
			return nil
		}
		if err := json.Unmarshal(lastVal, &out); err != nil {
			return fmt.Errorf("metricsstore: decode report: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return metrics.Report{}, false, err
	}
	return out, found, nil
}

func reportKeyPrefix(ueIndex uint64, rbID uint8) []byte {
	prefix := make([]byte, 9)
	binary.BigEndian.PutUint64(prefix[0:8], ueIndex)
	prefix[8] = rbID
	return prefix
}

func reportKey(ueIndex uint64, rbID uint8, seq uint64) []byte {
	key := make([]byte, 17)
	copy(key, reportKeyPrefix(ueIndex, rbID))
	binary.BigEndian.PutUint64(key[9:17], seq)
	return key
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
