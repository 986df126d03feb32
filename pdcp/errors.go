package pdcp

import "errors"

var (
	// ErrProtocolFailure is returned when TX_NEXT would cross max_count.hard.
	ErrProtocolFailure = errors.New("pdcp: protocol failure")
	// ErrWindowFull is returned when handle_sdu is refused because
	// TX_NEXT - TX_NEXT_ACK >= window_size.
	ErrWindowFull = errors.New("pdcp: tx window full")
	// ErrBackpressure is returned when handle_sdu is refused by the RLC
	// desired-buffer-size budget.
	ErrBackpressure = errors.New("pdcp: desired buffer size exceeded")
	// ErrStopped is returned when an operation is attempted after Stop.
	ErrStopped = errors.New("pdcp: entity stopped")
	// ErrCryptoQueueFull is returned when the crypto pool rejects a task.
	ErrCryptoQueueFull = errors.New("pdcp: crypto queue full")
	// ErrIntegrityFailed names a MAC-I mismatch. The RX half does not
	// return it: a failed check is counted in RxMetrics and signalled via
	// RXUpperControlNotifier.OnIntegrityFailure.
	ErrIntegrityFailed = errors.New("pdcp: integrity check failed")
)
