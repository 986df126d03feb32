package pdcp

// TXUpperControlNotifier receives TX-side protocol events destined for the
// CU-CP/RRC adapter (spec.md §6).
type TXUpperControlNotifier interface {
	OnMaxCountReached()
	OnProtocolFailure()
}

// TXLowerNotifier is the PDCP-produced side of the TX-lower interface:
// PDUs handed down to RLC/F1-U.
type TXLowerNotifier interface {
	OnNewPDU(pdu []byte, isRetx bool)
	OnDiscardPDU(sn uint32)
}

// RXUpperDataNotifier receives in-order SDUs delivered to the upper layer.
type RXUpperDataNotifier interface {
	OnNewSDU(sdu []byte)
}

// RXUpperControlNotifier receives RX-side protocol events.
type RXUpperControlNotifier interface {
	OnIntegrityFailure()
	OnProtocolFailure()
	OnMaxCountReached()
}

// StatusProvider is implemented by the RX half and consumed by the TX
// half: "compile and send status report" per spec.md §4.1.
type StatusProvider interface {
	CompileStatusReport() []byte
}

// StatusHandler is implemented by the TX half and consumed by the RX
// half, which forwards received status-report control PDUs verbatim.
type StatusHandler interface {
	OnStatusReport(buf []byte)
}
