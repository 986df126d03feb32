// Package pdcp implements one PDCP entity (TS 38.323) terminating a single
// radio bearer: a TX half, an RX half, and the state/wire-format plumbing
// shared between them.
package pdcp

// SNSize is the configured sequence-number width for a bearer, in bits.
type SNSize uint8

const (
	SNSize12 SNSize = 12
	SNSize18 SNSize = 18
)

// mask returns the bitmask covering the low sn bits of a COUNT.
func (s SNSize) mask() uint32 {
	return (uint32(1) << uint(s)) - 1
}

// WindowSize returns 2^(sn_size-1): 2048 for 12-bit SNs, 131072 for 18-bit.
func (s SNSize) WindowSize() uint32 {
	return uint32(1) << uint(s-1)
}

// SN extracts the sequence number (low sn_size bits) from a COUNT.
func (s SNSize) SN(count uint32) uint32 {
	return count & s.mask()
}

// HFN extracts the hyper-frame number (high bits) from a COUNT.
func (s SNSize) HFN(count uint32) uint32 {
	return count >> uint(s)
}

// Count combines an HFN and SN into a COUNT.
func (s SNSize) Count(hfn, sn uint32) uint32 {
	return (hfn << uint(s)) | (sn & s.mask())
}

// RecoverCountRX implements TS 38.323 §5.2.2's COUNT reconstruction: given
// a received SN and the current RX_DELIV, pick the HFN that places the
// recovered COUNT nearest RX_DELIV.
func (s SNSize) RecoverCountRX(sn uint32, rxDeliv uint32) uint32 {
	windowSize := s.WindowSize()
	snMod := uint32(1) << uint(s)
	rxDelivSN := s.SN(rxDeliv)
	rxDelivHFN := s.HFN(rxDeliv)

	snDiff := int64(sn) - int64(rxDelivSN)
	var hfn uint32
	switch {
	case snDiff > int64(windowSize):
		hfn = rxDelivHFN - 1
	case snDiff < -int64(windowSize):
		hfn = rxDelivHFN + 1
	default:
		hfn = rxDelivHFN
	}
	_ = snMod
	return s.Count(hfn, sn)
}

// RecoverCountTXNotification implements the TX half's SN-to-COUNT recovery
// for lower-layer notifications (spec.md §4.1): choose the HFN so the
// resulting COUNT lies in [lowerEdge, upperEdge). Returns ok=false if no
// such COUNT exists, meaning the notification must be silently ignored.
func (s SNSize) RecoverCountTXNotification(sn uint32, lowerEdge, upperEdge uint32) (count uint32, ok bool) {
	if upperEdge <= lowerEdge {
		return 0, false
	}
	lowerHFN := s.HFN(lowerEdge)
	for _, hfn := range [...]uint32{lowerHFN, lowerHFN + 1, lowerHFN - 1} {
		c := s.Count(hfn, sn)
		if c >= lowerEdge && c < upperEdge {
			return c, true
		}
	}
	return 0, false
}
