package merton

import (
	"math"
)

// signalStrength is the ordinal strength attached to each signal.
var signalStrength = map[Signal]int{
	SignalStrongShort:   5,
	SignalModerateShort: 3,
	SignalNeutral:       1,
	SignalModerateLong:  3,
	SignalStrongLong:    5,
}

// Strength returns the ordinal strength (1-5) for the signal.
func (s Signal) Strength() int {
	if v, ok := signalStrength[s]; ok {
		return v
	}
	return 1
}

// Classify compares the theoretical spread against the observed market
// spread and emits a discrete signal.
//
// A theoretical spread far above the market means the market is
// underpricing default risk (short credit); far below means the market
// is overpricing it (long credit). The boundaries themselves classify
// as the weaker bucket: |diff| equal to the moderate threshold is
// NEUTRAL. Total over all real inputs; there are no error conditions.
func Classify(theoSpreadBps, marketSpreadBps float64, th SignalThresholds) SignalResult {
	diff := theoSpreadBps - marketSpreadBps

	var sig Signal
	switch {
	case diff > th.StrongBps:
		sig = SignalStrongShort
	case diff > th.ModerateBps:
		sig = SignalModerateShort
	case diff < -th.StrongBps:
		sig = SignalStrongLong
	case diff < -th.ModerateBps:
		sig = SignalModerateLong
	default:
		sig = SignalNeutral
	}

	// NaN input degrades to neutral rather than a directional call.
	if math.IsNaN(diff) {
		sig = SignalNeutral
		diff = 0
	}

	return SignalResult{
		Signal:        sig,
		Strength:      sig.Strength(),
		SpreadDiffBps: diff,
	}
}
