package dynamics

import (
	"math"

	"github.com/cwbudde/algo-speccomp/dsp/core"
)

// maxGainAdjustmentDB bounds the summed downward and upward adjustment so the
// linear gain stays finite and non-zero for any finite input.
const maxGainAdjustmentDB = 240.0

// Curve is the static gain law of one compressor bank block.
//
// Levels are evaluated as magnitude relative to the target, both in dB with
// a silence floor at core.SilenceFloorDB:
//
//	level = dB(magnitude) - dB(target)
//
// Downward compression reduces the excess above DownwardThresholdDB by
// DownwardRatio. Upward compression reduces the deficit below
// UpwardThresholdDB by UpwardRatio. When both ranges apply the adjustments
// are summed.
type Curve struct {
	DownwardThresholdDB float64
	UpwardThresholdDB   float64
	DownwardRatio       float64
	UpwardRatio         float64
}

// CurveFromParams extracts the gain law from p.
func CurveFromParams(p Params) Curve {
	return Curve{
		DownwardThresholdDB: p.DownwardThresholdDB,
		UpwardThresholdDB:   p.UpwardThresholdDB,
		DownwardRatio:       p.DownwardRatio,
		UpwardRatio:         p.UpwardRatio,
	}
}

// Disengaged reports whether neither direction compresses. Ratios at or below
// 1 and NaN ratios count as disengaged.
func (c Curve) Disengaged() bool {
	return !(c.DownwardRatio > 1) && !(c.UpwardRatio > 1)
}

// GainDB returns the gain adjustment in dB for a smoothed magnitude relative
// to target. The result lies in [-maxGainAdjustmentDB, maxGainAdjustmentDB].
func (c Curve) GainDB(magnitude, target float64) float64 {
	if c.Disengaged() {
		return 0
	}

	magDB := core.FlooredLinearToDB(magnitude)
	targetDB := core.FlooredLinearToDB(target)

	if magDB <= core.SilenceFloorDB && targetDB <= core.SilenceFloorDB {
		return 0
	}

	return c.gainDBFromLevel(magDB - targetDB)
}

// Gain returns the linear gain for a smoothed magnitude relative to target.
// It is exactly 1 when the curve is disengaged or both inputs are silent.
func (c Curve) Gain(magnitude, target float64) float64 {
	gainDB := c.GainDB(magnitude, target)
	if gainDB == 0 {
		return 1
	}

	return core.DBToLinear(gainDB)
}

// gainDBFromLevel applies the threshold/ratio law to a relative level.
func (c Curve) gainDBFromLevel(levelDB float64) float64 {
	var gainDB float64

	// Products keep an infinite excess or deficit infinite for the clamp.
	if c.DownwardRatio > 1 && levelDB > c.DownwardThresholdDB {
		excess := levelDB - c.DownwardThresholdDB
		gainDB -= excess * (1 - 1/c.DownwardRatio)
	}

	if c.UpwardRatio > 1 && levelDB < c.UpwardThresholdDB {
		deficit := c.UpwardThresholdDB - levelDB
		gainDB += deficit * (1 - 1/c.UpwardRatio)
	}

	if math.IsNaN(gainDB) {
		return 0
	}

	return core.Clamp(gainDB, -maxGainAdjustmentDB, maxGainAdjustmentDB)
}
