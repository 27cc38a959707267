// Package risk implements the deterministic risk evaluator.
//
// Evaluate is a pure function over a state snapshot: it performs no I/O and
// mutates nothing, so the same snapshot always yields the same evaluation.
package risk

import (
	"fmt"

	"github.com/BTreeMap/CareWatch/internal/models"
	"github.com/BTreeMap/CareWatch/internal/weather"
)

// Scoring thresholds and contributions. Temperature and heart-rate bands are
// mutually exclusive; the remaining conditions are independent and additive.
const (
	HighTempThreshold     = 33.0
	ElevatedTempThreshold = 30.0
	LowTempThreshold      = 10.0
	HighHumidityThreshold = 90
	HighHeartRate         = 110.0
	LowHeartRate          = 50.0
	ShortSleepHours       = 6.0

	highTempPoints      = 4
	elevatedTempPoints  = 2
	lowTempPoints       = 2
	humidityPoints      = 1
	severeWarningPoints = 3
	highHeartRatePoints = 3
	lowHeartRatePoints  = 2
	shortSleepPoints    = 2
)

// Level thresholds: score >= HighRiskScore is high, >= MediumRiskScore is
// medium, anything below is low.
const (
	HighRiskScore   = 7
	MediumRiskScore = 4
)

// Evaluate maps a state snapshot to a risk score, level, and the ordered list
// of contributing factors. Missing readings are skipped, never penalized.
func Evaluate(state models.StateSnapshot) models.RiskEvaluation {
	score := 0
	var reasons []string

	if temp := state.Weather.Temperature; temp != nil {
		switch {
		case *temp >= HighTempThreshold:
			score += highTempPoints
			reasons = append(reasons, fmt.Sprintf("high temperature %.1f°C", *temp))
		case *temp >= ElevatedTempThreshold:
			score += elevatedTempPoints
			reasons = append(reasons, fmt.Sprintf("elevated temperature %.1f°C", *temp))
		case *temp <= LowTempThreshold:
			score += lowTempPoints
			reasons = append(reasons, fmt.Sprintf("low temperature %.1f°C", *temp))
		}
	}

	if humidity := state.Weather.Humidity; humidity != nil && *humidity >= HighHumidityThreshold {
		score += humidityPoints
		reasons = append(reasons, fmt.Sprintf("humidity %d%%", *humidity))
	}

	if state.Weather.HasWarning(weather.WarningHot) || state.Weather.HasWarning(weather.WarningRainBlack) {
		score += severeWarningPoints
		reasons = append(reasons, "observatory severe weather warning")
	}

	if hr := state.Vitals.HeartRate; hr != nil {
		switch {
		case *hr >= HighHeartRate:
			score += highHeartRatePoints
			reasons = append(reasons, fmt.Sprintf("elevated heart rate %.0f", *hr))
		case *hr <= LowHeartRate:
			score += lowHeartRatePoints
			reasons = append(reasons, fmt.Sprintf("low heart rate %.0f", *hr))
		}
	}

	if sleep := state.Vitals.Sleep; sleep != nil && *sleep < ShortSleepHours {
		score += shortSleepPoints
		reasons = append(reasons, fmt.Sprintf("insufficient sleep %.1fh", *sleep))
	}

	level := models.RiskLow
	switch {
	case score >= HighRiskScore:
		level = models.RiskHigh
	case score >= MediumRiskScore:
		level = models.RiskMedium
	}

	return models.RiskEvaluation{Score: score, Level: level, Reasons: reasons}
}
