package risk

import (
	"reflect"
	"testing"
	"time"

	"github.com/BTreeMap/CareWatch/internal/models"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func snapshot(temp *float64, humidity *int, warnings []string, hr *float64, steps *int, sleep *float64) models.StateSnapshot {
	return models.StateSnapshot{
		UserID:    "user_001",
		Timestamp: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
		Weather:   models.Weather{Temperature: temp, Humidity: humidity, Warnings: warnings},
		Vitals:    models.Vitals{HeartRate: hr, Steps: steps, Sleep: sleep},
	}
}

func TestEvaluateScoring(t *testing.T) {
	tests := []struct {
		name      string
		state     models.StateSnapshot
		wantScore int
		wantLevel models.RiskLevel
	}{
		{
			name:      "hot day with warning and poor vitals",
			state:     snapshot(floatPtr(35), nil, []string{"WHOT"}, floatPtr(115), intPtr(1800), floatPtr(5.5)),
			wantScore: 12,
			wantLevel: models.RiskHigh,
		},
		{
			name:      "warm day with short sleep",
			state:     snapshot(floatPtr(32), intPtr(88), []string{}, floatPtr(95), intPtr(2000), floatPtr(5.5)),
			wantScore: 4,
			wantLevel: models.RiskMedium,
		},
		{
			name:      "mild day well rested",
			state:     snapshot(floatPtr(24), nil, []string{}, floatPtr(78), intPtr(2500), floatPtr(7.2)),
			wantScore: 0,
			wantLevel: models.RiskLow,
		},
		{
			name:      "empty snapshot scores zero",
			state:     models.StateSnapshot{UserID: "user_001"},
			wantScore: 0,
			wantLevel: models.RiskLow,
		},
		{
			name:      "cold snap",
			state:     snapshot(floatPtr(8), nil, nil, nil, nil, nil),
			wantScore: 2,
			wantLevel: models.RiskLow,
		},
		{
			name:      "low heart rate with humidity",
			state:     snapshot(nil, intPtr(92), nil, floatPtr(48), nil, nil),
			wantScore: 3,
			wantLevel: models.RiskLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.state)
			if got.Score != tt.wantScore {
				t.Errorf("Evaluate() score = %d, want %d (reasons: %v)", got.Score, tt.wantScore, got.Reasons)
			}
			if got.Level != tt.wantLevel {
				t.Errorf("Evaluate() level = %s, want %s", got.Level, tt.wantLevel)
			}
		})
	}
}

func TestEvaluateBandExclusivity(t *testing.T) {
	// A 35°C reading satisfies both temperature bands but must only score the
	// higher one.
	got := Evaluate(snapshot(floatPtr(35), nil, nil, nil, nil, nil))
	if got.Score != 4 {
		t.Errorf("temperature band not exclusive: score = %d, want 4", got.Score)
	}

	// Same for heart rate: 115 must not also score the low band.
	got = Evaluate(snapshot(nil, nil, nil, floatPtr(115), nil, nil))
	if got.Score != 3 {
		t.Errorf("heart rate band not exclusive: score = %d, want 3", got.Score)
	}
}

func TestEvaluateLevelBoundaries(t *testing.T) {
	// temp 33 (4) + severe warning (3) = 7, exactly the high threshold.
	got := Evaluate(snapshot(floatPtr(33), nil, []string{"WRAINB"}, nil, nil, nil))
	if got.Level != models.RiskHigh {
		t.Errorf("score %d level = %s, want high", got.Score, got.Level)
	}

	// temp 30 (2) + short sleep (2) = 4, exactly the medium threshold.
	got = Evaluate(snapshot(floatPtr(30), nil, nil, nil, nil, floatPtr(5.9)))
	if got.Level != models.RiskMedium {
		t.Errorf("score %d level = %s, want medium", got.Score, got.Level)
	}

	// temp 30 (2) + humidity (1) = 3, just below medium.
	got = Evaluate(snapshot(floatPtr(30), intPtr(90), nil, nil, nil, nil))
	if got.Level != models.RiskLow {
		t.Errorf("score %d level = %s, want low", got.Score, got.Level)
	}
}

func TestEvaluateDeterminism(t *testing.T) {
	state := snapshot(floatPtr(35), intPtr(91), []string{"WHOT"}, floatPtr(115), intPtr(1800), floatPtr(5.5))
	first := Evaluate(state)
	for i := 0; i < 10; i++ {
		again := Evaluate(state)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Evaluate() not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestEvaluateReasonsOrder(t *testing.T) {
	got := Evaluate(snapshot(floatPtr(35), intPtr(92), []string{"WHOT"}, floatPtr(115), nil, floatPtr(5.0)))
	want := []string{
		"high temperature 35.0°C",
		"humidity 92%",
		"observatory severe weather warning",
		"elevated heart rate 115",
		"insufficient sleep 5.0h",
	}
	if !reflect.DeepEqual(got.Reasons, want) {
		t.Errorf("Evaluate() reasons = %v, want %v", got.Reasons, want)
	}
}

func TestEvaluateIgnoresUnlistedWarnings(t *testing.T) {
	got := Evaluate(snapshot(nil, nil, []string{"WRAINA", "WTS"}, nil, nil, nil))
	if got.Score != 0 {
		t.Errorf("non-severe warnings scored: score = %d, want 0", got.Score)
	}
}
