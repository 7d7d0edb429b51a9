package scoring

import (
	"math"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/report"
)

// Verdict is the run's sales-readiness call.
type Verdict string

const (
	VerdictGo      Verdict = "GO"
	VerdictExplore Verdict = "EXPLORE"
	VerdictPass    Verdict = "PASS"
)

// Verdict thresholds over the weighted total.
const (
	goThreshold      = 150.0
	exploreThreshold = 80.0
)

// Confidence multipliers. A signal without a confidence grade weighs
// like medium.
const (
	weightHigh    = 1.0
	weightMedium  = 0.75
	weightLow     = 0.5
	weightUnknown = 0.75
)

// Temporal decay for date-bearing, non-exempt signals older than the
// staleness horizon.
const (
	decayFactor        = 0.5
	decayHorizonMonths = 18
)

// LowQualityWarning flags a verdict computed from too few resolved
// signals.
const LowQualityWarning = "score unreliable, too many signals unresolved"

// SignalScore is the per-signal scoring breakdown.
type SignalScore struct {
	SignalID       string        `json:"signal_id"`
	Status         report.Status `json:"status"`
	BasePoints     int           `json:"base_points"`
	WeightedPoints float64       `json:"weighted_points"`
	Unit           string        `json:"unit"`
	Value          string        `json:"value,omitempty"`
	Evidence       string        `json:"evidence,omitempty"`
}

// Result is the deterministic scoring output.
type Result struct {
	Signals         []SignalScore `json:"signals"`
	Total           float64       `json:"score_total"`
	MaxPossible     int           `json:"score_max"`
	IntentScore     float64       `json:"intent_score"`
	StructuralScore float64       `json:"structural_score"`
	Missing         []string      `json:"missing_signals,omitempty"`
	DataQuality     float64       `json:"data_quality"`
	Verdict         Verdict       `json:"verdict"`
	Warning         string        `json:"warning,omitempty"`
}

// Score folds the units' reports into the final verdict. Reports merge
// in canonical unit order with last-write-wins per signal ID, each
// DETECTED signal passes its threshold validator, and the surviving
// points are weighted by confidence and temporal decay. now anchors
// the decay horizon.
func Score(reports []report.AgentReport, now time.Time) Result {
	merged := mergeSignals(reports)

	result := Result{MaxPossible: MaxScore}
	resolved := 0
	for _, g := range Grille {
		signal, found := merged[g.ID]
		if !found {
			signal = report.Signal{ID: g.ID, Status: report.StatusUnknown}
		}

		status := signal.Status
		if status == "" {
			status = report.StatusUnknown
		}
		if status == report.StatusDetected && !thresholdHolds(g.ID, signal.Value, signal.Evidence) {
			zap.L().Debug("scoring: threshold override",
				zap.String("signal", g.ID),
				zap.String("value", signal.Value),
			)
			status = report.StatusNotDetected
		}

		var weighted float64
		switch status {
		case report.StatusDetected:
			weighted = float64(g.Points) * confidenceWeight(signal.Confidence) * decay(g, signal, now)
			result.Total += weighted
			if g.IntentTiming {
				result.IntentScore += weighted
			} else {
				result.StructuralScore += weighted
			}
			resolved++
		case report.StatusNotDetected:
			resolved++
		default:
			result.Missing = append(result.Missing, g.ID)
		}

		result.Signals = append(result.Signals, SignalScore{
			SignalID:       g.ID,
			Status:         status,
			BasePoints:     g.Points,
			WeightedPoints: weighted,
			Unit:           g.Unit,
			Value:          signal.Value,
			Evidence:       signal.Evidence,
		})
	}

	result.DataQuality = math.Round(float64(resolved)/float64(len(Grille))*1000) / 10
	if result.DataQuality < 50 {
		result.Warning = LowQualityWarning
	}
	switch {
	case result.Total >= goThreshold:
		result.Verdict = VerdictGo
	case result.Total >= exploreThreshold:
		result.Verdict = VerdictExplore
	default:
		result.Verdict = VerdictPass
	}
	return result
}

// mergeSignals flattens the reports into one signal per ID. Units are
// processed in canonical order regardless of report arrival order, so
// the latest-processed unit wins a duplicated ID.
func mergeSignals(reports []report.AgentReport) map[string]report.Signal {
	merged := make(map[string]report.Signal)
	for _, unit := range report.CanonicalUnits {
		for _, r := range reports {
			if r.Unit != unit {
				continue
			}
			for _, s := range r.Signals {
				id := ResolveAlias(s.ID)
				s.ID = id
				merged[id] = s
			}
		}
	}
	return merged
}

func confidenceWeight(c report.Confidence) float64 {
	switch c {
	case report.ConfidenceHigh:
		return weightHigh
	case report.ConfidenceMedium:
		return weightMedium
	case report.ConfidenceLow:
		return weightLow
	default:
		return weightUnknown
	}
}

var eventDatePattern = regexp.MustCompile(`(\d{4})-(\d{2})(?:-(\d{2}))?`)

// decay returns the staleness multiplier: 0.5 when the signal carries
// an event date older than the horizon and is not decay-exempt, else
// 1.0. Signals without a parseable date never decay.
func decay(g GrilleSignal, signal report.Signal, now time.Time) float64 {
	if g.DecayExempt {
		return 1.0
	}
	event, ok := eventDate(signal.Value)
	if !ok {
		event, ok = eventDate(signal.Evidence)
	}
	if !ok {
		return 1.0
	}
	if monthsBetween(event, now) > decayHorizonMonths {
		return decayFactor
	}
	return 1.0
}

func eventDate(text string) (time.Time, bool) {
	m := eventDatePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	day := "01"
	if m[3] != "" {
		day = m[3]
	}
	t, err := time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+day)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func monthsBetween(from, to time.Time) int {
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	return months
}
