package utils

import (
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MaxFeatureNameLength bounds a shortened raw feature name
const MaxFeatureNameLength = 40

// ScoreBand is the qualitative reading of a detection score
type ScoreBand int

const (
	BandUnlikely ScoreBand = iota
	BandPossible
	BandVeryLikely
)

func (b ScoreBand) String() string {
	switch b {
	case BandVeryLikely:
		return "very likely"
	case BandPossible:
		return "possible"
	default:
		return "unlikely"
	}
}

// SafeScore maps a missing or non-finite score to zero
func SafeScore(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

// BandFor classifies a score: above 0.7 is very likely, above 0.4 possible
func BandFor(score float64) ScoreBand {
	s := SafeScore(score)
	switch {
	case s > 0.7:
		return BandVeryLikely
	case s > 0.4:
		return BandPossible
	default:
		return BandUnlikely
	}
}

// ScorePercent returns the score as a rounded percentage
func ScorePercent(score float64) int {
	return int(math.Round(SafeScore(score) * 100))
}

var friendlyNames = []struct {
	fragment string
	label    string
}{
	{"sci_transit_depth", "Transit depth"},
	{"sci_std_dev", "Flux standard deviation"},
	{"sci_kurtosis", "Kurtosis (signal shape)"},
	{"sci_skewness", "Signal skewness"},
	{"sci_mad", "Median absolute deviation"},
	{"sci_amplitude", "Signal amplitude"},
	{"sci_peak_to_peak", "Peak to peak"},
	{"fft_coefficient", "FFT coefficient"},
	{"cwt_coefficient", "CWT coefficient"},
	{"agg_linear_trend", "Linear trend"},
	{"autocorrelation", "Autocorrelation"},
	{"entropy", "Signal entropy"},
	{"energy_ratio", "Energy ratio"},
}

// FriendlyFeatureName returns a readable label for a model feature. Unknown
// names are shortened instead.
func FriendlyFeatureName(name string) string {
	for _, f := range friendlyNames {
		if strings.Contains(name, f.fragment) {
			return f.label
		}
	}
	short := strings.Replace(name, "flux__", "", 1)
	short = strings.ReplaceAll(short, "__", " ")
	return TruncateText(short, MaxFeatureNameLength)
}

// TruncateText safely truncates text to at most maxRunes runes
func TruncateText(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes])
}

// SanitizeUTF8 drops invalid UTF-8 sequences from text
func SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// RelativeImportance scales importance against the largest importance shown.
// A non-positive maximum yields zero.
func RelativeImportance(importance, max float64) float64 {
	if max <= 0 || math.IsNaN(importance) {
		return 0
	}
	return importance / max
}

// Bar renders fraction (0..1) as a fixed width bar
func Bar(fraction float64, width int) string {
	if width <= 0 {
		return ""
	}
	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(math.Round(fraction * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// FormatCount groups the digits of n for the given locale
func FormatCount(n int, tag language.Tag) string {
	return message.NewPrinter(tag).Sprintf("%d", n)
}
