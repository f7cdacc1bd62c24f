package utils

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestBandFor(t *testing.T) {
	tests := []struct {
		score float64
		want  ScoreBand
	}{
		{0.93, BandVeryLikely},
		{0.71, BandVeryLikely},
		{0.7, BandPossible},
		{0.41, BandPossible},
		{0.4, BandUnlikely},
		{0, BandUnlikely},
		{math.NaN(), BandUnlikely},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BandFor(tt.score), "score %v", tt.score)
	}
	assert.Equal(t, "very likely", BandVeryLikely.String())
	assert.Equal(t, "possible", BandPossible.String())
	assert.Equal(t, "unlikely", BandUnlikely.String())
}

func TestScorePercent(t *testing.T) {
	assert.Equal(t, 93, ScorePercent(0.93))
	assert.Equal(t, 50, ScorePercent(0.5))
	assert.Equal(t, 0, ScorePercent(math.Inf(1)))
}

func TestFriendlyFeatureName(t *testing.T) {
	assert.Equal(t, "Transit depth", FriendlyFeatureName("flux__sci_transit_depth"))
	assert.Equal(t, "FFT coefficient", FriendlyFeatureName(`flux__fft_coefficient__attr_"abs"__coeff_1`))
	assert.Equal(t, "variance larger than std", FriendlyFeatureName("flux__variance__larger__than__std"))

	long := FriendlyFeatureName("flux__" + strings.Repeat("x", 80))
	assert.Equal(t, MaxFeatureNameLength, utf8.RuneCountInString(long))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "Kepl", TruncateText("Kepler-10", 4))
	assert.Equal(t, "Kepler", TruncateText("Kepler", 10))
	assert.Equal(t, "ñañ", TruncateText("ñañaña", 3))
	assert.Equal(t, "abc", TruncateText("abc", 0))
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "Kepler", SanitizeUTF8("Kep\xffler"))
	assert.Equal(t, "Pi Mensae", SanitizeUTF8("Pi Mensae"))
}

func TestBar(t *testing.T) {
	assert.Equal(t, "██░░", Bar(0.5, 4))
	assert.Equal(t, "████", Bar(3, 4))
	assert.Equal(t, "░░░░", Bar(math.NaN(), 4))
	assert.Equal(t, "", Bar(1, 0))
	assert.Equal(t, 0.5, RelativeImportance(0.2, 0.4))
	assert.Equal(t, 0.0, RelativeImportance(0.2, 0))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "12,345", FormatCount(12345, language.English))
	assert.Equal(t, "12.345", FormatCount(12345, language.German))
	assert.Equal(t, "7", FormatCount(7, language.English))
}
