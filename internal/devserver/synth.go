package devserver

import (
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

const (
	seriesLength   = 1000
	gapEvery       = 137
	transitFrac    = 0.04
	noiseSigma     = 0.0003
	featuresServed = 7
)

// Sample is one phase-folded light curve point
type Sample struct {
	Time float64
	Flux float64
}

// FeatureRank is a model feature and its importance
type FeatureRank struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
}

// Analysis is a synthetic analysis result
type Analysis struct {
	Target      string
	Mission     string
	Score       float64
	Period      float64
	PointsCount int
	Series      []Sample
	TopFeatures []FeatureRank
}

type preset struct {
	score  float64
	period float64
}

var presets = map[string]preset{
	"kepler-10":   {score: 0.93, period: 0.8375},
	"kepler-22":   {score: 0.88, period: 289.8623},
	"kepler-90":   {score: 0.96, period: 331.6006},
	"pi mensae":   {score: 0.81, period: 6.2679},
	"kic 8462852": {score: 0.37, period: 24.2184},
}

var targetPrefixes = []string{
	"kepler", "kic", "koi", "k2", "tic", "toi", "wasp", "hat-p", "pi mensae", "trappist",
}

var featurePool = []string{
	"flux__sci_transit_depth",
	"flux__sci_std_dev",
	"flux__sci_kurtosis",
	"flux__sci_skewness",
	"flux__sci_mad",
	"flux__sci_amplitude",
	"flux__sci_peak_to_peak",
	`flux__fft_coefficient__attr_"abs"__coeff_1`,
	`flux__cwt_coefficient__coeff_2__w_5__widths_(2, 5, 10, 20)`,
	`flux__agg_linear_trend__attr_"slope"__chunk_len_10__f_agg_"mean"`,
	"flux__autocorrelation__lag_3",
	"flux__sample_entropy",
	"flux__energy_ratio_by_chunks__num_segments_10__segment_focus_0",
}

// KnownTarget reports whether target looks like a catalogued star
func KnownTarget(target string) bool {
	t := strings.ToLower(strings.TrimSpace(target))
	for _, p := range targetPrefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}

// MissionFor names the mission whose archive holds target
func MissionFor(target string) string {
	for _, marker := range []string{"TIC", "TOI", "Pi", "WASP"} {
		if strings.Contains(target, marker) {
			return "TESS"
		}
	}
	return "Kepler"
}

// Synthesize builds the deterministic analysis of target
func Synthesize(target string) *Analysis {
	key := strings.ToLower(strings.TrimSpace(target))
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	r := rand.New(rand.NewSource(int64(h.Sum64())))

	p, ok := presets[key]
	if !ok {
		p = preset{score: r.Float64(), period: 0.5 + r.Float64()*50}
	}

	return &Analysis{
		Target:      target,
		Mission:     MissionFor(target),
		Score:       p.score,
		Period:      round(p.period, 4),
		PointsCount: 30000 + r.Intn(40000),
		Series:      foldedCurve(r, p.period, 0.0005+p.score*0.004),
		TopFeatures: rankFeatures(r),
	}
}

func foldedCurve(r *rand.Rand, period, depth float64) []Sample {
	out := make([]Sample, seriesLength)
	for i := range out {
		phase := float64(i)/seriesLength - 0.5
		flux := 1 + r.NormFloat64()*noiseSigma
		if math.Abs(phase) < transitFrac/2 {
			flux -= depth
		}
		out[i] = Sample{Time: round(phase*period, 4), Flux: round(flux, 6)}
		if i%gapEvery == gapEvery-1 {
			out[i].Flux = math.NaN()
		}
	}
	return out
}

func rankFeatures(r *rand.Rand) []FeatureRank {
	idx := r.Perm(len(featurePool))[:featuresServed]
	weights := make([]float64, featuresServed)
	total := 0.0
	for i := range weights {
		weights[i] = r.Float64() + 0.05
		total += weights[i]
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(weights)))

	out := make([]FeatureRank, featuresServed)
	for i, j := range idx {
		out[i] = FeatureRank{Name: featurePool[j], Importance: round(weights[i]/total, 4)}
	}
	return out
}

func (a *Analysis) encodeSeries() []byte {
	var b strings.Builder
	b.WriteByte('[')
	for i, s := range a.Series {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`{"time":`)
		b.WriteString(formatFloat(s.Time))
		b.WriteString(`,"flux":`)
		b.WriteString(formatFloat(s.Flux))
		b.WriteByte('}')
	}
	b.WriteByte(']')
	return []byte(b.String())
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func round(f float64, places int) float64 {
	m := math.Pow(10, float64(places))
	return math.Round(f*m) / m
}
