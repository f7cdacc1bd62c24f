package frontend

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mikey/exodetect/internal/core"
	"github.com/mikey/exodetect/internal/utils"
	"golang.org/x/term"
	"golang.org/x/text/language"
)

const (
	featureBarWidth = 24
	minPlotWidth    = 20
	maxPlotWidth    = 100
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Renderer draws dashboards, details and status lines as terminal text
type Renderer struct {
	out    io.Writer
	colors bool
	lang   language.Tag

	heading *color.Color
	good    *color.Color
	warn    *color.Color
	bad     *color.Color
	muted   *color.Color
}

// NewRenderer creates a renderer writing to out
func NewRenderer(out io.Writer, colors bool, lang language.Tag) *Renderer {
	r := &Renderer{
		out:     out,
		colors:  colors,
		lang:    lang,
		heading: color.New(color.FgCyan, color.Bold),
		good:    color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		bad:     color.New(color.FgRed),
		muted:   color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{r.heading, r.good, r.warn, r.bad, r.muted} {
		if colors {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// Dashboard renders the aggregate summary and one row per cached result
func (r *Renderer) Dashboard(agg core.Aggregate, results []*core.AnalysisResult, state core.RequestState) {
	r.heading.Fprintln(r.out, "Dashboard")

	if agg.Count == 0 {
		fmt.Fprintln(r.out, "No targets analysed yet.")
	} else {
		tw := table.NewWriter()
		tw.SetOutputMirror(r.out)
		tw.SetStyle(table.StyleRounded)
		tw.Style().Options.SeparateRows = false
		tw.AppendHeader(table.Row{"#", "Target", "Mission", "Score", "Reading", "Period (d)", "Points"})
		for i, res := range results {
			tw.AppendRow(table.Row{
				i + 1,
				utils.SanitizeUTF8(res.Target),
				utils.SanitizeUTF8(res.Mission),
				fmt.Sprintf("%d%%", utils.ScorePercent(res.Score)),
				r.band(res.Score),
				formatPeriod(res.Period),
				utils.FormatCount(res.PointsCount, r.lang),
			})
		}
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 4, Align: text.AlignRight},
			{Number: 6, Align: text.AlignRight},
			{Number: 7, Align: text.AlignRight},
		})
		tw.Render()
	}

	fmt.Fprintf(r.out, "Analysed: %d  Candidates: %d  Mean score: %d%%\n",
		agg.Count, agg.Candidates, utils.ScorePercent(agg.MeanScore))
	r.RequestState(state)
}

// Detail renders a single result
func (r *Renderer) Detail(res *core.AnalysisResult) {
	if res == nil {
		fmt.Fprintln(r.out, "Nothing selected.")
		return
	}

	r.heading.Fprintf(r.out, "%s", utils.SanitizeUTF8(res.Target))
	fmt.Fprintf(r.out, "  (%s)\n", utils.SanitizeUTF8(res.Mission))
	fmt.Fprintf(r.out, "Score:   %d%%  %s\n", utils.ScorePercent(res.Score), r.band(res.Score))
	fmt.Fprintf(r.out, "Period:  %s d\n", formatPeriod(res.Period))

	valid := res.ValidSeries()
	fmt.Fprintf(r.out, "Points:  %s raw, %s plotted\n",
		utils.FormatCount(res.PointsCount, r.lang),
		utils.FormatCount(len(valid), r.lang))

	if plot := Sparkline(valid, r.plotWidth()); plot != "" {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, plot)
		r.muted.Fprintln(r.out, "phase-folded flux")
	}

	if len(res.TopFeatures) > 0 {
		fmt.Fprintln(r.out)
		r.heading.Fprintln(r.out, "Top features")
		max := 0.0
		for _, f := range res.TopFeatures {
			max = math.Max(max, f.Importance)
		}
		for _, f := range res.TopFeatures {
			name := utils.TruncateText(utils.FriendlyFeatureName(f.Name), 28)
			fmt.Fprintf(r.out, "  %-28s %s %5.1f%%\n",
				name,
				utils.Bar(utils.RelativeImportance(f.Importance, max), featureBarWidth),
				f.Importance*100)
		}
	}
}

// Status renders the backend health indicator on one line
func (r *Renderer) Status(st core.BackendStatus) {
	if !st.Online {
		fmt.Fprintf(r.out, "Backend: %s\n", r.bad.Sprint("offline"))
		return
	}
	online := r.warn.Sprint("online")
	if st.Operational() {
		online = r.good.Sprint("online")
	}
	fmt.Fprintf(r.out, "Backend: %s  AI: %s  Features: %s  Dataset: %s\n",
		online,
		r.flag(st.AILoaded, "loaded", "missing"),
		r.flag(st.FeaturesSync, "synced", "missing"),
		r.flag(st.DatasetReady, "ready", "absent"))
}

// RequestState renders pending targets and the last error, if any
func (r *Renderer) RequestState(state core.RequestState) {
	if len(state.InFlight) > 0 {
		r.warn.Fprintf(r.out, "Analysing: %s\n", strings.Join(state.InFlight, ", "))
	}
	if state.LastError != "" {
		r.bad.Fprintf(r.out, "Error: %s\n", state.LastError)
	}
}

// Batch renders one line per batch outcome
func (r *Renderer) Batch(outcomes []core.BatchOutcome) {
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			fmt.Fprintf(r.out, "%s %s: %s\n", r.bad.Sprint("✗"), o.Target, core.UserMessage(o.Err))
		case o.Result == nil:
			fmt.Fprintf(r.out, "%s %s: skipped\n", r.muted.Sprint("-"), o.Target)
		default:
			fmt.Fprintf(r.out, "%s %s: %d%% %s\n", r.good.Sprint("✓"), o.Target,
				utils.ScorePercent(o.Result.Score), r.band(o.Result.Score))
		}
	}
}

// Message prints a plain informational line
func (r *Renderer) Message(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

// Error prints an error line
func (r *Renderer) Error(format string, args ...interface{}) {
	r.bad.Fprintf(r.out, format+"\n", args...)
}

func (r *Renderer) band(score float64) string {
	b := utils.BandFor(score)
	switch b {
	case utils.BandVeryLikely:
		return r.good.Sprint(b.String())
	case utils.BandPossible:
		return r.warn.Sprint(b.String())
	default:
		return r.bad.Sprint(b.String())
	}
}

func (r *Renderer) flag(ok bool, yes, no string) string {
	if ok {
		return r.good.Sprint(yes)
	}
	return r.bad.Sprint(no)
}

func (r *Renderer) plotWidth() int {
	width := 60
	if f, ok := r.out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = w - 2
		}
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}
	if width > maxPlotWidth {
		width = maxPlotWidth
	}
	return width
}

func formatPeriod(p float64) string {
	if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", p)
}

// Sparkline bins points into width columns by time and draws the mean flux
// of each column. Empty columns are left blank.
func Sparkline(points []core.LightPoint, width int) string {
	if len(points) == 0 || width <= 0 {
		return ""
	}

	tMin, tMax := points[0].Time, points[0].Time
	for _, p := range points {
		tMin = math.Min(tMin, p.Time)
		tMax = math.Max(tMax, p.Time)
	}

	sums := make([]float64, width)
	counts := make([]int, width)
	// halving keeps the span finite for times near the float64 limits
	span := tMax/2 - tMin/2
	for _, p := range points {
		col := 0
		if span > 0 {
			col = bucket((p.Time/2-tMin/2)/span, width)
		}
		sums[col] += p.Flux
		counts[col]++
	}

	fMin, fMax := math.Inf(1), math.Inf(-1)
	for i := range sums {
		if counts[i] == 0 {
			continue
		}
		sums[i] /= float64(counts[i])
		fMin = math.Min(fMin, sums[i])
		fMax = math.Max(fMax, sums[i])
	}

	var b strings.Builder
	for i := range sums {
		if counts[i] == 0 {
			b.WriteRune(' ')
			continue
		}
		level := len(sparkLevels) - 1
		if fMax > fMin {
			level = bucket((sums[i]/2-fMin/2)/(fMax/2-fMin/2), len(sparkLevels))
		}
		b.WriteRune(sparkLevels[level])
	}
	return strings.TrimRight(b.String(), " ")
}

// bucket maps frac in [0, 1] onto an index below n
func bucket(frac float64, n int) int {
	switch {
	case math.IsNaN(frac) || frac <= 0:
		return 0
	case frac >= 1:
		return n - 1
	}
	return int(frac * float64(n-1))
}
