package core

import (
	"math"
	"time"
)

// CandidateThreshold is the score above which a target counts as a likely detection
const CandidateThreshold = 0.5

// Credential is the bearer token and the name shown for the logged in operator
type Credential struct {
	Token       string
	DisplayName string
}

// Valid reports whether both halves of the credential are present
func (c Credential) Valid() bool {
	return c.Token != "" && c.DisplayName != ""
}

// LightPoint is one sample of a phase-folded light curve
type LightPoint struct {
	Time float64 `json:"time"`
	Flux float64 `json:"flux"`
}

// Feature is a model input ranked by its contribution to the score
type Feature struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
}

// AnalysisResult represents the outcome of analysing one target
type AnalysisResult struct {
	Target      string       `json:"target"`
	Mission     string       `json:"mission"`
	Score       float64      `json:"score"`
	Period      float64      `json:"period"`
	PointsCount int          `json:"points_count"`
	Series      []LightPoint `json:"data"`
	TopFeatures []Feature    `json:"top_features"`
	AnalyzedAt  time.Time    `json:"-"`
	AttemptID   string       `json:"-"`
}

// IsCandidate reports whether the score crosses the candidate threshold
func (r *AnalysisResult) IsCandidate() bool {
	return r.Score > CandidateThreshold
}

// ValidSeries returns the light curve points whose time and flux are both finite
func (r *AnalysisResult) ValidSeries() []LightPoint {
	out := make([]LightPoint, 0, len(r.Series))
	for _, p := range r.Series {
		if isFinite(p.Time) && isFinite(p.Flux) {
			out = append(out, p)
		}
	}
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Aggregate is the dashboard summary over every cached result
type Aggregate struct {
	Count      int
	Candidates int
	MeanScore  float64
}

// BackendStatus is the passive health indicator reported by the analysis backend
type BackendStatus struct {
	Online       bool      `json:"-"`
	AILoaded     bool      `json:"ai_loaded"`
	FeaturesSync bool      `json:"features_sync"`
	DatasetReady bool      `json:"dataset_ready"`
	CheckedAt    time.Time `json:"-"`
}

// Operational reports whether the model and its feature list are both loaded
func (s BackendStatus) Operational() bool {
	return s.Online && s.AILoaded && s.FeaturesSync
}

// RequestState is a snapshot of in-flight targets and the last request error
type RequestState struct {
	InFlight  []string
	LastError string
}

// ViewMode selects between the aggregate and the single-item view
type ViewMode int

const (
	ViewDashboard ViewMode = iota
	ViewDetail
)

func (m ViewMode) String() string {
	if m == ViewDetail {
		return "detail"
	}
	return "dashboard"
}

// ViewSelection is the current view; Target is only set in ViewDetail
type ViewSelection struct {
	Mode   ViewMode
	Target string
}
