package models

import "time"

// RunStatus is the lifecycle state of a run. A run is mutable only while
// Running; every other status is terminal.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusStopped   RunStatus = "stopped"
	StatusFailed    RunStatus = "failed"
)

func (s RunStatus) Terminal() bool { return s != StatusRunning }

// RunConfig is the configuration snapshot a run is created with. It never
// changes after the run starts.
type RunConfig struct {
	Keywords       string
	ScoreThreshold int
	MaxProfiles    int
	MaxDuration    time.Duration
	MinDelay       time.Duration
	MaxDelay       time.Duration
	EnableConnect  bool
	EnableFollow   bool
}

// Run is one bounded execution of the discover/visit/score/act loop.
type Run struct {
	ID        string
	Config    RunConfig
	Status    RunStatus
	Visited   int
	Connected int
	Followed  int
	StartedAt time.Time
	EndedAt   *time.Time
	Error     string
}

// Action is what the engine actually did with a visited profile.
type Action string

const (
	ActionViewed    Action = "viewed"
	ActionConnected Action = "connected"
	ActionFollowed  Action = "followed"
)

// Category buckets a score for reporting.
type Category string

const (
	CategoryHigh   Category = "high"
	CategoryMedium Category = "medium"
	CategoryLow    Category = "low"
)

// Categorize maps a 0-100 score to its bucket: high >= 75, medium >= 50.
func Categorize(score int) Category {
	switch {
	case score >= 75:
		return CategoryHigh
	case score >= 50:
		return CategoryMedium
	default:
		return CategoryLow
	}
}

// ProfileRecord is a visited candidate as persisted. ExternalID is unique
// across the whole store, not per run.
type ProfileRecord struct {
	ID         int64
	ExternalID string
	RunID      string
	Name       string
	Headline   string
	Company    string
	Location   string
	Detail     string
	Score      int
	Reason     string
	Category   Category
	Action     Action
	Message    string
	CreatedAt  time.Time
}

// SearchResult is a raw entry extracted from one search results page.
type SearchResult struct {
	Locator    string
	ExternalID string
	Name       string
	Headline   string
}

// Candidate is an in-memory reference produced by discovery and consumed
// once by the engine loop. Never persisted.
type Candidate struct {
	Locator    string
	ExternalID string
	Name       string
	Weight     int
}

// ProfileSnapshot is what page automation extracts from a visited profile.
// Optional fields may be empty when extraction is best-effort.
type ProfileSnapshot struct {
	ExternalID        string
	Name              string
	Headline          string
	Company           string
	Location          string
	About             string
	MutualConnections int
	TotalConnections  int
}

// Text returns the snapshot's combined free-text fields for keyword matching.
func (p ProfileSnapshot) Text() string {
	return p.Name + " " + p.Headline + " " + p.Company + " " + p.Location + " " + p.About
}

// FirstName returns the leading name token, used by message templates.
func (p ProfileSnapshot) FirstName() string {
	for i := 0; i < len(p.Name); i++ {
		if p.Name[i] == ' ' {
			return p.Name[:i]
		}
	}
	return p.Name
}

// TargetProfile is the operator's own profile summary used as the scoring
// anchor. At most one exists; it is overwritten wholesale on re-analysis.
type TargetProfile struct {
	Name      string
	Headline  string
	Industry  string
	Expertise []string
	UpdatedAt time.Time
}

// TriggerRule is the single active schedule for automatic run starts.
// Updates replace the rule wholesale.
type TriggerRule struct {
	Enabled  bool
	Times    []string // "15:04"
	Days     []time.Weekday
	Keywords string
}
