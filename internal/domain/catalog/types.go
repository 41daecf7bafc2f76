package catalog

import "time"

// Category is the root entity of the exam catalog. Identifiers are assigned
// by the remote service and globally unique.
type Category struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions,omitempty"`
}

// Question belongs to exactly one category.
type Question struct {
	ID            string   `json:"id"`
	CategoryID    string   `json:"categoryId"`
	Text          string   `json:"text"`
	CorrectAnswer string   `json:"correctAnswer"`
	Answers       []Answer `json:"answers"`
}

// Answer belongs to exactly one question.
type Answer struct {
	ID         string `json:"id"`
	QuestionID string `json:"questionId"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"isCorrect"`
}

// State identifies where the orchestrator is in its sync protocol.
type State string

const (
	// StateIdle means Start has not been called yet.
	StateIdle State = "idle"
	// StateLoadingLocal means the initial cache read is in progress.
	StateLoadingLocal State = "loading_local"
	// StateRefreshingRemote means a fetch is in flight.
	StateRefreshingRemote State = "refreshing_remote"
	// StateReady means a dataset has been published.
	StateReady State = "ready"
	// StateError means the last refresh failed; the previously published
	// dataset remains available.
	StateError State = "error"
)

// Origin labels which side of the cache a snapshot came from.
type Origin string

const (
	OriginCache  Origin = "cache"
	OriginRemote Origin = "remote"
)

// Snapshot is the dataset published to subscribers after every local read or
// committed refresh.
type Snapshot struct {
	Categories  []Category `json:"categories"`
	Origin      Origin     `json:"origin"`
	PublishedAt time.Time  `json:"publishedAt"`
}

// Status reports the orchestrator's current condition to the status endpoint.
type Status struct {
	State         State     `json:"state"`
	Connected     bool      `json:"connected"`
	LastError     string    `json:"lastError,omitempty"`
	LastRefreshAt time.Time `json:"lastRefreshAt,omitzero"`
}
