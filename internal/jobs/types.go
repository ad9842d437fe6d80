package jobs

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Payload describes one translation run: which subtitle to translate,
// into what, and where the result lands.
type Payload struct {
	SubtitleFile string `json:"subtitle_file"`
	TargetLang   string `json:"target_lang"`
	OutputFile   string `json:"output_file"`
}

type Job struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	DedupeKey string    `json:"dedupe_key"`
	Payload   Payload   `json:"payload"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   Payload
}
