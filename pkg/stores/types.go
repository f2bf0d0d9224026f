package stores

import "time"

// RunStatus is the lifecycle state of a recorded command run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusHalted    RunStatus = "halted"
)

// Run is one invocation of a top-level command.
type Run struct {
	ID          string     `json:"id"`
	Command     string     `json:"command"`
	Project     string     `json:"project"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// StepEvent records the outcome of one pipeline step within a run.
type StepEvent struct {
	RunID     string    `json:"run_id"`
	Seq       int       `json:"seq"`
	Step      string    `json:"step"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
