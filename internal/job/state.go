package job

import (
	"time"

	"github.com/portfolify/shipd/internal/deploy"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Finished() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// statusFor maps an orchestrator terminal state to a record status.
func statusFor(state deploy.State) Status {
	switch state {
	case deploy.StateSucceeded:
		return StatusSucceeded
	case deploy.StateCancelled:
		return StatusCancelled
	default:
		return StatusFailed
	}
}

type Deployment struct {
	ID          string        `json:"id"`
	Key         string        `json:"key"`
	Config      deploy.Config `json:"config"`
	CallbackURL string        `json:"callbackUrl,omitempty"`

	// Runtime state
	Status    Status         `json:"status"`
	Phase     deploy.State   `json:"phase,omitempty"`
	Progress  int            `json:"progress"`
	Step      string         `json:"step,omitempty"`
	Result    *deploy.Result `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Log       []string       `json:"log,omitempty"`
}

// clone returns a copy safe to hand out while the store keeps mutating
// the original.
func (d *Deployment) clone() *Deployment {
	cp := *d
	cp.Log = append([]string(nil), d.Log...)
	if d.Result != nil {
		r := *d.Result
		cp.Result = &r
	}
	return &cp
}
