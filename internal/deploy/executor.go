package deploy

import (
	"context"
	"math/rand"
	"time"

	"github.com/portfolify/shipd/internal/provider"
)

// Executor performs the work behind one step. Implementations talk to the
// hosting provider; the orchestrator only sees success or an error.
type Executor interface {
	Execute(ctx context.Context, step provider.Step, cfg Config) error
}

type ExecutorFunc func(ctx context.Context, step provider.Step, cfg Config) error

func (f ExecutorFunc) Execute(ctx context.Context, step provider.Step, cfg Config) error {
	return f(ctx, step, cfg)
}

// jitterSpread is the total relative spread around a step's nominal
// duration (±15%).
const jitterSpread = 0.3

// SimulatedExecutor stands in for provider API calls by sleeping for the
// step's nominal duration with jitter. It never fails on its own.
type SimulatedExecutor struct {
	// Scale multiplies every nominal duration; 0 means 1.
	Scale float64
	// Rand returns a value in [0,1); nil uses math/rand/v2.
	Rand func() float64
}

func (e *SimulatedExecutor) Execute(ctx context.Context, step provider.Step, _ Config) error {
	d := e.Duration(step)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Duration is the jittered, scaled time the step will take.
func (e *SimulatedExecutor) Duration(step provider.Step) time.Duration {
	scale := e.Scale
	if scale == 0 {
		scale = 1
	}
	r := rand.Float64
	if e.Rand != nil {
		r = e.Rand
	}
	factor := 1 + (r()-0.5)*jitterSpread
	return time.Duration(float64(step.Duration) * scale * factor)
}
