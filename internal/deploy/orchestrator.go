package deploy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/portfolify/shipd/internal/provider"
)

const initMessage = "Initializing deployment..."

// ProgressFunc receives the completed percentage and the current step name.
type ProgressFunc func(percent int, step string)

// Orchestrator drives one deployment attempt from validation through the
// provider's step plan to a terminal Result. It holds no per-deployment
// state and is safe for concurrent use.
type Orchestrator struct {
	exec Executor
}

func NewOrchestrator(exec Executor) *Orchestrator {
	if exec == nil {
		exec = &SimulatedExecutor{}
	}
	return &Orchestrator{exec: exec}
}

// StateFunc observes the states one deployment moves through.
type StateFunc func(State)

// Deploy validates cfg, runs every step of the provider's plan in order and
// returns the terminal result. It never panics and never returns without a
// Result; failures and cancellation are reported in the Result itself.
func (o *Orchestrator) Deploy(ctx context.Context, cfg Config, onProgress ProgressFunc) Result {
	return o.Run(ctx, cfg, onProgress, nil)
}

// Run is Deploy with onState called on every state entered, ending with the
// terminal state of the returned Result.
func (o *Orchestrator) Run(ctx context.Context, cfg Config, onProgress ProgressFunc, onState StateFunc) (res Result) {
	m := &machine{cfg: cfg, onState: onState}
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorf("deploy: %s deployment for %s panicked: %v", cfg.Provider, cfg.ProjectName, r)
			res = failed(cfg.Provider, fmt.Sprintf("unexpected deployment error: %v", r))
		}
		m.enter(res.State)
	}()

	m.enter(StateValidating)
	if errs := Validate(cfg); len(errs) > 0 {
		res = failed(cfg.Provider, "Configuration errors: "+strings.Join(errs, ", "))
		res.ValidationErrors = errs
		return res
	}

	m.enter(StateRunning)
	report := guardProgress(cfg, onProgress)
	steps := provider.StepsFor(cfg.Provider)
	total := provider.TotalDuration(steps)
	var done time.Duration

	zap.S().Infof("deploy: starting %s deployment for %s (%d steps)", cfg.Provider, cfg.ProjectName, len(steps))
	report(0, initMessage)

	for _, step := range steps {
		if ctx.Err() != nil {
			zap.S().Infof("deploy: %s deployment for %s cancelled before %q", cfg.Provider, cfg.ProjectName, step.Name)
			return cancelled(cfg.Provider)
		}

		report(percent(done, total), step.Name)
		if err := o.execute(ctx, step, cfg); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				zap.S().Infof("deploy: %s deployment for %s cancelled during %q", cfg.Provider, cfg.ProjectName, step.Name)
				return cancelled(cfg.Provider)
			}
			zap.S().Warnf("deploy: step %q failed for %s: %v", step.Name, cfg.ProjectName, err)
			return failed(cfg.Provider, err.Error())
		}
		done += step.Duration
		report(percent(done, total), step.Name)
	}

	m.enter(StateFinalizing)
	res, message := shape(cfg)
	report(100, message)
	zap.S().Infof("deploy: %s deployment for %s complete (%s)", cfg.Provider, cfg.ProjectName, res.URL())
	return res
}

// machine tracks the current state of one deployment. Once terminal it
// ignores further transitions.
type machine struct {
	cfg     Config
	state   State
	onState StateFunc
}

func (m *machine) enter(s State) {
	if m.state.Terminal() || s == m.state {
		return
	}
	m.state = s
	if m.onState == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			zap.S().Warnf("deploy: state callback for %s panicked entering %s: %v", m.cfg.ProjectName, s, r)
		}
	}()
	m.onState(s)
}

// execute runs one step, converting an executor panic into an error.
func (o *Orchestrator) execute(ctx context.Context, step provider.Step, cfg Config) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s: %v", step.Name, r)
		}
	}()
	return o.exec.Execute(ctx, step, cfg)
}

// guardProgress wraps onProgress so a panicking callback is logged and
// ignored instead of aborting the deployment.
func guardProgress(cfg Config, onProgress ProgressFunc) ProgressFunc {
	if onProgress == nil {
		return func(int, string) {}
	}
	return func(pct int, step string) {
		defer func() {
			if r := recover(); r != nil {
				zap.S().Warnf("deploy: progress callback for %s panicked at %d%% (%s): %v", cfg.ProjectName, pct, step, r)
			}
		}()
		onProgress(pct, step)
	}
}

func percent(done, total time.Duration) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
