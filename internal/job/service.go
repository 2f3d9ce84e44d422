package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/portfolify/shipd/internal/buildqueue"
	"github.com/portfolify/shipd/internal/callback"
	"github.com/portfolify/shipd/internal/deploy"
	"github.com/portfolify/shipd/internal/guard"
	"github.com/portfolify/shipd/internal/logging"
	"github.com/portfolify/shipd/internal/logstream"
)

var (
	ErrQueueFull = errors.New("job: deployment queue full")
	ErrFinished  = errors.New("job: deployment already finished")
)

// ValidationError carries the validator's messages for a rejected config.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "job: invalid configuration: " + strings.Join(e.Errors, ", ")
}

type Deployer interface {
	Run(ctx context.Context, cfg deploy.Config, onProgress deploy.ProgressFunc, onState deploy.StateFunc) deploy.Result
}

type Notifier interface {
	SendStatus(ctx context.Context, callbackURL string, payload callback.StatusPayload) error
}

type run struct {
	cancel    context.CancelFunc
	cancelled bool // cancel requested before the run started
}

// Service runs deployments on behalf of the API: it enforces one active
// deployment per project key, records progress, streams events and sends
// completion callbacks.
type Service struct {
	deployer Deployer
	guard    guard.Guard
	store    *Store
	hub      *logstream.Hub
	queue    *buildqueue.Queue
	notifier Notifier

	mu     sync.Mutex
	active map[string]*run
}

func NewService(d Deployer, g guard.Guard, store *Store, hub *logstream.Hub, q *buildqueue.Queue, n Notifier) *Service {
	return &Service{
		deployer: d,
		guard:    g,
		store:    store,
		hub:      hub,
		queue:    q,
		notifier: n,
		active:   make(map[string]*run),
	}
}

// Run deploys cfg synchronously. The error is non-nil only when the
// deployment could not start (invalid config, key busy); execution failures
// are reported in the Result.
func (s *Service) Run(ctx context.Context, cfg deploy.Config) (*Deployment, deploy.Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d, release, err := s.admit(runCtx, cfg, "", &run{cancel: cancel})
	if err != nil {
		return nil, deploy.Result{}, err
	}
	defer release()
	defer s.forget(d.ID)

	res := s.execute(runCtx, d)
	final, err := s.store.Get(d.ID)
	if err != nil {
		final = d
	}
	return final, res, nil
}

// Submit queues cfg for asynchronous deployment and returns the queued
// record. callbackURL, when set, receives the terminal status.
func (s *Service) Submit(ctx context.Context, cfg deploy.Config, callbackURL string) (*Deployment, error) {
	d, release, err := s.admit(ctx, cfg, callbackURL, &run{})
	if err != nil {
		return nil, err
	}

	ok := s.queue.Enqueue(buildqueue.Job{
		DeploymentID: d.ID,
		Fn: func(qctx context.Context) error {
			res := s.runQueued(qctx, d, release)
			s.notify(qctx, d, res)
			if !res.Success {
				return fmt.Errorf("%s: %s", res.State, res.Error)
			}
			return nil
		},
	})
	if !ok {
		s.forget(d.ID)
		release()
		_ = s.store.Delete(d.ID)
		return nil, ErrQueueFull
	}

	return d.clone(), nil
}

// Cancel stops an active deployment. A queued deployment is cancelled
// before its first step runs.
func (s *Service) Cancel(id string) error {
	s.mu.Lock()
	r, ok := s.active[id]
	if ok {
		if r.cancel != nil {
			r.cancel()
		} else {
			r.cancelled = true
		}
	}
	s.mu.Unlock()
	if ok {
		zap.S().Infof("job: cancel requested for %s", id)
		return nil
	}

	if _, err := s.store.Get(id); err != nil {
		return err
	}
	return ErrFinished
}

// admit normalizes and validates cfg, takes the project key and records a
// queued deployment registered as r. The record becomes visible only once r
// is cancellable. The returned release frees the key.
func (s *Service) admit(ctx context.Context, cfg deploy.Config, callbackURL string, r *run) (*Deployment, func(), error) {
	cfg = deploy.Normalize(cfg)
	if errs := deploy.Validate(cfg); len(errs) > 0 {
		return nil, nil, &ValidationError{Errors: errs}
	}

	release, err := s.guard.Acquire(ctx, cfg.Key())
	if err != nil {
		return nil, nil, err
	}

	now := s.store.now()
	d := &Deployment{
		ID:          uuid.NewString(),
		Key:         cfg.Key(),
		Config:      cfg,
		CallbackURL: callbackURL,
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.mu.Lock()
	s.active[d.ID] = r
	s.store.Put(d)
	s.mu.Unlock()
	return d, release, nil
}

// runQueued executes a dequeued deployment. The key is released and the run
// forgotten before it returns, so callbacks observe a settled service.
func (s *Service) runQueued(ctx context.Context, d *Deployment, release func()) deploy.Result {
	defer release()
	defer s.forget(d.ID)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !s.start(d.ID, cancel) {
		res := deploy.Result{
			Provider: d.Config.Provider,
			State:    deploy.StateCancelled,
			Error:    "deployment cancelled",
		}
		s.complete(d.ID, res)
		return res
	}
	return s.execute(runCtx, d)
}

func (s *Service) start(id string, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.active[id]
	if !ok || r.cancelled {
		return false
	}
	r.cancel = cancel
	return true
}

func (s *Service) forget(id string) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

func (s *Service) execute(ctx context.Context, d *Deployment) deploy.Result {
	// Progress and log lines are emitted on the deploying goroutine; every
	// event carries the latest progress so stream readers never see it drop.
	var (
		pct   int
		step  string
		phase deploy.State
	)
	event := func(line string) logstream.Event {
		return logstream.Event{
			DeploymentID: d.ID,
			Percent:      pct,
			Step:         step,
			Phase:        string(phase),
			Status:       string(StatusRunning),
			Line:         line,
			Time:         time.Now(),
		}
	}

	logger := logging.NewDeployLogger(d.ID, func(id, line string) {
		s.store.AppendLog(id, line)
		s.hub.Publish(id, event(line))
	})

	_ = s.store.SetStatus(d.ID, StatusRunning)
	logger.Log("starting %s deployment for %s", d.Config.Provider, d.Config.ProjectName)

	onProgress := func(p int, name string) {
		pct, step = p, name
		_ = s.store.UpdateProgress(d.ID, p, name)
		s.hub.Publish(d.ID, event(""))
		logger.Log("%3d%% %s", p, name)
	}
	onState := func(st deploy.State) {
		if st.Terminal() {
			return
		}
		phase = st
		_ = s.store.SetPhase(d.ID, st)
	}

	res := s.deployer.Run(ctx, d.Config, onProgress, onState)

	for _, line := range res.Logs {
		logger.Log("%s", line)
	}
	if !res.Success {
		logger.Log("deployment %s: %s", res.State, res.Error)
	}

	s.complete(d.ID, res)
	return res
}

// complete stores the terminal result and ends the event stream.
func (s *Service) complete(id string, res deploy.Result) {
	if err := s.store.Finish(id, res); err != nil {
		zap.S().Warnf("job: finish %s: %v", id, err)
	}
	ev := logstream.Event{
		DeploymentID: id,
		Phase:        string(res.State),
		Status:       string(statusFor(res.State)),
		Time:         time.Now(),
	}
	if final, err := s.store.Get(id); err == nil {
		ev.Percent = final.Progress
		ev.Step = final.Step
	}
	s.hub.Publish(id, ev)
	s.hub.Close(id)
}

func (s *Service) notify(ctx context.Context, d *Deployment, res deploy.Result) {
	if d.CallbackURL == "" || s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	payload := callback.StatusPayload{
		DeploymentID: d.ID,
		Status:       string(statusFor(res.State)),
		Provider:     string(res.Provider),
		URL:          res.URL(),
		Outcome:      res.Outcome,
		Error:        res.Error,
	}
	if err := s.notifier.SendStatus(ctx, d.CallbackURL, payload); err != nil {
		zap.S().Warnf("job: callback for %s: %v", d.ID, err)
	}
}
