package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/portfolify/shipd/internal/deploy"
)

var ErrNotFound = errors.New("job: deployment not found")

const interruptedError = "deployment interrupted by restart"

type Store struct {
	mu        sync.RWMutex
	jobs      map[string]*Deployment
	statePath string // path to the JSON state file; empty keeps state in memory
	now       func() time.Time
}

func NewStore(statePath string) *Store {
	s := &Store{
		jobs:      make(map[string]*Deployment),
		statePath: statePath,
		now:       time.Now,
	}
	if statePath != "" {
		s.load()
	}
	return s
}

func (s *Store) Put(d *Deployment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.UpdatedAt = s.now()
	s.jobs[d.ID] = d.clone()
	s.persistLocked()
}

func (s *Store) Get(id string) (*Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d.clone(), nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.jobs, id)
	s.persistLocked()
	return nil
}

// List returns all deployments, newest first.
func (s *Store) List() []*Deployment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Deployment, 0, len(s.jobs))
	for _, d := range s.jobs {
		result = append(result, d.clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *Store) SetStatus(id string, status Status) error {
	return s.update(id, true, func(d *Deployment) {
		d.Status = status
	})
}

// UpdateProgress records the latest progress event. Not persisted; progress
// is recomputed by the next run after a restart.
func (s *Store) UpdateProgress(id string, percent int, step string) error {
	return s.update(id, false, func(d *Deployment) {
		d.Progress = percent
		d.Step = step
	})
}

// SetPhase records the orchestrator state the deployment is in. Not
// persisted, like progress.
func (s *Store) SetPhase(id string, phase deploy.State) error {
	return s.update(id, false, func(d *Deployment) {
		d.Phase = phase
	})
}

// Finish stores the terminal result and derives the record status from it.
func (s *Store) Finish(id string, res deploy.Result) error {
	return s.update(id, true, func(d *Deployment) {
		d.Status = statusFor(res.State)
		d.Phase = res.State
		d.Error = res.Error
		d.Result = &res
		if res.Success {
			d.Progress = 100
		}
	})
}

func (s *Store) AppendLog(id string, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.jobs[id]; ok {
		d.Log = append(d.Log, line)
	}
}

// Prune removes finished deployments last updated before cutoff and
// returns how many were removed.
func (s *Store) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, d := range s.jobs {
		if d.Status.Finished() && d.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	if n > 0 {
		s.persistLocked()
	}
	return n
}

func (s *Store) update(id string, persist bool, fn func(*Deployment)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(d)
	d.UpdatedAt = s.now()
	if persist {
		s.persistLocked()
	}
	return nil
}

// load reads persisted state from disk. Called once at startup. Deployments
// that were in flight when the previous process stopped are marked failed.
func (s *Store) load() {
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.S().Warnf("store: load %s: %v", s.statePath, err)
		}
		return
	}

	var jobs map[string]*Deployment
	if err := json.Unmarshal(data, &jobs); err != nil {
		zap.S().Warnf("store: parse %s: %v", s.statePath, err)
		return
	}

	for _, d := range jobs {
		if !d.Status.Finished() {
			d.Status = StatusFailed
			d.Error = interruptedError
		}
	}
	s.jobs = jobs
	zap.S().Infof("store: loaded %d deployment(s) from %s", len(jobs), s.statePath)
}

// persistLocked writes current state to disk. Must be called with mu held.
func (s *Store) persistLocked() {
	if s.statePath == "" {
		return
	}

	data, err := json.MarshalIndent(s.jobs, "", "  ")
	if err != nil {
		zap.S().Errorf("store: marshal: %v", err)
		return
	}

	// Write atomically via temp file
	dir := filepath.Dir(s.statePath)
	tmp, err := os.CreateTemp(dir, "deployments-*.json")
	if err != nil {
		zap.S().Errorf("store: create temp: %v", err)
		return
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		zap.S().Errorf("store: write temp: %v", err)
		return
	}
	tmp.Close()

	if err := os.Rename(tmp.Name(), s.statePath); err != nil {
		os.Remove(tmp.Name())
		zap.S().Errorf("store: rename: %v", err)
	}
}
