package janitor

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Pruner drops finished deployment records last touched before cutoff.
type Pruner interface {
	Prune(cutoff time.Time) int
}

// Janitor periodically prunes old deployment records.
type Janitor struct {
	pruner Pruner
	maxAge time.Duration
	cron   *cron.Cron
	now    func() time.Time
}

// New schedules a sweep on schedule, a cron expression with optional
// seconds field or a descriptor such as "@every 10m".
func New(p Pruner, schedule string, maxAge time.Duration) (*Janitor, error) {
	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	j := &Janitor{
		pruner: p,
		maxAge: maxAge,
		cron:   cron.New(cron.WithParser(parser)),
		now:    time.Now,
	}
	if _, err := j.cron.AddFunc(schedule, func() { j.Sweep() }); err != nil {
		return nil, fmt.Errorf("janitor: schedule %q: %w", schedule, err)
	}
	return j, nil
}

func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep prunes once and returns the number of records removed.
func (j *Janitor) Sweep() int {
	cutoff := j.now().Add(-j.maxAge)
	n := j.pruner.Prune(cutoff)
	if n > 0 {
		zap.S().Infof("janitor: pruned %d deployment(s) older than %s", n, j.maxAge)
	}
	return n
}
