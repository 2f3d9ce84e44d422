package deploy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/portfolify/shipd/internal/provider"
)

func TestSimulatedExecutorJitterBounds(t *testing.T) {
	step := provider.Step{Name: "Building portfolio", Duration: 5 * time.Second}

	cases := []struct {
		r    float64
		want time.Duration
	}{
		{0, 4250 * time.Millisecond},
		{0.5, 5 * time.Second},
		{0.999999, 5750 * time.Millisecond},
	}
	for _, tc := range cases {
		e := &SimulatedExecutor{Rand: func() float64 { return tc.r }}
		got := e.Duration(step)
		if diff := got - tc.want; diff > time.Millisecond || diff < -time.Millisecond {
			t.Errorf("r=%v: duration = %s, want ~%s", tc.r, got, tc.want)
		}
	}
}

func TestSimulatedExecutorScale(t *testing.T) {
	e := &SimulatedExecutor{Scale: 0.001, Rand: func() float64 { return 0.5 }}
	got := e.Duration(provider.Step{Duration: 2 * time.Second})
	if diff := got - 2*time.Millisecond; diff > time.Microsecond || diff < -time.Microsecond {
		t.Errorf("duration = %s, want ~2ms", got)
	}
}

func TestSimulatedExecutorHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := &SimulatedExecutor{}
	err := e.Execute(ctx, provider.Step{Name: "slow", Duration: time.Hour}, Config{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
