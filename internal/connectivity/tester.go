package connectivity

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/portfolify/shipd/internal/config"
	"github.com/portfolify/shipd/internal/provider"
)

// Tester reports whether a provider is reachable. Implementations swallow
// every failure and report it as false.
type Tester interface {
	Test(ctx context.Context, p provider.Provider) bool
}

// Simulated waits Delay and then fails with probability FailureRate.
type Simulated struct {
	Delay       time.Duration
	FailureRate float64
	// Rand returns a value in [0,1); nil uses math/rand/v2.
	Rand func() float64
}

func (s *Simulated) Test(ctx context.Context, p provider.Provider) bool {
	if err := s.check(ctx, p); err != nil {
		zap.S().Warnf("connectivity: connection test failed for %s: %v", p, err)
		return false
	}
	return true
}

func (s *Simulated) check(ctx context.Context, p provider.Provider) error {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	r := rand.Float64
	if s.Rand != nil {
		r = s.Rand
	}
	if r() < s.FailureRate {
		return fmt.Errorf("connection to %s failed", p)
	}
	return nil
}

// Probe issues a GET against each provider's status endpoint. A provider
// without an endpoint is reported unreachable.
type Probe struct {
	Endpoints map[provider.Provider]string
	Client    *http.Client
	// Tokens holds the per-provider API token sent as a bearer token.
	Tokens map[provider.Provider]string
}

func (p *Probe) Test(ctx context.Context, prov provider.Provider) bool {
	if err := p.check(ctx, prov); err != nil {
		zap.S().Warnf("connectivity: probe failed for %s: %v", prov, err)
		return false
	}
	return true
}

func (p *Probe) check(ctx context.Context, prov provider.Provider) error {
	url, ok := p.Endpoints[prov]
	if !ok || url == "" {
		return fmt.Errorf("no probe endpoint configured")
	}

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if token := p.Tokens[prov]; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return nil
	}
	return fmt.Errorf("GET %s returned %d", url, resp.StatusCode)
}

// New picks a Probe when probe endpoints are configured, otherwise the
// simulated tester.
func New(cfg config.DeployConfig) Tester {
	if len(cfg.ProbeEndpoints) > 0 {
		endpoints := make(map[provider.Provider]string, len(cfg.ProbeEndpoints))
		for id, url := range cfg.ProbeEndpoints {
			endpoints[provider.Provider(id)] = url
		}
		tokens := make(map[provider.Provider]string, len(cfg.ProbeTokens))
		for id, token := range cfg.ProbeTokens {
			tokens[provider.Provider(id)] = token
		}
		return &Probe{Endpoints: endpoints, Tokens: tokens}
	}
	return &Simulated{
		Delay:       cfg.ConnectionDelay.Duration,
		FailureRate: cfg.ConnectionFailureRate,
	}
}
