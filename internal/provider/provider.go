package provider

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

type Provider string

const (
	Vercel      Provider = "vercel"
	Netlify     Provider = "netlify"
	GitHubPages Provider = "github-pages"
	Download    Provider = "download"
)

func (p Provider) Valid() bool {
	_, ok := byID[p]
	return ok
}

// Info describes a provider for choice rendering. The orchestrator only
// needs the Provider tag and the step plan; everything else is for callers.
type Info struct {
	ID                  Provider `json:"id"`
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	Features            []string `json:"features"`
	Free                bool     `json:"free"`
	CustomDomain        bool     `json:"customDomain"`
	DomainSuffix        string   `json:"domainSuffix,omitempty"`
	RequiresProjectName bool     `json:"requiresProjectName"`
}

type Step struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Duration    time.Duration `json:"-"`
}

//go:embed catalog.yml
var catalogYAML []byte

type catalogFile struct {
	Providers []struct {
		ID                  Provider `yaml:"id"`
		Name                string   `yaml:"name"`
		Description         string   `yaml:"description"`
		Features            []string `yaml:"features"`
		Free                bool     `yaml:"free"`
		CustomDomain        bool     `yaml:"custom_domain"`
		DomainSuffix        string   `yaml:"domain_suffix"`
		RequiresProjectName bool     `yaml:"requires_project_name"`
		Steps               []struct {
			Name        string `yaml:"name"`
			Description string `yaml:"description"`
			DurationMS  int    `yaml:"duration_ms"`
		} `yaml:"steps"`
	} `yaml:"providers"`
}

type entry struct {
	info  Info
	steps []Step
}

var (
	ordered []Provider
	byID    = map[Provider]*entry{}
)

func init() {
	if err := load(catalogYAML); err != nil {
		panic(err)
	}
}

func load(data []byte) error {
	var cat catalogFile
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return fmt.Errorf("provider: parse catalog: %w", err)
	}
	if len(cat.Providers) == 0 {
		return fmt.Errorf("provider: catalog is empty")
	}

	for _, p := range cat.Providers {
		if _, dup := byID[p.ID]; dup {
			return fmt.Errorf("provider: duplicate catalog entry %q", p.ID)
		}
		if len(p.Steps) == 0 {
			return fmt.Errorf("provider: %s has no steps", p.ID)
		}
		e := &entry{
			info: Info{
				ID:                  p.ID,
				Name:                p.Name,
				Description:         p.Description,
				Features:            p.Features,
				Free:                p.Free,
				CustomDomain:        p.CustomDomain,
				DomainSuffix:        p.DomainSuffix,
				RequiresProjectName: p.RequiresProjectName,
			},
		}
		for _, s := range p.Steps {
			if s.DurationMS <= 0 {
				return fmt.Errorf("provider: %s step %q has no duration", p.ID, s.Name)
			}
			e.steps = append(e.steps, Step{
				Name:        s.Name,
				Description: s.Description,
				Duration:    time.Duration(s.DurationMS) * time.Millisecond,
			})
		}
		byID[p.ID] = e
		ordered = append(ordered, p.ID)
	}
	return nil
}

// List returns every supported provider in catalog order.
func List() []Info {
	out := make([]Info, 0, len(ordered))
	for _, id := range ordered {
		info := byID[id].info
		info.Features = append([]string(nil), info.Features...)
		out = append(out, info)
	}
	return out
}

func Lookup(p Provider) (Info, bool) {
	e, ok := byID[p]
	if !ok {
		return Info{}, false
	}
	info := e.info
	info.Features = append([]string(nil), info.Features...)
	return info, true
}

// StepsFor returns a copy of the ordered step plan for p. Callers must pass
// a valid provider; an unknown tag is a programming error and panics.
func StepsFor(p Provider) []Step {
	e, ok := byID[p]
	if !ok {
		panic(fmt.Sprintf("provider: no step plan for %q", p))
	}
	out := make([]Step, len(e.steps))
	copy(out, e.steps)
	return out
}

func TotalDuration(steps []Step) time.Duration {
	var total time.Duration
	for _, s := range steps {
		total += s.Duration
	}
	return total
}
