package deploy

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/portfolify/shipd/internal/provider"
)

const (
	DefaultBuildCommand    = "npm run build"
	DefaultOutputDirectory = "out"
	DefaultNodeVersion     = "18.x"
)

const (
	ErrProjectNameRequired = "Project name is required"
	ErrProjectNameFormat   = "Project name can only contain lowercase letters, numbers, and hyphens"
	ErrCustomDomainFormat  = "Custom domain format is invalid"
	ErrProviderUnsupported = "Provider is not supported"
)

var (
	projectNamePattern  = regexp.MustCompile(`^[a-z0-9-]+$`)
	customDomainPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{1,61}[A-Za-z0-9]\.[A-Za-z]{2,}$`)
	whitespaceRun       = regexp.MustCompile(`\s+`)
)

// Config is one deployment attempt. It is built fresh per attempt and not
// mutated once handed to the orchestrator.
type Config struct {
	Provider        provider.Provider `json:"provider"`
	ProjectName     string            `json:"projectName"`
	Domain          string            `json:"domain"`
	CustomDomain    string            `json:"customDomain,omitempty"`
	EnvVars         map[string]string `json:"envVars,omitempty"`
	BuildCommand    string            `json:"buildCommand,omitempty"`
	OutputDirectory string            `json:"outputDirectory,omitempty"`
	NodeVersion     string            `json:"nodeVersion,omitempty"`
	PortfolioData   json.RawMessage   `json:"portfolioData,omitempty"`

	// Owner scopes the concurrency key; set by the transport from the
	// caller's identity, never from the request body.
	Owner string `json:"-"`
}

// Key identifies the project a deployment targets. At most one deployment
// per key may be active at a time.
func (c Config) Key() string {
	owner := c.Owner
	if owner == "" {
		owner = "anonymous"
	}
	return owner + "/" + string(c.Provider) + "/" + c.ProjectName
}

// Normalize returns a copy of cfg with whitespace trimmed, build defaults
// applied and Domain computed. It never rejects input; that is Validate's job.
func Normalize(cfg Config) Config {
	out := cfg
	out.ProjectName = strings.TrimSpace(cfg.ProjectName)
	out.CustomDomain = strings.TrimSpace(cfg.CustomDomain)
	if cfg.EnvVars != nil {
		out.EnvVars = make(map[string]string, len(cfg.EnvVars))
		for k, v := range cfg.EnvVars {
			out.EnvVars[k] = v
		}
	}

	if out.BuildCommand == "" {
		out.BuildCommand = DefaultBuildCommand
	}
	if out.OutputDirectory == "" {
		out.OutputDirectory = DefaultOutputDirectory
	}
	if out.NodeVersion == "" {
		out.NodeVersion = DefaultNodeVersion
	}

	info, known := provider.Lookup(out.Provider)
	if known && !info.RequiresProjectName && out.ProjectName == "" {
		out.ProjectName = projectNameFromPortfolio(out.PortfolioData)
	}

	switch {
	case out.CustomDomain != "":
		out.Domain = out.CustomDomain
	case known && info.DomainSuffix != "" && out.ProjectName != "":
		out.Domain = out.ProjectName + "." + info.DomainSuffix
	default:
		out.Domain = ""
	}
	return out
}

func projectNameFromPortfolio(raw json.RawMessage) string {
	var p struct {
		Name string `json:"name"`
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &p)
	}
	slug := Slug(p.Name)
	if slug == "" || !projectNamePattern.MatchString(slug) {
		return "portfolio"
	}
	return slug
}

// Slug lowercases name and collapses whitespace runs into hyphens.
func Slug(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// Validate checks cfg before execution and returns every applicable error
// message in a stable order. An empty result means cfg may be deployed.
func Validate(cfg Config) []string {
	var errs []string

	if strings.TrimSpace(cfg.ProjectName) == "" {
		errs = append(errs, ErrProjectNameRequired)
	}
	if cfg.ProjectName != "" && !projectNamePattern.MatchString(cfg.ProjectName) {
		errs = append(errs, ErrProjectNameFormat)
	}
	if cfg.CustomDomain != "" && !customDomainPattern.MatchString(cfg.CustomDomain) {
		errs = append(errs, ErrCustomDomainFormat)
	}
	if !cfg.Provider.Valid() {
		errs = append(errs, ErrProviderUnsupported)
	}

	return errs
}
