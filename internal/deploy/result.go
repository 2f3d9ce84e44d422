package deploy

import (
	"fmt"

	"github.com/portfolify/shipd/internal/provider"
)

type State string

const (
	StateValidating State = "validating"
	StateRunning    State = "running"
	StateFinalizing State = "finalizing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

type OutcomeKind string

const (
	OutcomeLiveURL       OutcomeKind = "live_url"
	OutcomeDownloadReady OutcomeKind = "download_ready"
	OutcomeGuidedSetup   OutcomeKind = "guided_setup"
)

// Wire sentinels kept for clients that still switch on the url field.
const (
	DownloadSentinel    = "download"
	GuidedSetupSentinel = "github-setup"
)

// GuidedSetupSteps are the manual wizard stages a GitHub Pages deployment
// hands back to the user.
var GuidedSetupSteps = []string{
	"Download Your Portfolio Files",
	"Create GitHub Repository",
	"Upload Files to GitHub",
	"Enable GitHub Pages",
	"Access Your Live Portfolio",
}

type GuidedSetup struct {
	RepositoryName string   `json:"repositoryName"`
	PagesURL       string   `json:"pagesUrl"`
	Steps          []string `json:"steps"`
}

// Outcome tells the caller what to do with a successful deployment:
// open a live URL, fetch a download, or start the guided setup.
type Outcome struct {
	Kind  OutcomeKind  `json:"kind"`
	URL   string       `json:"url,omitempty"`
	Setup *GuidedSetup `json:"setup,omitempty"`
}

type Result struct {
	Success          bool              `json:"success"`
	Provider         provider.Provider `json:"provider"`
	State            State             `json:"state"`
	Outcome          *Outcome          `json:"outcome,omitempty"`
	Error            string            `json:"error,omitempty"`
	ValidationErrors []string          `json:"validationErrors,omitempty"`
	Logs             []string          `json:"logs,omitempty"`
}

// URL flattens the outcome into the legacy url field: the live URL, or the
// "download" / "github-setup" sentinel.
func (r Result) URL() string {
	if r.Outcome == nil {
		return ""
	}
	switch r.Outcome.Kind {
	case OutcomeDownloadReady:
		return DownloadSentinel
	case OutcomeGuidedSetup:
		return GuidedSetupSentinel
	default:
		return r.Outcome.URL
	}
}

// LiveURL builds the hosting URL for providers that serve the site directly.
func LiveURL(cfg Config) string {
	if cfg.CustomDomain != "" {
		return "https://" + cfg.CustomDomain
	}
	suffix := "example.com"
	if info, ok := provider.Lookup(cfg.Provider); ok && info.DomainSuffix != "" {
		suffix = info.DomainSuffix
	}
	return fmt.Sprintf("https://%s.%s", cfg.ProjectName, suffix)
}

// shape builds the success result for cfg and the terminal progress message.
func shape(cfg Config) (Result, string) {
	res := Result{
		Success:  true,
		Provider: cfg.Provider,
		State:    StateSucceeded,
	}

	switch cfg.Provider {
	case provider.Download:
		res.Outcome = &Outcome{Kind: OutcomeDownloadReady}
		res.Logs = []string{"Portfolio files generated successfully", "Ready for download"}
		return res, "Ready for download!"
	case provider.GitHubPages:
		res.Outcome = &Outcome{
			Kind: OutcomeGuidedSetup,
			Setup: &GuidedSetup{
				RepositoryName: cfg.ProjectName,
				PagesURL:       fmt.Sprintf("https://%s.github.io", cfg.ProjectName),
				Steps:          append([]string(nil), GuidedSetupSteps...),
			},
		}
		res.Logs = []string{"Portfolio files ready", "Follow the guided setup to deploy to GitHub Pages"}
		return res, "Ready for GitHub Pages setup!"
	default:
		url := LiveURL(cfg)
		res.Outcome = &Outcome{Kind: OutcomeLiveURL, URL: url}
		res.Logs = []string{
			fmt.Sprintf("Successfully deployed to %s", cfg.Provider),
			fmt.Sprintf("URL: %s", url),
		}
		return res, "Deployment complete!"
	}
}

func failed(p provider.Provider, msg string) Result {
	return Result{Success: false, Provider: p, State: StateFailed, Error: msg}
}

func cancelled(p provider.Provider) Result {
	return Result{Success: false, Provider: p, State: StateCancelled, Error: "deployment cancelled"}
}
