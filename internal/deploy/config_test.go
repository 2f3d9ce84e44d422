package deploy

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/portfolify/shipd/internal/provider"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want []string
	}{
		{"valid", Config{Provider: provider.Vercel, ProjectName: "jane-doe-portfolio"}, nil},
		{"empty name", Config{Provider: provider.Vercel}, []string{ErrProjectNameRequired}},
		{"blank name", Config{Provider: provider.Vercel, ProjectName: "   "}, []string{ErrProjectNameRequired, ErrProjectNameFormat}},
		{"uppercase and space", Config{Provider: provider.Netlify, ProjectName: "BAD NAME"}, []string{ErrProjectNameFormat}},
		{"underscore", Config{Provider: provider.Netlify, ProjectName: "my_site"}, []string{ErrProjectNameFormat}},
		{"good custom domain", Config{Provider: provider.Netlify, ProjectName: "site", CustomDomain: "example.com"}, nil},
		{"bad custom domain", Config{Provider: provider.Netlify, ProjectName: "site", CustomDomain: "-bad.com"}, []string{ErrCustomDomainFormat}},
		{"all errors", Config{Provider: provider.Vercel, ProjectName: "Bad!", CustomDomain: "nodot"}, []string{ErrProjectNameFormat, ErrCustomDomainFormat}},
		{"unknown provider", Config{Provider: "heroku", ProjectName: "site"}, []string{ErrProviderUnsupported}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Validate(tc.cfg)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Validate() = %q, want %q", got, tc.want)
			}
		})
	}
}

// The hostname pattern is deliberately conservative: only a single label
// before the TLD is accepted.
func TestValidateCustomDomainIsSingleLabel(t *testing.T) {
	cfg := Config{Provider: provider.Netlify, ProjectName: "site", CustomDomain: "www.example.com"}
	if got := Validate(cfg); !reflect.DeepEqual(got, []string{ErrCustomDomainFormat}) {
		t.Errorf("Validate() = %q", got)
	}
}

func TestNormalize(t *testing.T) {
	cfg := Normalize(Config{Provider: provider.Vercel, ProjectName: "  my-site  "})
	if cfg.ProjectName != "my-site" {
		t.Errorf("ProjectName = %q", cfg.ProjectName)
	}
	if cfg.Domain != "my-site.vercel.app" {
		t.Errorf("Domain = %q", cfg.Domain)
	}
	if cfg.BuildCommand != DefaultBuildCommand || cfg.OutputDirectory != DefaultOutputDirectory || cfg.NodeVersion != DefaultNodeVersion {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	custom := Normalize(Config{Provider: provider.Netlify, ProjectName: "site", CustomDomain: "example.com", BuildCommand: "make"})
	if custom.Domain != "example.com" || custom.BuildCommand != "make" {
		t.Errorf("unexpected normalized config: %+v", custom)
	}
}

func TestNormalizeDownloadDerivesProjectName(t *testing.T) {
	data, _ := json.Marshal(map[string]string{"name": "Jane  Doe", "email": "jane@example.com"})
	cfg := Normalize(Config{Provider: provider.Download, PortfolioData: data})
	if cfg.ProjectName != "jane-doe" {
		t.Errorf("ProjectName = %q, want jane-doe", cfg.ProjectName)
	}
	if cfg.Domain != "" {
		t.Errorf("download should have no domain, got %q", cfg.Domain)
	}

	fallback := Normalize(Config{Provider: provider.Download})
	if fallback.ProjectName != "portfolio" {
		t.Errorf("ProjectName = %q, want portfolio", fallback.ProjectName)
	}

	// Hosting providers keep the requirement.
	hosted := Normalize(Config{Provider: provider.Vercel, PortfolioData: data})
	if hosted.ProjectName != "" {
		t.Errorf("vercel must not derive a project name, got %q", hosted.ProjectName)
	}
}

func TestKey(t *testing.T) {
	cfg := Config{Provider: provider.Vercel, ProjectName: "site"}
	if cfg.Key() != "anonymous/vercel/site" {
		t.Errorf("Key() = %q", cfg.Key())
	}
	cfg.Owner = "user-1"
	if cfg.Key() != "user-1/vercel/site" {
		t.Errorf("Key() = %q", cfg.Key())
	}
}

func genProvider() gopter.Gen {
	return gen.OneConstOf(provider.Vercel, provider.Netlify, provider.GitHubPages, provider.Download)
}

func genValidProjectName() gopter.Gen {
	return gen.SliceOfN(12, gen.IntRange(0, 36)).Map(func(chars []int) string {
		b := make([]byte, len(chars))
		for i, c := range chars {
			switch {
			case c < 26:
				b[i] = byte('a' + c)
			case c < 36:
				b[i] = byte('0' + c - 26)
			default:
				b[i] = '-'
			}
		}
		return string(b)
	})
}

// genInvalidProjectName inserts a character outside [a-z0-9-] into an
// otherwise valid name.
func genInvalidProjectName() gopter.Gen {
	return gopter.CombineGens(
		genValidProjectName(),
		gen.OneConstOf("A", "Z", " ", "_", ".", "!", "/", "é"),
		gen.IntRange(0, 12),
	).Map(func(vals []interface{}) string {
		name := vals[0].(string)
		bad := vals[1].(string)
		at := vals[2].(int)
		return name[:at] + bad + name[at:]
	})
}

func TestValidateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("valid names pass for every provider", prop.ForAll(
		func(p provider.Provider, name string) bool {
			return len(Validate(Config{Provider: p, ProjectName: name})) == 0
		},
		genProvider(), genValidProjectName(),
	))

	properties.Property("invalid names are rejected and never deployed", prop.ForAll(
		func(p provider.Provider, name string) bool {
			cfg := Config{Provider: p, ProjectName: name}
			errs := Validate(cfg)
			if len(errs) == 0 {
				return false
			}
			called := false
			res := NewOrchestrator(instantExecutor()).Deploy(context.Background(), cfg, func(int, string) { called = true })
			return !res.Success && !called && strings.HasPrefix(res.Error, "Configuration errors: ")
		},
		genProvider(), genInvalidProjectName(),
	))

	properties.Property("validation is deterministic", prop.ForAll(
		func(p provider.Provider, name, domain string) bool {
			cfg := Config{Provider: p, ProjectName: name, CustomDomain: domain}
			return reflect.DeepEqual(Validate(cfg), Validate(cfg))
		},
		genProvider(), gen.AnyString(), gen.AlphaString(),
	))

	properties.TestingRun(t)
}
