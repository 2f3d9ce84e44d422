package artifact

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
)

const DefaultTemplate = "modern-professional"

var ErrMissingIdentity = errors.New("artifact: portfolio name and email are required")

type Experience struct {
	Role             string   `json:"role"`
	Company          string   `json:"company"`
	Dates            string   `json:"dates"`
	Responsibilities []string `json:"responsibilities,omitempty"`
}

type Education struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Dates       string `json:"dates"`
}

type Project struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies,omitempty"`
}

// Portfolio is the profile payload a static bundle is generated from.
type Portfolio struct {
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Phone       string       `json:"phone,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	LinkedInURL string       `json:"linkedin_url,omitempty"`
	GitHubURL   string       `json:"github_url,omitempty"`
	TemplateID  string       `json:"template_id,omitempty"`
	Skills      []string     `json:"skills,omitempty"`
	Experiences []Experience `json:"experiences,omitempty"`
	Education   []Education  `json:"education,omitempty"`
	Projects    []Project    `json:"projects,omitempty"`
}

type File struct {
	Path    string
	Content []byte
}

func Decode(raw []byte) (Portfolio, error) {
	var p Portfolio
	if len(raw) == 0 {
		return p, ErrMissingIdentity
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("artifact: decode portfolio: %w", err)
	}
	return p, nil
}

// Files returns the static bundle for p. The page body is a plain profile
// summary; themed rendering happens outside this service.
func Files(p Portfolio, templateID string) ([]File, error) {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Email) == "" {
		return nil, ErrMissingIdentity
	}
	if templateID == "" {
		templateID = DefaultTemplate
	}
	p.TemplateID = templateID

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("artifact: encode portfolio: %w", err)
	}

	return []File{
		{Path: "index.html", Content: []byte(indexHTML(p))},
		{Path: "portfolio.json", Content: data},
		{Path: "README.md", Content: []byte(readme(p))},
		{Path: "robots.txt", Content: []byte("User-agent: *\nAllow: /\n")},
	}, nil
}

func indexHTML(p Portfolio) string {
	var b strings.Builder
	name := html.EscapeString(p.Name)
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"UTF-8\">\n")
	fmt.Fprintf(&b, "<title>%s - Portfolio</title>\n", name)
	fmt.Fprintf(&b, "<meta name=\"description\" content=\"%s\">\n", html.EscapeString(p.Summary))
	fmt.Fprintf(&b, "<meta name=\"template\" content=\"%s\">\n</head>\n<body>\n", html.EscapeString(p.TemplateID))
	fmt.Fprintf(&b, "<h1>%s</h1>\n<p>%s</p>\n", name, html.EscapeString(p.Summary))
	fmt.Fprintf(&b, "<p><a href=\"mailto:%s\">%s</a></p>\n", html.EscapeString(p.Email), html.EscapeString(p.Email))
	if len(p.Skills) > 0 {
		b.WriteString("<ul class=\"skills\">\n")
		for _, s := range p.Skills {
			fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(s))
		}
		b.WriteString("</ul>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

func readme(p Portfolio) string {
	return fmt.Sprintf("# %s - Portfolio\n\nStatic portfolio site. Upload these files to any static host,\nor push them to a GitHub repository and enable GitHub Pages.\n", p.Name)
}

// Zip packs files into a ZIP archive.
func Zip(files []File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Path,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("artifact: zip %s: %w", f.Path, err)
		}
		if _, err := w.Write(f.Content); err != nil {
			return nil, fmt.Errorf("artifact: zip %s: %w", f.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("artifact: zip: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName is the attachment name offered to the browser.
func FileName(p Portfolio) string {
	slug := strings.Join(strings.Fields(strings.ToLower(p.Name)), "-")
	if slug == "" {
		slug = "my"
	}
	return slug + "-portfolio.zip"
}
