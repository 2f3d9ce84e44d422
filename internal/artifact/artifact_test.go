package artifact

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFiles(t *testing.T) {
	p := Portfolio{
		Name:    "Jane <Doe>",
		Email:   "jane@example.com",
		Summary: "Engineer",
		Skills:  []string{"Go", "SQL"},
	}
	files, err := Files(p, "")
	if err != nil {
		t.Fatal(err)
	}

	byPath := map[string]string{}
	for _, f := range files {
		byPath[f.Path] = string(f.Content)
	}
	for _, want := range []string{"index.html", "portfolio.json", "README.md", "robots.txt"} {
		if _, ok := byPath[want]; !ok {
			t.Errorf("missing %s", want)
		}
	}
	index := byPath["index.html"]
	if !strings.Contains(index, "Jane &lt;Doe&gt;") || strings.Contains(index, "<Doe>") {
		t.Errorf("name not escaped: %s", index)
	}
	if !strings.Contains(index, "<li>Go</li>") {
		t.Errorf("skills missing: %s", index)
	}
	if !strings.Contains(byPath["portfolio.json"], `"template_id": "modern-professional"`) {
		t.Errorf("template not recorded: %s", byPath["portfolio.json"])
	}
}

func TestFilesRequiresIdentity(t *testing.T) {
	for _, p := range []Portfolio{{Name: "Jane"}, {Email: "jane@example.com"}, {}} {
		if _, err := Files(p, ""); !errors.Is(err, ErrMissingIdentity) {
			t.Errorf("Files(%+v) err = %v", p, err)
		}
	}
}

func TestDecode(t *testing.T) {
	p, err := Decode([]byte(`{"name":"Jane","email":"j@example.com","skills":["Go"]}`))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Jane" || len(p.Skills) != 1 {
		t.Errorf("decoded %+v", p)
	}
	if _, err := Decode(nil); !errors.Is(err, ErrMissingIdentity) {
		t.Errorf("empty payload err = %v", err)
	}
	if _, err := Decode([]byte("{")); err == nil {
		t.Error("expected decode error")
	}
}

func TestZip(t *testing.T) {
	files := []File{
		{Path: "index.html", Content: []byte("<html></html>")},
		{Path: "robots.txt", Content: []byte("User-agent: *\n")},
	}
	data, err := Zip(files)
	if err != nil {
		t.Fatal(err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("got %d entries", len(zr.File))
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if zr.File[0].Name != "index.html" || string(body) != "<html></html>" {
		t.Errorf("entry 0 = %s %q", zr.File[0].Name, body)
	}
}

func TestFileName(t *testing.T) {
	if got := FileName(Portfolio{Name: "Jane  Mary Doe"}); got != "jane-mary-doe-portfolio.zip" {
		t.Errorf("FileName = %q", got)
	}
	if got := FileName(Portfolio{}); got != "my-portfolio.zip" {
		t.Errorf("FileName = %q", got)
	}
}
