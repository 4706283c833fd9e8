package terminal

import (
	_ "embed"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

//go:embed assets/index.html
var defaultTemplate string

// Template is the front-end page with five positional placeholders:
// %1 port, %2 base resource URL, %3 theme, %4 font size, %5 start
// directory.
type Template struct {
	Source string
	// BaseURL is substituted for %2 unless PageParams overrides it.
	BaseURL string
}

// DefaultTemplate returns the built-in page.
func DefaultTemplate(assetsURL string) Template {
	return Template{Source: defaultTemplate, BaseURL: strings.TrimSuffix(assetsURL, "/")}
}

// LoadTemplate reads the page at path. Its base URL is the file URL of
// the directory holding it.
func LoadTemplate(path string) (Template, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Template{}, fmt.Errorf("resolve template path %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return Template{}, fmt.Errorf("read page template: %w", err)
	}
	return Template{Source: string(data), BaseURL: "file://" + filepath.Dir(abs)}, nil
}

// PageParams are the values substituted into a Template.
type PageParams struct {
	Port      int
	BaseURL   string
	Theme     Theme
	FontSize  string
	Directory string
}

// Render substitutes the placeholders. Values are HTML-escaped, so the
// template may use them in text and attribute positions only. Each
// placeholder is replaced in one pass, so a value containing "%N" is
// never substituted again.
func (t Template) Render(p PageParams) string {
	base := p.BaseURL
	if base == "" {
		base = t.BaseURL
	}
	r := strings.NewReplacer(
		"%1", strconv.Itoa(p.Port),
		"%2", html.EscapeString(base),
		"%3", html.EscapeString(string(p.Theme)),
		"%4", html.EscapeString(p.FontSize),
		"%5", html.EscapeString(p.Directory),
	)
	return r.Replace(t.Source)
}
