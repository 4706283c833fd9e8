package terminal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	tmpl := Template{Source: "%1|%2|%3|%4|%5|%1", BaseURL: "file:///srv/page"}

	got := tmpl.Render(PageParams{Port: 5123, Theme: ThemeDark, FontSize: "15", Directory: "/home/me"})
	assert.Equal(t, "5123|file:///srv/page|dark|15|/home/me|5123", got)

	got = tmpl.Render(PageParams{Port: 1, BaseURL: "http://cdn", Theme: ThemeLight, FontSize: "9", Directory: "/"})
	assert.Equal(t, "1|http://cdn|light|9|/|1", got)
}

func TestRenderIsSinglePass(t *testing.T) {
	tmpl := Template{Source: "<title>%5</title><b>%4</b>"}
	got := tmpl.Render(PageParams{Directory: "/tmp/%4", FontSize: "12"})
	assert.Equal(t, "<title>/tmp/%4</title><b>12</b>", got)
}

func TestRenderEscapesValues(t *testing.T) {
	tmpl := Template{Source: `<div data-directory="%5"></div>`}
	got := tmpl.Render(PageParams{Directory: `/tmp/"a"&<b>`})
	assert.Equal(t, `<div data-directory="/tmp/&#34;a&#34;&amp;&lt;b&gt;"></div>`, got)
}

func TestDefaultTemplate(t *testing.T) {
	tmpl := DefaultTemplate("https://cdn.example/xterm/")
	assert.Equal(t, "https://cdn.example/xterm", tmpl.BaseURL)

	page := tmpl.Render(PageParams{Port: 7000, Theme: ThemeDark, FontSize: "14", Directory: "/work"})
	assert.Contains(t, page, `data-port="7000"`)
	assert.Contains(t, page, `data-directory="/work"`)
	assert.Contains(t, page, `<title>/work</title>`)
	assert.Contains(t, page, `href="https://cdn.example/xterm/css/xterm.css"`)
	assert.Contains(t, page, `<body class="dark">`)
	assert.Contains(t, page, "__webterm_dispatch")
	assert.NotRegexp(t, `%[1-5]`, page)
}

func TestLoadTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(path, []byte("<title>%5</title>"), 0o644))

	tmpl, err := LoadTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, "<title>%5</title>", tmpl.Source)
	assert.True(t, strings.HasPrefix(tmpl.BaseURL, "file://"))
	assert.Equal(t, "file://"+dir, tmpl.BaseURL)

	_, err = LoadTemplate(filepath.Join(dir, "nope.html"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
