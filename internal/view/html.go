package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page is the data handed to the HTML templates.
type Page struct {
	Version   string
	BuildTime string
	Viewer    string
	State     string
	SyncedAt  time.Time
	Owned     []Node
	Public    []Node
	Error     string

	ShowDocs   bool
	DocList    []string
	DocContent template.HTML
	CurrentDoc string
}

// Templates holds the parsed page and fragment templates.
type Templates struct {
	t *template.Template
}

// ParseTemplates parses the embedded templates.
func ParseTemplates() (*Templates, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"shortAccount": ShortAccount,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Templates{t: t}, nil
}

// Page writes the full page.
func (t *Templates) Page(w io.Writer, p Page) error {
	return t.t.ExecuteTemplate(w, "layout.html", p)
}

// Fragment writes a single named block such as "market-view",
// "account-badge" or "docs-view".
func (t *Templates) Fragment(w io.Writer, name string, p Page) error {
	return t.t.ExecuteTemplate(w, name, p)
}

// ShortAccount abbreviates an account identifier for the header badge.
func ShortAccount(account string) string {
	if len(account) <= 12 {
		return account
	}
	return account[:6] + "…" + account[len(account)-4:]
}
