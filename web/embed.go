package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed templates
var TemplatesFS embed.FS

//go:embed static
var StaticFS embed.FS

// Renderer holds one template set per page, each parsed together with the
// base layout so every page can define its own blocks.
type Renderer struct {
	pages map[string]*template.Template
}

func LoadTemplates() (*Renderer, error) {
	baseContent, err := fs.ReadFile(TemplatesFS, "templates/layouts/base.html")
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(TemplatesFS, "templates/pages")
	if err != nil {
		return nil, err
	}

	renderer := &Renderer{pages: make(map[string]*template.Template, len(entries))}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}
		pageContent, err := fs.ReadFile(TemplatesFS, "templates/pages/"+entry.Name())
		if err != nil {
			return nil, err
		}
		page, err := template.New("base").Parse(string(baseContent))
		if err != nil {
			return nil, fmt.Errorf("parse layout: %w", err)
		}
		if _, err := page.Parse(string(pageContent)); err != nil {
			return nil, fmt.Errorf("parse %s: %w", entry.Name(), err)
		}
		renderer.pages[strings.TrimSuffix(entry.Name(), ".html")] = page
	}
	return renderer, nil
}

func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	page, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return page.ExecuteTemplate(w, "base", data)
}

func GetStaticFS() (fs.FS, error) {
	return fs.Sub(StaticFS, "static")
}
