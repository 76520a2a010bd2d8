package main

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"

	"github.com/myrjola/noir/internal/contexthelpers"
	"github.com/myrjola/noir/internal/errors"
	"github.com/myrjola/noir/internal/models"
	"github.com/myrjola/noir/ui"
)

type BaseTemplateData struct {
	Authenticated bool
	Flash         string
	CSRFToken     string
}

func (app *application) newBaseTemplateData(r *http.Request) BaseTemplateData {
	ctx := r.Context()
	return BaseTemplateData{
		Authenticated: contexthelpers.IsAuthenticated(ctx),
		Flash:         app.popFlash(ctx),
		CSRFToken:     contexthelpers.CSRFToken(ctx),
	}
}

// templateCache holds one parsed template set per page.
type templateCache struct {
	pages map[string]*template.Template
}

// templateFuncs are placeholders so that the templates parse. The request specific ones are overridden in render.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"nonce": func() template.HTMLAttr {
			panic("not implemented")
		},
		"csrf": func() template.HTML {
			panic("not implemented")
		},
		"statusLabel": func(s models.SuspectStatus) string {
			switch s {
			case models.SuspectDead:
				return "Deceased"
			case models.SuspectArrested:
				return "In custody"
			case models.SuspectAlive:
				return "At large"
			default:
				return string(s)
			}
		},
		"caseStatusLabel": func(s models.CaseStatus) string {
			if s == models.CaseStatusSolved {
				return "Solved"
			}
			return "Open"
		},
		"inc": func(i int) int {
			return i + 1
		},
	}
}

// newTemplateCache parses the page templates from the embedded ui files.
//
// Each directory inside templates/pages is a page. It has to include a template named "page" that the base template
// renders.
func newTemplateCache() (*templateCache, error) {
	pageDirs, err := fs.Glob(ui.Files, "templates/pages/*")
	if err != nil {
		return nil, errors.Wrap(err, "glob page directories")
	}

	pages := make(map[string]*template.Template, len(pageDirs))
	for _, dir := range pageDirs {
		name := path.Base(dir)
		patterns := []string{
			"templates/base.gohtml",
			"templates/partials/*.gohtml",
			fmt.Sprintf("templates/pages/%s/*.gohtml", name),
		}
		var t *template.Template
		if t, err = template.New(name).Funcs(templateFuncs()).ParseFS(ui.Files, patterns...); err != nil {
			return nil, errors.Wrap(err, "parse page template", slog.String("page", name))
		}
		pages[name] = t
	}
	return &templateCache{pages: pages}, nil
}

// render writes the page wrapped in the base layout.
func (app *application) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	app.renderTemplate(w, r, status, page, "base", data)
}

// renderTemplate writes a single named template of the page. It's used for htmx partial responses.
func (app *application) renderTemplate(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	page string,
	name string,
	data any,
) {
	var (
		err error
		t   *template.Template
	)

	cached, ok := app.templates.pages[page]
	if !ok {
		app.serverError(w, r, errors.New("page template not found", slog.String("template", page)))
		return
	}
	// Cloning lets the request specific functions be bound without racing other requests.
	if t, err = cached.Clone(); err != nil {
		app.serverError(w, r, errors.Wrap(err, "clone template", slog.String("template", page)))
		return
	}

	buf := new(bytes.Buffer)
	ctx := r.Context()
	nonce := fmt.Sprintf("nonce=\"%s\"", contexthelpers.CSPNonce(ctx))
	csrf := fmt.Sprintf("<input type=\"hidden\" name=\"csrf_token\" value=\"%s\"/>",
		template.HTMLEscapeString(contexthelpers.CSRFToken(ctx)))
	t.Funcs(template.FuncMap{
		"nonce": func() template.HTMLAttr {
			return template.HTMLAttr(nonce) //nolint:gosec // we trust the nonce since it's not provided by user.
		},
		"csrf": func() template.HTML {
			return template.HTML(csrf) //nolint:gosec // we trust the csrf since it's not provided by user.
		},
	})
	if err = t.ExecuteTemplate(buf, name, data); err != nil {
		app.serverError(w, r, errors.Wrap(err, "execute template",
			slog.String("template", page), slog.String("name", name)))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	_, _ = buf.WriteTo(w)
}
