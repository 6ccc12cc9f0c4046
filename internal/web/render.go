package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"mindmix/internal/models"
	"mindmix/internal/prompts"
	"mindmix/internal/qa"
)

//go:embed templates/*.html
var templateFS embed.FS

// Flash is a one-off message shown at the top of a page
type Flash struct {
	Kind    string // info, success, warning, error
	Message string
}

// GatePage is the login/sign-up page
type GatePage struct {
	Lang      string
	Languages []Language
	Text      Text
	Mode      string // login, signup, oauth
	Email     string
	OAuthURL  string
	Flashes   []Flash
}

// AppPage is the Q&A page shown to signed-in users
type AppPage struct {
	Lang           string
	Languages      []Language
	Text           Text
	Email          string
	Subjects       []prompts.Subject
	Subject        string
	Task           string
	Question       string
	AnswerLanguage string
	Answer         *qa.Answer
	Usage          *qa.Usage
	History        []models.HistoryRecord
	Flashes        []Flash
}

// CallbackPage moves OAuth tokens from the URL fragment into the query
type CallbackPage struct {
	Lang    string
	Text    Text
	Flashes []Flash
}

// Renderer executes the embedded page templates
type Renderer struct {
	templates map[string]*template.Template
}

var funcs = template.FuncMap{
	"tasksOf": func(subjects []prompts.Subject, name string) []prompts.Task {
		for _, s := range subjects {
			if s.Name == name {
				return s.Tasks
			}
		}
		return nil
	},
}

// NewRenderer parses every page together with the shared layout
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template)}
	for _, page := range []string{"gate", "app", "callback"} {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", page, err)
		}
		r.templates[page] = tmpl
	}
	return r, nil
}

// Render writes the named page with the given status
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data interface{}) error {
	tmpl, ok := r.templates[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := io.Copy(w, &buf)
	return err
}
