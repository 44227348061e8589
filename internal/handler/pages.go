// Package handler contains the HTTP request handlers for the relay.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements the http.Handler interface:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Or more commonly, we use http.HandlerFunc — a function with the right signature
// that automatically satisfies the Handler interface. Chi's router accepts these directly.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (query params, body, URL params)
// 2. Call the service layer
// 3. Write the HTTP response (status code, headers, body)
//
// Handlers should NOT contain business logic — they are the "glue" between HTTP and the services.
package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

// EMBEDDED TEMPLATES:
// go:embed compiles the HTML files into the binary, so the server runs from any
// working directory without shipping a templates/ folder next to it.
//
//go:embed templates/*.html
var templateFS embed.FS

// Page names. Each one is parsed together with base.html.
const (
	pageLogin   = "login.html"
	pageSuccess = "success.html"
	pageError   = "error.html"
)

// Pages holds one parsed template set per page.
//
// TEMPLATE COMPOSITION:
// base.html defines the page skeleton with {{template "content" .}} and optional
// "head" and "scripts" blocks. Every page file fills those in with {{define}}.
// Because every page defines "content", each page gets its own template set.
type Pages struct {
	templates map[string]*template.Template
	logger    *slog.Logger
}

// NewPages parses every page template once at startup.
func NewPages(logger *slog.Logger) (*Pages, error) {
	p := &Pages{templates: map[string]*template.Template{}, logger: logger}
	for _, page := range []string{pageLogin, pageSuccess, pageError} {
		tmpl, err := template.New("base").ParseFS(templateFS, "templates/base.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s: %w", page, err)
		}
		p.templates[page] = tmpl
	}
	return p, nil
}

// loginPage is the data for login.html.
type loginPage struct {
	Title        string
	AppID        string
	CallbackPath string
}

// successPage is the data for success.html.
type successPage struct {
	Title          string
	Handle         string
	Avatar         string
	TokensReceived bool
}

// errorPage is the data for error.html.
type errorPage struct {
	Title    string
	Heading  string
	Message  string
	LinkHref string
	LinkText string
}

// render executes page into a buffer first, so a template error can still
// produce a clean 500 instead of a half-written page.
func (p *Pages) render(w http.ResponseWriter, status int, page string, data any) {
	tmpl, ok := p.templates[page]
	if !ok {
		p.logger.Error("unknown page template", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		p.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
