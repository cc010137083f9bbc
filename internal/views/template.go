package views

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
)

// TemplateFS is the filesystem templates are parsed from. It is rooted at
// the templates directory (layouts/, partials/, pages/).
var TemplateFS fs.FS

// Template wraps a parsed template with helper methods for rendering.
type Template struct {
	tmpl *template.Template
}

// TemplateData is the standard data structure passed to all templates.
type TemplateData struct {
	// CSRF hidden input for forms
	CSRFField template.HTML

	// Flash messages
	Error   string
	Success string
	Info    string

	// Page-specific data
	Data interface{}

	Title       string
	Description string

	// Request info
	CurrentPath string

	IsDevelopment bool
}

// DefaultFuncMap returns the functions available in all templates.
func DefaultFuncMap() template.FuncMap {
	return template.FuncMap{
		"truncate": truncate,
		"join":     strings.Join,

		"formatBytes": formatBytes,

		// result panel styling
		"resultClass": resultClass,

		// preview <img> source
		"dataURL": dataURL,

		"default": defaultValue,
	}
}

// ParseFS parses the base layout, every partial and then the requested
// pages, in that order. Pages define "content" (and optionally "head").
func ParseFS(patterns ...string) (*Template, error) {
	if TemplateFS == nil {
		return nil, fmt.Errorf("views.TemplateFS is not set")
	}

	tmpl := template.New("").Funcs(DefaultFuncMap())

	basePath := "layouts/base.gohtml"
	baseContent, err := fs.ReadFile(TemplateFS, basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read base template: %w", err)
	}

	tmpl, err = tmpl.Parse(string(baseContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}

	partialMatches, err := fs.Glob(TemplateFS, "partials/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("failed to glob partials: %w", err)
	}

	for _, match := range partialMatches {
		content, err := fs.ReadFile(TemplateFS, match)
		if err != nil {
			return nil, fmt.Errorf("failed to read partial %s: %w", match, err)
		}

		tmpl, err = tmpl.Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse partial %s: %w", match, err)
		}
	}

	for _, pattern := range patterns {
		content, err := fs.ReadFile(TemplateFS, pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", pattern, err)
		}

		tmpl, err = tmpl.Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", pattern, err)
		}
	}

	return &Template{tmpl: tmpl}, nil
}

// MustParseFS is like ParseFS but panics on error.
// Use this during initialization when templates must be valid.
func MustParseFS(patterns ...string) *Template {
	tmpl, err := ParseFS(patterns...)
	if err != nil {
		panic(fmt.Sprintf("failed to parse templates: %v", err))
	}
	return tmpl
}

// Execute renders the template to the given writer with the provided data.
func (t *Template) Execute(w io.Writer, data *TemplateData) error {
	return t.tmpl.ExecuteTemplate(w, "base", data)
}

// ExecuteHTTP renders the template as a 200 response.
func (t *Template) ExecuteHTTP(w http.ResponseWriter, r *http.Request, data *TemplateData) {
	t.ExecuteHTTPWithStatus(w, r, http.StatusOK, data)
}

// ExecuteHTTPWithStatus renders to a buffer first so a template error turns
// into a clean 500 instead of a half-written page.
func (t *Template) ExecuteHTTPWithStatus(w http.ResponseWriter, r *http.Request, status int, data *TemplateData) {
	if data != nil {
		data.CurrentPath = r.URL.Path
	}

	buf := &bytes.Buffer{}
	err := t.Execute(buf, data)
	if err != nil {
		slog.ErrorContext(r.Context(), "template execution error", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// Template function implementations

func truncate(s string, length int) string {
	if len(s) <= length || length < 4 {
		return s
	}
	return s[:length-3] + "..."
}

func formatBytes(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}

func resultClass(success bool) string {
	if success {
		return "bg-green-50"
	}
	return "bg-red-50"
}

// dataURL trusts only base64 data URLs. html/template would otherwise
// replace any data: URL with #ZgotmplZ.
func dataURL(s string) template.URL {
	if strings.HasPrefix(s, "data:") && strings.Contains(s, ";base64,") {
		return template.URL(s)
	}
	return template.URL("#")
}

func defaultValue(value, defaultVal interface{}) interface{} {
	if value == nil || value == "" || value == 0 {
		return defaultVal
	}
	return value
}
