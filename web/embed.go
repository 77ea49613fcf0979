// Package web embeds the chat page templates and stylesheet and serves the
// server-rendered chat page.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
)

//go:embed templates static
var assets embed.FS

// parseTemplates parses the embedded page templates.
func parseTemplates() (*template.Template, error) {
	return template.ParseFS(assets, "templates/*.html")
}

// StaticHandler returns an http.Handler that serves the embedded static
// files. Mount it under /static/.
func StaticHandler() http.Handler {
	subFS, err := fs.Sub(assets, "static")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(subFS))
	return http.StripPrefix("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f, err := subFS.Open(r.URL.Path); err == nil {
			if closeErr := f.Close(); closeErr != nil {
				slog.Debug("web: failed to close embedded file", "path", r.URL.Path, "error", closeErr)
			}
			fileServer.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	}))
}
