// Package web holds the embedded HTML templates and static assets served
// by the gateway.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html static/*
var content embed.FS

// Templates parses the embedded HTML templates.
func Templates() (*template.Template, error) {
	t, err := template.ParseFS(content, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing embedded templates: %w", err)
	}
	return t, nil
}

// StaticHandler serves the embedded static assets under /static/.
func StaticHandler() (http.Handler, error) {
	sub, err := fs.Sub(content, "static")
	if err != nil {
		return nil, fmt.Errorf("loading embedded static assets: %w", err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub))), nil
}
