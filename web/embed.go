// Package web embeds the HTML templates and static assets served by the
// stockbrief API server.
//
// Usage in the API server:
//
//	import "github.com/seenimoa/stockbrief/web"
//	tmpl := web.Templates()  // parsed templates/*.html
//	fs := web.StaticFS()     // io/fs.FS rooted at static/
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"log"
)

//go:embed templates/*.html
var templates embed.FS

//go:embed static
var static embed.FS

// IndexTemplate is the name of the analysis page template.
const IndexTemplate = "index.html"

// Templates parses the embedded page templates. It panics on a malformed
// template, which can only happen at build time.
func Templates() *template.Template {
	return template.Must(template.ParseFS(templates, "templates/*.html"))
}

// StaticFS returns a filesystem rooted at the embedded static/ directory.
// This is ready to use with http.FileServerFS or http.FS.
func StaticFS() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		log.Fatalf("web.StaticFS: %v", err)
	}
	return sub
}
