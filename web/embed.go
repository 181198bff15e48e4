// Package web embeds the page templates and static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Templates returns the HTML templates rooted at their directory.
func Templates() fs.FS {
	return sub(templateFS, "templates")
}

// Static returns the static assets rooted at their directory.
func Static() fs.FS {
	return sub(staticFS, "static")
}

func sub(fsys fs.FS, dir string) fs.FS {
	s, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return s
}
