// Package web embeds the dashboard single-page application.
package web

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed public
var embedded embed.FS

// IndexFile is the SPA shell served for unknown paths.
const IndexFile = "index.html"

// Public returns the front-end files: dir when set, the embedded copy otherwise.
func Public(dir string) (fs.FS, error) {
	if dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
		return os.DirFS(dir), nil
	}
	return fs.Sub(embedded, "public")
}
