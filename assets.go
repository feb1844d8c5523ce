// Package studentdash embeds the dashboard's templates and static files.
// Dev mode reads both from disk instead so edits show up without a rebuild.
package studentdash

import (
	"embed"
	"io/fs"
)

//go:embed all:frontend/static all:frontend/templates
var frontend embed.FS

// Sub returns the embedded tree rooted at dir, such as "frontend/static".
func Sub(dir string) (fs.FS, error) {
	return fs.Sub(frontend, dir)
}
