// assets/embed.go
//
// Files compiled into the binary: the default level catalog and the SQL
// migrations applied at startup.

package assets

import (
	"embed"
	"io/fs"
)

//go:embed levels.yaml migrations/*.sql
var FS embed.FS

// LevelsYAML returns the embedded default catalog.
func LevelsYAML() ([]byte, error) {
	return FS.ReadFile("levels.yaml")
}

// Migrations returns the migrations directory as its own filesystem root.
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "migrations")
	if err != nil {
		// the directory is embedded above; Sub only fails on a bad pattern
		panic(err)
	}
	return sub
}
