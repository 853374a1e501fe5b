// Package data carries the schema resources deployed at startup.
package data

import (
	"embed"
)

//go:embed schemas/*.schema.json
var Schemas embed.FS
