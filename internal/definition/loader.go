package definition

import (
	"context"
	"io/fs"
)

// Resource is one raw schema document resolved by the loader.
type Resource struct {
	Name string
	Raw  []byte
}

// ResourceLoader resolves a logical resource pattern to a set of raw schema
// documents for DeployAll.
type ResourceLoader interface {
	Load(ctx context.Context) ([]Resource, error)
}

// FSLoader loads schema resources matching a glob from any fs.FS, typically
// the embedded data filesystem.
type FSLoader struct {
	FS   fs.FS
	Glob string
}

// Load resolves the glob and reads every match.
func (l FSLoader) Load(ctx context.Context) ([]Resource, error) {
	pattern := l.Glob
	if pattern == "" {
		pattern = "*.schema.json"
	}
	matches, err := fs.Glob(l.FS, pattern)
	if err != nil {
		return nil, err
	}
	resources := make([]Resource, 0, len(matches))
	for _, name := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := fs.ReadFile(l.FS, name)
		if err != nil {
			return nil, err
		}
		resources = append(resources, Resource{Name: name, Raw: raw})
	}
	return resources, nil
}
