// Package driver provides the pluggable repository backends hutch
// fetches indexes and package files through. A driver exposes exactly
// four read-only operations; the registry picks the first registered
// driver compatible with a given identifier.
package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nestlab/hutch/pkg/types"
)

// Driver is an opaque provider of repository data. Implementations
// must be safe to call repeatedly; hutch never mutates what a driver
// returns without first cloning it.
type Driver interface {
	// Name identifies the driver for logging, metrics, and the
	// RepositoryIndex.Driver stamp.
	Name() string

	// Compatible reports whether this driver knows how to interpret
	// identifier's syntax. It does not imply the repository exists.
	Compatible(identifier types.RepositoryIdentifier) bool

	// Exists reports whether identifier actually resolves to a
	// reachable repository.
	Exists(identifier types.RepositoryIdentifier) bool

	// FetchIndex retrieves and parses the repository's index.
	FetchIndex(identifier types.RepositoryIdentifier) (*types.RepositoryIndex, error)

	// FetchPackageFile retrieves the raw bytes of one file belonging
	// to packageName within identifier's index, at the given path.
	FetchPackageFile(identifier types.RepositoryIdentifier, packageName types.PackageName, path string) ([]byte, error)
}

// Registry holds the drivers known to this process, in registration
// order.
type Registry struct {
	drivers []Driver
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends d to the registry. Later registrations are only
// consulted after every earlier one has been checked for
// compatibility, so registration order acts as the tie-break.
func (r *Registry) Register(d Driver) {
	r.drivers = append(r.drivers, d)
}

// SelectFor returns the first registered driver compatible with
// identifier, or nil if none is.
func (r *Registry) SelectFor(identifier types.RepositoryIdentifier) Driver {
	for _, d := range r.drivers {
		if d.Compatible(identifier) {
			return d
		}
	}
	return nil
}

// All returns every registered driver, in registration order.
func (r *Registry) All() []Driver {
	return append([]Driver(nil), r.drivers...)
}

// ByName returns the registered driver with the given name, or nil if
// none matches. Used to resolve a cached RepositoryIndex.Driver stamp
// back to a live driver without re-running compatibility checks.
func (r *Registry) ByName(name string) Driver {
	for _, d := range r.drivers {
		if d.Name() == name {
			return d
		}
	}
	return nil
}

// Discover builds a Registry from YAML stub files in dir: one
// "<driver-name>.yaml" file per driver to enable, its contents
// forwarded to build for driver-specific configuration (a base path
// for a LocalDriver, an API host override for a GitHubDriver, etc).
// If dir doesn't exist or yields no usable entries, the registry
// falls back to a single default driver named "github".
func Discover(dir string, build func(name string, config []byte) (Driver, error)) (*Registry, error) {
	reg := NewRegistry()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			reg.Register(NewGitHubDriver())
			return reg, nil
		}
		return nil, fmt.Errorf("driver: discover %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		driverName := strings.TrimSuffix(name, ext)

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("driver: read %s: %w", name, err)
		}

		d, err := build(driverName, data)
		if err != nil {
			return nil, fmt.Errorf("driver: build %q: %w", driverName, err)
		}
		reg.Register(d)
	}

	if len(reg.drivers) == 0 {
		reg.Register(NewGitHubDriver())
	}
	return reg, nil
}
