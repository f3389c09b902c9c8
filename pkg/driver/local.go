package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nestlab/hutch/pkg/types"
	"gopkg.in/yaml.v3"
)

// LocalDriver resolves identifiers that are filesystem paths — a
// directory containing a hutch-index.yaml manifest and the package
// files it references. Used for offline development and for tests
// that would otherwise need network access.
type LocalDriver struct{}

// NewLocalDriver builds a LocalDriver.
func NewLocalDriver() *LocalDriver { return &LocalDriver{} }

func (l *LocalDriver) Name() string { return "local" }

func (l *LocalDriver) Compatible(identifier types.RepositoryIdentifier) bool {
	return strings.HasPrefix(identifier, "/") ||
		strings.HasPrefix(identifier, "./") ||
		strings.HasPrefix(identifier, "../")
}

func (l *LocalDriver) Exists(identifier types.RepositoryIdentifier) bool {
	_, err := os.Stat(filepath.Join(identifier, indexFileName))
	return err == nil
}

func (l *LocalDriver) FetchIndex(identifier types.RepositoryIdentifier) (*types.RepositoryIndex, error) {
	path := filepath.Join(identifier, indexFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("local driver: fetch index for %s: %w", identifier, err)
	}

	var idx types.RepositoryIndex
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("local driver: index for %s: %w: %w", identifier, types.ErrUnreadableIndex, err)
	}
	return &idx, nil
}

func (l *LocalDriver) FetchPackageFile(identifier types.RepositoryIdentifier, packageName types.PackageName, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(identifier, path))
	if err != nil {
		return nil, fmt.Errorf("local driver: fetch %s of %s: %w", path, packageName, err)
	}
	return data, nil
}
