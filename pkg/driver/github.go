package driver

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/nestlab/hutch/pkg/types"
	"gopkg.in/yaml.v3"
)

// identifierPattern matches the "owner/repo" shape GitHub identifiers
// take — exactly one slash, no scheme, no leading/trailing slash.
var identifierPattern = regexp.MustCompile(`^[\w.-]+/[\w.-]+$`)

const (
	githubAPIBase = "https://api.github.com"
	githubRawBase = "https://raw.githubusercontent.com"
	defaultRef    = "main"
	indexFileName = "hutch-index.yaml"
)

// GitHubDriver resolves "owner/repo" identifiers against GitHub's
// public repository and raw-content APIs. It is registered by default
// when no driver stub directory is configured.
type GitHubDriver struct {
	client *http.Client
	// apiBase and rawBase are overridable for testing against a
	// local httptest.Server instead of the real GitHub hosts.
	apiBase string
	rawBase string
	ref     string
}

// NewGitHubDriver builds a GitHubDriver against the real GitHub hosts.
func NewGitHubDriver() *GitHubDriver {
	return &GitHubDriver{
		client:  &http.Client{Timeout: 15 * time.Second},
		apiBase: githubAPIBase,
		rawBase: githubRawBase,
		ref:     defaultRef,
	}
}

// NewGitHubDriverWithHosts builds a GitHubDriver pointed at explicit
// API/raw hosts, used by tests to substitute an httptest.Server.
func NewGitHubDriverWithHosts(apiBase, rawBase, ref string) *GitHubDriver {
	return &GitHubDriver{
		client:  &http.Client{Timeout: 15 * time.Second},
		apiBase: apiBase,
		rawBase: rawBase,
		ref:     ref,
	}
}

func (g *GitHubDriver) Name() string { return "github" }

func (g *GitHubDriver) Compatible(identifier types.RepositoryIdentifier) bool {
	return identifierPattern.MatchString(identifier)
}

func (g *GitHubDriver) Exists(identifier types.RepositoryIdentifier) bool {
	url := fmt.Sprintf("%s/repos/%s", g.apiBase, identifier)
	resp, err := g.client.Get(url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (g *GitHubDriver) FetchIndex(identifier types.RepositoryIdentifier) (*types.RepositoryIndex, error) {
	url := fmt.Sprintf("%s/%s/%s/%s", g.rawBase, identifier, g.ref, indexFileName)
	resp, err := g.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("github driver: fetch index for %s: %w", identifier, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github driver: fetch index for %s: status %d", identifier, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("github driver: read index body for %s: %w", identifier, err)
	}

	var idx types.RepositoryIndex
	if err := yaml.Unmarshal(body, &idx); err != nil {
		return nil, fmt.Errorf("github driver: index for %s: %w: %w", identifier, types.ErrUnreadableIndex, err)
	}
	return &idx, nil
}

func (g *GitHubDriver) FetchPackageFile(identifier types.RepositoryIdentifier, packageName types.PackageName, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/%s/%s", g.rawBase, identifier, g.ref, path)
	resp, err := g.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("github driver: fetch %s of %s: %w", path, packageName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github driver: fetch %s of %s: status %d", path, packageName, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("github driver: read %s of %s: %w", path, packageName, err)
	}
	return body, nil
}
