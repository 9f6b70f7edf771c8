// Package reference parses user-supplied repository URLs.
package reference

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/temirov/reposum/internal/types"
)

const (
	githubHost        = "github.com"
	githubHostWWW     = "www.github.com"
	schemeHTTPS       = "https"
	schemeHTTP        = "http"
	gitSuffix         = ".git"
	treeSegment       = "tree"
	schemeSeparator   = "://"
	pathSeparator     = "/"
	minimumPathLength = 2
)

// ErrInvalidReference is returned for anything that is not a GitHub repository URL.
var ErrInvalidReference = errors.New("invalid GitHub repository URL")

var (
	ownerPattern      = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)
	repositoryPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)
)

// Parse converts a GitHub URL such as https://github.com/owner/repo into a reference.
// A /tree/<ref> suffix selects that ref; other trailing segments are ignored.
func Parse(raw string) (types.RepositoryReference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return types.RepositoryReference{}, fmt.Errorf("%w: value is empty", ErrInvalidReference)
	}
	if !strings.Contains(trimmed, schemeSeparator) {
		trimmed = schemeHTTPS + schemeSeparator + trimmed
	}
	parsed, parseErr := url.Parse(trimmed)
	if parseErr != nil {
		return types.RepositoryReference{}, fmt.Errorf("%w: %v", ErrInvalidReference, parseErr)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != schemeHTTPS && scheme != schemeHTTP {
		return types.RepositoryReference{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidReference, parsed.Scheme)
	}
	host := strings.ToLower(parsed.Hostname())
	if host != githubHost && host != githubHostWWW {
		return types.RepositoryReference{}, fmt.Errorf("%w: host must be %s", ErrInvalidReference, githubHost)
	}

	segments := splitSegments(parsed.Path)
	if len(segments) < minimumPathLength {
		return types.RepositoryReference{}, fmt.Errorf("%w: expected https://github.com/<owner>/<repo>", ErrInvalidReference)
	}
	owner := segments[0]
	name := strings.TrimSuffix(segments[1], gitSuffix)
	if !ownerPattern.MatchString(owner) {
		return types.RepositoryReference{}, fmt.Errorf("%w: invalid owner %q", ErrInvalidReference, owner)
	}
	if !repositoryPattern.MatchString(name) || name == "." || name == ".." {
		return types.RepositoryReference{}, fmt.Errorf("%w: invalid repository name %q", ErrInvalidReference, name)
	}

	reference := types.RepositoryReference{Owner: owner, Name: name}
	if len(segments) > 3 && segments[2] == treeSegment {
		reference.Ref = segments[3]
	}
	return reference, nil
}

func splitSegments(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, pathSeparator) {
		if segment == "" {
			continue
		}
		segments = append(segments, segment)
	}
	return segments
}
