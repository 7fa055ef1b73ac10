// Package push describes pushes to a repository, and the tests over
// them that decide which goals a push gets.
package push

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/ryanuber/go-glob"
	giturls "github.com/whilp/git-urls"
)

// RepoRef identifies a repository, and optionally a commit in it.
type RepoRef struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Branch string `json:"branch,omitempty"`
	SHA    string `json:"sha,omitempty"`
	// URL is where the repository can be cloned from
	URL string `json:"url,omitempty"`
}

func (r RepoRef) String() string {
	s := r.Owner + "/" + r.Repo
	if r.SHA != "" {
		s = s + "@" + r.SHA
	}
	return s
}

// SafeURL is the clone URL with any password removed, for logging.
func (r RepoRef) SafeURL() string {
	if r.URL == "" {
		return ""
	}
	u, err := giturls.Parse(r.URL)
	if err != nil {
		return "<unparseable URL>"
	}
	if u.User != nil {
		u.User = nil
	}
	return u.String()
}

// Credentials gives whatever secret is embedded in the clone URL: the
// password, or the username when it is a bare token.
func (r RepoRef) Credentials() []string {
	u, err := giturls.Parse(r.URL)
	if err != nil || u.User == nil {
		return nil
	}
	if password, ok := u.User.Password(); ok {
		return []string{password}
	}
	if u.Scheme == "https" || u.Scheme == "http" {
		return []string{u.User.Username()}
	}
	return nil
}

// Event is a push to a repository.
type Event struct {
	Repo    RepoRef `json:"repo"`
	Message string  `json:"message,omitempty"`
}

// Validate checks the event names a repository, filling in the owner
// and repo from the clone URL where they are missing.
func (e *Event) Validate() error {
	if (e.Repo.Owner == "" || e.Repo.Repo == "") && e.Repo.URL != "" {
		owner, repo, err := FromCloneURL(e.Repo.URL)
		if err != nil {
			return err
		}
		if e.Repo.Owner == "" {
			e.Repo.Owner = owner
		}
		if e.Repo.Repo == "" {
			e.Repo.Repo = repo
		}
	}
	if e.Repo.Owner == "" || e.Repo.Repo == "" {
		return errors.New("push does not name a repository owner and name")
	}
	return nil
}

// FromCloneURL extracts the owner and repository name from a git URL
// of any of the usual forms, e.g., `git@github.com:owner/repo.git` or
// `https://github.com/owner/repo`.
func FromCloneURL(url string) (owner, repo string, err error) {
	u, err := giturls.Parse(url)
	if err != nil {
		return "", "", errors.New("clone URL could not be parsed")
	}
	u.User = nil
	path := strings.TrimSuffix(strings.Trim(u.Path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", errors.Errorf("clone URL %q does not have an owner/repo path", u.String())
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}

// Test is a named predicate over pushes.
type Test struct {
	Name      string
	Predicate func(Event) bool
}

func (t Test) Matches(e Event) bool {
	return t.Predicate(e)
}

// RepoIs matches pushes to exactly the repository given.
func RepoIs(owner, repo string) Test {
	return Test{
		Name: fmt.Sprintf("repo is %s/%s", owner, repo),
		Predicate: func(e Event) bool {
			return e.Repo.Owner == owner && e.Repo.Repo == repo
		},
	}
}

// RepoMatches matches pushes to repositories whose owner and name
// match the glob patterns given, e.g., `looking-for-*` and `*-sdm`.
func RepoMatches(ownerGlob, repoGlob string) Test {
	return Test{
		Name: fmt.Sprintf("repo matches %s/%s", ownerGlob, repoGlob),
		Predicate: func(e Event) bool {
			return glob.Glob(ownerGlob, e.Repo.Owner) && glob.Glob(repoGlob, e.Repo.Repo)
		},
	}
}

// Named gives a test a name that is more meaningful than the one it
// was made with.
func Named(name string, t Test) Test {
	return Test{Name: name, Predicate: t.Predicate}
}

// AllSatisfied is a test that passes when every test given passes.
func AllSatisfied(tests ...Test) Test {
	names := make([]string, len(tests))
	for i := range tests {
		names[i] = tests[i].Name
	}
	return Test{
		Name: strings.Join(names, " and "),
		Predicate: func(e Event) bool {
			for _, t := range tests {
				if !t.Matches(e) {
					return false
				}
			}
			return true
		},
	}
}
