package push

import (
	"strings"

	"github.com/google/go-github/v28/github"
)

const branchRefPrefix = "refs/heads/"

// FromGitHub makes an Event from a GitHub push webhook payload. It
// reports false for pushes that should not trigger anything: tag
// pushes and branch deletions.
func FromGitHub(p *github.PushEvent) (Event, bool) {
	if p == nil || p.GetDeleted() || !strings.HasPrefix(p.GetRef(), branchRefPrefix) {
		return Event{}, false
	}
	repo := p.GetRepo()
	owner := repo.GetOwner().GetLogin()
	if owner == "" {
		owner = repo.GetOwner().GetName()
	}
	return Event{
		Repo: RepoRef{
			Owner:  owner,
			Repo:   repo.GetName(),
			Branch: strings.TrimPrefix(p.GetRef(), branchRefPrefix),
			SHA:    p.GetAfter(),
			URL:    repo.GetCloneURL(),
		},
		Message: p.GetHeadCommit().GetMessage(),
	}, true
}
