package push

import (
	"encoding/json"
	"testing"

	"github.com/google/go-github/v28/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pushPayload = `{
  "ref": "refs/heads/master",
  "after": "0d1a26e67d8f5eaf1f6ba5c57fc3c7d91ac0fd1c",
  "deleted": false,
  "head_commit": {"message": "Update README"},
  "repository": {
    "name": "lff-sdm",
    "clone_url": "https://github.com/looking-for-freedom/lff-sdm.git",
    "owner": {"name": "looking-for-freedom", "login": "looking-for-freedom"}
  }
}`

func parsePush(t *testing.T, payload string) *github.PushEvent {
	var p github.PushEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &p))
	return &p
}

func TestFromGitHub(t *testing.T) {
	e, ok := FromGitHub(parsePush(t, pushPayload))
	require.True(t, ok)
	assert.Equal(t, Event{
		Repo: RepoRef{
			Owner:  "looking-for-freedom",
			Repo:   "lff-sdm",
			Branch: "master",
			SHA:    "0d1a26e67d8f5eaf1f6ba5c57fc3c7d91ac0fd1c",
			URL:    "https://github.com/looking-for-freedom/lff-sdm.git",
		},
		Message: "Update README",
	}, e)
	assert.NoError(t, e.Validate())
}

func TestFromGitHubOwnerNameOnly(t *testing.T) {
	e, ok := FromGitHub(parsePush(t, `{"ref":"refs/heads/dev","repository":{"name":"r","owner":{"name":"o"}}}`))
	require.True(t, ok)
	assert.Equal(t, "o", e.Repo.Owner)
	assert.Equal(t, "dev", e.Repo.Branch)
}

func TestFromGitHubIgnores(t *testing.T) {
	_, ok := FromGitHub(parsePush(t, `{"ref":"refs/tags/v1.0.0","repository":{"name":"r","owner":{"login":"o"}}}`))
	assert.False(t, ok, "tag push")

	_, ok = FromGitHub(parsePush(t, `{"ref":"refs/heads/gone","deleted":true,"repository":{"name":"r","owner":{"login":"o"}}}`))
	assert.False(t, ok, "deleted branch")

	_, ok = FromGitHub(nil)
	assert.False(t, ok)
}
