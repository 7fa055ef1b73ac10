package project

import (
	"context"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"

	sdmerr "github.com/looking-for-freedom/lff-sdm/pkg/errors"
	"github.com/looking-for-freedom/lff-sdm/pkg/process"
)

// GitLoader clones the pushed repository into a fresh directory for
// each call, checks out the pushed commit, and removes the directory
// when the call is done.
type GitLoader struct {
	Spawner process.Spawner
	// BaseDir is where clones are made; if empty, the system
	// temporary directory
	BaseDir string
}

func (g *GitLoader) DoWithProject(ctx context.Context, params Params, fn func(Project) error) (err error) {
	if params.Repo.URL == "" {
		return CloningError(params.Repo.String(), errors.New("push has no clone URL"))
	}
	dir, err := ioutil.TempDir(g.BaseDir, "sdm-project-")
	if err != nil {
		return errors.Wrap(err, "making directory for clone")
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil && err == nil {
			err = errors.Wrap(rmErr, "removing clone")
		}
	}()

	if err := g.clone(ctx, dir, params); err != nil {
		return err
	}
	return fn(&dirProject{dir: dir, id: params.Repo})
}

func (g *GitLoader) clone(ctx context.Context, dir string, params Params) error {
	opts := process.Options{
		Dir: dir,
		Env: gitEnv(params.Env),
		Log: params.Log,
	}

	args := []string{"clone"}
	if params.Repo.Branch != "" {
		args = append(args, "--branch", params.Repo.Branch)
	}
	args = append(args, params.Repo.URL, ".")
	secrets := params.Repo.Credentials()
	if err := g.git(ctx, args, secrets, opts); err != nil {
		return CloningError(params.Repo.SafeURL(), err)
	}

	if params.Repo.SHA != "" {
		if err := g.git(ctx, []string{"checkout", params.Repo.SHA, "--"}, secrets, opts); err != nil {
			return errors.Wrapf(err, "checking out %s", params.Repo.SHA)
		}
	}
	return nil
}

func (g *GitLoader) git(ctx context.Context, args, secrets []string, opts process.Options) error {
	res, err := g.Spawner.Spawn(ctx, process.Command{Program: "git", Args: args, Secrets: secrets}, opts)
	if err != nil {
		return err
	}
	if res.Failed() {
		return errors.New(res.Message)
	}
	return nil
}

func gitEnv(base map[string]string) map[string]string {
	env := make(map[string]string, len(base)+1)
	for k, v := range base {
		env[k] = v
	}
	env["GIT_TERMINAL_PROMPT"] = "0"
	return env
}

func CloningError(url string, actual error) error {
	return &sdmerr.Error{
		Type: sdmerr.User,
		Err:  errors.Wrap(actual, "cloning "+url),
		Help: `Could not clone the pushed repository

There was a problem cloning the git repository,

    ` + url + `

This may be because the machine has no credentials for it, or because
the repository has been moved, deleted, or never existed. The branch or
commit named in the push may also have gone.
`,
	}
}
