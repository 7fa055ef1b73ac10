// Package project gives goals a working copy of a repository for the
// duration of a single function call. Whatever the function returns,
// and however it returns, the working copy is released afterwards.
package project

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/looking-for-freedom/lff-sdm/pkg/push"
)

// Project is a working copy of a repository.
type Project interface {
	Dir() string
	ID() push.RepoRef
	// HasFile reports whether there is a regular file at the path
	// given, relative to the root of the project.
	HasFile(name string) (bool, error)
}

// Params say which repository to load, and how.
type Params struct {
	Repo push.RepoRef
	// ReadOnly is a promise that the project will not be modified
	ReadOnly bool
	// Log receives output from loading the project, e.g., of git
	Log io.Writer
	// Env is the base environment for anything spawned to load it
	Env map[string]string
}

type Loader interface {
	DoWithProject(ctx context.Context, params Params, fn func(Project) error) error
}

type dirProject struct {
	dir string
	id  push.RepoRef
}

func (p *dirProject) Dir() string {
	return p.dir
}

func (p *dirProject) ID() push.RepoRef {
	return p.id
}

func (p *dirProject) HasFile(name string) (bool, error) {
	info, err := os.Stat(filepath.Join(p.dir, name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "checking for %s in project", name)
	}
	return info.Mode().IsRegular(), nil
}

// LocalLoader serves projects from a directory that already has the
// code in it, e.g., when running a build by hand. Only one function
// at a time is given a particular directory.
type LocalLoader struct {
	Dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *LocalLoader) lockFor(dir string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = map[string]*sync.Mutex{}
	}
	m, ok := l.locks[dir]
	if !ok {
		m = &sync.Mutex{}
		l.locks[dir] = m
	}
	return m
}

func (l *LocalLoader) DoWithProject(ctx context.Context, params Params, fn func(Project) error) error {
	dir, err := filepath.Abs(l.Dir)
	if err != nil {
		return errors.Wrap(err, "resolving project directory")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrap(err, "opening project directory")
	}
	if !info.IsDir() {
		return errors.Errorf("project directory %s is not a directory", dir)
	}

	lock := l.lockFor(dir)
	lock.Lock()
	defer lock.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&dirProject{dir: dir, id: params.Repo})
}
