// Package gitutil resolves the manifest repository's root and its current
// commit, used by the Upgrade Controller (spec.md §4.5) as the default
// per-layer target version: "the repository's current git short-SHA".
package gitutil

import (
	"errors"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// ErrNoRepository is returned when no git repository is found walking up
// from the starting directory.
var ErrNoRepository = errors.New("gitutil: no git repository found")

// Repo wraps the go-git handle opened at a manifest repository's root.
type Repo struct {
	path string
	repo *git.Repository
}

// Open discovers the repository root by walking up from dir and opens it.
func Open(dir string) (*Repo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	r, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNoRepository
		}
		return nil, err
	}
	wt, err := r.Worktree()
	if err != nil {
		return nil, err
	}
	return &Repo{path: wt.Filesystem.Root(), repo: r}, nil
}

// Root returns the repository's working tree root.
func (r *Repo) Root() string { return r.path }

// ShortSHA returns the first seven hex characters of HEAD's commit hash,
// the convention the Upgrade Controller stamps as a layer's target
// version (spec.md §4.5).
func (r *Repo) ShortSHA() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", err
	}
	hash := head.Hash().String()
	if len(hash) < 7 {
		return hash, nil
	}
	return hash[:7], nil
}

// IsDirty reports whether the worktree has uncommitted changes, surfaced
// as an upgrade-preview warning rather than a hard failure.
func (r *Repo) IsDirty() (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, err
	}
	status, err := wt.Status()
	if err != nil {
		return false, err
	}
	return !status.IsClean(), nil
}
