package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const gitAuthor = "pipeline"

var collectionKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Git keeps every collection as <key>.json in a local repository on the main
// branch. Each write that changes a file becomes one commit.
type Git struct {
	dir  string
	mu   sync.Mutex
	repo *git.Repository
}

// NewGit opens the repository at dir, initializing it when absent.
func NewGit(dir string) (*Git, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("init repo: %w", err)
		}
		if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
			return nil, fmt.Errorf("set HEAD to main: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return &Git{dir: dir, repo: repo}, nil
}

func (g *Git) file(key string) (string, error) {
	if !collectionKeyPattern.MatchString(key) {
		return "", fmt.Errorf("invalid collection key %q", key)
	}
	return key + ".json", nil
}

func (g *Git) Read(_ context.Context, key string) ([]byte, bool, error) {
	name, err := g.file(key)
	if err != nil {
		return nil, false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	raw, err := os.ReadFile(filepath.Join(g.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", name, err)
	}
	return raw, true, nil
}

func (g *Git) Write(_ context.Context, key string, value []byte) error {
	name, err := g.file(key)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	worktree, err := g.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(g.dir, name), append(value, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if _, err := worktree.Add(name); err != nil {
		return fmt.Errorf("git add %s: %w", name, err)
	}
	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("git status: %w", err)
	}
	if status.IsClean() {
		return nil
	}
	_, err = worktree.Commit("Update "+key, &git.CommitOptions{
		Author: &object.Signature{
			Name:  gitAuthor,
			Email: gitAuthor + "@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}
	return nil
}

// History lists the commit messages touching key, newest first.
func (g *Git) History(key string, limit int) ([]string, error) {
	name, err := g.file(key)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	head, err := g.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	iter, err := g.repo.Log(&git.LogOptions{From: head.Hash(), FileName: &name})
	if err != nil {
		return nil, fmt.Errorf("git log: %w", err)
	}
	defer iter.Close()

	var out []string
	errStop := errors.New("stop")
	err = iter.ForEach(func(commit *object.Commit) error {
		if limit > 0 && len(out) >= limit {
			return errStop
		}
		out = append(out, commit.Message)
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, fmt.Errorf("walk history: %w", err)
	}
	return out, nil
}

func (g *Git) Ping(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.repo.Worktree()
	return err
}

func (g *Git) Close() error { return nil }
