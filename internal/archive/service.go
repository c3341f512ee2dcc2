// Package archive keeps an auditable git history of reconstructed law
// versions: one repository per base law, one commit per in-force wording.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const versionFile = "lag.txt"

// CommitInfo describes one archived version.
type CommitInfo struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// CommitVersion writes the rendered text of a law as of asOf and commits it.
// Committing the same wording twice is a no-op returning the existing head,
// so re-running an export after new ingests only appends the new versions.
func (s *Service) CommitVersion(lawSFS string, asOf time.Time, rendered string, applied []string) (CommitInfo, error) {
	lock := s.lawLock(lawSFS)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.ensureRepo(lawSFS)
	if err != nil {
		return CommitInfo{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	path := filepath.Join(s.repoPath(lawSFS), versionFile)
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write version file: %w", err)
	}
	if _, err := worktree.Add(versionFile); err != nil {
		return CommitInfo{}, fmt.Errorf("git add version file: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read worktree status: %w", err)
	}
	head, headErr := repo.Head()
	if status.IsClean() && headErr == nil {
		commitObj, err := repo.CommitObject(head.Hash())
		if err != nil {
			return CommitInfo{}, fmt.Errorf("read head commit: %w", err)
		}
		return toCommitInfo(commitObj), nil
	}

	hash, err := worktree.Commit(commitMessage(asOf, applied), &git.CommitOptions{
		Author: &object.Signature{
			Name:  "lagrum",
			Email: "archive@lagrum.local",
			When:  time.Now(),
		},
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit version: %w", err)
	}

	if headErr != nil {
		// First commit: pin main and point HEAD at it.
		if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
			return CommitInfo{}, fmt.Errorf("set main branch ref: %w", err)
		}
		if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
			return CommitInfo{}, fmt.Errorf("set HEAD to main: %w", err)
		}
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// History lists archived versions newest first.
func (s *Service) History(lawSFS string, limit int) ([]CommitInfo, error) {
	lock := s.lawLock(lawSFS)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(lawSFS))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil
		}
		return nil, fmt.Errorf("open repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, nil
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) ensureRepo(lawSFS string) (*git.Repository, error) {
	path := s.repoPath(lawSFS)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(lawSFS string) string {
	return filepath.Join(s.baseDir, strings.ReplaceAll(lawSFS, ":", "-"))
}

func (s *Service) lawLock(lawSFS string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[lawSFS]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[lawSFS] = lock
	}
	return lock
}

func commitMessage(asOf time.Time, applied []string) string {
	date := asOf.Format("2006-01-02")
	if len(applied) == 0 {
		return fmt.Sprintf("Grundlydelse per %s", date)
	}
	return fmt.Sprintf("Lydelse per %s (SFS %s)", date, applied[len(applied)-1])
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:    commitObj.Hash.String(),
		Message: commitObj.Message,
		When:    commitObj.Author.When,
	}
}
