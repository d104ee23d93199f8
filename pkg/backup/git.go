package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/charmbracelet/log"
)

// GitManager keeps the state directory under version control so the sync
// history survives a lost disk.
type GitManager struct {
	RepoPath string
}

// NewGitManager creates a new GitManager
func NewGitManager(repoPath string) *GitManager {
	return &GitManager{RepoPath: repoPath}
}

// Commit stages the state directory and commits it. Returns false when the
// worktree is clean and there is nothing to record.
func (g *GitManager) Commit(message string) (bool, error) {
	r, err := git.PlainOpen(g.RepoPath)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		r, err = git.PlainInit(g.RepoPath, false)
	}
	if err != nil {
		return false, fmt.Errorf("failed to open repo: %w", err)
	}

	w, err := r.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}

	if _, err := w.Add("."); err != nil {
		return false, fmt.Errorf("failed to add changes: %w", err)
	}

	status, err := w.Status()
	if err != nil {
		return false, fmt.Errorf("failed to get status: %w", err)
	}
	if status.IsClean() {
		return false, nil
	}

	if message == "" {
		message = fmt.Sprintf("state backup %s", time.Now().Format(time.RFC3339))
	}

	_, err = w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Board Pilot",
			Email: "pilot@board.local",
			When:  time.Now(),
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

// Push sends recorded backups to the configured remote, if there is one.
// Repos without a remote are local-only backups and push is a no-op.
func (g *GitManager) Push() error {
	r, err := git.PlainOpen(g.RepoPath)
	if err != nil {
		return fmt.Errorf("failed to open repo: %w", err)
	}

	if _, err := r.Remote("origin"); err != nil {
		return nil
	}

	home, _ := os.UserHomeDir()
	sshKeyPath := filepath.Join(home, ".ssh", "id_rsa")

	var pushErr error
	publicKeys, err := ssh.NewPublicKeysFromFile("git", sshKeyPath, "")
	if err != nil {
		log.Warnf("could not load ssh key, pushing without explicit auth: %v", err)
		pushErr = r.Push(&git.PushOptions{})
	} else {
		pushErr = r.Push(&git.PushOptions{Auth: publicKeys})
	}

	if pushErr != nil {
		if pushErr == git.NoErrAlreadyUpToDate {
			return nil
		}
		return fmt.Errorf("failed to push: %w", pushErr)
	}
	return nil
}

// Backup commits and, when a remote exists, pushes in one call.
func (g *GitManager) Backup(message string) error {
	committed, err := g.Commit(message)
	if err != nil {
		return err
	}
	if !committed {
		return nil
	}
	return g.Push()
}
