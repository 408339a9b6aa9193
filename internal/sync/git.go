package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitDestination keeps an export file in a git working copy. Each write
// that changes the file becomes one commit pushed to origin.
type GitDestination struct {
	repo   string // path to a local clone with an "origin" remote
	file   string // export path relative to repo
	branch string
}

// NewGitDestination creates a git destination writing file on branch.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{repo: repo, file: file, branch: branch}
}

// Name implements Destination.
func (d *GitDestination) Name() string {
	return "git:" + filepath.Join(d.repo, d.file)
}

// Write implements Destination. An export identical to the committed file
// creates no commit.
func (d *GitDestination) Write(ctx context.Context, exp Export) error {
	if err := d.git(ctx, "checkout", d.branch); err != nil {
		return err
	}
	// The branch may not exist on the remote yet.
	_ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	path := filepath.Join(d.repo, d.file)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	if err := os.WriteFile(path, exp.Data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	if err := d.git(ctx, "add", d.file); err != nil {
		return err
	}

	changed, err := d.hasStagedChanges(ctx)
	if err != nil || !changed {
		return err
	}
	if err := d.git(ctx, "commit", "-m", commitMessage(exp.Meta)); err != nil {
		return err
	}
	return d.git(ctx, "push", "origin", d.branch)
}

func commitMessage(m Meta) string {
	var b strings.Builder
	b.WriteString("sync: update taskgraph export")
	if m.Fingerprint != "" || m.Digest != "" {
		b.WriteString("\n")
	}
	if m.Fingerprint != "" {
		b.WriteString("\nfingerprint: " + m.Fingerprint)
	}
	if m.Digest != "" {
		b.WriteString("\ndigest: " + m.Digest)
	}
	return b.String()
}

// hasStagedChanges reports whether the index differs from HEAD.
func (d *GitDestination) hasStagedChanges(ctx context.Context) (bool, error) {
	err := d.git(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, err
}

// git runs a git subcommand in the working copy. Failures carry git's
// combined output.
func (d *GitDestination) git(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	out, err := cmd.CombinedOutput()
	if err != nil {
		if msg := bytes.TrimSpace(out); len(msg) > 0 {
			return fmt.Errorf("git %s: %w: %s", args[0], err, msg)
		}
		return fmt.Errorf("git %s: %w", args[0], err)
	}
	return nil
}
