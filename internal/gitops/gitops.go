package gitops

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Repo is a git working tree that versions tally's data files.
type Repo struct {
	Dir         string
	AuthorName  string
	AuthorEmail string
}

// Available reports whether the git binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Init initializes a new git repository at dir. An existing repository is
// left as is.
func Init(dir, authorName, authorEmail string) (*Repo, error) {
	r := &Repo{Dir: dir, AuthorName: authorName, AuthorEmail: authorEmail}
	if IsRepo(dir) {
		return r, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	if _, err := r.git("init", "--quiet"); err != nil {
		return nil, err
	}
	return r, nil
}

// Commit stages paths (relative to the repo root) and commits them. It
// returns the short hash, or "" when nothing changed.
func (r *Repo) Commit(message string, paths ...string) (string, error) {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(filepath.Join(r.Dir, p)); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return "", nil
	}

	if _, err := r.git(append([]string{"add", "--"}, existing...)...); err != nil {
		return "", err
	}

	// Exit status 1 means the index differs from HEAD.
	_, err := r.git("diff", "--cached", "--quiet")
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return "", nil
	case !errors.As(err, &exitErr) || exitErr.ExitCode() != 1:
		return "", err
	}

	author := fmt.Sprintf("%s <%s>", r.AuthorName, r.AuthorEmail)
	if _, err := r.git("-c", "user.name="+r.AuthorName, "-c", "user.email="+r.AuthorEmail,
		"commit", "--quiet", "-m", message, "--author", author); err != nil {
		return "", err
	}

	out, err := r.git("rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (r *Repo) git(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &Error{Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return stdout.String(), nil
}

// Error is a failed git invocation.
type Error struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("git %s: %v", e.Args[0], e.Err)
	}
	return fmt.Sprintf("git %s: %s: %v", e.Args[0], e.Stderr, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
