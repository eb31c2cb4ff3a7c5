// Package vcs wraps the git command line for the working tree the bot edits.
// Gateway methods never return Go errors: every outcome is a Result with a
// message fit for the chat.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"botcursor/internal/logging"
)

// DefaultCommitMessage is used when the caller supplies none.
const DefaultCommitMessage = "Update via Telegram"

// Result is the outcome of a gateway operation.
type Result struct {
	OK      bool
	Message string
}

func ok(format string, args ...any) Result {
	return Result{OK: true, Message: fmt.Sprintf(format, args...)}
}

func fail(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...)}
}

// CommandError is a failed git invocation with its stderr.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Gateway runs git in a single working tree.
type Gateway struct {
	dir    string
	branch string
	remote string

	authorName  string
	authorEmail string
}

// Open binds a gateway to dir, which must be inside a git work tree. This is
// the only method that returns an error.
func Open(ctx context.Context, dir, branch, remote string) (*Gateway, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("git executable not found: %w", err)
	}
	if branch == "" {
		branch = "main"
	}
	if remote == "" {
		remote = "origin"
	}

	g := &Gateway{dir: dir, branch: branch, remote: remote}
	out, err := g.git(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return nil, fmt.Errorf("%s is not a git work tree: %w", dir, err)
	}
	if out != "true" {
		return nil, fmt.Errorf("%s is not a git work tree", dir)
	}

	logging.Git("Opened repository %s (branch=%s remote=%s)", dir, branch, remote)
	return g, nil
}

// SetAuthor sets the identity used for commits. Empty values fall back to the
// repository's git configuration.
func (g *Gateway) SetAuthor(name, email string) {
	g.authorName = name
	g.authorEmail = email
}

// Branch returns the configured branch.
func (g *Gateway) Branch() string { return g.branch }

// git runs a git subcommand and returns trimmed stdout.
func (g *Gateway) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	logging.GitDebug("git %s (%v)", strings.Join(args, " "), time.Since(start))
	if err != nil {
		return strings.TrimSpace(stdout.String()), &CommandError{
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}

// exitCode returns the process exit code of a failed command, or -1.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func (g *Gateway) hasHead(ctx context.Context) bool {
	_, err := g.git(ctx, "rev-parse", "--verify", "--quiet", "HEAD")
	return err == nil
}

func lines(out string) []string {
	var result []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			result = append(result, l)
		}
	}
	return result
}

// Status lists modified, untracked and staged paths.
func (g *Gateway) Status(ctx context.Context) Result {
	changedOut, err := g.git(ctx, "diff", "--name-only")
	if err != nil {
		return fail("Status failed: %v", err)
	}
	untrackedOut, err := g.git(ctx, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return fail("Status failed: %v", err)
	}

	var stagedOut string
	if g.hasHead(ctx) {
		stagedOut, err = g.git(ctx, "diff", "--cached", "--name-only")
	} else {
		stagedOut, err = g.git(ctx, "ls-files", "--cached")
	}
	if err != nil {
		return fail("Status failed: %v", err)
	}

	var report []string
	if changed := lines(changedOut); len(changed) > 0 {
		report = append(report, "Modified: "+strings.Join(changed, ", "))
	}
	if untracked := lines(untrackedOut); len(untracked) > 0 {
		report = append(report, "Untracked: "+strings.Join(untracked, ", "))
	}
	if staged := lines(stagedOut); len(staged) > 0 {
		report = append(report, "Staged: "+strings.Join(staged, ", "))
	}
	if len(report) == 0 {
		return ok("Working tree clean")
	}
	return ok("%s", strings.Join(report, "\n"))
}

// Diff returns a --stat summary of staged or unstaged changes.
func (g *Gateway) Diff(ctx context.Context, staged bool) Result {
	args := []string{"diff", "--stat"}
	if staged {
		args = []string{"diff", "--cached", "--stat"}
	}
	out, err := g.git(ctx, args...)
	if err != nil {
		return fail("Diff failed: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		return ok("No changes")
	}
	return ok("%s", out)
}

// DetailedDiff returns the staged patch, or the unstaged one when nothing is
// staged, cut after maxLines lines.
func (g *Gateway) DetailedDiff(ctx context.Context, maxLines int) Result {
	out, err := g.git(ctx, "diff", "--cached")
	if err != nil {
		return fail("Diff failed: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		if out, err = g.git(ctx, "diff"); err != nil {
			return fail("Diff failed: %v", err)
		}
	}
	if strings.TrimSpace(out) == "" {
		return ok("No changes")
	}

	all := strings.Split(out, "\n")
	if maxLines > 0 && len(all) > maxLines {
		return ok("%s\n\n... (+%d more lines)", strings.Join(all[:maxLines], "\n"), len(all)-maxLines)
	}
	return ok("%s", out)
}

// StageAll stages every change in the tree, deletions and untracked files
// included.
func (g *Gateway) StageAll(ctx context.Context) Result {
	if _, err := g.git(ctx, "add", "-A"); err != nil {
		logging.GitError("Stage failed: %v", err)
		return fail("Stage failed: %v", err)
	}
	logging.Git("Staged all changes")
	return ok("All changes staged")
}

// hasStagedChanges reports whether a commit would record anything. A
// repository without commits is checked through the index directly.
func (g *Gateway) hasStagedChanges(ctx context.Context) (bool, error) {
	if g.hasHead(ctx) {
		_, err := g.git(ctx, "diff", "--cached", "--quiet", "HEAD")
		switch {
		case err == nil:
			return false, nil
		case exitCode(err) == 1:
			return true, nil
		default:
			return false, err
		}
	}

	out, err := g.git(ctx, "ls-files", "--cached")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Commit records the staged changes and returns the short hash.
func (g *Gateway) Commit(ctx context.Context, message string) Result {
	if strings.TrimSpace(message) == "" {
		message = DefaultCommitMessage
	}

	staged, err := g.hasStagedChanges(ctx)
	if err != nil {
		return fail("Commit failed: %v", err)
	}
	if !staged {
		return fail("Nothing to commit")
	}

	var args []string
	if g.authorName != "" {
		args = append(args, "-c", "user.name="+g.authorName)
	}
	if g.authorEmail != "" {
		args = append(args, "-c", "user.email="+g.authorEmail)
	}
	args = append(args, "commit", "-m", message)
	if _, err := g.git(ctx, args...); err != nil {
		logging.GitError("Commit failed: %v", err)
		return fail("Commit failed: %v", err)
	}

	hash, err := g.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return fail("Commit created but HEAD is unreadable: %v", err)
	}
	short := shortHash(hash, 8)
	logging.Git("Committed %s", short)
	return ok("Commit %s", short)
}

func shortHash(hash string, n int) string {
	hash = strings.TrimSpace(hash)
	if len(hash) > n {
		return hash[:n]
	}
	return hash
}

// pushBranch picks the configured branch if it exists locally, otherwise the
// checked-out one.
func (g *Gateway) pushBranch(ctx context.Context) (string, error) {
	if _, err := g.git(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+g.branch); err == nil {
		return g.branch, nil
	}
	current, err := g.git(ctx, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("cannot determine current branch: %w", err)
	}
	logging.Git("Branch %s not found locally, pushing %s instead", g.branch, current)
	return current, nil
}

func (g *Gateway) push(ctx context.Context) (string, Result) {
	branch, err := g.pushBranch(ctx)
	if err != nil {
		return "", fail("Push failed: %v", err)
	}

	args := []string{"push", g.remote, branch}
	upstreamSet := false
	if _, err := g.git(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", branch+"@{upstream}"); err != nil {
		args = []string{"push", "--set-upstream", g.remote, branch}
		upstreamSet = true
	}

	if _, err := g.git(ctx, args...); err != nil {
		logging.GitError("Push failed: %v", err)
		return branch, classifyPushError(err, g.remote, branch)
	}

	logging.Git("Pushed %s to %s", branch, g.remote)
	if upstreamSet {
		return branch, ok("Pushed to %s/%s (upstream set)", g.remote, branch)
	}
	return branch, ok("Pushed to %s/%s", g.remote, branch)
}

// Push sends the branch to the remote, setting upstream tracking on the first
// push.
func (g *Gateway) Push(ctx context.Context) Result {
	_, res := g.push(ctx)
	return res
}

var (
	authMarkers = []string{
		"authentication failed", "permission denied", "could not read username",
		"access denied", "invalid username or password", "403", "publickey",
		"not authorized", "denied to",
	}
	missingMarkers = []string{
		"src refspec", "does not match any", "couldn't find remote ref",
		"does not appear to be a git repository", "repository not found",
		"no such remote",
	}
)

// classifyPushError maps git's stderr to one of three user-facing classes.
func classifyPushError(err error, remote, branch string) Result {
	msg := strings.ToLower(err.Error())
	for _, m := range authMarkers {
		if strings.Contains(msg, m) {
			return fail("Push rejected: authentication or permission problem with %s. Check the credentials configured for git.", remote)
		}
	}
	for _, m := range missingMarkers {
		if strings.Contains(msg, m) {
			return fail("Push failed: branch %s or remote %s not found.", branch, remote)
		}
	}
	return fail("Push failed: %v", err)
}

// Deploy stages, commits and pushes, stopping at the first failing step. The
// report has one line per attempted step; on success it also carries the
// staged diff and the branch.
func (g *Gateway) Deploy(ctx context.Context, message string) Result {
	var report []string
	done := func(ok bool) Result {
		return Result{OK: ok, Message: strings.Join(report, "\n")}
	}

	res := g.StageAll(ctx)
	report = append(report, "1. Stage: "+res.Message)
	if !res.OK {
		return done(false)
	}

	diff := g.Diff(ctx, true).Message

	res = g.Commit(ctx, message)
	report = append(report, "2. Commit: "+res.Message)
	if !res.OK {
		return done(false)
	}

	branch, res := g.push(ctx)
	report = append(report, "3. Push: "+res.Message)
	if !res.OK {
		return done(false)
	}

	report = append(report, "", "Diff:", "```", diff, "```", "", "Branch: "+branch)
	return done(true)
}

// LastCommitURL builds a browsable link to HEAD from a repository web URL.
// It returns "" when the URL is empty or the repository has no commits.
func (g *Gateway) LastCommitURL(ctx context.Context, remoteWebURL string) string {
	base := cleanRepoURL(remoteWebURL)
	if base == "" {
		return ""
	}
	hash, err := g.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return ""
	}
	return base + "/commit/" + shortHash(hash, 7)
}

// cleanRepoURL strips ".git", trailing slashes, a trailing /commit/... part
// and a trailing commit-hash segment until none applies.
func cleanRepoURL(raw string) string {
	u := strings.TrimSpace(raw)
	for {
		prev := u
		u = strings.TrimRight(u, "/")
		u = strings.TrimSuffix(u, ".git")
		if i := strings.LastIndex(u, "/commit/"); i >= 0 {
			u = u[:i]
		}
		if i := strings.LastIndex(u, "/"); i > hostEnd(u) && isHashSegment(u[i+1:]) {
			u = u[:i]
		}
		if u == prev {
			return u
		}
	}
}

// hostEnd returns the index where the path of an URL starts.
func hostEnd(u string) int {
	start := 0
	if i := strings.Index(u, "://"); i >= 0 {
		start = i + 3
	}
	if j := strings.Index(u[start:], "/"); j >= 0 {
		return start + j
	}
	return len(u)
}

func isHashSegment(s string) bool {
	if len(s) != 7 && len(s) != 40 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// ResetChanges discards every uncommitted change, staged or not, and removes
// untracked files. Without a commit the index is emptied first, so staged
// files are removed as well. It cannot be undone.
func (g *Gateway) ResetChanges(ctx context.Context) Result {
	if g.hasHead(ctx) {
		if _, err := g.git(ctx, "reset", "--hard", "--quiet", "HEAD"); err != nil {
			logging.GitError("Reset failed: %v", err)
			return fail("Reset failed: %v", err)
		}
	} else if _, err := g.git(ctx, "rm", "-r", "-q", "--cached", "--ignore-unmatch", "."); err != nil {
		logging.GitError("Unstage failed: %v", err)
		return fail("Reset failed: %v", err)
	}
	if _, err := g.git(ctx, "clean", "-fd"); err != nil {
		logging.GitError("Clean failed: %v", err)
		return fail("Reset failed: %v", err)
	}
	logging.Git("Discarded uncommitted changes")
	return ok("All uncommitted changes discarded")
}
