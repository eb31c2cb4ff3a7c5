package vcs

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

// newRepo creates an empty repository on branch main.
func newRepo(t *testing.T) (string, *Gateway) {
	t.Helper()
	requireGit(t)

	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	runGit(t, dir, "config", "commit.gpgsign", "false")

	g, err := Open(context.Background(), dir, "main", "origin")
	require.NoError(t, err)
	g.SetAuthor("Bot Tester", "bot@example.com")
	return dir, g
}

// withBareRemote attaches a bare repository as origin.
func withBareRemote(t *testing.T, dir string) string {
	t.Helper()
	remote := filepath.Join(t.TempDir(), "remote.git")
	runGit(t, t.TempDir(), "init", "-q", "--bare", remote)
	runGit(t, dir, "remote", "add", "origin", remote)
	return remote
}

func commitFile(t *testing.T, g *Gateway, dir, rel, content string) {
	t.Helper()
	writeFile(t, dir, rel, content)
	require.True(t, g.StageAll(context.Background()).OK)
	res := g.Commit(context.Background(), "add "+rel)
	require.True(t, res.OK, res.Message)
}

func TestOpenRejectsPlainDirectory(t *testing.T) {
	requireGit(t)
	_, err := Open(context.Background(), t.TempDir(), "main", "origin")
	assert.Error(t, err)
}

func TestCommitOnEmptyRepository(t *testing.T) {
	_, g := newRepo(t)

	res := g.Commit(context.Background(), "first")
	assert.False(t, res.OK)
	assert.Equal(t, "Nothing to commit", res.Message)
}

func TestCommitFirstAndNothingStaged(t *testing.T) {
	ctx := context.Background()
	dir, g := newRepo(t)
	writeFile(t, dir, "index.html", "<h1>hi</h1>")

	require.True(t, g.StageAll(ctx).OK)
	res := g.Commit(ctx, "")
	require.True(t, res.OK, res.Message)
	assert.Regexp(t, regexp.MustCompile(`^Commit [0-9a-f]{8}$`), res.Message)
	assert.Equal(t, DefaultCommitMessage, runGit(t, dir, "log", "-1", "--format=%s"))
	assert.Equal(t, "Bot Tester", runGit(t, dir, "log", "-1", "--format=%an"))

	res = g.Commit(ctx, "again")
	assert.False(t, res.OK)
	assert.Equal(t, "Nothing to commit", res.Message)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	dir, g := newRepo(t)
	commitFile(t, g, dir, "tracked.txt", "v1")

	res := g.Status(ctx)
	require.True(t, res.OK)
	assert.Equal(t, "Working tree clean", res.Message)
	assert.Equal(t, "main", g.Branch())

	writeFile(t, dir, "tracked.txt", "v2")
	writeFile(t, dir, "new.txt", "x")
	writeFile(t, dir, "staged.txt", "y")
	runGit(t, dir, "add", "staged.txt")

	res = g.Status(ctx)
	require.True(t, res.OK)
	assert.Equal(t, "Modified: tracked.txt\nUntracked: new.txt\nStaged: staged.txt", res.Message)
}

func TestStatusWithoutCommits(t *testing.T) {
	dir, g := newRepo(t)
	writeFile(t, dir, "a.txt", "x")
	runGit(t, dir, "add", "a.txt")

	res := g.Status(context.Background())
	require.True(t, res.OK)
	assert.Equal(t, "Staged: a.txt", res.Message)
}

func TestDiff(t *testing.T) {
	ctx := context.Background()
	dir, g := newRepo(t)
	commitFile(t, g, dir, "a.txt", "one\n")

	assert.Equal(t, "No changes", g.Diff(ctx, false).Message)

	writeFile(t, dir, "a.txt", "one\ntwo\n")
	unstaged := g.Diff(ctx, false)
	require.True(t, unstaged.OK)
	assert.Contains(t, unstaged.Message, "a.txt")
	assert.Equal(t, "No changes", g.Diff(ctx, true).Message)

	runGit(t, dir, "add", "a.txt")
	assert.Contains(t, g.Diff(ctx, true).Message, "1 insertion")
}

func TestDetailedDiffTruncates(t *testing.T) {
	ctx := context.Background()
	dir, g := newRepo(t)
	commitFile(t, g, dir, "a.txt", "start\n")

	assert.Equal(t, "No changes", g.DetailedDiff(ctx, 10).Message)

	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("line\n")
	}
	writeFile(t, dir, "a.txt", b.String())

	// Unstaged changes are shown when nothing is staged.
	res := g.DetailedDiff(ctx, 10)
	require.True(t, res.OK)
	assert.Contains(t, res.Message, "diff --git a/a.txt b/a.txt")
	assert.Regexp(t, regexp.MustCompile(`\n\n\.\.\. \(\+\d+ more lines\)$`), res.Message)

	full := g.DetailedDiff(ctx, 0)
	assert.NotContains(t, full.Message, "more lines")
}

func TestPushSetsUpstreamOnFirstPush(t *testing.T) {
	ctx := context.Background()
	dir, g := newRepo(t)
	remote := withBareRemote(t, dir)
	commitFile(t, g, dir, "a.txt", "x")

	res := g.Push(ctx)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "Pushed to origin/main (upstream set)", res.Message)
	assert.Equal(t, "origin/main", runGit(t, dir, "rev-parse", "--abbrev-ref", "main@{upstream}"))
	assert.Equal(t, runGit(t, dir, "rev-parse", "HEAD"), runGit(t, remote, "rev-parse", "refs/heads/main"))

	commitFile(t, g, dir, "b.txt", "y")
	res = g.Push(ctx)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "Pushed to origin/main", res.Message)
}

func TestPushFallsBackToCurrentBranch(t *testing.T) {
	ctx := context.Background()
	dir, g := newRepo(t)
	remote := withBareRemote(t, dir)
	commitFile(t, g, dir, "a.txt", "x")

	g.branch = "production"
	res := g.Push(ctx)
	require.True(t, res.OK, res.Message)
	assert.Contains(t, res.Message, "origin/main")
	assert.NotEmpty(t, runGit(t, remote, "rev-parse", "refs/heads/main"))
}

func TestPushMissingRemote(t *testing.T) {
	dir, g := newRepo(t)
	commitFile(t, g, dir, "a.txt", "x")

	res := g.Push(context.Background())
	assert.False(t, res.OK)
	assert.Equal(t, "Push failed: branch main or remote origin not found.", res.Message)
}

func TestClassifyPushError(t *testing.T) {
	tests := []struct {
		stderr string
		want   string
	}{
		{"remote: Permission to u/r.git denied to bob.\nfatal: unable to access: The requested URL returned error: 403", "authentication or permission"},
		{"fatal: Authentication failed for 'https://github.com/u/r.git/'", "authentication or permission"},
		{"fatal: could not read Username for 'https://github.com': terminal prompts disabled", "authentication or permission"},
		{"error: src refspec main does not match any", "not found"},
		{"fatal: 'origin' does not appear to be a git repository", "not found"},
		{"! [rejected] main -> main (fetch first)", "Push failed: git push: ! [rejected]"},
	}
	for _, tt := range tests {
		err := &CommandError{Args: []string{"push"}, Stderr: tt.stderr, Err: errors.New("exit status 1")}
		res := classifyPushError(err, "origin", "main")
		assert.False(t, res.OK)
		assert.Contains(t, res.Message, tt.want, tt.stderr)
	}
}

func TestDeployStopsAfterFailedStage(t *testing.T) {
	dir, g := newRepo(t)
	withBareRemote(t, dir)
	writeFile(t, dir, "a.txt", "x")
	// A stale lock makes every index write fail.
	writeFile(t, dir, ".git/index.lock", "")

	res := g.Deploy(context.Background(), "ship it")
	assert.False(t, res.OK)
	assert.True(t, strings.HasPrefix(res.Message, "1. Stage: Stage failed"), res.Message)
	assert.NotContains(t, res.Message, "2. Commit")
	assert.NotContains(t, res.Message, "3. Push")
}

func TestDeployStopsAfterFailedCommit(t *testing.T) {
	dir, g := newRepo(t)
	withBareRemote(t, dir)
	commitFile(t, g, dir, "a.txt", "x")

	res := g.Deploy(context.Background(), "ship it")
	assert.False(t, res.OK)
	assert.Equal(t, "1. Stage: All changes staged\n2. Commit: Nothing to commit", res.Message)
}

func TestDeploySuccess(t *testing.T) {
	dir, g := newRepo(t)
	remote := withBareRemote(t, dir)
	writeFile(t, dir, "index.html", "<h1>hi</h1>\n")

	res := g.Deploy(context.Background(), "ship it")
	require.True(t, res.OK, res.Message)

	assert.Contains(t, res.Message, "1. Stage: All changes staged\n2. Commit: Commit ")
	assert.Contains(t, res.Message, "3. Push: Pushed to origin/main (upstream set)")
	assert.Contains(t, res.Message, "Diff:\n```\n index.html | 1 +")
	assert.True(t, strings.HasSuffix(res.Message, "Branch: main"), res.Message)
	assert.Equal(t, "ship it", runGit(t, remote, "log", "-1", "--format=%s", "main"))
}

func TestLastCommitURL(t *testing.T) {
	ctx := context.Background()
	dir, g := newRepo(t)

	assert.Equal(t, "", g.LastCommitURL(ctx, "https://github.com/u/r"), "no HEAD yet")

	commitFile(t, g, dir, "a.txt", "x")
	head := runGit(t, dir, "rev-parse", "HEAD")

	assert.Equal(t, "https://github.com/u/r/commit/"+head[:7], g.LastCommitURL(ctx, "https://github.com/u/r.git/"))
	assert.Equal(t, "", g.LastCommitURL(ctx, ""))
}

func TestCleanRepoURL(t *testing.T) {
	tests := map[string]string{
		"https://github.com/u/r.git/":                       "https://github.com/u/r",
		"https://github.com/u/r":                            "https://github.com/u/r",
		"https://github.com/u/r///":                         "https://github.com/u/r",
		"https://github.com/u/r/commit/abcdef1234":          "https://github.com/u/r",
		"https://github.com/u/r/commit/abcdef1/":            "https://github.com/u/r",
		"https://github.com/u/r/abcdef1":                    "https://github.com/u/r",
		"https://github.com/u/r/" + strings.Repeat("a", 40): "https://github.com/u/r",
		"https://github.com/u/r/deadbeef":                   "https://github.com/u/r/deadbeef",
		"https://github.com/abcdef1":                        "https://github.com/abcdef1",
		"  ":                                                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanRepoURL(in), in)
	}
}

func TestResetChanges(t *testing.T) {
	ctx := context.Background()
	dir, g := newRepo(t)
	commitFile(t, g, dir, "a.txt", "original")

	writeFile(t, dir, "a.txt", "changed")
	writeFile(t, dir, "sub/new.txt", "untracked")
	writeFile(t, dir, "staged.txt", "staged")
	runGit(t, dir, "add", "staged.txt")

	res := g.ResetChanges(ctx)
	require.True(t, res.OK, res.Message)

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
	assert.NoFileExists(t, filepath.Join(dir, "sub", "new.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "staged.txt"))
	assert.Equal(t, "Working tree clean", g.Status(ctx).Message)
}

func TestResetChangesWithoutCommits(t *testing.T) {
	ctx := context.Background()
	dir, g := newRepo(t)
	writeFile(t, dir, "staged.txt", "staged")
	writeFile(t, dir, "loose.txt", "untracked")
	runGit(t, dir, "add", "staged.txt")

	res := g.ResetChanges(ctx)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "All uncommitted changes discarded", res.Message)

	assert.Empty(t, runGit(t, dir, "ls-files", "--cached"))
	assert.NoFileExists(t, filepath.Join(dir, "staged.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "loose.txt"))
	assert.Equal(t, "Working tree clean", g.Status(ctx).Message)

	// Nothing left to discard.
	assert.True(t, g.ResetChanges(ctx).OK)
}
