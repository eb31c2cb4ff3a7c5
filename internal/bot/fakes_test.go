package bot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"botcursor/internal/completion"
	"botcursor/internal/ops"
	"botcursor/internal/session"
	"botcursor/internal/vcs"
	"botcursor/internal/workspace"
)

type sentMessage struct {
	ChatID int64
	ID     int
	Text   string
}

type fakeTransport struct {
	mu      sync.Mutex
	nextID  int
	sent    []sentMessage
	edits   []sentMessage
	failAll bool
}

func (f *fakeTransport) Send(chatID int64, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return 0, errors.New("network down")
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, ID: f.nextID, Text: text})
	return f.nextID, nil
}

func (f *fakeTransport) Edit(chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("network down")
	}
	f.edits = append(f.edits, sentMessage{ChatID: chatID, ID: messageID, Text: text})
	return nil
}

func (f *fakeTransport) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeTransport) Edits() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.edits...)
}

func (f *fakeTransport) LastSent() string {
	s := f.Sent()
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1].Text
}

type fakeProcessor struct {
	result       completion.CompletionResult
	instructions []string
}

func (f *fakeProcessor) Process(ctx context.Context, instruction string, relevantFiles []string) completion.CompletionResult {
	f.instructions = append(f.instructions, instruction)
	return f.result
}

type fakeRepo struct {
	mu          sync.Mutex
	calls       []string
	deployMsg   string
	deployOK    bool
	commitURL   string
	diff        string
	detailed    string
	resetResult vcs.Result
}

func (f *fakeRepo) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRepo) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRepo) Branch() string { return "main" }

func (f *fakeRepo) Status(ctx context.Context) vcs.Result {
	f.record("status")
	return vcs.Result{OK: true, Message: "Working tree clean"}
}

func (f *fakeRepo) Diff(ctx context.Context, staged bool) vcs.Result {
	f.record("diff")
	return vcs.Result{OK: true, Message: f.diff}
}

func (f *fakeRepo) DetailedDiff(ctx context.Context, maxLines int) vcs.Result {
	f.record("detailed")
	return vcs.Result{OK: true, Message: f.detailed}
}

func (f *fakeRepo) Deploy(ctx context.Context, message string) vcs.Result {
	f.record("deploy")
	f.mu.Lock()
	f.deployMsg = message
	f.mu.Unlock()
	return vcs.Result{OK: f.deployOK, Message: "1. Stage: ok"}
}

func (f *fakeRepo) ResetChanges(ctx context.Context) vcs.Result {
	f.record("reset")
	if f.resetResult.Message == "" {
		return vcs.Result{OK: true, Message: "All uncommitted changes discarded"}
	}
	return f.resetResult
}

func (f *fakeRepo) LastCommitURL(ctx context.Context, remoteWebURL string) string {
	f.record("url")
	return f.commitURL
}

type fakeSource struct {
	ch       chan Message
	stopOnce sync.Once
	stopped  chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan Message), stopped: make(chan struct{})}
}

func (s *fakeSource) Updates(ctx context.Context) <-chan Message { return s.ch }

func (s *fakeSource) Stop() {
	s.stopOnce.Do(func() { close(s.stopped) })
}

const (
	ownerID = int64(42)
	chatID  = int64(1000)
)

type harness struct {
	router    *Router
	transport *fakeTransport
	processor *fakeProcessor
	repo      *fakeRepo
	gate      *session.Gate
	root      string
	now       time.Time
}

func newHarness(t *testing.T, pin string) *harness {
	t.Helper()
	root := filepath.Join(t.TempDir(), "proj")
	require.NoError(t, os.Mkdir(root, 0755))
	ws, err := workspace.New(root, nil, []string{".git", ".git/**", "**/.git/**"})
	require.NoError(t, err)

	h := &harness{
		transport: &fakeTransport{},
		processor: &fakeProcessor{},
		repo:      &fakeRepo{deployOK: true},
		gate:      session.NewGate(ownerID, pin, time.Hour),
		root:      ws.Root(),
		now:       time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}
	h.gate.SetClock(func() time.Time { return h.now })
	h.router = NewRouter(Config{
		Transport: h.transport,
		Gate:      h.gate,
		Pipeline:  NewPipeline(h.processor, ops.NewApplier(ws), h.repo),
		Repo:      h.repo,
		RepoURL:   "https://github.com/u/r",
	})
	return h
}

func (h *harness) say(text string) {
	h.router.Handle(context.Background(), Message{
		ChatID: chatID, SenderID: ownerID, SenderName: "Ada", Username: "ada", Text: text,
	})
}

func (h *harness) sayAs(id int64, text string) {
	h.router.Handle(context.Background(), Message{ChatID: chatID, SenderID: id, SenderName: "Eve", Text: text})
}
