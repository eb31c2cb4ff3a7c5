package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"botcursor/internal/logging"
	"botcursor/internal/session"
	"botcursor/internal/vcs"
)

const (
	diffMaxLines = 40
	diffMaxChars = 3900
)

// Command describes one chat command for /help and the client menu.
type Command struct {
	Name        string
	Description string
}

// Commands lists the chat commands; /pin only when a PIN is configured.
func Commands(withPIN bool) []Command {
	cmds := []Command{
		{"start", "Welcome message"},
		{"help", "List commands"},
		{"status", "Git status of the project"},
		{"diff", "Show pending changes"},
		{"deploy", "Commit and push the changes"},
		{"reset", "Discard all uncommitted changes"},
		{"id", "Show your Telegram ID"},
	}
	if withPIN {
		cmds = append(cmds, Command{"pin", "Unlock with your PIN"})
	}
	return cmds
}

// Config wires a router.
type Config struct {
	Transport Transport
	Gate      *session.Gate
	Pipeline  *Pipeline
	Repo      Repository
	RepoURL   string
}

// Router dispatches inbound messages. Each message is handled in its own
// goroutine; instructions are not serialized against each other.
type Router struct {
	transport Transport
	gate      *session.Gate
	pipeline  *Pipeline
	repo      Repository
	repoURL   string

	inflight sync.WaitGroup
}

// NewRouter creates a router.
func NewRouter(cfg Config) *Router {
	return &Router{
		transport: cfg.Transport,
		gate:      cfg.Gate,
		pipeline:  cfg.Pipeline,
		repo:      cfg.Repo,
		repoURL:   cfg.RepoURL,
	}
}

var errSourceClosed = errors.New("update source closed")

// Serve reads updates until ctx is cancelled or the source closes, then
// waits for in-flight handlers to finish.
func (r *Router) Serve(ctx context.Context, src UpdateSource) error {
	logging.Bot("Serving updates")
	g, gctx := errgroup.WithContext(ctx)
	updates := src.Updates(gctx)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case m, ok := <-updates:
				if !ok {
					return errSourceClosed
				}
				r.dispatch(ctx, m)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		src.Stop()
		return nil
	})

	err := g.Wait()
	r.inflight.Wait()
	logging.Bot("Stopped serving updates")
	if errors.Is(err, errSourceClosed) {
		return nil
	}
	return err
}

// dispatch handles m off the polling loop. Handlers are not cancelled by
// shutdown; Serve waits for them instead.
func (r *Router) dispatch(ctx context.Context, m Message) {
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		defer func() {
			if p := recover(); p != nil {
				logging.BotError("Handler panic for chat %d: %v", m.ChatID, p)
				r.send(m.ChatID, fmt.Sprintf("❌ Unexpected error: %v", p))
			}
		}()
		r.Handle(context.WithoutCancel(ctx), m)
	}()
}

// Handle processes a single message synchronously.
func (r *Router) Handle(ctx context.Context, m Message) {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return
	}
	if !strings.HasPrefix(text, "/") {
		r.handleInstruction(ctx, m, text)
		return
	}

	name, args := parseCommand(text)
	logging.BotDebug("Command /%s from %d", name, m.SenderID)

	switch name {
	case "start":
		r.handleStart(m)
	case "help":
		r.handleHelp(m)
	case "status":
		r.handleStatus(ctx, m)
	case "diff":
		r.handleDiff(ctx, m)
	case "deploy":
		r.handleDeploy(ctx, m, args)
	case "reset":
		r.handleReset(ctx, m)
	case "id":
		r.handleID(m)
	case "pin":
		if r.gate.SecretConfigured() {
			r.handlePin(m, args)
			return
		}
		r.handleUnknown(m)
	default:
		r.handleUnknown(m)
	}
}

// parseCommand splits "/deploy@MyBot fix typo" into ("deploy", "fix typo").
func parseCommand(text string) (string, string) {
	head, args, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(args)
}

func (r *Router) send(chatID int64, text string) int {
	id, err := r.transport.Send(chatID, clip(text))
	if err != nil {
		logging.BotError("Send to chat %d failed: %v", chatID, err)
	}
	return id
}

func (r *Router) edit(chatID int64, messageID int, text string) {
	if err := r.transport.Edit(chatID, messageID, clip(text)); err != nil {
		logging.BotError("Edit of message %d failed: %v", messageID, err)
		// The placeholder may be gone; deliver the text anyway.
		r.send(chatID, text)
	}
}

// guard authorizes command for the sender and replies on refusal.
func (r *Router) guard(m Message, command string) bool {
	switch r.gate.Authorize(m.SenderID, command) {
	case session.Allowed:
		return true
	case session.Locked:
		r.send(m.ChatID, "🔒 Locked. Send /pin <code> to unlock.")
	default:
		r.send(m.ChatID, "🚫 Access denied. You are not authorized to use this bot.")
	}
	return false
}

func (r *Router) handleStart(m Message) {
	if r.gate.Authorize(m.SenderID, "start") == session.Denied {
		r.send(m.ChatID, fmt.Sprintf("🚫 Sorry, you are not authorized to use this bot.\nYour ID: %d", m.SenderID))
		return
	}

	text := fmt.Sprintf("👋 Hi %s!\n\n"+
		"🚀 I am your deployment agent. Send me instructions in plain language and I will change your code.\n\n"+
		"📝 Examples:\n"+
		"• \"Add a hello_world function to main.py\"\n"+
		"• \"Create utils/helpers.py with a few helper functions\"\n"+
		"• \"Fix the bug in the calculate function\"\n\n"+
		"📚 Use /help to see all commands.", m.SenderName)
	if r.gate.Authorize(m.SenderID, "") == session.Locked {
		text += "\n\n🔒 Send /pin <code> to unlock."
	}
	r.send(m.ChatID, text)
}

func (r *Router) handleHelp(m Message) {
	if !r.guard(m, "help") {
		return
	}
	var b strings.Builder
	b.WriteString("📚 Available commands:\n\n")
	for _, c := range Commands(r.gate.SecretConfigured()) {
		fmt.Fprintf(&b, "🔹 /%s - %s\n", c.Name, c.Description)
	}
	b.WriteString("\n💬 To change the code, just send a message describing what you want.")
	r.send(m.ChatID, b.String())
}

func (r *Router) handleStatus(ctx context.Context, m Message) {
	if !r.guard(m, "status") {
		return
	}
	r.send(m.ChatID, fmt.Sprintf("📊 Git status (branch %s):\n\n%s", r.repo.Branch(), r.repo.Status(ctx).Message))
}

func (r *Router) handleDiff(ctx context.Context, m Message) {
	if !r.guard(m, "diff") {
		return
	}
	diff := r.repo.DetailedDiff(ctx, diffMaxLines).Message
	if runes := []rune(diff); len(runes) > diffMaxChars {
		diff = string(runes[:diffMaxChars]) + "\n\n... (truncated)"
	}
	r.send(m.ChatID, "📝 Changes:\n\n```\n"+diff+"\n```")
}

func (r *Router) handleDeploy(ctx context.Context, m Message, args string) {
	if !r.guard(m, "deploy") {
		return
	}
	r.send(m.ChatID, "🚀 Deploying...")

	message := args
	if message == "" {
		message = vcs.DefaultCommitMessage
	}
	res := r.repo.Deploy(ctx, message)
	report := res.Message
	if res.OK && r.repoURL != "" {
		if url := r.repo.LastCommitURL(ctx, r.repoURL); url != "" {
			report += "\n\n🔗 Commit: " + url
		}
	}
	logging.Bot("Deploy finished: ok=%v", res.OK)
	r.send(m.ChatID, report)
}

func (r *Router) handleReset(ctx context.Context, m Message) {
	if !r.guard(m, "reset") {
		return
	}
	r.send(m.ChatID, r.repo.ResetChanges(ctx).Message)
}

func (r *Router) handleID(m Message) {
	username := m.Username
	if username == "" {
		username = "N/A"
	}
	r.send(m.ChatID, fmt.Sprintf("👤 Your profile:\n\n• ID: %d\n• Name: %s\n• Username: @%s", m.SenderID, m.SenderName, username))
}

func (r *Router) handlePin(m Message, code string) {
	if !r.guard(m, "pin") {
		return
	}
	if code == "" {
		r.send(m.ChatID, "Usage: /pin <code>")
		return
	}
	if !r.gate.Unlock(m.SenderID, code) {
		r.send(m.ChatID, "❌ Wrong PIN.")
		return
	}
	until := r.gate.UnlockedUntil()
	r.send(m.ChatID, fmt.Sprintf("🔓 Unlocked until %s (%s).", until.Format("2006-01-02 15:04"), r.gate.TTL().Round(time.Minute)))
}

func (r *Router) handleUnknown(m Message) {
	if !r.guard(m, "") {
		return
	}
	r.send(m.ChatID, "Unknown command. Use /help to see the available commands.")
}

func (r *Router) handleInstruction(ctx context.Context, m Message, instruction string) {
	if !r.guard(m, "") {
		return
	}

	requestID := uuid.NewString()
	msgID := r.send(m.ChatID, "🤔 Analyzing the instruction...")
	report, _ := r.pipeline.Run(ctx, requestID, instruction, func(progress string) {
		r.edit(m.ChatID, msgID, progress)
	})
	r.edit(m.ChatID, msgID, report)
}
