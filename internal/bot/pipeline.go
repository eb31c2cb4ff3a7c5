package bot

import (
	"context"
	"fmt"
	"strings"

	"botcursor/internal/completion"
	"botcursor/internal/logging"
	"botcursor/internal/ops"
	"botcursor/internal/vcs"
)

// maxInstructionDiff bounds the diff shown after a successful apply.
const maxInstructionDiff = 1500

// Processor produces a plan for an instruction.
type Processor interface {
	Process(ctx context.Context, instruction string, relevantFiles []string) completion.CompletionResult
}

// Repository is the subset of the git gateway the bot uses.
type Repository interface {
	Branch() string
	Status(ctx context.Context) vcs.Result
	Diff(ctx context.Context, staged bool) vcs.Result
	DetailedDiff(ctx context.Context, maxLines int) vcs.Result
	Deploy(ctx context.Context, message string) vcs.Result
	ResetChanges(ctx context.Context) vcs.Result
	LastCommitURL(ctx context.Context, remoteWebURL string) string
}

// Pipeline runs one instruction end to end: plan, apply, and undo on any
// failure.
type Pipeline struct {
	processor Processor
	applier   *ops.Applier
	repo      Repository
}

// NewPipeline creates a pipeline.
func NewPipeline(processor Processor, applier *ops.Applier, repo Repository) *Pipeline {
	return &Pipeline{processor: processor, applier: applier, repo: repo}
}

// Run executes instruction. progress receives intermediate reports; the
// returned text is the final report and ok is false when the instruction
// failed.
func (p *Pipeline) Run(ctx context.Context, requestID, instruction string, progress func(string)) (report string, ok bool) {
	logging.Bot("[%s] Processing instruction (%d chars)", requestID, len(instruction))

	result := p.processor.Process(ctx, instruction, nil)
	if !result.Success {
		logging.BotWarn("[%s] Completion failed: %s", requestID, result.Error)
		errText := result.Error
		if errText == "" {
			errText = "Could not process this instruction"
		}
		return "❌ Error:\n" + errText, false
	}

	if len(result.Operations) == 0 {
		return "No file changes proposed.\n\n" + result.Explanation, true
	}

	progress(plannedReport(result))

	batch := p.applier.Apply(result.Operations)
	if batch.OK() {
		logging.Bot("[%s] Applied %d operations", requestID, len(batch.Outcomes))
		return successReport(batch, p.repo.Diff(ctx, false).Message), true
	}

	logging.BotWarn("[%s] %d of %d operations failed, rolling back", requestID, len(batch.Failed()), len(batch.Outcomes))
	p.applier.Rollback(result.Operations)

	var undoProblems []string
	if res := p.repo.ResetChanges(ctx); !res.OK {
		logging.BotError("[%s] Reset after failed batch: %s", requestID, res.Message)
		undoProblems = append(undoProblems, res.Message)
	}
	if err := batch.Restore(); err != nil {
		logging.BotError("[%s] Restore after failed batch: %v", requestID, err)
		undoProblems = append(undoProblems, fmt.Sprintf("Restoring files failed: %v", err))
	}
	return failureReport(batch, undoProblems), false
}

func plannedReport(result completion.CompletionResult) string {
	var b strings.Builder
	b.WriteString("🔧 Planned changes:\n")
	for _, op := range result.Operations {
		fmt.Fprintf(&b, "• %s: %s", op.Action, op.FilePath)
		if op.Description != "" {
			b.WriteString(" - " + op.Description)
		}
		b.WriteString("\n")
	}
	if result.Explanation != "" {
		b.WriteString("\n" + result.Explanation + "\n")
	}
	b.WriteString("\n⏳ Applying...")
	return b.String()
}

func successReport(batch *ops.Batch, diff string) string {
	var b strings.Builder
	b.WriteString("✨ Changes applied!\n\n")
	for _, o := range batch.Outcomes {
		fmt.Fprintf(&b, "✅ %s: %s\n", o.Action, o.Path)
	}
	if r := []rune(diff); len(r) > maxInstructionDiff {
		diff = string(r[:maxInstructionDiff])
	}
	fmt.Fprintf(&b, "\nDiff:\n```\n%s\n```\n\n", diff)
	b.WriteString("💡 Use /deploy to push or /reset to undo.")
	return b.String()
}

func failureReport(batch *ops.Batch, undoProblems []string) string {
	var b strings.Builder
	b.WriteString("❌ Failed to apply changes:\n\n")
	for _, o := range batch.Outcomes {
		mark := "✅"
		if !o.Success {
			mark = "❌"
		}
		fmt.Fprintf(&b, "%s %s: %s", mark, o.Action, o.Path)
		if o.Error != "" {
			b.WriteString(" - " + o.Error)
		}
		b.WriteString("\n")
	}
	if len(undoProblems) == 0 {
		b.WriteString("\n↩️ The changes were undone.")
		return b.String()
	}
	b.WriteString("\n⚠️ The changes could not be fully undone:\n")
	for _, p := range undoProblems {
		b.WriteString("• " + p + "\n")
	}
	b.WriteString("\nCheck /status and use /reset to clean up.")
	return b.String()
}
