package ops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"botcursor/internal/logging"
	"botcursor/internal/workspace"
)

// Applier writes operations into a workspace. Every path is resolved through
// the workspace guard before the filesystem is touched.
type Applier struct {
	ws *workspace.Workspace
}

// NewApplier creates an applier bound to ws.
func NewApplier(ws *workspace.Workspace) *Applier {
	return &Applier{ws: ws}
}

// preImage is a file's state before the batch first touched it.
type preImage struct {
	rel     string
	abs     string
	existed bool
	content []byte
	mode    fs.FileMode
}

// Batch is the result of one Apply call.
type Batch struct {
	Outcomes []OperationOutcome

	preImages []preImage
	seen      map[string]bool
}

// OK reports whether every operation succeeded. An empty batch is OK.
func (b *Batch) OK() bool {
	for _, o := range b.Outcomes {
		if !o.Success {
			return false
		}
	}
	return true
}

// Failed returns the outcomes that did not succeed.
func (b *Batch) Failed() []OperationOutcome {
	var failed []OperationOutcome
	for _, o := range b.Outcomes {
		if !o.Success {
			failed = append(failed, o)
		}
	}
	return failed
}

// Restore puts every touched file back the way it was before Apply: original
// content and mode for files that existed, removal for files that did not.
func (b *Batch) Restore() error {
	var errs []error
	for i := len(b.preImages) - 1; i >= 0; i-- {
		img := b.preImages[i]
		if !img.existed {
			if err := os.Remove(img.abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("remove %s: %w", img.rel, err))
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(img.abs), 0755); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", img.rel, err))
			continue
		}
		if err := os.WriteFile(img.abs, img.content, img.mode); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", img.rel, err))
			continue
		}
		if err := os.Chmod(img.abs, img.mode); err != nil {
			errs = append(errs, fmt.Errorf("chmod %s: %w", img.rel, err))
		}
	}
	if len(errs) == 0 {
		logging.Apply("Restored %d pre-images", len(b.preImages))
	}
	return errors.Join(errs...)
}

func (b *Batch) capture(rel, abs string) {
	if b.seen[abs] {
		return
	}
	info, err := os.Lstat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		b.preImages = append(b.preImages, preImage{rel: rel, abs: abs})
	case err != nil || !info.Mode().IsRegular():
		// Directories and special files are not restorable; leave them alone.
		return
	default:
		data, err := os.ReadFile(abs)
		if err != nil {
			logging.ApplyError("Failed to snapshot %s: %v", rel, err)
			return
		}
		b.preImages = append(b.preImages, preImage{
			rel:     rel,
			abs:     abs,
			existed: true,
			content: data,
			mode:    info.Mode().Perm(),
		})
	}
	b.seen[abs] = true
}

// Apply executes ops strictly in order. A failing operation is recorded in its
// outcome and never stops the rest of the batch.
func (a *Applier) Apply(ops []FileOperation) *Batch {
	timer := logging.StartTimer(logging.CategoryApply, "Apply")
	defer timer.Stop()

	b := &Batch{
		Outcomes: make([]OperationOutcome, 0, len(ops)),
		seen:     make(map[string]bool),
	}
	for _, op := range ops {
		b.Outcomes = append(b.Outcomes, a.applyOne(b, op))
	}

	failed := len(b.Failed())
	logging.Apply("Applied %d operations (%d failed)", len(ops), failed)
	return b
}

func (a *Applier) applyOne(b *Batch, op FileOperation) OperationOutcome {
	out := OperationOutcome{Path: a.ws.Normalize(op.FilePath), Action: op.Action}

	rel, abs, err := a.ws.Resolve(op.FilePath)
	if err != nil {
		out.Error = err.Error()
		logging.ApplyError("Rejected %s %q: %v", op.Action, op.FilePath, err)
		return out
	}
	out.Path = rel

	switch op.Action {
	case ActionDelete:
		if _, err := os.Lstat(abs); errors.Is(err, fs.ErrNotExist) {
			out.Error = "file not found"
			return out
		}
		b.capture(rel, abs)
		if err := os.Remove(abs); err != nil {
			out.Error = fmt.Sprintf("failed to delete: %v", err)
			return out
		}

	case ActionCreate, ActionModify:
		b.capture(rel, abs)
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			out.Error = fmt.Sprintf("failed to create directories: %v", err)
			return out
		}
		if err := os.WriteFile(abs, []byte(op.ContentOrEmpty()), 0644); err != nil {
			out.Error = fmt.Sprintf("failed to write file: %v", err)
			return out
		}

	default:
		out.Error = "unknown action"
		return out
	}

	logging.ApplyDebug("%s %s", op.Action, rel)
	out.Success = true
	return out
}

// Rollback deletes the target of every create operation that exists on disk.
// Modified files are left for the VCS reset and Batch.Restore.
func (a *Applier) Rollback(ops []FileOperation) []string {
	var removed []string
	for _, op := range ops {
		if op.Action != ActionCreate {
			continue
		}
		rel, abs, err := a.ws.Resolve(op.FilePath)
		if err != nil {
			continue
		}
		if _, err := os.Lstat(abs); err != nil {
			continue
		}
		if err := os.Remove(abs); err != nil {
			logging.ApplyError("Rollback failed for %s: %v", rel, err)
			continue
		}
		removed = append(removed, rel)
	}
	logging.Apply("Rollback removed %d created files", len(removed))
	return removed
}
