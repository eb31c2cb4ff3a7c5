// Package ops applies model-proposed file operations to the workspace and
// undoes them when a batch fails.
package ops

// Action is the kind of change a FileOperation makes.
type Action string

const (
	ActionCreate Action = "create"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
)

// FileOperation is one change proposed by the completion backend. Content is
// nil for deletes and when the model omitted it.
type FileOperation struct {
	Action      Action  `json:"action"`
	FilePath    string  `json:"file_path"`
	Content     *string `json:"content,omitempty"`
	Description string  `json:"description"`
}

// ContentOrEmpty returns the content to write, "" when none was provided.
func (op FileOperation) ContentOrEmpty() string {
	if op.Content == nil {
		return ""
	}
	return *op.Content
}

// OperationOutcome records what happened to a single operation.
type OperationOutcome struct {
	Path    string
	Action  Action
	Success bool
	Error   string
}
