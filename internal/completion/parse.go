package completion

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/muhammadmuzzammil1998/jsonc"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"botcursor/internal/ops"
)

//go:embed response.schema.json
var responseSchemaJSON []byte

const responseSchemaURL = "mem://schemas/completion-response.schema.json"

var (
	compileOnce    sync.Once
	responseSchema *jsonschema.Schema
	compileErr     error
)

func getResponseSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(responseSchemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("decode response schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(responseSchemaURL, doc); err != nil {
			compileErr = fmt.Errorf("register response schema: %w", err)
			return
		}
		responseSchema, compileErr = c.Compile(responseSchemaURL)
	})
	return responseSchema, compileErr
}

// CompletionResult is the parsed outcome of one instruction.
type CompletionResult struct {
	Success     bool
	Operations  []ops.FileOperation
	Explanation string
	Error       string
}

func failure(format string, args ...any) CompletionResult {
	return CompletionResult{Error: fmt.Sprintf(format, args...)}
}

type rawResponse struct {
	Success     *bool          `json:"success"`
	Explanation *string        `json:"explanation"`
	Error       *string        `json:"error"`
	Operations  []rawOperation `json:"operations"`
}

type rawOperation struct {
	Action      *string `json:"action"`
	FilePath    *string `json:"file_path"`
	Content     *string `json:"content"`
	Description *string `json:"description"`
}

// stripFences removes a surrounding ```json or ``` markdown fence.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// ParseResponse decodes the backend's reply. Malformed input never panics;
// it yields a failed result quoting the start of the reply.
func ParseResponse(text string) CompletionResult {
	cleaned := []byte(stripFences(text))

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(cleaned))
	if err != nil {
		relaxed := jsonc.ToJSON(cleaned)
		var relaxedErr error
		instance, relaxedErr = jsonschema.UnmarshalJSON(bytes.NewReader(relaxed))
		if relaxedErr != nil {
			return failure("failed to parse response: %v\nResponse: %s", err, excerpt(string(cleaned), 200))
		}
		cleaned = relaxed
	}

	schema, err := getResponseSchema()
	if err != nil {
		return failure("response schema unavailable: %v", err)
	}
	if err := schema.Validate(instance); err != nil {
		return failure("response has an unexpected shape: %v\nResponse: %s", err, excerpt(string(cleaned), 200))
	}

	var raw rawResponse
	if err := json.Unmarshal(cleaned, &raw); err != nil {
		return failure("failed to parse response: %v\nResponse: %s", err, excerpt(string(cleaned), 200))
	}

	result := CompletionResult{
		Success:     raw.Success != nil && *raw.Success,
		Explanation: deref(raw.Explanation, ""),
		Error:       deref(raw.Error, ""),
	}
	if !result.Success {
		if result.Error == "" {
			result.Error = "the model reported a failure without details"
			if result.Explanation != "" {
				result.Error = result.Explanation
			}
		}
		return result
	}

	result.Operations = make([]ops.FileOperation, 0, len(raw.Operations))
	for _, op := range raw.Operations {
		result.Operations = append(result.Operations, ops.FileOperation{
			Action:      ops.Action(deref(op.Action, string(ops.ActionModify))),
			FilePath:    deref(op.FilePath, ""),
			Content:     op.Content,
			Description: deref(op.Description, ""),
		})
	}
	return result
}

func deref(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
