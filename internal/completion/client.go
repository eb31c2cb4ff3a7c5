package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"botcursor/internal/config"
	"botcursor/internal/logging"
	"botcursor/internal/workspace"
)

// Options tune context building and sampling.
type Options struct {
	Params       Params
	MaxFileChars int
	MaxMainFiles int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Params:       Params{Temperature: 0.7, MaxOutputTokens: 8192, TopP: 0.9},
		MaxFileChars: 2000,
		MaxMainFiles: 5,
	}
}

// Client turns instructions into file operations using one backend.
type Client struct {
	backend      Backend
	ws           *workspace.Workspace
	params       Params
	maxFileChars int
	maxMainFiles int
}

// NewClient creates a client for ws.
func NewClient(backend Backend, ws *workspace.Workspace, opts Options) *Client {
	def := DefaultOptions()
	if opts.MaxFileChars <= 0 {
		opts.MaxFileChars = def.MaxFileChars
	}
	if opts.MaxMainFiles <= 0 {
		opts.MaxMainFiles = def.MaxMainFiles
	}
	if opts.Params.MaxOutputTokens <= 0 {
		opts.Params.MaxOutputTokens = def.Params.MaxOutputTokens
	}
	return &Client{
		backend:      backend,
		ws:           ws,
		params:       opts.Params,
		maxFileChars: opts.MaxFileChars,
		maxMainFiles: opts.MaxMainFiles,
	}
}

// Process asks the backend for a plan. It blocks for the whole round trip and
// reports every failure through the result, never as a Go error.
func (c *Client) Process(ctx context.Context, instruction string, relevantFiles []string) CompletionResult {
	startTime := time.Now()
	userContext := c.buildContext(instruction, relevantFiles)
	logging.CompletionDebug("Process: backend=%s model=%s context_len=%d", c.backend.Name(), c.backend.GetModel(), len(userContext))

	text, err := c.backend.Complete(ctx, systemPreamble, userContext, c.params)
	if err != nil {
		logging.CompletionError("Process: backend %s failed after %v: %v", c.backend.Name(), time.Since(startTime), err)
		if isQuotaError(err) {
			return CompletionResult{Error: quotaMessage(c.backend.Name(), c.backend.GetModel())}
		}
		return CompletionResult{Error: fmt.Sprintf("%s backend error: %v", c.backend.Name(), err)}
	}

	result := ParseResponse(text)
	logging.Completion("Process: success=%v operations=%d in %v", result.Success, len(result.Operations), time.Since(startTime))
	return result
}

// isQuotaError recognizes rate-limit and exhausted-quota signals from any
// backend.
func isQuotaError(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED") {
		return true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && (apiErrPtr.Code == http.StatusTooManyRequests || apiErrPtr.Status == "RESOURCE_EXHAUSTED") {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "resourceexhausted") ||
		strings.Contains(msg, "quota")
}

// quotaMessage suggests a cheaper model for the backend that ran out, unless
// that model is the one that just failed.
func quotaMessage(backend, model string) string {
	spec, ok := config.LookupProvider(backend)
	if !ok || spec.FallbackModel == "" || spec.ModelEnv == "" || spec.FallbackModel == model {
		return fmt.Sprintf("%s quota exceeded. Wait a moment and try again.", backend)
	}
	return fmt.Sprintf("%s quota exceeded. Try a model with free-tier capacity via `%s=%s`, or enable billing on your account.",
		backend, spec.ModelEnv, spec.FallbackModel)
}
