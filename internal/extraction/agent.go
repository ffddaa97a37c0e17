// Package extraction drives the model through one forced add_to_database call.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"unicode/utf8"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/clinicaleventflow/internal/schema"
)

// Model is the slice of *genai.GenerativeModel the agent needs. The model must
// already carry schema.Tool() and a tool config forcing that tool.
type Model interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Config holds agent settings.
type Config struct {
	// DirectiveTemplate overrides DefaultDirective. It must reference {{.Record}}.
	DirectiveTemplate string
	Logger            *slog.Logger
}

// Agent performs single-shot extractions. It is safe for concurrent use.
type Agent struct {
	model     Model
	directive *template.Template
	validator *schema.Validator
	logger    *slog.Logger
}

// Result is a completed attempt.
type Result struct {
	State       State
	Transitions []State
	Arguments   map[string]any
}

// NewAgent creates an Agent for model.
func NewAgent(model Model, cfg Config) (*Agent, error) {
	text := cfg.DirectiveTemplate
	if strings.TrimSpace(text) == "" {
		text = DefaultDirective
	}
	if !strings.Contains(text, ".Record") {
		return nil, fmt.Errorf("directive template must reference {{.Record}}")
	}
	directive, err := template.New("directive").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse directive template: %w", err)
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Agent{
		model:     model,
		directive: directive,
		validator: validator,
		logger:    logger,
	}, nil
}

// Prompt renders the directive for record.
func (a *Agent) Prompt(record string) (string, error) {
	var b strings.Builder
	if err := a.directive.Execute(&b, struct{ Record string }{record}); err != nil {
		return "", fmt.Errorf("failed to render directive: %w", err)
	}
	return b.String(), nil
}

// Extract sends record to the model and returns the arguments of its single
// add_to_database call. Every other outcome is a *ProtocolError.
func (a *Agent) Extract(ctx context.Context, record string) (*Result, error) {
	prompt, err := a.Prompt(record)
	if err != nil {
		return nil, err
	}

	m := newMachine()
	fail := func(cause error, reason string) (*Result, error) {
		from := m.current
		m.to(StateFailed)
		a.logger.Error("Extraction failed.", "state", from.String(), "error", cause, "reason", reason)
		return &Result{State: StateFailed, Transitions: m.trail}, &ProtocolError{State: from, Reason: reason, Err: cause}
	}

	m.to(StateRequested)
	a.logger.Info("Calling model to extract events.", "recordChars", len(record))
	resp, err := a.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrTransport, err), "")
	}

	m.to(StateAwaitingToolCall)
	call, reason, cause := interpret(resp)
	if cause != nil {
		return fail(cause, reason)
	}
	if err := a.validator.Validate(call.Args); err != nil {
		return fail(ErrMalformedArguments, err.Error())
	}

	m.to(StateToolCallReceived)
	a.logger.Info("Received tool call from model.", "tool", call.Name)
	m.to(StateDone)

	return &Result{State: StateDone, Transitions: m.trail, Arguments: call.Args}, nil
}

// interpret picks the single declared tool call out of a response.
func interpret(resp *genai.GenerateContentResponse) (*genai.FunctionCall, string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, "response has no candidates", ErrNoToolCall
	}

	var (
		calls []genai.FunctionCall
		text  strings.Builder
	)
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.FunctionCall:
			calls = append(calls, p)
		case *genai.FunctionCall:
			calls = append(calls, *p)
		case genai.Text:
			text.WriteString(string(p))
		}
	}

	switch {
	case len(calls) == 0 && strings.TrimSpace(text.String()) != "":
		return nil, truncate(strings.TrimSpace(text.String()), 200), ErrFreeText
	case len(calls) == 0:
		return nil, "", ErrNoToolCall
	case len(calls) > 1:
		return nil, fmt.Sprintf("%d calls", len(calls)), ErrMultipleToolCalls
	case calls[0].Name != schema.ToolName:
		return nil, calls[0].Name, ErrUndeclaredTool
	}
	return &calls[0], "", nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
