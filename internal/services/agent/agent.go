// Package agent runs a ReAct-style tool loop over a text completion model.
// An Agent is immutable after construction; every call owns its scratchpad,
// so one instance serves concurrent requests.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

const (
	DefaultMaxIterations = 5

	// IterationLimitOutput is returned as the output when the loop runs out of iterations
	IterationLimitOutput = "Agent stopped due to iteration limit or time limit."
)

// Agent implements AnalysisAgent
type Agent struct {
	llm           interfaces.CompletionClient
	tools         []Tool
	prompt        string
	maxIterations int
	timeout       time.Duration
	logger        arbor.ILogger
}

var _ interfaces.AnalysisAgent = (*Agent)(nil)

// Option configures an Agent at construction
type Option func(*Agent)

// WithMaxIterations caps the number of model calls per run
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithTimeout bounds a whole run. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.timeout = d
	}
}

// WithLogger sets the logger
func WithLogger(logger arbor.ILogger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// New creates an agent over a completion model and a fixed tool set.
func New(llm interfaces.CompletionClient, tools []Tool, opts ...Option) *Agent {
	a := &Agent{
		llm:           llm,
		tools:         append([]Tool(nil), tools...),
		maxIterations: DefaultMaxIterations,
		logger:        arbor.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.prompt = basePrompt(a.tools)
	return a
}

// Analyze asks the agent to analyze a ticker and returns its final answer,
// decoded as JSON when possible.
func (a *Agent) Analyze(ctx context.Context, ticker, query string) (any, error) {
	if strings.TrimSpace(query) == "" {
		query = models.DefaultAnalysisQuery
	}
	input := fmt.Sprintf("Analyze the company with ticker %s. %s", ticker, query)

	run, err := a.Run(ctx, input)
	if err != nil {
		return nil, err
	}
	return ParseFinalAnswer(run.Output), nil
}

// Run drives the Thought/Action/Observation loop until the model gives a
// final answer or the iteration limit is reached.
func (a *Agent) Run(ctx context.Context, input string) (*models.AgentRun, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	run := &models.AgentRun{}
	var scratchpad strings.Builder

	for run.Iterations < a.maxIterations {
		run.Iterations++

		prompt := renderPrompt(a.prompt, input, scratchpad.String())
		text, err := a.llm.Complete(ctx, prompt, []string{stopSequence})
		if err != nil {
			return nil, fmt.Errorf("%s completion failed: %w", a.llm.Name(), err)
		}

		act, answer, done, err := parseOutput(text)
		if err != nil {
			return nil, err
		}
		if done {
			run.Output = answer
			a.logger.Info().
				Str("model", a.llm.Name()).
				Int("iterations", run.Iterations).
				Int("tool_calls", len(run.Steps)).
				Msg("Agent finished")
			return run, nil
		}

		observation, err := a.invoke(ctx, act)
		if err != nil {
			return nil, err
		}
		run.Steps = append(run.Steps, models.AgentStep{
			Thought:     thoughtOf(text),
			Tool:        act.Tool,
			ToolInput:   act.Input,
			Observation: observation,
		})

		scratchpad.WriteString(act.Log)
		scratchpad.WriteString("\nObservation: ")
		scratchpad.WriteString(observation)
		scratchpad.WriteString("\nThought: ")
	}

	a.logger.Warn().Str("model", a.llm.Name()).Int("iterations", run.Iterations).Msg("Agent hit iteration limit")
	run.Output = IterationLimitOutput
	run.Stopped = true
	return run, nil
}

func (a *Agent) invoke(ctx context.Context, act *action) (string, error) {
	for _, t := range a.tools {
		if t.Name == act.Tool {
			a.logger.Debug().Str("tool", t.Name).Str("input", act.Input).Msg("Agent tool call")
			out, err := t.Run(ctx, act.Input)
			if err != nil {
				return "", fmt.Errorf("tool %s failed: %w", t.Name, err)
			}
			return out, nil
		}
	}
	_, names := renderTools(a.tools)
	return fmt.Sprintf("%s is not a valid tool, try one of [%s].", act.Tool, names), nil
}

// thoughtOf returns the text before the first Action line.
func thoughtOf(text string) string {
	if i := strings.Index(text, "Action"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
