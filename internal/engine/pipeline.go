package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/yangwenmai/sitebook/internal/intent"
)

// historyLimit caps how many earlier messages are replayed to the model.
const historyLimit = 20

// ErrEmptyMessage is returned for a turn without user text.
var ErrEmptyMessage = errors.New("message is empty")

// Turn is one user message together with the conversation so far.
type Turn struct {
	ProjectID string
	Message   string
	History   []Message
	Actor     string
}

// TurnResult is what the user sees after a turn, plus the executed command's
// outcome if there was one.
type TurnResult struct {
	Reply      string            `json:"reply"`
	Outcome    *intent.Outcome   `json:"outcome,omitempty"`
	Extraction intent.Extraction `json:"-"`
	RawReply   string            `json:"-"`
}

// StepContext carries data between steps of one turn.
type StepContext struct {
	Turn     *Turn
	System   string
	RawReply string
	Result   *intent.Result
}

// Messages returns the conversation to send to the model: the system prompt,
// the recent history and the new user message.
func (sc *StepContext) Messages() []Message {
	history := sc.Turn.History
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	out := make([]Message, 0, len(history)+2)
	if sc.System != "" {
		out = append(out, Message{Role: RoleSystem, Content: sc.System})
	}
	for _, m := range history {
		if m.Role == RoleUser || m.Role == RoleAssistant {
			out = append(out, m)
		}
	}
	return append(out, Message{Role: RoleUser, Content: sc.Turn.Message})
}

// Step is one stage of a turn.
type Step interface {
	Name() string
	Run(ctx context.Context, sc *StepContext) error
}

// Pipeline runs the steps of a turn in order.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a pipeline from the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Run executes all steps for the turn. On failure it returns a *StepError
// naming the step that failed; later steps do not run.
func (p *Pipeline) Run(ctx context.Context, turn *Turn) (*TurnResult, error) {
	if strings.TrimSpace(turn.Message) == "" {
		return nil, ErrEmptyMessage
	}
	sc := &StepContext{Turn: turn}
	for _, s := range p.steps {
		if err := s.Run(ctx, sc); err != nil {
			return nil, &StepError{Step: s.Name(), Err: err}
		}
	}

	res := &TurnResult{Reply: sc.RawReply, RawReply: sc.RawReply}
	if sc.Result != nil {
		res.Reply = sc.Result.Display
		res.Outcome = sc.Result.Outcome
		res.Extraction = sc.Result.Extraction
	}
	return res, nil
}

// StepError wraps an error with the step name that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StepName returns the name of the failed step.
func (e *StepError) StepName() string {
	return e.Step
}
