package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/yangwenmai/sitebook/internal/intent"
)

// ContextStep builds the system prompt.
type ContextStep struct {
	Assembler *ContextAssembler
}

func (s *ContextStep) Name() string { return "context" }

func (s *ContextStep) Run(ctx context.Context, sc *StepContext) error {
	system, err := s.Assembler.Build(ctx, sc.Turn.ProjectID)
	if err != nil {
		return err
	}
	sc.System = system
	return nil
}

// ModelStep asks the model for a reply.
type ModelStep struct {
	Model ModelClient
}

func (s *ModelStep) Name() string { return "model" }

func (s *ModelStep) Run(ctx context.Context, sc *StepContext) error {
	reply, err := s.Model.Complete(ctx, sc.Messages())
	if err != nil {
		return err
	}
	if strings.TrimSpace(reply) == "" {
		return errors.New("empty reply from model")
	}
	sc.RawReply = reply
	return nil
}

// ApplyStep executes the command embedded in the reply, if any, and builds
// the text shown to the user.
type ApplyStep struct {
	Processor *intent.Processor
}

func (s *ApplyStep) Name() string { return "apply" }

func (s *ApplyStep) Run(ctx context.Context, sc *StepContext) error {
	res := s.Processor.Process(ctx, sc.RawReply, sc.Turn.Actor)
	sc.Result = &res
	return nil
}
