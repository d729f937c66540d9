package intent

import (
	"context"

	"github.com/rs/zerolog"
)

// Result is what one processed reply produced.
type Result struct {
	Display    string
	Extraction Extraction
	Outcome    *Outcome
}

// Processor runs a model reply through extraction, execution and annotation.
type Processor struct {
	dispatcher *Dispatcher
	log        zerolog.Logger
}

// NewProcessor creates a Processor that executes commands with d.
func NewProcessor(d *Dispatcher, log zerolog.Logger) *Processor {
	return &Processor{dispatcher: d, log: log}
}

// Process handles one reply. At most one command is executed. Malformed
// debris is stripped without telling the user; the skipped command is only
// logged.
func (p *Processor) Process(ctx context.Context, reply, actor string) Result {
	ex := Extract(reply)

	switch ex.State {
	case Absent:
		return Result{Display: Annotate(reply, ex, nil), Extraction: ex}
	case Malformed:
		p.log.Warn().Int("fragments", len(ex.Spans)).Msg("dropping malformed command")
		return Result{Display: Annotate(reply, ex, nil), Extraction: ex}
	}

	raw := *ex.Raw
	if raw.Actor == "" {
		raw.Actor = actor
	}
	p.log.Debug().Str("kind", string(raw.Kind)).Str("method", ex.Method).Msg("command extracted")

	outcome := p.dispatcher.Execute(ctx, raw)
	return Result{
		Display:    Annotate(reply, ex, &outcome),
		Extraction: ex,
		Outcome:    &outcome,
	}
}
