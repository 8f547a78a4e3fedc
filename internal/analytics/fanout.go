package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/narration-service/internal/core"
)

// Fanout forwards every record to each of its sinks in order. A failing sink
// does not stop the others; their errors are joined.
type Fanout struct {
	sinks []core.AnalyticsSink
}

// NewFanout creates a Fanout over the non-nil sinks.
func NewFanout(sinks ...core.AnalyticsSink) *Fanout {
	kept := make([]core.AnalyticsSink, 0, len(sinks))

	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}

	return &Fanout{sinks: kept}
}

// RecordSynthesis forwards metrics to every sink.
func (f *Fanout) RecordSynthesis(ctx context.Context, metrics core.SynthesisMetrics) error {
	return f.each(func(sink core.AnalyticsSink) error {
		return sink.RecordSynthesis(ctx, metrics)
	})
}

// RecordError forwards the failure to every sink.
func (f *Fanout) RecordError(ctx context.Context, message string, errCtx core.ErrorContext) error {
	return f.each(func(sink core.AnalyticsSink) error {
		return sink.RecordError(ctx, message, errCtx)
	})
}

func (f *Fanout) each(record func(core.AnalyticsSink) error) error {
	var errs []error

	for index, sink := range f.sinks {
		err := callSink(sink, record)
		if err != nil {
			errs = append(errs, fmt.Errorf("sink %d (%T): %w", index, sink, err))
		}
	}

	return errors.Join(errs...)
}

// callSink turns a panicking sink into an error so later sinks still run.
func callSink(sink core.AnalyticsSink, record func(core.AnalyticsSink) error) (err error) {
	defer func() {
		recovered := recover()
		if recovered != nil {
			err = fmt.Errorf("%w: %v", ErrSinkPanicked, recovered)
		}
	}()

	return record(sink)
}
