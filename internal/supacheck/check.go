package supacheck

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Selector is the single capability the check needs from a database client.
type Selector interface {
	Select(ctx context.Context, table, columns string, limit int) (Response, error)
}

// Connector builds a Selector. Construction failures are part of the check.
type Connector func(ctx context.Context) (Selector, error)

// Target is the table read by the check.
type Target struct {
	Table   string
	Columns string
	Limit   int
}

// OutcomeKind tells which output channel a check result belongs to.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeReported
	OutcomeUnexpected
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeReported:
		return "reported error"
	case OutcomeUnexpected:
		return "unexpected error"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of one Check. Err is set for reported and
// unexpected outcomes.
type Outcome struct {
	Kind     OutcomeKind
	Response Response
	Err      error
	Duration time.Duration
}

// Check builds the client and runs one select against target. It never
// returns an error: every failure, including a panic inside the client, is
// folded into the Outcome.
func Check(ctx context.Context, connect Connector, target Target) (outcome Outcome) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "supacheck.Check", trace.WithAttributes(
		attribute.String("db.table", target.Table),
		attribute.String("db.columns", target.Columns),
		attribute.Int("db.limit", target.Limit),
	))
	defer func() {
		if r := recover(); r != nil {
			outcome = Outcome{Kind: OutcomeUnexpected, Err: fmt.Errorf("panic during check: %v", r)}
		}
		outcome.Duration = time.Since(start)
		annotateSpan(span, outcome)
		span.End()
	}()

	span.AddEvent("client.create")
	sel, err := connect(ctx)
	if err != nil {
		return Outcome{Kind: OutcomeUnexpected, Err: fmt.Errorf("create client: %w", err)}
	}
	if c, ok := sel.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	span.AddEvent("client.select")
	resp, err := sel.Select(ctx, target.Table, target.Columns, target.Limit)
	if err != nil {
		return Outcome{Kind: OutcomeUnexpected, Err: err}
	}
	if resp.Err != nil {
		return Outcome{Kind: OutcomeReported, Response: resp, Err: resp.Err}
	}

	if resp.Rows == nil {
		resp.Rows = make([]Row, 0)
	}
	if target.Limit > 0 && len(resp.Rows) > target.Limit {
		resp.Rows = resp.Rows[:target.Limit]
	}
	return Outcome{Kind: OutcomeOK, Response: resp}
}

func annotateSpan(span trace.Span, outcome Outcome) {
	span.SetAttributes(
		attribute.String("check.outcome", outcome.Kind.String()),
		attribute.Int("check.rows", len(outcome.Response.Rows)),
	)
	switch outcome.Kind {
	case OutcomeOK:
		span.SetStatus(codes.Ok, "success")
	case OutcomeReported:
		span.SetStatus(codes.Error, "reported error")
		span.RecordError(outcome.Err)
	default:
		span.SetStatus(codes.Error, "unexpected error")
		span.RecordError(outcome.Err)
	}
}

// ExitCode maps an outcome to a process exit code. Outside strict mode every
// outcome exits 0.
func ExitCode(outcome Outcome, strict bool) int {
	if !strict {
		return 0
	}
	switch outcome.Kind {
	case OutcomeOK:
		return 0
	case OutcomeReported:
		return 2
	default:
		return 1
	}
}
