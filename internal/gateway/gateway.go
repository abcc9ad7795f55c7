package gateway

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joacominatel/ciphersql/internal/database"
)

// Messages shown to the submitter.
const (
	EmptyQueryMessage = "Query cannot be empty"
	PolicyMessage     = "Only safe SELECT queries are allowed"
)

// Query is one submission. It lives only for the request.
type Query struct {
	Text string
	// Expected is the grading set. Nil means absent or malformed.
	Expected []string
}

// Response is the shaped result plus its correctness verdict.
type Response struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"rowCount"`
	IsCorrect bool             `json:"isCorrect"`
	// ColumnTypes holds the server type name per column, "" when unknown.
	ColumnTypes []string      `json:"-"`
	Duration    time.Duration `json:"-"`
}

// Gateway runs the validate, execute, shape, check pipeline.
type Gateway struct {
	executor *Executor
	logger   *slog.Logger
}

// New creates a gateway around executor.
func New(executor *Executor, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gateway{executor: executor, logger: logger}
}

// Run processes q. Input and policy failures return before any database
// contact. Every failure is one of the gateway error types.
func (g *Gateway) Run(ctx context.Context, q Query) (*Response, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, &ErrInput{Message: EmptyQueryMessage}
	}

	verdict := Validate(q.Text)
	if !verdict.Allowed {
		g.logger.Info("query rejected", slog.String("reason", verdict.Reason))
		return nil, &ErrPolicy{Reason: verdict.Reason}
	}

	start := time.Now()
	raw, err := g.executor.Execute(ctx, verdict.Statement)
	elapsed := time.Since(start)
	if err != nil {
		g.logger.Info("query failed",
			slog.String("class", Classify(err).String()),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()))
		g.logger.Debug("failed statement", slog.String("statement", verdict.Statement))
		return nil, err
	}

	result := Shape(raw)
	result.Duration = elapsed
	resp := fromResult(result, Check(result.Columns, q.Expected))

	g.logger.Info("query executed",
		slog.Int("rows", resp.RowCount),
		slog.Duration("duration", elapsed),
		slog.Bool("graded", q.Expected != nil),
		slog.Bool("correct", resp.IsCorrect))
	return resp, nil
}

func fromResult(r *database.QueryResult, correct bool) *Response {
	return &Response{
		Columns:     r.Columns,
		Rows:        r.Rows,
		RowCount:    r.RowCount,
		IsCorrect:   correct,
		ColumnTypes: r.ColumnTypes,
		Duration:    r.Duration,
	}
}
