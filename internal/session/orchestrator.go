package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/insightdeck/insightdeck/internal/chart"
	"github.com/insightdeck/insightdeck/internal/observability"
	"github.com/insightdeck/insightdeck/internal/profile"
	"github.com/insightdeck/insightdeck/internal/questions"
	"github.com/insightdeck/insightdeck/internal/warehouse"
)

const (
	noSchemasMessage = "No schemas found in the database."
	noTablesMessage  = "No tables found in schema '%s'"
)

// Connector opens a new warehouse connection for a session.
type Connector func(ctx context.Context) (warehouse.Client, error)

type Generator interface {
	Analyze(ctx context.Context, req questions.AnalyzeRequest) ([]questions.BusinessQuestion, error)
}

type Options struct {
	SampleRows   int
	QueryTimeout time.Duration
	// LogLevel is the minimum level copied into the session log panel.
	LogLevel slog.Leveler
	Logger   *slog.Logger
}

type Orchestrator struct {
	connect      Connector
	generator    Generator
	sampleRows   int
	queryTimeout time.Duration
	logLevel     slog.Leveler
	logger       *slog.Logger
}

func NewOrchestrator(connect Connector, generator Generator, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	level := opts.LogLevel
	if level == nil {
		level = slog.LevelInfo
	}
	rows := opts.SampleRows
	if rows <= 0 {
		rows = warehouse.DefaultSampleRows
	}
	return &Orchestrator{
		connect:      connect,
		generator:    generator,
		sampleRows:   rows,
		queryTimeout: opts.QueryTimeout,
		logLevel:     level,
		logger:       logger,
	}
}

// Connect opens a fresh connection and lists schemas. An existing connection
// is replaced only once the new one is usable.
func (o *Orchestrator) Connect(ctx context.Context, prev State) (State, error) {
	logger := observability.LoggerFromContext(ctx, o.logger)
	if o.connect == nil {
		err := fmt.Errorf("%w: no warehouse configured", warehouse.ErrConnection)
		return prev.failed(err), err
	}

	client, err := o.connect(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "warehouse connect failed", slog.String("error", err.Error()))
		return prev.failed(err), err
	}
	schemas, err := client.ListSchemas(ctx)
	if err != nil {
		_ = client.Close()
		return prev.failed(err), err
	}

	if prev.client != nil {
		if closeErr := prev.client.Close(); closeErr != nil {
			logger.WarnContext(ctx, "closing previous warehouse connection failed", slog.String("error", closeErr.Error()))
		}
	}

	next := New()
	next.Phase = PhaseConnected
	next.Dialect = client.Dialect()
	next.Logs = prev.Logs
	next.client = client
	next.Schemas = schemas
	if len(schemas) == 0 {
		return next.withNotice(NoticeWarning, noSchemasMessage), nil
	}
	logger.InfoContext(ctx, "session connected", slog.String("dialect", next.Dialect), slog.Int("schemas", len(schemas)))
	return next.withNotice(NoticeInfo, fmt.Sprintf("Connected, %d schemas available", len(schemas))), nil
}

// Disconnect closes the connection. The log panel survives.
func (o *Orchestrator) Disconnect(ctx context.Context, prev State) (State, error) {
	if prev.client != nil {
		if err := prev.client.Close(); err != nil {
			observability.LoggerFromContext(ctx, o.logger).WarnContext(ctx, "closing warehouse connection failed", slog.String("error", err.Error()))
		}
	}
	next := New()
	next.Logs = prev.Logs
	return next.withNotice(NoticeInfo, "Disconnected"), nil
}

func (o *Orchestrator) SelectSchema(ctx context.Context, prev State, schema string) (State, error) {
	if prev.client == nil {
		err := fmt.Errorf("%w: connect before selecting a schema", ErrInvalidState)
		return prev.failed(err), err
	}
	if !slices.Contains(prev.Schemas, schema) {
		err := fmt.Errorf("%w: schema %q", ErrNotFound, schema)
		return prev.failed(err), err
	}
	if schema == prev.Schema {
		prev.Notices = nil
		return prev, nil
	}

	tables, err := prev.client.ListTables(ctx, schema)
	if err != nil {
		return prev.failed(err), err
	}

	next := prev.clearFrom(PhaseSchemaSelected)
	next.Schema = schema
	next.Tables = tables
	next.Notices = nil
	if len(tables) == 0 {
		return next.withNotice(NoticeWarning, fmt.Sprintf(noTablesMessage, schema)), nil
	}
	return next, nil
}

func (o *Orchestrator) SelectTable(ctx context.Context, prev State, table string) (State, error) {
	if prev.client == nil || prev.Schema == "" {
		err := fmt.Errorf("%w: select a schema before selecting a table", ErrInvalidState)
		return prev.failed(err), err
	}
	if !slices.Contains(prev.Tables, table) {
		err := fmt.Errorf("%w: table %q in schema %q", ErrNotFound, table, prev.Schema)
		return prev.failed(err), err
	}
	if table == prev.Table {
		prev.Notices = nil
		return prev, nil
	}

	columns, err := prev.client.GetColumns(ctx, prev.Schema, table)
	if err != nil {
		return prev.failed(err), err
	}
	sample, err := prev.client.GetSample(ctx, prev.Schema, table, o.sampleRows)
	if err != nil {
		return prev.failed(err), err
	}

	next := prev.clearFrom(PhaseTableSelected)
	next.Table = table
	next.Columns = columns
	next.Sample = &sample
	next.Summaries = profile.Summarize(sample)
	next.Notices = nil
	return next, nil
}

// Generate asks the model for questions about the selected table. The
// generator's log output is copied into the session log panel whether or not
// the call succeeds.
func (o *Orchestrator) Generate(ctx context.Context, prev State) (State, error) {
	if prev.client == nil || prev.Table == "" || prev.Sample == nil {
		err := fmt.Errorf("%w: select a table before generating questions", ErrInvalidState)
		return prev.failed(err), err
	}
	if o.generator == nil {
		err := fmt.Errorf("%w: no language model configured", questions.ErrGeneration)
		return prev.failed(err), err
	}

	captureLogger, buf := observability.CaptureLogger(observability.LoggerFromContext(ctx, o.logger), o.logLevel)
	generated, err := o.generator.Analyze(observability.ContextWithLogger(ctx, captureLogger), questions.AnalyzeRequest{
		Table:   prev.TableRef(),
		Columns: prev.Columns,
		Sample:  *prev.Sample,
	})
	prev = prev.appendLogs(buf.Lines())
	if err != nil {
		return prev.failed(err), err
	}

	next := prev.clearFrom(PhaseQuestionsReady)
	next.Questions = generated
	next.Notices = nil
	if len(generated) != questions.Count {
		next = next.withNotice(NoticeWarning, fmt.Sprintf("Expected %d questions, received %d", questions.Count, len(generated)))
	}
	return next, nil
}

// RunQuestion executes the question's SQL as written and renders the result.
func (o *Orchestrator) RunQuestion(ctx context.Context, prev State, index int) (State, error) {
	if prev.client == nil || len(prev.Questions) == 0 {
		err := fmt.Errorf("%w: generate questions before running one", ErrInvalidState)
		return prev.failed(err), err
	}
	question, err := prev.Question(index)
	if err != nil {
		err = fmt.Errorf("%w: question %d", err, index)
		return prev.failed(err), err
	}

	result, err := o.Execute(ctx, prev, question)
	if err != nil {
		return prev.failed(err), err
	}
	artifact := chart.Render(result, question.VisualizationType, question.QuestionText)

	next := prev.clearFrom(PhaseResultRendered)
	next.Selected = index
	next.Result = &result
	next.Artifact = &artifact
	next.Notices = nil
	if artifact.Error != "" {
		next = next.withNotice(NoticeError, artifact.Error)
	}
	if artifact.Warning != "" {
		next = next.withNotice(NoticeWarning, artifact.Warning)
	}
	return next, nil
}

// Execute runs a question against the session's connection without changing
// the session.
func (o *Orchestrator) Execute(ctx context.Context, st State, question questions.BusinessQuestion) (warehouse.TableResult, error) {
	if st.client == nil {
		return warehouse.TableResult{}, fmt.Errorf("%w: not connected", ErrInvalidState)
	}
	if o.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.queryTimeout)
		defer cancel()
	}
	return st.client.Execute(ctx, question.SQLQuery)
}

func (o *Orchestrator) ClearLogs(_ context.Context, prev State) (State, error) {
	prev.Logs = nil
	prev.Notices = nil
	return prev, nil
}
