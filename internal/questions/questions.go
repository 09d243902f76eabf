package questions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/insightdeck/insightdeck/internal/observability"
	"github.com/insightdeck/insightdeck/internal/warehouse"
)

// ErrGeneration covers every failure between building the prompt and holding
// a validated question list: transport, provider, and response-shape errors.
var ErrGeneration = errors.New("question generation failed")

// Count is the number of questions the model is asked for.
const Count = 5

const defaultPromptRows = 5

type BusinessQuestion struct {
	QuestionText      string `json:"question_text"`
	SQLQuery          string `json:"sql_query"`
	VisualizationType string `json:"visualization_type"`
}

type CompletionRequest struct {
	Prompt      string
	Temperature float64
}

type Completion struct {
	Content string
	Model   string
	Usage   observability.TokenUsage
}

// Completer sends one single-turn prompt to a language model.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	Model() string
}

type Options struct {
	Temperature      float64
	PromptSampleRows int
	Logger           *slog.Logger
}

type Generator struct {
	completer   Completer
	temperature float64
	promptRows  int
	logger      *slog.Logger
}

func NewGenerator(completer Completer, opts Options) *Generator {
	rows := opts.PromptSampleRows
	if rows <= 0 {
		rows = defaultPromptRows
	}
	return &Generator{
		completer:   completer,
		temperature: opts.Temperature,
		promptRows:  rows,
		logger:      opts.Logger,
	}
}

type AnalyzeRequest struct {
	Table   warehouse.TableRef
	Columns []warehouse.ColumnMeta
	Sample  warehouse.TableResult
}

// Analyze asks the model for candidate business questions about one table.
// There is no retry and no repair of malformed output.
func (g *Generator) Analyze(ctx context.Context, req AnalyzeRequest) ([]BusinessQuestion, error) {
	logger := observability.LoggerFromContext(ctx, g.logger).With(slog.String("table", req.Table.Qualified()))
	if g.completer == nil {
		return nil, fmt.Errorf("%w: no language model configured", ErrGeneration)
	}
	if req.Table.Schema == "" || req.Table.Table == "" {
		return nil, fmt.Errorf("%w: schema and table are required", ErrGeneration)
	}

	prompt := BuildPrompt(req.Table, req.Columns, req.Sample.Head(g.promptRows))
	logger.InfoContext(ctx, "sending question generation request",
		slog.String("model", g.completer.Model()),
		slog.Int("prompt_length", len(prompt.Text)),
		slog.Int("schema_description_length", len(prompt.SchemaText)),
		slog.Int("sample_description_length", len(prompt.SampleText)),
	)

	start := time.Now()
	completion, err := g.completer.Complete(ctx, CompletionRequest{Prompt: prompt.Text, Temperature: g.temperature})
	observability.ObserveLLMRequest(g.completer.Model(), time.Since(start), completion.Usage, err)
	if err != nil {
		logger.ErrorContext(ctx, "language model request failed",
			slog.String("error_type", fmt.Sprintf("%T", err)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	logger.InfoContext(ctx, "received question generation response",
		slog.String("model", completion.Model),
		slog.Int("response_length", len(completion.Content)),
		slog.Int("completion_tokens", completion.Usage.Completion),
		slog.Int("prompt_tokens", completion.Usage.Prompt),
		slog.Int("total_tokens", completion.Usage.Total),
	)

	parsed, err := ParseQuestions(completion.Content)
	if err != nil {
		logger.ErrorContext(ctx, "model response rejected", slog.String("error", err.Error()))
		return nil, err
	}
	if len(parsed) != Count {
		logger.WarnContext(ctx, "unexpected question count", slog.Int("count", len(parsed)), slog.Int("requested", Count))
	}
	for i, question := range parsed {
		if !ReferencesTable(question.SQLQuery, req.Table) {
			logger.WarnContext(ctx, "generated query does not reference the qualified table",
				slog.Int("index", i),
				slog.String("sql", question.SQLQuery),
			)
		}
	}
	return parsed, nil
}
