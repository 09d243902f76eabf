// Package session drives one explorer session through connect, browse,
// generate and run. Every transition takes the current State and returns the
// next one; a failed transition returns the prior state with an error notice.
package session

import (
	"errors"
	"slices"

	"github.com/insightdeck/insightdeck/internal/chart"
	"github.com/insightdeck/insightdeck/internal/profile"
	"github.com/insightdeck/insightdeck/internal/questions"
	"github.com/insightdeck/insightdeck/internal/warehouse"
)

var (
	ErrInvalidState = errors.New("invalid session state")
	ErrNotFound     = errors.New("not found")
)

type Phase string

const (
	PhaseDisconnected   Phase = "disconnected"
	PhaseConnected      Phase = "connected"
	PhaseSchemaSelected Phase = "schema_selected"
	PhaseTableSelected  Phase = "table_selected"
	PhaseQuestionsReady Phase = "questions_ready"
	PhaseResultRendered Phase = "result_rendered"
)

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

const maxLogLines = 500

type State struct {
	Phase     Phase                        `json:"phase"`
	Dialect   string                       `json:"dialect,omitempty"`
	Schemas   []string                     `json:"schemas"`
	Schema    string                       `json:"schema,omitempty"`
	Tables    []string                     `json:"tables"`
	Table     string                       `json:"table,omitempty"`
	Columns   []warehouse.ColumnMeta       `json:"columns,omitempty"`
	Sample    *warehouse.TableResult       `json:"sample,omitempty"`
	Summaries []profile.ColumnSummary      `json:"summaries,omitempty"`
	Questions []questions.BusinessQuestion `json:"questions"`
	// Selected is the index of the question behind Result, or -1.
	Selected int                    `json:"selected"`
	Result   *warehouse.TableResult `json:"result,omitempty"`
	Artifact *chart.Artifact        `json:"artifact,omitempty"`
	Notices  []Notice               `json:"notices"`
	Logs     []string               `json:"logs"`

	client warehouse.Client
}

// New returns the state of a session that has never connected.
func New() State {
	return State{Phase: PhaseDisconnected, Selected: -1}
}

func (s State) Connected() bool {
	return s.client != nil
}

func (s State) TableRef() warehouse.TableRef {
	return warehouse.TableRef{Schema: s.Schema, Table: s.Table}
}

func (s State) Question(index int) (questions.BusinessQuestion, error) {
	if index < 0 || index >= len(s.Questions) {
		return questions.BusinessQuestion{}, ErrNotFound
	}
	return s.Questions[index], nil
}

func (s State) withNotice(level NoticeLevel, message string) State {
	s.Notices = append(slices.Clip(s.Notices), Notice{Level: level, Message: message})
	return s
}

// failed returns prev with its notices replaced by a single error notice.
func (s State) failed(err error) State {
	s.Notices = []Notice{{Level: NoticeError, Message: err.Error()}}
	return s
}

func (s State) appendLogs(lines []string) State {
	if len(lines) == 0 {
		return s
	}
	logs := append(slices.Clone(s.Logs), lines...)
	if over := len(logs) - maxLogLines; over > 0 {
		logs = logs[over:]
	}
	s.Logs = logs
	return s
}

// clearFrom drops everything downstream of phase.
func (s State) clearFrom(phase Phase) State {
	switch phase {
	case PhaseConnected:
		s.Schema = ""
		s.Tables = nil
		fallthrough
	case PhaseSchemaSelected:
		s.Table = ""
		s.Columns = nil
		s.Sample = nil
		s.Summaries = nil
		fallthrough
	case PhaseTableSelected:
		s.Questions = nil
		fallthrough
	case PhaseQuestionsReady:
		s.Selected = -1
		s.Result = nil
		s.Artifact = nil
	}
	s.Phase = phase
	return s
}
