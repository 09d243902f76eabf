// Package insightdeckctl is the command-line client for the InsightDeck API.
package insightdeckctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL    string
	APIKey     string
	SessionID  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type renderFunc func(w io.Writer, raw []byte) error

// Run executes one command and returns the process exit code: 0 on success,
// 1 when the request fails, 2 on usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	root := newRootCommand(defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var requestErr *requestError
	if errors.As(err, &requestErr) {
		_, _ = fmt.Fprintln(stderr, requestErr.Error())
		return 1
	}
	_, _ = fmt.Fprintf(stderr, "error: %v\n\n", err)
	_, _ = fmt.Fprint(stderr, root.UsageString())
	return 2
}

// requestError marks failures that happened after the command line was
// accepted.
type requestError struct {
	err error
}

func (e *requestError) Error() string {
	var apiErr *apiError
	if errors.As(e.err, &apiErr) {
		return apiErr.Error()
	}
	return "request failed: " + e.err.Error()
}

func (e *requestError) Unwrap() error { return e.err }

func newRootCommand(defaults Options) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "insightdeckctl",
		Short:         "Drive an InsightDeck exploration session from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "YAML config file with base_url, api_key, session_id, timeout, output")
	flags.String("base-url", "", "InsightDeck API base URL (default "+defaultBaseURL+")")
	flags.String("api-key", "", "API key sent as X-API-Key")
	flags.String("session-id", "", "session identifier sent as X-Session-ID (ignored when the key is bound to a session)")
	flags.Duration("timeout", 0, "HTTP timeout, e.g. 90s")
	flags.StringP("output", "o", "", "output format: table or json")

	client := func(cmd *cobra.Command) (*apiClient, error) {
		settings, err := loadSettings(defaults, configFile, cmd.Flags())
		if err != nil {
			return nil, err
		}
		httpClient := defaults.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: settings.Timeout}
		}
		return &apiClient{http: httpClient, settings: settings}, nil
	}

	call := func(method, path string, body any, render renderFunc) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			c, err := client(cmd)
			if err != nil {
				return err
			}
			raw, err := c.do(cmd.Context(), method, path, body)
			if err != nil {
				var apiErr *apiError
				if errors.As(err, &apiErr) && c.settings.Output == "table" {
					// Failed transitions still return the session; show its notices.
					var env sessionEnvelope
					if decodeErr := decodeSession(raw, &env); decodeErr == nil {
						renderNotices(cmd.ErrOrStderr(), env.Session.Notices)
					}
				}
				return &requestError{err: err}
			}
			if c.settings.Output == "json" || render == nil {
				return writeJSON(cmd.OutOrStdout(), raw)
			}
			return render(cmd.OutOrStdout(), raw)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "health",
			Short: "GET /v1/health",
			Args:  cobra.NoArgs,
			RunE:  call(http.MethodGet, "/v1/health", nil, renderStatus),
		},
		&cobra.Command{
			Use:   "ready",
			Short: "GET /v1/ready",
			Args:  cobra.NoArgs,
			RunE:  call(http.MethodGet, "/v1/ready", nil, renderStatus),
		},
		&cobra.Command{
			Use:   "state",
			Short: "Show the current session",
			Args:  cobra.NoArgs,
			RunE:  call(http.MethodGet, "/v1/session", nil, renderSession),
		},
		&cobra.Command{
			Use:   "logs",
			Short: "Print the session log panel",
			Args:  cobra.NoArgs,
			RunE:  call(http.MethodGet, "/v1/session", nil, renderLogs),
		},
		&cobra.Command{
			Use:   "connect",
			Short: "Connect the session to the configured warehouse",
			Args:  cobra.NoArgs,
			RunE:  call(http.MethodPost, "/v1/session/connect", nil, renderSession),
		},
		&cobra.Command{
			Use:   "disconnect",
			Short: "Close the warehouse connection and reset the session",
			Args:  cobra.NoArgs,
			RunE:  call(http.MethodDelete, "/v1/session", nil, renderSession),
		},
		&cobra.Command{
			Use:   "schema NAME",
			Short: "Select a schema",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(http.MethodPut, "/v1/session/schema", map[string]string{"schema": args[0]}, renderSession)(cmd, args)
			},
		},
		&cobra.Command{
			Use:   "table NAME",
			Short: "Select a table and load its structure and sample",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(http.MethodPut, "/v1/session/table", map[string]string{"table": args[0]}, renderSession)(cmd, args)
			},
		},
		&cobra.Command{
			Use:   "generate",
			Short: "Ask the language model for business questions about the selected table",
			Args:  cobra.NoArgs,
			RunE:  call(http.MethodPost, "/v1/session/questions", nil, renderSession),
		},
		&cobra.Command{
			Use:   "run N",
			Short: "Run question N (1-based) and show its result",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				index, err := questionIndex(args[0])
				if err != nil {
					return err
				}
				return call(http.MethodPost, fmt.Sprintf("/v1/session/questions/%d/run", index), nil, renderSession)(cmd, args)
			},
		},
		&cobra.Command{
			Use:   "export N",
			Short: "Export the result of question N (1-based) to object storage as Parquet",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				index, err := questionIndex(args[0])
				if err != nil {
					return err
				}
				return call(http.MethodPost, fmt.Sprintf("/v1/session/questions/%d/export", index), nil, renderExport)(cmd, args)
			},
		},
		&cobra.Command{
			Use:   "clear-logs",
			Short: "Empty the session log panel",
			Args:  cobra.NoArgs,
			RunE:  call(http.MethodDelete, "/v1/session/logs", nil, renderSession),
		},
	)
	return root
}

// questionIndex converts a 1-based question number to the API's 0-based index.
func questionIndex(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("question number must be a positive integer, got %q", raw)
	}
	return n - 1, nil
}
