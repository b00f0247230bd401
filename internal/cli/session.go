package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/roach88/dynaql/internal/config"
	"github.com/roach88/dynaql/internal/dynamo"
	"github.com/roach88/dynaql/internal/logging"
	"github.com/roach88/dynaql/internal/table"
)

// session is the resolved state one command runs against.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend dynamo.Backend
	out     *OutputFormatter
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// openSession loads configuration, builds the stderr logger and opens the
// backend. Failures are reported through the formatter and come back as
// ExitErrors.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	out := newFormatter(opts, cmd)

	cfg, err := config.Load(opts.ConfigPath, cmd.Flags())
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	if opts.Verbose && !cmd.Flags().Changed("log-level") {
		cfg.LogLevel = "debug"
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, err)
	}

	backend, err := dynamo.Open(ctx, cfg, logger)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeStore, err)
	}
	out.VerboseLog("Using meta table %s", cfg.MetaTable)

	return &session{cfg: cfg, logger: logger, backend: backend, out: out}, nil
}

func (s *session) close() {
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend", "error", err)
	}
}

// table discovers the catalog and returns the named table.
func (s *session) table(ctx context.Context, name string) (*table.Table, error) {
	cat, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := cat.Table(name)
	if !ok {
		return nil, s.out.Fail(ExitCommandError, ErrCodeNotFound, &notFoundError{table: name, meta: s.cfg.MetaTable})
	}
	return t, nil
}

func (s *session) catalog(ctx context.Context) (*table.Catalog, error) {
	opts := []table.Option{
		table.WithLogger(s.logger),
		table.WithPageLimit(int32(s.cfg.PageSize)),
	}
	if s.cfg.MaxRPS > 0 {
		// One limiter for the whole command, shared by every table.
		opts = append(opts, table.WithLimiter(rate.NewLimiter(rate.Limit(s.cfg.MaxRPS), 1)))
	}
	cat, err := table.Discover(ctx, s.backend, s.cfg.MetaTable, opts...)
	if err != nil {
		return nil, s.out.Fail(ExitCommandError, ErrCodeStore, err)
	}
	return cat, nil
}

type notFoundError struct {
	table string
	meta  string
}

func (e *notFoundError) Error() string {
	return "table " + e.table + " is not registered in " + e.meta + " or is not active"
}
