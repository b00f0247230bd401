package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dynaql/internal/canonical"
	"github.com/roach88/dynaql/internal/enumerator"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	FilterOptions
	Project  []string
	Parallel bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{FilterOptions: FilterOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a filter and print the matching rows",
		Long: `Plan a filter against a discovered table, drain every page and print
the rows, one canonical JSON value per line.

Interrupting the command stops the read after the current page; the rows
read so far are still printed.

Example:
  dynaql query --table orders --filter by_customer.yaml --project id,total
  dynaql query -t orders -f union.yaml --parallel --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringSliceVarP(&opts.Project, "project", "p", nil, "columns to read, comma separated (default all)")
	cmd.Flags().BoolVar(&opts.Parallel, "parallel", false, "drain each query disjunct concurrently")

	return cmd
}

func runQuery(opts *QueryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	pred, err := opts.predicate(s.out)
	if err != nil {
		return err
	}
	t, err := s.table(ctx, opts.Table)
	if err != nil {
		return err
	}

	cancel := enumerator.NewCancelFlag()
	stop := context.AfterFunc(ctx, cancel.Cancel)
	defer stop()

	// The drain context is not the command's: an interrupt sets the flag and
	// the enumerators finish cleanly instead of failing mid-request.
	exec, err := t.Execute(context.WithoutCancel(ctx), cancel, opts.Project, pred, opts.Parallel)
	if err != nil {
		return s.out.Fail(ExitFailure, ErrCodeStore, err)
	}
	s.out.VerboseLog("Execution %s: %d rows from %d requests", exec.ID, len(exec.Rows), exec.Requests)

	rows := exec.Rows
	if rows == nil {
		rows = []any{}
	}
	var text strings.Builder
	for i, row := range rows {
		data, err := canonical.Marshal(row)
		if err != nil {
			return s.out.Fail(ExitFailure, ErrCodeGeneric, err)
		}
		if i > 0 {
			text.WriteByte('\n')
		}
		text.Write(data)
	}
	if cancel.Cancelled() {
		s.logger.Warn("query interrupted", "execution", exec.ID, "rows", len(rows))
	}

	return s.out.Success(map[string]any{
		"table":     opts.Table,
		"execution": exec.ID,
		"access":    string(exec.Access),
		"requests":  exec.Requests,
		"cancelled": cancel.Cancelled(),
		"rows":      rows,
	}, text.String())
}
