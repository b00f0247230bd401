package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/dynaql/internal/filterir"
	"github.com/roach88/dynaql/internal/pushdown"
)

// FilterOptions holds the flags shared by commands that read a table
// through a filter.
type FilterOptions struct {
	*RootOptions
	Table  string
	Filter string
}

func (o *FilterOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Table, "table", "t", "", "table to read (required)")
	cmd.Flags().StringVarP(&o.Filter, "filter", "f", "", "YAML filter file; omit to read every row")
	_ = cmd.MarkFlagRequired("table")
}

// predicate loads the filter file. No file means no filter.
func (o *FilterOptions) predicate(out *OutputFormatter) (filterir.Predicate, error) {
	if o.Filter == "" {
		return nil, nil
	}
	pred, err := filterir.ParseFile(o.Filter)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeFilter, err)
	}
	return pred, nil
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Print the access plan for a filter",
		Long: `Translate a filter against a discovered table and print the plan
without reading any rows.

Example:
  dynaql explain --table orders --filter by_customer.yaml
  dynaql explain -t orders -f range.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, cmd)
		},
	}
	opts.register(cmd)

	return cmd
}

func runExplain(opts *FilterOptions, cmd *cobra.Command) error {
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
	s.out.VerboseLog("Filter: %s", filterir.Format(pred))

	p, err := t.Plan(pred)
	if err != nil {
		return s.out.Fail(ExitFailure, ErrCodeFilter, err)
	}
	return s.out.Success(planData(opts.Table, p), p.String())
}

// planData is the JSON form of a plan.
func planData(name string, p *pushdown.Plan) map[string]any {
	return map[string]any{
		"table":          name,
		"access":         string(p.Access()),
		"key_conditions": nonNil(p.KeyConditions),
		"filters":        nonNil(p.Filters),
		"values":         p.ValueMap(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
