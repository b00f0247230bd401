package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dynaql/internal/attr"
	"github.com/roach88/dynaql/internal/table"
)

// NewMetaCommand creates the meta command group.
func NewMetaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Manage the meta table",
		Long: `The meta table holds one item per readable table: TABLE_NAME plus one
attribute per column whose value is the column kind (N, S or B).`,
	}

	cmd.AddCommand(newMetaCreateCommand(rootOpts))
	cmd.AddCommand(newMetaAddTableCommand(rootOpts))

	return cmd
}

func newMetaCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "create",
		Short:         "Create the meta table",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if err := table.CreateMetaTable(ctx, s.backend, s.cfg.MetaTable); err != nil {
				return s.out.Fail(ExitCommandError, ErrCodeStore, err)
			}
			return s.out.Success(
				map[string]any{"meta_table": s.cfg.MetaTable},
				"Created meta table "+s.cfg.MetaTable,
			)
		},
	}
}

// MetaAddTableOptions holds flags for meta add-table.
type MetaAddTableOptions struct {
	*RootOptions
	Columns []string
}

func newMetaAddTableCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MetaAddTableOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add-table <name>",
		Short: "Register a table's columns in the meta table",
		Long: `Register a table's columns in the meta table. Every column is given as
name:KIND with KIND one of N, S or B. The key columns must be listed too.

Example:
  dynaql meta add-table orders --column id:S --column created:N --column total:N`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetaAddTable(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringArrayVarP(&opts.Columns, "column", "c", nil, "column as name:KIND (repeatable)")
	_ = cmd.MarkFlagRequired("column")

	return cmd
}

func runMetaAddTable(opts *MetaAddTableOptions, name string, cmd *cobra.Command) error {
	attrs, err := parseColumns(opts.Columns)
	if err != nil {
		out := newFormatter(opts.RootOptions, cmd)
		return out.Fail(ExitCommandError, ErrCodeGeneric, err)
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if err := table.AddTableSchema(ctx, s.backend, s.cfg.MetaTable, name, attrs); err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeStore, err)
	}
	return s.out.Success(
		map[string]any{"table": name, "meta_table": s.cfg.MetaTable, "columns": len(attrs)},
		fmt.Sprintf("Registered %s with %d column(s) in %s", name, len(attrs), s.cfg.MetaTable),
	)
}

// parseColumns parses name:KIND column specs.
func parseColumns(specs []string) ([]attr.Attribute, error) {
	seen := make(map[string]bool, len(specs))
	attrs := make([]attr.Attribute, 0, len(specs))
	for _, spec := range specs {
		name, kind, ok := strings.Cut(spec, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("column %q: want name:KIND", spec)
		}
		k, err := attr.ParseKind(name, strings.TrimSpace(kind))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", spec, err)
		}
		if seen[name] {
			return nil, fmt.Errorf("column %s declared twice", name)
		}
		seen[name] = true
		attrs = append(attrs, attr.Attribute{Name: name, Kind: k})
	}
	return attrs, nil
}
