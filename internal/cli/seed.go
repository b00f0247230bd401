package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dynaql/internal/fixture"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <fixture.cue>",
		Short: "Create and fill tables from a CUE fixture",
		Long: `Create the meta table if needed, then create every table the fixture
declares, register its schema and write its items.

Example:
  dynaql seed --local-path ./dev.db testdata/orders.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runSeed(opts *RootOptions, path string, cmd *cobra.Command) error {
	fx, err := fixture.LoadFile(path)
	if err != nil {
		out := newFormatter(opts, cmd)
		return out.Fail(ExitCommandError, ErrCodeFixture, err)
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if err := fx.Seed(ctx, s.backend, s.cfg.MetaTable, s.logger); err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeStore, err)
	}

	tables := []any{}
	items := 0
	for _, t := range fx.Tables {
		tables = append(tables, map[string]any{"name": t.Name, "items": len(t.Items)})
		items += len(t.Items)
	}
	return s.out.Success(
		map[string]any{"meta_table": s.cfg.MetaTable, "tables": tables},
		fmt.Sprintf("Seeded %d table(s) with %d item(s)", len(fx.Tables), items),
	)
}
