package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the tables registered in the meta table",
		Long: `Discover the tables registered in the meta table and print their keys
and columns. Tables that are not ACTIVE are skipped.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(rootOpts, cmd)
		},
	}

	return cmd
}

func runTables(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	cat, err := s.catalog(ctx)
	if err != nil {
		return err
	}

	data := []any{}
	var lines []string
	for _, name := range cat.Names() {
		t, _ := cat.Table(name)
		schema := t.Schema()

		columns := []any{}
		var cols []string
		for _, a := range schema.Attributes() {
			columns = append(columns, map[string]any{"name": a.Name, "kind": string(a.Kind)})
			cols = append(cols, a.Name+":"+string(a.Kind))
		}
		entry := map[string]any{
			"name":     name,
			"hash_key": schema.HashKey(),
			"columns":  columns,
		}
		keys := "hash=" + schema.HashKey()
		if sk := schema.SortKey(); sk != "" {
			entry["sort_key"] = sk
			keys += " sort=" + sk
		}
		data = append(data, entry)
		lines = append(lines, fmt.Sprintf("%s (%s): %s", name, keys, strings.Join(cols, ", ")))
	}

	if len(lines) == 0 {
		lines = append(lines, "No tables registered in "+s.cfg.MetaTable)
	}
	return s.out.Success(data, strings.Join(lines, "\n"))
}
