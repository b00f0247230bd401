package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dynaql/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dynaql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dynaql",
		Short: "dynaql - relational filters on a key-value store",
		Long: `Push relational filters down to a partitioned key-value store.

Filters are translated into native key conditions and filter expressions,
planned as queries when every disjunct pins the hash key and as a single
scan otherwise, then drained page by page.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (yaml, json or toml)")

	// Store flags are read through config.Load, which binds them by name.
	flags.String("region", config.DefaultRegion, "remote store region")
	flags.String("endpoint", "", "remote endpoint override, e.g. http://localhost:8031")
	flags.String("local-path", "", "use the embedded SQLite store at this path")
	flags.String("meta-table", config.DefaultMetaTable, "table describing every other table")
	flags.Int("page-size", config.DefaultPageSize, "items evaluated per request")
	flags.Float64("max-rps", 0, "read requests per second, 0 for unlimited")
	flags.String("log-level", config.DefaultLogLevel, "log level (debug|info|warn|error)")
	flags.String("log-format", config.DefaultLogFormat, "log format (text|json)")

	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewTablesCommand(opts))
	cmd.AddCommand(NewMetaCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
