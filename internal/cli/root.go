package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/erpseed/internal/provision"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// IDs overrides the session id generator (for testing).
	// If nil, defaults to provision.UUIDv7Generator.
	IDs provision.IDGenerator

	// Now overrides the wall clock (for testing). If nil, defaults to
	// time.Now.
	Now func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the erpseed CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "erpseed",
		Short: "Idempotent ERP/CRM seed data provisioner",
		Long: `Provision companies, roles, users and operational ERP/CRM data into a
site database. Every command can be re-run: records are looked up first
and only created when missing.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags. Site location flags are read through the config layer.
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigFile, "config", "", "config file (default ./erpseed.yaml)")
	pf.String("site", "galaxy.local", "site name")
	pf.String("sites-dir", "sites", "directory holding <site>.db files")
	pf.String("db", "", "explicit SQLite database path (overrides --site)")
	pf.String("schema-dir", "", "directory of extra .cue kind definitions")
	pf.Bool("abort-on-failure", false, "roll back the whole session if any record fails")

	cmd.AddCommand(NewCompaniesCommand(opts))
	cmd.AddCommand(NewRolesCommand(opts))
	cmd.AddCommand(NewERPCRMCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewKindsCommand(opts))
	cmd.AddCommand(NewSessionsCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))

	return cmd
}

func (o *RootOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
