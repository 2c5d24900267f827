package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/erpseed/internal/catalog"
)

// NewCompaniesCommand creates the companies command.
func NewCompaniesCommand(rootOpts *RootOptions) *cobra.Command {
	var skipFuture bool

	cmd := &cobra.Command{
		Use:   "companies",
		Short: "Provision the Galaxy Holding company structure",
		Long: `Provision the holding, its subsidiaries and their default cost center,
warehouse and intercompany accounts. Inactive placeholder companies for
planned expansion are created once unless --skip-future is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			p := catalog.Companies(catalog.CompaniesOptions{
				SkipFuture: skipFuture,
				Today:      rootOpts.now().Format(time.DateOnly),
			})
			return e.provisionPlan(commandContext(cmd), p, e.cfg.AbortOnFailure)
		},
	}

	cmd.Flags().BoolVar(&skipFuture, "skip-future", false, "skip inactive placeholder companies")
	return cmd
}

// NewRolesCommand creates the roles command.
func NewRolesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "Provision roles, permissions and users",
		Long: `Provision the organizational roles, one Custom DocPerm per role and
doctype, and the staff users with their role lists. A user's roles are
replaced on every run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			return e.provisionPlan(commandContext(cmd), catalog.Roles(catalog.RolesOptions{}), e.cfg.AbortOnFailure)
		},
	}
}

// NewERPCRMCommand creates the erp-crm command.
func NewERPCRMCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "erp-crm",
		Short: "Provision operational ERP and CRM data",
		Long: `Provision customers and contacts, suppliers, items, projects, the CRM
pipeline, the default BOM and the Verifactu invoice webhook.

The webhook is enabled only when an API key is supplied, through
--verifactu-api-key, VERIFACTU_API_KEY or verifactu.api_key in the
config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			key := e.cfg.Verifactu.APIKey
			if key == "" {
				e.logger.Warn("no Verifactu API key provided, webhook created disabled")
			}
			p := catalog.ERPCRM(catalog.ERPCRMOptions{VerifactuAPIKey: key})
			return e.provisionPlan(commandContext(cmd), p, e.cfg.AbortOnFailure)
		},
	}

	cmd.Flags().String("verifactu-api-key", "", "sandbox API key for the Verifactu webhook")
	return cmd
}
