package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/erpseed/internal/plan"
)

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <plan.yaml>",
		Short: "Provision the records of a YAML plan",
		Long: `Provision every record of a YAML plan, batch by batch, in one session.

The session rolls back when the plan sets abort_on_failure or
--abort-on-failure is given and any record fails.

Example:
  erpseed apply ./plans/companies.yaml
  erpseed apply --site staging.local --format json ./plans/roles.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			p, err := plan.Load(args[0])
			if err != nil {
				return e.out.fail(ExitCommandError, ErrCodePlanLoad, "failed to load plan", err, nil)
			}
			return e.provisionPlan(commandContext(cmd), p, e.cfg.AbortOnFailure || p.AbortOnFailure)
		},
	}
}
