package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/erpseed/internal/plan"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Plan     string         `json:"plan"`
	Valid    bool           `json:"valid"`
	Records  int            `json:"records"`
	Problems []plan.Problem `json:"problems,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan.yaml>",
		Short: "Check a plan against the kind schemas without a database",
		Long: `Check every record of a plan as if it were being created: the kind must
be known, lookup values must be scalars that agree with desired, and the
record must satisfy its kind schema. Parent references are not checked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			return e.validatePlan(args[0])
		},
	}
}

func (e *env) validatePlan(path string) error {
	reg, err := e.registry()
	if err != nil {
		return err
	}
	p, err := plan.Load(path)
	if err != nil {
		return e.out.fail(ExitCommandError, ErrCodePlanLoad, "failed to load plan", err, nil)
	}

	problems := p.Validate(reg)
	result := ValidationResult{
		Plan:     p.Name,
		Valid:    len(problems) == 0,
		Records:  p.Len(),
		Problems: problems,
	}

	if len(problems) > 0 {
		for _, problem := range problems {
			e.out.Text("  %s", problem)
		}
		return e.out.fail(ExitFailure, ErrCodePlanInvalid,
			fmt.Sprintf("plan %s has %d problem(s)", p.Name, len(problems)), nil, result)
	}

	if e.out.JSON() {
		return e.out.Success(result)
	}
	e.out.Text("Plan %s is valid: %d record(s) in %d batch(es)", p.Name, p.Len(), len(p.Batches))
	return nil
}
