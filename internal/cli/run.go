package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/roach88/erpseed/internal/plan"
	"github.com/roach88/erpseed/internal/provision"
)

// RunReport is the JSON payload of a provisioning command.
type RunReport struct {
	Plan string `json:"plan"`
	Site string `json:"site"`
	provision.Summary
}

// provisionPlan applies p to the site database in one session and
// reports every outcome.
func (e *env) provisionPlan(ctx context.Context, p *plan.Plan, abort bool) error {
	reg, err := e.registry()
	if err != nil {
		return err
	}
	st, err := e.openStore(true)
	if err != nil {
		return err
	}
	defer e.closeStore(st)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := provision.Options{
		Schema:         reg,
		AbortOnFailure: abort,
		IDs:            e.opts.IDs,
		Logger:         e.logger,
	}

	e.logger.Info("provisioning", "plan", p.Name, "records", p.Len())
	e.out.Text("Provisioning %s on %s", p.Name, e.cfg.Site)

	summary, err := provision.WithSession(ctx, provision.StoreOpener(st), opts,
		func(ctx context.Context, s *provision.Session) error {
			for _, b := range p.Batches {
				e.out.Text("\n[%s]", b.Name)
				e.logger.Debug("batch started", "batch", b.Name, "records", len(b.Records))
				for _, spec := range b.Records {
					_, out := s.Ensure(ctx, spec)
					e.out.Text("  %s", describeOutcome(out))
				}
			}
			return nil
		})
	if err != nil && provision.IsSetupFailure(err) {
		return e.out.fail(ExitCommandError, ErrCodeSessionSetup, "failed to begin session", err, nil)
	}

	report := RunReport{Plan: p.Name, Site: e.cfg.Site, Summary: summary}
	e.out.Text("\n%s", describeSummary(summary))

	switch {
	case !summary.Committed:
		return e.out.fail(ExitFailure, ErrCodeRolledBack, "session rolled back", err, report)
	case summary.Failed > 0:
		return e.out.fail(ExitFailure, ErrCodeRecordsFailed,
			fmt.Sprintf("%d record(s) failed", summary.Failed), nil, report)
	}

	if e.out.JSON() {
		return e.out.Success(report)
	}
	return nil
}

func describeOutcome(o provision.Outcome) string {
	switch {
	case o.Status == provision.StatusCreated:
		return fmt.Sprintf("+ created   %s (#%d)", o.Label, o.RecordID)
	case o.Status == provision.StatusUpdated && o.Changed:
		return fmt.Sprintf("~ updated   %s (#%d: %s)", o.Label, o.RecordID, strings.Join(o.ChangedFields, ", "))
	case o.Status == provision.StatusUpdated:
		return fmt.Sprintf("= unchanged %s (#%d)", o.Label, o.RecordID)
	case o.Err != nil:
		return fmt.Sprintf("! failed    %s: %s", o.Label, o.Err.Error())
	default:
		return fmt.Sprintf("! failed    %s", o.Label)
	}
}

func describeSummary(s provision.Summary) string {
	status := "committed"
	if !s.Committed {
		status = "rolled back"
	}
	return fmt.Sprintf("Session %s %s: %d created, %d updated, %d failed",
		s.SessionID, status, s.Created, s.Updated, s.Failed)
}
