package cli

import (
	"cmp"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/erpseed/internal/ir"
	"github.com/roach88/erpseed/internal/plan"
	"github.com/roach88/erpseed/internal/schema"
	"github.com/roach88/erpseed/internal/store"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export [kind...]",
		Short: "Write stored records as a plan",
		Long: `Write stored records as a YAML plan that apply reads back. Each record's
natural key becomes its lookup and the remaining fields its desired values.
Kinds without a natural key are skipped.

With no kinds, every stored kind is exported. Kinds are ordered by their
first created record, so parents come before the records that refer to
them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			reg, err := e.registry()
			if err != nil {
				return err
			}
			st, err := e.openStore(false)
			if err != nil {
				return err
			}
			defer e.closeStore(st)

			p, err := e.exportPlan(cmd, st, reg, args)
			if err != nil {
				return e.out.fail(ExitCommandError, ErrCodeStore, "failed to export records", err, nil)
			}
			return e.writePlan(p, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the plan to a file instead of stdout")
	return cmd
}

func (e *env) exportPlan(cmd *cobra.Command, st *store.Store, reg *schema.Registry, kinds []string) (*plan.Plan, error) {
	ctx := commandContext(cmd)
	if len(kinds) == 0 {
		counts, err := st.Kinds(ctx)
		if err != nil {
			return nil, err
		}
		for _, kc := range counts {
			kinds = append(kinds, kc.Kind)
		}
	}

	type exported struct {
		batch plan.Batch
		first int64
	}
	var batches []exported
	for _, name := range kinds {
		kind, ok := reg.Lookup(name)
		if !ok || len(kind.Key) == 0 {
			e.logger.Warn("kind has no natural key, skipped", "kind", name)
			continue
		}
		records, err := st.List(ctx, name, nil)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			continue
		}
		slices.SortFunc(records, func(a, b ir.Record) int { return cmp.Compare(a.ID, b.ID) })

		b := plan.Batch{Name: name}
		for _, rec := range records {
			b.Records = append(b.Records, exportSpec(kind, rec))
		}
		batches = append(batches, exported{batch: b, first: records[0].ID})
	}
	slices.SortStableFunc(batches, func(a, b exported) int { return cmp.Compare(a.first, b.first) })

	p := &plan.Plan{
		Name:        "export-" + e.cfg.Site,
		Description: fmt.Sprintf("Records exported from %s", e.cfg.Site),
	}
	for _, b := range batches {
		p.Batches = append(p.Batches, b.batch)
	}
	return p, nil
}

func exportSpec(kind *schema.Kind, rec ir.Record) ir.RecordSpec {
	lookup := ir.Fields{}
	desired := rec.Fields.Clone()
	for _, k := range kind.Key {
		if v, ok := rec.Fields[k]; ok {
			lookup[k] = v
			delete(desired, k)
		}
	}
	return ir.RecordSpec{Kind: rec.Kind, Lookup: lookup, Desired: desired}
}

func (e *env) writePlan(p *plan.Plan, output string) error {
	if output == "" {
		if e.out.JSON() {
			return e.out.Success(p)
		}
		return plan.Write(e.out.Writer, p)
	}

	f, err := os.Create(output)
	if err != nil {
		return e.out.fail(ExitCommandError, ErrCodeGeneric, "failed to create output file", err, nil)
	}
	if err := plan.Write(f, p); err != nil {
		f.Close()
		return e.out.fail(ExitCommandError, ErrCodeGeneric, "failed to write plan", err, nil)
	}
	if err := f.Close(); err != nil {
		return e.out.fail(ExitCommandError, ErrCodeGeneric, "failed to write plan", err, nil)
	}

	e.logger.Info("plan exported", "file", output, "records", p.Len())
	if e.out.JSON() {
		return e.out.Success(map[string]any{"file": output, "records": p.Len()})
	}
	e.out.Text("Exported %d record(s) to %s", p.Len(), output)
	return nil
}
