package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/erpseed/internal/ir"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var where []string

	cmd := &cobra.Command{
		Use:   "show <kind>",
		Short: "List stored records of a kind",
		Long: `List stored records of a kind in creation order.

Each --where k=v narrows the list to records whose field k equals v.
Values that parse as integers match Int fields, true and false match
Bool fields, and anything else matches strings.

Example:
  erpseed show Company
  erpseed show "Cost Center" --where company="Galaxy Bio"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			filters, err := parseWhere(where)
			if err != nil {
				return NewExitError(ExitCommandError, err.Error())
			}

			st, err := e.openStore(false)
			if err != nil {
				return err
			}
			defer e.closeStore(st)

			records, err := st.List(commandContext(cmd), args[0], filters)
			if err != nil {
				return e.out.fail(ExitCommandError, ErrCodeStore, "failed to list records", err, nil)
			}
			return e.writeRecords(records)
		},
	}

	cmd.Flags().StringArrayVar(&where, "where", nil, "field filter k=v (repeatable)")
	return cmd
}

func (e *env) writeRecords(records []ir.Record) error {
	if e.out.JSON() {
		return e.out.Success(records)
	}
	for _, rec := range records {
		body, err := ir.MarshalCanonical(rec.Fields)
		if err != nil {
			return fmt.Errorf("record %d: %w", rec.ID, err)
		}
		e.out.Text("#%d seq=%d %s", rec.ID, rec.Seq, body)
	}
	e.out.Text("%d record(s)", len(records))
	return nil
}

// parseWhere turns k=v arguments into lookup filters.
func parseWhere(args []string) (ir.Fields, error) {
	filters := ir.Fields{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --where %q: want field=value", arg)
		}
		if _, dup := filters[k]; dup {
			return nil, fmt.Errorf("duplicate --where field %q", k)
		}
		filters[k] = whereValue(v)
	}
	return filters, nil
}

func whereValue(s string) ir.Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ir.Int(n)
	}
	switch s {
	case "true":
		return ir.Bool(true)
	case "false":
		return ir.Bool(false)
	}
	return ir.Str(s)
}

// NewKindsCommand creates the kinds command.
func NewKindsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "Count stored records per kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			st, err := e.openStore(false)
			if err != nil {
				return err
			}
			defer e.closeStore(st)

			counts, err := st.Kinds(commandContext(cmd))
			if err != nil {
				return e.out.fail(ExitCommandError, ErrCodeStore, "failed to count records", err, nil)
			}
			if e.out.JSON() {
				return e.out.Success(counts)
			}

			tw := tabwriter.NewWriter(e.out.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tCOUNT")
			for _, kc := range counts {
				fmt.Fprintf(tw, "%s\t%d\n", kc.Kind, kc.Count)
			}
			return tw.Flush()
		},
	}
}
