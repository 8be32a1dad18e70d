package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sjperalta/fintera-cuotas/internal/schedule"
	"github.com/spf13/cobra"
)

var (
	scheduleTotal        int64
	scheduleCount        int
	scheduleAnchor       string
	scheduleMaxFinancing int
	scheduleProduct      string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Preview an installment schedule",
	Long: `Builds a schedule offline and prints each installment with what may be edited.
Nothing is stored.`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().Int64Var(&scheduleTotal, "total", 0, "Amount to finance (required)")
	scheduleCmd.Flags().IntVar(&scheduleCount, "count", 1, "Number of installments")
	scheduleCmd.Flags().StringVar(&scheduleAnchor, "anchor", "", "First due date, YYYY-MM-DD (default today)")
	scheduleCmd.Flags().IntVar(&scheduleMaxFinancing, "max-financing", 0, "Maximum installments allowed for the product")
	scheduleCmd.Flags().StringVar(&scheduleProduct, "product", "Producto", "Product name used in labels")
	_ = scheduleCmd.MarkFlagRequired("total")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	today := schedule.DateOf(time.Now())
	anchor := today
	if scheduleAnchor != "" {
		parsed, err := time.Parse(time.DateOnly, scheduleAnchor)
		if err != nil {
			return fmt.Errorf("invalid --anchor: %w", err)
		}
		anchor = parsed
	}

	plan, err := schedule.Build(scheduleTotal, scheduleCount, anchor, schedule.AgreementContext{
		Product:      scheduleProduct,
		MaxFinancing: scheduleMaxFinancing,
	})
	if err != nil {
		return err
	}
	plan.SetToday(today)

	return printPlan(cmd.OutOrStdout(), plan, schedule.ResolveAll(plan, today))
}

func printPlan(w io.Writer, plan *schedule.Plan, caps []schedule.Capability) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Plan         *schedule.Plan        `json:"plan"`
			Capabilities []schedule.Capability `json:"capabilities"`
		}{plan, caps})
	}

	regime := "parcial"
	if plan.IsMaxFinancing {
		regime = "máximo"
	}
	fmt.Fprintf(w, "Total %d en %d cuotas (financiamiento %s)\n\n", plan.Total, plan.Count(), regime)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CUOTA\tVENCE\tVALOR\tFECHA\tVALOR EDITABLE")
	for i, inst := range plan.Installments {
		c := caps[i]
		dateRange, valueRange := "-", "-"
		if c.CanEditDate {
			dateRange = c.DateMin.Format(time.DateOnly) + ".." + c.DateMax.Format(time.DateOnly)
		}
		if c.CanEditValue {
			valueRange = fmt.Sprintf("%d..%d", c.ValueMin, c.ValueMax)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", inst.Sequence, inst.DueDate.Format(time.DateOnly), inst.Value, dateRange, valueRange)
	}
	return tw.Flush()
}
