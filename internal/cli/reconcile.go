package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sjperalta/fintera-cuotas/internal/database"
	"github.com/sjperalta/fintera-cuotas/internal/models"
	"github.com/sjperalta/fintera-cuotas/internal/services"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <agreement_id>...",
	Short: "Reconcile agreements against reported payments",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReconcile,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark every installment past its due date as overdue",
	RunE:  runSweep,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE:  runMigrate,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	meta := models.AuditMeta{Actor: "cli"}
	failed := 0
	for _, agreementID := range args {
		summary, err := a.svcs.Reconciliation.Reconcile(ctx, agreementID, meta)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", agreementID, err)
			failed++
			continue
		}
		if err := printSummary(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d agreements failed", failed, len(args))
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.svcs.Reconciliation.SweepOverdue(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d cuotas marcadas en mora\n", n)
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migración completa")
	return nil
}

func printSummary(w io.Writer, s *services.ReconcileSummary) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(w, "Acuerdo %s: %d pagadas, %d en mora, %d al día, %d sin resolver, %d vencidas por tiempo\n",
		s.AgreementID, s.Paid, s.Overdue, s.Current, s.Unresolved, s.TimedOut)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CUOTA\tVENCE\tVALOR\tESTADO\tPAGADO\tFECHA PAGO\tRESOLUCIÓN")
	for _, row := range s.Installments {
		settled := "-"
		if row.SettledDate != nil {
			settled = *row.SettledDate
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%d\t%s\t%s\n",
			row.Sequence, row.DueDate, row.Value, row.PaymentState, row.SettledAmount, settled, row.Resolution)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Total %d, pagado %d (%s)\n\n", s.TotalValue, s.TotalSettled, s.ReconciledAt.Format(time.RFC3339))
	return nil
}
