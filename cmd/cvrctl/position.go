package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func positionCmd(a *app) *cobra.Command {
	var (
		tenant, project string
		facts, asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "position",
		Short: "Print a project's budget, committed and actual position per package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := uuid.Parse(tenant)
			if err != nil {
				return fmt.Errorf("invalid --tenant: %w", err)
			}
			projectID, err := uuid.Parse(project)
			if err != nil {
				return fmt.Errorf("invalid --project: %w", err)
			}

			l, err := a.open(a.configPath, a.logLevel)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			ctx := cmd.Context()
			pos, err := l.positions.GetFinancialPosition(ctx, tenantID, projectID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, pos)
			}
			if err := printPosition(out, pos); err != nil {
				return err
			}
			if !facts {
				return nil
			}

			commitments, err := l.positions.ListCommitmentFacts(ctx, tenantID, projectID)
			if err != nil {
				return err
			}
			actuals, err := l.positions.ListActualFacts(ctx, tenantID, projectID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			return printFacts(out, append(commitments, actuals...))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&tenant, "tenant", "t", "", "Tenant ID (required)")
	f.StringVarP(&project, "project", "p", "", "Project ID (required)")
	f.BoolVar(&facts, "facts", false, "Also list the commitment and actual facts")
	f.BoolVar(&asJSON, "json", false, "Print the position as JSON")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func printPosition(out io.Writer, pos *cvr.FinancialPosition) error {
	fmt.Fprintf(out, "Project %s\n\n", pos.ProjectID)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PACKAGE\tBUDGET\tCOMMITTED\tACTUAL\tVARIANCE\tREMAINING\t")
	for _, e := range pos.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n", e.PackageName,
			formatAmount(e.Budget), formatAmount(e.Committed), formatAmount(e.Actual),
			formatAmount(e.Variance), formatAmount(e.Remaining))
	}
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n", "Total",
		formatAmount(pos.TotalBudget), formatAmount(pos.TotalCommitted), formatAmount(pos.TotalActual),
		formatAmount(pos.TotalVariance), formatAmount(pos.TotalRemaining))
	return tw.Flush()
}

func printFacts(out io.Writer, facts []cvr.FactView) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSOURCE ID\tSTATUS\tAMOUNT\tCURRENCY\tEFFECTIVE")
	for _, f := range facts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", label(string(f.SourceType)), f.SourceID,
			label(string(f.Status)), formatAmount(f.Amount), f.Currency, f.EffectiveDate.Format("2006-01-02"))
	}
	return tw.Flush()
}
