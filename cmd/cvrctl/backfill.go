package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type backfillOptions struct {
	tenant      string
	project     string
	updatedFrom string
	updatedTo   string
	batchSize   int
	json        bool
}

func backfillCmd(a *app) *cobra.Command {
	opts := &backfillOptions{}
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Reconcile a tenant's source documents into ledger facts",
		Long: `Scans contracts and payment applications of one tenant (optionally one
project or an updated_at window) and creates, updates or voids the matching
commitment and actual facts. Running it twice in a row changes nothing the
second time.`,
		Example: `  cvrctl backfill --tenant 2f0c... --project 8a1e...
  cvrctl backfill --tenant 2f0c... --updated-from 2026-01-01T00:00:00Z --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := opts.scope()
			if err != nil {
				return err
			}
			l, err := a.open(a.configPath, a.logLevel)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			report, runErr := l.reconciler.Backfill(cmd.Context(), scope)
			if report != nil {
				var err error
				if opts.json {
					err = writeJSON(cmd.OutOrStdout(), report)
				} else {
					err = printReport(cmd.OutOrStdout(), report)
				}
				if err != nil {
					return err
				}
			}
			return runErr
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.tenant, "tenant", "t", "", "Tenant ID (required)")
	f.StringVarP(&opts.project, "project", "p", "", "Limit the pass to one project")
	f.StringVar(&opts.updatedFrom, "updated-from", "", "Only documents updated at or after this RFC 3339 time")
	f.StringVar(&opts.updatedTo, "updated-to", "", "Only documents updated at or before this RFC 3339 time")
	f.IntVar(&opts.batchSize, "batch-size", 0, "Documents per sub-batch (default from config)")
	f.BoolVar(&opts.json, "json", false, "Print the report as JSON")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func (o *backfillOptions) scope() (cvr.BackfillScope, error) {
	scope := cvr.BackfillScope{BatchSize: o.batchSize, Trigger: cvr.BackfillTriggerCLI}
	tenantID, err := uuid.Parse(o.tenant)
	if err != nil {
		return scope, fmt.Errorf("invalid --tenant: %w", err)
	}
	scope.TenantID = tenantID
	if o.project != "" {
		projectID, err := uuid.Parse(o.project)
		if err != nil {
			return scope, fmt.Errorf("invalid --project: %w", err)
		}
		scope.ProjectID = &projectID
	}
	if scope.UpdatedFrom, err = parseTime("--updated-from", o.updatedFrom); err != nil {
		return scope, err
	}
	if scope.UpdatedTo, err = parseTime("--updated-to", o.updatedTo); err != nil {
		return scope, err
	}
	return scope, scope.Validate()
}

func parseTime(flag, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", flag, err)
	}
	return &t, nil
}

func printReport(out io.Writer, r *cvr.BackfillReport) error {
	status := cvr.BackfillRunCompleted
	if r.Interrupted {
		status = cvr.BackfillRunInterrupted
	}
	fmt.Fprintf(out, "Run %s: %s in %s\n\n", r.RunID, label(string(status)), time.Duration(r.DurationMs)*time.Millisecond)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FACTS\tCREATED\tUPDATED\tSKIPPED\tERRORS")
	for _, row := range []struct {
		name   string
		counts cvr.ReconcileCounts
	}{
		{"Commitments", r.Commitments},
		{"Actuals", r.Actuals},
	} {
		c := row.counts
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", row.name, c.Created, c.Updated, c.Skipped, c.Errors)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nPackages recomputed: %d\n", r.PackagesRecomputed)

	for _, group := range []struct {
		heading string
		issues  []cvr.DocumentIssue
	}{
		{"Skipped", r.Skips},
		{"Errors", r.Errors},
	} {
		if len(group.issues) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s:\n", group.heading)
		for _, is := range group.issues {
			fmt.Fprintf(out, "  %s %s [%s] %s\n", label(string(is.SourceType)), is.SourceID, is.Code, is.Message)
		}
	}
	return nil
}
