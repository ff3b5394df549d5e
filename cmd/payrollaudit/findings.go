package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"payrollaudit/audit"
	"payrollaudit/catalog"
	"payrollaudit/crossref"
	"payrollaudit/records"
	"payrollaudit/report"
	"payrollaudit/review"
)

type findingsOptions struct {
	entity      string
	export      string
	resolved    bool
	scope       string
	nonCrossing bool
}

func newFindingsCmd(c *cli) *cobra.Command {
	var opts findingsOptions

	cmd := &cobra.Command{
		Use:   "findings",
		Short: "Detect cross-references and print or export them as the caller may see them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			viewer, err := c.actor(a, false)
			if err != nil {
				return err
			}

			switch {
			case opts.nonCrossing:
				return printNonCrossing(ctx, cmd.OutOrStdout(), a)
			case opts.resolved:
				return runResolved(ctx, cmd.OutOrStdout(), a, viewer, opts)
			}
			return runFindings(ctx, cmd.OutOrStdout(), a, viewer, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.entity, "entity", "", "only findings involving this entity (key, short code or name)")
	flags.StringVar(&opts.export, "export", "", "write an xlsx workbook to this path, or a directory for a timestamped name")
	flags.BoolVar(&opts.resolved, "resolved", false, "list prevalidations marked Solventado instead of open findings")
	flags.StringVar(&opts.scope, "scope", "", "with --resolved: ESTATAL or MUNICIPAL")
	flags.BoolVar(&opts.nonCrossing, "non-crossing", false, "list people with records but no cross-reference")
	return cmd
}

func runFindings(ctx context.Context, out io.Writer, a *app, viewer review.Actor, opts findingsOptions) error {
	all, err := a.engine.DetectCrossReferences(ctx)
	if err != nil {
		return err
	}
	findings, err := a.review.VisibleFindings(ctx, viewer, all)
	if err != nil {
		return err
	}

	base := "SASP_Resultados_Generales"
	if opts.entity != "" {
		key := a.catalog.Normalize(opts.entity)
		findings = report.ForEntity(findings, key, viewer)
		base = "SASP_Resultados_" + a.catalog.Display(key)
	}

	people := personIDs(findings)
	var rv report.Review
	if len(people) > 0 {
		if rv.Prevalidations, err = a.review.Prevalidations(ctx, people...); err != nil {
			return err
		}
		if rv.Resolutions, err = a.review.Resolutions(ctx, people...); err != nil {
			return err
		}
	}
	rows := report.BuildRows(findings, a.catalog, rv)

	if opts.export != "" {
		path, err := exportPath(opts.export, base)
		if err != nil {
			return err
		}
		if err := writeFile(path, func(w io.Writer) error { return report.WriteFindings(w, rows) }); err != nil {
			return err
		}
		fmt.Fprintf(out, "%d finding(s), %d row(s) written to %s\n", len(findings), len(rows), path)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RFC\tNOMBRE\tENTE\tINCOMPATIBLE CON\tQUINCENAS\tESTATUS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.PersonID, r.FullName, r.OriginEntity, r.IncompatibleEntities, r.Periods, r.State)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d finding(s)\n", len(findings))
	return nil
}

func runResolved(ctx context.Context, out io.Writer, a *app, viewer review.Actor, opts findingsOptions) error {
	scope := catalog.Scope(strings.ToUpper(strings.TrimSpace(opts.scope)))
	if scope != "" && scope != catalog.ScopeState && scope != catalog.ScopeMunicipal {
		return fmt.Errorf("invalid scope %q: want %s or %s", opts.scope, catalog.ScopeState, catalog.ScopeMunicipal)
	}
	if !viewer.Privileged() {
		published, err := a.review.IsPublished(ctx)
		if err != nil {
			return err
		}
		if !published {
			fmt.Fprintln(out, "findings are not published")
			return nil
		}
	}

	findings, err := a.engine.DetectCrossReferences(ctx)
	if err != nil {
		return err
	}
	var pre review.PrevalidationMap
	if people := personIDs(findings); len(people) > 0 {
		if pre, err = a.review.Prevalidations(ctx, people...); err != nil {
			return err
		}
	}

	var filter string
	if opts.entity != "" {
		filter = a.catalog.Display(a.catalog.Normalize(opts.entity))
	}
	rows, sum := report.Resolved(findings, a.catalog, pre, viewer, scope, filter)

	if opts.export != "" {
		path, err := exportPath(opts.export, "SASP_Solventados")
		if err != nil {
			return err
		}
		if err := writeFile(path, func(w io.Writer) error { return report.WriteResolved(w, rows) }); err != nil {
			return err
		}
		fmt.Fprintf(out, "%d row(s) written to %s\n", len(rows), path)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RFC\tNOMBRE\tENTES\tMOTIVO\tOBSERVACION")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.PersonID, r.FullName, r.Entities, r.Reason, r.Observation)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d persona(s), %d registro(s) solventados\n", sum.People, sum.Records)
	return nil
}

func printNonCrossing(ctx context.Context, out io.Writer, a *app) error {
	people, err := a.engine.DetectNonCrossing(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RFC\tNOMBRE\tENTES")
	for _, p := range people {
		labels := make([]string, len(p.Entities))
		for i, e := range p.Entities {
			labels[i] = a.catalog.Display(e)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.PersonID, p.FullName, strings.Join(labels, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d persona(s) sin cruce\n", len(people))
	return nil
}

func newArchiveCmd(c *cli) *cobra.Command {
	var filter records.ArchiveFilter

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "List archived analysis results, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			filter.PersonID = strings.ToUpper(strings.TrimSpace(filter.PersonID))
			entries, total, err := a.records.ListArchive(ctx, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIPO\tRFC\tFIRMA\tFECHA")
			for _, e := range entries {
				hash := e.Hash
				if len(hash) > 12 {
					hash = hash[:12]
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.ID, e.Category, e.PersonID, hash, e.ArchivedAt.Format(time.DateTime))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d of %d entries\n", len(entries), total)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&filter.PersonID, "rfc", "", "only entries for this person")
	flags.StringVar(&filter.Category, "category", "", fmt.Sprintf("%s or %s", records.CategoryCrossReference, records.CategoryNonCrossing))
	flags.IntVar(&filter.Page, "page", 1, "page number")
	flags.IntVar(&filter.PageSize, "page-size", 50, "entries per page")
	return cmd
}

func newRunsCmd(c *cli) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.audit.Runs(ctx, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tINICIO\tARCHIVOS\tNUEVOS\tACTUALIZADOS\tERRORES\tALERTAS\tESTADO")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
					r.ID, r.StartedAt.Format(time.DateTime), r.Files, r.Inserted, r.Updated, r.Failed, len(r.Alerts), runStatus(r))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

func runStatus(r audit.Run) string {
	switch {
	case r.Error != "":
		return "fallida: " + r.Error
	case r.FinishedAt == nil:
		return "en curso"
	default:
		return "terminada"
	}
}

func newWorkersCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "workers",
		Short: "Count people with a current record per entity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			counts, err := a.records.CountWorkersPerEntity(ctx)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTE\tCLAVE\tTRABAJADORES")
			for _, k := range keys {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", a.catalog.Display(k), k, counts[k])
			}
			return tw.Flush()
		},
	}
}

func personIDs(findings []crossref.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.PersonID
	}
	return out
}

// exportPath treats an existing directory as the destination folder for a
// timestamped file name.
func exportPath(target, base string) (string, error) {
	info, err := os.Stat(target)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(target, report.FileName(base, time.Now())), nil
	case err == nil, os.IsNotExist(err):
		return target, nil
	default:
		return "", fmt.Errorf("export %s: %w", target, err)
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
