package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"payrollaudit/review"
)

type decisionFlags struct {
	person  string
	entity  string
	state   string
	catalog string
	other   string
	comment string
}

func (f *decisionFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.person, "rfc", "", "person RFC")
	flags.StringVar(&f.entity, "entity", "", "entity key, short code or name")
	flags.StringVar(&f.state, "state", "", `"Sin valoración", "Solventado" or "No Solventado"`)
	flags.StringVar(&f.catalog, "catalog", "", "catalog reason; \"Otro\" requires --other")
	flags.StringVar(&f.other, "other", "", "free-text reason when --catalog is Otro")
	flags.StringVar(&f.comment, "comment", "", "reviewer comment")
	_ = cmd.MarkFlagRequired("rfc")
}

func (f *decisionFlags) decision() (review.Decision, error) {
	state, err := review.ParseState(f.state)
	if err != nil {
		return review.Decision{}, err
	}
	return review.Decision{
		PersonID:      strings.ToUpper(strings.TrimSpace(f.person)),
		EntityKey:     f.entity,
		State:         state,
		Comment:       f.comment,
		CatalogReason: f.catalog,
		FreeText:      f.other,
	}, nil
}

func newReviewCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Record verdicts and control publication of findings",
	}
	cmd.AddCommand(
		newResolveCmd(c),
		newPrevalidateCmd(c),
		newHistoryCmd(c),
		newPublishCmd(c, true),
		newPublishCmd(c, false),
		newStatusCmd(c),
	)
	return cmd
}

func newResolveCmd(c *cli) *cobra.Command {
	var f decisionFlags

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Set the final verdict for one person and entity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := f.decision()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			actor, err := c.actor(a, true)
			if err != nil {
				return err
			}
			n, err := a.review.SetResolution(ctx, actor, d)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) affected\n", n)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newPrevalidateCmd(c *cli) *cobra.Command {
	var f decisionFlags

	cmd := &cobra.Command{
		Use:   "prevalidate",
		Short: "Set the draft verdict for a person across every entity of the cross-reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := f.decision()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			actor, err := c.actor(a, true)
			if err != nil {
				return err
			}
			group, err := a.engine.EntitiesInCrossReference(ctx, d.PersonID)
			if err != nil {
				return err
			}
			res, err := a.review.SetPrevalidation(ctx, actor, d, group)
			if err != nil {
				return err
			}

			labels := make([]string, len(res.Entities))
			for i, e := range res.Entities {
				labels[i] = a.catalog.Display(e)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) affected: %s\n", res.RowsAffected, strings.Join(labels, ", "))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newHistoryCmd(c *cli) *cobra.Command {
	var person string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the prevalidation history of a person",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.review.History(ctx, strings.ToUpper(strings.TrimSpace(person)))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FECHA\tENTE\tACCION\tANTERIOR\tNUEVO\tUSUARIO")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format(time.DateTime), a.catalog.Display(e.EntityKey), e.Action, e.PreviousState, e.NewState, e.Reviewer)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&person, "rfc", "", "person RFC")
	_ = cmd.MarkFlagRequired("rfc")
	return cmd
}

func newPublishCmd(c *cli, publish bool) *cobra.Command {
	use, short := "publish", "Expose findings to non-privileged reviewers"
	if !publish {
		use, short = "unpublish", "Hide findings from non-privileged reviewers again"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			actor, err := c.actor(a, true)
			if err != nil {
				return err
			}
			if publish {
				err = a.review.PublishFindings(ctx, actor)
			} else {
				err = a.review.UnpublishFindings(ctx, actor)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "findings %sed\n", use)
			return nil
		},
	}
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether findings are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.review.Publication(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !p.Published {
				fmt.Fprintln(out, "unpublished")
			} else {
				fmt.Fprintln(out, "published")
			}
			if p.UpdatedBy != "" {
				fmt.Fprintf(out, "last changed by %s at %s\n", p.UpdatedBy, p.UpdatedAt.Format(time.DateTime))
			}
			return nil
		},
	}
}
