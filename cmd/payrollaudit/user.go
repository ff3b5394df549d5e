package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"payrollaudit/review"
	"payrollaudit/users"
)

func newUserCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage reviewer accounts",
	}
	cmd.AddCommand(newUserAddCmd(c), newUserLoginCmd(c), newUserListCmd(c))
	return cmd
}

func newUserAddCmd(c *cli) *cobra.Command {
	var (
		req      users.CreateRequest
		role     string
		entities []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a reviewer account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			req.Role = review.Role(strings.ToLower(role))
			for _, e := range entities {
				req.Entities = append(req.Entities, a.catalog.Normalize(e))
			}
			u, err := a.users.Create(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) %s\n", u.Username, u.Role, u.ID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.Username, "username", "", "login name")
	flags.StringVar(&req.FullName, "name", "", "full name")
	flags.StringVar(&req.Password, "password", "", "password, at least 8 characters")
	flags.StringVar(&role, "role", string(review.RoleAuditor), "admin or auditor")
	flags.StringSliceVar(&entities, "entities", nil, "entities the reviewer may see; empty means all")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserLoginCmd(c *cli) *cobra.Command {
	var req users.LoginRequest

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Issue a reviewer token for --token or PAYROLLAUDIT_TOKEN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.users.Login(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "login name")
	cmd.Flags().StringVar(&req.Password, "password", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List reviewer accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.users.List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USUARIO\tNOMBRE\tROL\tENTES")
			for _, u := range list {
				scope := strings.Join(u.Entities, ", ")
				if scope == "" {
					scope = "(todos)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Username, u.FullName, u.Role, scope)
			}
			return tw.Flush()
		},
	}
}
