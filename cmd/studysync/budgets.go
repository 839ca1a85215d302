package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dailyyoga/studysync/app"
	"github.com/dailyyoga/studysync/query"
	"github.com/dailyyoga/studysync/resource"
)

func newBudgetsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "budgets",
		Aliases: []string{"budget"},
		Short:   "Show and set spending limits",
	}
	cmd.AddCommand(newBudgetsListCmd(opts), newBudgetsSetCmd(opts))
	return cmd
}

func newBudgetsListCmd(opts *rootOptions) *cobra.Command {
	var filter resource.BudgetFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List budgets with what is left of each",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			res := a.Resources.Budgets.List(filter).Fetch(ctx)
			if res.Err != nil {
				return res.Err
			}
			rows := make([][]string, 0, len(res.Data))
			for _, b := range res.Data {
				rows = append(rows, []string{
					b.ID, b.Category, b.Period,
					b.Limit.StringFixed(2), b.Spent.StringFixed(2), b.Remaining().StringFixed(2),
				})
			}
			return renderTable(cmd.OutOrStdout(), []string{"ID", "Category", "Period", "Limit", "Spent", "Remaining"}, rows)
		}),
	}
	cmd.Flags().StringVar(&filter.Period, "period", "", "only this period, e.g. monthly")
	cmd.Flags().StringVar(&filter.SemesterID, "semester", "", "only this semester id")
	return cmd
}

func newBudgetsSetCmd(opts *rootOptions) *cobra.Command {
	var (
		in    resource.BudgetInput
		id    string
		limit string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create a budget, or update one with --id",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			if limit != "" {
				d, err := decimal.NewFromString(limit)
				if err != nil {
					return fmt.Errorf("invalid --limit %q: %w", limit, err)
				}
				in.Limit = &d
			}

			var (
				saved resource.Budget
				err   error
			)
			if id != "" {
				saved, err = a.Resources.Budgets.Update().Mutate(ctx, query.UpdateInput[resource.BudgetInput]{ID: id, Data: in})
			} else {
				if in.Category == "" || in.Limit == nil {
					return fmt.Errorf("--category and --limit are required for a new budget")
				}
				saved, err = a.Resources.Budgets.Create().Mutate(ctx, in)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), saved.ID)
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&id, "id", "", "budget to update")
	f.StringVar(&in.Category, "category", "", "category the limit applies to")
	f.StringVar(&limit, "limit", "", "spending limit, e.g. 250")
	f.StringVar(&in.Period, "period", "", "period, e.g. monthly")
	f.StringVar(&in.SemesterID, "semester", "", "semester id")
	return cmd
}
