package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dailyyoga/studysync/app"
	"github.com/dailyyoga/studysync/resource"
)

func newExpensesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "expenses",
		Aliases: []string{"expense", "exp"},
		Short:   "List, add and remove expenses",
	}
	cmd.AddCommand(newExpensesListCmd(opts), newExpensesAddCmd(opts), newExpensesRmCmd(opts))
	return cmd
}

func newExpensesListCmd(opts *rootOptions) *cobra.Command {
	var filter resource.ExpenseFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			res := a.Resources.Expenses.List(filter).Fetch(ctx)
			if res.Err != nil {
				return res.Err
			}
			total := decimal.Zero
			rows := make([][]string, 0, len(res.Data)+1)
			for _, e := range res.Data {
				total = total.Add(e.Amount)
				rows = append(rows, []string{e.ID, formatDate(e.Date), e.Title, e.Category, e.Amount.StringFixed(2)})
			}
			rows = append(rows, []string{"", "", "Total", "", total.StringFixed(2)})
			return renderTable(cmd.OutOrStdout(), []string{"ID", "Date", "Title", "Category", "Amount"}, rows)
		}),
	}
	f := cmd.Flags()
	f.StringVar(&filter.Category, "category", "", "only this category")
	f.IntVar(&filter.Month, "month", 0, "only this month (1-12)")
	f.IntVar(&filter.Year, "year", 0, "only this year")
	f.StringVar(&filter.SemesterID, "semester", "", "only this semester id")
	return cmd
}

func newExpensesAddCmd(opts *rootOptions) *cobra.Command {
	var (
		in     resource.ExpenseInput
		amount string
		date   string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			d, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", amount, err)
			}
			in.Amount = &d
			if in.Date, err = parseDate(date); err != nil {
				return fmt.Errorf("invalid --date %q: %w", date, err)
			}
			created, err := a.Resources.Expenses.Create().Mutate(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), created.ID)
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&in.Title, "title", "", "what the money was spent on")
	f.StringVar(&amount, "amount", "", "amount, e.g. 12.50")
	f.StringVar(&in.Category, "category", "", "category name")
	f.StringVar(&date, "date", "", "date as YYYY-MM-DD (default today on the server)")
	f.StringVar(&in.Notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newExpensesRmCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete expenses",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(ctx context.Context, _ *cobra.Command, a *app.App, args []string) error {
			del := a.Resources.Expenses.Delete()
			for _, id := range args {
				if _, err := del.Mutate(ctx, id); err != nil {
					return err
				}
			}
			return nil
		}),
	}
}
