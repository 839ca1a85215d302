package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dailyyoga/studysync/app"
	"github.com/dailyyoga/studysync/resource"
)

func newJobsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"job"},
		Short:   "Browse the student job board",
	}
	cmd.AddCommand(newJobsListCmd(opts), newJobsShowCmd(opts))
	return cmd
}

func newJobsListCmd(opts *rootOptions) *cobra.Command {
	var (
		filter resource.JobFilter
		remote bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List job postings",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			if cmd.Flags().Changed("remote") {
				filter.Remote = &remote
			}
			res := a.Resources.Jobs.List(filter).Fetch(ctx)
			if res.Err != nil {
				return res.Err
			}
			rows := make([][]string, 0, len(res.Data))
			for _, j := range res.Data {
				rows = append(rows, []string{j.ID, j.Title, j.Company, j.Location, j.Type, salary(j)})
			}
			return renderTable(cmd.OutOrStdout(), []string{"ID", "Title", "Company", "Location", "Type", "Salary"}, rows)
		}),
	}
	f := cmd.Flags()
	f.StringVar(&filter.Type, "type", "", "only this job type, e.g. part-time")
	f.StringVar(&filter.Location, "location", "", "only this location")
	f.BoolVar(&remote, "remote", false, "only remote (or, with =false, on-site) jobs")
	f.StringVar(&filter.Search, "search", "", "full-text search")
	return cmd
}

func newJobsShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job posting",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			res := a.Resources.Jobs.Detail(args[0]).Fetch(ctx)
			if res.Err != nil {
				return res.Err
			}
			j := res.Data
			return renderFields(cmd.OutOrStdout(), j.Title, [][2]string{
				{"ID", j.ID},
				{"Company", j.Company},
				{"Location", j.Location},
				{"Type", j.Type},
				{"Remote", strconv.FormatBool(j.Remote)},
				{"Salary", salary(j)},
				{"Posted", formatDate(j.PostedAt)},
				{"Tags", strings.Join(j.Tags, ", ")},
				{"Description", j.Description},
			})
		}),
	}
}

func salary(j resource.Job) string {
	if j.SalaryMin.IsZero() && j.SalaryMax.IsZero() {
		return "-"
	}
	s := j.SalaryMin.String() + "-" + j.SalaryMax.String()
	if j.Currency != "" {
		s += " " + j.Currency
	}
	return s
}
