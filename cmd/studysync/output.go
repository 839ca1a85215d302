package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dailyyoga/studysync/app"
)

const dateLayout = "2006-01-02"

// withApp runs fn against a started app and closes it afterwards
func withApp(opts *rootOptions, fn func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := opts.open(cmd)
		if err != nil {
			return err
		}
		runErr := fn(cmd.Context(), cmd, a, args)
		return errors.Join(runErr, a.Close())
	}
}

// renderTable prints rows under a header row
func renderTable(w io.Writer, header []string, rows [][]string) error {
	data := pterm.TableData{header}
	data = append(data, rows...)
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithWriter(w).WithData(data).Render()
}

// renderFields prints a two-column key/value table
func renderFields(w io.Writer, title string, fields [][2]string) error {
	pterm.DefaultSection.WithWriter(w).Println(title)
	data := make(pterm.TableData, 0, len(fields))
	for _, f := range fields {
		data = append(data, []string{f[0], f[1]})
	}
	return pterm.DefaultTable.WithWriter(w).WithData(data).Render()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
