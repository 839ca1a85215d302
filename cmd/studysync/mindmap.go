package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dailyyoga/studysync/extract"
)

func newMindMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mindmap",
		Short: "Work with generated mind maps",
	}
	cmd.AddCommand(newMindMapParseCmd())
	return cmd
}

func newMindMapParseCmd() *cobra.Command {
	var outline bool
	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Extract a mind map from model output (a file, or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 1 && args[0] != "-" {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			m, err := extract.ParseMindMap(string(data))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if outline {
				_, err = io.WriteString(w, m.Outline())
				return err
			}
			if err := pterm.DefaultTree.WithWriter(w).WithRoot(treeNode(m.Root)).Render(); err != nil {
				return err
			}
			fmt.Fprintf(w, "%d topics, depth %d (%s)\n", m.Count(), m.Depth(), m.Method)
			return nil
		},
	}
	cmd.Flags().BoolVar(&outline, "outline", false, "print an indented outline instead of a tree")
	return cmd
}

func treeNode(n extract.Node) pterm.TreeNode {
	node := pterm.TreeNode{Text: n.Title}
	for _, c := range n.Children {
		node.Children = append(node.Children, treeNode(c))
	}
	return node
}
