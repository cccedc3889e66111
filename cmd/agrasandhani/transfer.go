package main

import (
	"context"
	"fmt"

	"github.com/ldi/agrasandhani/internal/filestore"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func formatFor(name, path string) (filestore.Format, error) {
	if name == "" {
		return filestore.FormatFromPath(path), nil
	}
	return filestore.ParseFormat(name)
}

func newExportCmd(c *cli) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Write every task to a json, yaml or toml document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := formatFor(format, args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				tasks := a.store.Tasks(ctx)
				if err := filestore.WriteDocument(afero.NewOsFs(), args[0], f, tasks, a.store.Now()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d task(s) to %s\n", len(tasks), args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "json, yaml or toml (default from extension)")
	return cmd
}

func newImportCmd(c *cli) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Replace every task with the contents of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := formatFor(format, args[0])
			if err != nil {
				return err
			}
			doc, err := filestore.ReadDocument(afero.NewOsFs(), args[0], f)
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.store.Replace(ctx, doc.Tasks); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d task(s) from %s\n", len(doc.Tasks), args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "json, yaml or toml (default from extension)")
	return cmd
}
