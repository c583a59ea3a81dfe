package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"academic-vault/internal/app"

	"github.com/spf13/cobra"
)

var collectionCmd = &cobra.Command{
	Use:     "collection",
	Aliases: []string{"col"},
	Short:   "Group files across folders",
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create TITLE",
	Short: "Create a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			cols, err := a.Collections(ctx)
			if err != nil {
				return err
			}
			c, err := cols.Create(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Created collection %s (%s)\n", c.Title, c.ID)
			return nil
		})
	},
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			cols, err := a.Collections(ctx)
			if err != nil {
				return err
			}
			list, err := cols.List(ctx)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No collections.")
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tFILES")
			for _, c := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", c.ID, c.Title, len(c.FileIDs))
			}
			return tw.Flush()
		})
	},
}

var collectionAddCmd = &cobra.Command{
	Use:   "add COLLECTION_ID FILE_ID...",
	Short: "Add files to a collection",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			cols, err := a.Collections(ctx)
			if err != nil {
				return err
			}
			c, err := cols.AddFiles(ctx, args[0], args[1:])
			if err != nil {
				return err
			}
			fmt.Printf("%s now has %d file(s)\n", c.Title, len(c.FileIDs))
			return nil
		})
	},
}

var collectionShowCmd = &cobra.Command{
	Use:   "show COLLECTION_ID",
	Short: "List the files of a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			cols, err := a.Collections(ctx)
			if err != nil {
				return err
			}
			files, err := cols.Files(ctx, args[0])
			if err != nil {
				return err
			}
			for _, f := range files {
				writeFile(os.Stdout, f)
			}
			return nil
		})
	},
}

var collectionRmCmd = &cobra.Command{
	Use:   "rm COLLECTION_ID",
	Short: "Delete a collection; its files are kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			cols, err := a.Collections(ctx)
			if err != nil {
				return err
			}
			if err := cols.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println("Collection deleted")
			return nil
		})
	},
}

func init() {
	collectionCmd.AddCommand(collectionCreateCmd)
	collectionCmd.AddCommand(collectionListCmd)
	collectionCmd.AddCommand(collectionAddCmd)
	collectionCmd.AddCommand(collectionShowCmd)
	collectionCmd.AddCommand(collectionRmCmd)
	rootCmd.AddCommand(collectionCmd)
}
