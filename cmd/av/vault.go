package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"academic-vault/internal/app"
	"academic-vault/internal/av"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List a folder of your vault or the shared vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		shared, _ := cmd.Flags().GetBool("shared")
		folder, _ := cmd.Flags().GetString("folder")
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			view, err := a.List(ctx, app.ParseFolderID(folder), shared)
			if err != nil {
				return err
			}
			return writeView(os.Stdout, view, format, time.Now())
		})
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir TITLE",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("folder")
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			folder, err := a.CreateFolder(ctx, args[0], app.ParseFolderID(parent))
			if err != nil {
				return err
			}
			fmt.Printf("Created folder %s (%s)\n", folder.Title, folder.ID)
			return nil
		})
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload PATH...",
	Short: "Upload files into a folder",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")
		folder, _ := cmd.Flags().GetString("folder")

		paths := make([]string, len(args))
		for i, p := range args {
			abs, err := filepath.Abs(p)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			paths[i] = abs
		}

		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			res, err := a.Upload(ctx, paths, app.ParseFolderID(folder), recursive)
			if res != nil {
				if res.Warning != "" {
					fmt.Fprintln(os.Stderr, res.Warning)
				}
				for _, f := range res.Uploaded {
					writeFile(os.Stdout, f)
				}
				fmt.Printf("Uploaded %d file(s)\n", len(res.Uploaded))
			}
			return err
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm ID...",
	Short: "Delete files and folders",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			if err := a.Delete(ctx, args); err != nil {
				return err
			}
			fmt.Printf("Deleted %d item(s)\n", len(args))
			return nil
		})
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish ID...",
	Short: "Share files with everyone",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			if err := a.Publish(ctx, args); err != nil {
				return err
			}
			fmt.Println("Published")
			return nil
		})
	},
}

var tagCmd = &cobra.Command{
	Use:   "tag FILE_ID TAG...",
	Short: "Add tags to a file",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			f, err := a.Tag(ctx, args[0], args[1:])
			if err != nil {
				return err
			}
			writeFile(os.Stdout, f)
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show FILE_ID",
	Short: "Show a file with its cached AI results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			f, err := a.Show(ctx, args[0])
			if err != nil {
				return err
			}
			return writeYAML(os.Stdout, f)
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch FILE_ID",
	Short: "Follow a file through scanning and processing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			status, err := a.Watch(ctx, args[0], func(tr av.Transition) {
				fmt.Printf("%-12s %3d%%\n", tr.To, tr.Progress)
			})
			if err != nil {
				return err
			}
			fmt.Printf("Final status: %s\n", status)
			return nil
		})
	},
}

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "Add the onboarding sample files",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			files, err := a.AddSamples(ctx)
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

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vault statistics (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			stats, err := a.Stats(ctx)
			if err != nil {
				return err
			}
			return writeStats(os.Stdout, stats)
		})
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().Bool("shared", false, "List the shared vault")
	lsCmd.Flags().String("folder", "", "Folder id (default: vault root)")
	lsCmd.Flags().String("format", formatTable, "Output format: table or yaml")

	rootCmd.AddCommand(mkdirCmd)
	mkdirCmd.Flags().String("folder", "", "Parent folder id (default: vault root)")

	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	uploadCmd.Flags().String("folder", "", "Target folder id (default: vault root)")

	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(samplesCmd)
	rootCmd.AddCommand(statsCmd)
}
