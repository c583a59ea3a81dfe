package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"academic-vault/internal/app"
	"academic-vault/internal/av"

	"github.com/spf13/cobra"
)

func parseFeature(raw string, allowed []av.Feature) (av.Feature, error) {
	f := av.Feature(strings.ToLower(raw))
	for _, a := range allowed {
		if a == f {
			return f, nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return "", fmt.Errorf("unknown feature %q (want one of %s)", raw, strings.Join(names, ", "))
}

var aiCmd = &cobra.Command{
	Use:   "ai FEATURE FILE_ID",
	Short: "Run an AI analysis over a file (summary, concepts, questions, timeline, flashcards)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		feature, err := parseFeature(args[0], av.Features)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			if err := unlock(a); err != nil {
				return err
			}
			content, err := a.Analyze(ctx, feature, args[1])
			if err != nil {
				return err
			}
			if feature == av.FeatureFlashcards {
				writeFlashcards(os.Stdout, content.Flashcards)
				return nil
			}
			fmt.Println(analysisText(content, feature))
			return nil
		})
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat FILE_ID MESSAGE",
	Short: "Ask the study coach about a file",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			if err := unlock(a); err != nil {
				return err
			}
			reply, err := a.Chat(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Println(reply.Content)
			return nil
		})
	},
}

var studyCmd = &cobra.Command{
	Use:   "study TOOL TEXT",
	Short: "Quick study over pasted text (summary, concepts, flashcards); '-' reads stdin",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tool, err := parseFeature(args[0], av.QuickStudyTools)
		if err != nil {
			return err
		}
		text := strings.Join(args[1:], " ")
		if text == "-" {
			b, err := readAll(os.Stdin)
			if err != nil {
				return err
			}
			text = b
		}
		return withApp(cmd, func(ctx context.Context, a *app.AVApp) error {
			res, err := a.Study(ctx, tool, text)
			if err != nil {
				return err
			}
			if tool == av.FeatureFlashcards {
				writeFlashcards(os.Stdout, res.Flashcards)
				return nil
			}
			fmt.Println(res.Text)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(aiCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(studyCmd)
}
