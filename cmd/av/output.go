package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"academic-vault/internal/av"
	"academic-vault/internal/model"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatYAML  = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatTable, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown format %q (want %s or %s)", format, formatTable, formatYAML)
}

// listing is the serialized form of a vault view.
type listing struct {
	Folder  string          `yaml:"folder"`
	Path    []string        `yaml:"path"`
	Folders []*model.Folder `yaml:"folders"`
	Files   []*model.File   `yaml:"files"`
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

// breadcrumb renders the ancestor path as "/ CS101 / Week 1".
func breadcrumb(path []*model.Folder) string {
	parts := []string{""}
	for _, f := range path {
		parts = append(parts, f.Title)
	}
	if len(parts) == 1 {
		return "/"
	}
	return strings.Join(parts, " / ")
}

func writeView(w io.Writer, view av.View, format string, now time.Time) error {
	if format == formatYAML {
		l := listing{Folder: model.FolderKey(view.FolderID), Folders: view.Folders, Files: view.Files}
		for _, f := range view.Path {
			l.Path = append(l.Path, f.Title)
		}
		return writeYAML(w, l)
	}

	fmt.Fprintln(w, breadcrumb(view.Path))
	if len(view.Folders) == 0 && len(view.Files) == 0 {
		fmt.Fprintln(w, "(empty)")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tTITLE\tSIZE\tSTATUS\tUPDATED")
	for _, f := range view.Folders {
		fmt.Fprintf(tw, "%s\tfolder\t%s/\t-\t-\t%s\n", f.ID, f.Title, humanize.RelTime(f.UpdatedAt, now, "ago", "from now"))
	}
	for _, f := range view.Files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.Type, f.Title, humanize.Bytes(uint64(f.Size)), fileStatus(f),
			humanize.RelTime(f.UpdatedAt, now, "ago", "from now"))
	}
	return tw.Flush()
}

func fileStatus(f *model.File) string {
	s := string(f.Status)
	if f.Status != model.StatusReady && f.Progress > 0 {
		s = fmt.Sprintf("%s %d%%", s, f.Progress)
	}
	if f.Visibility == model.VisibilityShared {
		s += " (shared)"
	}
	return s
}

func writeFile(w io.Writer, f *model.File) {
	fmt.Fprintf(w, "%s  %s  [%s, %s]\n", f.ID, f.Title, f.Type, humanize.Bytes(uint64(f.Size)))
	if len(f.Tags) > 0 {
		fmt.Fprintf(w, "tags: %s\n", strings.Join(f.Tags, ", "))
	}
}

func writeFlashcards(w io.Writer, cards []model.Flashcard) {
	for i, c := range cards {
		fmt.Fprintf(w, "%d. Q: %s\n   A: %s\n", i+1, c.Question, c.Answer)
	}
}

// analysisText returns the cached text of feature.
func analysisText(c *model.AnalysisContent, feature av.Feature) string {
	if c == nil {
		return ""
	}
	switch feature {
	case av.FeatureSummary:
		return c.Summary
	case av.FeatureConcepts:
		return c.Concepts
	case av.FeatureQuestions:
		return c.Questions
	case av.FeatureTimeline:
		return c.Timeline
	}
	return ""
}

func writeStats(w io.Writer, s *av.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Users\t%d\n", s.TotalUsers)
	fmt.Fprintf(tw, "Files\t%d\n", s.TotalFiles)
	fmt.Fprintf(tw, "Storage used\t%s\n", humanize.Bytes(uint64(s.StorageUsed)))
	fmt.Fprintf(tw, "Shared files\t%d\n", s.SharedFiles)
	fmt.Fprintf(tw, "Collections\t%d\n", s.Collections)
	return tw.Flush()
}
