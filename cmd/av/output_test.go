package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"academic-vault/internal/av"
	"academic-vault/internal/model"

	"gopkg.in/yaml.v3"
)

func testView() av.View {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	cs101 := &model.Folder{ID: "f-1", Title: "CS101", UpdatedAt: now}
	week1 := &model.Folder{ID: "f-2", Title: "Week 1", ParentID: &cs101.ID, UpdatedAt: now}
	return av.View{
		FolderID: &cs101.ID,
		Path:     []*model.Folder{cs101},
		Folders:  []*model.Folder{week1},
		Files: []*model.File{
			{ID: "a-1", Title: "notes.txt", Type: model.FileTypeTXT, Size: 2048, Status: model.StatusReady, Visibility: model.VisibilityShared, UpdatedAt: now},
			{ID: "a-2", Title: "lecture.mp4", Type: model.FileTypeMP4, Size: 10, Status: model.StatusProcessing, Progress: 75, UpdatedAt: now},
		},
	}
}

func TestWriteView_Table(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 1, 15, 12, 30, 0, 0, time.UTC)
	if err := writeView(&buf, testView(), formatTable, now); err != nil {
		t.Fatalf("writeView() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"/ CS101", "Week 1/", "notes.txt", "2.0 kB", "ready (shared)", "processing 75%", "2 hours ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteView_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeView(&buf, av.View{}, formatTable, time.Now()); err != nil {
		t.Fatalf("writeView() error = %v", err)
	}
	if got := buf.String(); got != "/\n(empty)\n" {
		t.Errorf("writeView() = %q", got)
	}
}

func TestWriteView_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := writeView(&buf, testView(), formatYAML, time.Now()); err != nil {
		t.Fatalf("writeView() error = %v", err)
	}

	var got struct {
		Folder string   `yaml:"folder"`
		Path   []string `yaml:"path"`
		Files  []struct {
			ID     string `yaml:"id"`
			Status string `yaml:"status"`
		} `yaml:"files"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v\n%s", err, buf.String())
	}
	if got.Folder != "f-1" {
		t.Errorf("folder = %q, want f-1", got.Folder)
	}
	if len(got.Path) != 1 || got.Path[0] != "CS101" {
		t.Errorf("path = %v", got.Path)
	}
	if len(got.Files) != 2 || got.Files[1].Status != "processing" {
		t.Errorf("files = %+v", got.Files)
	}
}

func TestCheckFormat(t *testing.T) {
	for _, f := range []string{"table", "yaml"} {
		if err := checkFormat(f); err != nil {
			t.Errorf("checkFormat(%q) error = %v", f, err)
		}
	}
	if err := checkFormat("json"); err == nil {
		t.Error("checkFormat(json) expected error")
	}
}

func TestAnalysisText(t *testing.T) {
	c := &model.AnalysisContent{Summary: "s", Concepts: "c", Questions: "q", Timeline: "t"}
	tests := []struct {
		feature av.Feature
		want    string
	}{
		{av.FeatureSummary, "s"},
		{av.FeatureConcepts, "c"},
		{av.FeatureQuestions, "q"},
		{av.FeatureTimeline, "t"},
		{av.FeatureFlashcards, ""},
	}
	for _, tt := range tests {
		if got := analysisText(c, tt.feature); got != tt.want {
			t.Errorf("analysisText(%s) = %q, want %q", tt.feature, got, tt.want)
		}
	}
	if got := analysisText(nil, av.FeatureSummary); got != "" {
		t.Errorf("analysisText(nil) = %q", got)
	}
}
