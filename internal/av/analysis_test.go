package av_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"academic-vault/internal/av"
	"academic-vault/internal/model"
	"academic-vault/internal/testutil"
)

const lectureNotes = "Photosynthesis converts light energy into chemical energy."

func newAnalyzerFixture(t *testing.T, gw *testutil.StubGateway) (*fixture, *av.Analyzer, *model.File) {
	t.Helper()
	fx := newFixture(t, testutil.StudentIdentity("alice"))
	files := mustUpload(t, fx.ctrl, nil, testutil.RawFile("biology.txt", []byte(lectureNotes)))
	return fx, av.NewAnalyzer(fx.ctrl, fx.store, gw, nil), files[0]
}

func TestAnalyzer_Generate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("stores summary in ai content", func(t *testing.T) {
		t.Parallel()
		gw := testutil.NewStubGateway("Plants turn light into sugar.")
		fx, a, f := newAnalyzerFixture(t, gw)

		got, err := a.Generate(ctx, f.ID, av.FeatureSummary)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if got.Summary != "Plants turn light into sugar." {
			t.Errorf("Summary = %q", got.Summary)
		}

		req := gw.LastRequest()
		if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, lectureNotes) {
			t.Errorf("prompt does not carry file text: %+v", req.Messages)
		}
		if req.Schema != nil {
			t.Error("summary request should not ask for structured output")
		}

		stored, _ := fx.repo.GetFile(ctx, f.ID)
		if stored.AIContent == nil || stored.AIContent.Summary != got.Summary {
			t.Errorf("stored ai content = %+v, want summary cached", stored.AIContent)
		}
		if open := fx.ctrl.OpenFile(); open == nil || open.AIContent == nil || open.AIContent.Summary != got.Summary {
			t.Errorf("open file does not show the new summary")
		}
	})

	t.Run("flashcards use a schema", func(t *testing.T) {
		t.Parallel()
		gw := testutil.NewStubGateway(`{"flashcards":[{"question":"What is photosynthesis?","answer":"Turning light into chemical energy."}]}`)
		fx, a, f := newAnalyzerFixture(t, gw)

		got, err := a.Generate(ctx, f.ID, av.FeatureFlashcards)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if len(got.Flashcards) != 1 || got.Flashcards[0].Question != "What is photosynthesis?" {
			t.Errorf("Flashcards = %+v", got.Flashcards)
		}
		if req := gw.LastRequest(); req.Schema == nil || req.SchemaName != "flashcards" {
			t.Errorf("request schema = %q/%s, want flashcards schema", req.SchemaName, req.Schema)
		}
		stored, _ := fx.repo.GetFile(ctx, f.ID)
		if stored.AIContent == nil || len(stored.AIContent.Flashcards) != 1 {
			t.Errorf("stored flashcards = %+v", stored.AIContent)
		}
	})

	t.Run("keeps other cached analyses", func(t *testing.T) {
		t.Parallel()
		gw := testutil.NewStubGateway("summary")
		fx, a, f := newAnalyzerFixture(t, gw)
		if _, err := a.Generate(ctx, f.ID, av.FeatureSummary); err != nil {
			t.Fatalf("Generate(summary) error = %v", err)
		}
		gw.Response = "- light\n- chlorophyll"
		if _, err := a.Generate(ctx, f.ID, av.FeatureConcepts); err != nil {
			t.Fatalf("Generate(concepts) error = %v", err)
		}
		stored, _ := fx.repo.GetFile(ctx, f.ID)
		if stored.AIContent.Summary != "summary" || stored.AIContent.Concepts != "- light\n- chlorophyll" {
			t.Errorf("stored ai content = %+v", stored.AIContent)
		}
	})

	t.Run("failure leaves cached content untouched", func(t *testing.T) {
		t.Parallel()
		gw := testutil.NewStubGateway("old summary")
		fx, a, f := newAnalyzerFixture(t, gw)
		if _, err := a.Generate(ctx, f.ID, av.FeatureSummary); err != nil {
			t.Fatalf("Generate() error = %v", err)
		}

		gw.Err = errors.New("quota exceeded")
		if _, err := a.Generate(ctx, f.ID, av.FeatureSummary); err == nil {
			t.Fatal("Generate() expected error")
		}
		stored, _ := fx.repo.GetFile(ctx, f.ID)
		if stored.AIContent.Summary != "old summary" {
			t.Errorf("Summary = %q, want %q", stored.AIContent.Summary, "old summary")
		}
	})

	t.Run("malformed flashcards are not stored", func(t *testing.T) {
		t.Parallel()
		gw := testutil.NewStubGateway("here are your flashcards!")
		fx, a, f := newAnalyzerFixture(t, gw)
		if _, err := a.Generate(ctx, f.ID, av.FeatureFlashcards); err == nil {
			t.Fatal("Generate() expected error")
		}
		stored, _ := fx.repo.GetFile(ctx, f.ID)
		if stored.AIContent != nil {
			t.Errorf("AIContent = %+v, want nil", stored.AIContent)
		}
	})

	t.Run("unknown feature", func(t *testing.T) {
		t.Parallel()
		gw := testutil.NewStubGateway("x")
		_, a, f := newAnalyzerFixture(t, gw)
		_, err := a.Generate(ctx, f.ID, av.Feature("poem"))
		if !errors.Is(err, av.ErrValidation) {
			t.Errorf("Generate() error = %v, want ErrValidation", err)
		}
		if n := len(gw.Requests()); n != 0 {
			t.Errorf("gateway called %d times, want 0", n)
		}
	})

	t.Run("binary content is replaced by a notice", func(t *testing.T) {
		t.Parallel()
		gw := testutil.NewStubGateway("summary")
		fx := newFixture(t, testutil.StudentIdentity("alice"))
		files := mustUpload(t, fx.ctrl, nil, testutil.RawFile("scan.pdf", []byte{0x25, 0xff, 0xfe, 0x00}))
		a := av.NewAnalyzer(fx.ctrl, fx.store, gw, nil)

		if _, err := a.Generate(ctx, files[0].ID, av.FeatureSummary); err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if prompt := gw.LastRequest().Messages[0].Content; !strings.Contains(prompt, "It may be a binary file.") {
			t.Errorf("prompt = %q, want binary notice", prompt)
		}
	})

	t.Run("sample files have no content", func(t *testing.T) {
		t.Parallel()
		gw := testutil.NewStubGateway("summary")
		fx := newFixture(t, testutil.StudentIdentity("alice"))
		samples, err := fx.ctrl.AddSampleFiles(ctx)
		if err != nil {
			t.Fatalf("AddSampleFiles() error = %v", err)
		}
		a := av.NewAnalyzer(fx.ctrl, fx.store, gw, nil)
		if _, err := a.Generate(ctx, samples[0].ID, av.FeatureSummary); !errors.Is(err, av.ErrNotFound) {
			t.Errorf("Generate() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("shared files of other users are not cached", func(t *testing.T) {
		t.Parallel()
		gw := testutil.NewStubGateway("summary")
		fx, _, f := newAnalyzerFixture(t, gw)
		if err := fx.ctrl.BulkPublish(ctx, []string{f.ID}); err != nil {
			t.Fatalf("BulkPublish() error = %v", err)
		}

		bob := av.NewController(fx.repo, fx.store, testutil.StudentIdentity("bob"), nil, fx.clock, testutil.NewStubIDGenerator())
		got, err := av.NewAnalyzer(bob, fx.store, gw, nil).Generate(ctx, f.ID, av.FeatureSummary)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if got.Summary != "summary" {
			t.Errorf("Summary = %q", got.Summary)
		}
		stored, _ := fx.repo.GetFile(ctx, f.ID)
		if stored.AIContent != nil {
			t.Errorf("AIContent = %+v, want nil", stored.AIContent)
		}
	})
}

func TestAnalyzer_Chat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("appends both turns", func(t *testing.T) {
		t.Parallel()
		gw := testutil.NewStubGateway("It happens in chloroplasts.")
		fx, a, f := newAnalyzerFixture(t, gw)

		reply, err := a.Chat(ctx, f.ID, "  Where does it happen?  ")
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if reply.Role != model.ChatRoleModel || reply.Content != "It happens in chloroplasts." {
			t.Errorf("reply = %+v", reply)
		}

		req := gw.LastRequest()
		if !strings.Contains(req.System, "biology.txt") || !strings.Contains(req.System, lectureNotes) {
			t.Errorf("System = %q, want title and document text", req.System)
		}

		gw.Response = "Light and water."
		if _, err := a.Chat(ctx, f.ID, "What does it need?"); err != nil {
			t.Fatalf("second Chat() error = %v", err)
		}
		if n := len(gw.LastRequest().Messages); n != 3 {
			t.Errorf("second request carries %d messages, want 3", n)
		}

		stored, _ := fx.repo.GetFile(ctx, f.ID)
		history := stored.AIContent.ChatHistory
		want := []model.ChatMessage{
			{Role: model.ChatRoleUser, Content: "Where does it happen?"},
			{Role: model.ChatRoleModel, Content: "It happens in chloroplasts."},
			{Role: model.ChatRoleUser, Content: "What does it need?"},
			{Role: model.ChatRoleModel, Content: "Light and water."},
		}
		if len(history) != len(want) {
			t.Fatalf("history has %d turns, want %d", len(history), len(want))
		}
		for i := range want {
			if history[i] != want[i] {
				t.Errorf("history[%d] = %+v, want %+v", i, history[i], want[i])
			}
		}
	})

	t.Run("failure adds nothing to history", func(t *testing.T) {
		t.Parallel()
		gw := &testutil.StubGateway{Err: errors.New("unavailable")}
		fx, a, f := newAnalyzerFixture(t, gw)
		if _, err := a.Chat(ctx, f.ID, "hello"); err == nil {
			t.Fatal("Chat() expected error")
		}
		stored, _ := fx.repo.GetFile(ctx, f.ID)
		if stored.AIContent != nil {
			t.Errorf("AIContent = %+v, want nil", stored.AIContent)
		}
	})

	t.Run("empty message", func(t *testing.T) {
		t.Parallel()
		gw := testutil.NewStubGateway("x")
		_, a, f := newAnalyzerFixture(t, gw)
		if _, err := a.Chat(ctx, f.ID, "   "); !errors.Is(err, av.ErrValidation) {
			t.Errorf("Chat() error = %v, want ErrValidation", err)
		}
	})
}

func TestAnalyzer_QuickStudy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	guest := func(t *testing.T, gw *testutil.StubGateway) *av.Analyzer {
		t.Helper()
		fx := newFixture(t, testutil.GuestIdentity("guest-1"))
		return av.NewAnalyzer(fx.ctrl, fx.store, gw, nil)
	}

	t.Run("summary for guests", func(t *testing.T) {
		gw := testutil.NewStubGateway("short summary")
		got, err := guest(t, gw).QuickStudy(ctx, lectureNotes, av.FeatureSummary)
		if err != nil {
			t.Fatalf("QuickStudy() error = %v", err)
		}
		if got.Text != "short summary" || got.Tool != av.FeatureSummary {
			t.Errorf("QuickStudy() = %+v", got)
		}
	})

	t.Run("flashcards", func(t *testing.T) {
		gw := testutil.NewStubGateway(`{"flashcards":[{"question":"q1","answer":"a1"},{"question":"q2","answer":"a2"}]}`)
		got, err := guest(t, gw).QuickStudy(ctx, lectureNotes, av.FeatureFlashcards)
		if err != nil {
			t.Fatalf("QuickStudy() error = %v", err)
		}
		if len(got.Flashcards) != 2 || got.Text != "" {
			t.Errorf("QuickStudy() = %+v", got)
		}
	})

	tests := []struct {
		name string
		text string
		tool av.Feature
	}{
		{name: "timeline is not a quick study tool", text: lectureNotes, tool: av.FeatureTimeline},
		{name: "empty text", text: "  \n", tool: av.FeatureSummary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := testutil.NewStubGateway("x")
			if _, err := guest(t, gw).QuickStudy(ctx, tt.text, tt.tool); !errors.Is(err, av.ErrValidation) {
				t.Errorf("QuickStudy() error = %v, want ErrValidation", err)
			}
			if len(gw.Requests()) != 0 {
				t.Error("gateway should not be called")
			}
		})
	}
}

func TestParseFlashcards(t *testing.T) {
	cards, err := av.ParseFlashcards(`{"flashcards":[]}`)
	if err != nil {
		t.Fatalf("ParseFlashcards() error = %v", err)
	}
	if len(cards) != 0 {
		t.Errorf("len(cards) = %d, want 0", len(cards))
	}
	if _, err := av.ParseFlashcards("[not json"); err == nil {
		t.Error("ParseFlashcards() expected error")
	}
}
