package av_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"academic-vault/internal/av"
	"academic-vault/internal/model"
	"academic-vault/internal/testutil"
)

func TestController_UpdateFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, *model.File) {
		t.Helper()
		fx := newFixture(t, testutil.StudentIdentity("alice"))
		files := mustUpload(t, fx.ctrl, nil, testutil.RawFile("notes.txt", []byte("notes")))
		mustNavigate(t, fx.ctrl, nil)
		return fx, files[0]
	}

	t.Run("persists and normalizes", func(t *testing.T) {
		t.Parallel()
		fx, f := setup(t)
		edit := f.Clone()
		edit.Title = "  Lecture notes "
		edit.Tags = []string{" exam ", "", "exam", "week1"}
		if err := fx.ctrl.UpdateFile(ctx, edit); err != nil {
			t.Fatalf("UpdateFile() error = %v", err)
		}

		got, _ := fx.repo.GetFile(ctx, f.ID)
		if got.Title != "Lecture notes" {
			t.Errorf("Title = %q, want %q", got.Title, "Lecture notes")
		}
		if !slices.Equal(got.Tags, []string{"exam", "week1"}) {
			t.Errorf("Tags = %v, want [exam week1]", got.Tags)
		}
		if listed := fx.ctrl.View().Files[0]; listed.Title != "Lecture notes" {
			t.Errorf("listing title = %q, want updated", listed.Title)
		}
	})

	t.Run("open file and listing share one copy", func(t *testing.T) {
		t.Parallel()
		fx, f := setup(t)
		if _, err := fx.ctrl.Open(ctx, f.ID); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		edit := f.Clone()
		edit.Tags = []string{"shared-copy"}
		if err := fx.ctrl.UpdateFile(ctx, edit); err != nil {
			t.Fatalf("UpdateFile() error = %v", err)
		}
		if got := fx.ctrl.OpenFile().Tags; !slices.Equal(got, []string{"shared-copy"}) {
			t.Errorf("open file tags = %v, want [shared-copy]", got)
		}
		if got := fx.ctrl.View().Files[0].Tags; !slices.Equal(got, []string{"shared-copy"}) {
			t.Errorf("listing tags = %v, want [shared-copy]", got)
		}
	})

	t.Run("failed write rolls back to the snapshot", func(t *testing.T) {
		t.Parallel()
		fx, f := setup(t)
		if _, err := fx.ctrl.Open(ctx, f.ID); err != nil {
			t.Fatalf("Open() error = %v", err)
		}

		var seenLocal string
		fx.repo.BeforeUpdateFile = func(context.Context, *model.File) error {
			seenLocal = fx.ctrl.View().Files[0].Title
			return errors.New("write rejected")
		}
		edit := f.Clone()
		edit.Title = "Optimistic"
		if err := fx.ctrl.UpdateFile(ctx, edit); err == nil {
			t.Fatal("UpdateFile() expected error")
		}

		if seenLocal != "Optimistic" {
			t.Errorf("local title during write = %q, want the edit applied first", seenLocal)
		}
		if got := fx.ctrl.View().Files[0].Title; got != "notes.txt" {
			t.Errorf("listing title = %q after rollback, want %q", got, "notes.txt")
		}
		if got := fx.ctrl.OpenFile().Title; got != "notes.txt" {
			t.Errorf("open file title = %q after rollback, want %q", got, "notes.txt")
		}
		stored, _ := fx.repo.GetFile(ctx, f.ID)
		if stored.Title != "notes.txt" {
			t.Errorf("stored title = %q, want unchanged", stored.Title)
		}
	})

	t.Run("rejected edits", func(t *testing.T) {
		t.Parallel()
		fx, f := setup(t)
		other := mustCreateFolder(t, fx.ctrl, "Elsewhere", nil)

		tests := []struct {
			name string
			edit func(f *model.File)
		}{
			{name: "empty title", edit: func(f *model.File) { f.Title = "  " }},
			{name: "progress above 100", edit: func(f *model.File) { f.Progress = 101 }},
			{name: "ready below 100", edit: func(f *model.File) { f.Progress = 80 }},
			{name: "100 without ready", edit: func(f *model.File) { f.Status = model.StatusProcessing }},
			{name: "unknown visibility", edit: func(f *model.File) { f.Visibility = "public" }},
			{name: "move between folders", edit: func(f *model.File) { f.FolderID = &other.ID }},
		}
		for _, tt := range tests {
			edit := f.Clone()
			tt.edit(edit)
			fx.repo.Reset()
			if err := fx.ctrl.UpdateFile(ctx, edit); !errors.Is(err, av.ErrValidation) {
				t.Errorf("%s: UpdateFile() error = %v, want ErrValidation", tt.name, err)
			}
			if fx.repo.Calls("UpdateFile") != 0 {
				t.Errorf("%s: rejected edit reached the repository", tt.name)
			}
		}
	})

	t.Run("shared files stay shared", func(t *testing.T) {
		t.Parallel()
		fx, f := setup(t)
		if err := fx.ctrl.BulkPublish(ctx, []string{f.ID}); err != nil {
			t.Fatalf("BulkPublish() error = %v", err)
		}
		stored, _ := fx.repo.GetFile(ctx, f.ID)
		stored.Visibility = model.VisibilityPrivate
		if err := fx.ctrl.UpdateFile(ctx, stored); !errors.Is(err, av.ErrValidation) {
			t.Errorf("UpdateFile(unpublish) error = %v, want ErrValidation", err)
		}
	})

	t.Run("other users cannot edit", func(t *testing.T) {
		t.Parallel()
		fx, f := setup(t)
		bob := av.NewController(fx.repo, fx.store, testutil.StudentIdentity("bob"), nil, nil, nil)
		edit := f.Clone()
		edit.Title = "mine now"
		if err := bob.UpdateFile(ctx, edit); !errors.Is(err, av.ErrPermission) {
			t.Errorf("UpdateFile() error = %v, want ErrPermission", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		fx, _ := setup(t)
		if err := fx.ctrl.UpdateFile(ctx, &model.File{ID: "ghost", Title: "x"}); !errors.Is(err, av.ErrNotFound) {
			t.Errorf("UpdateFile() error = %v, want ErrNotFound", err)
		}
	})
}

func TestController_Open(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, testutil.StudentIdentity("alice"))
	files := mustUpload(t, fx.ctrl, nil,
		testutil.RawFile("private.txt", []byte("p")),
		testutil.RawFile("public.txt", []byte("s")),
	)
	var private, public *model.File
	for _, f := range files {
		if f.Title == "private.txt" {
			private = f
		} else {
			public = f
		}
	}
	mustNavigate(t, fx.ctrl, nil)
	if err := fx.ctrl.BulkPublish(ctx, []string{public.ID}); err != nil {
		t.Fatalf("BulkPublish() error = %v", err)
	}

	bob := av.NewController(fx.repo, fx.store, testutil.StudentIdentity("bob"), nil, nil, nil)
	if _, err := bob.Open(ctx, private.ID); !errors.Is(err, av.ErrNotFound) {
		t.Errorf("Open(other's private) error = %v, want ErrNotFound", err)
	}
	got, err := bob.Open(ctx, public.ID)
	if err != nil {
		t.Fatalf("Open(shared) error = %v", err)
	}
	if got.ID != public.ID || bob.OpenFile().ID != public.ID {
		t.Errorf("Open(shared) = %s, want %s", got.ID, public.ID)
	}
	bob.CloseFile()
	if bob.OpenFile() != nil {
		t.Error("OpenFile() != nil after CloseFile")
	}
}

func TestNormalizeTags(t *testing.T) {
	t.Parallel()
	got := av.NormalizeTags([]string{"b", " a ", "", "b", "c "})
	if want := []string{"b", "a", "c"}; !slices.Equal(got, want) {
		t.Errorf("NormalizeTags() = %v, want %v", got, want)
	}
	if got := av.NormalizeTags(nil); got == nil || len(got) != 0 {
		t.Errorf("NormalizeTags(nil) = %#v, want empty non-nil", got)
	}
}
