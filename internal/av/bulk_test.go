package av_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"academic-vault/internal/av"
	"academic-vault/internal/model"
	"academic-vault/internal/testutil"
)

func TestController_BulkDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("clears selection and removes every selected record", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, testutil.StudentIdentity("alice"))
		c := fx.ctrl

		folder := mustCreateFolder(t, c, "Old term", nil)
		nested := mustCreateFolder(t, c, "Week 1", &folder.ID)
		inner := mustUpload(t, c, &nested.ID, testutil.RawFile("inner.txt", []byte("inner")))
		files := mustUpload(t, c, nil,
			testutil.RawFile("a.txt", []byte("a")),
			testutil.RawFile("b.txt", []byte("b")),
			testutil.RawFile("keep.txt", []byte("keep")),
		)
		mustNavigate(t, c, nil)

		var keep *model.File
		for _, f := range files {
			if f.Title == "keep.txt" {
				keep = f
				continue
			}
			c.ToggleSelection(f.ID)
		}
		c.ToggleSelection(folder.ID)
		selected := c.Selection()

		if err := c.BulkDelete(ctx, selected); err != nil {
			t.Fatalf("BulkDelete() error = %v", err)
		}

		if sel := c.Selection(); len(sel) != 0 {
			t.Errorf("Selection() = %v after BulkDelete, want empty", sel)
		}
		v := c.View()
		for _, id := range selected {
			for _, f := range v.Files {
				if f.ID == id {
					t.Errorf("deleted file %s still listed", id)
				}
			}
			for _, f := range v.Folders {
				if f.ID == id {
					t.Errorf("deleted folder %s still listed", id)
				}
			}
		}
		if len(v.Files) != 1 || v.Files[0].ID != keep.ID {
			t.Errorf("listing = %v, want [%s]", fileIDs(v.Files), keep.ID)
		}

		if f, _ := fx.repo.GetFolder(ctx, nested.ID); f != nil {
			t.Error("nested folder survived folder delete")
		}
		if f, _ := fx.repo.GetFile(ctx, inner[0].ID); f != nil {
			t.Error("file inside deleted folder survived")
		}
		if got := fx.blobs.Keys(); len(got) != 1 || got[0] != keep.StoragePath() {
			t.Errorf("stored objects = %v, want only %s", got, keep.StoragePath())
		}
	})

	t.Run("ids outside the listing are ignored", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, testutil.StudentIdentity("alice"))
		files := mustUpload(t, fx.ctrl, nil, testutil.RawFile("a.txt", []byte("a")))
		mustNavigate(t, fx.ctrl, nil)

		if err := fx.ctrl.BulkDelete(ctx, []string{"unknown"}); err != nil {
			t.Fatalf("BulkDelete() error = %v", err)
		}
		if f, _ := fx.repo.GetFile(ctx, files[0].ID); f == nil {
			t.Error("unselected file was deleted")
		}
	})

	t.Run("other users' items are refused before any mutation", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, testutil.StudentIdentity("alice"))
		files := mustUpload(t, fx.ctrl, nil, testutil.RawFile("a.txt", []byte("a")))
		mustNavigate(t, fx.ctrl, nil)
		if err := fx.ctrl.BulkPublish(ctx, fileIDs(files)); err != nil {
			t.Fatalf("BulkPublish() error = %v", err)
		}

		bob := av.NewController(fx.repo, fx.store, testutil.StudentIdentity("bob"), nil, nil, nil, av.WithScope(model.VisibilityShared))
		mustNavigate(t, bob, nil)
		bob.ToggleSelection(files[0].ID)
		fx.repo.Reset()
		err := bob.BulkDelete(ctx, bob.Selection())
		if !errors.Is(err, av.ErrPermission) {
			t.Fatalf("BulkDelete() error = %v, want ErrPermission", err)
		}
		if fx.repo.Calls("DeleteFiles") != 0 || len(fx.store.Deleted()) != 0 {
			t.Error("refused delete mutated records or objects")
		}
		if sel := bob.Selection(); len(sel) != 0 {
			t.Errorf("Selection() = %v after refused BulkDelete, want empty", sel)
		}
		if fx.repo.Calls("ListFiles") != 1 {
			t.Errorf("refreshes = %d, want 1", fx.repo.Calls("ListFiles"))
		}
	})

	t.Run("admin may delete any owner's items", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, testutil.StudentIdentity("alice"))
		files := mustUpload(t, fx.ctrl, nil, testutil.RawFile("a.txt", []byte("a")))
		mustNavigate(t, fx.ctrl, nil)
		if err := fx.ctrl.BulkPublish(ctx, fileIDs(files)); err != nil {
			t.Fatalf("BulkPublish() error = %v", err)
		}

		admin := av.NewController(fx.repo, fx.store, testutil.AdminIdentity("root"), nil, nil, nil, av.WithScope(model.VisibilityShared))
		mustNavigate(t, admin, nil)
		if err := admin.BulkDelete(ctx, fileIDs(files)); err != nil {
			t.Fatalf("BulkDelete() error = %v", err)
		}
		if f, _ := fx.repo.GetFile(ctx, files[0].ID); f != nil {
			t.Error("admin delete left the record")
		}
	})

	t.Run("object store failure keeps records and still settles", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, testutil.StudentIdentity("alice"))
		files := mustUpload(t, fx.ctrl, nil, testutil.RawFile("a.txt", []byte("a")))
		mustNavigate(t, fx.ctrl, nil)
		fx.store.BeforeDelete = func([]string) error { return errors.New("storage offline") }

		fx.ctrl.ToggleSelection(files[0].ID)
		fx.repo.Reset()
		if err := fx.ctrl.BulkDelete(ctx, fx.ctrl.Selection()); err == nil {
			t.Fatal("BulkDelete() expected error")
		}
		if f, _ := fx.repo.GetFile(ctx, files[0].ID); f == nil {
			t.Error("record deleted although its object was not")
		}
		if sel := fx.ctrl.Selection(); len(sel) != 0 {
			t.Errorf("Selection() = %v after failed BulkDelete, want empty", sel)
		}
		if fx.repo.Calls("ListFiles") != 1 {
			t.Errorf("refreshes = %d, want 1", fx.repo.Calls("ListFiles"))
		}
	})
}

func TestController_BulkPublish(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("folders only is nothing to publish", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, testutil.StudentIdentity("alice"))
		folder := mustCreateFolder(t, fx.ctrl, "Only folder", nil)
		mustNavigate(t, fx.ctrl, nil)
		fx.repo.Reset()

		err := fx.ctrl.BulkPublish(ctx, []string{folder.ID})
		if !errors.Is(err, av.ErrNothingToPublish) {
			t.Fatalf("BulkPublish() error = %v, want ErrNothingToPublish", err)
		}
		if fx.repo.Calls("PublishFiles") != 0 || fx.repo.Calls("ListFiles") != 0 {
			t.Error("BulkPublish() with no files touched the repository")
		}
	})

	t.Run("guests cannot publish", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, testutil.GuestIdentity("g1"))
		if err := fx.ctrl.BulkPublish(ctx, []string{"x"}); !errors.Is(err, av.ErrPermission) {
			t.Errorf("BulkPublish() error = %v, want ErrPermission", err)
		}
	})

	t.Run("other users' files are refused and the view settles", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, testutil.StudentIdentity("alice"))
		files := mustUpload(t, fx.ctrl, nil, testutil.RawFile("a.txt", []byte("a")))
		mustNavigate(t, fx.ctrl, nil)
		if err := fx.ctrl.BulkPublish(ctx, fileIDs(files)); err != nil {
			t.Fatalf("BulkPublish() error = %v", err)
		}

		bob := av.NewController(fx.repo, fx.store, testutil.StudentIdentity("bob"), nil, nil, nil, av.WithScope(model.VisibilityShared))
		mustNavigate(t, bob, nil)
		bob.ToggleSelection(files[0].ID)
		fx.repo.Reset()
		if err := bob.BulkPublish(ctx, bob.Selection()); !errors.Is(err, av.ErrPermission) {
			t.Fatalf("BulkPublish() error = %v, want ErrPermission", err)
		}
		if fx.repo.Calls("PublishFiles") != 0 {
			t.Error("refused publish reached the repository")
		}
		if sel := bob.Selection(); len(sel) != 0 {
			t.Errorf("Selection() = %v after refused BulkPublish, want empty", sel)
		}
		if fx.repo.Calls("ListFiles") != 1 {
			t.Errorf("refreshes = %d, want 1", fx.repo.Calls("ListFiles"))
		}
	})

	t.Run("publishes files and ignores folders", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, testutil.StudentIdentity("alice"))
		folder := mustCreateFolder(t, fx.ctrl, "Stay private", nil)
		files := mustUpload(t, fx.ctrl, nil, testutil.RawFile("a.txt", []byte("a")))
		mustNavigate(t, fx.ctrl, nil)
		fx.clock.Advance(time.Hour)

		if err := fx.ctrl.BulkPublish(ctx, []string{folder.ID, files[0].ID}); err != nil {
			t.Fatalf("BulkPublish() error = %v", err)
		}
		f, _ := fx.repo.GetFile(ctx, files[0].ID)
		if f.Visibility != model.VisibilityShared {
			t.Errorf("file visibility = %q, want shared", f.Visibility)
		}
		if !f.UpdatedAt.Equal(fx.clock.Now()) {
			t.Errorf("UpdatedAt = %v, want %v", f.UpdatedAt, fx.clock.Now())
		}
		d, _ := fx.repo.GetFolder(ctx, folder.ID)
		if d.Visibility != model.VisibilityPrivate {
			t.Errorf("folder visibility = %q, want private", d.Visibility)
		}
	})
}
