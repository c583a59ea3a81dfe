package av_test

import (
	"context"
	"testing"

	"academic-vault/internal/av"
	"academic-vault/internal/model"
	"academic-vault/internal/storage"
	"academic-vault/internal/testutil"
)

// fixture bundles a controller with the spies behind it.
type fixture struct {
	ctrl  *av.Controller
	repo  *testutil.SpyRepository
	store *testutil.SpyStore
	blobs *storage.MemoryStore
	clock *testutil.StubClock
}

func newFixture(t *testing.T, identity *av.Identity, opts ...av.ControllerOption) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, testutil.NewSpyRepository(testutil.NewTestRepository(t)), identity, opts...)
}

func newFixtureWithRepo(t *testing.T, repo *testutil.SpyRepository, identity *av.Identity, opts ...av.ControllerOption) *fixture {
	t.Helper()
	blobs := testutil.NewTestStore()
	store := testutil.NewSpyStore(blobs)
	clock := testutil.FixedClock()
	ctrl := av.NewController(repo, store, identity, nil, clock, testutil.NewStubIDGenerator(), opts...)
	return &fixture{ctrl: ctrl, repo: repo, store: store, blobs: blobs, clock: clock}
}

func mustCreateFolder(t *testing.T, c *av.Controller, title string, parent *string) *model.Folder {
	t.Helper()
	f, err := c.CreateFolder(context.Background(), title, parent)
	if err != nil {
		t.Fatalf("CreateFolder(%q) error = %v", title, err)
	}
	return f
}

func mustUpload(t *testing.T, c *av.Controller, folder *string, files ...av.RawFile) []*model.File {
	t.Helper()
	res, err := c.Upload(context.Background(), files, folder)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(res.Uploaded) != len(files) {
		t.Fatalf("Upload() uploaded %d files, want %d (rejected %v)", len(res.Uploaded), len(files), res.Rejected)
	}
	return res.Uploaded
}

func mustNavigate(t *testing.T, c *av.Controller, folder *string) {
	t.Helper()
	if err := c.Navigate(context.Background(), folder); err != nil {
		t.Fatalf("Navigate(%s) error = %v", model.FolderKey(folder), err)
	}
}

func fileIDs(files []*model.File) []string {
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	return ids
}

func folderTitles(folders []*model.Folder) []string {
	titles := make([]string, 0, len(folders))
	for _, f := range folders {
		titles = append(titles, f.Title)
	}
	return titles
}

func ptr(s string) *string { return &s }
