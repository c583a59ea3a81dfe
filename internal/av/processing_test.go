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

// feed is a StatusSource replaying fixed events.
type feed []av.StatusEvent

func (f feed) Watch(ctx context.Context, fileID string) (<-chan av.StatusEvent, error) {
	ch := make(chan av.StatusEvent, len(f))
	for _, ev := range f {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func events(fileID string, statuses ...model.FileStatus) feed {
	out := make(feed, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, av.StatusEvent{FileID: fileID, Status: s})
	}
	return out
}

func TestController_TrackProcessing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, *model.File) {
		t.Helper()
		fx := newFixture(t, testutil.StudentIdentity("alice"))
		files := mustUpload(t, fx.ctrl, nil, testutil.RawFile("lecture.mp4", []byte("video")))
		mustNavigate(t, fx.ctrl, nil)
		fx.repo.Reset()
		return fx, files[0]
	}

	t.Run("persists every step up to ready", func(t *testing.T) {
		t.Parallel()
		fx, f := setup(t)
		var progress []int
		src := events(f.ID, model.StatusUploading, model.StatusScanning, model.StatusProcessing, model.StatusReady)

		final, err := fx.ctrl.TrackProcessing(ctx, f.ID, src, func(tr av.Transition) {
			progress = append(progress, tr.Progress)
		})
		if err != nil {
			t.Fatalf("TrackProcessing() error = %v", err)
		}
		if final != model.StatusReady {
			t.Errorf("final = %s, want ready", final)
		}
		if len(progress) != 4 || progress[3] != 100 {
			t.Errorf("observed progress = %v, want 4 steps ending at 100", progress)
		}
		if n := fx.repo.Calls("UpdateFile"); n != 4 {
			t.Errorf("UpdateFile calls = %d, want 4", n)
		}
		stored, _ := fx.repo.GetFile(ctx, f.ID)
		if stored.Status != model.StatusReady || stored.Progress != 100 {
			t.Errorf("stored = %s/%d, want ready/100", stored.Status, stored.Progress)
		}
	})

	t.Run("invalid and foreign events are skipped", func(t *testing.T) {
		t.Parallel()
		fx, f := setup(t)
		src := feed{
			{FileID: f.ID, Status: model.StatusUploading},
			{FileID: "someone-else", Status: model.StatusError},
			{FileID: f.ID, Status: model.StatusReady},
			{FileID: f.ID, Status: model.StatusScanning},
			{FileID: f.ID, Status: model.StatusQuarantined},
		}
		final, err := fx.ctrl.TrackProcessing(ctx, f.ID, src)
		if err != nil {
			t.Fatalf("TrackProcessing() error = %v", err)
		}
		if final != model.StatusQuarantined {
			t.Errorf("final = %s, want quarantined", final)
		}
		stored, _ := fx.repo.GetFile(ctx, f.ID)
		if stored.Status != model.StatusQuarantined || stored.Progress != 50 {
			t.Errorf("stored = %s/%d, want quarantined/50", stored.Status, stored.Progress)
		}
	})

	t.Run("feed ending early marks the file as error", func(t *testing.T) {
		t.Parallel()
		fx, f := setup(t)
		final, err := fx.ctrl.TrackProcessing(ctx, f.ID, events(f.ID, model.StatusUploading))
		if err != nil {
			t.Fatalf("TrackProcessing() error = %v", err)
		}
		if final != model.StatusError {
			t.Errorf("final = %s, want error", final)
		}
		stored, _ := fx.repo.GetFile(ctx, f.ID)
		if stored.Status != model.StatusError || stored.Progress != 25 {
			t.Errorf("stored = %s/%d, want error/25", stored.Status, stored.Progress)
		}
	})

	t.Run("cancellation stops tracking", func(t *testing.T) {
		t.Parallel()
		fx, f := setup(t)
		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		src := av.NewSimulatedStatusSource(av.SimulatedStep{Status: model.StatusUploading, Delay: time.Hour})

		_, err := fx.ctrl.TrackProcessing(cctx, f.ID, src)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("TrackProcessing() error = %v, want deadline exceeded", err)
		}
	})

	t.Run("persist failures are reported", func(t *testing.T) {
		t.Parallel()
		fx, f := setup(t)
		fx.repo.BeforeUpdateFile = func(context.Context, *model.File) error { return errors.New("read-only") }
		final, err := fx.ctrl.TrackProcessing(ctx, f.ID, events(f.ID, model.StatusUploading, model.StatusError))
		if err == nil {
			t.Fatal("TrackProcessing() expected error")
		}
		if final != model.StatusError {
			t.Errorf("final = %s, want error", final)
		}
	})
}
