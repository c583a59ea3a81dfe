package av

import (
	"context"
	"errors"
	"fmt"

	"academic-vault/internal/model"
)

// TrackProcessing follows one processing attempt of a file. Events from source
// drive a Tracker; every state change is persisted through UpdateFile and
// reported to observers. Events that the state machine does not allow are
// logged and skipped. If the source ends before a terminal state the file is
// moved to error.
//
// It returns the final state of the attempt.
func (c *Controller) TrackProcessing(ctx context.Context, fileID string, source StatusSource, observers ...func(Transition)) (model.FileStatus, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := source.Watch(watchCtx, fileID)
	if err != nil {
		return model.StatusIdle, fmt.Errorf("watching file status: %w", err)
	}

	var persistErr error
	persist := func(tr Transition) {
		if err := c.persistTransition(ctx, tr); err != nil {
			persistErr = errors.Join(persistErr, err)
		}
	}
	tracker := NewTracker(fileID, append([]func(Transition){persist}, observers...)...)

	for ev := range events {
		if ev.FileID != fileID {
			continue
		}
		if _, err := tracker.Advance(ev.Status); err != nil {
			c.logger.Warn("ignoring status event", "file_id", fileID, "status", ev.Status, "error", err)
			continue
		}
		if tracker.Terminal() {
			break
		}
	}

	if !tracker.Terminal() {
		if err := ctx.Err(); err != nil {
			return tracker.Status(), err
		}
		c.logger.Warn("status feed ended before a terminal state", "file_id", fileID, "status", tracker.Status())
		if _, err := tracker.Advance(model.StatusError); err != nil {
			return tracker.Status(), err
		}
	}
	return tracker.Status(), persistErr
}

func (c *Controller) persistTransition(ctx context.Context, tr Transition) error {
	file, err := c.snapshot(ctx, tr.FileID)
	if err != nil {
		return err
	}
	file.Status = tr.To
	file.Progress = tr.Progress
	if err := c.UpdateFile(ctx, file); err != nil {
		return fmt.Errorf("persisting status %s: %w", tr.To, err)
	}
	c.logger.Debug("file status changed", "file_id", tr.FileID, "from", tr.From, "to", tr.To, "progress", tr.Progress)
	return nil
}
