package av

import (
	"context"
	"fmt"

	"academic-vault/internal/model"
)

// sampleFiles are the onboarding records offered to new users. They have no
// stored content.
var sampleFiles = []model.File{
	{
		Title: "Sample Lecture Video - Intro to Psychology.mp4",
		Type:  model.FileTypeMP4,
		Size:  128 * 1024 * 1024,
		Tags:  []string{"sample", "lecture", "psychology"},
		Meta:  &model.FileMeta{Duration: 2700, CourseCode: "DEMO101"},
	},
	{
		Title: "Research Paper Sample - The Impact of Sleep on Learning.pdf",
		Type:  model.FileTypePDF,
		Size:  3 * 1024 * 1024,
		Tags:  []string{"sample", "research", "learning"},
		Meta:  &model.FileMeta{Pages: 15},
	},
}

// AddSampleFiles adds the onboarding sample files to the root of the caller's
// vault and refreshes the listing.
func (c *Controller) AddSampleFiles(ctx context.Context) ([]*model.File, error) {
	if c.identity.Role() == model.RoleGuest {
		return nil, fmt.Errorf("%w: guests cannot add files", ErrPermission)
	}

	now := c.clock.Now()
	var added []*model.File
	for _, sample := range sampleFiles {
		f := sample.Clone()
		f.ID = c.idgen.New()
		f.OwnerID = c.identity.UserID
		f.Status = model.StatusReady
		f.Progress = 100
		f.Visibility = model.VisibilityPrivate
		f.CollectionIDs = []string{}
		f.CreatedAt = now
		f.UpdatedAt = now
		if err := c.repo.CreateFile(ctx, f); err != nil {
			c.logger.Error("failed to add sample file", "title", f.Title, "error", err)
			return added, c.settle(ctx, fmt.Errorf("adding sample files: %w", err))
		}
		added = append(added, f)
	}
	c.logger.Info("sample files added", "count", len(added))
	return added, c.Refresh(ctx)
}
