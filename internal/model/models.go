package model

import (
	"slices"
	"time"
)

// Role is the authorization role carried by a user profile.
type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleStudent Role = "Student"
	RoleGuest   Role = "Guest"
)

// Visibility controls whether an item appears in the owner's vault or in the
// shared vault visible to every user.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityShared  Visibility = "shared"
)

// FileType is the accepted document/media extension of a file.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypePPTX FileType = "pptx"
	FileTypeTXT  FileType = "txt"
	FileTypePNG  FileType = "png"
	FileTypeJPG  FileType = "jpg"
	FileTypeMP3  FileType = "mp3"
	FileTypeWAV  FileType = "wav"
	FileTypeM4A  FileType = "m4a"
	FileTypeMP4  FileType = "mp4"
	FileTypeMOV  FileType = "mov"
)

// IsMedia reports whether the type is audio or video.
func (t FileType) IsMedia() bool {
	switch t {
	case FileTypeMP3, FileTypeWAV, FileTypeM4A, FileTypeMP4, FileTypeMOV:
		return true
	}
	return false
}

// FileStatus is the lifecycle state of a file.
type FileStatus string

const (
	StatusIdle        FileStatus = "idle"
	StatusUploading   FileStatus = "uploading"
	StatusScanning    FileStatus = "scanning"
	StatusProcessing  FileStatus = "processing"
	StatusReady       FileStatus = "ready"
	StatusError       FileStatus = "error"
	StatusQuarantined FileStatus = "quarantined"
)

// UserSettings holds per-user preferences.
type UserSettings struct {
	SidebarCollapsed bool `json:"sidebar_collapsed,omitempty" yaml:"sidebar_collapsed,omitempty"`
}

// UserProfile is the application-level profile attached to an identity.
type UserProfile struct {
	ID          string       `json:"id" yaml:"id"` // matches the account id
	DisplayName string       `json:"display_name" yaml:"display_name"`
	Role        Role         `json:"role" yaml:"role"`
	Settings    UserSettings `json:"settings" yaml:"settings"`
}

// Folder is a node of a user's vault hierarchy.
type Folder struct {
	ID         string     `json:"id" yaml:"id"`
	OwnerID    string     `json:"owner_id" yaml:"owner_id"`
	Title      string     `json:"title" yaml:"title"`
	ParentID   *string    `json:"parent_id" yaml:"parent_id"` // nil = vault root
	Visibility Visibility `json:"visibility" yaml:"visibility"`
	Path       []string   `json:"path" yaml:"path"` // ancestor ids, root first, immediate parent last
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" yaml:"updated_at"`
}

// Clone returns a deep copy of the folder.
func (f *Folder) Clone() *Folder {
	if f == nil {
		return nil
	}
	c := *f
	c.ParentID = cloneID(f.ParentID)
	c.Path = slices.Clone(f.Path)
	return &c
}

// FileMeta holds format-specific attributes.
type FileMeta struct {
	Pages       int      `json:"pages,omitempty" yaml:"pages,omitempty"`
	Duration    int      `json:"duration,omitempty" yaml:"duration,omitempty"` // seconds
	Authors     []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	CourseCode  string   `json:"course_code,omitempty" yaml:"course_code,omitempty"`
	StoragePath string   `json:"storage_path,omitempty" yaml:"storage_path,omitempty"`
}

// Flashcard is a single question/answer pair.
type Flashcard struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// ChatRole identifies the author of a chat turn.
type ChatRole string

const (
	ChatRoleUser  ChatRole = "user"
	ChatRoleModel ChatRole = "model"
)

// ChatMessage is a single turn of a study-coach conversation.
type ChatMessage struct {
	Role    ChatRole `json:"role" yaml:"role"`
	Content string   `json:"content" yaml:"content"`
}

// AnalysisContent caches AI-generated artifacts for a file.
type AnalysisContent struct {
	Summary     string        `json:"summary,omitempty" yaml:"summary,omitempty"`
	Concepts    string        `json:"concepts,omitempty" yaml:"concepts,omitempty"`
	Questions   string        `json:"questions,omitempty" yaml:"questions,omitempty"`
	Timeline    string        `json:"timeline,omitempty" yaml:"timeline,omitempty"`
	Flashcards  []Flashcard   `json:"flashcards,omitempty" yaml:"flashcards,omitempty"`
	Tags        []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
	ChatHistory []ChatMessage `json:"chat_history,omitempty" yaml:"chat_history,omitempty"`
}

// Clone returns a deep copy of the analysis content.
func (a *AnalysisContent) Clone() *AnalysisContent {
	if a == nil {
		return nil
	}
	c := *a
	c.Flashcards = slices.Clone(a.Flashcards)
	c.Tags = slices.Clone(a.Tags)
	c.ChatHistory = slices.Clone(a.ChatHistory)
	return &c
}

// File is an uploaded document or media item.
type File struct {
	ID            string           `json:"id" yaml:"id"`
	OwnerID       string           `json:"owner_id" yaml:"owner_id"`
	FolderID      *string          `json:"folder_id" yaml:"folder_id"` // nil = vault root
	Title         string           `json:"title" yaml:"title"`
	Type          FileType         `json:"type" yaml:"type"`
	Size          int64            `json:"size" yaml:"size"`
	Status        FileStatus       `json:"status" yaml:"status"`
	Progress      int              `json:"progress" yaml:"progress"`
	Visibility    Visibility       `json:"visibility" yaml:"visibility"`
	CollectionIDs []string         `json:"collection_ids" yaml:"collection_ids"`
	Tags          []string         `json:"tags" yaml:"tags"`
	CreatedAt     time.Time        `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" yaml:"updated_at"`
	Meta          *FileMeta        `json:"meta,omitempty" yaml:"meta,omitempty"`
	AIContent     *AnalysisContent `json:"ai_content,omitempty" yaml:"ai_content,omitempty"`
}

// Clone returns a deep copy of the file.
func (f *File) Clone() *File {
	if f == nil {
		return nil
	}
	c := *f
	c.FolderID = cloneID(f.FolderID)
	c.CollectionIDs = slices.Clone(f.CollectionIDs)
	c.Tags = slices.Clone(f.Tags)
	if f.Meta != nil {
		m := *f.Meta
		m.Authors = slices.Clone(f.Meta.Authors)
		c.Meta = &m
	}
	c.AIContent = f.AIContent.Clone()
	return &c
}

// StoragePath returns the object-storage locator, or "" when the file has no blob.
func (f *File) StoragePath() string {
	if f.Meta == nil {
		return ""
	}
	return f.Meta.StoragePath
}

// Collection is a cross-folder grouping of files. It does not own its files.
type Collection struct {
	ID         string     `json:"id" yaml:"id"`
	OwnerID    string     `json:"owner_id" yaml:"owner_id"`
	Title      string     `json:"title" yaml:"title"`
	Visibility Visibility `json:"visibility" yaml:"visibility"`
	FileIDs    []string   `json:"file_ids" yaml:"file_ids"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" yaml:"updated_at"`
}

// Clone returns a deep copy of the collection.
func (c *Collection) Clone() *Collection {
	if c == nil {
		return nil
	}
	cp := *c
	cp.FileIDs = slices.Clone(c.FileIDs)
	return &cp
}

// SameFolder reports whether two nullable folder ids refer to the same folder.
func SameFolder(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// FolderKey renders a nullable folder id for logs and map keys.
func FolderKey(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

func cloneID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// Account is a sign-in identity. Guests have a profile but no account.
type Account struct {
	ID              string     `json:"id" yaml:"id"`
	Email           string     `json:"email" yaml:"email"`
	PasswordHash    string     `json:"-" yaml:"-"`
	EmailVerifiedAt *time.Time `json:"email_verified_at" yaml:"email_verified_at"`
	CreatedAt       time.Time  `json:"created_at" yaml:"created_at"`
}
