package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"academic-vault/internal/model"
)

const folderColumns = "id, owner_id, title, parent_id, visibility, path, created_at, updated_at"

const fileColumns = "id, owner_id, folder_id, title, type, size, status, progress, visibility, collection_ids, tags, meta, ai_content, created_at, updated_at"

const collectionColumns = "id, owner_id, title, visibility, file_ids, created_at, updated_at"

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFolder(row scanner) (*model.Folder, error) {
	var (
		f                    model.Folder
		parentID             sql.NullString
		path                 string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&f.ID, &f.OwnerID, &f.Title, &parentID, &f.Visibility, &path, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	f.ParentID = fromNullString(parentID)
	if err := json.Unmarshal([]byte(path), &f.Path); err != nil {
		return nil, fmt.Errorf("decoding folder path: %w", err)
	}
	if f.Path == nil {
		f.Path = []string{}
	}
	f.CreatedAt = fromNanos(createdAt)
	f.UpdatedAt = fromNanos(updatedAt)
	return &f, nil
}

func scanFile(row scanner) (*model.File, error) {
	var (
		f                    model.File
		folderID             sql.NullString
		collectionIDs, tags  string
		meta, aiContent      sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(&f.ID, &f.OwnerID, &folderID, &f.Title, &f.Type, &f.Size, &f.Status, &f.Progress,
		&f.Visibility, &collectionIDs, &tags, &meta, &aiContent, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	f.FolderID = fromNullString(folderID)
	if err := json.Unmarshal([]byte(collectionIDs), &f.CollectionIDs); err != nil {
		return nil, fmt.Errorf("decoding collection ids: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &f.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if f.CollectionIDs == nil {
		f.CollectionIDs = []string{}
	}
	if f.Tags == nil {
		f.Tags = []string{}
	}
	if meta.Valid {
		f.Meta = &model.FileMeta{}
		if err := json.Unmarshal([]byte(meta.String), f.Meta); err != nil {
			return nil, fmt.Errorf("decoding meta: %w", err)
		}
	}
	if aiContent.Valid {
		f.AIContent = &model.AnalysisContent{}
		if err := json.Unmarshal([]byte(aiContent.String), f.AIContent); err != nil {
			return nil, fmt.Errorf("decoding ai content: %w", err)
		}
	}
	f.CreatedAt = fromNanos(createdAt)
	f.UpdatedAt = fromNanos(updatedAt)
	return &f, nil
}

func scanCollection(row scanner) (*model.Collection, error) {
	var (
		c                    model.Collection
		fileIDs              string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &c.Visibility, &fileIDs, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fileIDs), &c.FileIDs); err != nil {
		return nil, fmt.Errorf("decoding file ids: %w", err)
	}
	if c.FileIDs == nil {
		c.FileIDs = []string{}
	}
	c.CreatedAt = fromNanos(createdAt)
	c.UpdatedAt = fromNanos(updatedAt)
	return &c, nil
}

// fileArgs returns the column values of a file in fileColumns order.
func fileArgs(f *model.File) ([]any, error) {
	collectionIDs, err := encodeList(f.CollectionIDs)
	if err != nil {
		return nil, err
	}
	tags, err := encodeList(f.Tags)
	if err != nil {
		return nil, err
	}
	meta, err := encodeOptional(f.Meta)
	if err != nil {
		return nil, err
	}
	aiContent, err := encodeOptional(f.AIContent)
	if err != nil {
		return nil, err
	}
	return []any{
		f.ID, f.OwnerID, toNullString(f.FolderID), f.Title, string(f.Type), f.Size, string(f.Status), f.Progress,
		string(f.Visibility), collectionIDs, tags, meta, aiContent, toNanos(f.CreatedAt), toNanos(f.UpdatedAt),
	}, nil
}

func encodeList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding list: %w", err)
	}
	return string(b), nil
}

func encodeOptional[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding json column: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// inClause returns "(?, ?, ...)" with n placeholders and the ids as arguments.
func inClause(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ") + ")", args
}
