package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"academic-vault/internal/av"
	"academic-vault/internal/database/migrations"
	"academic-vault/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// maxAncestryDepth bounds the recursive ancestry query on corrupted parent links.
const maxAncestryDepth = 1024

// SQLiteDatabase implements av.Repository and auth.AccountStore using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{
		db:   db,
		path: path,
	}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		// Applied by the driver to every pooled connection.
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Folder operations

func (s *SQLiteDatabase) ListFolders(ctx context.Context, filter av.ListFilter) ([]*model.Folder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+folderColumns+` FROM folders
		WHERE parent_id IS ? AND visibility = ? AND (? = '' OR owner_id = ?)
		ORDER BY title ASC, id ASC`,
		toNullString(filter.FolderID), string(filter.Visibility), filter.OwnerID, filter.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	return collectFolders(rows)
}

func (s *SQLiteDatabase) ListAllFolders(ctx context.Context, ownerID string) ([]*model.Folder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE (? = '' OR owner_id = ?)`, ownerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing all folders: %w", err)
	}
	return collectFolders(rows)
}

func (s *SQLiteDatabase) GetFolder(ctx context.Context, id string) (*model.Folder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = ?`, id)
	folder, err := scanFolder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting folder: %w", err)
	}
	return folder, nil
}

// FolderAncestry resolves the chain with a single recursive query.
func (s *SQLiteDatabase) FolderAncestry(ctx context.Context, id string) ([]*model.Folder, error) {
	rows, err := s.db.QueryContext(ctx,
		`WITH RECURSIVE ancestry(id, parent_id, depth) AS (
			SELECT id, parent_id, 0 FROM folders WHERE id = ?
			UNION ALL
			SELECT f.id, f.parent_id, a.depth + 1
			FROM folders f JOIN ancestry a ON f.id = a.parent_id
			WHERE a.depth < ?
		)
		SELECT `+prefixed("f.", folderColumns)+`
		FROM ancestry a JOIN folders f ON f.id = a.id
		ORDER BY a.depth DESC`,
		id, maxAncestryDepth)
	if err != nil {
		return nil, fmt.Errorf("querying folder ancestry: %w", err)
	}
	chain, err := collectFolders(rows)
	if err != nil {
		return nil, err
	}
	if len(chain) > maxAncestryDepth {
		return nil, fmt.Errorf("%w: parent links of folder %s form a cycle", av.ErrAncestryUnavailable, id)
	}
	return chain, nil
}

func (s *SQLiteDatabase) CreateFolder(ctx context.Context, folder *model.Folder) error {
	path, err := encodeList(folder.Path)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO folders (`+folderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		folder.ID, folder.OwnerID, folder.Title, toNullString(folder.ParentID), string(folder.Visibility),
		path, toNanos(folder.CreatedAt), toNanos(folder.UpdatedAt))
	if err != nil {
		return fmt.Errorf("creating folder: %w", err)
	}
	return nil
}

// DeleteFolders relies on ON DELETE CASCADE for subfolders and their files.
func (s *SQLiteDatabase) DeleteFolders(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	in, args := inClause(ids)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM folders WHERE id IN `+in, args...); err != nil {
		return fmt.Errorf("deleting folders: %w", err)
	}
	return nil
}

// File operations

func (s *SQLiteDatabase) ListFiles(ctx context.Context, filter av.ListFilter) ([]*model.File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files
		WHERE folder_id IS ? AND visibility = ? AND (? = '' OR owner_id = ?)
		ORDER BY created_at DESC, id ASC`,
		toNullString(filter.FolderID), string(filter.Visibility), filter.OwnerID, filter.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return collectFiles(rows)
}

func (s *SQLiteDatabase) ListAllFiles(ctx context.Context) ([]*model.File, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing all files: %w", err)
	}
	return collectFiles(rows)
}

func (s *SQLiteDatabase) ListFilesInFolders(ctx context.Context, folderIDs []string) ([]*model.File, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(folderIDs)
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files WHERE folder_id IN `+in, args...)
	if err != nil {
		return nil, fmt.Errorf("listing files in folders: %w", err)
	}
	return collectFiles(rows)
}

func (s *SQLiteDatabase) GetFile(ctx context.Context, id string) (*model.File, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	file, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting file: %w", err)
	}
	return file, nil
}

func (s *SQLiteDatabase) GetFilesByIDs(ctx context.Context, ids []string) ([]*model.File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id IN `+in, args...)
	if err != nil {
		return nil, fmt.Errorf("getting files: %w", err)
	}
	return collectFiles(rows)
}

func (s *SQLiteDatabase) CreateFile(ctx context.Context, file *model.File) error {
	args, err := fileArgs(file)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO files (`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) UpdateFile(ctx context.Context, file *model.File) error {
	args, err := fileArgs(file)
	if err != nil {
		return err
	}
	// fileArgs leads with id and owner_id; the rest are updated in column order.
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET folder_id = ?, title = ?, type = ?, size = ?, status = ?, progress = ?,
			visibility = ?, collection_ids = ?, tags = ?, meta = ?, ai_content = ?, created_at = ?, updated_at = ?
		WHERE id = ?`,
		append(args[2:], file.ID)...)
	if err != nil {
		return fmt.Errorf("updating file: %w", err)
	}
	return expectRow(res, "file", file.ID)
}

func (s *SQLiteDatabase) PublishFiles(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	in, args := inClause(ids)
	_, err := s.db.ExecContext(ctx,
		`UPDATE files SET visibility = 'shared', updated_at = ? WHERE id IN `+in,
		append([]any{toNanos(at)}, args...)...)
	if err != nil {
		return fmt.Errorf("publishing files: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteFiles(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	in, args := inClause(ids)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id IN `+in, args...); err != nil {
		return fmt.Errorf("deleting files: %w", err)
	}
	return nil
}

// Collection operations

func (s *SQLiteDatabase) ListCollections(ctx context.Context, ownerID string) ([]*model.Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE (? = '' OR owner_id = ?) ORDER BY title ASC, id ASC`,
		ownerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var out []*model.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteDatabase) GetCollection(ctx context.Context, id string) (*model.Collection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id)
	c, err := scanCollection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting collection: %w", err)
	}
	return c, nil
}

func (s *SQLiteDatabase) CreateCollection(ctx context.Context, c *model.Collection) error {
	fileIDs, err := encodeList(c.FileIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO collections (`+collectionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Title, string(c.Visibility), fileIDs, toNanos(c.CreatedAt), toNanos(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) UpdateCollection(ctx context.Context, c *model.Collection) error {
	fileIDs, err := encodeList(c.FileIDs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE collections SET title = ?, visibility = ?, file_ids = ?, updated_at = ? WHERE id = ?`,
		c.Title, string(c.Visibility), fileIDs, toNanos(c.UpdatedAt), c.ID)
	if err != nil {
		return fmt.Errorf("updating collection: %w", err)
	}
	return expectRow(res, "collection", c.ID)
}

func (s *SQLiteDatabase) DeleteCollection(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// Profile operations

func (s *SQLiteDatabase) GetProfile(ctx context.Context, id string) (*model.UserProfile, error) {
	var (
		p        model.UserProfile
		settings string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, role, settings FROM profiles WHERE id = ?`, id).
		Scan(&p.ID, &p.DisplayName, &p.Role, &settings)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	if err := json.Unmarshal([]byte(settings), &p.Settings); err != nil {
		return nil, fmt.Errorf("decoding profile settings: %w", err)
	}
	return &p, nil
}

func (s *SQLiteDatabase) CreateProfile(ctx context.Context, p *model.UserProfile) error {
	settings, err := json.Marshal(p.Settings)
	if err != nil {
		return fmt.Errorf("encoding profile settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, display_name, role, settings) VALUES (?, ?, ?, ?)`,
		p.ID, p.DisplayName, string(p.Role), string(settings))
	if err != nil {
		return fmt.Errorf("creating profile: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) UpdateProfile(ctx context.Context, p *model.UserProfile) error {
	settings, err := json.Marshal(p.Settings)
	if err != nil {
		return fmt.Errorf("encoding profile settings: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET display_name = ?, role = ?, settings = ? WHERE id = ?`,
		p.DisplayName, string(p.Role), string(settings), p.ID)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return expectRow(res, "profile", p.ID)
}

// Account operations

func (s *SQLiteDatabase) CreateAccount(ctx context.Context, a *model.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, email_verified_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.PasswordHash, nullNanos(a.EmailVerifiedAt), toNanos(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("creating account: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return s.getAccount(ctx, "id", id)
}

func (s *SQLiteDatabase) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return s.getAccount(ctx, "email", email)
}

func (s *SQLiteDatabase) getAccount(ctx context.Context, column, value string) (*model.Account, error) {
	var (
		a          model.Account
		verifiedAt sql.NullInt64
		createdAt  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, email_verified_at, created_at FROM accounts WHERE `+column+` = ?`, value).
		Scan(&a.ID, &a.Email, &a.PasswordHash, &verifiedAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting account: %w", err)
	}
	if verifiedAt.Valid {
		t := fromNanos(verifiedAt.Int64)
		a.EmailVerifiedAt = &t
	}
	a.CreatedAt = fromNanos(createdAt)
	return &a, nil
}

func (s *SQLiteDatabase) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET email_verified_at = ? WHERE id = ? AND email_verified_at IS NULL`, toNanos(at), id)
	if err != nil {
		return fmt.Errorf("verifying email: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("verifying email: %w", err)
	}
	if n == 0 {
		// Already verified is fine; a missing account is not.
		a, err := s.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("%w: account %s", av.ErrNotFound, id)
		}
	}
	return nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate brings the schema to the latest version.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func collectFolders(rows *sql.Rows) ([]*model.Folder, error) {
	defer rows.Close()
	var out []*model.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning folder: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func collectFiles(rows *sql.Rows) ([]*model.File, error) {
	defer rows.Close()
	var out []*model.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating %s: %w", kind, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", av.ErrNotFound, kind, id)
	}
	return nil
}

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

// prefixed qualifies every column of a column list with prefix.
func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = prefix + p
	}
	return strings.Join(parts, ", ")
}

// Compile-time check that SQLiteDatabase implements the Store interface
var _ Store = (*SQLiteDatabase)(nil)
