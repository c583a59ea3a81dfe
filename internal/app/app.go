package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"academic-vault/internal/ai"
	"academic-vault/internal/auth"
	"academic-vault/internal/av"
	"academic-vault/internal/config"
	"academic-vault/internal/database"
	"academic-vault/internal/encryption"
	"academic-vault/internal/fs"
	"academic-vault/internal/model"
	"academic-vault/internal/statusfeed"
	"academic-vault/internal/storage"
)

// AVApp is the application layer between the CLI and the av core.
// It constructs all dependencies from config, keeps the signed-in session
// in <base_dir>/session, and exposes one method per CLI action.
// The caller must call Close when done.
type AVApp struct {
	cfg       *config.Config
	db        database.Store
	store     av.ObjectStore
	encryptor av.Encryptor
	auth      *auth.Service
	fsmgr     av.FilesystemManager
	logger    av.Logger
	clock     av.Clock
	logFile   *os.File

	// gateway and feed are created on first use.
	gateway av.AIGateway
	feed    statusfeed.Source

	identity *av.Identity
}

// NewAVApp creates a fully wired AVApp from the given config.
func NewAVApp(ctx context.Context, cfg *config.Config) (*AVApp, error) {
	runID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a, err := newAVApp(ctx, cfg, logger, av.RealClock{})
	if err != nil {
		logFile.Close()
		return nil, err
	}
	a.logFile = logFile
	return a, nil
}

func newAVApp(ctx context.Context, cfg *config.Config, logger av.Logger, clock av.Clock) (*AVApp, error) {
	db, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date (run 'av db migrate'): %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	store, err := storage.NewStoreFromConfig(ctx, cfg.Storage, enc)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating object store: %w", err)
	}

	authSvc, err := auth.NewServiceFromConfig(ctx, cfg.Auth, db, logger, clock)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating auth service: %w", err)
	}

	return &AVApp{
		cfg:       cfg,
		db:        db,
		store:     store,
		encryptor: enc,
		auth:      authSvc,
		fsmgr:     fs.NewOSFilesystemManager(cfg.Filesystem.Ignore),
		logger:    logger,
		clock:     clock,
	}, nil
}

// MigrateDatabase brings the configured database to the latest schema.
func MigrateDatabase(cfg *config.Config) error {
	db, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// Schema returns the CREATE statements of the latest records schema.
func Schema() (string, error) {
	return database.GenerateSchema()
}

// Identity operations

// SignUp registers an account and returns its email verification token.
func (a *AVApp) SignUp(ctx context.Context, email, password, displayName string) (string, error) {
	return a.auth.SignUp(ctx, email, password, displayName)
}

// VerifyEmail confirms an email address with a verification token.
func (a *AVApp) VerifyEmail(ctx context.Context, token string) error {
	return a.auth.VerifyEmail(ctx, token)
}

// SignIn signs in with a password and stores the session token.
func (a *AVApp) SignIn(ctx context.Context, email, password string) (*av.Identity, error) {
	token, err := a.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return a.startSession(ctx, token)
}

// SignInGuest starts a guest session and stores its token.
func (a *AVApp) SignInGuest(ctx context.Context) (*av.Identity, error) {
	token, err := a.auth.SignInGuest(ctx)
	if err != nil {
		return nil, err
	}
	return a.startSession(ctx, token)
}

func (a *AVApp) startSession(ctx context.Context, token string) (*av.Identity, error) {
	if err := a.saveToken(token); err != nil {
		return nil, err
	}
	id, err := a.auth.Session(ctx, token)
	if err != nil {
		return nil, err
	}
	a.identity = id
	return id, nil
}

// SignOut revokes the stored session and forgets its token.
func (a *AVApp) SignOut(ctx context.Context) error {
	token, err := a.loadToken()
	if err != nil {
		if errors.Is(err, ErrNotSignedIn) {
			return nil
		}
		return err
	}
	if err := a.auth.SignOut(ctx, token); err != nil {
		return err
	}
	a.identity = nil
	return a.clearToken()
}

// SetRole assigns a role to an account. Operator action run against the
// local database.
func (a *AVApp) SetRole(ctx context.Context, email string, role model.Role) (*model.UserProfile, error) {
	return a.auth.SetRole(ctx, email, role)
}

// Identity returns the signed-in identity.
func (a *AVApp) Identity(ctx context.Context) (*av.Identity, error) {
	if a.identity != nil {
		return a.identity, nil
	}
	token, err := a.loadToken()
	if err != nil {
		return nil, err
	}
	id, err := a.auth.Session(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			a.clearToken()
			return nil, fmt.Errorf("%w: session expired", ErrNotSignedIn)
		}
		return nil, err
	}
	a.identity = id
	return id, nil
}

// UpdateSettings stores the signed-in user's settings.
func (a *AVApp) UpdateSettings(ctx context.Context, settings model.UserSettings) (*model.UserProfile, error) {
	id, err := a.Identity(ctx)
	if err != nil {
		return nil, err
	}
	return a.auth.UpdateSettings(ctx, id, settings)
}

// Vault operations

func (a *AVApp) controller(ctx context.Context, scope model.Visibility) (*av.Controller, error) {
	id, err := a.Identity(ctx)
	if err != nil {
		return nil, err
	}
	return av.NewController(a.db, a.store, id, a.logger, a.clock, av.UUIDGenerator{}, av.WithScope(scope)), nil
}

// List navigates to folderID in the private or shared vault and returns the view.
func (a *AVApp) List(ctx context.Context, folderID *string, shared bool) (av.View, error) {
	scope := model.VisibilityPrivate
	if shared {
		scope = model.VisibilityShared
	}
	ctrl, err := a.controller(ctx, scope)
	if err != nil {
		return av.View{}, err
	}
	if err := ctrl.Navigate(ctx, folderID); err != nil {
		return av.View{}, err
	}
	return ctrl.View(), nil
}

// CreateFolder creates a folder under parentID.
func (a *AVApp) CreateFolder(ctx context.Context, title string, parentID *string) (*model.Folder, error) {
	ctrl, err := a.controller(ctx, model.VisibilityPrivate)
	if err != nil {
		return nil, err
	}
	if err := ctrl.Navigate(ctx, parentID); err != nil {
		return nil, err
	}
	return ctrl.CreateFolder(ctx, title, parentID)
}

// Upload resolves local paths and uploads the files found into folderID.
func (a *AVApp) Upload(ctx context.Context, rawPaths []string, folderID *string, recursive bool) (*av.UploadResult, error) {
	ctrl, err := a.controller(ctx, model.VisibilityPrivate)
	if err != nil {
		return nil, err
	}
	if err := ctrl.Identity().CanUpload(); err != nil {
		return nil, err
	}

	var candidates []av.RawFile
	for _, p := range rawPaths {
		files, err := a.fsmgr.Collect(p, recursive)
		if err != nil {
			return nil, fmt.Errorf("resolving path: %w", err)
		}
		candidates = append(candidates, files...)
	}
	if len(candidates) == 0 {
		return &av.UploadResult{}, nil
	}
	if err := ctrl.Navigate(ctx, folderID); err != nil {
		return nil, err
	}
	return ctrl.Upload(ctx, candidates, folderID)
}

// Delete deletes files and folders by id.
func (a *AVApp) Delete(ctx context.Context, ids []string) error {
	return a.eachListing(ctx, ids, func(ctrl *av.Controller, ids []string) error {
		return ctrl.BulkDelete(ctx, ids)
	})
}

// Publish shares files by id.
func (a *AVApp) Publish(ctx context.Context, ids []string) error {
	return a.eachListing(ctx, ids, func(ctrl *av.Controller, ids []string) error {
		return ctrl.BulkPublish(ctx, ids)
	})
}

type listingKey struct {
	folder string
	scope  model.Visibility
}

// eachListing groups ids by the listing they appear in, navigates a
// controller to each listing, selects the ids there and calls fn with the
// selection.
func (a *AVApp) eachListing(ctx context.Context, ids []string, fn func(*av.Controller, []string) error) error {
	groups := make(map[listingKey][]string)
	folders := make(map[listingKey]*string)
	var order []listingKey
	for _, id := range ids {
		folderID, scope, err := a.locate(ctx, id)
		if err != nil {
			return err
		}
		key := listingKey{folder: model.FolderKey(folderID), scope: scope}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
			folders[key] = folderID
		}
		if !slices.Contains(groups[key], id) {
			groups[key] = append(groups[key], id)
		}
	}

	for _, key := range order {
		ctrl, err := a.controller(ctx, key.scope)
		if err != nil {
			return err
		}
		if err := ctrl.Navigate(ctx, folders[key]); err != nil {
			return err
		}
		for _, id := range groups[key] {
			ctrl.ToggleSelection(id)
		}
		if err := fn(ctrl, ctrl.Selection()); err != nil {
			return err
		}
	}
	return nil
}

// locate returns the folder and visibility of the listing an item appears in.
func (a *AVApp) locate(ctx context.Context, id string) (*string, model.Visibility, error) {
	f, err := a.db.GetFile(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("getting file: %w", err)
	}
	if f != nil {
		return f.FolderID, f.Visibility, nil
	}
	folder, err := a.db.GetFolder(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("getting folder: %w", err)
	}
	if folder != nil {
		return folder.ParentID, folder.Visibility, nil
	}
	return nil, "", fmt.Errorf("%w: no file or folder with id %s", av.ErrNotFound, id)
}

// Tag adds tags to a file.
func (a *AVApp) Tag(ctx context.Context, fileID string, tags []string) (*model.File, error) {
	ctrl, err := a.controller(ctx, model.VisibilityPrivate)
	if err != nil {
		return nil, err
	}
	f, err := ctrl.Open(ctx, fileID)
	if err != nil {
		return nil, err
	}
	f.Tags = append(f.Tags, tags...)
	if err := ctrl.UpdateFile(ctx, f); err != nil {
		return nil, err
	}
	return ctrl.OpenFile(), nil
}

// Show returns a file with its cached AI content.
func (a *AVApp) Show(ctx context.Context, fileID string) (*model.File, error) {
	ctrl, err := a.controller(ctx, model.VisibilityPrivate)
	if err != nil {
		return nil, err
	}
	return ctrl.Open(ctx, fileID)
}

// Watch follows one processing attempt of a file on the configured status
// feed and reports every state change to observe.
func (a *AVApp) Watch(ctx context.Context, fileID string, observe func(av.Transition)) (model.FileStatus, error) {
	ctrl, err := a.controller(ctx, model.VisibilityPrivate)
	if err != nil {
		return "", err
	}
	if _, err := ctrl.Open(ctx, fileID); err != nil {
		return "", err
	}
	if a.feed == nil {
		feed, err := statusfeed.NewSourceFromConfig(a.cfg.StatusFeed, a.logger)
		if err != nil {
			return "", fmt.Errorf("creating status feed: %w", err)
		}
		a.feed = feed
	}
	return ctrl.TrackProcessing(ctx, fileID, a.feed, observe)
}

// AddSamples adds the onboarding sample files.
func (a *AVApp) AddSamples(ctx context.Context) ([]*model.File, error) {
	ctrl, err := a.controller(ctx, model.VisibilityPrivate)
	if err != nil {
		return nil, err
	}
	return ctrl.AddSampleFiles(ctx)
}

// Stats returns the admin overview.
func (a *AVApp) Stats(ctx context.Context) (*av.Stats, error) {
	id, err := a.Identity(ctx)
	if err != nil {
		return nil, err
	}
	return av.ComputeStats(ctx, a.db, id)
}

// Collections returns the collections service of the signed-in user.
func (a *AVApp) Collections(ctx context.Context) (*av.Collections, error) {
	id, err := a.Identity(ctx)
	if err != nil {
		return nil, err
	}
	return av.NewCollections(a.db, id, a.logger, a.clock, av.UUIDGenerator{}), nil
}

// AI operations

func (a *AVApp) analyzer(ctx context.Context) (*av.Analyzer, error) {
	ctrl, err := a.controller(ctx, model.VisibilityPrivate)
	if err != nil {
		return nil, err
	}
	if a.gateway == nil {
		gw, err := ai.NewClientFromConfig(a.cfg.AI, a.logger)
		if err != nil {
			return nil, fmt.Errorf("creating ai gateway: %w", err)
		}
		a.gateway = gw
	}
	return av.NewAnalyzer(ctrl, a.store, a.gateway, a.logger), nil
}

// Analyze runs an AI analysis over a file and caches the result.
func (a *AVApp) Analyze(ctx context.Context, feature av.Feature, fileID string) (*model.AnalysisContent, error) {
	an, err := a.analyzer(ctx)
	if err != nil {
		return nil, err
	}
	return an.Generate(ctx, fileID, feature)
}

// Chat asks the study coach about a file.
func (a *AVApp) Chat(ctx context.Context, fileID, message string) (*model.ChatMessage, error) {
	an, err := a.analyzer(ctx)
	if err != nil {
		return nil, err
	}
	return an.Chat(ctx, fileID, message)
}

// Study runs a quick-study tool over pasted text.
func (a *AVApp) Study(ctx context.Context, tool av.Feature, text string) (*av.StudyResult, error) {
	an, err := a.analyzer(ctx)
	if err != nil {
		return nil, err
	}
	return an.QuickStudy(ctx, text, tool)
}

// Maintenance operations

// ValidateStorage checks that the object store is reachable and writable.
func (a *AVApp) ValidateStorage(ctx context.Context) error {
	return a.store.ValidateSetup(ctx)
}

// EncryptionEnabled reports whether blobs are encrypted at rest.
func (a *AVApp) EncryptionEnabled() bool {
	return a.cfg.Storage.Encrypt && a.encryptor != nil
}

// SetupEncryption generates the key pair sealed with passphrase. It does
// nothing when encryption is disabled or keys already exist.
func (a *AVApp) SetupEncryption(passphrase string) (bool, error) {
	if a.encryptor == nil || a.encryptor.IsConfigured() {
		return false, nil
	}
	if err := a.encryptor.Setup(passphrase); err != nil {
		return false, fmt.Errorf("setting up encryption: %w", err)
	}
	return true, nil
}

type unlocker interface {
	Unlock(passphrase string) error
	Locked() bool
}

// Locked reports whether reading blobs needs a passphrase first.
func (a *AVApp) Locked() bool {
	u, ok := a.store.(unlocker)
	return ok && u.Locked()
}

// Unlock opens the private key so encrypted blobs can be read.
func (a *AVApp) Unlock(passphrase string) error {
	u, ok := a.store.(unlocker)
	if !ok {
		return nil
	}
	return u.Unlock(passphrase)
}

type backuper interface {
	BackupTo(destPath string) error
}

// BackupDatabase snapshots the records database into the object store under
// _meta/db/<timestamp>.db and returns the key. Admin role required.
func (a *AVApp) BackupDatabase(ctx context.Context) (string, error) {
	id, err := a.Identity(ctx)
	if err != nil {
		return "", err
	}
	if !id.IsAdmin() {
		return "", fmt.Errorf("%w: admin role required", av.ErrPermission)
	}
	b, ok := a.db.(backuper)
	if !ok {
		return "", fmt.Errorf("database type %s does not support backups", a.cfg.Database.Type)
	}

	tmpDir, err := os.MkdirTemp("", "av-db-backup-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir for db backup: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, database.FileName)
	if err := b.BackupTo(tmpPath); err != nil {
		return "", err
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return "", fmt.Errorf("opening db backup for upload: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat db backup: %w", err)
	}

	key := "_meta/db/" + a.clock.Now().UTC().Format("20060102T150405Z") + ".db"
	if err := a.store.Put(ctx, key, f, info.Size(), "application/vnd.sqlite3"); err != nil {
		return "", fmt.Errorf("uploading db backup: %w", err)
	}
	a.logger.Info("database backed up", "key", key, "size", info.Size())
	return key, nil
}

// Close closes all resources.
func (a *AVApp) Close() error {
	var errs []error
	if a.feed != nil {
		if err := a.feed.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing status feed: %w", err))
		}
	}
	if err := a.auth.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing session store: %w", err))
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return errors.Join(errs...)
}

// ParseFolderID turns a --folder flag value into a folder id, "" meaning the root.
func ParseFolderID(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "/" {
		return nil
	}
	return &raw
}
