package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/noah-isme/ipcr-api/internal/models"
	"github.com/noah-isme/ipcr-api/internal/repository"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
	"github.com/noah-isme/ipcr-api/pkg/gdrive"
	"github.com/noah-isme/ipcr-api/pkg/logger"
)

const (
	defaultArchiveMimeType = "application/pdf"
	defaultArchiveTimeout  = 30 * time.Second
)

// ArchiveProvider is the subset of a hierarchical file store the resolver needs.
// An empty parentID addresses the root.
type ArchiveProvider interface {
	ListFolders(ctx context.Context, parentID, name string) ([]gdrive.Folder, error)
	CreateFolder(ctx context.Context, name, parentID string) (gdrive.Folder, error)
	CreateFile(ctx context.Context, name, parentID string, content []byte, mimeType string) (gdrive.File, error)
}

// ArchiveProviderFactory builds a provider acting with the owner's credentials.
type ArchiveProviderFactory func(ctx context.Context, creds models.StorageCredentials) (ArchiveProvider, error)

type folderCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, folderID string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ArchiveOutcome tags the result of one best-effort archive attempt.
type ArchiveOutcome struct {
	Status models.ArchiveStatus
	Ref    *models.ArchiveRef
	Err    error
}

// Archived reports whether the file reached the archive.
func (o ArchiveOutcome) Archived() bool {
	return o.Status == models.ArchiveStatusArchived && o.Ref != nil
}

// ArchiveConfig names the folder levels above the category folder.
type ArchiveConfig struct {
	Enabled        bool
	RootFolder     string
	PipelineFolder string
	FolderCacheTTL time.Duration
	// Timeout bounds one whole archive attempt: provider build, folder
	// resolution and upload.
	Timeout time.Duration
}

// ArchiveResolver resolves LSPUDOCS/IPCR/<category> for an owner and uploads into it.
type ArchiveResolver struct {
	factory ArchiveProviderFactory
	cache   folderCache
	locks   *keyedMutex
	cfg     ArchiveConfig
	logger  *zap.Logger
}

// NewArchiveResolver constructs the resolver. A nil cache disables folder caching.
func NewArchiveResolver(factory ArchiveProviderFactory, cache folderCache, cfg ArchiveConfig, logger *zap.Logger) *ArchiveResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RootFolder == "" {
		cfg.RootFolder = "LSPUDOCS"
	}
	if cfg.PipelineFolder == "" {
		cfg.PipelineFolder = "IPCR"
	}
	if cfg.FolderCacheTTL <= 0 {
		cfg.FolderCacheTTL = 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultArchiveTimeout
	}
	return &ArchiveResolver{
		factory: factory,
		cache:   cache,
		locks:   newKeyedMutex(),
		cfg:     cfg,
		logger:  logger,
	}
}

// Archive uploads content into the owner's category folder. It never returns
// an error: missing credentials yield a skipped outcome and every provider
// failure yields a failed one.
func (r *ArchiveResolver) Archive(ctx context.Context, ownerID string, creds *models.StorageCredentials, content []byte, fileName string, category models.Category) ArchiveOutcome {
	if r == nil || !r.cfg.Enabled || creds == nil || r.factory == nil {
		return ArchiveOutcome{Status: models.ArchiveStatusSkipped}
	}
	log := logger.WithContext(ctx, r.logger).With(zap.String("owner_id", ownerID), zap.String("file", fileName))

	archiveCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	ref, err := r.archive(archiveCtx, ownerID, *creds, content, fileName, category)
	if err != nil {
		if errors.Is(archiveCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("archive timed out after %s: %w", r.cfg.Timeout, err)
		}
		log.Warn("archive failed", zap.String("category", string(category)), zap.Error(err))
		return ArchiveOutcome{Status: models.ArchiveStatusFailed, Err: err}
	}
	log.Debug("document archived", zap.String("file_id", ref.FileID), zap.String("folder", ref.FolderPath))
	return ArchiveOutcome{Status: models.ArchiveStatusArchived, Ref: ref}
}

func (r *ArchiveResolver) archive(ctx context.Context, ownerID string, creds models.StorageCredentials, content []byte, fileName string, category models.Category) (*models.ArchiveRef, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	provider, err := r.factory(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("build archive provider: %w", err)
	}

	path := []string{r.cfg.RootFolder, r.cfg.PipelineFolder, category.Label()}
	folderID, err := r.resolvePath(ctx, provider, ownerID, path)
	if err != nil {
		return nil, err
	}

	file, err := provider.CreateFile(ctx, fileName, folderID, content, detectMimeType(content))
	if err != nil {
		r.evict(context.WithoutCancel(ctx), ownerID, path)
		return nil, err
	}
	return &models.ArchiveRef{
		FileID:     file.ID,
		Link:       file.Link,
		FolderPath: strings.Join(path, "/"),
	}, nil
}

// resolvePath walks the folder levels, serialising each level per owner and
// prefix so concurrent callers in this process reuse the first folder created.
func (r *ArchiveResolver) resolvePath(ctx context.Context, provider ArchiveProvider, ownerID string, path []string) (string, error) {
	parentID := ""
	for i, name := range path {
		key := repository.FolderKey(ownerID, strings.Join(path[:i+1], "/"))
		id, err := r.resolveLevel(ctx, provider, key, parentID, name)
		if err != nil {
			return "", err
		}
		parentID = id
	}
	return parentID, nil
}

func (r *ArchiveResolver) resolveLevel(ctx context.Context, provider ArchiveProvider, key, parentID, name string) (string, error) {
	unlock := r.locks.Lock(key)
	defer unlock()

	if r.cache != nil {
		id, err := r.cache.Get(ctx, key)
		switch {
		case err == nil && id != "":
			return id, nil
		case err != nil && !errors.Is(err, appErrors.ErrCacheMiss):
			r.logger.Debug("folder cache lookup failed", zap.String("key", key), zap.Error(err))
		}
	}

	folders, err := provider.ListFolders(ctx, parentID, name)
	if err != nil {
		return "", err
	}
	var id string
	for _, f := range folders {
		if f.Name == name {
			id = f.ID
			break
		}
	}
	if id == "" {
		created, err := provider.CreateFolder(ctx, name, parentID)
		if err != nil {
			return "", err
		}
		id = created.ID
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, id, r.cfg.FolderCacheTTL); err != nil {
			r.logger.Debug("folder cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return id, nil
}

func (r *ArchiveResolver) evict(ctx context.Context, ownerID string, path []string) {
	if r.cache == nil {
		return
	}
	for i := range path {
		key := repository.FolderKey(ownerID, strings.Join(path[:i+1], "/"))
		if err := r.cache.Delete(ctx, key); err != nil {
			r.logger.Debug("folder cache eviction failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func detectMimeType(content []byte) string {
	if len(content) == 0 {
		return defaultArchiveMimeType
	}
	detected := mimetype.Detect(content)
	if detected == nil || detected.Is("application/octet-stream") {
		return defaultArchiveMimeType
	}
	return detected.String()
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
