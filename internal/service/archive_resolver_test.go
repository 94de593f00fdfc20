package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ipcr-api/internal/models"
	"github.com/noah-isme/ipcr-api/internal/repository"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
	"github.com/noah-isme/ipcr-api/pkg/gdrive"
)

type driveFolder struct {
	id, name, parent string
}

type fakeDrive struct {
	mu        sync.Mutex
	folders   []driveFolder
	files     []gdrive.File
	creates   map[string]int
	uploadErr error
	nextID    int
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{creates: make(map[string]int)}
}

func (d *fakeDrive) ListFolders(ctx context.Context, parentID, name string) ([]gdrive.Folder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []gdrive.Folder
	for _, f := range d.folders {
		if f.parent == parentID && f.name == name {
			out = append(out, gdrive.Folder{ID: f.id, Name: f.name})
		}
	}
	return out, nil
}

func (d *fakeDrive) CreateFolder(ctx context.Context, name, parentID string) (gdrive.Folder, error) {
	// Widen the race window for concurrent resolvers.
	time.Sleep(5 * time.Millisecond)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	f := driveFolder{id: fmt.Sprintf("folder-%d", d.nextID), name: name, parent: parentID}
	d.folders = append(d.folders, f)
	d.creates[name]++
	return gdrive.Folder{ID: f.id, Name: f.name}, nil
}

func (d *fakeDrive) CreateFile(ctx context.Context, name, parentID string, content []byte, mimeType string) (gdrive.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.uploadErr != nil {
		return gdrive.File{}, d.uploadErr
	}
	d.nextID++
	f := gdrive.File{ID: fmt.Sprintf("file-%d", d.nextID), Name: name, Link: "https://drive.example/" + name}
	d.files = append(d.files, f)
	return f, nil
}

func (d *fakeDrive) createCount(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.creates[name]
}

type memoryFolderCache struct {
	mu      sync.Mutex
	entries map[string]string
	deleted []string
}

func newMemoryFolderCache() *memoryFolderCache {
	return &memoryFolderCache{entries: make(map[string]string)}
}

func (c *memoryFolderCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.entries[key]
	if !ok {
		return "", appErrors.ErrCacheMiss
	}
	return id, nil
}

func (c *memoryFolderCache) Set(ctx context.Context, key, folderID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = folderID
	return nil
}

func (c *memoryFolderCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.deleted = append(c.deleted, key)
	return nil
}

func staticFactory(drive *fakeDrive, calls *int) ArchiveProviderFactory {
	var mu sync.Mutex
	return func(ctx context.Context, creds models.StorageCredentials) (ArchiveProvider, error) {
		mu.Lock()
		*calls++
		mu.Unlock()
		return drive, nil
	}
}

var testCreds = &models.StorageCredentials{AccessToken: "token"}

func TestArchiveResolverSkipsWithoutCredentials(t *testing.T) {
	calls := 0
	resolver := NewArchiveResolver(staticFactory(newFakeDrive(), &calls), nil, ArchiveConfig{Enabled: true}, nil)

	outcome := resolver.Archive(context.Background(), "owner-1", nil, []byte("%PDF-1.4"), "a.pdf", models.CategorySyllabus)

	assert.Equal(t, models.ArchiveStatusSkipped, outcome.Status)
	assert.False(t, outcome.Archived())
	assert.Zero(t, calls)
}

func TestArchiveResolverSkipsWhenDisabled(t *testing.T) {
	calls := 0
	resolver := NewArchiveResolver(staticFactory(newFakeDrive(), &calls), nil, ArchiveConfig{Enabled: false}, nil)

	outcome := resolver.Archive(context.Background(), "owner-1", testCreds, []byte("%PDF-1.4"), "a.pdf", models.CategorySyllabus)

	assert.Equal(t, models.ArchiveStatusSkipped, outcome.Status)
	assert.Zero(t, calls)
}

func TestArchiveResolverCreatesHierarchyAndUploads(t *testing.T) {
	drive := newFakeDrive()
	calls := 0
	cache := newMemoryFolderCache()
	resolver := NewArchiveResolver(staticFactory(drive, &calls), cache, ArchiveConfig{Enabled: true}, nil)

	outcome := resolver.Archive(context.Background(), "owner-1", testCreds, []byte("%PDF-1.4 body"), "syllabus.pdf", models.CategoryCourseGuide)

	require.True(t, outcome.Archived())
	assert.Equal(t, "LSPUDOCS/IPCR/Course Guide", outcome.Ref.FolderPath)
	assert.Equal(t, "https://drive.example/syllabus.pdf", outcome.Ref.Link)
	assert.Equal(t, 1, drive.createCount("LSPUDOCS"))
	assert.Equal(t, 1, drive.createCount("IPCR"))
	assert.Equal(t, 1, drive.createCount("Course Guide"))

	_, err := cache.Get(context.Background(), repository.FolderKey("owner-1", "LSPUDOCS/IPCR/Course Guide"))
	assert.NoError(t, err)
}

func TestArchiveResolverReusesExistingFolders(t *testing.T) {
	drive := newFakeDrive()
	drive.folders = []driveFolder{
		{id: "root", name: "LSPUDOCS"},
		{id: "pipe", name: "IPCR", parent: "root"},
		{id: "slm", name: "SLM", parent: "pipe"},
	}
	calls := 0
	resolver := NewArchiveResolver(staticFactory(drive, &calls), nil, ArchiveConfig{Enabled: true}, nil)

	outcome := resolver.Archive(context.Background(), "owner-1", testCreds, []byte("%PDF-1.4"), "module.pdf", models.CategorySLM)

	require.True(t, outcome.Archived())
	assert.Zero(t, drive.createCount("LSPUDOCS"))
	assert.Zero(t, drive.createCount("IPCR"))
	assert.Zero(t, drive.createCount("SLM"))
}

func TestArchiveResolverConcurrentUploadsCreateFoldersOnce(t *testing.T) {
	drive := newFakeDrive()
	calls := 0
	resolver := NewArchiveResolver(staticFactory(drive, &calls), nil, ArchiveConfig{Enabled: true}, nil)

	categories := []models.Category{models.CategorySyllabus, models.CategorySyllabus, models.CategoryTOS, models.CategorySyllabus, models.CategoryTOS}
	var wg sync.WaitGroup
	outcomes := make([]ArchiveOutcome, len(categories))
	for i, category := range categories {
		wg.Add(1)
		go func(i int, category models.Category) {
			defer wg.Done()
			outcomes[i] = resolver.Archive(context.Background(), "owner-1", testCreds, []byte("%PDF-1.4"), fmt.Sprintf("f%d.pdf", i), category)
		}(i, category)
	}
	wg.Wait()

	for _, o := range outcomes {
		assert.True(t, o.Archived())
	}
	assert.Equal(t, 1, drive.createCount("LSPUDOCS"))
	assert.Equal(t, 1, drive.createCount("IPCR"))
	assert.Equal(t, 1, drive.createCount("Syllabus"))
	assert.Equal(t, 1, drive.createCount("TOS"))
	assert.Len(t, drive.files, len(categories))
}

func TestArchiveResolverUploadFailureEvictsCache(t *testing.T) {
	drive := newFakeDrive()
	drive.uploadErr = errors.New("quota exceeded")
	calls := 0
	cache := newMemoryFolderCache()
	resolver := NewArchiveResolver(staticFactory(drive, &calls), cache, ArchiveConfig{Enabled: true}, nil)

	outcome := resolver.Archive(context.Background(), "owner-1", testCreds, []byte("%PDF-1.4"), "a.pdf", models.CategoryTOS)

	assert.Equal(t, models.ArchiveStatusFailed, outcome.Status)
	require.Error(t, outcome.Err)
	assert.Nil(t, outcome.Ref)
	assert.Len(t, cache.deleted, 3)
	assert.Empty(t, cache.entries)
}

func TestArchiveResolverFactoryFailureIsFailedOutcome(t *testing.T) {
	factory := func(ctx context.Context, creds models.StorageCredentials) (ArchiveProvider, error) {
		return nil, errors.New("token rejected")
	}
	resolver := NewArchiveResolver(factory, nil, ArchiveConfig{Enabled: true}, nil)

	outcome := resolver.Archive(context.Background(), "owner-1", testCreds, []byte("%PDF-1.4"), "a.pdf", models.CategoryTOS)

	assert.Equal(t, models.ArchiveStatusFailed, outcome.Status)
	assert.ErrorContains(t, outcome.Err, "token rejected")
}

type stalledDrive struct {
	fakeDrive
}

func (d *stalledDrive) ListFolders(ctx context.Context, parentID, name string) ([]gdrive.Folder, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestArchiveResolverTimesOutStalledProvider(t *testing.T) {
	drive := &stalledDrive{fakeDrive: fakeDrive{creates: make(map[string]int)}}
	factory := func(ctx context.Context, creds models.StorageCredentials) (ArchiveProvider, error) {
		return drive, nil
	}
	resolver := NewArchiveResolver(factory, nil, ArchiveConfig{Enabled: true, Timeout: 50 * time.Millisecond}, nil)

	done := make(chan ArchiveOutcome, 1)
	go func() {
		done <- resolver.Archive(context.WithoutCancel(context.Background()), "owner-1", testCreds, []byte("%PDF-1.4"), "a.pdf", models.CategorySyllabus)
	}()

	select {
	case outcome := <-done:
		assert.Equal(t, models.ArchiveStatusFailed, outcome.Status)
		assert.ErrorIs(t, outcome.Err, context.DeadlineExceeded)
		assert.ErrorContains(t, outcome.Err, "timed out")
	case <-time.After(2 * time.Second):
		t.Fatal("archive did not return after its timeout")
	}
}

func TestArchiveResolverDefaultTimeout(t *testing.T) {
	resolver := NewArchiveResolver(nil, nil, ArchiveConfig{Enabled: true}, nil)
	assert.Equal(t, 30*time.Second, resolver.cfg.Timeout)
}

func TestDetectMimeTypeDefaultsToPDF(t *testing.T) {
	assert.Equal(t, "application/pdf", detectMimeType(nil))
	assert.Equal(t, "application/pdf", detectMimeType([]byte("%PDF-1.4\n")))
	assert.Equal(t, "application/pdf", detectMimeType([]byte{0x00, 0x01, 0x02}))
}
