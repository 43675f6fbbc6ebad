package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aristath/cardrisk/internal/database"
	"github.com/aristath/cardrisk/internal/events"
	testingpkg "github.com/aristath/cardrisk/internal/testing"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Upload(_ context.Context, key string, body io.Reader, size int64) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: got %d want %d", len(data), size)
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for k, v := range m.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, ObjectInfo{Key: k, SizeBytes: int64(len(v))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

type backupRecorder struct {
	events.Nop
	completed []*events.BackupCompletedData
}

func (r *backupRecorder) EmitTyped(_ string, data events.EventData) {
	if d, ok := data.(*events.BackupCompletedData); ok {
		r.completed = append(r.completed, d)
	}
}

func newTestService(t *testing.T, store ObjectStore) (*BackupService, *backupRecorder) {
	t.Helper()
	customersDB, cleanupCustomers := testingpkg.NewTestDB(t, database.NameCustomers)
	t.Cleanup(cleanupCustomers)
	cacheDB, cleanupCache := testingpkg.NewTestDB(t, database.NameCache)
	t.Cleanup(cleanupCache)

	rec := &backupRecorder{}
	svc := NewBackupService(store, t.TempDir(), rec, zerolog.Nop(), customersDB, cacheDB)
	svc.now = func() time.Time { return testingpkg.FixtureEpoch }
	return svc, rec
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := make(map[string][]byte)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[h.Name] = body
	}
	return files
}

func TestBackupService_CreateAndUpload(t *testing.T) {
	store := newMemoryStore()
	svc, rec := newTestService(t, store)

	info, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cardrisk-backup-2024-03-01-090000.tar.gz", info.Key)
	require.Contains(t, store.objects, info.Key)
	assert.Equal(t, int64(len(store.objects[info.Key])), info.SizeBytes)

	files := readArchive(t, store.objects[info.Key])
	require.Contains(t, files, "customers.db")
	require.Contains(t, files, "cache.db")
	require.Contains(t, files, metadataFile)

	var meta BackupMetadata
	require.NoError(t, json.Unmarshal(files[metadataFile], &meta))
	require.Len(t, meta.Databases, 2)
	for _, db := range meta.Databases {
		body := files[db.Filename]
		assert.Equal(t, int64(len(body)), db.SizeBytes)
		assert.Equal(t, fmt.Sprintf("sha256:%x", sha256.Sum256(body)), db.Checksum)
	}

	require.Len(t, rec.completed, 1)
	assert.Equal(t, info.Key, rec.completed[0].Key)
}

func TestBackupService_UploadFailure(t *testing.T) {
	store := newMemoryStore()
	store.uploadErr = errors.New("access denied")
	svc, rec := newTestService(t, store)

	_, err := svc.CreateAndUpload(context.Background())
	assert.ErrorContains(t, err, "access denied")
	assert.Empty(t, rec.completed)
}

func TestBackupService_ListAndRotate(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(t, store)
	now := testingpkg.FixtureEpoch

	for _, days := range []int{0, 1, 2, 40, 50, 60} {
		store.objects[ArchiveKey(now.AddDate(0, 0, -days))] = []byte("x")
	}
	store.objects["unrelated.txt"] = []byte("x")
	store.objects["cardrisk-backup-garbage.tar.gz"] = []byte("x")

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 6)
	assert.Equal(t, ArchiveKey(now), backups[0].Key, "newest first")
	assert.Equal(t, int64(24), backups[1].AgeHours)

	deleted, err := svc.RotateOldBackups(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	backups, err = svc.ListBackups(context.Background())
	require.NoError(t, err)
	assert.Len(t, backups, 3)

	deleted, err = svc.RotateOldBackups(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestBackupService_RotateKeepsMinimum(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(t, store)

	for _, days := range []int{100, 200, 300} {
		store.objects[ArchiveKey(testingpkg.FixtureEpoch.AddDate(0, 0, -days))] = []byte("x")
	}

	deleted, err := svc.RotateOldBackups(context.Background(), 7)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, store.objects, 3)
}

func TestBackupJob(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(t, store)

	job := NewBackupJob(svc, 30, zerolog.Nop())
	assert.Equal(t, "backup", job.Name())
	require.NoError(t, job.Run())
	assert.Len(t, store.objects, 1)

	store.uploadErr = errors.New("bucket gone")
	assert.Error(t, job.Run())
}
