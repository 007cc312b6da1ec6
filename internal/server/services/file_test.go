package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "owner-1"

func TestEndToEnd_UploadShareDownloadExpire(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	up, err := fx.files.Upload(ctx, owner, "a.txt", "text/plain", []byte("hello world!"))
	require.NoError(t, err)
	assert.Equal(t, int64(12), up.Size)
	assert.Equal(t, "a.txt", up.Filename)

	link, err := fx.files.CreateShareLink(ctx, owner, up.FileID, intPtr(1))
	require.NoError(t, err)
	assert.Equal(t, common.DownloadPathPrefix+link.Token, link.Path)
	assert.Equal(t, fx.clock.Now().Add(time.Minute), link.ExpiresAt)

	dl, err := fx.files.DownloadByToken(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world!"), dl.Data)
	assert.Equal(t, "a.txt", dl.Filename)
	assert.Equal(t, "text/plain", dl.MimeType)

	fx.clock.Advance(61 * time.Second)
	_, err = fx.files.DownloadByToken(ctx, link.Token)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpload_SizeLimit(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.files.Upload(ctx, owner, "big.bin", "application/octet-stream", make([]byte, 10<<20+1))
	assert.ErrorIs(t, err, common.ErrPayloadTooLarge)
	assert.Zero(t, fx.store.Len(), "no blob may be stored")

	list, err := fx.files.ListFiles(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list, "no record may be created")

	up, err := fx.files.Upload(ctx, owner, "edge.bin", "application/octet-stream", make([]byte, 10<<20))
	require.NoError(t, err)
	assert.Equal(t, int64(10<<20), up.Size)
}

func TestUpload_StoredBlobMatchesRecord(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	payload := []byte("consistency check")
	up, err := fx.files.Upload(ctx, owner, "c.txt", "text/plain", payload)
	require.NoError(t, err)

	rec, err := fx.rm.Files(nil).FindByID(ctx, up.FileID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rec.StorageKey, "encrypted-files/"))
	assert.True(t, strings.HasSuffix(rec.StorageKey, "-c.txt"))
	assert.Equal(t, owner, rec.OwnerID)

	blob, err := fx.store.Get(ctx, rec.StorageKey)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(blob, payload), "blob must be encrypted")

	plain, err := fx.env.Decrypt(blob, rec.EncryptionIV)
	require.NoError(t, err)
	assert.Equal(t, payload, plain)
}

func TestUpload_Validation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.files.Upload(ctx, "", "a.txt", "text/plain", []byte("x"))
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = fx.files.Upload(ctx, owner, "", "text/plain", []byte("x"))
	assert.ErrorIs(t, err, common.ErrValidation)

	assert.Zero(t, fx.store.Len())
}

func TestUpload_EmptyMimeDefaults(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	up, err := fx.files.Upload(ctx, owner, "blob", "", []byte{})
	require.NoError(t, err)

	rec, err := fx.rm.Files(nil).FindByID(ctx, up.FileID)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", rec.MimeType)
	assert.Equal(t, int64(0), rec.Size)
}

func TestUpload_StorageKeyStripsDirectories(t *testing.T) {
	fx := newFixture(t)
	fx.files.newKeyID = func() string { return "fixed" }

	assert.Equal(t, "encrypted-files/fixed-passwd", fx.files.storageKey("../../etc/passwd"))
	assert.Equal(t, "encrypted-files/fixed-report.pdf", fx.files.storageKey(`C:\docs\report.pdf`))
	assert.Equal(t, "encrypted-files/fixed-file", fx.files.storageKey("/"))
}

func TestUpload_PutFailureCreatesNoRecord(t *testing.T) {
	store := &brokenStore{MemoryStore: storage.NewMemoryStore(), putErr: common.ErrStorage}
	fx := newFixtureWith(t, testConfig(), nil, store)
	ctx := context.Background()

	_, err := fx.files.Upload(ctx, owner, "a.txt", "text/plain", []byte("x"))
	assert.ErrorIs(t, err, common.ErrStorage)

	list, err := fx.files.ListFiles(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Same(t, store.MemoryStore, fx.store)
	assert.Zero(t, fx.store.Len())
}

func TestUpload_RecordFailureLeavesOrphan(t *testing.T) {
	store := storage.NewMemoryStore()
	base := newFixture(t)
	rm := &failingFilesManager{RepositoryManager: base.rm, createErr: common.ErrStorage}
	fx := newFixtureWith(t, testConfig(), rm, store)

	_, err := fx.files.Upload(context.Background(), owner, "a.txt", "text/plain", []byte("x"))
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.Same(t, store, fx.store)
	assert.Equal(t, 1, fx.store.Len(), "orphaned blob is accepted")
}

func TestListFiles_NewestFirst(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.files.Upload(ctx, owner, "old.txt", "text/plain", []byte("1"))
	require.NoError(t, err)
	fx.clock.Advance(time.Minute)
	_, err = fx.files.Upload(ctx, owner, "new.txt", "text/plain", []byte("22"))
	require.NoError(t, err)
	_, err = fx.files.Upload(ctx, "other", "x.txt", "text/plain", []byte("3"))
	require.NoError(t, err)

	list, err := fx.files.ListFiles(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new.txt", list[0].Filename)
	assert.Equal(t, int64(2), list[0].Size)
	assert.Equal(t, "old.txt", list[1].Filename)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
}

func TestDownloadByToken_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown token", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.files.DownloadByToken(ctx, "nope")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("empty token", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.files.DownloadByToken(ctx, "")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("missing blob is retrieval error", func(t *testing.T) {
		fx := newFixture(t)
		up, err := fx.files.Upload(ctx, owner, "a.txt", "text/plain", []byte("x"))
		require.NoError(t, err)
		link, err := fx.files.CreateShareLink(ctx, owner, up.FileID, nil)
		require.NoError(t, err)

		rec, err := fx.rm.Files(nil).FindByID(ctx, up.FileID)
		require.NoError(t, err)
		require.NoError(t, fx.store.Delete(ctx, rec.StorageKey))

		_, err = fx.files.DownloadByToken(ctx, link.Token)
		assert.ErrorIs(t, err, common.ErrRetrieval)
		assert.NotErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("store failure is retrieval error", func(t *testing.T) {
		store := &brokenStore{MemoryStore: storage.NewMemoryStore()}
		fx := newFixtureWith(t, testConfig(), nil, store)
		up, err := fx.files.Upload(ctx, owner, "a.txt", "text/plain", []byte("x"))
		require.NoError(t, err)
		link, err := fx.files.CreateShareLink(ctx, owner, up.FileID, nil)
		require.NoError(t, err)

		store.getErr = errBoom
		_, err = fx.files.DownloadByToken(ctx, link.Token)
		assert.ErrorIs(t, err, common.ErrRetrieval)
		assert.Contains(t, err.Error(), errBoom.Error())
	})

	t.Run("tampered blob is decryption error", func(t *testing.T) {
		fx := newFixture(t)
		up, err := fx.files.Upload(ctx, owner, "a.txt", "text/plain", []byte("secret"))
		require.NoError(t, err)
		link, err := fx.files.CreateShareLink(ctx, owner, up.FileID, nil)
		require.NoError(t, err)

		rec, err := fx.rm.Files(nil).FindByID(ctx, up.FileID)
		require.NoError(t, err)
		blob, err := fx.store.Get(ctx, rec.StorageKey)
		require.NoError(t, err)
		blob[0] ^= 0xff
		require.NoError(t, fx.store.Put(ctx, rec.StorageKey, blob, "application/octet-stream"))

		_, err = fx.files.DownloadByToken(ctx, link.Token)
		assert.ErrorIs(t, err, common.ErrDecryption)
	})
}

func TestDownloadByToken_AnyValidTokenWorks(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	up, err := fx.files.Upload(ctx, owner, "a.txt", "text/plain", []byte("multi"))
	require.NoError(t, err)

	short, err := fx.files.CreateShareLink(ctx, owner, up.FileID, intPtr(1))
	require.NoError(t, err)
	long, err := fx.files.CreateShareLink(ctx, owner, up.FileID, intPtr(10))
	require.NoError(t, err)
	assert.NotEqual(t, short.Token, long.Token)

	fx.clock.Advance(2 * time.Minute)

	_, err = fx.files.DownloadByToken(ctx, short.Token)
	assert.ErrorIs(t, err, common.ErrNotFound)

	dl, err := fx.files.DownloadByToken(ctx, long.Token)
	require.NoError(t, err)
	assert.Equal(t, []byte("multi"), dl.Data)
}
