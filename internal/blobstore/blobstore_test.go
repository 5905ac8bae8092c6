package blobstore_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengig/greengig/internal/blobstore"
	"github.com/greengig/greengig/internal/provider/resilience"
)

type fakeObjectAPI struct {
	mu       sync.Mutex
	exists   bool
	made     bool
	failures []error
	puts     int
	objects  map[string][]byte
}

func (f *fakeObjectAPI) PutObject(_ context.Context, _, objectName string, reader io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return minio.UploadInfo{}, err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[objectName] = data
	return minio.UploadInfo{Key: objectName, Size: int64(len(data))}, nil
}

func (f *fakeObjectAPI) BucketExists(context.Context, string) (bool, error) {
	return f.exists, nil
}

func (f *fakeObjectAPI) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	f.made = true
	return nil
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func TestProofImageKey(t *testing.T) {
	assert.Equal(t, "proofs/usr_1/tpf_abc.jpeg", blobstore.ProofImageKey("usr_1", "tpf_abc", "jpeg"))
	assert.Equal(t, "proofs/usr_1/tpf_abc", blobstore.ProofImageKey("usr_1", "tpf_abc", ""))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", blobstore.ContentType("jpeg"))
	assert.Equal(t, "image/png", blobstore.ContentType("png"))
	assert.Equal(t, "application/octet-stream", blobstore.ContentType(""))
}

func TestMemory_PutAndGet(t *testing.T) {
	m := blobstore.NewMemory()

	ref, err := m.Put(context.Background(), "proofs/usr_1/tpf_1.png", []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "mem://proofs/usr_1/tpf_1.png", ref)

	obj, err := m.Get(ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), obj.Data)
	assert.Equal(t, "image/png", obj.ContentType)

	_, err = m.Get("mem://missing")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	_, err = m.Put(context.Background(), "", nil, "")
	assert.ErrorIs(t, err, blobstore.ErrEmptyKey)
}

func TestNewMinioWithAPI_CreatesMissingBucket(t *testing.T) {
	api := &fakeObjectAPI{}

	_, err := blobstore.NewMinioWithAPI(context.Background(), api, blobstore.MinioConfig{Bucket: "proofs", CreateBucket: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.True(t, api.made)

	_, err = blobstore.NewMinioWithAPI(context.Background(), &fakeObjectAPI{}, blobstore.MinioConfig{Bucket: "proofs"})
	assert.ErrorContains(t, err, "does not exist")
}

func TestMinioStore_PutRetriesTransientErrors(t *testing.T) {
	api := &fakeObjectAPI{exists: true, failures: []error{errors.New("connection reset")}}
	registry := resilience.NewRegistry()

	store, err := blobstore.NewMinioWithAPI(context.Background(), api, blobstore.MinioConfig{
		Bucket:   "proofs",
		Retry:    fastRetry(),
		Registry: registry,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	ref, err := store.Put(context.Background(), "proofs/usr_1/tpf_1.jpeg", []byte("jpegdata"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "s3://proofs/proofs/usr_1/tpf_1.jpeg", ref)
	assert.Equal(t, 2, api.puts)
	assert.Equal(t, []byte("jpegdata"), api.objects["proofs/usr_1/tpf_1.jpeg"])

	health := registry.GetHealth(blobstore.ProviderName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
}

func TestMinioStore_PutStopsOnAccessDenied(t *testing.T) {
	denied := minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden, Message: "Access Denied."}
	api := &fakeObjectAPI{exists: true, failures: []error{denied, denied, denied}}
	registry := resilience.NewRegistry()

	store, err := blobstore.NewMinioWithAPI(context.Background(), api, blobstore.MinioConfig{
		Bucket:   "proofs",
		Retry:    fastRetry(),
		Registry: registry,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "proofs/usr_1/tpf_1.jpeg", []byte("x"), "image/jpeg")
	require.Error(t, err)
	assert.Equal(t, 1, api.puts)

	health := registry.GetHealth(blobstore.ProviderName)
	require.NotNil(t, health)
	assert.Contains(t, health.LastError, "Access Denied")
}
