package batch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xsinger"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var extracted = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestBatchWriter(t *testing.T, compression string, store Store) *Writer {
	t.Helper()
	w, err := NewWriter(Config{Stream: "users", Dir: t.TempDir(), Compression: compression, MaxRecords: 3}, store,
		WithClock(fixedClock{t: extracted}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func readAll(t *testing.T, b xsinger.Batch) []any {
	t.Helper()
	var got []any
	require.NoError(t, ReadFile(context.Background(), b, func(r any) error {
		got = append(got, r)
		return nil
	}))
	return got
}

func TestWriter_LocalRoundTrip(t *testing.T) {
	for _, c := range []struct {
		compression string
		suffix      string
	}{
		{CompressionNone, ".jsonl"},
		{CompressionGzip, ".jsonl.gz"},
		{CompressionZstd, ".jsonl.zst"},
	} {
		t.Run("compression="+c.compression, func(t *testing.T) {
			out := t.TempDir()
			w := newTestBatchWriter(t, c.compression, LocalStore{Dir: out})

			require.NoError(t, w.Add(map[string]any{"id": 1, "name": "ada"}))
			require.NoError(t, w.Add(map[string]any{"id": 2, "name": "grace"}))
			assert.Equal(t, int64(2), w.Len())
			assert.False(t, w.Full())

			b, err := w.Flush(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "users", b.Stream())
			assert.Equal(t, FormatJSONL, b.Format())
			assert.True(t, strings.HasPrefix(b.Filepath(), out))
			assert.True(t, strings.HasSuffix(b.Filepath(), c.suffix), b.Filepath())
			n, ok := b.BatchSize()
			assert.True(t, ok)
			assert.Equal(t, int64(2), n)
			ts, ok := b.TimeExtracted()
			assert.True(t, ok)
			assert.True(t, ts.Equal(extracted))
			gotCompression, ok := b.Compression()
			assert.Equal(t, c.compression != "", ok)
			assert.Equal(t, c.compression, gotCompression)

			records := readAll(t, b)
			require.Len(t, records, 2)
			assert.Equal(t, map[string]any{"id": json.Number("1"), "name": "ada"}, records[0])
			assert.Equal(t, map[string]any{"id": json.Number("2"), "name": "grace"}, records[1])
			assert.Equal(t, int64(0), w.Len())
		})
	}
}

func TestWriter_BatchMessageFormats(t *testing.T) {
	w := newTestBatchWriter(t, CompressionGzip, LocalStore{Dir: t.TempDir()})
	require.NoError(t, w.Add(map[string]any{"id": 1}))
	b, err := w.Flush(context.Background())
	require.NoError(t, err)

	line, err := xsinger.Format(b)
	require.NoError(t, err)
	assert.Contains(t, string(line), `"compression":"gzip","batch_size":1,"time_extracted":"2024-03-01T12:00:00.000000Z"`)
}

func TestWriter_Full(t *testing.T) {
	w := newTestBatchWriter(t, CompressionNone, LocalStore{Dir: t.TempDir()})
	for i := range 3 {
		require.NoError(t, w.Add(i))
	}
	assert.True(t, w.Full())
	_, err := w.Flush(context.Background())
	require.NoError(t, err)
	assert.False(t, w.Full())
}

func TestWriter_EmptyFlush(t *testing.T) {
	w := newTestBatchWriter(t, CompressionNone, LocalStore{Dir: t.TempDir()})
	_, err := w.Flush(context.Background())
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestWriter_RejectsUnencodableRecord(t *testing.T) {
	w := newTestBatchWriter(t, CompressionNone, LocalStore{Dir: t.TempDir()})
	err := w.Add(func() {})
	var ee *xsinger.EncodingError
	assert.ErrorAs(t, err, &ee)
	assert.Equal(t, int64(0), w.Len())
}

func TestWriter_CloseDiscardsSpool(t *testing.T) {
	spoolDir := t.TempDir()
	w, err := NewWriter(Config{Stream: "users", Dir: spoolDir}, LocalStore{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, w.Add(1))

	entries, err := os.ReadDir(spoolDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, w.Close())
	entries, err = os.ReadDir(spoolDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.ErrorIs(t, w.Add(2), ErrWriterClosed)
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Stream: "s"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, os.TempDir(), cfg.Dir)

	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{Stream: "s", MaxRecords: -1}).Validate())
	assert.ErrorIs(t, (&Config{Stream: "s", Compression: "lz4"}).Validate(), ErrUnsupportedCompression)

	_, err := NewWriter(Config{Stream: "s"}, nil)
	assert.Error(t, err)
}

func TestReadFile_Unsupported(t *testing.T) {
	ctx := context.Background()
	noop := func(any) error { return nil }

	b, err := xsinger.NewBatch("s", "s3://bucket/key.jsonl")
	require.NoError(t, err)
	assert.ErrorIs(t, ReadFile(ctx, b, noop), ErrUnsupportedLocation)

	b, err = xsinger.NewBatch("s", "/tmp/x.csv", xsinger.WithFormat("csv"))
	require.NoError(t, err)
	assert.ErrorIs(t, ReadFile(ctx, b, noop), ErrUnsupportedFormat)

	p := filepath.Join(t.TempDir(), "x.jsonl")
	require.NoError(t, os.WriteFile(p, []byte("{}\n"), 0o644))
	b, err = xsinger.NewBatch("s", p, xsinger.WithCompression("lz4"))
	require.NoError(t, err)
	assert.ErrorIs(t, ReadFile(ctx, b, noop), ErrUnsupportedCompression)
}

func TestReadFile_FileURLAndCallbackError(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.jsonl")
	require.NoError(t, os.WriteFile(p, []byte("{\"a\":1}\r\n\n{\"a\":2}"), 0o644))
	b, err := xsinger.NewBatch("s", "file://"+p)
	require.NoError(t, err)

	assert.Len(t, readAll(t, b), 2)

	stop := errors.New("stop")
	calls := 0
	err = ReadFile(context.Background(), b, func(any) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestReadFile_Cancelled(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.jsonl")
	require.NoError(t, os.WriteFile(p, []byte("1\n2\n"), 0o644))
	b, err := xsinger.NewBatch("s", p)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ReadFile(ctx, b, func(any) error { return nil }), context.Canceled)
}

// fakeS3 captures uploaded objects.
type fakeS3 struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket, f.key = *in.Bucket, *in.Key
	if in.ContentType != nil {
		f.contentType = *in.ContentType
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_Put(t *testing.T) {
	fake := &fakeS3{}
	w := newTestBatchWriter(t, CompressionNone, &S3Store{Client: fake, Bucket: "lake", Prefix: "taps/pg"})
	require.NoError(t, w.Add(map[string]any{"id": 7}))

	b, err := w.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "lake", fake.bucket)
	assert.True(t, strings.HasPrefix(fake.key, "taps/pg/users-"), fake.key)
	assert.Equal(t, "s3://lake/"+fake.key, b.Filepath())
	assert.Equal(t, "application/x-ndjson", fake.contentType)
	assert.Equal(t, "{\"id\":7}\n", string(fake.body))

	assert.ErrorIs(t, ReadFile(context.Background(), b, func(any) error { return nil }), ErrUnsupportedLocation)
}

func TestS3Store_PutError(t *testing.T) {
	boom := errors.New("denied")
	w := newTestBatchWriter(t, CompressionNone, &S3Store{Client: &fakeS3{err: boom}, Bucket: "lake"})
	require.NoError(t, w.Add(1))
	_, err := w.Flush(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, w.Pending())
}

// flakyStore fails the next `failures` Puts, then delegates to next.
type flakyStore struct {
	next     Store
	failures int
	names    []string
}

func (s *flakyStore) Put(ctx context.Context, localPath, name string) (string, error) {
	s.names = append(s.names, name)
	if s.failures > 0 {
		s.failures--
		return "", errors.New("transient")
	}
	return s.next.Put(ctx, localPath, name)
}

func TestWriter_FlushRetriesAfterStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{next: LocalStore{Dir: t.TempDir()}, failures: 1}
	w := newTestBatchWriter(t, CompressionGzip, store)
	for i := range 3 {
		require.NoError(t, w.Add(map[string]any{"id": i}))
	}

	_, err := w.Flush(ctx)
	require.EqualError(t, err, "transient")
	assert.True(t, w.Pending())
	assert.Equal(t, int64(0), w.Len())

	// Records added while the failed file waits go into the next batch.
	require.NoError(t, w.Add(map[string]any{"id": 99}))

	b, err := w.Flush(ctx)
	require.NoError(t, err)
	assert.False(t, w.Pending())
	n, _ := b.BatchSize()
	assert.Equal(t, int64(3), n)
	assert.Len(t, readAll(t, b), 3)
	require.Len(t, store.names, 2)
	assert.Equal(t, store.names[0], store.names[1], "retry keeps the file name")

	b, err = w.Flush(ctx)
	require.NoError(t, err)
	n, _ = b.BatchSize()
	assert.Equal(t, int64(1), n)

	_, err = w.Flush(ctx)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestWriter_CloseDropsPendingFile(t *testing.T) {
	spoolDir := t.TempDir()
	w, err := NewWriter(Config{Stream: "users", Dir: spoolDir}, &flakyStore{failures: 1})
	require.NoError(t, err)
	require.NoError(t, w.Add(1))
	_, err = w.Flush(context.Background())
	require.Error(t, err)

	require.NoError(t, w.Close())
	entries, err := os.ReadDir(spoolDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = w.Flush(context.Background())
	assert.ErrorIs(t, err, ErrWriterClosed)
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{})
	assert.Error(t, err)
}
