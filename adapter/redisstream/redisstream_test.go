package redisstream

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xsinger"
)

// testConfig returns a Config pointing at XSINGER_REDIS_ADDR, or skips.
func testConfig(t *testing.T, stream string) Config {
	t.Helper()
	addr := os.Getenv("XSINGER_REDIS_ADDR")
	if addr == "" {
		t.Skip("XSINGER_REDIS_ADDR not set")
	}
	cfg := Defaults()
	cfg.Addr = addr
	cfg.Password = os.Getenv("XSINGER_REDIS_PASSWORD")
	cfg.Stream = fmt.Sprintf("%s-%d", stream, time.Now().UnixNano())
	return cfg
}

// cleanupStream removes the test stream.
func cleanupStream(t *testing.T, client *redis.Client, stream string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = client.Del(ctx, stream).Err()
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:6379", cfg.Addr)
	assert.Equal(t, "message", cfg.Field)
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]func(*Config){
		"addr":          func(c *Config) { c.Addr = "" },
		"stream":        func(c *Config) { c.Stream = "" },
		"field":         func(c *Config) { c.Field = "" },
		"db":            func(c *Config) { c.DB = -1 },
		"max_len":       func(c *Config) { c.MaxLenApprox = -5 },
		"write_timeout": func(c *Config) { c.WriteTimeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigFromMap(t *testing.T) {
	cfg := ConfigFromMap(map[string]any{
		"addr":           "redis:6380",
		"db":             int64(2),
		"tls":            true,
		"stream":         "tap-users",
		"max_len_approx": 1000,
		"write_timeout":  "250ms",
	})
	assert.Equal(t, "redis:6380", cfg.Addr)
	assert.Equal(t, 2, cfg.DB)
	assert.True(t, cfg.TLS)
	assert.Equal(t, "tap-users", cfg.Stream)
	assert.Equal(t, "message", cfg.Field)
	assert.Equal(t, int64(1000), cfg.MaxLenApprox)
	assert.Equal(t, 250*time.Millisecond, cfg.WriteTimeout)
}

func TestTakeLines(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("{\"a\":1}\n{\"b\":2}\n{\"c\"")

	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`}, takeLines(&buf))
	assert.Equal(t, `{"c"`, buf.String())
	assert.Nil(t, takeLines(&buf))

	buf.WriteString(":3}\n")
	assert.Equal(t, []string{`{"c":3}`}, takeLines(&buf))
	assert.Zero(t, buf.Len())
}

func TestNewSink_InvalidConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Stream = ""
	_, err := NewSink(cfg)
	assert.Error(t, err)
}

// TestWriter_OneEntryPerMessage writes a short tap session and reads it back.
func TestWriter_OneEntryPerMessage(t *testing.T) {
	cfg := testConfig(t, "xsinger-test")
	w, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, w.WriteSchema("users", map[string]any{"type": "object"}, []string{"id"}))
	require.NoError(t, w.WriteRecord("users", map[string]any{"id": 1}))
	require.NoError(t, w.WriteState(map[string]any{"users": 1}))

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password})
	defer client.Close()
	defer cleanupStream(t, client, cfg.Stream)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entries, err := client.XRange(ctx, cfg.Stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	want := []xsinger.MessageType{xsinger.TypeSchema, xsinger.TypeRecord, xsinger.TypeState}
	for i, e := range entries {
		line, ok := e.Values[cfg.Field].(string)
		require.True(t, ok)
		msg, recognized, err := xsinger.ParseMessage([]byte(line))
		require.NoError(t, err)
		require.True(t, recognized)
		assert.Equal(t, want[i], msg.Type())
	}
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.WriteState(1), xsinger.ErrWriterClosed)
}

// TestSink_ConcurrentWriters checks that concurrent producers yield whole entries.
func TestSink_ConcurrentWriters(t *testing.T) {
	cfg := testConfig(t, "xsinger-concurrent")
	sink, err := NewSink(cfg)
	require.NoError(t, err)
	w, err := xsinger.NewWriterBuilder().WithSink(sink).Build()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password})
	defer client.Close()
	defer cleanupStream(t, client, cfg.Stream)

	const workers, perWorker = 4, 50
	var wg sync.WaitGroup
	for g := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				assert.NoError(t, w.WriteRecord("s", map[string]any{"g": g, "i": i}))
			}
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := client.XLen(ctx, cfg.Stream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), n)
	assert.Equal(t, uint64(workers*perWorker), sink.Stats().Published)
	require.NoError(t, w.Close())
}
