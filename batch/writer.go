package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	nanoid "github.com/matoous/go-nanoid/v2"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xsinger"
)

// Alphabet and idLength shape the random part of batch file names.
const (
	alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	idLength = 12
)

var fileSafe = strings.NewReplacer("/", "_", "\\", "_", ":", "_")

// Writer spools the records of one stream into a batch file. It is safe for
// concurrent use.
type Writer struct {
	cfg    Config
	store  Store
	clock  xsinger.Clock
	logger *xlog.Logger
	ext    string

	flushMu sync.Mutex // serialises Flush

	mu      sync.Mutex
	open    *spool
	pending *finished
	closed  bool
}

// finished is a closed batch file the Store has not accepted yet.
type finished struct {
	path  string
	name  string
	n     int64
	first time.Time
}

// spool is the currently open temporary file.
type spool struct {
	file  *os.File
	buf   *bufio.Writer
	comp  io.WriteCloser
	out   io.Writer
	n     int64
	first time.Time
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

func WithClock(c xsinger.Clock) WriterOption {
	return func(w *Writer) { w.clock = c }
}

func WithLogger(l *xlog.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// NewWriter validates cfg and returns a Writer that delivers finished files to store.
func NewWriter(cfg Config, store Store, opts ...WriterOption) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("batch: nil store")
	}
	ext, _ := extension(cfg.Compression)
	w := &Writer{cfg: cfg, store: store, ext: ext}
	for _, o := range opts {
		if o != nil {
			o(w)
		}
	}
	if w.clock == nil {
		w.clock = xclock.Default()
	}
	if w.logger == nil {
		w.logger = xlog.Default()
	}
	return w, nil
}

// Add appends one record. The record is encoded the same way RECORD payloads are.
func (w *Writer) Add(record any) error {
	line, err := xsinger.MarshalValue(record)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if w.open == nil {
		if w.open, err = w.openSpool(); err != nil {
			return err
		}
	}
	if _, err := w.open.out.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("batch: write %s: %w", w.open.file.Name(), err)
	}
	w.open.n++
	return nil
}

// Len reports the number of records in the open batch. A file awaiting a
// Flush retry is not counted.
func (w *Writer) Len() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.open == nil {
		return 0
	}
	return w.open.n
}

// Full reports whether the open batch reached Config.MaxRecords.
func (w *Writer) Full() bool {
	return w.cfg.MaxRecords > 0 && w.Len() >= w.cfg.MaxRecords
}

// Flush finishes the open batch, hands it to the Store and returns the BATCH
// message announcing it. The next Add starts a new file.
//
// If the Store fails, the finished file is kept and the next Flush retries it
// under the same name before anything else; records added meanwhile go into a
// new file.
func (w *Writer) Flush(ctx context.Context) (xsinger.Batch, error) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	f, err := w.takeFinished()
	if err != nil {
		return xsinger.Batch{}, err
	}

	location, err := w.store.Put(ctx, f.path, f.name)
	if err != nil {
		w.mu.Lock()
		if w.closed {
			_ = os.Remove(f.path)
		} else {
			w.pending = f
		}
		w.mu.Unlock()
		w.logger.Warn().Err(err).Str("stream", w.cfg.Stream).Str("file", f.name).Msg("batch: store failed, kept for retry")
		return xsinger.Batch{}, err
	}
	w.logger.Debug().Str("stream", w.cfg.Stream).Str("location", location).Msg("batch: file stored")

	return xsinger.NewBatch(w.cfg.Stream, location,
		xsinger.WithFormat(FormatJSONL),
		xsinger.WithCompression(w.cfg.Compression),
		xsinger.WithBatchSize(f.n),
		xsinger.WithTimeExtracted(f.first),
	)
}

// Pending reports whether a finished file is waiting for a Flush retry.
func (w *Writer) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending != nil
}

// takeFinished returns the file awaiting retry, or closes the open spool.
func (w *Writer) takeFinished() (*finished, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrWriterClosed
	}
	if f := w.pending; f != nil {
		w.pending = nil
		w.mu.Unlock()
		return f, nil
	}
	sp := w.open
	w.open = nil
	w.mu.Unlock()

	if sp == nil {
		return nil, ErrEmptyBatch
	}
	if sp.n == 0 {
		_ = sp.finish()
		sp.discard()
		return nil, ErrEmptyBatch
	}
	if err := sp.finish(); err != nil {
		sp.discard()
		return nil, err
	}
	name, err := w.fileName()
	if err != nil {
		sp.discard()
		return nil, err
	}
	return &finished{path: sp.file.Name(), name: name, n: sp.n, first: sp.first}, nil
}

// Close discards any unflushed records, including a file awaiting retry.
// Further Adds and Flushes fail.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.open != nil {
		_ = w.open.finish()
		w.open.discard()
		w.open = nil
	}
	if w.pending != nil {
		_ = os.Remove(w.pending.path)
		w.pending = nil
	}
	return nil
}

func (w *Writer) openSpool() (*spool, error) {
	f, err := os.CreateTemp(w.cfg.Dir, "xsinger-*.jsonl"+w.ext)
	if err != nil {
		return nil, fmt.Errorf("batch: create spool: %w", err)
	}
	sp := &spool{file: f, buf: bufio.NewWriter(f), first: w.clock.Now()}
	switch w.cfg.Compression {
	case CompressionGzip:
		sp.comp = gzip.NewWriter(sp.buf)
	case CompressionZstd:
		enc, err := zstd.NewWriter(sp.buf)
		if err != nil {
			sp.discard()
			return nil, fmt.Errorf("batch: zstd: %w", err)
		}
		sp.comp = enc
	}
	sp.out = sp.buf
	if sp.comp != nil {
		sp.out = sp.comp
	}
	return sp, nil
}

func (w *Writer) fileName() (string, error) {
	id, err := nanoid.Generate(alphabet, idLength)
	if err != nil {
		return "", fmt.Errorf("batch: file name: %w", err)
	}
	return fmt.Sprintf("%s-%s.%s%s", fileSafe.Replace(w.cfg.Stream), id, FormatJSONL, w.ext), nil
}

// finish closes the compressor, drains the buffer and closes the file.
func (sp *spool) finish() error {
	if sp.comp != nil {
		if err := sp.comp.Close(); err != nil {
			_ = sp.file.Close()
			return fmt.Errorf("batch: close compressor: %w", err)
		}
	}
	if err := sp.buf.Flush(); err != nil {
		_ = sp.file.Close()
		return fmt.Errorf("batch: flush %s: %w", sp.file.Name(), err)
	}
	return sp.file.Close()
}

func (sp *spool) discard() {
	_ = sp.file.Close()
	_ = os.Remove(sp.file.Name())
}
