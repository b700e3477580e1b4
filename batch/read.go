package batch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/trickstertwo/xsinger"
)

// ReadFile streams the records of the local batch file b points at, calling fn
// once per record in file order. Numbers are decoded as json.Number. A
// file:// prefix is accepted; other URL schemes return ErrUnsupportedLocation.
func ReadFile(ctx context.Context, b xsinger.Batch, fn func(record any) error) error {
	if b.Format() != FormatJSONL {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, b.Format())
	}
	p := b.Filepath()
	if strings.Contains(p, "://") {
		if !strings.HasPrefix(p, "file://") {
			return fmt.Errorf("%w: %s", ErrUnsupportedLocation, p)
		}
		p = strings.TrimPrefix(p, "file://")
	}
	compression, _ := b.Compression()

	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("batch: open %s: %w", p, err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	switch compression {
	case CompressionNone:
	case CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("batch: gzip %s: %w", p, err)
		}
		defer zr.Close()
		r = zr
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return fmt.Errorf("batch: zstd %s: %w", p, err)
		}
		defer zr.Close()
		r = zr
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedCompression, compression)
	}

	br := bufio.NewReader(r)
	for n := int64(1); ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, readErr := br.ReadBytes('\n')
		line = bytes.TrimRight(line, "\r\n")
		if len(line) > 0 {
			dec := json.NewDecoder(bytes.NewReader(line))
			dec.UseNumber()
			var v any
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("batch: %s line %d: %w", p, n, err)
			}
			if err := fn(v); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("batch: read %s: %w", p, readErr)
		}
	}
}
