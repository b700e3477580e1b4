package batch

import (
	"errors"
	"fmt"
	"os"
)

const (
	CompressionNone = ""
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"

	// FormatJSONL is the only file format this package writes or reads.
	FormatJSONL = "jsonl"
)

var (
	ErrUnsupportedCompression = errors.New("batch: unsupported compression")
	ErrUnsupportedFormat      = errors.New("batch: unsupported format")
	ErrUnsupportedLocation    = errors.New("batch: unsupported location")
	ErrEmptyBatch             = errors.New("batch: no records")
	ErrWriterClosed           = errors.New("batch: writer closed")
)

// Config controls a batch Writer.
type Config struct {
	// Stream the records belong to.
	Stream string
	// Dir holds temporary files while a batch is open (default os.TempDir()).
	Dir string
	// Compression is "", "gzip" or "zstd".
	Compression string
	// MaxRecords makes Full report true once reached. Zero means unbounded.
	MaxRecords int64
}

// Validate checks the Config and fills defaults.
func (c *Config) Validate() error {
	if c.Stream == "" {
		return fmt.Errorf("config: stream required")
	}
	if c.MaxRecords < 0 {
		return fmt.Errorf("config: max_records must be >= 0, got %d", c.MaxRecords)
	}
	if _, err := extension(c.Compression); err != nil {
		return err
	}
	if c.Dir == "" {
		c.Dir = os.TempDir()
	}
	return nil
}

// extension returns the file suffix for a compression.
func extension(compression string) (string, error) {
	switch compression {
	case CompressionNone:
		return "", nil
	case CompressionGzip:
		return ".gz", nil
	case CompressionZstd:
		return ".zst", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCompression, compression)
}
