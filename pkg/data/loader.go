package data

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/openfroyo/hostdata/pkg/telemetry"
)

// DefaultMaxDocumentBytes caps the size of a document read from disk.
const DefaultMaxDocumentBytes int64 = 64 << 20

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	// MaxBytes is the largest file the loader will read.
	MaxBytes int64

	// Formats restricts which encodings may be opened. Empty allows all.
	Formats []Format

	// Logger receives debug output. Defaults to a no-op logger.
	Logger *telemetry.Logger

	// Tracer starts the data.open span. Nil uses the global provider.
	Tracer *telemetry.Tracer
}

// DefaultLoaderConfig returns the default loader configuration.
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		MaxBytes: DefaultMaxDocumentBytes,
		Formats:  []Format{FormatJSON, FormatYAML, FormatCUE},
		Logger:   telemetry.NopLogger(),
	}
}

// Loader reads documents from disk.
type Loader struct {
	config *LoaderConfig
	tracer *telemetry.Tracer
	logger *telemetry.Logger
}

// NewLoader creates a loader. A nil config uses DefaultLoaderConfig.
func NewLoader(cfg *LoaderConfig) *Loader {
	if cfg == nil {
		cfg = DefaultLoaderConfig()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxDocumentBytes
	}
	return &Loader{
		config: cfg,
		tracer: cfg.Tracer,
		logger: cfg.Logger.OrNop().NewComponentLogger("loader"),
	}
}

// Open reads and decodes the document at path. All failures are load
// errors.
func (l *Loader) Open(ctx context.Context, path string) (*Document, error) {
	format := FormatForPath(path)

	_, span := l.tracer.StartDocumentSpan(ctx, "open", path, string(format))
	defer span.End()

	start := time.Now()
	doc, err := l.open(ctx, path, format)
	if err != nil {
		telemetry.RecordError(span, err)
		l.logger.WithError(err).WithField("path", path).Debug("Document load failed")
		return nil, err
	}

	span.SetAttributes(telemetry.AttrDocumentID.String(doc.ID().String()))
	telemetry.RecordSuccess(span)
	l.logger.WithDocument(doc.ID().String(), path).DebugEvent().
		Str("format", string(format)).
		Dur("duration", time.Since(start)).
		Msg("Document loaded")
	return doc, nil
}

func (l *Loader) open(ctx context.Context, path string, format Format) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewLoadError(path, err)
	}
	if len(l.config.Formats) > 0 && !slices.Contains(l.config.Formats, format) {
		return nil, NewLoadError(path, fmt.Errorf("format %s is not enabled", format))
	}

	content, err := l.read(path)
	if err != nil {
		return nil, NewLoadError(path, err)
	}

	root, err := Decode(format, path, content)
	if err != nil {
		return nil, NewLoadError(path, err)
	}
	return NewDocument(root, path, format), nil
}

func (l *Loader) read(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, l.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(content)) > l.config.MaxBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", l.config.MaxBytes)
	}
	return content, nil
}
