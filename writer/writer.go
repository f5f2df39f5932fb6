// Package writer serializes PDF object graphs, either as a complete new file
// or as an incremental update appended to an existing one.
package writer

import (
	"context"

	"github.com/wudi/blackout/ir/raw"
	"github.com/wudi/blackout/observability"
	"github.com/wudi/blackout/security"
)

const binaryMarker = "%\xE2\xE3\xCF\xD3\n"

// Config controls serialization. The zero value writes PDF 1.7 with
// default Flate compression for unfiltered streams.
type Config struct {
	Version string
	// Compression is the Flate level for streams written without a filter.
	// Zero selects the default level; a negative value disables compression.
	Compression int
	// Encryption, when set, encrypts a full rewrite with the standard
	// security handler. Incremental updates always reuse the existing
	// document key instead.
	Encryption *security.EncryptionOptions
	Logger     observability.Logger
}

func (c Config) version() string {
	if c.Version == "" {
		return "1.7"
	}
	return c.Version
}

// Source supplies the plaintext objects of a document.
type Source interface {
	Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, ref raw.ObjectRef) (raw.Object, error)

func (f SourceFunc) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	return f(ctx, ref)
}

// MapSource serves objects from memory. Missing objects load as null.
type MapSource map[raw.ObjectRef]raw.Object

func (m MapSource) Load(_ context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if obj, ok := m[ref]; ok {
		return obj, nil
	}
	return raw.NullObj{}, nil
}
