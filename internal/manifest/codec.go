package manifest

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"depctx/internal/depmodel"
)

// Format selects a manifest encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// DigestPrefix names the hash algorithm in digests returned by Digest.
const DigestPrefix = "blake3-"

var ErrUnknownFormat = errors.New("manifest: unknown format")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("manifest: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("manifest: CBOR decoder initialization failed: " + err.Error())
	}
}

// ParseFormat maps a flag value to a Format.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCBOR:
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("%w %q (expected json or cbor)", ErrUnknownFormat, raw)
	}
}

// FormatForPath picks the encoding from a file extension. Anything other
// than .cbor is treated as JSON.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		return FormatCBOR
	}
	return FormatJSON
}

// Extension returns the conventional file extension for f.
func (f Format) Extension() string {
	if f == FormatCBOR {
		return ".cbor"
	}
	return ".json"
}

// Encode serializes ctx. Identical contexts always produce identical bytes.
func Encode(ctx *depmodel.DependencyContext, format Format) ([]byte, error) {
	doc := FromContext(ctx)
	switch format {
	case FormatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode manifest json: %w", err)
		}
		return buf.Bytes(), nil
	case FormatCBOR:
		data, err := encMode.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode manifest cbor: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

// Decode parses a manifest previously produced by Encode.
func Decode(data []byte, format Format) (*depmodel.DependencyContext, error) {
	var doc Document
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode manifest json: %w", err)
		}
	case FormatCBOR:
		if err := decMode.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode manifest cbor: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
	return doc.Context(), nil
}

// Write encodes ctx and atomically replaces path with the result.
func Write(path string, ctx *depmodel.DependencyContext, format Format) error {
	buf, err := Encode(ctx, format)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prepare manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "manifest-*"+format.Extension())
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("write manifest temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close manifest temp: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// Read loads a manifest, choosing the decoder from the file extension.
func Read(path string) (*depmodel.DependencyContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Decode(data, FormatForPath(path))
}

// Digest returns a content digest of ctx computed over its CBOR encoding,
// so it does not depend on JSON whitespace or key order.
func Digest(ctx *depmodel.DependencyContext) (string, error) {
	data, err := Encode(ctx, FormatCBOR)
	if err != nil {
		return "", err
	}
	hasher := blake3.New()
	_, _ = hasher.Write(data)
	return DigestPrefix + hex.EncodeToString(hasher.Sum(nil)), nil
}
