// Package zstd wraps any parcel format with Zstandard compression.
package zstd

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/zoobzio/parcel"
)

// MaxDecodedSize bounds the memory a single frame may decode into.
const MaxDecodedSize = 64 << 20

// encoder and decoder are shared by every wrapped format. EncodeAll and
// DecodeAll are safe for concurrent use.
var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("zstd: encoder initialization failed: " + err.Error())
	}

	decoder, err = zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(MaxDecodedSize),
	)
	if err != nil {
		panic("zstd: decoder initialization failed: " + err.Error())
	}
}

// zstdFormat compresses the output of an inner format.
type zstdFormat struct {
	inner parcel.Format
}

// Wrap returns a format that compresses inner's output. A nil inner
// means parcel.JSON().
func Wrap(inner parcel.Format) parcel.Format {
	if inner == nil {
		inner = parcel.JSON()
	}
	return &zstdFormat{inner: inner}
}

// ContentType returns the inner MIME type with a +zstd suffix.
func (f *zstdFormat) ContentType() string {
	return f.inner.ContentType() + "+zstd"
}

// Marshal encodes doc with the inner format and compresses the result.
func (f *zstdFormat) Marshal(doc any) ([]byte, error) {
	data, err := f.inner.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Unmarshal decompresses data and decodes it with the inner format.
func (f *zstdFormat) Unmarshal(data []byte) (any, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return f.inner.Unmarshal(raw)
}
