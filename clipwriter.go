package clipring

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects how clip data is encoded on its way to an export sink.
type Codec int

const (
	// CodecNone writes the raw clip bytes unchanged.
	CodecNone Codec = iota

	// CodecZstd compresses the clip with zstandard.
	CodecZstd

	// CodecLZ4 compresses the clip with LZ4 framing.
	CodecLZ4
)

// ClipWriter drains clips into an io.Writer, optionally through a
// compression codec. It is the export-side collaborator of the ring: the
// ring freezes a region, the writer copies it out at whatever pace the sink
// sustains, and the caller closes the clip afterwards to return the region
// to rotation.
type ClipWriter struct {
	dst   io.Writer
	codec Codec
}

// NewClipWriter creates a writer targeting dst with the given codec.
func NewClipWriter(dst io.Writer, codec Codec) *ClipWriter {
	return &ClipWriter{dst: dst, codec: codec}
}

// WriteClip drains the remaining data of a clip into the destination and
// returns the number of raw (pre-compression) elements written. The clip is
// left open; closing it remains the caller's responsibility.
func (cw *ClipWriter) WriteClip(clip *Clip) (int64, error) {
	return cw.WriteFrom(clip)
}

// WriteFrom copies src through the configured codec into the destination and
// returns the number of raw (pre-compression) bytes consumed. src is
// typically a *Clip, possibly wrapped by the caller, for example to take a
// lock per read when other goroutines mutate the same ring.
func (cw *ClipWriter) WriteFrom(src io.Reader) (int64, error) {
	var (
		w      io.Writer = cw.dst
		finish func() error
	)
	switch cw.codec {
	case CodecNone:
	case CodecZstd:
		enc, err := zstd.NewWriter(cw.dst)
		if err != nil {
			return 0, fmt.Errorf("create zstd writer: %w", err)
		}
		w = enc
		finish = enc.Close
	case CodecLZ4:
		zw := lz4.NewWriter(cw.dst)
		w = zw
		finish = zw.Close
	default:
		return 0, fmt.Errorf("unknown codec %d", cw.codec)
	}

	var total int64
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, err
		}
	}
	if finish != nil {
		if err := finish(); err != nil {
			return total, err
		}
	}
	return total, nil
}
