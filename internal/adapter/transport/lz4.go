package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/parlance-ai/parlance/internal/domain"
)

// compressionTag prefixes the wrapped protocol's name and doubles as the
// declared content-encoding.
const compressionTag = "lz4"

// LZ4Protocol is a transparent compressing decorator around any inner
// protocol. Wire format: a 4-byte little-endian uncompressed-length header
// followed by the LZ4-framed payload.
type LZ4Protocol struct {
	inner Protocol
}

func NewLZ4Protocol(inner Protocol) *LZ4Protocol {
	return &LZ4Protocol{inner: inner}
}

func (p *LZ4Protocol) Name() string            { return compressionTag + p.inner.Name() }
func (p *LZ4Protocol) MimeType() string        { return p.inner.MimeType() }
func (p *LZ4Protocol) ContentEncoding() string { return compressionTag }

func (p *LZ4Protocol) compose(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	buf.Write(hdr[:])

	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.BlockSizeOption(lz4.Block64Kb)); err != nil {
		return nil, err
	}
	if _, err := w.Write(payload); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *LZ4Protocol) decompose(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, &domain.FormatError{Err: errors.New("compressed payload shorter than length header")}
	}
	// The header sizes the output buffer; the decompressed stream is not
	// truncated or validated against it.
	uncompressedLen := binary.LittleEndian.Uint32(data[:4])
	out := bytes.NewBuffer(make([]byte, 0, uncompressedLen))

	r := lz4.NewReader(bytes.NewReader(data[4:]))
	if _, err := io.Copy(out, r); err != nil {
		return nil, &domain.FormatError{Err: err}
	}
	return out.Bytes(), nil
}

func (p *LZ4Protocol) ParseRequest(data []byte) (*domain.Request, error) {
	payload, err := p.decompose(data)
	if err != nil {
		return nil, err
	}
	return p.inner.ParseRequest(payload)
}

func (p *LZ4Protocol) WriteRequest(req *domain.Request) ([]byte, error) {
	payload, err := p.inner.WriteRequest(req)
	if err != nil {
		return nil, err
	}
	return p.compose(payload)
}

func (p *LZ4Protocol) ParseResponse(data []byte) (*domain.Response, error) {
	payload, err := p.decompose(data)
	if err != nil {
		return nil, err
	}
	return p.inner.ParseResponse(payload)
}

func (p *LZ4Protocol) WriteResponse(resp *domain.Response) ([]byte, error) {
	payload, err := p.inner.WriteResponse(resp)
	if err != nil {
		return nil, err
	}
	return p.compose(payload)
}
