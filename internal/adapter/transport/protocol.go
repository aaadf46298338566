package transport

import (
	"strings"

	"github.com/parlance-ai/parlance/internal/domain"
)

// Protocol encodes and decodes the wire request/response pair. A protocol
// exposes a case-insensitive name used for negotiation via the "format"
// query parameter, a MIME type for the payloads it emits, and an optional
// content-encoding tag declared by compressing decorators.
type Protocol interface {
	Name() string
	MimeType() string
	// ContentEncoding returns "" for uncompressed protocols.
	ContentEncoding() string

	ParseRequest(data []byte) (*domain.Request, error)
	WriteRequest(req *domain.Request) ([]byte, error)
	ParseResponse(data []byte) (*domain.Response, error)
	WriteResponse(resp *domain.Response) ([]byte, error)
}

// Registry is the immutable protocol lookup built once at startup and
// passed to the HTTP dispatcher. Never mutated after construction.
type Registry struct {
	byName map[string]Protocol
	def    Protocol
}

// NewRegistry builds a registry from the given protocols. The first one is
// the default used when no format parameter is supplied.
func NewRegistry(protocols ...Protocol) *Registry {
	byName := make(map[string]Protocol, len(protocols))
	for _, p := range protocols {
		byName[strings.ToLower(p.Name())] = p
	}
	var def Protocol
	if len(protocols) > 0 {
		def = protocols[0]
	}
	return &Registry{byName: byName, def: def}
}

// Get resolves a protocol by name, case-insensitively. ok is false for
// unknown names.
func (r *Registry) Get(name string) (Protocol, bool) {
	p, ok := r.byName[strings.ToLower(name)]
	return p, ok
}

// Default returns the protocol used when the client named none.
func (r *Registry) Default() Protocol {
	return r.def
}

// Names lists the registered protocol names, for the status endpoint.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out
}
