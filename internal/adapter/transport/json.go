package transport

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/domain"
)

// JSONProtocol is the primary wire codec. It speaks schema version 18
// natively and upgrades versions 15-17 through a chain of single-step
// converters.
type JSONProtocol struct {
	log *zap.Logger
}

func NewJSONProtocol(log *zap.Logger) *JSONProtocol {
	return &JSONProtocol{log: log}
}

func (p *JSONProtocol) Name() string            { return "json" }
func (p *JSONProtocol) MimeType() string        { return "application/json" }
func (p *JSONProtocol) ContentEncoding() string { return "" }

// wireHeader is the cheap first pass over a payload of any generation:
// only the schema version and trace id are materialized, so old or foreign
// schemas are never fully decoded twice.
type wireHeader struct {
	Version *int   `json:"version"`
	TraceID string `json:"traceId"`
}

// resolveVersion clamps a payload's declared version into the supported
// window, logging a warning for anything outside it.
func (p *JSONProtocol) resolveVersion(declared *int) int {
	if declared == nil || *declared == 0 {
		p.log.Warn("Payload carries no schema version, assuming current",
			zap.Int("assumed", domain.CurrentSchemaVersion))
		return domain.CurrentSchemaVersion
	}
	v := *declared
	switch {
	case v < domain.OldestSupportedSchemaVersion:
		p.log.Warn("Schema version below supported window, parsing as oldest known",
			zap.Int("declared", v),
			zap.Int("parsedAs", domain.OldestSupportedSchemaVersion))
		return domain.OldestSupportedSchemaVersion
	case v > domain.CurrentSchemaVersion:
		p.log.Warn("Schema version above supported window, parsing as current",
			zap.Int("declared", v),
			zap.Int("parsedAs", domain.CurrentSchemaVersion))
		return domain.CurrentSchemaVersion
	default:
		return v
	}
}

func (p *JSONProtocol) ParseRequest(data []byte) (*domain.Request, error) {
	var hdr wireHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, &domain.FormatError{Err: err}
	}

	var req *domain.Request
	switch p.resolveVersion(hdr.Version) {
	case 15:
		var legacy requestV15
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, &domain.FormatError{Err: err}
		}
		req = upgradeRequestV17(upgradeRequestV16(upgradeRequestV15(&legacy)))
	case 16:
		var legacy requestV16
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, &domain.FormatError{Err: err}
		}
		req = upgradeRequestV17(upgradeRequestV16(&legacy))
	case 17:
		var legacy requestV17
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, &domain.FormatError{Err: err}
		}
		req = upgradeRequestV17(&legacy)
	default:
		req = &domain.Request{}
		if err := json.Unmarshal(data, req); err != nil {
			return nil, &domain.FormatError{Err: err}
		}
	}

	req.SchemaVersion = domain.CurrentSchemaVersion
	// Malformed trace ids are replaced, never rejected.
	req.TraceID = domain.NormalizeTraceID(hdr.TraceID)

	if err := validateRequiredFields(req); err != nil {
		return nil, err
	}
	return req, nil
}

func (p *JSONProtocol) WriteRequest(req *domain.Request) ([]byte, error) {
	out := *req
	out.SchemaVersion = domain.CurrentSchemaVersion
	return json.Marshal(&out)
}

func (p *JSONProtocol) ParseResponse(data []byte) (*domain.Response, error) {
	var hdr wireHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, &domain.FormatError{Err: err}
	}

	var resp *domain.Response
	switch p.resolveVersion(hdr.Version) {
	case 15:
		var legacy responseV15
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, &domain.FormatError{Err: err}
		}
		resp = upgradeResponseV17(upgradeResponseV16(upgradeResponseV15(&legacy)))
	case 16:
		var legacy responseV16
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, &domain.FormatError{Err: err}
		}
		resp = upgradeResponseV17(upgradeResponseV16(&legacy))
	case 17:
		var legacy responseV17
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, &domain.FormatError{Err: err}
		}
		resp = upgradeResponseV17(&legacy)
	default:
		resp = &domain.Response{}
		if err := json.Unmarshal(data, resp); err != nil {
			return nil, &domain.FormatError{Err: err}
		}
	}

	resp.SchemaVersion = domain.CurrentSchemaVersion
	resp.TraceID = domain.NormalizeTraceID(resp.TraceID)
	return resp, nil
}

func (p *JSONProtocol) WriteResponse(resp *domain.Response) ([]byte, error) {
	out := *resp
	out.SchemaVersion = domain.CurrentSchemaVersion
	return json.Marshal(&out)
}

// validateRequiredFields enforces the post-parse invariants: a client
// context with identity, locale, and a non-zero capability set.
func validateRequiredFields(req *domain.Request) error {
	if req.ClientContext == nil {
		return domain.NewMissingFieldError("context")
	}
	if req.ClientContext.ClientID == "" {
		return domain.NewMissingFieldError("context.clientId")
	}
	if req.ClientContext.UserID == "" {
		return domain.NewMissingFieldError("context.userId")
	}
	if req.ClientContext.Locale == "" {
		return domain.NewMissingFieldError("context.locale")
	}
	if req.ClientContext.Capabilities == 0 {
		return domain.NewMissingFieldError("context.capabilities")
	}
	return nil
}
