package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/parlance-ai/parlance/internal/adapter/transport"
	"github.com/parlance-ai/parlance/internal/domain"
)

// negotiate resolves the wire protocol from the "format" query parameter
// against the registry built at startup. Unknown names are a 400.
func negotiate(c *fiber.Ctx, protocols *transport.Registry) (transport.Protocol, error) {
	name := c.Query("format")
	if name == "" {
		return protocols.Default(), nil
	}
	proto, ok := protocols.Get(name)
	if !ok {
		return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown protocol format %q", name))
	}
	return proto, nil
}

// setPushHint offers the response's followup resource proactively via a
// preload Link header, the fasthttp-stack equivalent of server push.
func setPushHint(c *fiber.Ctx, resp *domain.Response) {
	url := resp.StreamingAudioURL
	if url == "" && resp.URLScope == domain.URLScopeLocal {
		url = resp.ResponseURL
	}
	if url != "" {
		c.Set(fiber.HeaderLink, "<"+url+">; rel=preload")
	}
}

// writeProtocolResponse serializes resp with proto and writes it with the
// protocol's MIME type and content encoding.
func writeProtocolResponse(c *fiber.Ctx, proto transport.Protocol, resp *domain.Response) error {
	payload, err := proto.WriteResponse(resp)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, proto.MimeType())
	if enc := proto.ContentEncoding(); enc != "" {
		c.Set(fiber.HeaderContentEncoding, enc)
	}
	setPushHint(c, resp)
	return c.Send(payload)
}

// writeRedirectResponse resolves a context-free turn: a 302 to the
// assembled navigation URL, with the serialized payload riding along for
// clients that also parse it directly. Without a URL it degrades to a
// plain protocol response.
func writeRedirectResponse(c *fiber.Ctx, proto transport.Protocol, resp *domain.Response) error {
	if resp.ResponseURL == "" {
		return writeProtocolResponse(c, proto, resp)
	}
	payload, err := proto.WriteResponse(resp)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderLocation, resp.ResponseURL)
	c.Set(fiber.HeaderContentType, proto.MimeType())
	if enc := proto.ContentEncoding(); enc != "" {
		c.Set(fiber.HeaderContentEncoding, enc)
	}
	setPushHint(c, resp)
	return c.Status(fiber.StatusFound).Send(payload)
}
