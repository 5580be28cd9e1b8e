package mcpserver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/cardring/internal/netguard"
	"github.com/starford/cardring/internal/texture"
)

type textureResult struct {
	texture.Handle
	Placeholder bool `json:"placeholder"`
}

func (s *Server) imageTexture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title := req.GetString("title", "")

	dataURI := raw
	if !strings.HasPrefix(raw, "data:") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid URL: %v", err)), nil
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return mcp.NewToolResultError(fmt.Sprintf("unsupported scheme: %s (only http/https)", parsed.Scheme)), nil
		}
		if err := netguard.CheckHost(parsed.Hostname()); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		dataURI = s.fetcher.ImageDataURI(ctx, raw)
	}

	h, err := texture.Build(title, dataURI)
	if err != nil {
		return jsonResult(textureResult{Handle: texture.Fallback(title), Placeholder: true}), nil
	}
	return jsonResult(textureResult{Handle: h, Placeholder: dataURI == texture.Placeholder}), nil
}
