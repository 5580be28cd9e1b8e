// Package mcpserver provides an MCP (Model Context Protocol) server
// that drives card ring scenes over stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/cardring/internal/index"
	"github.com/starford/cardring/internal/linkgraph"
	"github.com/starford/cardring/internal/scene"
)

// SceneURI is the resource holding the default project's current frame.
const SceneURI = "cardring://scene"

// Scenes resolves the running scene of a project.
type Scenes interface {
	Session(ctx context.Context, project string) (*scene.Session, error)
}

// Server wraps the MCP server with the card ring tools.
type Server struct {
	mcp     *server.MCPServer
	scenes  Scenes
	fetcher scene.Fetcher
	cache   index.PageCache
	project string
	timeout time.Duration
}

// New creates a new MCP server with all tools registered. project is used
// when a tool call names none. cache may be nil, which disables
// get_backlinks.
func New(scenes Scenes, fetcher scene.Fetcher, cache index.PageCache, project string) *Server {
	s := &Server{
		scenes:  scenes,
		fetcher: fetcher,
		cache:   cache,
		project: project,
		timeout: 30 * time.Second,
	}

	s.mcp = server.NewMCPServer(
		"Cardring",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	projectArg := mcp.WithString("project", mcp.Description("Project name (defaults to the configured project)"))

	s.mcp.AddTool(mcp.NewTool("list_cards",
		mcp.WithDescription("List the cards on the ring in ring order with their positions."),
		projectArg,
	), s.listCards)

	s.mcp.AddTool(mcp.NewTool("card_links",
		mcp.WithDescription("List the titles linked to a card, in either direction."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Card title (case-insensitive)")),
		projectArg,
	), s.cardLinks)

	s.mcp.AddTool(mcp.NewTool("select_card",
		mcp.WithDescription("Select a card: its linked cards move onto the preview ring around it. "+
			"Waits until the transition has finished and returns the final scene."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Card title (case-insensitive)")),
		projectArg,
	), s.selectCard)

	s.mcp.AddTool(mcp.NewTool("rotate_cards",
		mcp.WithDescription("Rotate the whole scene about the vertical axis and return the final scene."),
		mcp.WithNumber("radians", mcp.Required(), mcp.Description("Angle in radians, positive is counter-clockwise seen from above")),
		projectArg,
	), s.rotateCards)

	s.mcp.AddTool(mcp.NewTool("spin_cards",
		mcp.WithDescription("Spin the ring with the eased free-spin profile and return the final scene."),
		projectArg,
	), s.spinCards)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all cached pages that link to the specified page."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Page title")),
		projectArg,
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the Markdown note format a vault uses to describe cards."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("image_texture",
		mcp.WithDescription("Fetch an image and report how it is fitted onto a card."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) image URL or data URI")),
		mcp.WithString("title", mcp.Description("Card title shown above the image")),
	), s.imageTexture)

	s.mcp.AddResource(
		mcp.NewResource(SceneURI, "Scene",
			mcp.WithResourceDescription("Current frame of the default project scene."),
			mcp.WithMIMEType("application/json"),
		),
		s.readSceneResource,
	)

	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Note Format Contract",
			mcp.WithResourceDescription("Markdown note format of vault projects."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) projectOf(req mcp.CallToolRequest) string {
	if p := req.GetString("project", ""); p != "" {
		return p
	}
	return s.project
}

func (s *Server) session(ctx context.Context, req mcp.CallToolRequest) (*scene.Session, error) {
	return s.scenes.Session(ctx, s.projectOf(req))
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

type cardSummary struct {
	Title    string      `json:"title"`
	Display  string      `json:"display"`
	Position scene.Point `json:"position"`
	Links    int         `json:"links"`
}

func (s *Server) listCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := sess.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]cardSummary, 0, len(f.Cards))
	for _, c := range f.Cards {
		out = append(out, cardSummary{Title: c.Title, Display: c.Display, Position: c.Position, Links: len(c.Links)})
	}
	return jsonResult(out), nil
}

func (s *Server) cardLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := s.session(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := sess.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key := linkgraph.Normalize(title)
	for _, c := range f.Cards {
		if c.Title != key {
			continue
		}
		if len(c.Links) == 0 {
			return mcp.NewToolResultText("no links found"), nil
		}
		return mcp.NewToolResultText(strings.Join(c.Links, "\n")), nil
	}
	return mcp.NewToolResultError(fmt.Sprintf("unknown card: %s", title)), nil
}

// settle runs op on the session and waits for the scene to go idle.
func (s *Server) settle(ctx context.Context, req mcp.CallToolRequest, op func(context.Context, *scene.Session) error) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sess, err := s.session(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := op(ctx, sess); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := sess.WaitIdle(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(f), nil
}

func (s *Server) selectCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.settle(ctx, req, func(ctx context.Context, sess *scene.Session) error {
		_, err := sess.Select(ctx, title)
		return err
	})
}

func (s *Server) rotateCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rad, err := req.RequireFloat("radians")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.settle(ctx, req, func(ctx context.Context, sess *scene.Session) error {
		return sess.Rotate(ctx, rad)
	})
}

func (s *Server) spinCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.settle(ctx, req, func(ctx context.Context, sess *scene.Session) error {
		return sess.Spin(ctx)
	})
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.cache == nil {
		return mcp.NewToolResultError("page cache is not configured"), nil
	}
	bl, err := s.cache.Backlinks(s.projectOf(req), title)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func (s *Server) readSceneResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	sess, err := s.scenes.Session(ctx, s.project)
	if err != nil {
		return nil, err
	}
	f, err := sess.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SceneURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}
