package mcptool

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"songrelay/core/manifest"
	"songrelay/core/relay"
	"songrelay/logger"
	"songrelay/model"
)

// TrackInput is one track as an MCP client sends it.
type TrackInput struct {
	Artist    string  `json:"artist" jsonschema:"Artist name"`
	Title     string  `json:"title" jsonschema:"Song title"`
	Genre     *string `json:"genre,omitempty" jsonschema:"Genre or style tags"`
	SourceURL *string `json:"source_url,omitempty" jsonschema:"Source URL"`
	Note      *string `json:"note,omitempty" jsonschema:"Description"`
}

// SendTracksInput is the send_tracks_to_app argument object.
type SendTracksInput struct {
	Tracks []TrackInput `json:"tracks" jsonschema:"List of music tracks to send"`
}

func (in SendTracksInput) tracks() []model.Track {
	out := make([]model.Track, 0, len(in.Tracks))
	for _, t := range in.Tracks {
		out = append(out, model.Track{
			Artist:    t.Artist,
			Title:     t.Title,
			Genre:     t.Genre,
			SourceURL: t.SourceURL,
			Note:      t.Note,
		})
	}
	return out
}

// SendTracksTool defines the MCP tool advertised in the manifest.
func SendTracksTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        manifest.ToolName,
		Description: manifest.ToolDescription,
	}
}

// SendTracksHandler relays a tool call through svc.
// Failures are reported as tool errors carrying the same text as the HTTP route.
func SendTracksHandler(svc *relay.Service) mcp.ToolHandlerFor[SendTracksInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SendTracksInput) (*mcp.CallToolResult, any, error) {
		tracks := input.tracks()
		if err := model.ValidateTracks(tracks); err != nil {
			return errorResult(err.Error()), nil, nil
		}

		resp, err := svc.SendTracks(context.WithoutCancel(ctx), tracks)
		if err != nil {
			logger.Warn("mcp send_tracks_to_app failed", logger.ErrorField(err))
			return errorResult(relay.Describe(err)), nil, nil
		}
		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: resp.Message}},
			StructuredContent: resp,
		}, nil, nil
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// NewServer builds an MCP server exposing send_tracks_to_app.
func NewServer(svc *relay.Service, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: manifest.ServerName, Version: version}, nil)
	mcp.AddTool(server, SendTracksTool(), SendTracksHandler(svc))
	return server
}

// Handler serves server over the streamable HTTP transport.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}
