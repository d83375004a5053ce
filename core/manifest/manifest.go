// Package manifest describes the tools this relay offers to agents.
//
// The document is consumed by external agent tooling that expects this exact
// shape, so keys are declared as struct fields to pin their order and the
// encoded bytes never change for the life of the process.
package manifest

import (
	"encoding/json"
	"sync"
)

const (
	SchemaVersion     = "1.0"
	ServerName        = "music-discovery-server"
	ServerDescription = "MCP server for sending discovered music tracks to your music app"

	ToolName        = "send_tracks_to_app"
	ToolDescription = "Send a list of discovered music tracks to the user's music app for playback and storage"
)

// Property is a leaf in the input schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// TrackProperties lists the fields of one track in declaration order.
type TrackProperties struct {
	Artist    Property `json:"artist"`
	Title     Property `json:"title"`
	Genre     Property `json:"genre"`
	SourceURL Property `json:"source_url"`
	Note      Property `json:"note"`
}

type TrackItems struct {
	Type       string          `json:"type"`
	Properties TrackProperties `json:"properties"`
	Required   []string        `json:"required"`
}

type TracksProperty struct {
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Items       TrackItems `json:"items"`
}

type InputProperties struct {
	Tracks TracksProperty `json:"tracks"`
}

type InputSchema struct {
	Type       string          `json:"type"`
	Properties InputProperties `json:"properties"`
	Required   []string        `json:"required"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// Document is the body served at /.well-known/mcp.json.
type Document struct {
	SchemaVersion string `json:"schema_version"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Tools         []Tool `json:"tools"`
}

// NewDocument returns a fresh copy of the manifest.
func NewDocument() Document {
	return Document{
		SchemaVersion: SchemaVersion,
		Name:          ServerName,
		Description:   ServerDescription,
		Tools: []Tool{
			{
				Name:        ToolName,
				Description: ToolDescription,
				InputSchema: InputSchema{
					Type: "object",
					Properties: InputProperties{
						Tracks: TracksProperty{
							Type:        "array",
							Description: "List of music tracks to send",
							Items: TrackItems{
								Type: "object",
								Properties: TrackProperties{
									Artist:    Property{Type: "string", Description: "Artist name"},
									Title:     Property{Type: "string", Description: "Song title"},
									Genre:     Property{Type: "string", Description: "Genre or style tags"},
									SourceURL: Property{Type: "string", Description: "Source URL"},
									Note:      Property{Type: "string", Description: "Description"},
								},
								Required: []string{"artist", "title"},
							},
						},
					},
					Required: []string{"tracks"},
				},
			},
		},
	}
}

var encoded = sync.OnceValue(func() []byte {
	data, err := json.Marshal(NewDocument())
	if err != nil {
		// Only plain strings and slices are encoded.
		panic("manifest: " + err.Error())
	}
	return data
})

// JSON returns the encoded manifest. Every call yields identical bytes.
func JSON() []byte {
	data := encoded()
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
