package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ValidationIssue describes one problem found while parsing a request body.
// Loc is the path to the offending value, e.g. ["body", "tracks", 0, "artist"].
type ValidationIssue struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// ValidationError collects every issue found in a request body.
type ValidationError struct {
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		path := make([]string, 0, len(issue.Loc))
		for _, p := range issue.Loc {
			path = append(path, fmt.Sprint(p))
		}
		parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(path, "."), issue.Msg))
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(msg, typ string, loc ...any) {
	e.Issues = append(e.Issues, ValidationIssue{Loc: loc, Msg: msg, Type: typ})
}

// ValidationErrorResponse is the 422 body.
type ValidationErrorResponse struct {
	Detail []ValidationIssue `json:"detail"`
}

// trackFields mirrors Track with pointers so absent fields can be told apart from empty ones.
type trackFields struct {
	Artist    *string `json:"artist"`
	Title     *string `json:"title"`
	Genre     *string `json:"genre"`
	SourceURL *string `json:"source_url"`
	Note      *string `json:"note"`
}

// ParseSendTracksRequest decodes and validates a POST /send-tracks body.
// The returned error is a *ValidationError listing every problem found.
// An empty tracks array is valid.
func ParseSendTracksRequest(body []byte) (SendTracksRequest, error) {
	verr := &ValidationError{}

	var envelope struct {
		Tracks *[]json.RawMessage `json:"tracks"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		verr.add(decodeMessage(err), decodeType(err), "body")
		return SendTracksRequest{}, verr
	}
	if envelope.Tracks == nil {
		verr.add("field required", "value_error.missing", "body", "tracks")
		return SendTracksRequest{}, verr
	}

	raw := *envelope.Tracks
	req := SendTracksRequest{Tracks: make([]Track, 0, len(raw))}
	for i, item := range raw {
		track, ok := parseTrack(item, i, verr)
		if ok {
			req.Tracks = append(req.Tracks, track)
		}
	}
	if len(verr.Issues) > 0 {
		return SendTracksRequest{}, verr
	}
	return req, nil
}

// ValidateTracks applies the required-field rules to already decoded tracks.
func ValidateTracks(tracks []Track) error {
	verr := &ValidationError{}
	for i, t := range tracks {
		if t.Artist == "" {
			verr.add("field must not be empty", "value_error.empty", "body", "tracks", i, "artist")
		}
		if t.Title == "" {
			verr.add("field must not be empty", "value_error.empty", "body", "tracks", i, "title")
		}
	}
	if len(verr.Issues) > 0 {
		return verr
	}
	return nil
}

func parseTrack(item json.RawMessage, index int, verr *ValidationError) (Track, bool) {
	trimmed := bytes.TrimSpace(item)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		verr.add("value is not a valid object", "type_error.dict", "body", "tracks", index)
		return Track{}, false
	}

	var fields trackFields
	if err := json.Unmarshal(item, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			verr.add("value is not a valid string", "type_error.str", "body", "tracks", index, typeErr.Field)
		} else {
			verr.add(err.Error(), "value_error", "body", "tracks", index)
		}
		return Track{}, false
	}

	ok := true
	if fields.Artist == nil {
		verr.add("field required", "value_error.missing", "body", "tracks", index, "artist")
		ok = false
	} else if *fields.Artist == "" {
		verr.add("field must not be empty", "value_error.empty", "body", "tracks", index, "artist")
		ok = false
	}
	if fields.Title == nil {
		verr.add("field required", "value_error.missing", "body", "tracks", index, "title")
		ok = false
	} else if *fields.Title == "" {
		verr.add("field must not be empty", "value_error.empty", "body", "tracks", index, "title")
		ok = false
	}
	if !ok {
		return Track{}, false
	}

	return Track{
		Artist:    *fields.Artist,
		Title:     *fields.Title,
		Genre:     fields.Genre,
		SourceURL: fields.SourceURL,
		Note:      fields.Note,
	}, true
}

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field != "" {
			return fmt.Sprintf("field %q must be %s", typeErr.Field, jsonKind(typeErr.Type.Kind().String()))
		}
		return "request body must be a JSON object"
	}
	return "invalid JSON: " + err.Error()
}

func decodeType(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return "type_error"
	}
	return "value_error.jsondecode"
}

func jsonKind(kind string) string {
	switch kind {
	case "slice":
		return "an array"
	case "struct", "map":
		return "an object"
	default:
		return "a " + kind
	}
}
