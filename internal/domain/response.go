package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Status is the kind of a turn response.
type Status string

const (
	StatusQuestion Status = "question"
	StatusSuccess  Status = "success"
	// StatusError covers "error" and every status value the widget does not
	// recognize.
	StatusError Status = "error"
)

// TurnRequest is the body sent to the assistant for one conversation turn.
type TurnRequest struct {
	SessionID string `json:"session_id"`
	InputText string `json:"input_text"`
	Language  string `json:"language"`
}

// StartResponse is the body returned by the session-creation endpoint.
type StartResponse struct {
	ConversationID string `json:"conversation_id"`
}

// ServerResponse is a validated turn response. Only the fields relevant to
// Status are meaningful.
type ServerResponse struct {
	Status    Status
	RawStatus string
	Message   string
	Question  string
	Field     string
	Options   []string
	Recipe    *Recipe
}

// ParseServerResponse validates a turn response body once, at the boundary.
// The body must be a JSON object; optional fields with the wrong type are
// treated as absent.
func ParseServerResponse(data []byte) (ServerResponse, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return ServerResponse{}, fmt.Errorf("domain: decode turn response: %w", err)
	}
	if fields == nil {
		return ServerResponse{}, errors.New("domain: decode turn response: body is null")
	}

	out := ServerResponse{
		RawStatus: stringField(fields["status"]),
		Message:   stringField(fields["message"]),
		Question:  stringField(fields["question"]),
		Field:     stringField(fields["field"]),
		Options:   stringsField(fields["options"]),
	}
	switch Status(out.RawStatus) {
	case StatusQuestion:
		out.Status = StatusQuestion
	case StatusSuccess:
		out.Status = StatusSuccess
	default:
		out.Status = StatusError
	}

	if raw, ok := fields["recipe"]; ok && !isNull(raw) {
		recipe, err := ParseRecipe(raw)
		if err != nil {
			// A malformed recipe is dropped like any other wrong-shaped field.
			out.Recipe = &Recipe{Dropped: []string{"recipe"}}
		} else {
			out.Recipe = recipe
		}
	}
	return out, nil
}

func stringField(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func stringsField(raw json.RawMessage) []string {
	if raw == nil {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := stringField(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
