package config

import (
	"context"
	"errors"
	"fmt"

	"bread-widget/internal/integrations/paramstore"
)

// NoteField is an optional free-text recipe field rendered under its own
// heading.
type NoteField struct {
	Key     string `json:"key"`
	Heading string `json:"heading"`
}

// Copy holds the product wording shown by the widget.
type Copy struct {
	Title                 string      `json:"title"`
	Intro                 string      `json:"intro"`
	Starting              string      `json:"starting"`
	Greeting              string      `json:"greeting"`
	Pending               string      `json:"pending"`
	ErrorMarker           string      `json:"error_marker"`
	FallbackError         string      `json:"fallback_error"`
	StartErrorPrefix      string      `json:"start_error_prefix"`
	ConnectionErrorPrefix string      `json:"connection_error_prefix"`
	StartLabel            string      `json:"start_label"`
	SendLabel             string      `json:"send_label"`
	InputPlaceholder      string      `json:"input_placeholder"`
	NoteFields            []NoteField `json:"note_fields"`
}

func DefaultCopy() Copy {
	return Copy{
		Title:                 "Bread Baking Assistant",
		Intro:                 "👋 Welcome to your Bread Baking Assistant! Click 'Start' to begin.",
		Starting:              "Starting chat session...",
		Greeting:              "How would you like to proceed — one-by-one or all-at-once?",
		Pending:               "Thinking... 🍞",
		ErrorMarker:           "⚠️ ",
		FallbackError:         "Error occurred.",
		StartErrorPrefix:      "Could not start session: ",
		ConnectionErrorPrefix: "Connection error: ",
		StartLabel:            "Start",
		SendLabel:             "Send",
		InputPlaceholder:      "Type your answer...",
		NoteFields: []NoteField{
			{Key: "equipment_notes", Heading: "Equipment Notes"},
			{Key: "adaptations", Heading: "Adaptations"},
			{Key: "tentazione_max_note", Heading: "Tentazione Max Note"},
			{Key: "plating_tips", Heading: "Plating Tips"},
			{Key: "storage_tips", Heading: "Storage Tips"},
		},
	}
}

// Merge returns c with every non-empty field of o applied on top.
// A non-empty NoteFields list replaces the whole list.
func (c Copy) Merge(o Copy) Copy {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Title, o.Title)
	set(&c.Intro, o.Intro)
	set(&c.Starting, o.Starting)
	set(&c.Greeting, o.Greeting)
	set(&c.Pending, o.Pending)
	set(&c.ErrorMarker, o.ErrorMarker)
	set(&c.FallbackError, o.FallbackError)
	set(&c.StartErrorPrefix, o.StartErrorPrefix)
	set(&c.ConnectionErrorPrefix, o.ConnectionErrorPrefix)
	set(&c.StartLabel, o.StartLabel)
	set(&c.SendLabel, o.SendLabel)
	set(&c.InputPlaceholder, o.InputPlaceholder)
	if len(o.NoteFields) > 0 {
		fields := make([]NoteField, 0, len(o.NoteFields))
		for _, f := range o.NoteFields {
			if f.Key != "" && f.Heading != "" {
				fields = append(fields, f)
			}
		}
		if len(fields) > 0 {
			c.NoteFields = fields
		}
	}
	return c
}

// JSONGetter is satisfied by *paramstore.Client.
type JSONGetter interface {
	GetJSON(ctx context.Context, name string, out any) error
}

func copyParameterName(prefix string) string {
	return prefix + "/widget_copy"
}

// LoadCopy returns the default copy overlaid with the JSON document stored
// at {prefix}/widget_copy. A missing parameter is not an error. On any
// other failure the defaults are returned alongside the error.
func LoadCopy(ctx context.Context, getter JSONGetter, prefix string) (Copy, error) {
	base := DefaultCopy()
	if getter == nil || prefix == "" {
		return base, nil
	}

	var override Copy
	err := getter.GetJSON(ctx, copyParameterName(prefix), &override)
	if errors.Is(err, paramstore.ErrNotFound) {
		return base, nil
	}
	if err != nil {
		return base, fmt.Errorf("config: load widget copy: %w", err)
	}
	return base.Merge(override), nil
}
