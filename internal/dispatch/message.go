package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/starford/asterisk/internal/models"
)

// Outbound message types.
const (
	TypeSaveSuccess      = "save-success"
	TypeSaveFailed       = "save-failed"
	TypeNoSelection      = "no-selection"
	TypeDraftLoaded      = "draft-loaded"
	TypeMetadataLoaded   = "metadata-loaded"
	TypeNewElement       = "new-element"
	TypeElementNotFound  = "element-not-found"
	TypeAllTags          = "all-tags"
	TypeAllElements      = "all-elements"
	TypeSelectionChanged = "selection-changed"
	TypeContextChanged   = "context-changed"
	TypeInitPreferences  = "init-preferences"
	TypeContextInfo      = "context-info"
	TypeNotify           = "notify"
	TypeError            = "error"
)

// User-facing texts.
const (
	MsgSaved           = "Note saved successfully!"
	MsgSaveFailed      = "Failed to save note. Please try again."
	MsgSelectToSave    = "Please select an element first to save Asterisk"
	MsgDraftLoaded     = "Continuing from your unsaved draft"
	MsgNewElement      = "Add metadata to this element"
	MsgElementNotFound = "The selected element could not be found"
	MsgNoSelection     = "Select an element to view or edit its metadata"
	MsgNodeMissing     = "Element not found in the current document"
	MsgDeleted         = "Note deleted"
)

// Message is one outbound message. It encodes as a single JSON object with
// the payload's fields next to "type".
type Message struct {
	Type    string
	Payload any
}

func (m Message) MarshalJSON() ([]byte, error) {
	typ, err := json.Marshal(m.Type)
	if err != nil {
		return nil, err
	}
	if m.Payload == nil {
		return []byte(`{"type":` + string(typ) + `}`), nil
	}
	body, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("dispatch: payload of %s is not an object", m.Type)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(typ)
	if rest := body[1:]; len(bytes.TrimSpace(rest)) > 1 {
		buf.WriteByte(',')
		buf.Write(rest)
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

type StatusPayload struct {
	Message string `json:"message"`
}

// ElementPayload answers get-metadata and edit-element. Data holds a
// models.Draft or models.Annotation.
type ElementPayload struct {
	Data     any    `json:"data,omitempty"`
	NodeID   string `json:"nodeId"`
	NodeName string `json:"nodeName"`
	Message  string `json:"message,omitempty"`
}

type TagsPayload struct {
	Tags  []models.TagCount `json:"tags"`
	Error string            `json:"error,omitempty"`
}

type ElementsPayload struct {
	Elements []models.ElementSummary `json:"elements"`
	Error    string                  `json:"error,omitempty"`
}

type PreferencesPayload struct {
	Preferences models.Preferences `json:"preferences"`
}

type ContextPayload struct {
	DocumentID string `json:"documentId"`
	PageID     string `json:"pageId"`
	PageName   string `json:"pageName"`
}

type NotifyPayload struct {
	Message string `json:"message"`
	Error   bool   `json:"error,omitempty"`
}

type ErrorPayload struct {
	Command string `json:"command,omitempty"`
	Error   string `json:"error"`
}

func status(typ, message string) Message {
	return Message{Type: typ, Payload: StatusPayload{Message: message}}
}
