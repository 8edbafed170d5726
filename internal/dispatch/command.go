package dispatch

import (
	"encoding/json"
	"fmt"
	"slices"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/asterisk/internal/apperr"
	"github.com/starford/asterisk/internal/models"
)

// Kind is the "type" tag of an inbound command.
type Kind string

const (
	KindSaveMetadata      Kind = "save-metadata"
	KindSaveDraft         Kind = "save-draft"
	KindGetMetadata       Kind = "get-metadata"
	KindEditElement       Kind = "edit-element"
	KindGetAllTags        Kind = "get-all-tags"
	KindGetAllElements    Kind = "get-all-elements"
	KindUpdatePreferences Kind = "update-preferences"
	KindDeleteAsterisk    Kind = "delete-asterisk"
	KindNavigateToNode    Kind = "navigate-to-node"
	KindResize            Kind = "resize"
)

// Command is one inbound request. Each kind has its own payload type.
type Command interface {
	Kind() Kind
	Validate() error
}

type SaveMetadata struct {
	models.Fields
}

type SaveDraft struct {
	models.Fields
}

type GetMetadata struct{}

type EditElement struct {
	NodeID     string `json:"nodeId"`
	SelectNode bool   `json:"selectNode"`
}

type GetAllTags struct{}

type GetAllElements struct{}

type UpdatePreferences struct {
	Preferences models.Preferences `json:"preferences"`
}

type DeleteAsterisk struct {
	NodeID string `json:"nodeId"`
}

type NavigateToNode struct {
	NodeID string `json:"nodeId"`
}

type Resize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (SaveMetadata) Kind() Kind      { return KindSaveMetadata }
func (SaveDraft) Kind() Kind         { return KindSaveDraft }
func (GetMetadata) Kind() Kind       { return KindGetMetadata }
func (EditElement) Kind() Kind       { return KindEditElement }
func (GetAllTags) Kind() Kind        { return KindGetAllTags }
func (GetAllElements) Kind() Kind    { return KindGetAllElements }
func (UpdatePreferences) Kind() Kind { return KindUpdatePreferences }
func (DeleteAsterisk) Kind() Kind    { return KindDeleteAsterisk }
func (NavigateToNode) Kind() Kind    { return KindNavigateToNode }
func (Resize) Kind() Kind            { return KindResize }

func (SaveMetadata) Validate() error   { return nil }
func (SaveDraft) Validate() error      { return nil }
func (GetMetadata) Validate() error    { return nil }
func (GetAllTags) Validate() error     { return nil }
func (GetAllElements) Validate() error { return nil }

func (c EditElement) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.NodeID, validation.Required),
	)
}

func (c DeleteAsterisk) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.NodeID, validation.Required),
	)
}

func (c NavigateToNode) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.NodeID, validation.Required),
	)
}

func (c Resize) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Width, validation.Min(0)),
		validation.Field(&c.Height, validation.Min(0)),
	)
}

func (c UpdatePreferences) Validate() error {
	p := &c.Preferences
	return validation.ValidateStruct(p,
		validation.Field(&p.Theme, validation.Required, validation.In(models.ThemeLight, models.ThemeDark)),
		validation.Field(&p.DefaultSearchAction, validation.Required,
			validation.In(models.SearchActionNavigate, models.SearchActionOpen)),
		validation.Field(&p.FieldOrder, validation.Required, validation.By(isFieldPermutation)),
	)
}

func isFieldPermutation(v any) error {
	order, _ := v.([]string)
	want := models.DefaultFieldOrder()
	got := slices.Clone(order)
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		return fmt.Errorf("must be a permutation of %v", models.DefaultFieldOrder())
	}
	return nil
}

var decoders = map[Kind]func(json.RawMessage) (Command, error){
	KindSaveMetadata:      decodeAs[SaveMetadata],
	KindSaveDraft:         decodeAs[SaveDraft],
	KindGetMetadata:       decodeAs[GetMetadata],
	KindEditElement:       decodeAs[EditElement],
	KindGetAllTags:        decodeAs[GetAllTags],
	KindGetAllElements:    decodeAs[GetAllElements],
	KindUpdatePreferences: decodeAs[UpdatePreferences],
	KindDeleteAsterisk:    decodeAs[DeleteAsterisk],
	KindNavigateToNode:    decodeAs[NavigateToNode],
	KindResize:            decodeAs[Resize],
}

func decodeAs[T Command](raw json.RawMessage) (Command, error) {
	var c T
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return c, nil
}

// Decode parses a {"type": ..., ...} envelope into its command variant and
// validates it.
func Decode(raw []byte) (Command, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidCommand, err)
	}
	dec, ok := decoders[head.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperr.ErrUnknownCommand, head.Type)
	}
	cmd, err := dec(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrInvalidCommand, head.Type, err)
	}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrInvalidCommand, head.Type, err)
	}
	return cmd, nil
}
