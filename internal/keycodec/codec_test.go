package keycodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/asterisk/internal/apperr"
	"github.com/starford/asterisk/internal/models"
)

func TestEncode(t *testing.T) {
	scope := models.Scope{DocumentID: "file42", PageID: "0:1"}

	key, err := Encode(KindAnnotation, scope, "12:34")
	require.NoError(t, err)
	assert.Equal(t, "asterisk-file42-0:1-12:34", key)

	key, err = Encode(KindDraft, scope, "12:34")
	require.NoError(t, err)
	assert.Equal(t, "draft-file42-0:1-12:34", key)
}

func TestEncode_RejectsDelimiter(t *testing.T) {
	cases := []struct {
		name  string
		scope models.Scope
		elem  string
	}{
		{"document", models.Scope{DocumentID: "my-file", PageID: "0:1"}, "1:2"},
		{"page", models.Scope{DocumentID: "f", PageID: "0-1"}, "1:2"},
		{"element", models.Scope{DocumentID: "f", PageID: "0:1"}, "1-2"},
		{"empty element", models.Scope{DocumentID: "f", PageID: "0:1"}, ""},
		{"empty page", models.Scope{DocumentID: "f"}, "1:2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Encode(KindAnnotation, tc.scope, tc.elem)
			assert.ErrorIs(t, err, apperr.ErrInvalidIdentifier)
		})
	}
}

func TestEncode_UnknownKind(t *testing.T) {
	_, err := Encode(Kind("note"), models.Scope{DocumentID: "f", PageID: "p"}, "e")
	assert.ErrorIs(t, err, apperr.ErrInvalidIdentifier)
}

func TestDecodeRoundTrip(t *testing.T) {
	scope := models.NewScope("", "0:1")
	key, err := Encode(KindDraft, scope, "5:6")
	require.NoError(t, err)

	k, err := Decode(key)
	require.NoError(t, err)
	assert.Equal(t, KindDraft, k.Kind)
	assert.Equal(t, models.Scope{DocumentID: models.LocalDocumentID, PageID: "0:1"}, k.Scope)
	assert.Equal(t, "5:6", k.ElementID)

	id, err := ElementID(key)
	require.NoError(t, err)
	assert.Equal(t, "5:6", id)
}

func TestDecode_Invalid(t *testing.T) {
	for _, key := range []string{
		PreferencesKey,
		"asterisk-a-b",
		"asterisk-a-b-c-d",
		"note-a-b-c",
		"asterisk--b-c",
		"",
	} {
		_, err := Decode(key)
		assert.ErrorIs(t, err, apperr.ErrInvalidIdentifier, "key %q", key)
	}
}

func TestPrefix(t *testing.T) {
	scope := models.Scope{DocumentID: "f", PageID: "0:1"}
	p, err := Prefix(KindAnnotation, scope)
	require.NoError(t, err)
	assert.Equal(t, "asterisk-f-0:1-", p)

	key, err := Encode(KindAnnotation, scope, "9:9")
	require.NoError(t, err)
	assert.Contains(t, key, p)

	other, err := Encode(KindAnnotation, models.Scope{DocumentID: "f", PageID: "0:10"}, "9:9")
	require.NoError(t, err)
	assert.NotEqual(t, p, other[:len(p)])
}
