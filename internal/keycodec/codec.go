// Package keycodec derives and parses the storage keys that namespace
// annotation records by document, page and element.
//
// Keys have the form <kind>-<documentId>-<pageId>-<elementId>. None of the
// identifier segments may contain the delimiter; Encode rejects such input
// so that Decode is never ambiguous.
package keycodec

import (
	"fmt"
	"strings"

	"github.com/starford/asterisk/internal/apperr"
	"github.com/starford/asterisk/internal/models"
)

// Delimiter separates key segments.
const Delimiter = "-"

// PreferencesKey addresses the singleton preferences record. It has only two
// segments, so it can never match a scope prefix.
const PreferencesKey = "asterisk-preferences"

// Kind is the record kind encoded in the first key segment.
type Kind string

// Record kinds.
const (
	KindAnnotation Kind = "asterisk"
	KindDraft      Kind = "draft"
)

// Valid reports whether k is a known record kind.
func (k Kind) Valid() bool {
	return k == KindAnnotation || k == KindDraft
}

// Key is a decoded storage key.
type Key struct {
	Kind      Kind
	Scope     models.Scope
	ElementID string
}

// String encodes the key. It does not validate; use Encode for that.
func (k Key) String() string {
	return strings.Join([]string{string(k.Kind), k.Scope.DocumentID, k.Scope.PageID, k.ElementID}, Delimiter)
}

// ValidateIdentifier checks that id can be used as a key segment.
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", apperr.ErrInvalidIdentifier)
	}
	if strings.Contains(id, Delimiter) {
		return fmt.Errorf("%w: %q contains %q", apperr.ErrInvalidIdentifier, id, Delimiter)
	}
	return nil
}

// ValidateScope checks both scope segments.
func ValidateScope(scope models.Scope) error {
	if err := ValidateIdentifier(scope.DocumentID); err != nil {
		return fmt.Errorf("document id: %w", err)
	}
	if err := ValidateIdentifier(scope.PageID); err != nil {
		return fmt.Errorf("page id: %w", err)
	}
	return nil
}

// Encode returns the storage key for (kind, scope, elementID).
func Encode(kind Kind, scope models.Scope, elementID string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: kind %q", apperr.ErrInvalidIdentifier, kind)
	}
	if err := ValidateScope(scope); err != nil {
		return "", err
	}
	if err := ValidateIdentifier(elementID); err != nil {
		return "", fmt.Errorf("element id: %w", err)
	}
	return Key{Kind: kind, Scope: scope, ElementID: elementID}.String(), nil
}

// Prefix returns the prefix shared by every key of kind within scope.
func Prefix(kind Kind, scope models.Scope) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: kind %q", apperr.ErrInvalidIdentifier, kind)
	}
	if err := ValidateScope(scope); err != nil {
		return "", err
	}
	return strings.Join([]string{string(kind), scope.DocumentID, scope.PageID, ""}, Delimiter), nil
}

// Decode parses a key produced by Encode.
func Decode(key string) (Key, error) {
	parts := strings.Split(key, Delimiter)
	if len(parts) != 4 {
		return Key{}, fmt.Errorf("%w: key %q has %d segments", apperr.ErrInvalidIdentifier, key, len(parts))
	}
	k := Key{
		Kind:      Kind(parts[0]),
		Scope:     models.Scope{DocumentID: parts[1], PageID: parts[2]},
		ElementID: parts[3],
	}
	if !k.Kind.Valid() {
		return Key{}, fmt.Errorf("%w: kind %q", apperr.ErrInvalidIdentifier, parts[0])
	}
	for _, p := range parts[1:] {
		if p == "" {
			return Key{}, fmt.Errorf("%w: key %q has an empty segment", apperr.ErrInvalidIdentifier, key)
		}
	}
	return k, nil
}

// ElementID extracts the trailing element identity from key.
func ElementID(key string) (string, error) {
	k, err := Decode(key)
	if err != nil {
		return "", err
	}
	return k.ElementID, nil
}
