// Package prefs loads, migrates and saves the singleton user preferences record.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/asterisk/internal/apperr"
	"github.com/starford/asterisk/internal/keycodec"
	"github.com/starford/asterisk/internal/kv"
	"github.com/starford/asterisk/internal/models"
)

// stored mirrors models.Preferences with every field optional, so fields
// added by later revisions can be told apart from user-set zero values.
type stored struct {
	Theme               *string       `json:"theme"`
	Autosave            *bool         `json:"autosave"`
	DefaultSearchAction *string       `json:"defaultSearchAction"`
	FieldOrder          []string      `json:"fieldOrder"`
	SearchFields        *storedSearch `json:"searchFields"`
}

type storedSearch struct {
	ShowName  *bool `json:"showName"`
	ShowNotes *bool `json:"showNotes"`
	ShowTags  *bool `json:"showTags"`
	ShowURL   *bool `json:"showUrl"`
}

// Store reads and writes the preferences record.
type Store struct {
	kv     kv.Store
	logger *slog.Logger
}

// NewStore creates a preferences store on top of s.
func NewStore(s kv.Store, logger *slog.Logger) *Store {
	return &Store{kv: s, logger: logger}
}

// Load returns the stored preferences. A missing record is created from the
// defaults; a record missing fields is backfilled and written back only when
// something was added.
func (s *Store) Load(ctx context.Context) (models.Preferences, error) {
	data, err := s.kv.Get(ctx, keycodec.PreferencesKey)
	if errors.Is(err, apperr.ErrNotFound) {
		p := models.DefaultPreferences()
		if err := s.Save(ctx, p); err != nil {
			return models.Preferences{}, err
		}
		s.logger.Info("prefs: initialised defaults")
		return p, nil
	}
	if err != nil {
		return models.Preferences{}, fmt.Errorf("prefs: load: %w", err)
	}

	var raw stored
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.Preferences{}, fmt.Errorf("prefs: decode: %w", err)
	}

	p, changed := backfill(raw)
	if changed {
		if err := s.Save(ctx, p); err != nil {
			return models.Preferences{}, err
		}
		s.logger.Info("prefs: backfilled missing fields")
	}
	return p, nil
}

// Save overwrites the record with p.
func (s *Store) Save(ctx context.Context, p models.Preferences) error {
	if err := kv.SetJSON(ctx, s.kv, keycodec.PreferencesKey, p); err != nil {
		return fmt.Errorf("prefs: save: %w", err)
	}
	return nil
}

// backfill fills every absent field with its default. ShowName is fixed to true.
func backfill(raw stored) (models.Preferences, bool) {
	def := models.DefaultPreferences()
	out := def
	changed := false

	pickString := func(v *string, dst *string) {
		if v == nil {
			changed = true
			return
		}
		*dst = *v
	}
	pickBool := func(v *bool, dst *bool) {
		if v == nil {
			changed = true
			return
		}
		*dst = *v
	}

	pickString(raw.Theme, &out.Theme)
	pickBool(raw.Autosave, &out.Autosave)
	pickString(raw.DefaultSearchAction, &out.DefaultSearchAction)

	if raw.FieldOrder == nil {
		changed = true
	} else {
		out.FieldOrder = append([]string(nil), raw.FieldOrder...)
	}

	if raw.SearchFields == nil {
		changed = true
	} else {
		sf := raw.SearchFields
		pickBool(sf.ShowNotes, &out.SearchFields.ShowNotes)
		pickBool(sf.ShowTags, &out.SearchFields.ShowTags)
		pickBool(sf.ShowURL, &out.SearchFields.ShowURL)
		if sf.ShowName == nil || !*sf.ShowName {
			changed = true
		}
	}
	out.SearchFields.ShowName = true

	return out, changed
}
