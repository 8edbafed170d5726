package models

// Themes.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Search actions.
const (
	SearchActionNavigate = "navigate"
	SearchActionOpen     = "open"
)

// Field names used in Preferences.FieldOrder.
const (
	FieldSourceURL = "sourceUrl"
	FieldTags      = "tags"
	FieldNotes     = "notes"
)

// SearchFields controls which columns the search view shows.
// ShowName is always true.
type SearchFields struct {
	ShowName  bool `json:"showName"`
	ShowNotes bool `json:"showNotes"`
	ShowTags  bool `json:"showTags"`
	ShowURL   bool `json:"showUrl"`
}

// Preferences is the per-installation user preferences record.
type Preferences struct {
	Theme               string       `json:"theme"`
	Autosave            bool         `json:"autosave"`
	DefaultSearchAction string       `json:"defaultSearchAction"`
	FieldOrder          []string     `json:"fieldOrder"`
	SearchFields        SearchFields `json:"searchFields"`
}

// DefaultFieldOrder returns a fresh copy of the default form field order.
func DefaultFieldOrder() []string {
	return []string{FieldSourceURL, FieldTags, FieldNotes}
}

// DefaultSearchFields returns the default search column settings.
func DefaultSearchFields() SearchFields {
	return SearchFields{ShowName: true, ShowNotes: true, ShowTags: true, ShowURL: false}
}

// DefaultPreferences returns the preferences used on first load.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:               ThemeLight,
		Autosave:            true,
		DefaultSearchAction: SearchActionNavigate,
		FieldOrder:          DefaultFieldOrder(),
		SearchFields:        DefaultSearchFields(),
	}
}
