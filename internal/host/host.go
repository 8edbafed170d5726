// Package host models the design tool that embeds Asterisk: the live
// document, the current page and selection, the viewport and toast
// notifications.
package host

import "github.com/starford/asterisk/internal/models"

// Host is the set of host services the command dispatcher relies on.
type Host interface {
	// Scope returns the active (document, page) pair.
	Scope() models.Scope
	// PageName returns the display name of the active page.
	PageName() string
	// Selection returns the first selected element, if any.
	Selection() (models.Element, bool)
	// FindElement resolves elementID on the page named by scope.
	FindElement(scope models.Scope, elementID string) (models.Element, bool)
	// Select replaces the selection with elementID on the active page.
	Select(elementID string) error
	// ScrollIntoView scrolls and zooms the viewport to elementID.
	ScrollIntoView(elementID string)
	// Notify shows a toast.
	Notify(message string, isError bool)
	// Resize resizes the plug-in window.
	Resize(width, height int)
}

// EventKind identifies a host-originated event.
type EventKind string

const (
	EventSelectionChanged EventKind = "selection-changed"
	EventPageChanged      EventKind = "page-changed"
	EventNotification     EventKind = "notification"
)

// Event is pushed by the host without being asked.
type Event struct {
	Kind     EventKind
	Scope    models.Scope
	PageName string
	Message  string
	IsError  bool
}

// Listener receives host events.
type Listener func(Event)
