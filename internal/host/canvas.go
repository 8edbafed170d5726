package host

import (
	"fmt"
	"sync"

	"github.com/starford/asterisk/internal/apperr"
	"github.com/starford/asterisk/internal/models"
)

// Viewport is the visible area of the canvas and the plug-in window size.
type Viewport struct {
	Focus  string `json:"focus,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Notification is a toast shown by the host.
type Notification struct {
	Message string `json:"message"`
	IsError bool   `json:"isError"`
}

// State is a snapshot of the canvas, for inspection.
type State struct {
	Scope         models.Scope   `json:"scope"`
	PageName      string         `json:"pageName"`
	Selection     []string       `json:"selection"`
	Viewport      Viewport       `json:"viewport"`
	Notifications []Notification `json:"notifications"`
}

type page struct {
	id       string
	name     string
	elements map[string]models.Element
}

// Canvas is an in-memory Host backed by a DocumentSpec. It stands in for a
// real design tool when running the service standalone and in tests.
//
// Listeners are called after the canvas lock is released, so they may call
// back into the canvas.
type Canvas struct {
	mu            sync.Mutex
	documentID    string
	pages         []*page
	current       int
	selection     []string
	viewport      Viewport
	notifications []Notification
	listeners     []Listener
}

var _ Host = (*Canvas)(nil)

// NewCanvas builds a canvas showing the first page of doc.
func NewCanvas(doc DocumentSpec) (*Canvas, error) {
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("host: %w", err)
	}
	c := &Canvas{viewport: Viewport{Width: 360, Height: 580}}
	c.load(doc)
	return c, nil
}

func (c *Canvas) load(doc DocumentSpec) {
	c.documentID = doc.ID
	c.pages = c.pages[:0]
	for _, ps := range doc.Pages {
		p := &page{id: ps.ID, name: ps.Name, elements: make(map[string]models.Element, len(ps.Elements))}
		for _, es := range ps.Elements {
			p.elements[es.ID] = models.Element{ID: es.ID, Name: es.Name, PageID: ps.ID}
		}
		c.pages = append(c.pages, p)
	}
}

// Subscribe registers l for every future event.
func (c *Canvas) Subscribe(l Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

func (c *Canvas) emit(ev Event) {
	c.mu.Lock()
	ls := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()
	for _, l := range ls {
		l(ev)
	}
}

func (c *Canvas) Scope() models.Scope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scopeLocked()
}

func (c *Canvas) scopeLocked() models.Scope {
	return models.NewScope(c.documentID, c.pages[c.current].id)
}

func (c *Canvas) PageName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages[c.current].name
}

// Scopes returns the scope of every page.
func (c *Canvas) Scopes() []models.Scope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Scope, len(c.pages))
	for i, p := range c.pages {
		out[i] = models.NewScope(c.documentID, p.id)
	}
	return out
}

func (c *Canvas) Selection() (models.Element, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.selection) == 0 {
		return models.Element{}, false
	}
	el, ok := c.pages[c.current].elements[c.selection[0]]
	return el, ok
}

func (c *Canvas) FindElement(scope models.Scope, elementID string) (models.Element, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if scope.DocumentID != models.NewScope(c.documentID, "").DocumentID {
		return models.Element{}, false
	}
	for _, p := range c.pages {
		if p.id == scope.PageID {
			el, ok := p.elements[elementID]
			return el, ok
		}
	}
	return models.Element{}, false
}

// Select replaces the selection and emits selection-changed.
func (c *Canvas) Select(elementID string) error {
	c.mu.Lock()
	if _, ok := c.pages[c.current].elements[elementID]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("host: select %s: %w", elementID, apperr.ErrNotFound)
	}
	c.selection = []string{elementID}
	c.mu.Unlock()

	c.emit(Event{Kind: EventSelectionChanged})
	return nil
}

// ClearSelection empties the selection and emits selection-changed.
func (c *Canvas) ClearSelection() {
	c.mu.Lock()
	c.selection = nil
	c.mu.Unlock()
	c.emit(Event{Kind: EventSelectionChanged})
}

// SetPage switches the active page, clears the selection and emits
// page-changed.
func (c *Canvas) SetPage(pageID string) error {
	c.mu.Lock()
	idx := -1
	for i, p := range c.pages {
		if p.id == pageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("host: page %s: %w", pageID, apperr.ErrNotFound)
	}
	c.current = idx
	c.selection = nil
	ev := Event{Kind: EventPageChanged, Scope: c.scopeLocked(), PageName: c.pages[idx].name}
	c.mu.Unlock()

	c.emit(ev)
	return nil
}

func (c *Canvas) ScrollIntoView(elementID string) {
	c.mu.Lock()
	c.viewport.Focus = elementID
	c.mu.Unlock()
}

// Notify records the toast and emits it as a notification event.
func (c *Canvas) Notify(message string, isError bool) {
	n := Notification{Message: message, IsError: isError}
	c.mu.Lock()
	c.notifications = append(c.notifications, n)
	c.mu.Unlock()
	c.emit(Event{Kind: EventNotification, Message: message, IsError: isError})
}

func (c *Canvas) Resize(width, height int) {
	c.mu.Lock()
	c.viewport.Width = width
	c.viewport.Height = height
	c.mu.Unlock()
}

// Reload replaces the document. The active page is kept when it still
// exists, otherwise the first page becomes active; selected elements that no
// longer exist are dropped.
func (c *Canvas) Reload(doc DocumentSpec) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("host: %w", err)
	}

	c.mu.Lock()
	oldScope := c.scopeLocked()
	c.load(doc)
	c.current = 0
	for i, p := range c.pages {
		if p.id == oldScope.PageID {
			c.current = i
			break
		}
	}
	kept := c.selection[:0]
	for _, id := range c.selection {
		if _, ok := c.pages[c.current].elements[id]; ok {
			kept = append(kept, id)
		}
	}
	c.selection = kept
	newScope := c.scopeLocked()
	pageName := c.pages[c.current].name
	c.mu.Unlock()

	if newScope != oldScope {
		c.emit(Event{Kind: EventPageChanged, Scope: newScope, PageName: pageName})
	}
	c.emit(Event{Kind: EventSelectionChanged})
	return nil
}

// State returns a snapshot of the canvas.
func (c *Canvas) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Scope:         c.scopeLocked(),
		PageName:      c.pages[c.current].name,
		Selection:     append([]string{}, c.selection...),
		Viewport:      c.viewport,
		Notifications: append([]Notification{}, c.notifications...),
	}
}
