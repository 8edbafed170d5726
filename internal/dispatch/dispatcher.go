// Package dispatch routes inbound commands to the annotation, aggregation and
// preferences services and turns host events into outbound pushes.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/asterisk/internal/aggregate"
	"github.com/starford/asterisk/internal/annotation"
	"github.com/starford/asterisk/internal/apperr"
	"github.com/starford/asterisk/internal/host"
	"github.com/starford/asterisk/internal/models"
	"github.com/starford/asterisk/internal/prefs"
)

// Window size limits for resize.
const (
	MinWidth  = 350
	MaxWidth  = 800
	MinHeight = 500
	MaxHeight = 800
)

// Sink receives every outbound message, replies and pushes alike.
type Sink interface {
	Send(Message)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Message)

func (f SinkFunc) Send(m Message) { f(m) }

type discard struct{}

func (discard) Send(Message) {}

// Dispatcher handles one command at a time.
type Dispatcher struct {
	mu     sync.Mutex
	host   host.Host
	repo   *annotation.Repository
	agg    *aggregate.Engine
	prefs  *prefs.Store
	sink   Sink
	logger *slog.Logger
}

// New creates a dispatcher. A nil sink discards pushes.
func New(h host.Host, repo *annotation.Repository, agg *aggregate.Engine, p *prefs.Store, sink Sink, logger *slog.Logger) *Dispatcher {
	if sink == nil {
		sink = discard{}
	}
	return &Dispatcher{host: h, repo: repo, agg: agg, prefs: p, sink: sink, logger: logger}
}

// Start sends init-preferences followed by context-info.
func (d *Dispatcher) Start(ctx context.Context) ([]Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.prefs.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("dispatch: start: %w", err)
	}
	out := []Message{
		{Type: TypeInitPreferences, Payload: PreferencesPayload{Preferences: p}},
		{Type: TypeContextInfo, Payload: d.contextPayload(d.host.Scope(), d.host.PageName())},
	}
	for _, m := range out {
		d.sink.Send(m)
	}
	return out, nil
}

// HandleRaw decodes a JSON command envelope and handles it. Malformed or
// unknown commands produce a single error reply.
func (d *Dispatcher) HandleRaw(ctx context.Context, raw []byte) []Message {
	cmd, err := Decode(raw)
	if err != nil {
		d.logger.Warn("dispatch: rejected command", slog.String("error", err.Error()))
		m := Message{Type: TypeError, Payload: ErrorPayload{Error: err.Error()}}
		d.sink.Send(m)
		return []Message{m}
	}
	return d.Handle(ctx, cmd)
}

// Handle runs cmd to completion and returns its replies, which are also sent
// to the sink. A failing or panicking handler yields an error reply.
func (d *Dispatcher) Handle(ctx context.Context, cmd Command) (replies []Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := uuid.NewString()
	start := time.Now()
	logger := d.logger.With(slog.String("id", id), slog.String("command", string(cmd.Kind())))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("dispatch: panic", slog.String("error", fmt.Sprint(r)))
			replies = []Message{{Type: TypeError, Payload: ErrorPayload{Command: string(cmd.Kind()), Error: "internal error"}}}
		}
		for _, m := range replies {
			d.sink.Send(m)
		}
		logger.Debug("dispatch: handled",
			slog.Int("replies", len(replies)),
			slog.Duration("took", time.Since(start)))
	}()

	replies, err := d.route(ctx, cmd, logger)
	if err != nil {
		logger.Error("dispatch: command failed", slog.String("error", err.Error()))
		replies = append(replies, Message{Type: TypeError, Payload: ErrorPayload{Command: string(cmd.Kind()), Error: err.Error()}})
	}
	return replies
}

func (d *Dispatcher) route(ctx context.Context, cmd Command, logger *slog.Logger) ([]Message, error) {
	switch c := cmd.(type) {
	case SaveMetadata:
		return d.saveMetadata(ctx, c, logger)
	case SaveDraft:
		return nil, d.saveDraft(ctx, c)
	case GetMetadata:
		return d.getMetadata(ctx)
	case EditElement:
		return d.editElement(ctx, c)
	case GetAllTags:
		return d.allTags(ctx, logger), nil
	case GetAllElements:
		return d.allElements(ctx, logger), nil
	case UpdatePreferences:
		return nil, d.updatePreferences(ctx, c)
	case DeleteAsterisk:
		return d.deleteAsterisk(ctx, c)
	case NavigateToNode:
		return nil, d.navigate(c)
	case Resize:
		d.host.Resize(clamp(c.Width, MinWidth, MaxWidth), clamp(c.Height, MinHeight, MaxHeight))
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %T", apperr.ErrUnknownCommand, cmd)
	}
}

func (d *Dispatcher) saveMetadata(ctx context.Context, c SaveMetadata, logger *slog.Logger) ([]Message, error) {
	el, ok := d.host.Selection()
	if !ok {
		return []Message{status(TypeSaveFailed, MsgSelectToSave)}, nil
	}
	if _, err := d.repo.SaveAnnotation(ctx, d.host.Scope(), d.host.PageName(), el.ID, c.Fields); err != nil {
		logger.Error("dispatch: save failed",
			slog.String("element", el.ID),
			slog.String("error", err.Error()))
		return []Message{status(TypeSaveFailed, MsgSaveFailed)}, nil
	}
	d.host.Notify(MsgSaved, false)
	return []Message{status(TypeSaveSuccess, MsgSaved)}, nil
}

func (d *Dispatcher) saveDraft(ctx context.Context, c SaveDraft) error {
	el, ok := d.host.Selection()
	if !ok {
		return nil
	}
	return d.repo.SaveDraft(ctx, d.host.Scope(), el.ID, c.Fields)
}

func (d *Dispatcher) getMetadata(ctx context.Context) ([]Message, error) {
	el, ok := d.host.Selection()
	if !ok {
		return []Message{status(TypeNoSelection, MsgNoSelection)}, nil
	}
	loaded, err := d.repo.LoadForEdit(ctx, d.host.Scope(), el.ID)
	if err != nil {
		return nil, err
	}

	p := ElementPayload{NodeID: el.ID, NodeName: el.DisplayName()}
	switch loaded.Source {
	case annotation.SourceDraft:
		p.Data = loaded.Draft
		p.Message = MsgDraftLoaded
		return []Message{{Type: TypeDraftLoaded, Payload: p}}, nil
	case annotation.SourceAnnotation:
		p.Data = loaded.Annotation
		return []Message{{Type: TypeMetadataLoaded, Payload: p}}, nil
	default:
		p.Message = MsgNewElement
		return []Message{{Type: TypeNewElement, Payload: p}}, nil
	}
}

// editElement shows committed metadata only; drafts are not consulted.
func (d *Dispatcher) editElement(ctx context.Context, c EditElement) ([]Message, error) {
	scope := d.host.Scope()
	el, ok := d.host.FindElement(scope, c.NodeID)
	if !ok {
		return []Message{status(TypeElementNotFound, MsgElementNotFound)}, nil
	}
	if c.SelectNode {
		if err := d.host.Select(el.ID); err != nil {
			return nil, err
		}
	}

	a, found, err := d.repo.Get(ctx, scope, el.ID)
	if err != nil {
		return nil, err
	}
	p := ElementPayload{NodeID: el.ID, NodeName: el.DisplayName()}
	if found {
		p.Data = &a
		return []Message{{Type: TypeMetadataLoaded, Payload: p}}, nil
	}
	p.Message = MsgNewElement
	return []Message{{Type: TypeNewElement, Payload: p}}, nil
}

func (d *Dispatcher) allTags(ctx context.Context, logger *slog.Logger) []Message {
	tags, err := d.agg.AllTags(ctx, d.host.Scope())
	p := TagsPayload{Tags: tags}
	if err != nil {
		logger.Error("dispatch: all tags failed", slog.String("error", err.Error()))
		p = TagsPayload{Tags: []models.TagCount{}, Error: err.Error()}
	}
	return []Message{{Type: TypeAllTags, Payload: p}}
}

func (d *Dispatcher) allElements(ctx context.Context, logger *slog.Logger) []Message {
	elements, err := d.agg.AllElements(ctx, d.host.Scope())
	p := ElementsPayload{Elements: elements}
	if err != nil {
		logger.Error("dispatch: all elements failed", slog.String("error", err.Error()))
		p = ElementsPayload{Elements: []models.ElementSummary{}, Error: err.Error()}
	}
	return []Message{{Type: TypeAllElements, Payload: p}}
}

func (d *Dispatcher) updatePreferences(ctx context.Context, c UpdatePreferences) error {
	p := c.Preferences
	p.SearchFields.ShowName = true
	return d.prefs.Save(ctx, p)
}

// deleteAsterisk pushes selection-changed even when deletion failed so the
// client re-reads whatever is left.
func (d *Dispatcher) deleteAsterisk(ctx context.Context, c DeleteAsterisk) ([]Message, error) {
	err := d.repo.Delete(ctx, d.host.Scope(), c.NodeID)
	if err == nil {
		d.host.Notify(MsgDeleted, false)
	}
	return []Message{{Type: TypeSelectionChanged}}, err
}

func (d *Dispatcher) navigate(c NavigateToNode) error {
	el, ok := d.host.FindElement(d.host.Scope(), c.NodeID)
	if !ok {
		d.host.Notify(MsgNodeMissing, true)
		return nil
	}
	if err := d.host.Select(el.ID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			d.host.Notify(MsgNodeMissing, true)
			return nil
		}
		return err
	}
	d.host.ScrollIntoView(el.ID)
	d.host.Notify(`Navigated to "`+el.DisplayName()+`"`, false)
	return nil
}

// HostEvent forwards a host-originated event. It does not take the command
// lock: hosts may emit while a command is running.
func (d *Dispatcher) HostEvent(ev host.Event) {
	var m Message
	switch ev.Kind {
	case host.EventSelectionChanged:
		m = Message{Type: TypeSelectionChanged}
	case host.EventPageChanged:
		m = Message{Type: TypeContextChanged, Payload: d.contextPayload(ev.Scope, ev.PageName)}
	case host.EventNotification:
		m = Message{Type: TypeNotify, Payload: NotifyPayload{Message: ev.Message, Error: ev.IsError}}
	default:
		d.logger.Warn("dispatch: unknown host event", slog.String("kind", string(ev.Kind)))
		return
	}
	d.sink.Send(m)
}

func (d *Dispatcher) contextPayload(scope models.Scope, pageName string) ContextPayload {
	return ContextPayload{DocumentID: scope.DocumentID, PageID: scope.PageID, PageName: pageName}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
