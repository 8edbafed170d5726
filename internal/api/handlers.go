package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/starford/asterisk/internal/apperr"
	"github.com/starford/asterisk/internal/dispatch"
	"github.com/starford/asterisk/internal/host"
)

const maxCommandBytes = 1 << 20

// HostController drives the simulated host from outside: it stands in for
// the user clicking around the design tool.
type HostController interface {
	Select(elementID string) error
	ClearSelection()
	SetPage(pageID string) error
	State() host.State
}

// Handler holds API route handlers.
type Handler struct {
	d    *dispatch.Dispatcher
	host HostController
}

// NewHandler creates a new Handler.
func NewHandler(d *dispatch.Dispatcher, hc HostController) *Handler {
	return &Handler{d: d, host: hc}
}

// Command handles POST /api/commands.
//
//	@Summary		Send a command envelope
//	@Tags			commands
//	@Accept			json
//	@Produce		json
//	@Param			body	body		object	true	"Command, e.g. {\"type\":\"get-metadata\"}"
//	@Success		200		{array}		object
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/commands [post]
func (h *Handler) Command(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCommandBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("body too large"))
		return
	}
	cmd, err := dispatch.Decode(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	replies := h.d.Handle(r.Context(), cmd)
	if replies == nil {
		replies = []dispatch.Message{}
	}
	writeJSON(w, http.StatusOK, replies)
}

// HostState handles GET /api/host/state.
//
//	@Summary		Current scope, selection and viewport of the simulated host
//	@Tags			host
//	@Produce		json
//	@Success		200	{object}	host.State
//	@Security		BearerAuth
//	@Router			/host/state [get]
func (h *Handler) HostState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.host.State())
}

// SetSelection handles POST /api/host/selection. An empty nodeId clears the
// selection.
//
//	@Summary		Select an element
//	@Tags			host
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	host.State
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/host/selection [post]
func (h *Handler) SetSelection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NodeID string `json:"nodeId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NodeID == "" {
		h.host.ClearSelection()
		writeJSON(w, http.StatusOK, h.host.State())
		return
	}
	if err := h.host.Select(req.NodeID); err != nil {
		writeHostError(w, "select failed", err)
		return
	}
	writeJSON(w, http.StatusOK, h.host.State())
}

// SetPage handles POST /api/host/page.
//
//	@Summary		Switch the active page
//	@Tags			host
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	host.State
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/host/page [post]
func (h *Handler) SetPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PageID string `json:"pageId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PageID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("pageId is required"))
		return
	}
	if err := h.host.SetPage(req.PageID); err != nil {
		writeHostError(w, "set page failed", err)
		return
	}
	writeJSON(w, http.StatusOK, h.host.State())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxCommandBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

func writeHostError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	slog.Error(msg, slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}
