package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cwrk-planet/rendezvous/internal/domain"
	"github.com/cwrk-planet/rendezvous/internal/matchmaker"
	"github.com/cwrk-planet/rendezvous/internal/transport/ws"
	"github.com/cwrk-planet/rendezvous/pkg/httputil"
	"github.com/cwrk-planet/rendezvous/pkg/logger"
)

const maxBodyBytes = 64 << 10

type Engine interface {
	Enqueue(ctx context.Context, req matchmaker.JoinRequest) (domain.ParticipantID, error)
	Requeue(ctx context.Context, id domain.ParticipantID) error
	Disconnect(ctx context.Context, id domain.ParticipantID) error
	PollStatus(id domain.ParticipantID) (domain.Status, error)
	Relay(ctx context.Context, from domain.ParticipantID, payload domain.Payload) error
	Report(ctx context.Context, id domain.ParticipantID, reason string) error
	SelfReport(ctx context.Context, id domain.ParticipantID, reason string) error
	IsBanned(origin string) bool
	Touch(id domain.ParticipantID) error
}

type Mailbox interface {
	Open(id domain.ParticipantID)
	Release(id domain.ParticipantID)
	Drain(id domain.ParticipantID) ([]domain.Event, bool)
}

type Handler struct {
	engine      Engine
	mailbox     Mailbox
	autoRequeue bool
}

func NewHandler(engine Engine, mailbox Mailbox, autoRequeue bool) *Handler {
	return &Handler{
		engine:      engine,
		mailbox:     mailbox,
		autoRequeue: autoRequeue,
	}
}

// POST /api/join
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := httputil.DecodeJSON(w, r, maxBodyBytes, &req); err != nil && !isEmptyBody(r, err) {
		httputil.Error(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	// the box must exist before Enqueue so an immediate match is not lost
	id := domain.NewParticipantID()
	h.mailbox.Open(id)

	got, err := h.engine.Enqueue(r.Context(), matchmaker.JoinRequest{
		ID:          id,
		DisplayName: req.Name,
		Origin:      httputil.OriginKey(r),
		Transport:   domain.TransportPull,
	})
	if err != nil {
		h.mailbox.Release(id)
		writeError(r.Context(), w, "handler.Join", err)
		return
	}

	httputil.JSON(w, http.StatusOK, JoinResponse{UserID: got.String()})
}

// GET /api/poll/{userId}
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	id := domain.ParticipantID(chi.URLParam(r, "userId"))

	st, err := h.engine.PollStatus(id)
	if err != nil {
		writeError(r.Context(), w, "handler.Poll", err)
		return
	}

	if h.autoRequeue && st.State == domain.StateWaiting && !st.Queued {
		if err := h.engine.Requeue(r.Context(), id); err != nil {
			writeError(r.Context(), w, "handler.Poll.Requeue", err)
			return
		}
		if st, err = h.engine.PollStatus(id); err != nil {
			writeError(r.Context(), w, "handler.Poll", err)
			return
		}
	}

	resp := PollResponse{Status: pollWaiting, Queued: st.Queued}
	if st.State == domain.StatePaired {
		resp.Status = pollMatched
		resp.PartnerName = st.PartnerName
		resp.SessionToken = st.SessionToken.String()
		resp.Role = string(st.Role)
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// GET /api/events/{userId}
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	id := domain.ParticipantID(chi.URLParam(r, "userId"))

	events, ok := h.mailbox.Drain(id)
	if !ok {
		writeError(r.Context(), w, "handler.Events", domain.ErrNotFound)
		return
	}

	resp := EventsResponse{Events: make([]ws.Message, 0, len(events))}
	for _, ev := range events {
		resp.Events = append(resp.Events, ws.EventMessage(ev))
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// POST /api/relay
func (h *Handler) Relay(w http.ResponseWriter, r *http.Request) {
	var req RelayRequest
	if err := httputil.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	kind, err := domain.ParsePayloadKind(req.Kind)
	if err != nil {
		writeError(r.Context(), w, "handler.Relay", err)
		return
	}

	payload := domain.SignalPayload(kind, req.Data)
	if kind == domain.PayloadChat {
		payload = domain.ChatPayload(req.Message)
	}

	err = h.engine.Relay(r.Context(), domain.ParticipantID(req.UserID), payload)
	switch {
	case err == nil:
		httputil.JSON(w, http.StatusAccepted, StatusResponse{Status: "accepted"})
	case errors.Is(err, matchmaker.ErrEmptyMessage):
		httputil.JSON(w, http.StatusAccepted, StatusResponse{Status: "dropped"})
	default:
		writeError(r.Context(), w, "handler.Relay", err)
	}
}

// POST /api/requeue
func (h *Handler) Requeue(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, "handler.Requeue", "queued", func(ctx context.Context, req UserRequest) error {
		return h.engine.Requeue(ctx, domain.ParticipantID(req.UserID))
	})
}

// POST /api/leave
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, "handler.Leave", "left", func(ctx context.Context, req UserRequest) error {
		return h.engine.Disconnect(ctx, domain.ParticipantID(req.UserID))
	})
}

// POST /api/report
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, "handler.Report", "reported", func(ctx context.Context, req UserRequest) error {
		return h.engine.Report(ctx, domain.ParticipantID(req.UserID), strings.TrimSpace(req.Reason))
	})
}

// POST /api/ban-me
func (h *Handler) BanMe(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, "handler.BanMe", "banned", func(ctx context.Context, req UserRequest) error {
		return h.engine.SelfReport(ctx, domain.ParticipantID(req.UserID), strings.TrimSpace(req.Reason))
	})
}

func (h *Handler) withUser(w http.ResponseWriter, r *http.Request, op, status string, fn func(context.Context, UserRequest) error) {
	var req UserRequest
	if err := httputil.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if req.UserID == "" {
		httputil.Error(w, http.StatusBadRequest, "missing_user_id", "userId is required")
		return
	}
	ctx := logger.WithParticipant(r.Context(), req.UserID)
	if err := fn(ctx, req); err != nil {
		writeError(ctx, w, op, err)
		return
	}
	httputil.JSON(w, http.StatusOK, StatusResponse{Status: status})
}

func writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		httputil.Error(w, http.StatusNotFound, "not_found", "participant not found")
	case errors.Is(err, domain.ErrNotPaired):
		slog.DebugContext(ctx, op, slog.Any("err", err))
		httputil.Error(w, http.StatusConflict, "not_paired", "no active partner")
	case errors.Is(err, domain.ErrPolicyViolation), errors.Is(err, domain.ErrBanned):
		httputil.Error(w, http.StatusForbidden, "banned", "origin is banned")
	case errors.Is(err, domain.ErrInvalidPayload):
		httputil.Error(w, http.StatusBadRequest, "invalid_payload", err.Error())
	default:
		slog.ErrorContext(ctx, op, slog.Any("err", err))
		httputil.Error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// isEmptyBody lets POST /api/join be called without a body.
func isEmptyBody(r *http.Request, err error) bool {
	return r.ContentLength == 0 && errors.Is(err, io.EOF)
}
