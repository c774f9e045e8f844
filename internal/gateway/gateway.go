// Package gateway terminates the per-modality WebSocket endpoints. Each
// connection is one session: requests are read, dispatched, and answered
// strictly in order, so a session never has more than one request in
// flight. Sessions are isolated from each other by the server's
// per-connection goroutines and share only the immutable backend
// bindings behind Dispatch.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/protocol"
)

// DispatchFunc turns one decoded request into the response message to
// write back. Implementations come from the service wiring; they must
// return a well-formed response for every input, errors included.
type DispatchFunc func(ctx context.Context, sessionID string, req any) any

// Handler serves one modality's /ws endpoint.
type Handler struct {
	Service  protocol.Service
	Config   config.GatewayConfig
	Dispatch DispatchFunc
	Sessions *Sessions
	Logger   *slog.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.Config.MaxMessageBytes)
	}

	sessionID := uuid.NewString()
	logger := h.Logger.With(
		slog.String("component", "gateway"),
		slog.String("service", string(h.Service)),
		slog.String("session_id", sessionID))
	logger.Info("session opened", slog.String("remote_addr", r.RemoteAddr))
	defer logger.Info("session closed")

	if h.Sessions != nil {
		h.Sessions.add(string(h.Service))
		defer h.Sessions.remove(string(h.Service))
	}

	for {
		if h.Config.IdleTimeoutMS > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(time.Duration(h.Config.IdleTimeoutMS) * time.Millisecond))
		}
		messageType, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("session read failed", slog.String("error", err.Error()))
			}
			return
		}
		if messageType != websocket.TextMessage {
			if !h.write(conn, logger, protocol.ErrorResponse{
				Type:      protocol.TypeError,
				SessionID: sessionID,
				Code:      "bad_request",
				Message:   "frames must be json text",
			}) {
				return
			}
			continue
		}

		req, err := protocol.DecodeRequest(h.Service, frame)
		if err != nil {
			resp := protocol.ErrorResponse{
				Type:      protocol.TypeError,
				SessionID: sessionID,
				Message:   err.Error(),
			}
			var decodeErr *protocol.DecodeError
			if errors.As(err, &decodeErr) {
				resp.Code = decodeErr.Code
			}
			if !h.write(conn, logger, resp) {
				return
			}
			continue
		}

		if h.Sessions != nil {
			h.Sessions.countRequest(string(h.Service), requestType(req))
		}

		if _, ok := req.(protocol.PingRequest); ok {
			if !h.write(conn, logger, protocol.Pong{Type: protocol.TypePong}) {
				return
			}
			continue
		}

		if !h.write(conn, logger, h.Dispatch(r.Context(), sessionID, req)) {
			return
		}
	}
}

func requestType(req any) string {
	switch req.(type) {
	case protocol.PingRequest:
		return protocol.TypePing
	case protocol.TranscribeRequest:
		return protocol.TypeTranscribe
	case protocol.TranslateRequest:
		return protocol.TypeTranslate
	case protocol.SynthesizeRequest:
		return protocol.TypeSynthesize
	default:
		return "unknown"
	}
}

func (h *Handler) write(conn *websocket.Conn, logger *slog.Logger, msg any) bool {
	if h.Config.WriteTimeoutMS > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Duration(h.Config.WriteTimeoutMS) * time.Millisecond))
	}
	if err := conn.WriteJSON(msg); err != nil {
		logger.Warn("session write failed", slog.String("error", err.Error()))
		return false
	}
	return true
}
