package http

import (
	"encoding/json"
	"net/http"
	"time"

	"sgd-certification-service/internal/app"
	"sgd-certification-service/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// WSHandler streams the countdown and answer state of one exam session and accepts
// answers and the final submit over the same connection.
type WSHandler struct {
	exams    *app.ExamService
	upgrader websocket.Upgrader
}

func NewWSHandler(exams *app.ExamService) *WSHandler {
	return &WSHandler{
		exams: exams,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Position int `json:"position"`
	Option   int `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	_, code := statusFor(err)
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: code, Message: err.Error()}}
}

// ServeWS upgrades GET /exam/sessions/{id}/ws. The session must belong to the caller.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	caller := actor(r)
	sessionID := chi.URLParam(r, "id")
	session, err := h.exams.Session(caller, sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Str("session_id", sessionID).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer; gorilla connections allow one concurrent writer only
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Str("session_id", sessionID).Msg("ws write failed")
				return
			}
		}
	}()

	forward := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-closeSignals:
			return false
		case <-writerDone:
			return false
		}
	}
	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				if !forward(outboundMessage[any]{Type: "snapshot", Payload: snap}) {
					return
				}
			case <-session.Done():
				// the closing snapshot is already buffered; flush it before hanging up
			flush:
				for {
					select {
					case snap, ok := <-updates:
						if !ok || !forward(outboundMessage[any]{Type: "snapshot", Payload: snap}) {
							break flush
						}
					default:
						break flush
					}
				}
				if forward(outboundMessage[any]{Type: "closed", Payload: session.Snapshot()}) {
					_ = conn.SetReadDeadline(time.Now().Add(time.Second))
				}
				return
			case <-closeSignals:
				return
			}
		}
	}()

	push(outboundMessage[any]{Type: "session", Payload: newSessionResponse(h.exams.Policy(), session)})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "validation", Message: "invalid answer payload"}})
				continue
			}
			if _, err := h.exams.Answer(r.Context(), caller, sessionID, payload.Position, payload.Option); err != nil {
				push(errorMessage(err))
			}
		case "submit":
			outcome, err := h.exams.Submit(r.Context(), caller, sessionID)
			if err != nil {
				push(errorMessage(err))
				continue
			}
			push(outboundMessage[any]{Type: "outcome", Payload: outcome})
		default:
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "validation", Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
