package http

import (
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"iq-test-service/internal/app"
	"iq-test-service/internal/auth"
	"iq-test-service/internal/domain"
	"iq-test-service/internal/logger"
)

// ClockHandler streams the remaining time of an attempt over a websocket so
// clients can render a countdown and auto-submit.
type ClockHandler struct {
	attempts *app.AttemptService
	upgrader websocket.Upgrader
	interval time.Duration
	log      *logger.Logger
}

func NewClockHandler(attempts *app.AttemptService, interval time.Duration, log *logger.Logger) *ClockHandler {
	if interval <= 0 {
		interval = time.Second
	}
	return &ClockHandler{
		attempts: attempts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		interval: interval,
		log:      log.With("component", "clock"),
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type clockPayload struct {
	AttemptID        string               `json:"attemptId"`
	Status           domain.AttemptStatus `json:"status"`
	Deadline         time.Time            `json:"deadline"`
	RemainingSeconds int                  `json:"remainingSeconds"`
}

// ServeWS resolves and authorizes the attempt before upgrading, so failures
// are reported as plain HTTP errors.
func (h *ClockHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	clock, err := h.attempts.Clock(r.Context(), r.URL.Query().Get("attemptId"), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// The reader only detects the peer going away; clients send nothing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		payload := clockPayload{
			AttemptID: clock.AttemptID,
			Status:    clock.Status,
			Deadline:  clock.Deadline,
		}
		if clock.Status.Terminal() {
			_ = conn.WriteJSON(outboundMessage[clockPayload]{Type: "closed", Payload: payload})
			return
		}

		remaining := clock.Remaining(h.attempts.Now())
		payload.RemainingSeconds = int(math.Ceil(remaining.Seconds()))
		if err := conn.WriteJSON(outboundMessage[clockPayload]{Type: "clock", Payload: payload}); err != nil {
			h.log.Debug("ws write error", "error", err)
			return
		}
		if remaining == 0 {
			_ = conn.WriteJSON(outboundMessage[clockPayload]{Type: "expired", Payload: payload})
			return
		}

		select {
		case <-ticker.C:
		case <-closed:
			return
		}

		// Pick up submits that happened while streaming.
		clock, err = h.attempts.Clock(r.Context(), clock.AttemptID, userID)
		if err != nil {
			h.log.Warn("clock refresh failed", "attempt_id", payload.AttemptID, "error", err)
			return
		}
	}
}
