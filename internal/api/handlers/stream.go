package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/mcrisk/internal/risk"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	streamBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Stream message types
const (
	MessageState    = "state"
	MessageProgress = "progress"
	MessageSummary  = "summary"
	MessageError    = "error"
)

// StreamMessage is sent from server to client over the websocket
type StreamMessage struct {
	Type      string                `json:"type"`
	State     risk.State            `json:"state,omitempty"`
	Batch     int                   `json:"batch,omitempty"`
	Total     int                   `json:"total,omitempty"`
	Summary   *risk.Summary         `json:"summary,omitempty"`
	RiskCheck *risk.RiskCheckResult `json:"risk_check,omitempty"`
	Error     *ErrorResponse        `json:"error,omitempty"`
}

// Stream runs a simulation and streams its progress.
// The client sends one SimulationRequest; closing the socket cancels the run.
// GET /api/simulations/stream
func (h *SimulationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)

	var req SimulationRequest
	if err := conn.ReadJSON(&req); err != nil {
		writeFinal(conn, errorMessage(errors.New("invalid request message")))
		return
	}
	cfg, err := req.Apply(h.defaults)
	if err != nil {
		writeFinal(conn, errorMessage(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// 클라이언트 종료 감지 → 실행 취소
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	out := make(chan StreamMessage, streamBuffer)
	written := make(chan struct{})
	go func() {
		defer close(written)
		broken := false
		for msg := range out {
			if broken {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.WithError(err).Debug("Stream write failed")
				broken = true
				cancel()
			}
		}
	}()

	onState := func(s risk.State) {
		out <- StreamMessage{Type: MessageState, State: s}
	}
	onProgress := func(batch, total int) {
		// 진행률은 버퍼가 차면 건너뜀 (워커를 막지 않음)
		select {
		case out <- StreamMessage{Type: MessageProgress, Batch: batch, Total: total}:
		default:
		}
	}

	summary, err := h.run(ctx, cfg, risk.WithStateObserver(onState), risk.WithProgress(onProgress))
	if err != nil {
		msg := errorMessage(err)
		var simErr *risk.SimulationError
		if errors.As(err, &simErr) && simErr.Partial != nil {
			msg.Summary = simErr.Partial
		}
		out <- msg
	} else {
		out <- StreamMessage{
			Type:      MessageSummary,
			Summary:   summary,
			RiskCheck: h.engine.CheckLimits(summary, h.limits),
		}
	}
	close(out)
	<-written

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func errorMessage(err error) StreamMessage {
	body := &ErrorResponse{Error: err.Error()}
	var simErr *risk.SimulationError
	if errors.As(err, &simErr) {
		body.Stage = string(simErr.Stage)
		body.Asset = simErr.Asset
	}
	return StreamMessage{Type: MessageError, Error: body}
}

func writeFinal(conn *websocket.Conn, msg StreamMessage) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		return
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
