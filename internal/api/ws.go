package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/slog"

	"github.com/MJE43/slot-tracker-go/internal/lib/logger/sl"
	"github.com/MJE43/slot-tracker-go/internal/wheelsvc"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsBuffer     = 256
)

// ClientMessage is what the browser may send over the wheel socket.
type ClientMessage struct {
	Action string `json:"action"`
}

// ServerError is sent back when a client action fails.
type ServerError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.origins) == 0 || slices.Contains(s.origins, "*") {
		return true
	}
	return slices.Contains(s.origins, origin)
}

// handleWheelWS streams wheel events. The first message is the current
// view; after that every frame, cue, result and configuration change. A
// client may send {"action":"spin"}.
func (s *Server) handleWheelWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", sl.Err(err))
		return
	}
	log := s.log.With(slog.String("remote_addr", r.RemoteAddr))
	defer conn.Close()

	events, cancel := s.wheel.Subscribe(wsBuffer)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	replies := make(chan ServerError, 4)
	go s.readWheelSocket(ctx, stop, conn, replies, log)

	view := s.wheel.View()
	if err := s.writeWS(conn, wheelsvc.Event{Type: wheelsvc.EventConfig, View: &view}); err != nil {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber dropped"),
					time.Now().Add(wsWriteWait))
				return
			}
			if err := s.writeWS(conn, ev); err != nil {
				log.Debug("websocket write failed", sl.Err(err))
				return
			}
		case msg := <-replies:
			if err := s.writeWS(conn, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}

func (s *Server) readWheelSocket(ctx context.Context, stop context.CancelFunc, conn *websocket.Conn, replies chan<- ServerError, log *slog.Logger) {
	defer stop()
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read ended", sl.Err(err))
			}
			return
		}
		var reply *ServerError
		switch msg.Action {
		case "spin":
			if _, err := s.wheel.Spin(ctx); err != nil {
				_, errType := classify(err)
				reply = &ServerError{Type: errType, Error: err.Error()}
			}
		case "advance":
			s.wheel.Advance(ctx)
		default:
			reply = &ServerError{Type: ErrTypeInvalidParams, Error: "unknown action " + msg.Action}
		}
		if reply != nil {
			select {
			case replies <- *reply:
			default:
			}
		}
	}
}
