package bridge

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"skirmish.ai/internal/protocol"
)

const callTimeout = 5 * time.Second

// Server is the websocket front end of the bridge: one JSON request in,
// one JSON response out, per message.
type Server struct {
	bridge *Bridge
	log    *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(b *Bridge, logger *log.Logger) *Server {
	return &Server{
		bridge: b,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // local debug surface
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var req protocol.BridgeRequest
			if err := json.Unmarshal(msg, &req); err != nil || req.Attr == "" {
				s.write(conn, protocol.BridgeError{
					Error: "expected {attr, args, kwargs}",
					Code:  protocol.ErrBadRequest,
				})
				continue
			}

			v, err := s.bridge.Call(req, callTimeout)
			if err != nil {
				v = protocol.BridgeError{Error: err.Error(), Code: protocol.ErrStopped}
			}
			s.write(conn, v)
		}
	}
}

func (s *Server) write(conn *websocket.Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("bridge encode response: %v", err)
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		s.log.Printf("bridge write response: %v", err)
	}
}
