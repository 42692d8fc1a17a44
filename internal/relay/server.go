package relay

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"relaygo/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Server accepts websocket connections and feeds the relay loop.
type Server struct {
	relay *Relay
	cfg   *config.Config
}

func NewServer(r *Relay, cfg *config.Config) *Server {
	return &Server{relay: r, cfg: cfg}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

// Handle upgrades the connection and runs the gatekeeper: a bad shared
// secret gets a throttling delay and an abrupt close, with no frames sent
// and no session registered.
func (s *Server) Handle(ginCtx *gin.Context) {
	raw, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}

	if ginCtx.Query("auth") != s.cfg.AuthSecret {
		time.Sleep(s.cfg.AuthRejectDelay) // cheap anti-bruteforce
		_ = raw.Close()
		return
	}

	raw.SetReadLimit(readLimit)
	conn := newWsConn(raw)

	sess := s.relay.Connect(ConnectParams{
		ID:       ginCtx.Query("id"),
		Username: ginCtx.Query("username"),
		Color:    ginCtx.Query("color"),
	}, conn)
	if sess == nil { // relay already stopped
		conn.terminate()
		return
	}

	raw.SetPongHandler(func(string) error {
		s.relay.Pong(sess)
		return nil
	})

	go s.reader(sess, raw)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *Server) reader(sess *Session, raw *websocket.Conn) {
	defer s.relay.Disconnect(sess)

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			return // client closed or errored
		}
		s.relay.Inbound(sess, data)
	}
}
