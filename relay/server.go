package relay

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ayushdevani01/real-time-video-chat-app/config"
	"github.com/ayushdevani01/real-time-video-chat-app/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	log "github.com/sirupsen/logrus"
)

// Server terminates websocket connections for the relay and exposes a
// health endpoint. The signaling endpoint lives at /ws.
type Server struct {
	relay      *Relay
	httpServer *http.Server
	upgrader   websocket.Upgrader
	wg         sync.WaitGroup

	// URL is the websocket endpoint clients should dial.
	URL string
}

// NewServer builds the HTTP surface around a running relay. The returned
// server is not listening yet; call Serve.
func NewServer(cfg *config.Config, r *Relay) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		relay: r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws", s.handleWebsocket)

	s.httpServer = &http.Server{Handler: router}
	return s
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// handleWebsocket upgrades the connection, assigns it an identifier, tells
// the client via the ready event and hands the connection to the relay.
func (s *Server) handleWebsocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("[relay]: Failed to upgrade connection: %v", err)
		return
	}

	id, err := gonanoid.New()
	if err != nil {
		log.Errorf("[relay]: Failed to generate connection ID: %v", err)
		conn.Close()
		return
	}

	env, err := types.NewEnvelope(types.Ready, types.ReadyPayload{ID: id})
	if err != nil {
		conn.Close()
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(env); err != nil {
		log.Errorf("[relay]: Failed to send ready signal to %v: %v", id, err)
		conn.Close()
		return
	}
	conn.SetWriteDeadline(time.Time{})

	client := newClient(id, s.relay, conn)
	select {
	case s.relay.register <- client:
	case <-s.relay.done:
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

// Serve accepts connections on listener until Shutdown. It always returns
// a non-nil error, http.ErrServerClosed after a clean shutdown.
func (s *Server) Serve(listener net.Listener) error {
	s.wg.Add(1)
	defer s.wg.Done()
	return s.httpServer.Serve(listener)
}

// Listen binds addr and serves in a background goroutine.
func (s *Server) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.URL = fmt.Sprintf("ws://%v/ws", listener.Addr())
	go func() {
		if err := s.Serve(listener); err != http.ErrServerClosed {
			log.Errorf("[relay]: Server terminated: %v", err)
		}
	}()
	return nil
}

// Shutdown stops accepting connections, closes the existing ones and stops
// the relay loop.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	s.relay.Stop()
	s.wg.Wait()
	return err
}
