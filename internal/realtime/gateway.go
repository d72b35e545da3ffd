package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// unauthorizedResponse is written straight onto the hijacked connection: a
// bare status line, no JSON body.
const unauthorizedResponse = "HTTP/1.1 401 Unauthorized\r\n\r\n"

// Authenticator resolves the user behind a request. *auth.TokenService
// implements it.
type Authenticator interface {
	Authenticate(r *http.Request) (int64, error)
}

// Gateway upgrades authenticated requests to WebSocket connections and hands
// them to the Hub. The connection is push-only: clients receive events, and
// anything they send besides control frames closes the connection.
type Gateway struct {
	hub            *Hub
	auth           Authenticator
	originPatterns []string
	logger         *slog.Logger
}

// NewGateway builds a Gateway. originPatterns lists the browser origins
// allowed to connect (host patterns such as "localhost:5173" or
// "*.example.com"); same-origin requests are always allowed.
func NewGateway(hub *Hub, auth Authenticator, originPatterns []string, logger *slog.Logger) *Gateway {
	return &Gateway{
		hub:            hub,
		auth:           auth,
		originPatterns: originPatterns,
		logger:         logger,
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Authentication happens BEFORE the handshake. A failed check never
	// reaches websocket.Accept, so nothing is registered.
	userID, err := g.auth.Authenticate(r)
	if err != nil {
		g.logger.Info("rejected realtime connection",
			slog.String("remote", r.RemoteAddr),
			slog.String("reason", err.Error()),
		)
		g.reject(w)
		return
	}

	// Server-wide read/write timeouts would otherwise kill the connection.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		// Accept has already written an error response.
		g.logger.Warn("websocket handshake failed",
			slog.Int64("userID", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	// CloseRead keeps control frames (ping/pong/close) flowing and cancels
	// ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())

	client := g.hub.AddClient(userID, conn)
	if client == nil {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer g.hub.RemoveClient(client)

	select {
	case <-ctx.Done():
	case <-client.ctx.Done():
	}
}

// reject answers with a raw 401 status line and closes the TCP connection.
// When the writer cannot be hijacked (HTTP/2, test recorders) a plain 401
// response is sent instead.
func (g *Gateway) reject(w http.ResponseWriter) {
	conn, bufrw, err := http.NewResponseController(w).Hijack()
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	defer conn.Close()

	_, _ = bufrw.WriteString(unauthorizedResponse)
	_ = bufrw.Flush()
}
