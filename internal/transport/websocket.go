package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/vibepilot/agentd/internal/auth"
	"github.com/vibepilot/agentd/internal/errs"
)

const (
	writeTimeout     = 10 * time.Second
	heartbeatPeriod  = 30 * time.Second
	maxFrameBacklog  = 1 << 20 // 1MB, generous for JSON envelopes
)

// InboundHandler processes one frame read off the primary socket.
type InboundHandler func(data []byte)

// AcceptOptions configures the accept handshake.
type AcceptOptions struct {
	// AuthMode is the config document's auth.mode: "none" or "token".
	AuthMode string
	// AuthSecret is the config document's auth.token, the HMAC key bearer
	// tokens are signed/verified with.
	AuthSecret string
}

// Accept upgrades r to a WebSocket connection, enforcing the bearer token
// handshake when opts.AuthMode is "token", and wires a WriteFn for the
// connection into sw as the primary transport.
func Accept(w http.ResponseWriter, r *http.Request, opts AcceptOptions, sw *Swappable, onFrame InboundHandler) error {
	if opts.AuthMode == "token" {
		bearer := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(bearer) <= len(prefix) || bearer[:len(prefix)] != prefix {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return errs.User("missing bearer token")
		}
		if _, err := auth.Verify(opts.AuthSecret, bearer[len(prefix):]); err != nil {
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return errs.Userf("reject accept handshake", err)
		}
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return errs.Transientf("accept websocket", err)
	}

	sw.ReplacePrimary(func(data []byte) error {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		return conn.Write(ctx, websocket.MessageText, data)
	})

	go readLoop(conn, sw, onFrame)
	return nil
}

func readLoop(conn *websocket.Conn, sw *Swappable, onFrame InboundHandler) {
	ctx := context.Background()
	defer conn.Close(websocket.StatusNormalClosure, "")
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			sw.Disconnect()
			return
		}
		if onFrame != nil {
			onFrame(data)
		}
	}
}
