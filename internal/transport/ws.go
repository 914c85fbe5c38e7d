package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// The websocket variant wraps the same framed byte stream in binary
// websocket messages, which lets browser-hosted federates reach a node
// through ordinary HTTP infrastructure. The option handshake and codec
// framing run unchanged over the adapted stream.

// dialWebSocket opens an rti+ws:// client stream.
func dialWebSocket(u URL) (net.Conn, error) {
	httpURL := "ws://" + u.HostService() + u.Path
	ctx, cancel := context.WithTimeout(context.Background(), HandshakeTimeout)
	defer cancel()
	c, _, err := websocket.Dial(ctx, httpURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", httpURL, err)
	}
	return websocket.NetConn(context.Background(), c, websocket.MessageBinary), nil
}

// WebSocketHandler bridges accepted websocket upgrades into the given
// stream handler, which receives the same net.Conn shape the TCP
// listener produces.
func WebSocketHandler(handle func(net.Conn)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// Upgrades are accepted from any origin. No websocket
			// subprotocol is negotiated; the RTI option handshake runs
			// inside the stream.
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		conn := websocket.NetConn(context.Background(), c, websocket.MessageBinary)
		handle(conn)
	})
}

// ListenWebSocket serves websocket upgrades on u's address, handing
// each established stream to handle. The returned shutdown function
// closes the listener.
func ListenWebSocket(u URL, handle func(net.Conn)) (func() error, error) {
	ln, err := net.Listen("tcp", u.HostService())
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:           WebSocketHandler(handle),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		_ = srv.Serve(ln)
	}()
	return func() error {
		return srv.Close()
	}, nil
}
