package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/hanpama/graphdesk/internal/language"
)

// graphql-transport-ws message types.
const (
	wsConnectionInit = "connection_init"
	wsConnectionAck  = "connection_ack"
	wsSubscribe      = "subscribe"
	wsNext           = "next"
	wsError          = "error"
	wsComplete       = "complete"
	wsPing           = "ping"
	wsPong           = "pong"
)

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSOptions configure NewWebSocket.
type WSOptions struct {
	// URL of the graphql-transport-ws endpoint (ws:// or wss://).
	URL string

	// ConnectionParams are sent with the connection_init message.
	ConnectionParams map[string]any

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// NewWebSocket builds a fetcher speaking the graphql-transport-ws protocol.
// Every call dials a fresh connection and returns a Stream whose Close sends
// the protocol-level complete and tears the connection down.
func NewWebSocket(opts WSOptions) Fetcher {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	var nextID atomic.Int64
	return func(ctx context.Context, params Params, _ Opts) (Response, error) {
		d := *dialer
		d.Subprotocols = []string{"graphql-transport-ws"}
		conn, _, err := d.DialContext(ctx, opts.URL, nil)
		if err != nil {
			return nil, err
		}

		init := wsMessage{Type: wsConnectionInit}
		if opts.ConnectionParams != nil {
			payload, err := json.Marshal(opts.ConnectionParams)
			if err != nil {
				conn.Close()
				return nil, err
			}
			init.Payload = payload
		}
		if err := conn.WriteJSON(init); err != nil {
			conn.Close()
			return nil, err
		}
		if err := awaitAck(conn); err != nil {
			conn.Close()
			return nil, err
		}

		id := fmt.Sprint(nextID.Add(1))
		payload, err := json.Marshal(params)
		if err != nil {
			conn.Close()
			return nil, err
		}
		if err := conn.WriteJSON(wsMessage{ID: id, Type: wsSubscribe, Payload: payload}); err != nil {
			conn.Close()
			return nil, err
		}

		var closeOnce sync.Once
		closeConn := func() {
			closeOnce.Do(func() {
				_ = conn.WriteJSON(wsMessage{ID: id, Type: wsComplete})
				conn.Close()
			})
		}

		return Stream{
			Next: func(ctx context.Context) (any, error) {
				if deadline, ok := ctx.Deadline(); ok {
					_ = conn.SetReadDeadline(deadline)
				}
				for {
					var msg wsMessage
					if err := conn.ReadJSON(&msg); err != nil {
						return nil, err
					}
					switch msg.Type {
					case wsNext:
						var result any
						if err := json.Unmarshal(msg.Payload, &result); err != nil {
							return nil, err
						}
						return result, nil
					case wsError:
						return nil, fmt.Errorf("subscription error: %s", msg.Payload)
					case wsComplete:
						return nil, io.EOF
					case wsPing:
						_ = conn.WriteJSON(wsMessage{Type: wsPong})
					}
				}
			},
			Close: closeConn,
		}, nil
	}
}

func awaitAck(conn *websocket.Conn) error {
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		switch msg.Type {
		case wsConnectionAck:
			return nil
		case wsPing:
			if err := conn.WriteJSON(wsMessage{Type: wsPong}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected message %q before connection_ack", msg.Type)
		}
	}
}

// Split routes subscriptions to the ws fetcher and everything else to the
// http fetcher, matching how the IDE's default fetcher is assembled.
func Split(http, ws Fetcher) Fetcher {
	return func(ctx context.Context, params Params, opts Opts) (Response, error) {
		if ws != nil && isSubscription(params, opts) {
			return ws(ctx, params, opts)
		}
		return http(ctx, params, opts)
	}
}

func isSubscription(params Params, opts Opts) bool {
	doc := opts.DocumentAST
	if doc == nil {
		parsed, err := language.ParseQuery(params.Query)
		if err != nil {
			return false
		}
		doc = parsed
	}
	return language.IsSubscription(doc, params.OperationName)
}
