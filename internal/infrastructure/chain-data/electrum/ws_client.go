package electrum_provider

import (
	"context"

	"github.com/gorilla/websocket"
)

type wsConn struct {
	conn *websocket.Conn
}

func dialWS(ctx context.Context, url string) (transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn}, nil
}

func (c *wsConn) read() ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

func (c *wsConn) write(msg []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *wsConn) close() error {
	return c.conn.Close()
}
