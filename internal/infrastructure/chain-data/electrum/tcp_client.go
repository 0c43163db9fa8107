package electrum_provider

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
)

type tcpConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialTCP(ctx context.Context, proto, addr string) (transport, error) {
	dialer := &net.Dialer{}

	var conn net.Conn
	var err error
	if proto == "ssl" {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	return &tcpConn{conn, bufio.NewReader(conn)}, nil
}

func (c *tcpConn) read() ([]byte, error) {
	return c.reader.ReadBytes(delim)
}

func (c *tcpConn) write(msg []byte) error {
	_, err := c.conn.Write(msg)
	return err
}

func (c *tcpConn) close() error {
	return c.conn.Close()
}
