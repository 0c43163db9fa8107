package electrum_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	delim = byte('\n')

	keepAliveInterval = time.Minute
)

var (
	ErrConnectionClosed = fmt.Errorf("electrum connection closed")
)

type electrumClient interface {
	listen()
	request(ctx context.Context, method string, params ...interface{}) (*response, error)
	tipHeight() uint64
	setTipHeight(height uint64)
	close()
}

// transport is the wire used to exchange newline delimited json messages with
// the electrum server.
type transport interface {
	read() ([]byte, error)
	write(msg []byte) error
	close() error
}

type client struct {
	conn      transport
	nextId    uint64
	chHandler *chHandler
	chQuit    chan struct{}
	closeOnce *sync.Once
	writeLock *sync.Mutex

	tip     uint64
	tipLock *sync.RWMutex
}

func newClient(ctx context.Context, addr string) (electrumClient, error) {
	split := strings.Split(addr, "://")
	if len(split) != 2 {
		return nil, ErrInvalidURL
	}
	proto, host := split[0], split[1]

	var conn transport
	var err error
	switch proto {
	case "tcp", "ssl":
		conn, err = dialTCP(ctx, proto, host)
	case "ws", "wss":
		conn, err = dialWS(ctx, addr)
	default:
		return nil, fmt.Errorf(
			"unknown protocol %s, must be one of tcp, ssl, ws, wss", proto,
		)
	}
	if err != nil {
		return nil, err
	}

	return &client{
		conn:      conn,
		chHandler: newChHandler(),
		chQuit:    make(chan struct{}),
		closeOnce: &sync.Once{},
		writeLock: &sync.Mutex{},
		tipLock:   &sync.RWMutex{},
	}, nil
}

func (c *client) listen() {
	go c.keepAliveConnection()

	var pending []byte
	for {
		msg, err := c.conn.read()
		if err != nil {
			select {
			case <-c.chQuit:
			default:
				warnFn(err, "connection to server lost")
				c.close()
			}
			return
		}

		pending = append(pending, msg...)
		for {
			i := bytes.IndexByte(pending, delim)
			if i < 0 {
				break
			}
			c.handleMessage(pending[:i])
			pending = pending[i+1:]
		}
		// Websocket frames are not required to end with the delimiter.
		if len(pending) > 0 && json.Valid(pending) {
			c.handleMessage(pending)
			pending = nil
		}
	}
}

func (c *client) handleMessage(msg []byte) {
	if len(bytes.TrimSpace(msg)) <= 0 {
		return
	}

	var resp response
	if err := json.Unmarshal(msg, &resp); err != nil {
		warnFn(err, "failed to parse message from server")
		return
	}

	if resp.Method == "blockchain.headers.subscribe" {
		var headers []headerInfo
		if err := json.Unmarshal(resp.Params, &headers); err != nil {
			warnFn(err, "failed to parse block header notification")
			return
		}
		for _, h := range headers {
			c.setTipHeight(h.Height)
		}
		return
	}

	ch := c.chHandler.getChReportsForReqId(resp.Id)
	if ch == nil {
		return
	}
	select {
	case ch <- resp:
	default:
	}
}

func (c *client) keepAliveConnection() {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			if _, err := c.request(ctx, "server.ping"); err != nil {
				warnFn(err, "keep alive request failed")
			}
			cancel()
		case <-c.chQuit:
			return
		}
	}
}

func (c *client) request(
	ctx context.Context, method string, params ...interface{},
) (*response, error) {
	select {
	case <-c.chQuit:
		return nil, ErrConnectionClosed
	default:
	}

	if params == nil {
		params = make([]interface{}, 0)
	}
	id := atomic.AddUint64(&c.nextId, 1)
	req := request{Id: id, Method: method, Params: params}
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	buf = append(buf, delim)

	ch := c.chHandler.addRequest(id)
	defer c.chHandler.clearRequest(id)

	c.writeLock.Lock()
	err = c.conn.write(buf)
	c.writeLock.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		resp.Method = method
		if err := resp.error(); err != nil {
			return nil, err
		}
		return &resp, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", method, ctx.Err())
	case <-c.chQuit:
		return nil, ErrConnectionClosed
	}
}

func (c *client) tipHeight() uint64 {
	c.tipLock.RLock()
	defer c.tipLock.RUnlock()
	return c.tip
}

func (c *client) setTipHeight(height uint64) {
	c.tipLock.Lock()
	defer c.tipLock.Unlock()
	if height > c.tip {
		c.tip = height
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.chQuit)
		if err := c.conn.close(); err != nil {
			warnFn(err, "failed to close connection")
		}
	})
}

func logFn(format string, a ...interface{}) {
	log.Debugf("electrum: "+format, a...)
}

func warnFn(err error, format string, a ...interface{}) {
	log.WithError(err).Warnf("electrum: "+format, a...)
}
