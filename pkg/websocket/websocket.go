package websocketPkg

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"VisionAnalytica/internal/api/analysis"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

var ErrClosed = errors.New("stream client closed")

// IStreamClient sends frames to the analysis stream and delivers only replies
// for the most recently sent frame.
type IStreamClient interface {
	SendFrame(frame []byte) (uint64, error)
	Replies() <-chan analysis.StreamReply
	IsConnected() bool
	Close() error
}

type Config struct {
	URL          string
	Header       http.Header
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Log          *logrus.Logger
}

type streamClient struct {
	conn    *websocket.Conn
	log     *logrus.Logger
	replies chan analysis.StreamReply
	done    chan struct{}

	mu        sync.Mutex
	sent      atomic.Uint64
	connected atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup

	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func Dial(ctx context.Context, cfg Config) (IStreamClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("stream URL not configured")
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	cfg.Log.WithField("url", cfg.URL).Debug("Connecting to analysis stream")

	conn, _, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.URL, err)
	}

	c := &streamClient{
		conn:         conn,
		log:          cfg.Log,
		replies:      make(chan analysis.StreamReply, 1),
		done:         make(chan struct{}),
		pingInterval: cfg.PingInterval,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
	}
	c.connected.Store(true)

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Warnf("Error sending pong: %v", err)
		}
		return nil
	})
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.pingInterval + c.readTimeout))
	})

	c.wg.Add(2)
	go c.readLoop()
	go c.keepAlive()

	return c, nil
}

func (c *streamClient) Replies() <-chan analysis.StreamReply {
	return c.replies
}

func (c *streamClient) IsConnected() bool {
	return c.connected.Load()
}

// SendFrame returns the token the server will assign to this frame.
func (c *streamClient) SendFrame(frame []byte) (uint64, error) {
	if !c.IsConnected() {
		return 0, ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return 0, err
	}

	token := c.sent.Add(1)
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		c.connected.Store(false)
		return 0, fmt.Errorf("error sending frame: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"token":      token,
		"frame_size": len(frame),
	}).Debug("Frame sent")
	return token, nil
}

func (c *streamClient) readLoop() {
	defer c.wg.Done()
	defer close(c.replies)
	defer c.connected.Store(false)

	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.pingInterval + c.readTimeout)); err != nil {
			return
		}

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.log.Errorf("Analysis stream error: %v", err)
				}
			}
			return
		}

		var reply analysis.StreamReply
		if err := jsoniter.Unmarshal(message, &reply); err != nil {
			c.log.Warnf("Error unmarshaling stream reply: %v", err)
			continue
		}

		if latest := c.sent.Load(); reply.Token < latest {
			c.log.WithFields(logrus.Fields{
				"token":  reply.Token,
				"latest": latest,
			}).Debug("Dropping stale reply")
			continue
		}

		select {
		case c.replies <- reply:
		case <-c.done:
			return
		}
	}
}

func (c *streamClient) keepAlive() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout))
			if err != nil {
				c.log.Warnf("Ping failed, marking connection as dead: %v", err)
				c.connected.Store(false)
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (c *streamClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.connected.Store(false)

		c.mu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeTimeout),
		)
		c.mu.Unlock()

		err = c.conn.Close()
		c.wg.Wait()
	})
	return err
}
