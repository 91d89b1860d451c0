package analysisHandler

import (
	"sync"
	"time"

	"VisionAnalytica/internal/api/analysis"
	"VisionAnalytica/internal/entity"
	"VisionAnalytica/internal/middleware"
	contextPkg "VisionAnalytica/pkg/context"
	"VisionAnalytica/pkg/handlerUtil"
	"VisionAnalytica/pkg/log"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/net/context"
)

const (
	streamReadTimeout  = 60 * time.Second
	streamWriteTimeout = 10 * time.Second
)

// streamSession tracks the newest frame on one connection. Only the newest
// frame may be answered; older in-flight frames are cancelled.
type streamSession struct {
	h    *AnalysisHandler
	conn *websocket.Conn
	base context.Context

	mu       sync.Mutex
	seq      uint64
	latest   uint64
	inflight context.CancelFunc
	wg       sync.WaitGroup
}

func (h *AnalysisHandler) handleStream(c *websocket.Conn) {
	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	if requestID == "" {
		requestID = "unknown"
	}

	base, cancel := context.WithCancel(contextPkg.WithRequestID(context.Background(), requestID))
	s := &streamSession{h: h, conn: c, base: base}

	h.log.WithFields(log.Fields{log.RequestIDKey: requestID}).Info("Analysis stream client connected")
	defer func() {
		cancel()
		s.wg.Wait()
		h.log.WithFields(log.Fields{log.RequestIDKey: requestID}).Info("Analysis stream client disconnected")
	}()

	// Client pings keep the connection open while a long provider chain runs.
	c.SetPingHandler(func(data string) error {
		h.log.Debug("Received ping, sending pong")
		if err := c.SetReadDeadline(time.Now().Add(h.streamIdle)); err != nil {
			h.log.Errorf("Error extending read deadline: %v", err)
		}
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	for {
		if err := c.SetReadDeadline(time.Now().Add(h.streamIdle)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Errorf("Analysis stream error: %v", err)
			} else {
				h.log.Info("Analysis stream connection closed")
			}
			break
		}

		if messageType != websocket.BinaryMessage {
			h.log.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		s.submit(message)
	}
}

// submit assigns the frame the next token and supersedes whatever is in flight.
func (s *streamSession) submit(frame []byte) {
	s.mu.Lock()
	s.seq++
	token := s.seq
	s.latest = token
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}

	img, err := s.h.utils.ImageFromBytes(frame, "frame")
	if err != nil {
		s.mu.Unlock()
		s.reply(token, nil, err)
		return
	}

	ctx, cancel := context.WithTimeout(contextPkg.WithToken(s.base, token), s.h.requestTimeout)
	s.inflight = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	s.h.log.WithFields(log.Fields{
		log.RequestIDKey: contextPkg.GetRequestID(s.base),
		"token":          token,
		"frame_size":     len(frame),
	}).Debug("Received frame for analysis")

	go func() {
		defer s.wg.Done()
		defer cancel()

		result, err := s.h.analysisService.Analyze(ctx, img)
		s.reply(token, result, err)
	}()
}

func (s *streamSession) reply(token uint64, result *entity.AnalysisResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.base.Err() != nil {
		return
	}
	if token < s.latest {
		s.h.log.WithFields(log.Fields{
			"token":  token,
			"latest": s.latest,
		}).Debug("Discarding stale frame result")
		return
	}

	msg := analysis.StreamReply{Token: token, Data: result}
	if err != nil {
		_, failure := handlerUtil.Describe(err)
		msg.Error = failure.Error
		msg.Code = failure.Code
		msg.Attempts = failure.Attempts
		s.h.log.WithFields(log.Fields{
			"token": token,
			"error": err.Error(),
		}).Warn("Frame analysis failed")
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		s.h.log.Errorf("Error setting write deadline: %v", err)
		return
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		s.h.log.Errorf("Error writing JSON response: %v", err)
		return
	}
	if err := s.conn.SetWriteDeadline(time.Time{}); err != nil {
		s.h.log.Errorf("Error resetting write deadline: %v", err)
	}
}
