package server

import (
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nvr-ai/go-pose/coach"
	"github.com/nvr-ai/go-pose/images"
	"github.com/nvr-ai/go-pose/metrics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Message types.
const (
	MessageFrame    = "frame"
	MessageTarget   = "target"
	MessagePing     = "ping"
	MessagePong     = "pong"
	MessageAnalysis = "analysis"
	MessageError    = "error"
)

const (
	readLimit    = 10 << 20
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// ClientMessage is a message from the browser.
type ClientMessage struct {
	Type      string `json:"type"`
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// ServerMessage is a message to the browser.
type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// stream is one websocket session. Writes are serialized because the ping loop shares the conn.
type stream struct {
	s       *Server
	conn    *websocket.Conn
	tracker *coach.Tracker
	logger  *zap.Logger
	mu      sync.Mutex
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade websocket connection", zap.Error(err))
		return
	}
	defer conn.Close()

	metrics.StreamSessions.Inc()
	defer metrics.StreamSessions.Dec()

	target := c.Query("target")
	if target == "" {
		if names := s.analyzer.ClassNames(); len(names) > 0 {
			target = names[0]
		}
	}

	st := &stream{
		s:       s,
		conn:    conn,
		tracker: coach.NewTracker(target, s.opts.PoseThreshold),
		logger:  s.logger.With(zap.String("client_ip", c.ClientIP())),
	}
	st.logger.Info("websocket client connected", zap.String("target", target))

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go st.pingLoop(done)

	for {
		var message ClientMessage
		if err := conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				st.logger.Warn("websocket closed", zap.Error(err))
			}
			return
		}
		st.handle(c, &message)
	}
}

func (st *stream) handle(c *gin.Context, message *ClientMessage) {
	switch message.Type {
	case MessageFrame:
		st.frame(c, message)
	case MessageTarget:
		if !st.s.analyzer.HasClass(message.Data) {
			st.sendError("unknown class: " + message.Data)
			return
		}
		st.tracker.SetTarget(message.Data)
		st.send(MessageTarget, map[string]any{"target": message.Data})
	case MessagePing:
		st.send(MessagePong, map[string]any{"timestamp": time.Now().Unix()})
	default:
		st.sendError("unknown message type: " + message.Type)
	}
}

func (st *stream) frame(c *gin.Context, message *ClientMessage) {
	data, err := extractImageData(message.Data)
	if err != nil {
		st.sendError("invalid image data")
		return
	}
	img, err := images.Decode(data)
	if err != nil {
		st.sendError("invalid image data")
		return
	}

	analysis, err := st.s.analyzer.Analyze(c.Request.Context(), img.Image, "")
	if err != nil {
		st.logger.Error("frame analysis failed", zap.Error(err))
		st.sendError("frame analysis failed")
		return
	}

	var state coach.State
	if analysis.Detected && analysis.probs != nil {
		state = st.tracker.Observe(st.s.analyzer.ClassNames(), analysis.probs)
		for i := range analysis.Classes {
			if analysis.Classes[i].Name == state.Target {
				analysis.Target = &analysis.Classes[i]
			}
		}
	} else {
		state = st.tracker.Miss()
	}
	analysis.Coach = &state
	st.send(MessageAnalysis, analysis)
}

// extractImageData decodes a data URL or bare base64 payload.
func extractImageData(dataURL string) ([]byte, error) {
	payload := dataURL
	if i := strings.IndexByte(dataURL, ','); i >= 0 {
		payload = dataURL[i+1:]
	}
	if payload == "" {
		return nil, errors.New("empty image data")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Wrap(err, "decode base64")
	}
	return data, nil
}

func (st *stream) send(messageType string, data any) {
	st.mu.Lock()
	defer st.mu.Unlock()
	_ = st.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := st.conn.WriteJSON(ServerMessage{Type: messageType, Data: data}); err != nil {
		st.logger.Error("failed to send websocket message", zap.Error(err))
	}
}

func (st *stream) sendError(msg string) {
	st.send(MessageError, map[string]any{
		"message":   msg,
		"timestamp": time.Now().Unix(),
	})
}

func (st *stream) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			st.mu.Lock()
			err := st.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			st.mu.Unlock()
			if err != nil {
				st.logger.Debug("ping failed", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}
