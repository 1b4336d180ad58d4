package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/CDeX-Labs/CDeX-Web-Client/internal/api"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Web-Client/pkg/events"
	"github.com/CDeX-Labs/CDeX-Web-Client/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB

	maxReconnectDelay = 30 * time.Second
)

var errRoomLeft = errors.New("removed from contest room")

type TokenSource interface {
	ValidAccessToken(ctx context.Context) (string, error)
}

type SocketOptions struct {
	// URL is the socket service base, e.g. ws://localhost:8081.
	URL       string
	ContestID string
	Tokens    TokenSource
	Sink      Sink
	Dialer    *websocket.Dialer
	// ReconnectDelay is the first backoff after a dropped connection.
	ReconnectDelay time.Duration
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
}

// Socket follows a contest room on the socket service and applies
// submission results to the sink.
type Socket struct {
	url            string
	room           string
	tokens         TokenSource
	sink           Sink
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	metrics        *metrics.Metrics
	logger         zerolog.Logger
}

func NewSocket(opts SocketOptions) *Socket {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &Socket{
		url:            strings.TrimSuffix(opts.URL, "/"),
		room:           protocol.ContestRoom(opts.ContestID),
		tokens:         opts.Tokens,
		sink:           opts.Sink,
		dialer:         dialer,
		reconnectDelay: delay,
		metrics:        opts.Metrics,
		logger:         opts.Logger.With().Str("component", "socket-feed").Str("room", protocol.ContestRoom(opts.ContestID)).Logger(),
	}
}

// Run keeps the feed connected until ctx is done or the session is gone.
func (s *Socket) Run(ctx context.Context) error {
	delay := s.reconnectDelay
	for {
		err := s.connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, api.ErrUnauthorized) {
			s.logger.Info().Err(err).Msg("Socket feed stopped")
			return err
		}

		s.logger.Warn().Err(err).Dur("retryIn", delay).Msg("Socket feed disconnected")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

func (s *Socket) connect(ctx context.Context) error {
	token, err := s.tokens.ValidAccessToken(ctx)
	if err != nil {
		return err
	}

	endpoint := s.url + "/v1/ws?token=" + url.QueryEscape(token)
	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to dial socket service: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	join, err := protocol.NewMessageWithRequestID(protocol.MsgJoinRoom, protocol.JoinRoomPayload{RoomID: s.room}, uuid.New().String())
	if err != nil {
		return err
	}
	data, err := join.ToBytes()
	if err != nil {
		return err
	}

	send := make(chan []byte, 16)
	send <- data

	done := make(chan struct{})
	defer close(done)
	go s.writePump(conn, send, done)

	s.logger.Info().Msg("Socket feed connected")
	return s.readPump(conn)
}

func (s *Socket) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		// The service batches queued messages into one frame.
		for _, frame := range bytes.Split(message, []byte{'\n'}) {
			if len(bytes.TrimSpace(frame)) == 0 {
				continue
			}
			if err := s.handle(frame); err != nil {
				return err
			}
		}
	}
}

func (s *Socket) writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handle applies one message. An error ends the connection so Run
// reconnects and joins the room again.
func (s *Socket) handle(data []byte) error {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.metrics.IncFeedMessage("socket", "invalid")
		s.logger.Error().Err(err).Msg("Failed to parse message")
		return nil
	}

	switch msg.Type {
	case protocol.MsgSubmissionResult:
		var event events.SubmissionJudgedEvent
		if err := msg.Decode(&event); err != nil {
			s.metrics.IncFeedMessage("socket", "invalid")
			s.logger.Error().Err(err).Msg("Failed to decode submission result")
			return nil
		}
		s.apply(event)

	case protocol.MsgConnected:
		var payload protocol.ConnectedPayload
		_ = msg.Decode(&payload)
		s.logger.Debug().Str("userId", payload.UserID).Str("instanceId", payload.InstanceID).Msg("Socket service accepted connection")

	case protocol.MsgRoomJoined:
		var payload protocol.RoomJoinedPayload
		_ = msg.Decode(&payload)
		s.logger.Info().Int("memberCount", payload.MemberCount).Msg("Joined contest room")

	case protocol.MsgRoomLeft:
		var payload protocol.RoomLeftPayload
		if err := msg.Decode(&payload); err == nil && payload.RoomID == s.room {
			return errRoomLeft
		}

	case protocol.MsgError:
		var payload protocol.ErrorPayload
		_ = msg.Decode(&payload)
		s.logger.Warn().Str("code", payload.Code).Str("requestId", msg.RequestID).Msg(payload.Message)

	default:
		s.logger.Debug().Str("type", string(msg.Type)).Msg("Ignoring message")
	}
	return nil
}

func (s *Socket) apply(event events.SubmissionJudgedEvent) {
	status := "ignored"
	if s.sink.ApplyVerdict(VerdictFromJudged(event)) {
		status = "applied"
	}
	s.metrics.IncFeedMessage("socket", status)

	s.logger.Debug().
		Str("submissionId", event.SubmissionID).
		Str("verdict", event.Verdict).
		Str("status", status).
		Msg("Submission result received")
}
