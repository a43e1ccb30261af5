package chain

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the gateway.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// EventHandler receives gateway stream events.
type EventHandler func(Event)

// Stream consumes the gateway's websocket event feed: settlement and trade
// confirmations pushed as they land on chain. It reconnects with
// exponential backoff until its context is cancelled.
type Stream struct {
	wsURL   string
	handler EventHandler
	logger  *slog.Logger
}

// NewStream creates an event stream consumer.
func NewStream(wsURL string, handler EventHandler, logger *slog.Logger) *Stream {
	return &Stream{
		wsURL:   wsURL,
		handler: handler,
		logger:  logger.With(slog.String("component", "chain_stream")),
	}
}

// Run connects and consumes events until ctx is cancelled. A dropped
// connection is retried with backoff; it never returns a connection error.
func (s *Stream) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.WarnContext(ctx, "event stream disconnected",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

// consume holds one websocket connection open and dispatches its events.
func (s *Stream) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.logger.InfoContext(ctx, "event stream connected", slog.String("url", s.wsURL))

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Close the connection when the context ends so ReadJSON unblocks, and
	// keep the ping loop on the same lifetime.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			return err
		}
		s.handler(event)
	}
}
