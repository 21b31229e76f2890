package broker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	reconnectBackoff = 5 * time.Second
)

// Stream maintains a websocket subscription for underlying quotes and
// caches the latest print per symbol. The monitor treats it as a fast-path
// supplement: when the stream is stale or down it falls back to REST polls,
// so stream errors are logged and absorbed, never fatal.
type Stream struct {
	url     string
	apiKey  string
	symbols []string
	logger  *zap.Logger

	mu     sync.RWMutex
	latest map[string]streamTick
}

type streamTick struct {
	price float64
	at    time.Time
}

type streamMessage struct {
	Type   string  `json:"type"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func NewStream(url, apiKey string, symbols []string, logger *zap.Logger) *Stream {
	return &Stream{
		url:     url,
		apiKey:  apiKey,
		symbols: symbols,
		logger:  logger,
		latest:  make(map[string]streamTick),
	}
}

// Run dials and reads until ctx is canceled, reconnecting on failure.
func (s *Stream) Run(ctx context.Context) {
	for {
		if err := s.connectAndRead(ctx); err != nil {
			s.logger.Warn("quote stream disconnected", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectBackoff):
		}
	}
}

// LatestPrice returns the most recent streamed print for a symbol.
func (s *Stream) LatestPrice(symbol string) (float64, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tick, ok := s.latest[symbol]
	return tick.price, tick.at, ok
}

func (s *Stream) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	sub := map[string]any{
		"action":  "subscribe",
		"token":   s.apiKey,
		"symbols": s.symbols,
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	s.logger.Info("quote stream connected", zap.Strings("symbols", s.symbols))

	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(streamPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(streamWriteWait))
				_ = conn.Close()
				return
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var msg streamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Debug("dropping unparseable stream message", zap.Error(err))
			continue
		}
		if msg.Type != "trade" || msg.Price <= 0 {
			continue
		}

		s.mu.Lock()
		s.latest[msg.Symbol] = streamTick{price: msg.Price, at: time.Now()}
		s.mu.Unlock()
	}
}
