package venue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/astrobalance/vaultgate/internal/pkg/logger"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	reconnBaseDelay = 1 * time.Second
	reconnMaxDelay  = 30 * time.Second
	pingPeriod      = 15 * time.Second // keep-alive interval
)

// rateUpdate is one message on the venue's rate feed.
type rateUpdate struct {
	OfferDenom string `json:"offer_denom"`
	AskDenom   string `json:"ask_denom"`
	Price      string `json:"price"`
}

// Stream keeps a websocket subscription to the venue rate feed and writes
// every update into the RateBook. Reconnects with exponential backoff.
type Stream struct {
	url    string
	book   *RateBook
	ctx    context.Context
	cancel context.CancelFunc
	conn   *websocket.Conn
}

func NewStream(url string, book *RateBook) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		url:    url,
		book:   book,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the connection loop in a background goroutine
func (s *Stream) Start() {
	go s.runLoop()
}

// Stop closes the stream
func (s *Stream) Stop() {
	s.cancel()
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *Stream) runLoop() {
	delay := reconnBaseDelay
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if err := s.connectAndRead(); err != nil {
			logger.Warn("venue rate stream disconnected", "error", err, "retry_in", delay.String())
		}

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > reconnMaxDelay {
			delay = reconnMaxDelay
		}
	}
}

func (s *Stream) connectAndRead() error {
	conn, _, err := websocket.DefaultDialer.DialContext(s.ctx, s.url, nil)
	if err != nil {
		return err
	}
	s.conn = conn
	defer conn.Close()

	logger.Info("✅ Connected to venue rate stream", "url", s.url)

	// keep-alive pings
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var update rateUpdate
		if err := json.Unmarshal(raw, &update); err != nil {
			logger.Debug("skipping malformed rate update", "error", err)
			continue
		}
		price, err := decimal.NewFromString(update.Price)
		if err != nil || update.OfferDenom == "" || update.AskDenom == "" {
			continue
		}
		s.book.Update(update.OfferDenom, update.AskDenom, price)
	}
}
