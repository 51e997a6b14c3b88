package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/tradesim/internal/events"
	"github.com/aristath/tradesim/internal/modules/prices"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const priceWriteTimeout = 5 * time.Second

// priceFrame is one websocket message: the full latest quote set
type priceFrame struct {
	Type   string      `json:"type"`
	Tick   interface{} `json:"tick,omitempty"`
	Quotes interface{} `json:"quotes"`
}

// PriceStreamHandler pushes the price book to websocket clients after every tick.
type PriceStreamHandler struct {
	eventBus *events.Bus
	book     *prices.Book
	log      zerolog.Logger
}

// NewPriceStreamHandler creates a websocket price stream handler.
func NewPriceStreamHandler(eventBus *events.Bus, book *prices.Book, log zerolog.Logger) *PriceStreamHandler {
	return &PriceStreamHandler{
		eventBus: eventBus,
		book:     book,
		log:      log.With().Str("component", "price_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/ws/prices
func (h *PriceStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket handshake failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// CloseRead discards client messages and cancels ctx once the peer goes away
	ctx := conn.CloseRead(r.Context())

	ticks := make(chan interface{}, 1)
	unsubscribe := h.eventBus.Subscribe(events.PriceUpdated, func(event *events.Event) {
		// only the newest tick matters; the book always holds the latest batch
		select {
		case ticks <- event.Data["tick"]:
		default:
		}
	})
	defer unsubscribe()

	h.log.Debug().Msg("Price stream client connected")

	if err := h.write(ctx, conn, priceFrame{Type: "snapshot", Quotes: h.book.Latest()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Msg("Price stream client disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case tick := <-ticks:
			if err := h.write(ctx, conn, priceFrame{Type: "prices", Tick: tick, Quotes: h.book.Latest()}); err != nil {
				return
			}
		}
	}
}

func (h *PriceStreamHandler) write(ctx context.Context, conn *websocket.Conn, frame priceFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode price frame")
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, priceWriteTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		h.log.Debug().Err(err).Msg("Price stream write failed")
		return err
	}
	return nil
}
