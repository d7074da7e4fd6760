package execution

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nitinkhare/stockrs-go/internal/stockerr"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

// Tick is one live price update received over the brokerage's streaming
// feed, used by the Real/Paper backends to mark holdings without a round
// trip to MarketStore (which only ever holds settled history).
type Tick struct {
	Stock types.StockCode
	Price float64
	Ts    int64
}

// PriceStream subscribes to the brokerage's websocket feed and decodes
// ticks onto a channel until the connection drops or is closed; the dial
// context does not stop an already-running read loop.
type PriceStream struct {
	conn *websocket.Conn
}

// DialPriceStream opens the websocket connection and subscribes to stocks.
func DialPriceStream(ctx context.Context, url string, stocks []types.StockCode) (*PriceStream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, stockerr.Wrap(stockerr.KindNetwork, "execution.stream", "dial price feed", err)
	}
	sub := struct {
		Action string          `json:"action"`
		Stocks []types.StockCode `json:"stocks"`
	}{Action: "subscribe", Stocks: stocks}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, stockerr.Wrap(stockerr.KindNetwork, "execution.stream", "subscribe", err)
	}
	return &PriceStream{conn: conn}, nil
}

// Close tears down the underlying websocket connection.
func (p *PriceStream) Close() error {
	return p.conn.Close()
}

// Ticks returns a channel of decoded Tick values. The channel closes when
// the connection errors out or Close is called; the caller should treat a
// closed channel as "resubscribe or fall back to polling".
func (p *PriceStream) Ticks() <-chan Tick {
	out := make(chan Tick, 64)
	go func() {
		defer close(out)
		for {
			var raw struct {
				Stock types.StockCode `json:"stock"`
				Price float64         `json:"price"`
			}
			if err := p.conn.ReadJSON(&raw); err != nil {
				return
			}
			out <- Tick{Stock: raw.Stock, Price: raw.Price, Ts: time.Now().UnixMilli()}
		}
	}()
	return out
}
