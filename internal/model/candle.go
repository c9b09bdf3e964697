package model

import (
	"fmt"
	"time"
)

// Candle represents a single OHLCV sample for one symbol at one timestamp.
// Immutable after construction.
type Candle struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	CreatedAt time.Time
}

// NewCandle builds a Candle and stamps CreatedAt with the current wall-clock time.
func NewCandle(symbol string, ts time.Time, open, high, low, close float64, volume int64) Candle {
	return Candle{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
		CreatedAt: time.Now(),
	}
}

func (c Candle) String() string {
	return fmt.Sprintf("%s %s: O:%.2f H:%.2f L:%.2f C:%.2f V:%d",
		c.Symbol, c.Timestamp.Format("2006-01-02 15:04:05"),
		c.Open, c.High, c.Low, c.Close, c.Volume)
}

// StoredSample is a persisted Candle plus the derived money-flow fields.
// AvgPrice, MoneyFlow and NetMoneyFlow are integer-scaled: volume is divided
// by 1000 before the money-flow computation and every derived value is
// rounded to an integer. This matches the historical data already on disk.
type StoredSample struct {
	Candle
	AvgPrice     int64
	MoneyFlow    int64
	NetMoneyFlow int64
}
