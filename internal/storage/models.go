package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertRecord captures an emitted alert for auditing. Price samples themselves are never stored.
type AlertRecord struct {
	ID           int64
	EventID      uuid.UUID
	Symbol       string
	Pair         string
	ChainID      string
	PairAddress  string
	Direction    string
	ThresholdPct float64
	ChangePct    float64
	PriceUSD     decimal.Decimal
	DashboardURL string
	FiredAt      time.Time
	CreatedAt    time.Time
}
