package oracle

import (
	"errors"
	"sync"
	"time"
)

// ErrNoQuote is returned when no price feed exists for a denomination.
var ErrNoQuote = errors.New("no price feed for denomination")

// Quote is a USD unit price for a denomination at a point in time. Callers
// decide how old a quote they will accept.
type Quote struct {
	Denomination string
	PriceUSD     float64
	PublishedAt  time.Time
}

// PriceOracle provides time-bounded USD price quotes.
type PriceOracle interface {
	Quote(denomination string) (Quote, error)
}

// StaticOracle serves quotes from a fixed feed table injected at service
// start. SetQuote refreshes a feed, stamping it with the current time.
type StaticOracle struct {
	mux    sync.Mutex
	quotes map[string]Quote
	now    func() time.Time
}

func NewStaticOracle(prices map[string]float64, now func() time.Time) *StaticOracle {
	if now == nil {
		now = time.Now
	}
	o := &StaticOracle{
		quotes: make(map[string]Quote, len(prices)),
		now:    now,
	}
	for denom, price := range prices {
		o.quotes[denom] = Quote{Denomination: denom, PriceUSD: price, PublishedAt: o.now()}
	}
	return o
}

func (o *StaticOracle) Quote(denomination string) (Quote, error) {
	o.mux.Lock()
	defer o.mux.Unlock()
	q, ok := o.quotes[denomination]
	if !ok {
		return Quote{}, ErrNoQuote
	}
	return q, nil
}

// SetQuote publishes a fresh price for a denomination
func (o *StaticOracle) SetQuote(denomination string, priceUSD float64) {
	o.mux.Lock()
	defer o.mux.Unlock()
	o.quotes[denomination] = Quote{
		Denomination: denomination,
		PriceUSD:     priceUSD,
		PublishedAt:  o.now(),
	}
}
