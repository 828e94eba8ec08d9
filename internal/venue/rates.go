package venue

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Rate is one pair quote from the venue feed.
type Rate struct {
	OfferDenom  string          `json:"offer_denom"`
	AskDenom    string          `json:"ask_denom"`
	Price       decimal.Decimal `json:"price"` // ask units per offer unit
	LastUpdated time.Time       `json:"last_updated"`
}

// RateBook is the in-memory table of venue swap rates, fed by the websocket
// stream and read by the quote client as a fallback and by the rates query.
type RateBook struct {
	mu    sync.RWMutex
	rates map[string]Rate
}

func NewRateBook() *RateBook {
	return &RateBook{rates: make(map[string]Rate)}
}

func pairKey(offer, ask string) string { return offer + "/" + ask }

// Update stores a fresh rate for the pair.
func (b *RateBook) Update(offer, ask string, price decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rates[pairKey(offer, ask)] = Rate{
		OfferDenom:  offer,
		AskDenom:    ask,
		Price:       price,
		LastUpdated: time.Now(),
	}
}

// Get returns the cached rate for a pair.
func (b *RateBook) Get(offer, ask string) (Rate, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.rates[pairKey(offer, ask)]
	return r, ok
}

// Snapshot returns every cached rate, sorted by pair.
func (b *RateBook) Snapshot() []Rate {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.rates))
	for k := range b.rates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Rate, 0, len(keys))
	for _, k := range keys {
		out = append(out, b.rates[k])
	}
	return out
}
