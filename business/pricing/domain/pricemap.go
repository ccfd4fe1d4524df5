package domain

import "fmt"

// PriceMap holds one tick's quotes for one instrument keyed by source id.
// Iteration follows insertion order.
type PriceMap struct {
	instrument string
	order      []string
	quotes     map[string]Quote
}

// NewPriceMap creates an empty map for instrument.
func NewPriceMap(instrument string) PriceMap {
	return PriceMap{instrument: instrument, quotes: make(map[string]Quote)}
}

// Add inserts q. A second quote from the same source is rejected.
func (m *PriceMap) Add(q Quote) error {
	if m.quotes == nil {
		m.quotes = make(map[string]Quote)
	}
	if q.Instrument != m.instrument {
		return fmt.Errorf("price map for %s: quote is for %s", m.instrument, q.Instrument)
	}
	if _, dup := m.quotes[q.SourceID]; dup {
		return fmt.Errorf("price map for %s: duplicate source %s", m.instrument, q.SourceID)
	}
	m.order = append(m.order, q.SourceID)
	m.quotes[q.SourceID] = q
	return nil
}

// Instrument returns the instrument symbol.
func (m PriceMap) Instrument() string { return m.instrument }

// Len returns the number of quotes.
func (m PriceMap) Len() int { return len(m.order) }

// Get returns the quote from source.
func (m PriceMap) Get(source string) (Quote, bool) {
	q, ok := m.quotes[source]
	return q, ok
}

// Quotes returns the quotes in insertion order.
func (m PriceMap) Quotes() []Quote {
	out := make([]Quote, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.quotes[id])
	}
	return out
}
