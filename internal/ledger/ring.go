package ledger

import "github.com/wonny/talos/internal/contracts"

// tradeRing is a fixed-capacity append-only buffer of trade records.
// Oldest entries are evicted once capacity is exceeded.
type tradeRing struct {
	buf   []contracts.TradeRecord
	head  int // index of the oldest entry
	count int
}

func newTradeRing(capacity int) *tradeRing {
	return &tradeRing{buf: make([]contracts.TradeRecord, capacity)}
}

func (r *tradeRing) push(rec contracts.TradeRecord) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = rec
		r.count++
		return
	}
	// Full: overwrite the oldest slot and advance the head.
	r.buf[r.head] = rec
	r.head = (r.head + 1) % len(r.buf)
}

// tail returns up to limit most recent records in chronological order
// (oldest first). limit <= 0 returns everything retained.
func (r *tradeRing) tail(limit int) []contracts.TradeRecord {
	n := r.count
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]contracts.TradeRecord, n)
	start := r.count - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.head+start+i)%len(r.buf)]
	}
	return out
}

func (r *tradeRing) len() int {
	return r.count
}
