package kraken

import (
	"encoding/json"
	"strconv"
	"strings"
)

// apiResponse is the standard Kraken REST envelope
type apiResponse struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// tickerEntry holds the fields we use from the Ticker endpoint
type tickerEntry struct {
	C []string `json:"c"` // last trade [price, lot volume]
	B []string `json:"b"` // best bid [price, whole lot volume, lot volume]
	A []string `json:"a"` // best ask [price, whole lot volume, lot volume]
}

// depthEntry is one side-pair of an order book snapshot.
// Levels arrive as [price, volume, timestamp] with mixed string/number types.
type depthEntry struct {
	Bids [][]any `json:"bids"`
	Asks [][]any `json:"asks"`
}

// addOrderResult is the AddOrder response payload
type addOrderResult struct {
	TxID  []string `json:"txid"`
	Descr struct {
		Order string `json:"order"`
	} `json:"descr"`
}

// orderInfo is one entry in the QueryOrders response
type orderInfo struct {
	Status  string `json:"status"`
	Vol     string `json:"vol"`
	VolExec string `json:"vol_exec"`
	Price   string `json:"price"`
	Fee     string `json:"fee"`
	Descr   struct {
		Pair      string `json:"pair"`
		Type      string `json:"type"`
		OrderType string `json:"ordertype"`
		Price     string `json:"price"`
	} `json:"descr"`
	OpenTS  float64 `json:"opentm"`
	CloseTS float64 `json:"closetm"`
}

// toPair converts a "BTC/CAD" style symbol to Kraken pair notation
// ⭐ SSOT: 심볼 → Kraken 페어 변환은 여기서만
func toPair(symbol string) string {
	pair := strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
	pair = strings.Replace(pair, "BTC", "XBT", 1)
	return pair
}

// parseFloat converts Kraken's string-encoded numbers, returning 0 on failure
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// levelFloat extracts a numeric field from a depth level entry
func levelFloat(v any) float64 {
	switch x := v.(type) {
	case string:
		return parseFloat(x)
	case float64:
		return x
	case json.Number:
		f, _ := x.Float64()
		return f
	}
	return 0
}
