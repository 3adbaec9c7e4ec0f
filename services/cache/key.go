package cache

import (
	"sort"
	"strings"
)

// Kind is the operation family a cached payload belongs to.
type Kind string

const (
	KindStockQuote     Kind = "stock_quote"
	KindStockDaily     Kind = "stock_daily"
	KindStockIntraday  Kind = "stock_intraday"
	KindSymbolSearch   Kind = "symbol_search"
	KindCryptoDaily    Kind = "crypto_daily"
	KindCryptoWeekly   Kind = "crypto_weekly"
	KindCryptoMonthly  Kind = "crypto_monthly"
	KindCryptoIntraday Kind = "crypto_intraday"
	KindCryptoRate     Kind = "crypto_rate"
	KindRSI            Kind = "rsi"
	KindMACD           Kind = "macd"
	KindStoch          Kind = "stoch"
	KindBBands         Kind = "bbands"
)

const delimiter = ":"

var (
	escaper   = strings.NewReplacer("%", "%25", delimiter, "%3A")
	unescaper = strings.NewReplacer("%3A", delimiter, "%25", "%")
)

// Key is a structured cache key. Its string form lists parameters sorted by
// name, so the order they were supplied in never changes the key.
type Key struct {
	Kind   Kind
	Params map[string]string
}

// NewKey builds a key from alternating name/value pairs.
// A trailing name without a value is ignored.
func NewKey(kind Kind, pairs ...string) Key {
	params := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		params[pairs[i]] = pairs[i+1]
	}
	return Key{Kind: kind, Params: params}
}

// String renders kind:name:value:name:value with names in sorted order.
func (k Key) String() string {
	names := make([]string, 0, len(k.Params))
	for name := range k.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(string(k.Kind))
	for _, name := range names {
		b.WriteString(delimiter)
		b.WriteString(escaper.Replace(name))
		b.WriteString(delimiter)
		b.WriteString(escaper.Replace(k.Params[name]))
	}
	return b.String()
}

// Prefix is the scan prefix shared by every key of a kind.
func (k Kind) Prefix() string {
	return string(k) + delimiter
}

// ParseKey reverses Key.String.
func ParseKey(s string) (Key, bool) {
	parts := strings.Split(s, delimiter)
	if len(parts) == 0 || parts[0] == "" || len(parts)%2 != 1 {
		return Key{}, false
	}
	k := Key{Kind: Kind(parts[0]), Params: make(map[string]string, len(parts)/2)}
	for i := 1; i < len(parts); i += 2 {
		k.Params[unescaper.Replace(parts[i])] = unescaper.Replace(parts[i+1])
	}
	return k, true
}
