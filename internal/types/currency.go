package types

import "strings"

// DEFAULT_CURRENCY_PRECISION is the minor unit precision used when the
// currency is unknown
const DEFAULT_CURRENCY_PRECISION int32 = 2

// zeroDecimalCurrencies have no minor unit
var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {},
	"krw": {}, "mga": {}, "pyg": {}, "rwf": {}, "ugx": {}, "vnd": {},
	"vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

// threeDecimalCurrencies use three minor unit digits
var threeDecimalCurrencies = map[string]struct{}{
	"bhd": {}, "iqd": {}, "jod": {}, "kwd": {}, "lyd": {}, "omr": {}, "tnd": {},
}

// GetCurrencyPrecision returns the number of minor unit digits for a
// lowercase ISO currency code ex usd -> 2, jpy -> 0
func GetCurrencyPrecision(currency string) int32 {
	c := strings.ToLower(currency)
	if _, ok := zeroDecimalCurrencies[c]; ok {
		return 0
	}
	if _, ok := threeDecimalCurrencies[c]; ok {
		return 3
	}
	return DEFAULT_CURRENCY_PRECISION
}
