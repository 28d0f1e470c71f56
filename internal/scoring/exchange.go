package scoring

import (
	"slices"
	"strings"
)

// majorExchangeTokens match anywhere in the lower-cased exchange name.
var majorExchangeTokens = []string{
	"nyse", "nasdaq", "nysearca", "amex",
	"london", "lse",
	"xetra", "frankfurt",
	"paris", "amsterdam",
	"swiss", "zurich",
	"stockholm", "oslo", "copenhagen", "helsinki",
	"madrid", "milan", "brussels", "vienna",
	"tokyo", "osaka", "japan",
	"hong kong", "singapore",
	"toronto", "tsx",
	"australia", "asx", "sydney",
}

// majorExchangeCodes are provider short codes matched exactly.
var majorExchangeCodes = []string{"nyq", "nms", "ngm", "ncm", "ase"}

var otcTokens = []string{"otc", "pink", "otcqb", "otcqx"}

var otcCodes = []string{"pnk", "obb", "oqb"}

// ExchangeAllowed reports whether a listing venue passes the allow-list.
// With excludeOTC set, over-the-counter venues are vetoed before the
// allow-list is consulted.
func ExchangeAllowed(exchange string, excludeOTC bool) bool {
	ex := strings.ToLower(strings.TrimSpace(exchange))
	if ex == "" {
		return false
	}

	if excludeOTC && isOTC(ex) {
		return false
	}

	for _, tok := range majorExchangeTokens {
		if strings.Contains(ex, tok) {
			return true
		}
	}
	return slices.Contains(majorExchangeCodes, ex)
}

func isOTC(ex string) bool {
	for _, tok := range otcTokens {
		if strings.Contains(ex, tok) {
			return true
		}
	}
	return slices.Contains(otcCodes, ex)
}

// excludedJurisdiction reports whether the country is China or Hong Kong.
func excludedJurisdiction(country string) bool {
	c := strings.ToLower(strings.TrimSpace(country))
	return c == "china" || c == "hong kong"
}
