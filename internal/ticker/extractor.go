package ticker

import "regexp"

// Candidate patterns in priority order: $SYM, (SYM), then a bare
// uppercase token. The bare form is the least reliable and only wins
// when no marked form is present.
var (
	dollarExpr = regexp.MustCompile(`\$([A-Z]{1,5})\b`)
	parenExpr  = regexp.MustCompile(`\(([A-Z]{1,5})\)`)
	bareExpr   = regexp.MustCompile(`\b([A-Z]{1,5})\b`)
)

// Common false positives: index names, agency acronyms, country codes.
var blacklist = map[string]struct{}{
	"USD": {}, "FOMC": {}, "ETF": {}, "IPO": {}, "AI": {}, "GDP": {},
	"CEO": {}, "EV": {}, "SEC": {}, "FDA": {}, "US": {}, "UK": {},
	"EU": {}, "NYC": {}, "LA": {}, "SF": {}, "DC": {}, "PR": {},
	"CFO": {}, "CTO": {}, "COVID": {}, "NASDAQ": {}, "NYSE": {},
	"DOW": {}, "SPY": {}, "QQQ": {}, "VIX": {}, "NEWS": {},
}

// Extract returns the first plausible equity symbol in text. It is a
// pure function: identical input always yields the identical result.
func Extract(text string) (string, bool) {
	for _, expr := range []*regexp.Regexp{dollarExpr, parenExpr, bareExpr} {
		for _, match := range expr.FindAllStringSubmatch(text, -1) {
			symbol := match[1]
			if _, banned := blacklist[symbol]; banned {
				continue
			}
			return symbol, true
		}
	}
	return "", false
}
