package marketplace

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	currentBidPattern = regexp.MustCompile(`現在\s*([0-9,]+)`)
	digitsPattern     = regexp.MustCompile(`[0-9]+`)
)

// normalizePrice converts a displayed price string into integer yen.
// Handles "¥1,234", "1,234円", "現在 500円" (current auction bid) and
// embedded whitespace. Returns an error when no digits are present so
// callers can skip the card instead of storing a zero price.
func normalizePrice(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty price string")
	}

	// Auction pages prefix the live bid with 現在; everything after it
	// is the amount we want.
	if m := currentBidPattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	s = strings.NewReplacer("¥", "", "￥", "", "円", "", ",", "", " ", "", " ", "").Replace(s)

	m := digitsPattern.FindString(s)
	if m == "" {
		return 0, fmt.Errorf("no digits in price %q", raw)
	}

	v, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", raw, err)
	}
	return v, nil
}
