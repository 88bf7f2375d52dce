package fetch

import (
	"net/url"
	"strings"
)

// Platform derives a retailer tag from the URL's host. Unknown hosts map
// to "Other"; derivation is deterministic and case-insensitive.
func Platform(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "Other"
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "amazon"):
		return "Amazon"
	case strings.Contains(host, "ebay"):
		return "eBay"
	case strings.Contains(host, "bestbuy"):
		return "Best Buy"
	case strings.Contains(host, "walmart"):
		return "Walmart"
	default:
		return "Other"
	}
}
