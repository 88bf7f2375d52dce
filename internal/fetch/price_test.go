package fetch

import "testing"

func TestCleanPrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$19.99", 19.99, true},
		{"1,299.00", 1299, true},
		{"  42 ", 42, true},
		{"EUR 7.50", 7.5, true},
		{"79.", 79, true},
		{"1.299.99", 1299.99, true},
		{"", 0, false},
		{"free", 0, false},
		{"$0.00", 0, false},
		{"...", 0, false},
	}
	for _, c := range cases {
		got, ok := CleanPrice(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("CleanPrice(%q) = (%v, %v), want (%v, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestPlatform(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.amazon.com/dp/B0ABC", "Amazon"},
		{"https://www.AMAZON.de/gp/product/1", "Amazon"},
		{"https://www.ebay.com/itm/1234", "eBay"},
		{"https://www.bestbuy.com/site/p/1", "Best Buy"},
		{"https://www.walmart.com/ip/1", "Walmart"},
		{"https://shop.example.com/p/1", "Other"},
		{"not a url", "Other"},
	}
	for _, c := range cases {
		if got := Platform(c.url); got != c.want {
			t.Errorf("Platform(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}
