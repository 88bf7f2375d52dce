package fetch

import (
	"context"
	"fmt"
	"strings"

	"github.com/gocolly/colly/v2"

	"github.com/vishn-ui/tracker/pkg/logx"
)

// static fetches the raw HTML without a browser. Cheaper than headless mode
// and sufficient for pages that render their price server-side.
type static struct {
	cfg Config
	log logx.Logger
}

func newStatic(cfg Config, log logx.Logger) *static {
	return &static{cfg: cfg, log: log}
}

var priceSelectors = []string{
	"#priceblock_ourprice",
	"#priceblock_dealprice",
	".a-price .a-offscreen",
	".a-price-whole",
	"[itemprop='price']",
}

func (s *static) Fetch(ctx context.Context, url string) (Snapshot, error) {
	// Collectors accumulate callbacks, so each fetch gets its own.
	c := colly.NewCollector(
		colly.UserAgent(s.cfg.UserAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.cfg.NavTimeout)

	var title, priceStr, imageURL string

	c.OnHTML("#productTitle", func(e *colly.HTMLElement) {
		if title == "" {
			title = strings.TrimSpace(e.Text)
		}
	})
	c.OnHTML("h1", func(e *colly.HTMLElement) {
		if title == "" {
			title = strings.TrimSpace(e.Text)
		}
	})
	c.OnHTML("title", func(e *colly.HTMLElement) {
		if title == "" {
			title = strings.TrimSpace(e.Text)
		}
	})
	for _, sel := range priceSelectors {
		c.OnHTML(sel, func(e *colly.HTMLElement) {
			if priceStr != "" {
				return
			}
			if v := strings.TrimSpace(e.Attr("content")); v != "" {
				priceStr = v
				return
			}
			priceStr = strings.TrimSpace(e.Text)
		})
	}
	c.OnHTML("img", func(e *colly.HTMLElement) {
		if imageURL == "" {
			imageURL = e.Request.AbsoluteURL(e.Attr("src"))
		}
	})

	if err := c.Visit(url); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.Wait()

	price, ok := CleanPrice(priceStr)
	if title == "" || !ok {
		s.log.Debug("page yielded no usable snapshot",
			logx.String("url", url),
			logx.Bool("has_title", title != ""),
			logx.String("price_raw", priceStr),
		)
		return Snapshot{}, fmt.Errorf("%w: no title or price on page", ErrUnavailable)
	}
	return Snapshot{Title: title, Price: price, ImageURL: imageURL}, nil
}
