package fetch

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/vishn-ui/tracker/pkg/logx"
)

// headless renders the page in headless Chrome before reading it. Retail
// product pages routinely populate the price from script, so this is the
// default mode.
type headless struct {
	cfg Config
	log logx.Logger
}

func newHeadless(cfg Config, log logx.Logger) *headless {
	return &headless{cfg: cfg, log: log}
}

// Candidate selectors tried in order. The id-based ones cover Amazon-style
// pages; the rest are generic fallbacks.
const (
	titleJS = `document.querySelector("#productTitle")?.innerText
		|| document.querySelector("h1")?.innerText
		|| document.title
		|| ""`
	priceJS = `document.querySelector("#priceblock_ourprice")?.innerText
		|| document.querySelector("#priceblock_dealprice")?.innerText
		|| document.querySelector(".a-price .a-offscreen")?.innerText
		|| document.querySelector(".a-price-whole")?.innerText
		|| document.querySelector("[itemprop='price']")?.getAttribute("content")
		|| ""`
	imageJS = `document.querySelector("#landingImage")?.src
		|| document.querySelector("img")?.src
		|| ""`
)

func (h *headless) Fetch(ctx context.Context, url string) (Snapshot, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(h.cfg.UserAgent),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	navCtx, cancelNav := context.WithTimeout(browserCtx, h.cfg.NavTimeout)
	defer cancelNav()

	var title, priceStr, imageURL string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(titleJS, &title),
		chromedp.Evaluate(priceJS, &priceStr),
		chromedp.Evaluate(imageJS, &imageURL),
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	title = strings.TrimSpace(title)
	price, ok := CleanPrice(priceStr)
	if title == "" || !ok {
		h.log.Debug("page yielded no usable snapshot",
			logx.String("url", url),
			logx.Bool("has_title", title != ""),
			logx.String("price_raw", priceStr),
		)
		return Snapshot{}, fmt.Errorf("%w: no title or price on page", ErrUnavailable)
	}
	return Snapshot{Title: title, Price: price, ImageURL: imageURL}, nil
}
