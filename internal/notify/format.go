package notify

import (
	"fmt"
	"html"
)

// FormatTracking is the confirmation message sent when a product is first
// tracked.
func FormatTracking(title string, price float64, url, platform string) string {
	return fmt.Sprintf(`🔔 <b>New Product Tracked</b>

📦 <b>Product:</b> %s
💰 <b>Initial Price:</b> %.2f
🛍️ <b>Platform:</b> %s
🔗 <a href="%s">View Product</a>

Monitoring has started. We'll let you know about price drops!`,
		html.EscapeString(title), price, html.EscapeString(platform), url)
}

// FormatPriceAlert is the price-drop alert message.
func FormatPriceAlert(title string, price float64, url, platform string, target float64) string {
	return fmt.Sprintf(`⚠️ <b>Price Alert!</b>

The price for your tracked product has dropped!

📦 <b>Product:</b> %s
💰 <b>Current Price: %.2f</b>
🎯 <b>Your Target:</b> %.2f
🛍️ <b>Platform:</b> %s
🔗 <a href="%s">Buy Now!</a>`,
		html.EscapeString(title), price, target, html.EscapeString(platform), url)
}
