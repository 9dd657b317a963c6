package notification

import (
	"fmt"
	"strings"

	"github.com/vurksha/backend/internal/infrastructure/events"
)

// Template is the title and body rendered for one event type.
// Placeholders use {{name}} and are filled from the event payload.
type Template struct {
	Title string
	Body  string
}

var templates = map[string]Template{
	events.OrderConfirmed: {
		Title: "Order confirmed",
		Body:  "Your order {{number}} has been confirmed and is being prepared.",
	},
	events.OrderShipped: {
		Title: "Order shipped",
		Body:  "Your order {{number}} is on its way.",
	},
	events.OrderDelivered: {
		Title: "Order delivered",
		Body:  "Your order {{number}} has been delivered. Enjoy!",
	},
	events.OrderCancelled: {
		Title: "Order cancelled",
		Body:  "Your order {{number}} has been cancelled.",
	},
	events.PaymentCompleted: {
		Title: "Payment received",
		Body:  "We received your payment of ₹{{amount}}.",
	},
}

// render substitutes {{key}} placeholders with payload values. Unknown
// placeholders are left as-is so a template bug is visible rather than
// silently blanked.
func render(text string, payload map[string]any) string {
	var b strings.Builder
	for {
		start := strings.Index(text, "{{")
		if start < 0 {
			b.WriteString(text)
			return b.String()
		}
		end := strings.Index(text[start:], "}}")
		if end < 0 {
			b.WriteString(text)
			return b.String()
		}
		end += start
		b.WriteString(text[:start])
		key := strings.TrimSpace(text[start+2 : end])
		if v, ok := payload[key]; ok {
			b.WriteString(formatValue(v))
		} else {
			b.WriteString(text[start : end+2])
		}
		text = text[end+2:]
	}
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%.2f", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
