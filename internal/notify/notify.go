// Package notify holds the outbound alert transports. Each notifier owns
// its HTTP client; the dispatcher only sees the Notifier interface and
// the hard-failure classification.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/seatsniper/seatsniper/internal/comparison"
	"github.com/seatsniper/seatsniper/internal/models"
	"github.com/seatsniper/seatsniper/internal/scoring"
)

// DeliveryStatus is the transport's view of the send outcome.
type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "delivered"
	StatusPending   DeliveryStatus = "pending"
	StatusFailed    DeliveryStatus = "failed"
	StatusUnknown   DeliveryStatus = "unknown"
)

// Payload is one alert to one recipient.
type Payload struct {
	Recipient    string // chat id or E.164 phone
	Event        models.Event
	Picks        []scoring.ScoredListing
	AveragePrice float64
	SeatMapURL   string
	SeatMap      []byte // optional static image
	Comparison   *comparison.Result
}

// Delivery is the send outcome.
type Delivery struct {
	Success   bool
	MessageID string
	Status    DeliveryStatus
	Err       error
}

// Notifier is one transport.
type Notifier interface {
	Channel() models.Channel
	SendAlert(ctx context.Context, payload Payload) Delivery
}

// hardFailureMarkers identify recipients that will never accept another
// message. The dispatcher deactivates the subscription on these.
var hardFailureMarkers = []string{
	"blocked",
	"forbidden",
	"chat not found",
	"user deactivated",
	"bot kicked",
	"invalid recipient",
}

// IsHardFailure reports whether err means the recipient is gone for good.
func IsHardFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range hardFailureMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// FormatAlert renders the shared alert text. Telegram sends it as-is
// (plain text, no parse mode); SMS/WhatsApp truncate via their own limits.
func FormatAlert(p Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎟 %s\n", p.Event.Name)
	fmt.Fprintf(&b, "%s, %s\n", p.Event.Venue.Name, p.Event.Venue.City)
	fmt.Fprintf(&b, "%s\n\n", p.Event.DateTime.Format("Mon Jan 2, 3:04 PM MST"))

	for i, pick := range p.Picks {
		l := pick.Listing
		fmt.Fprintf(&b, "%d. %s", i+1, l.Section)
		if l.Row != "" {
			fmt.Fprintf(&b, " row %s", l.Row)
		}
		fmt.Fprintf(&b, " · %d for $%.0f/ea · score %d (%s)\n",
			l.Quantity, l.PricePerTicket, pick.Score.TotalScore, pick.Score.Recommendation)
		if pick.Score.Reasoning != "" {
			fmt.Fprintf(&b, "   %s\n", pick.Score.Reasoning)
		}
		if l.DeepLink != "" {
			fmt.Fprintf(&b, "   %s\n", l.DeepLink)
		}
	}

	if p.AveragePrice > 0 {
		fmt.Fprintf(&b, "\nEvent average: $%.0f/ticket\n", p.AveragePrice)
	}
	if p.Comparison != nil && p.Comparison.Best != nil {
		best := p.Comparison.Best
		fmt.Fprintf(&b, "Best cross-platform deal: %s at $%.0f (save $%.0f, %d%%)\n",
			best.Platform, best.Price, best.Savings, best.SavingsPercent)
	}
	return b.String()
}
