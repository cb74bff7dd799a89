package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/seatsniper/seatsniper/internal/models"
)

// smsBodyLimit keeps SMS alerts inside a reasonable segment count.
const smsBodyLimit = 1500

// Twilio sends through the Messages API. One instance serves either SMS
// or WhatsApp; WhatsApp prefixes both numbers with "whatsapp:".
type Twilio struct {
	http       *resty.Client
	accountSID string
	from       string // E.164
	whatsapp   bool
}

type twilioMessageResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// hardTwilioCodes are structured error codes meaning the recipient can
// never be reached. 21211 is an invalid To number.
var hardTwilioCodes = map[int]string{
	21211: "invalid recipient number",
	21610: "recipient has opted out",
	63024: "invalid whatsapp recipient",
}

// NewTwilioSMS builds the SMS notifier.
func NewTwilioSMS(accountSID, authToken, from string) (*Twilio, error) {
	return newTwilio(accountSID, authToken, from, false)
}

// NewTwilioWhatsApp builds the WhatsApp notifier.
func NewTwilioWhatsApp(accountSID, authToken, from string) (*Twilio, error) {
	return newTwilio(accountSID, authToken, from, true)
}

func newTwilio(accountSID, authToken, from string, whatsapp bool) (*Twilio, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, errors.New("twilio account sid, auth token, and from number required")
	}
	if !strings.HasPrefix(from, "+") {
		return nil, fmt.Errorf("twilio from number %q must be E.164", from)
	}
	return &Twilio{
		http: resty.New().
			SetBaseURL("https://api.twilio.com/2010-04-01").
			SetBasicAuth(accountSID, authToken),
		accountSID: accountSID,
		from:       from,
		whatsapp:   whatsapp,
	}, nil
}

func (tw *Twilio) Channel() models.Channel {
	if tw.whatsapp {
		return models.ChannelWhatsApp
	}
	return models.ChannelSMS
}

func (tw *Twilio) SendAlert(ctx context.Context, payload Payload) Delivery {
	to := payload.Recipient
	if !strings.HasPrefix(to, "+") {
		return Delivery{Status: StatusFailed, Err: fmt.Errorf("recipient %q must be E.164", to)}
	}
	from := tw.from
	if tw.whatsapp {
		to = "whatsapp:" + to
		from = "whatsapp:" + from
	}

	body := FormatAlert(payload)
	if len(body) > smsBodyLimit {
		body = body[:smsBodyLimit-3] + "..."
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	var out twilioMessageResponse
	resp, err := tw.http.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("/Accounts/%s/Messages.json", tw.accountSID))
	if err != nil {
		return Delivery{Status: StatusFailed, Err: err}
	}
	if resp.IsError() || out.Code != 0 {
		if reason, ok := hardTwilioCodes[out.Code]; ok {
			return Delivery{Status: StatusFailed, Err: fmt.Errorf("twilio %d: %s", out.Code, reason)}
		}
		return Delivery{Status: StatusFailed, Err: fmt.Errorf("twilio %d: %s", out.Code, out.Message)}
	}
	return Delivery{
		Success:   true,
		MessageID: out.SID,
		Status:    mapTwilioStatus(out.Status),
	}
}

func mapTwilioStatus(status string) DeliveryStatus {
	switch status {
	case "delivered", "sent":
		return StatusDelivered
	case "queued", "accepted", "sending":
		return StatusPending
	case "failed", "undelivered":
		return StatusFailed
	default:
		return StatusUnknown
	}
}
