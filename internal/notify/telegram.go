package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/seatsniper/seatsniper/internal/models"
)

// Telegram sends alerts through the Bot API. When the payload carries a
// seat-map image, sendPhoto with the text as caption; otherwise
// sendMessage.
type Telegram struct {
	http *resty.Client
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// telegramCaptionLimit is the Bot API cap for photo captions.
const telegramCaptionLimit = 1024

// NewTelegram builds the notifier for the given bot token.
func NewTelegram(botToken string) (*Telegram, error) {
	if botToken == "" {
		return nil, errors.New("telegram bot token required")
	}
	return &Telegram{
		http: resty.New().SetBaseURL("https://api.telegram.org/bot" + botToken),
	}, nil
}

func (t *Telegram) Channel() models.Channel { return models.ChannelTelegram }

func (t *Telegram) SendAlert(ctx context.Context, payload Payload) Delivery {
	text := FormatAlert(payload)

	var out telegramResponse
	var err error
	if len(payload.SeatMap) > 0 && len(text) <= telegramCaptionLimit {
		err = t.sendPhoto(ctx, payload.Recipient, payload.SeatMap, text, &out)
	} else {
		err = t.sendMessage(ctx, payload.Recipient, text, &out)
	}
	if err != nil {
		return Delivery{Status: StatusFailed, Err: err}
	}
	if !out.OK {
		err = fmt.Errorf("telegram api: %s", out.Description)
		log.Debug().Str("chat", payload.Recipient).Str("description", out.Description).Msg("telegram send rejected")
		return Delivery{Status: StatusFailed, Err: err}
	}
	return Delivery{
		Success:   true,
		MessageID: strconv.FormatInt(out.Result.MessageID, 10),
		Status:    StatusDelivered,
	}
}

func (t *Telegram) sendMessage(ctx context.Context, chatID, text string, out *telegramResponse) error {
	_, err := t.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"chat_id":                  chatID,
			"text":                     text,
			"disable_web_page_preview": true,
		}).
		SetResult(out).
		SetError(out).
		Post("/sendMessage")
	return err
}

func (t *Telegram) sendPhoto(ctx context.Context, chatID string, photo []byte, caption string, out *telegramResponse) error {
	_, err := t.http.R().
		SetContext(ctx).
		SetFileReader("photo", "seatmap.png", bytes.NewReader(photo)).
		SetFormData(map[string]string{
			"chat_id": chatID,
			"caption": caption,
		}).
		SetResult(out).
		SetError(out).
		Post("/sendPhoto")
	return err
}
