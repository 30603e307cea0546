// Package telegram delivers message chunks to a telegram chat or channel via the bot api.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

// Params defines sink parameters
type Params struct {
	Token     string
	APIURL    string        // bot api endpoint, default https://api.telegram.org
	Timeout   time.Duration // per request timeout
	RateLimit float64       // messages per second, 0 disables limiting
}

// Sink sends MarkdownV2 text messages with link previews disabled
type Sink struct {
	bot     *tele.Bot
	limiter *rate.Limiter
}

// destination is a chat id or @channel name, both are accepted by sendMessage as chat_id
type destination string

// Recipient returns chat_id value, implements tele.Recipient
func (d destination) Recipient() string { return string(d) }

// New makes a telegram sink. The bot runs offline, no getMe call and no update polling.
func New(params Params) (*Sink, error) {
	if strings.TrimSpace(params.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if params.Timeout <= 0 {
		params.Timeout = 30 * time.Second
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:   params.Token,
		URL:     params.APIURL,
		Client:  &http.Client{Timeout: params.Timeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	res := &Sink{bot: bot}
	if params.RateLimit > 0 {
		res.limiter = rate.NewLimiter(rate.Limit(params.RateLimit), 1)
	}
	return res, nil
}

// Send delivers one message to the destination, numeric chat id or @channel
func (s *Sink) Send(ctx context.Context, dest, text string) error {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return errors.New("empty telegram destination")
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for rate limiter: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send cancelled: %w", err)
	}

	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdownV2, DisableWebPagePreview: true}
	if _, err := s.bot.Send(destination(dest), text, opts); err != nil {
		return fmt.Errorf("send telegram message to %s: %w", dest, err)
	}
	return nil
}
