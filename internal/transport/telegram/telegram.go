// Package telegram implements transport.Bot on top of telebot.v4.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"scoutbot/internal/retry"
	"scoutbot/internal/transport"
	"scoutbot/pkg/logx"
)

var ErrNoToken = errors.New("telegram token is empty")

type Config struct {
	Token string
	// RequestTimeout bounds one API call (excluding the long-poll wait).
	RequestTimeout time.Duration
	// MaxDiscoverWait is the longest wait RecentSenders will be asked for.
	MaxDiscoverWait time.Duration
	// URL overrides the Bot API endpoint (tests, local bot-api servers).
	URL string
}

type Bot struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

var _ transport.Bot = (*Bot)(nil)

// Connect validates the token with getMe. Timeouts and network faults are
// marked retry.KindTimeout so the caller can retry connection setup.
func Connect(ctx context.Context, cfg Config, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrNoToken
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.MaxDiscoverWait <= 0 {
		cfg.MaxDiscoverWait = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	b, err := tele.NewBot(tele.Settings{
		URL:   cfg.URL,
		Token: cfg.Token,
		// getUpdates holds the connection open for the discovery wait.
		Client: &http.Client{Timeout: cfg.RequestTimeout + cfg.MaxDiscoverWait},
	})
	if err != nil {
		if isNetworkFault(err) {
			return nil, retry.Mark(retry.KindTimeout, fmt.Errorf("telegram connect: %w", err))
		}
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	log.Info("connected", logx.String("bot", b.Me.Username))
	return &Bot{cfg: cfg, log: log, bot: b}, nil
}

// Connector adapts Connect to transport.Connector.
func Connector(cfg Config, log logx.Logger) transport.Connector {
	return func(ctx context.Context) (transport.Bot, error) {
		b, err := Connect(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

type updatesResponse struct {
	Result []tele.Update `json:"result"`
}

// RecentSenders reads pending updates without acknowledging them, so the
// same chats keep showing up until Telegram expires the updates.
func (b *Bot) RecentSenders(ctx context.Context, wait time.Duration) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if wait > b.cfg.MaxDiscoverWait {
		wait = b.cfg.MaxDiscoverWait
	}
	raw, err := b.bot.Raw("getUpdates", map[string]any{
		"timeout":         int(wait / time.Second),
		"allowed_updates": []string{"message", "edited_message"},
	})
	if err != nil {
		return nil, classify(fmt.Errorf("getUpdates: %w", err))
	}
	var resp updatesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("getUpdates decode: %w", err)
	}
	return chatIDs(resp.Result), nil
}

func chatIDs(updates []tele.Update) []int64 {
	out := make([]int64, 0, len(updates))
	for _, u := range updates {
		m := u.Message
		if m == nil {
			m = u.EditedMessage
		}
		if m == nil || m.Chat == nil {
			continue
		}
		out = append(out, m.Chat.ID)
	}
	return out
}

func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		return classify(fmt.Errorf("sendMessage chat=%d: %w", chatID, err))
	}
	return nil
}

// classify marks flood control, 5xx API errors and transport failures as
// retry.KindNetwork. API rejections (blocked, chat not found) stay unmarked.
func classify(err error) error {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return retry.Mark(retry.KindNetwork, err)
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
			return retry.Mark(retry.KindNetwork, err)
		}
		return err
	}
	if isNetworkFault(err) {
		return retry.Mark(retry.KindNetwork, err)
	}
	return err
}

func isNetworkFault(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, context.DeadlineExceeded)
}
