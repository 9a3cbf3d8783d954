package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	kit "seattlehumus/internal/transport"
	logx "seattlehumus/pkg/logx"
)

const (
	defaultTimeout = 10 * time.Second
	// Telegram allows roughly one message per second per chat.
	defaultRatePerSec = 1.0
	defaultBurst      = 3
)

type Config struct {
	Token string
	// Chat receives notifications; LogChat receives forwarded log lines.
	Chat    kit.ChatTarget
	LogChat kit.ChatTarget

	// APIURL overrides the Bot API endpoint (tests).
	APIURL string
	// Timeout bounds every Bot API request.
	Timeout time.Duration
	// Offline skips the getMe call at startup.
	Offline bool

	RatePerSec float64
	Burst      int
}

// ParseChatTarget accepts a numeric chat id ("-100123") or a public
// "@channel" name.
func ParseChatTarget(raw string) (kit.ChatTarget, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return kit.ChatTarget{}, errors.New("chat id is empty")
	}
	if strings.HasPrefix(raw, "@") {
		if len(raw) == 1 {
			return kit.ChatTarget{}, fmt.Errorf("invalid chat username %q", raw)
		}
		return kit.ChatTarget{Username: raw}, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return kit.ChatTarget{}, fmt.Errorf("invalid chat id %q", raw)
	}
	return kit.ChatTarget{ChatID: id}, nil
}

// recipient adapts a ChatTarget to telebot.
type recipient kit.ChatTarget

func (r recipient) Recipient() string {
	if r.Username != "" {
		return r.Username
	}
	return strconv.FormatInt(r.ChatID, 10)
}

// Adapter is a send-only Telegram bot.
type Adapter struct {
	cfg     Config
	log     logx.Logger
	bot     *tele.Bot
	limiter *rate.Limiter
	http    *http.Client
}

var _ kit.Sender = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.Chat.IsZero() {
		return nil, errors.New("telegram chat id is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	client := &http.Client{Timeout: cfg.Timeout}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.APIURL,
		Client:  client,
		Offline: cfg.Offline,
		OnError: func(err error, _ tele.Context) {
			log.Warn("telebot error", logx.Err(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Adapter{
		cfg:     cfg,
		log:     log,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		http:    client,
	}, nil
}

// SendText posts text to the notification chat. Long text is split into
// several messages.
func (a *Adapter) SendText(ctx context.Context, text string) error {
	return a.sendText(ctx, a.cfg.Chat, text)
}

// SendSticker posts a sticker by file id. An unknown file id is reported as
// kit.ErrInvalidSticker. As with text, ctx only bounds the rate limiter wait.
func (a *Adapter) SendSticker(ctx context.Context, stickerID string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	st := &tele.Sticker{File: tele.File{FileID: stickerID}}
	if _, err := a.bot.Send(recipient(a.cfg.Chat), st); err != nil {
		if isWrongFileID(err) {
			return fmt.Errorf("%w: %s: %v", kit.ErrInvalidSticker, stickerID, err)
		}
		return fmt.Errorf("send sticker: %w", err)
	}
	return nil
}

// SendLog posts a formatted log line to the log chat. It falls back to the
// notification chat when no log chat is configured.
func (a *Adapter) SendLog(ctx context.Context, text string) error {
	to := a.cfg.LogChat
	if to.IsZero() {
		to = a.cfg.Chat
	}
	return a.sendText(ctx, to, text)
}

// Close drops idle connections.
func (a *Adapter) Close() {
	a.http.CloseIdleConnections()
}

// ctx bounds the rate limiter wait only. bot.Send takes no context; the
// request is bounded by cfg.Timeout on the HTTP client.
func (a *Adapter) sendText(ctx context.Context, to kit.ChatTarget, text string) error {
	chunks := splitText(text, telegramTextLimit)
	opt := &tele.SendOptions{DisableWebPagePreview: true}
	for _, chunk := range chunks {
		if err := a.wait(ctx); err != nil {
			return err
		}
		if _, err := a.bot.Send(recipient(to), chunk, opt); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func (a *Adapter) wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return a.limiter.Wait(ctx)
}

// isWrongFileID matches only a 400 Bad Request whose description names an
// unknown file identifier.
func isWrongFileID(err error) bool {
	if err == nil {
		return false
	}
	var te *tele.Error
	if errors.As(err, &te) {
		return te.Code == http.StatusBadRequest &&
			strings.Contains(strings.ToLower(te.Description), "wrong file identifier")
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "wrong file identifier") &&
		(strings.Contains(s, "(400)") || strings.Contains(s, "bad request"))
}

const telegramTextLimit = 4000

// splitText splits long messages into chunks Telegram accepts, preferring
// newline boundaries.
func splitText(s string, limit int) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				// Avoid very small chunks.
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
