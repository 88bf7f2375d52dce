package notify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/vishn-ui/tracker/pkg/logx"
)

// Config controls the Telegram delivery channel.
type Config struct {
	Token       string
	ChatID      int64
	SendTimeout time.Duration // per-message HTTP timeout
	RatePerSec  int
	QueueSize   int
}

// Telegram sends messages to a fixed chat via the Bot API. Messages are
// queued and delivered by a single worker so a slow or unreachable API
// never stalls the caller.
type Telegram struct {
	log logx.Logger
	bot *tele.Bot
	to  tele.Recipient

	limiter *rate.Limiter
	queue   chan string

	mu      sync.Mutex
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

func NewTelegram(cfg Config, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Client: &http.Client{Timeout: cfg.SendTimeout},
	})
	if err != nil {
		return nil, err
	}

	return &Telegram{
		log:     log,
		bot:     bot,
		to:      tele.ChatID(cfg.ChatID),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		queue:   make(chan string, cfg.QueueSize),
	}, nil
}

// Start launches the delivery worker. Idempotent.
func (t *Telegram) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}
	wctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.workers.Add(1)
	go func() {
		defer t.workers.Done()
		t.worker(wctx)
	}()
}

// Stop halts the worker. Queued messages that have not been sent yet are
// dropped; delivery is best-effort by contract.
func (t *Telegram) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
		t.workers.Wait()
	}
}

// Notify enqueues a message. It never blocks: a full queue is reported as
// ErrQueueFull and the message is dropped.
func (t *Telegram) Notify(ctx context.Context, message string) error {
	t.mu.Lock()
	running := t.cancel != nil
	t.mu.Unlock()
	if !running {
		return ErrStopped
	}
	select {
	case t.queue <- message:
		return nil
	default:
		return ErrQueueFull
	}
}

func (t *Telegram) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-t.queue:
			if err := t.limiter.Wait(ctx); err != nil {
				return
			}
			_, err := t.bot.Send(t.to, msg, &tele.SendOptions{
				ParseMode:             tele.ModeHTML,
				DisableWebPagePreview: true,
			})
			if err != nil {
				t.log.Warn("telegram send failed", logx.Err(err))
				continue
			}
			t.log.Debug("telegram notification sent")
		}
	}
}
