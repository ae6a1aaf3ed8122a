package notifier

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"scoutbot/internal/retry"
	"scoutbot/internal/transport"
	"scoutbot/pkg/logx"
)

const previewRunes = 35

// RecipientStore persists discovered recipients across restarts.
type RecipientStore interface {
	LoadRecipients(ctx context.Context) ([]int64, error)
	AddRecipients(ctx context.Context, ids []int64) error
}

type Options struct {
	// Policy supplies attempts and delay; retriable kinds are chosen per operation.
	Policy       retry.Policy
	DiscoverWait time.Duration
	// RatePerSec paces deliveries; 0 disables pacing.
	RatePerSec int
	Store      RecipientStore
}

// Result lists which recipients a broadcast reached.
type Result struct {
	Sent   []int64
	Failed []int64
}

// Delivered reports whether at least one recipient got the message.
func (r Result) Delivered() bool { return len(r.Sent) > 0 }

type Dispatcher struct {
	log     logx.Logger
	bot     transport.Bot
	opts    Options
	limiter *rate.Limiter

	// broadcasts are serialized; mu also guards recipients.
	sendMu     sync.Mutex
	mu         sync.Mutex
	recipients *RecipientSet
}

// New connects through connect, retrying timeouts. Running out of attempts
// is fatal and returned as is.
func New(ctx context.Context, connect transport.Connector, seed []int64, opts Options, log logx.Logger) (*Dispatcher, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.DiscoverWait <= 0 {
		opts.DiscoverWait = 10 * time.Second
	}

	bot, err := retry.Do(ctx, opts.Policy.WithKinds(retry.KindTimeout), log, "connect", func(c context.Context) (transport.Bot, error) {
		return connect(c)
	})
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		log:        log,
		bot:        bot,
		opts:       opts,
		recipients: NewRecipientSet(seed...),
	}
	if opts.RatePerSec > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	if opts.Store != nil {
		ids, err := opts.Store.LoadRecipients(ctx)
		if err != nil {
			log.Warn("load recipients failed", logx.Err(err))
		} else {
			d.recipients.Union(ids)
		}
	}
	log.Info("dispatcher ready", logx.Int("recipients", d.recipients.Len()))
	return d, nil
}

// Bot returns the connected session.
func (d *Dispatcher) Bot() transport.Bot { return d.bot }

// Recipients returns the known recipients in ascending order.
func (d *Dispatcher) Recipients() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recipients.Sorted()
}

// DiscoverRecipients asks the bot who wrote recently. It does not touch the
// dispatcher's recipient set. Failures degrade to an empty result.
func (d *Dispatcher) DiscoverRecipients(ctx context.Context) []int64 {
	ids, err := retry.Do(ctx, d.opts.Policy.WithKinds(retry.KindNetwork), d.log, "discover_recipients",
		func(c context.Context) ([]int64, error) {
			return d.bot.RecentSenders(c, d.opts.DiscoverWait)
		})
	if err != nil {
		d.log.Warn("recipient discovery failed", logx.Err(err))
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// Broadcast sends message to every known recipient and reports whether at
// least one delivery succeeded.
func (d *Dispatcher) Broadcast(ctx context.Context, message string) bool {
	return d.Deliver(ctx, message).Delivered()
}

// Deliver is Broadcast with the per-recipient outcome.
func (d *Dispatcher) Deliver(ctx context.Context, message string) Result {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	discovered := d.DiscoverRecipients(ctx)
	d.mu.Lock()
	added := d.recipients.Union(discovered)
	targets := d.recipients.Sorted()
	d.mu.Unlock()

	if len(added) > 0 {
		d.log.Info("new recipients", logx.Int64s("chat_ids", added))
		if d.opts.Store != nil {
			if err := d.opts.Store.AddRecipients(ctx, added); err != nil {
				d.log.Warn("persist recipients failed", logx.Err(err))
			}
		}
	}

	var res Result
	if len(targets) == 0 {
		d.log.Warn("message not sent: no recipients", logx.String("preview", Preview(message)))
		return res
	}

	for _, id := range targets {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				res.Failed = append(res.Failed, id)
				continue
			}
		}
		_, err := retry.Do(ctx, d.opts.Policy.WithKinds(retry.KindNetwork), d.log.With(logx.Int64("chat_id", id)), "send_message",
			func(c context.Context) (struct{}, error) {
				return struct{}{}, d.bot.SendText(c, id, message)
			})
		if err != nil {
			res.Failed = append(res.Failed, id)
			continue
		}
		res.Sent = append(res.Sent, id)
	}

	if res.Delivered() {
		d.log.Info("message sent",
			logx.Int64s("sent", res.Sent),
			logx.Int64s("failed", res.Failed),
			logx.String("preview", Preview(message)),
		)
	} else {
		d.log.Warn("message delivery failed for every recipient",
			logx.Int64s("failed", res.Failed),
			logx.String("preview", Preview(message)),
		)
	}
	return res
}

// Preview flattens newlines and keeps the first 35 runes, for logs.
func Preview(message string) string {
	flat := strings.ReplaceAll(message, "\n", " ")
	r := []rune(flat)
	if len(r) > previewRunes {
		r = r[:previewRunes]
	}
	return string(r) + " ..."
}
