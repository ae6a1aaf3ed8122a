package watch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"scoutbot/internal/fetch"
	"scoutbot/internal/recency"
	"scoutbot/pkg/logx"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const (
	DefaultHistorySize = 30
	DefaultSchedule    = "10m"

	// Telegram rejects messages above 4096 characters.
	maxMessageRunes = 4000
)

var (
	ErrUnknownTarget = errors.New("unknown target")
	ErrNavigate      = errors.New("navigation failed")
)

// Target describes one watched page.
//
// Key, Title and Link use the same value syntax: "sel@attr" reads attr of the
// first sel inside the item, "@attr" reads attr of the item itself, and a
// bare selector reads its text. Empty Key falls back to the link, then to the
// item text.
type Target struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Items    string `json:"items"`
	Key      string `json:"key,omitempty"`
	Title    string `json:"title,omitempty"`
	Link     string `json:"link,omitempty"`
	Schedule string `json:"schedule,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Item is one element extracted from a target page.
type Item struct {
	Key   string
	Title string
	Link  string
}

// Notifier broadcasts a message and reports whether any recipient got it.
type Notifier interface {
	Broadcast(ctx context.Context, message string) bool
}

// SeenStore persists recently seen keys per target.
type SeenStore interface {
	LoadSeen(ctx context.Context, target string) ([]string, error)
	SaveSeen(ctx context.Context, target string, keys []string) error
}

type Options struct {
	HistorySize     int
	NotifyOnStart   bool
	DefaultSchedule string
	// WaitSeconds bounds element polling per lookup; <= 0 uses the fetcher default.
	WaitSeconds int
	Store       SeenStore
}

// ScanReport summarizes one scan of one target.
type ScanReport struct {
	RunID    string
	Target   string
	Found    int
	New      []Item
	Primed   bool
	Notified int
	Took     time.Duration
}

type targetState struct {
	target Target
	sched  Schedule
	entry  cron.EntryID

	seen    *recency.Set[string]
	scanned bool
}

// Watcher scans targets on their schedules and broadcasts unseen items.
// The scraper drives a single browser page, so scans never overlap.
type Watcher struct {
	scraper fetch.Scraper
	notify  Notifier
	opts    Options
	log     logx.Logger

	scanMu sync.Mutex

	mu      sync.Mutex
	targets map[string]*targetState
	cron    *cron.Cron
	runCtx  context.Context
}

func New(scraper fetch.Scraper, notify Notifier, targets []Target, opts Options, log logx.Logger) (*Watcher, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if strings.TrimSpace(opts.DefaultSchedule) == "" {
		opts.DefaultSchedule = DefaultSchedule
	}
	w := &Watcher{
		scraper: scraper,
		notify:  notify,
		opts:    opts,
		log:     log,
		targets: map[string]*targetState{},
	}
	if err := w.Apply(targets); err != nil {
		return nil, err
	}
	return w, nil
}

// Apply replaces the target list. Histories of targets whose name survives
// are kept; removed targets are dropped. When the watcher is running, jobs
// are rescheduled.
func (w *Watcher) Apply(targets []Target) error {
	next := make(map[string]*targetState, len(targets))
	for _, t := range targets {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			return fmt.Errorf("target name required")
		}
		if _, dup := next[t.Name]; dup {
			return fmt.Errorf("duplicate target %q", t.Name)
		}
		raw := t.Schedule
		if strings.TrimSpace(raw) == "" {
			raw = w.opts.DefaultSchedule
		}
		sc, err := ParseSchedule(raw)
		if err != nil {
			return fmt.Errorf("target %q: %w", t.Name, err)
		}
		next[t.Name] = &targetState{target: t, sched: sc}
	}

	// Histories are owned by scans; wait for a running one.
	w.scanMu.Lock()
	defer w.scanMu.Unlock()
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, st := range next {
		if old, ok := w.targets[name]; ok {
			st.seen = old.seen
			st.scanned = old.scanned
		}
	}
	if w.cron != nil {
		for _, old := range w.targets {
			w.cron.Remove(old.entry)
		}
		for _, st := range next {
			w.scheduleLocked(st)
		}
	}
	w.targets = next
	w.log.Info("targets applied", logx.Int("count", len(next)), logx.Strings("names", sortedNames(next)))
	return nil
}

// Targets returns the configured targets sorted by name.
func (w *Watcher) Targets() []Target {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Target, 0, len(w.targets))
	for _, name := range sortedNames(w.targets) {
		out = append(out, w.targets[name].target)
	}
	return out
}

// Start schedules every target. Jobs run until Stop or ctx is done.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return
	}
	cl := cronLogger{log: w.log}
	w.runCtx = ctx
	w.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for _, st := range w.targets {
		w.scheduleLocked(st)
	}
	w.cron.Start()
	w.log.Info("watcher started", logx.Int("targets", len(w.targets)))
}

// Stop stops triggering and waits for a running scan, bounded by ctx.
func (w *Watcher) Stop(ctx context.Context) {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	w.log.Info("watcher stopped")
}

func (w *Watcher) scheduleLocked(st *targetState) {
	name := st.target.Name
	ctx := w.runCtx
	st.entry = w.cron.Schedule(st.sched, cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.Scan(ctx, name); err != nil && !errors.Is(err, ErrUnknownTarget) {
			w.log.Warn("scan failed", logx.String("target", name), logx.Err(err))
		}
	}))
	w.log.Debug("target scheduled",
		logx.String("target", name),
		logx.String("schedule", st.sched.Source),
		logx.String("next", st.sched.Next(time.Now()).Format(time.RFC3339)),
	)
}

// ScanAll scans every target once, in name order.
func (w *Watcher) ScanAll(ctx context.Context) []ScanReport {
	w.mu.Lock()
	names := sortedNames(w.targets)
	w.mu.Unlock()

	reports := make([]ScanReport, 0, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		rep, err := w.Scan(ctx, name)
		if err != nil {
			w.log.Warn("scan failed", logx.String("target", name), logx.Err(err))
			continue
		}
		reports = append(reports, rep)
	}
	return reports
}

// Scan visits one target, records unseen items and broadcasts them.
//
// The first scan of a target without stored history only records what is
// on the page unless NotifyOnStart is set.
func (w *Watcher) Scan(ctx context.Context, name string) (ScanReport, error) {
	w.scanMu.Lock()
	defer w.scanMu.Unlock()

	start := time.Now()
	rep := ScanReport{RunID: uuid.NewString(), Target: name}
	log := w.log.With(logx.String("run", rep.RunID), logx.String("target", name))

	w.mu.Lock()
	st, ok := w.targets[name]
	var t Target
	if ok {
		t = st.target
	}
	w.mu.Unlock()
	if !ok {
		return rep, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}

	if st.seen == nil {
		seen, err := w.loadSeen(ctx, name)
		if err != nil {
			return rep, err
		}
		st.seen = seen
	}
	prime := !st.scanned && st.seen.Len() == 0 && !w.opts.NotifyOnStart

	log.Debug("scan started", logx.String("url", t.URL))
	if !w.scraper.Navigate(ctx, t.URL) {
		return rep, fmt.Errorf("%w: %s", ErrNavigate, t.URL)
	}
	items := w.extract(t, w.scraper.FindAll(ctx, t.Items, w.opts.WaitSeconds))
	rep.Found = len(items)

	// Only the newest Cap() items fit in the history. Walking older ones
	// would evict keys seen in this same scan and resend them next time.
	if n := st.seen.Cap(); len(items) > n {
		items = items[:n]
	}

	// Pages list newest first; walk oldest first so the newest key ends up
	// at the front of the recency set. A key is recorded only once it was
	// delivered (or while priming), so failed items are retried next scan.
	recorded := 0
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		if st.seen.Have(it.Key) {
			continue
		}
		rep.New = append(rep.New, it)
		if !prime {
			if !w.notify.Broadcast(ctx, w.message(ctx, t, it)) {
				log.Warn("item not delivered; will retry", logx.String("key", it.Key))
				continue
			}
			rep.Notified++
		}
		st.seen.Put(it.Key)
		recorded++
	}
	// An empty first page is often one that has not rendered yet; keep
	// priming until something shows up.
	if rep.Found > 0 {
		st.scanned = true
	}
	rep.Primed = prime

	if w.opts.Store != nil && recorded > 0 {
		if err := w.opts.Store.SaveSeen(ctx, name, st.seen.Items()); err != nil {
			log.Warn("save seen failed", logx.Err(err))
		}
	}

	rep.Took = time.Since(start)
	log.Info("scan finished",
		logx.Int("found", rep.Found),
		logx.Int("new", len(rep.New)),
		logx.Int("notified", rep.Notified),
		logx.Bool("primed", rep.Primed),
		logx.Duration("took", rep.Took),
	)
	return rep, nil
}

func (w *Watcher) loadSeen(ctx context.Context, name string) (*recency.Set[string], error) {
	var keys []string
	if w.opts.Store != nil {
		var err error
		keys, err = w.opts.Store.LoadSeen(ctx, name)
		if err != nil {
			w.log.Warn("load seen failed; starting empty", logx.String("target", name), logx.Err(err))
			keys = nil
		}
	}
	return recency.New(keys, w.opts.HistorySize)
}

func (w *Watcher) extract(t Target, sels []*goquery.Selection) []Item {
	items := make([]Item, 0, len(sels))
	for _, s := range sels {
		it := Item{
			Title: valueOf(s, t.Title),
			Link:  resolveLink(t.URL, valueOf(s, t.Link)),
		}
		if t.Title == "" {
			it.Title = collapse(s.Text())
		}
		switch {
		case t.Key != "":
			it.Key = valueOf(s, t.Key)
		case it.Link != "":
			it.Key = it.Link
		default:
			it.Key = collapse(s.Text())
		}
		if it.Key == "" {
			continue
		}
		items = append(items, it)
	}
	return items
}

func (w *Watcher) message(ctx context.Context, t Target, it Item) string {
	var b strings.Builder
	b.WriteString(it.Title)
	if it.Link != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(it.Link)
	}
	if t.Detail != "" && it.Link != "" && w.scraper.Navigate(ctx, it.Link) {
		if sel, ok := w.scraper.FindOne(ctx, t.Detail, w.opts.WaitSeconds); ok {
			if text := strings.TrimSpace(sel.Text()); text != "" {
				b.WriteString("\n\n")
				b.WriteString(text)
			}
		}
	}
	return truncateRunes(b.String(), maxMessageRunes)
}

// valueOf evaluates a "sel@attr", "@attr" or "sel" expression against s.
func valueOf(s *goquery.Selection, expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ""
	}
	sel, attr := expr, ""
	if i := strings.LastIndex(expr, "@"); i >= 0 {
		sel, attr = strings.TrimSpace(expr[:i]), strings.TrimSpace(expr[i+1:])
	}
	node := s
	if sel != "" {
		node = s.Find(sel).First()
	}
	if attr != "" {
		v, _ := node.Attr(attr)
		return strings.TrimSpace(v)
	}
	return collapse(node.Text())
}

func resolveLink(base, link string) string {
	if link == "" {
		return ""
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	b, err := url.Parse(base)
	if err != nil {
		return link
	}
	return b.ResolveReference(ref).String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func sortedNames(m map[string]*targetState) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// cronLogger routes cron's internal logging through logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Trace("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
