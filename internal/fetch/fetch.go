// Package fetch polls a rendered page for elements matching a CSS selector.
//
// Pages render asynchronously, so an empty match is not an answer: the
// fetcher re-reads the page once per poll interval until something matches
// or the poll budget is spent. Exhaustion is not an error, it yields an
// empty result.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"scoutbot/internal/browser"
	"scoutbot/internal/retry"
	"scoutbot/pkg/logx"
)

const (
	DefaultPolls        = 10
	DefaultPollInterval = time.Second
)

var errNoMatch = errors.New("no match yet")

var reLineBreak = regexp.MustCompile(`(?i)<br\s*/?>`)

// Scraper is the capability site-specific scrapers build on.
type Scraper interface {
	Navigate(ctx context.Context, url string) bool
	FindAll(ctx context.Context, selector string, timeoutSeconds int) []*goquery.Selection
	FindOne(ctx context.Context, selector string, timeoutSeconds int) (*goquery.Selection, bool)
}

// Fetcher implements Scraper over a browser.Page.
type Fetcher struct {
	page browser.Page
	log  logx.Logger

	// Polls is used when a call passes timeoutSeconds <= 0.
	Polls        int
	PollInterval time.Duration
}

var _ Scraper = (*Fetcher)(nil)

func New(page browser.Page, log logx.Logger) *Fetcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{page: page, log: log, Polls: DefaultPolls, PollInterval: DefaultPollInterval}
}

// Navigate loads url. Failures are logged and reported as false.
func (f *Fetcher) Navigate(ctx context.Context, url string) bool {
	if err := f.page.Navigate(ctx, url); err != nil {
		f.log.Warn("navigation failed", logx.String("op", "navigate"), logx.String("url", url), logx.Err(err))
		return false
	}
	return true
}

// FindAll returns every element matching selector, polling up to
// timeoutSeconds times. It returns an empty, non-nil slice when nothing
// matched in time.
func (f *Fetcher) FindAll(ctx context.Context, selector string, timeoutSeconds int) []*goquery.Selection {
	found, err := retry.Do(ctx, f.policy(timeoutSeconds), f.log, "find_all", func(c context.Context) ([]*goquery.Selection, error) {
		doc, err := f.document(c, false)
		if err != nil {
			return nil, err
		}
		m, err := compile(selector)
		if err != nil {
			return nil, err
		}
		sel := doc.FindMatcher(m)
		if sel.Length() == 0 {
			return nil, retry.Mark(retry.KindPending, errNoMatch)
		}
		return split(sel), nil
	})
	if err != nil {
		f.log.Info("no elements found", logx.String("selector", selector), logx.Err(err))
		return []*goquery.Selection{}
	}
	return found
}

// FindOne returns the first element matching selector. <br> tags are read
// as newlines so Text() keeps line structure.
func (f *Fetcher) FindOne(ctx context.Context, selector string, timeoutSeconds int) (*goquery.Selection, bool) {
	found, err := retry.Do(ctx, f.policy(timeoutSeconds), f.log, "find_one", func(c context.Context) (*goquery.Selection, error) {
		doc, err := f.document(c, true)
		if err != nil {
			return nil, err
		}
		m, err := compile(selector)
		if err != nil {
			return nil, err
		}
		sel := doc.FindMatcher(m).First()
		if sel.Length() == 0 {
			return nil, retry.Mark(retry.KindPending, errNoMatch)
		}
		return sel, nil
	})
	if err != nil {
		f.log.Info("no element found", logx.String("selector", selector), logx.Err(err))
		return nil, false
	}
	return found, true
}

func (f *Fetcher) policy(timeoutSeconds int) retry.Policy {
	polls := timeoutSeconds
	if polls <= 0 {
		polls = f.Polls
	}
	return retry.Policy{
		MaxAttempts: polls,
		Delay:       f.PollInterval,
		Retriable:   []retry.Kind{retry.KindDriver, retry.KindPending},
	}
}

func (f *Fetcher) document(ctx context.Context, breaksAsNewlines bool) (*goquery.Document, error) {
	html, err := f.page.Content(ctx)
	if err != nil {
		if retry.KindOf(err) == "" {
			err = retry.Mark(retry.KindDriver, err)
		}
		return nil, err
	}
	if breaksAsNewlines {
		html = reLineBreak.ReplaceAllString(html, "\n")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, retry.Mark(retry.KindDriver, fmt.Errorf("parse html: %w", err))
	}
	return doc, nil
}

// compile parses selector. A bad selector is treated like any other page
// fault and retried until the poll budget runs out.
func compile(selector string) (goquery.Matcher, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, retry.Mark(retry.KindDriver, fmt.Errorf("selector %q: %w", selector, err))
	}
	return m, nil
}

func split(sel *goquery.Selection) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}
