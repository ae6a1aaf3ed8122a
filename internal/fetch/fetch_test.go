package fetch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"scoutbot/internal/retry"
	"scoutbot/pkg/logx"
)

// scriptedPage serves contents[i] on the i-th Content call, repeating the
// last entry once the script runs out.
type scriptedPage struct {
	contents []string
	errs     []error
	navErr   error
	reads    int
	visited  []string
}

func (p *scriptedPage) Navigate(_ context.Context, url string) error {
	p.visited = append(p.visited, url)
	return p.navErr
}

func (p *scriptedPage) Content(context.Context) (string, error) {
	i := p.reads
	p.reads++
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	if len(p.contents) == 0 {
		return "", nil
	}
	if i >= len(p.contents) {
		i = len(p.contents) - 1
	}
	return p.contents[i], nil
}

func (p *scriptedPage) Close() error { return nil }

func newTestFetcher(p *scriptedPage) *Fetcher {
	f := New(p, logx.Nop())
	f.PollInterval = time.Microsecond
	return f
}

const emptyPage = `<html><body><div id="loading"></div></body></html>`

func TestFindAllStopsOnFirstMatch(t *testing.T) {
	contents := make([]string, 0, 11)
	for i := 0; i < 9; i++ {
		contents = append(contents, emptyPage)
	}
	contents = append(contents,
		`<html><body><ul><li class="item">first</li></ul></body></html>`,
		`<html><body><ul><li class="item">a</li><li class="item">b</li></ul></body></html>`,
	)
	p := &scriptedPage{contents: contents}
	f := newTestFetcher(p)

	got := f.FindAll(context.Background(), "li.item", 10)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Text() != "first" {
		t.Fatalf("text = %q, want first", got[0].Text())
	}
	if p.reads != 10 {
		t.Fatalf("polls = %d, want 10", p.reads)
	}
}

func TestFindAllReturnsEverything(t *testing.T) {
	p := &scriptedPage{contents: []string{`<ul><li>a</li><li>b</li><li>c</li></ul>`}}
	f := newTestFetcher(p)

	got := f.FindAll(context.Background(), "li", 0)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	var texts []string
	for _, s := range got {
		texts = append(texts, s.Text())
	}
	if strings.Join(texts, ",") != "a,b,c" {
		t.Fatalf("texts = %v", texts)
	}
}

func TestFindAllExhaustionReturnsEmpty(t *testing.T) {
	p := &scriptedPage{contents: []string{emptyPage}}
	f := newTestFetcher(p)

	got := f.FindAll(context.Background(), "li.item", 4)
	if got == nil || len(got) != 0 {
		t.Fatalf("got %v, want empty non-nil slice", got)
	}
	if p.reads != 4 {
		t.Fatalf("polls = %d, want 4", p.reads)
	}
}

func TestFindAllRetriesDriverFaults(t *testing.T) {
	p := &scriptedPage{
		errs:     []error{retry.Mark(retry.KindDriver, errors.New("target closed")), errors.New("unmarked fault")},
		contents: []string{"", "", `<p class="x">ok</p>`},
	}
	f := newTestFetcher(p)

	got := f.FindAll(context.Background(), "p.x", 5)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if p.reads != 3 {
		t.Fatalf("polls = %d, want 3", p.reads)
	}
}

func TestFindAllBadSelectorIsRetriedThenEmpty(t *testing.T) {
	p := &scriptedPage{contents: []string{`<p>x</p>`}}
	f := newTestFetcher(p)

	got := f.FindAll(context.Background(), "p[", 3)
	if len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
	if p.reads != 3 {
		t.Fatalf("polls = %d, want 3", p.reads)
	}
}

func TestFindOneNeverMatches(t *testing.T) {
	p := &scriptedPage{contents: []string{emptyPage}}
	f := newTestFetcher(p)

	sel, ok := f.FindOne(context.Background(), "div.article", 10)
	if ok || sel != nil {
		t.Fatalf("FindOne = (%v, %v), want absent", sel, ok)
	}
	if p.reads != 10 {
		t.Fatalf("polls = %d, want 10", p.reads)
	}
}

func TestFindOneTurnsBreaksIntoNewlines(t *testing.T) {
	p := &scriptedPage{contents: []string{
		`<div class="body">line one<br>line two<BR/>line three<br />end</div><div class="body">second</div>`,
	}}
	f := newTestFetcher(p)

	sel, ok := f.FindOne(context.Background(), "div.body", 0)
	if !ok {
		t.Fatal("FindOne found nothing")
	}
	want := "line one\nline two\nline three\nend"
	if got := sel.Text(); got != want {
		t.Fatalf("text = %q, want %q", got, want)
	}
}

func TestNavigate(t *testing.T) {
	p := &scriptedPage{}
	f := newTestFetcher(p)
	if !f.Navigate(context.Background(), "https://example.com") {
		t.Fatal("Navigate should succeed")
	}

	p.navErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	if f.Navigate(context.Background(), "https://nope.invalid") {
		t.Fatal("Navigate should report false on error")
	}
	if len(p.visited) != 2 {
		t.Fatalf("visited = %v", p.visited)
	}
}
