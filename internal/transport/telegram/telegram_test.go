package telegram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"scoutbot/internal/retry"
	"scoutbot/pkg/logx"
)

const testToken = "123:abc"

type fakeAPI struct {
	mu    sync.Mutex
	sent  []string
	calls map[string]int
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.TrimPrefix(r.URL.Path, "/bot"+testToken+"/")
		body, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		if f.calls == nil {
			f.calls = map[string]int{}
		}
		f.calls[method]++
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "getMe":
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Scout","username":"scout_bot"}}`)
		case "getUpdates":
			_, _ = io.WriteString(w, `{"ok":true,"result":[
				{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":10,"type":"private"},"text":"/start"}},
				{"update_id":2,"message":{"message_id":2,"date":0,"chat":{"id":20,"type":"private"},"text":"hi"}},
				{"update_id":3,"edited_message":{"message_id":2,"date":0,"chat":{"id":30,"type":"private"},"text":"hi!"}}
			]}`)
		case "sendMessage":
			s := string(body)
			f.mu.Lock()
			f.sent = append(f.sent, s)
			f.mu.Unlock()
			switch {
			case strings.Contains(s, `"chat_id":"403"`):
				_, _ = io.WriteString(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
			case strings.Contains(s, `"chat_id":"500"`):
				_, _ = io.WriteString(w, `{"ok":false,"error_code":500,"description":"Internal Server Error"}`)
			default:
				_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":9,"date":0,"chat":{"id":10,"type":"private"},"text":"x"}}`)
			}
		default:
			_, _ = io.WriteString(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
		}
	})
}

func connectFake(t *testing.T) (*Bot, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	b, err := Connect(context.Background(), Config{
		Token:           testToken,
		URL:             srv.URL,
		RequestTimeout:  2 * time.Second,
		MaxDiscoverWait: time.Second,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return b, api
}

func TestConnectRequiresToken(t *testing.T) {
	if _, err := Connect(context.Background(), Config{Token: "  "}, logx.Nop()); !errors.Is(err, ErrNoToken) {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
}

func TestConnectUnreachableIsTimeoutKind(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Connect(context.Background(), Config{Token: testToken, URL: url, RequestTimeout: time.Second}, logx.Nop())
	if err == nil {
		t.Fatal("expected connect error")
	}
	if retry.KindOf(err) != retry.KindTimeout {
		t.Fatalf("kind = %q, want timeout (err=%v)", retry.KindOf(err), err)
	}
}

func TestRecentSenders(t *testing.T) {
	b, _ := connectFake(t)
	ids, err := b.RecentSenders(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentSenders: %v", err)
	}
	if !slices.Equal(ids, []int64{10, 20, 30}) {
		t.Fatalf("ids = %v, want [10 20 30]", ids)
	}
}

func TestSendTextClassifiesErrors(t *testing.T) {
	b, api := connectFake(t)
	ctx := context.Background()

	if err := b.SendText(ctx, 10, "hello"); err != nil {
		t.Fatalf("SendText ok chat: %v", err)
	}

	err := b.SendText(ctx, 403, "hello")
	if err == nil {
		t.Fatal("expected error for blocked chat")
	}
	if retry.KindOf(err) != "" {
		t.Fatalf("blocked chat should not be retriable, kind=%q", retry.KindOf(err))
	}

	err = b.SendText(ctx, 500, "hello")
	if retry.KindOf(err) != retry.KindNetwork {
		t.Fatalf("5xx kind = %q, want network (err=%v)", retry.KindOf(err), err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.sent) != 3 {
		t.Fatalf("sendMessage calls = %d, want 3", len(api.sent))
	}
}
