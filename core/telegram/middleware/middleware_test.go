package middleware

import (
	"errors"
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	chat   *tele.Chat
	sender *tele.User
	store  map[string]interface{}
}

func newFakeContext(chatID, userID int64) *fakeContext {
	return &fakeContext{
		chat:   &tele.Chat{ID: chatID, Type: tele.ChatGroup},
		sender: &tele.User{ID: userID},
		store:  map[string]interface{}{},
	}
}

func (f *fakeContext) Chat() *tele.Chat              { return f.chat }
func (f *fakeContext) Sender() *tele.User            { return f.sender }
func (f *fakeContext) Text() string                  { return "" }
func (f *fakeContext) Update() tele.Update           { return tele.Update{ID: 1} }
func (f *fakeContext) Get(key string) interface{}    { return f.store[key] }
func (f *fakeContext) Set(key string, v interface{}) { f.store[key] = v }

func TestAccessAllowed(t *testing.T) {
	opts := AccessOptions{AdminID: 7, ChatRecipient: "-100200"}
	cases := []struct {
		name   string
		ctx    *fakeContext
		expect bool
	}{
		{"admin anywhere", newFakeContext(1, 7), true},
		{"report chat", newFakeContext(-100200, 3), true},
		{"stranger", newFakeContext(1, 3), false},
	}
	for _, tc := range cases {
		if got := opts.Allowed(tc.ctx); got != tc.expect {
			t.Errorf("%s: Allowed = %v", tc.name, got)
		}
	}

	channel := newFakeContext(-1009, 3)
	channel.chat.Username = "smp_reports"
	if !(AccessOptions{ChatRecipient: "@smp_reports"}).Allowed(channel) {
		t.Error("channel username should match @recipient")
	}
	if (AccessOptions{}).Allowed(newFakeContext(1, 0)) {
		t.Error("empty options must deny")
	}
}

func TestRestrictedMiddlewareRejects(t *testing.T) {
	var ran, rejected bool
	h := RestrictedMiddleware(AccessOptions{AdminID: 7, OnReject: func(tele.Context) error {
		rejected = true
		return nil
	}})(func(tele.Context) error {
		ran = true
		return nil
	})

	if err := h(newFakeContext(1, 3)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if ran || !rejected {
		t.Fatalf("ran=%v rejected=%v", ran, rejected)
	}
	if err := h(newFakeContext(1, 7)); err != nil || !ran {
		t.Fatalf("admin should pass: ran=%v err=%v", ran, err)
	}
}

func TestRateLimitPerUser(t *testing.T) {
	now := time.Date(2025, 9, 29, 9, 0, 0, 0, time.UTC)
	var handled, limited int
	h := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Now:       func() time.Time { return now },
		OnLimited: func(tele.Context) error { limited++; return nil },
	})(func(tele.Context) error { handled++; return nil })

	_ = h(newFakeContext(1, 7))
	_ = h(newFakeContext(1, 7))
	_ = h(newFakeContext(1, 8))
	now = now.Add(time.Second)
	_ = h(newFakeContext(1, 7))

	if handled != 3 || limited != 1 {
		t.Fatalf("handled=%d limited=%d", handled, limited)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(newFakeContext(1, 7))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v", err)
	}

	want := errors.New("plain")
	if got := RecoverMiddleware(func(tele.Context) error { return want })(newFakeContext(1, 7)); got != want {
		t.Fatalf("err = %v, want passthrough", got)
	}
}

func TestLoggerMiddlewareCachesContext(t *testing.T) {
	c := newFakeContext(5, 7)
	called := false
	if err := LoggerMiddleware(func(tele.Context) error { called = true; return nil })(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !called || len(c.store) != 1 {
		t.Fatalf("called=%v store=%v", called, c.store)
	}
}
