package router

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/smpbot/core/telegram"
	"github.com/m3rciful/smpbot/core/telegram/commands"
	"github.com/m3rciful/smpbot/core/telegram/middleware"
)

type fakeContext struct {
	tele.Context
	text  string
	user  int64
	store map[string]interface{}
}

func newFakeContext(text string, user int64) *fakeContext {
	return &fakeContext{text: text, user: user, store: map[string]interface{}{}}
}

func (f *fakeContext) Chat() *tele.Chat              { return &tele.Chat{ID: 1, Type: tele.ChatPrivate} }
func (f *fakeContext) Sender() *tele.User            { return &tele.User{ID: f.user} }
func (f *fakeContext) Text() string                  { return f.text }
func (f *fakeContext) Update() tele.Update           { return tele.Update{ID: 3} }
func (f *fakeContext) Get(key string) interface{}    { return f.store[key] }
func (f *fakeContext) Set(key string, v interface{}) { f.store[key] = v }

func testRegistry(calls *[]string) *tg.Registry {
	record := func(name string) tele.HandlerFunc {
		return func(tele.Context) error {
			*calls = append(*calls, name)
			return nil
		}
	}
	reg := tg.NewRegistry()
	reg.RegisterCommand("/status", commands.Command{Handler: record("status"), Description: "s", Aliases: []string{"st"}})
	reg.RegisterCommand("/report", commands.Command{Handler: record("report"), Description: "r", Restricted: true})
	reg.SetTextFallback(record("fallback"))
	return reg
}

func TestCommandRoutesSortedWithAliases(t *testing.T) {
	var calls []string
	routes := CommandRoutes(testRegistry(&calls), CommandRouteOptions{})
	var endpoints []string
	for _, r := range routes {
		endpoints = append(endpoints, r.Endpoint.(string))
	}
	want := []string{"/report", "/status", "/st"}
	if len(endpoints) != len(want) {
		t.Fatalf("endpoints = %v", endpoints)
	}
	for i := range want {
		if endpoints[i] != want[i] {
			t.Fatalf("endpoints = %v, want %v", endpoints, want)
		}
	}
}

func TestCommandRoutesRestricted(t *testing.T) {
	var calls []string
	denied := 0
	routes := CommandRoutes(testRegistry(&calls), CommandRouteOptions{Access: middleware.AccessOptions{
		AdminID:  7,
		OnReject: func(tele.Context) error { denied++; return nil },
	}})
	report := routes[0]

	_ = report.Handler(newFakeContext("/report", 3))
	_ = report.Handler(newFakeContext("/report", 7))
	if denied != 1 || len(calls) != 1 || calls[0] != "report" {
		t.Fatalf("denied=%d calls=%v", denied, calls)
	}
}

func TestTextRoute(t *testing.T) {
	var calls []string
	route := TextRoute(testRegistry(&calls))
	if route.Endpoint != tele.OnText {
		t.Fatalf("endpoint = %v", route.Endpoint)
	}
	for _, text := range []string{"/status@smp_bot", "st", "/report", "hello"} {
		if err := route.Handler(newFakeContext(text, 3)); err != nil {
			t.Fatalf("%q: %v", text, err)
		}
	}
	want := []string{"status", "status", "fallback", "fallback"}
	for i := range want {
		if i >= len(calls) || calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestSummarizedPassesError(t *testing.T) {
	want := errors.New("nope")
	if err := summarized("x", func(tele.Context) error { return want })(newFakeContext("", 1)); err != want {
		t.Fatalf("err = %v", err)
	}
}

func TestHandlerName(t *testing.T) {
	for in, want := range map[string]string{"/Status": "status", " /report now ": "report_now", "": "unknown"} {
		if got := handlerName(in); got != want {
			t.Errorf("handlerName(%q) = %q, want %q", in, got, want)
		}
	}
}
