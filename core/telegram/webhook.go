package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/smpbot/core/config"
	"github.com/m3rciful/smpbot/core/logger"
)

const (
	secretHeader   = "X-Telegram-Bot-Api-Secret-Token"
	maxUpdateBytes = 1 << 20
)

// Webhook is a tele.Poller that receives updates over HTTP. It does not
// listen on its own; mount it on an existing mux.
type Webhook struct {
	hook   *tele.Webhook
	failed chan error

	mu   sync.RWMutex
	dest chan<- tele.Update
	stop chan struct{}
}

// NewWebhook builds the poller for a normalized webhook config.
func NewWebhook(cfg coreconfig.WebhookConfig) *Webhook {
	return &Webhook{
		hook: &tele.Webhook{
			AllowedUpdates: allowedUpdates,
			SecretToken:    cfg.SecretToken,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: cfg.PublicURL()},
		},
		failed: make(chan error, 1),
	}
}

// PublicURL is the address registered with Telegram.
func (w *Webhook) PublicURL() string { return w.hook.Endpoint.PublicURL }

// Failed delivers the setWebhook error if registration fails.
func (w *Webhook) Failed() <-chan error { return w.failed }

// Poll registers the webhook and accepts updates until stop is closed.
func (w *Webhook) Poll(b *tele.Bot, dest chan tele.Update, stop chan struct{}) {
	if err := b.SetWebhook(w.hook); err != nil {
		w.failed <- fmt.Errorf("telegram: set webhook: %s", SanitizeError(err))
		<-stop
		return
	}
	logger.TG.Info("webhook registered",
		slog.String("event", "webhook.set"),
		slog.String("public_url", w.PublicURL()),
	)

	w.mu.Lock()
	w.dest, w.stop = dest, stop
	w.mu.Unlock()

	<-stop

	w.mu.Lock()
	w.dest, w.stop = nil, nil
	w.mu.Unlock()
}

// ServeHTTP decodes one update and hands it to the bot.
func (w *Webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.Header().Set("Allow", http.MethodPost)
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !w.authorized(r) {
		logger.TG.LogAttrs(r.Context(), slog.LevelWarn, "",
			slog.String("event", "webhook.reject"),
			slog.String("cause", "secret token mismatch"),
		)
		http.Error(rw, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.mu.RLock()
	dest, stop := w.dest, w.stop
	w.mu.RUnlock()
	if dest == nil {
		http.Error(rw, "not ready", http.StatusServiceUnavailable)
		return
	}

	var upd tele.Update
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, maxUpdateBytes)).Decode(&upd); err != nil {
		var tooLarge *http.MaxBytesError
		code := http.StatusBadRequest
		if errors.As(err, &tooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		logger.TG.LogAttrs(r.Context(), slog.LevelWarn, "",
			slog.String("event", "webhook.decode"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		http.Error(rw, "bad update", code)
		return
	}

	select {
	case dest <- upd:
		rw.WriteHeader(http.StatusOK)
	case <-stop:
		http.Error(rw, "stopping", http.StatusServiceUnavailable)
	case <-r.Context().Done():
	}
}

func (w *Webhook) authorized(r *http.Request) bool {
	secret := w.hook.SecretToken
	if secret == "" {
		return true
	}
	got := r.Header.Get(secretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}
