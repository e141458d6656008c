package logger

import (
	"context"
	"strconv"
)

type fieldsKey struct{}

// Fields are the correlation values a context carries into every log line.
type Fields struct {
	RID      string
	RunID    int64
	Trigger  string
	UpdateID int
	UserID   int64
	ChatID   int64
	Handler  string
}

// FieldsFrom returns the correlation values stored in ctx.
func FieldsFrom(ctx context.Context) Fields {
	if ctx == nil {
		return Fields{}
	}
	f, _ := ctx.Value(fieldsKey{}).(Fields)
	return f
}

func withFields(ctx context.Context, edit func(*Fields)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	f := FieldsFrom(ctx)
	edit(&f)
	return context.WithValue(ctx, fieldsKey{}, f)
}

// WithRID sets the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withFields(ctx, func(f *Fields) { f.RID = rid })
}

// WithUpdateMeta records the Telegram update, sender and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withFields(ctx, func(f *Fields) {
		f.UpdateID = updateID
		f.UserID = userID
		f.ChatID = chatID
	})
}

// WithRun tags ctx with a report run. Zero values leave the previous ones.
func WithRun(ctx context.Context, runID int64, trigger string) context.Context {
	return withFields(ctx, func(f *Fields) {
		if runID != 0 {
			f.RunID = runID
		}
		if trigger != "" {
			f.Trigger = trigger
		}
	})
}

// WithHandler names the bot handler serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withFields(ctx, func(f *Fields) { f.Handler = handler })
}

func RIDFrom(ctx context.Context) string     { return FieldsFrom(ctx).RID }
func RunIDFrom(ctx context.Context) int64    { return FieldsFrom(ctx).RunID }
func TriggerFrom(ctx context.Context) string { return FieldsFrom(ctx).Trigger }
func HandlerFrom(ctx context.Context) string { return FieldsFrom(ctx).Handler }
func UserIDFrom(ctx context.Context) int64   { return FieldsFrom(ctx).UserID }
func ChatIDFrom(ctx context.Context) int64   { return FieldsFrom(ctx).ChatID }
func UpdateIDFrom(ctx context.Context) int   { return FieldsFrom(ctx).UpdateID }

// BuildRID formats a correlation id as updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return strconv.Itoa(updateID) + ":" + strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10)
}

// apply copies the non-zero values into e without overriding explicit attrs.
func (f Fields) apply(e *entry) {
	if f.RID != "" {
		e.setDefault("rid", f.RID)
	}
	if f.RunID != 0 {
		e.setDefault("run_id", f.RunID)
	}
	if f.Trigger != "" {
		e.setDefault("trigger", f.Trigger)
	}
	if f.UpdateID != 0 {
		e.setDefault("update_id", int64(f.UpdateID))
	}
	if f.UserID != 0 {
		e.setDefault("user_id", f.UserID)
	}
	if f.ChatID != 0 {
		e.setDefault("chat_id", f.ChatID)
	}
	if f.Handler != "" {
		e.setDefault("handler", f.Handler)
	}
}
