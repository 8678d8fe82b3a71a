package notifier

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const redacted = "<redacted>"

// redact hides the bot token, which is part of every Bot API URL and so
// leaks into transport errors.
func (t *TelegramNotifier) redact(err error) error {
	if err == nil || t.BotToken == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, t.BotToken) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, t.BotToken, redacted))
}

// leveledLogger adapts slog to retryablehttp.LeveledLogger with the token
// scrubbed from logged values.
type leveledLogger struct {
	log   *slog.Logger
	token string
}

func (l leveledLogger) scrub(kv []any) []any {
	out := make([]any, len(kv))
	for i, v := range kv {
		s := fmt.Sprint(v)
		if l.token != "" && strings.Contains(s, l.token) {
			out[i] = strings.ReplaceAll(s, l.token, redacted)
			continue
		}
		out[i] = v
	}
	return out
}

func (l leveledLogger) Error(msg string, kv ...any) { l.log.Error(msg, l.scrub(kv)...) }
func (l leveledLogger) Info(msg string, kv ...any)  { l.log.Debug(msg, l.scrub(kv)...) }
func (l leveledLogger) Debug(msg string, kv ...any) { l.log.Debug(msg, l.scrub(kv)...) }
func (l leveledLogger) Warn(msg string, kv ...any)  { l.log.Warn(msg, l.scrub(kv)...) }
