package service

import (
	"context"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/observability"
)

// Notifier emits notifications as side effects of workflow mutations.
type Notifier interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
}

// notify runs after the primary write has succeeded. A failure is logged and counted
// but never undoes the primary write.
func notify(ctx context.Context, notifier Notifier, logger zerolog.Logger, payload dto.NotificationCreateRequest) {
	if notifier == nil || payload.UserID == 0 {
		return
	}
	if _, err := notifier.Publish(ctx, payload); err != nil {
		observability.NotificationFailures().WithLabelValues(payload.Type).Inc()
		logger.Warn().Err(err).
			Uint("recipient_id", payload.UserID).
			Str("notification_type", payload.Type).
			Msg("failed to emit notification")
	}
}

// maxMessageRunes mirrors the max tag on NotificationCreateRequest.Message.
const maxMessageRunes = 2000

// plainText strips markup with the given policy and decodes the entities the
// policy writes back, so stored text keeps the characters the author typed.
func plainText(policy *bluemonday.Policy, raw string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(raw)))
}

// clip shortens s to at most limit runes, marking the cut with an ellipsis.
func clip(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

func uintPtr(v uint) *uint {
	return &v
}
