package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to the log. Used when Telegram is not configured.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, userID, templateKey string, data map[string]string) error {
	text, err := Render(templateKey, data)
	if err != nil {
		return err
	}
	n.logger.Info().Str("user_id", userID).Str("template", templateKey).Str("text", text).Msg("notification")
	return nil
}
