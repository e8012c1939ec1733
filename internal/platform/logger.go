package platform

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// botLogger routes tgbotapi's package logger into zerolog.
type botLogger struct{ log zerolog.Logger }

func (b botLogger) Println(v ...interface{}) {
	b.log.Debug().Msg(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (b botLogger) Printf(format string, v ...interface{}) {
	b.log.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// UseLogger installs l as tgbotapi's process-wide logger.
func UseLogger(l zerolog.Logger) {
	_ = tgbotapi.SetLogger(botLogger{log: l.With().Str("component", "tgbotapi").Logger()})
}
