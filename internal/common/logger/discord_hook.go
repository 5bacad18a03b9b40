package logger

import (
	"strings"

	"github.com/rs/zerolog"
)

// AlertSender delivers a single alert; *discord.Client satisfies it.
type AlertSender interface {
	SendLogMessage(level, message string, fields map[string]interface{}) error
}

// AlertHook forwards events at or above MinLevel to an AlertSender.
// Delivery runs on its own goroutine so logging never waits on the network.
type AlertHook struct {
	Sender   AlertSender
	MinLevel zerolog.Level
	Service  string
}

// Run implements zerolog.Hook
func (h AlertHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if h.Sender == nil || level < h.MinLevel || level == zerolog.NoLevel {
		return
	}

	fields := map[string]interface{}{}
	if h.Service != "" {
		fields["service"] = h.Service
	}

	go func() {
		_ = h.Sender.SendLogMessage(strings.ToUpper(level.String()), msg, fields)
	}()
}
