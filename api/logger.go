package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// requestLogger is a chi LogFormatter that writes one logrus entry per request.
type requestLogger struct {
	logger logrus.FieldLogger
}

func (l *requestLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &requestEntry{entry: l.logger.WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote":     r.RemoteAddr,
	})}
}

type requestEntry struct {
	entry logrus.FieldLogger
}

func (e *requestEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	entry := e.entry.WithFields(logrus.Fields{
		"status":  status,
		"bytes":   bytes,
		"elapsed": elapsed.Round(time.Millisecond).String(),
	})
	switch {
	case status >= 500:
		entry.Error("request")
	case status >= 400:
		entry.Warn("request")
	default:
		entry.Info("request")
	}
}

func (e *requestEntry) Panic(v interface{}, stack []byte) {
	e.entry.WithField("stack", string(stack)).Error(fmt.Sprintf("panic: %v", v))
}
