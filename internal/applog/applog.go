// Package applog is a thin, leveled wrapper around the standard log
// package, adapted from the teacher's internal/log package: single-line
// key=value records gated by package-level level toggles, no external
// logging framework. Unlike the teacher, there is no Loki push — that
// machinery existed to serve its cache/metrics demo and has no home in
// this spec (see DESIGN.md).
package applog

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	infoEnabled  = true
	warnEnabled  = true
	errorEnabled = true
	debugEnabled = false

	std = log.New(os.Stderr, "", log.LstdFlags)
)

// SetDebug toggles debug-level emission; off by default, matching the
// teacher's defaultDebugEnabled = false.
func SetDebug(enabled bool) { debugEnabled = enabled }

func levelEnabled(level string) bool {
	switch level {
	case "debug":
		return debugEnabled
	case "warn":
		return warnEnabled
	case "error":
		return errorEnabled
	default:
		return infoEnabled
	}
}

func emit(level, format string, args ...any) {
	if !levelEnabled(level) {
		return
	}
	std.Printf("%s %s", strings.ToUpper(level), fmt.Sprintf(format, args...))
}

func Info(format string, args ...any)  { emit("info", format, args...) }
func Warn(format string, args ...any)  { emit("warn", format, args...) }
func Error(format string, args ...any) { emit("error", format, args...) }
func Debug(format string, args ...any) { emit("debug", format, args...) }

// RequestLine renders the single-line REQ record the pipeline logs
// before forwarding a request upstream.
func RequestLine(requestID, method, path, targetHost string, attempt int) string {
	return fmt.Sprintf("req_id=%s method=%s path=%s target=%s attempt=%d", requestID, method, path, targetHost, attempt)
}

// ResponseLine renders the single-line RESP record the pipeline logs
// after relaying a response to the client.
func ResponseLine(requestID string, status int, dur time.Duration, attempts int) string {
	return fmt.Sprintf("req_id=%s status=%s dur=%s attempts=%d", requestID, strconv.Itoa(status), dur.String(), attempts)
}
