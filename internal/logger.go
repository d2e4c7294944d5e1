package internal

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// SecureLogger writes leveled log lines through zerolog after passing every
// message through its redactors.
type SecureLogger struct {
	logger    zerolog.Logger
	level     LogLevel
	debug     bool
	quiet     bool
	redactors []Redactor
}

// Redactor defines an interface for redacting sensitive information
type Redactor interface {
	Redact(input string) string
}

// CookieRedactor masks cookie and credential header values
type CookieRedactor struct{}

// Header patterns stop at whitespace or "]" so later entries of a
// formatted header map survive.
var cookiePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)((?:set-)?cookie:\s*)[^\s\];]+(?:;\s*[^\s\];]+)*`),
	regexp.MustCompile(`(?i)(authorization:\s*)(?:(?:bearer|basic|token)\s+)?[^\s\]]+`),
	regexp.MustCompile(`(?i)(acw_sc__v2=)[^;\s&"\]]+`),
}

func (r *CookieRedactor) Redact(input string) string {
	result := input
	for _, re := range cookiePatterns {
		result = re.ReplaceAllString(result, "${1}[REDACTED]")
	}
	return result
}

// PasswordRedactor masks share passwords in query strings and form bodies
type PasswordRedactor struct{}

var passwordPattern = regexp.MustCompile(`(?i)(\b(?:pwd|password|p)=)[^&\s"]+`)

func (r *PasswordRedactor) Redact(input string) string {
	return passwordPattern.ReplaceAllString(input, "${1}[REDACTED]")
}

// NewSecureLogger creates a logger writing JSON lines to output
func NewSecureLogger(output io.Writer, level LogLevel, debug, quiet bool) *SecureLogger {
	return newSecureLogger(zerolog.New(output), level, debug, quiet)
}

// NewConsoleLogger creates a logger writing human readable lines to output
func NewConsoleLogger(output io.Writer, level LogLevel, debug, quiet bool) *SecureLogger {
	cw := zerolog.ConsoleWriter{Out: output, TimeFormat: "2006-01-02 15:04:05", NoColor: true}
	return newSecureLogger(zerolog.New(cw), level, debug, quiet)
}

func newSecureLogger(base zerolog.Logger, level LogLevel, debug, quiet bool) *SecureLogger {
	ctx := base.With().Timestamp()
	if debug {
		ctx = ctx.CallerWithSkipFrameCount(4)
	}

	sl := &SecureLogger{
		logger: ctx.Logger(),
		debug:  debug,
		quiet:  quiet,
		redactors: []Redactor{
			&CookieRedactor{},
			&PasswordRedactor{},
		},
	}
	sl.SetLevel(level)
	if debug {
		sl.SetDebug(true)
	}
	if quiet {
		sl.SetQuiet(true)
	}
	return sl
}

// NewDefaultLogger creates a console logger on stderr
func NewDefaultLogger(debug, quiet bool) *SecureLogger {
	level := LogLevelInfo
	if debug {
		level = LogLevelDebug
	}
	if quiet {
		level = LogLevelError
	}

	return NewConsoleLogger(os.Stderr, level, debug, quiet)
}

// redactSensitiveData applies all redactors to the input string
func (sl *SecureLogger) redactSensitiveData(input string) string {
	result := input
	for _, redactor := range sl.redactors {
		result = redactor.Redact(result)
	}
	return result
}

// shouldLog determines if a message should be logged based on level
func (sl *SecureLogger) shouldLog(level LogLevel) bool {
	if sl.quiet && level > LogLevelError {
		return false
	}
	return level <= sl.level
}

func (sl *SecureLogger) emit(level LogLevel, format string, args ...interface{}) {
	if !sl.shouldLog(level) {
		return
	}
	message := sl.redactSensitiveData(fmt.Sprintf(format, args...))
	sl.logger.WithLevel(level.zerolog()).Msg(message)
}

// Error logs an error message
func (sl *SecureLogger) Error(format string, args ...interface{}) {
	sl.emit(LogLevelError, format, args...)
}

// Warn logs a warning message
func (sl *SecureLogger) Warn(format string, args ...interface{}) {
	sl.emit(LogLevelWarn, format, args...)
}

// Info logs an info message
func (sl *SecureLogger) Info(format string, args ...interface{}) {
	sl.emit(LogLevelInfo, format, args...)
}

// Debug logs a debug message
func (sl *SecureLogger) Debug(format string, args ...interface{}) {
	sl.emit(LogLevelDebug, format, args...)
}

// Fields logs msg at level with structured fields. String values are redacted.
func (sl *SecureLogger) Fields(level LogLevel, msg string, fields map[string]interface{}) {
	if !sl.shouldLog(level) {
		return
	}
	ev := sl.logger.WithLevel(level.zerolog())

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			ev = ev.Str(k, sl.redactSensitiveData(v))
		case error:
			ev = ev.Str(k, sl.redactSensitiveData(v.Error()))
		case time.Duration:
			ev = ev.Dur(k, v)
		case int:
			ev = ev.Int(k, v)
		case bool:
			ev = ev.Bool(k, v)
		default:
			ev = ev.Interface(k, v)
		}
	}
	ev.Msg(sl.redactSensitiveData(msg))
}

// LogHTTPRequest logs an HTTP request with sensitive data redacted
func (sl *SecureLogger) LogHTTPRequest(req *http.Request) {
	if !sl.shouldLog(LogLevelDebug) {
		return
	}
	sl.Debug("HTTP Request: %s %s Headers: %v", req.Method, req.URL.String(), sl.sanitizeHeaders(req.Header))
}

// LogHTTPResponse logs an HTTP response with sensitive data redacted
func (sl *SecureLogger) LogHTTPResponse(resp *http.Response) {
	if !sl.shouldLog(LogLevelDebug) {
		return
	}
	sl.Debug("HTTP Response: %d %s Headers: %v", resp.StatusCode, resp.Status, sl.sanitizeHeaders(resp.Header))
}

func (sl *SecureLogger) sanitizeHeaders(h http.Header) map[string]string {
	sanitized := make(map[string]string, len(h))
	for name, values := range h {
		if sl.isSensitiveHeader(name) {
			sanitized[name] = "[REDACTED]"
		} else {
			sanitized[name] = strings.Join(values, ", ")
		}
	}
	return sanitized
}

// isSensitiveHeader checks if a header contains sensitive information
func (sl *SecureLogger) isSensitiveHeader(name string) bool {
	sensitiveHeaders := []string{
		"authorization",
		"cookie",
		"set-cookie",
		"token",
	}

	lowerName := strings.ToLower(name)
	for _, sensitive := range sensitiveHeaders {
		if strings.Contains(lowerName, sensitive) {
			return true
		}
	}
	return false
}

// SetLevel sets the logging level
func (sl *SecureLogger) SetLevel(level LogLevel) {
	sl.level = level
	sl.logger = sl.logger.Level(level.zerolog())
}

// SetDebug enables or disables debug mode
func (sl *SecureLogger) SetDebug(debug bool) {
	sl.debug = debug
	if debug && sl.level < LogLevelDebug {
		sl.SetLevel(LogLevelDebug)
	}
}

// SetQuiet enables or disables quiet mode
func (sl *SecureLogger) SetQuiet(quiet bool) {
	sl.quiet = quiet
	if quiet {
		sl.SetLevel(LogLevelError)
	}
}
