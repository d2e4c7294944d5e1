package internal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType classifies why a resolution attempt failed
type ErrorType int

const (
	// ErrInvalidInput covers missing or malformed caller input, including a missing password
	ErrInvalidInput ErrorType = iota
	// ErrUpstreamUnavailable covers network errors, timeouts and empty pages
	ErrUpstreamUnavailable
	// ErrUpstreamRejected covers unshared files and handshake status != 1
	ErrUpstreamRejected
	// ErrExtractionFailed covers missing sign, file id or iframe
	ErrExtractionFailed
	// ErrResolutionDegraded covers redirect probing failures; logged, never returned
	ErrResolutionDegraded
	// ErrUnexpected covers panics and untyped errors raised inside a mirror attempt
	ErrUnexpected
)

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// Localized messages returned to callers
const (
	MsgURLRequired      = "请输入URL"
	MsgInvalidShareURL  = "请输入正确的蓝奏云分享链接"
	MsgPasswordRequired = "请输入分享密码"
	MsgEmptyPage        = "页面无内容"
	MsgFileUnshared     = "文件取消分享了"
	MsgIframeMissing    = "无法解析下载页面"
	MsgTokensMissing    = "获取文件标识失败"
	MsgResolveFailed    = "解析失败"
	MsgResolveException = "解析异常"
	MsgResolveSuccess   = "解析成功"
	MsgRedirectDownload = "跳转下载"
	MsgServerError      = "服务器错误"
	MsgInvalidMode      = "不支持的解析模式"
)

// LanzouError is a typed resolution failure. Message is the localized text shown
// to users; Detail carries the technical cause when there is one.
type LanzouError struct {
	Type     ErrorType              `json:"type"`
	Severity ErrorSeverity          `json:"severity"`
	Message  string                 `json:"message"`
	Detail   string                 `json:"detail,omitempty"`
	Mirror   string                 `json:"mirror,omitempty"`
	URL      string                 `json:"url,omitempty"`
	Context  map[string]interface{} `json:"context,omitempty"`

	cause error
}

// Error implements the error interface
func (e *LanzouError) Error() string {
	parts := []string{fmt.Sprintf("lanzou error (type: %s)", e.Type.String())}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	if e.Mirror != "" {
		parts = append(parts, fmt.Sprintf("mirror: %s", e.Mirror))
	}

	return strings.Join(parts, " - ")
}

// Unwrap exposes the underlying cause for errors.Is/As
func (e *LanzouError) Unwrap() error {
	return e.cause
}

// DetailedError returns a multi-line description with all available information
func (e *LanzouError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s] %s Error", e.Severity.String(), e.Type.String()))
	if e.Message != "" {
		parts = append(parts, fmt.Sprintf("Message: %s", e.Message))
	}
	if e.Detail != "" {
		parts = append(parts, fmt.Sprintf("Detail: %s", e.Detail))
	}
	if e.Mirror != "" {
		parts = append(parts, fmt.Sprintf("Mirror: %s", e.Mirror))
	}
	if e.URL != "" {
		parts = append(parts, fmt.Sprintf("URL: %s", redactSensitiveURL(e.URL)))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, "\n")
}

// String returns the string representation of ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrInvalidInput:
		return "InvalidInput"
	case ErrUpstreamUnavailable:
		return "UpstreamUnavailable"
	case ErrUpstreamRejected:
		return "UpstreamRejected"
	case ErrExtractionFailed:
		return "ExtractionFailed"
	case ErrResolutionDegraded:
		return "ResolutionDegraded"
	case ErrUnexpected:
		return "Unexpected"
	default:
		return "Unknown"
	}
}

// String returns the string representation of ErrorSeverity
func (es ErrorSeverity) String() string {
	switch es {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// NewLanzouError creates a LanzouError with the default severity for its type
func NewLanzouError(errorType ErrorType, message string) *LanzouError {
	return &LanzouError{
		Type:     errorType,
		Message:  message,
		Severity: getDefaultSeverity(errorType),
		Context:  make(map[string]interface{}),
	}
}

// WithDetail records a technical detail string
func (e *LanzouError) WithDetail(detail string) *LanzouError {
	e.Detail = detail
	return e
}

// WithCause records the underlying error and uses its text as detail
func (e *LanzouError) WithCause(err error) *LanzouError {
	if err == nil {
		return e
	}
	e.cause = err
	if e.Detail == "" {
		e.Detail = err.Error()
	}
	return e
}

// WithMirror records the mirror the failure came from
func (e *LanzouError) WithMirror(mirror string) *LanzouError {
	e.Mirror = mirror
	return e
}

// WithURL adds URL context to the error (will be redacted in logs)
func (e *LanzouError) WithURL(url string) *LanzouError {
	e.URL = url
	return e
}

// WithContext adds context information to the error
func (e *LanzouError) WithContext(key string, value interface{}) *LanzouError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsTerminal reports whether trying another mirror cannot help
func (e *LanzouError) IsTerminal() bool {
	return e.Type == ErrInvalidInput
}

// AsLanzouError converts any error into a *LanzouError. Untyped errors become
// ErrUnexpected with the localized exception message.
func AsLanzouError(err error) *LanzouError {
	if err == nil {
		return nil
	}
	var le *LanzouError
	if errors.As(err, &le) {
		return le
	}
	return NewLanzouError(ErrUnexpected, MsgResolveException).WithCause(err)
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field      string                 `json:"field"`
	Message    string                 `json:"message"`
	Value      interface{}            `json:"value,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := []string{fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, " - ")
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewValidationErrorWithValue creates a ValidationError with the invalid value
func NewValidationErrorWithValue(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Context: make(map[string]interface{}),
	}
}

// WithSuggestion adds a suggestion to the validation error
func (e *ValidationError) WithSuggestion(suggestion string) *ValidationError {
	e.Suggestion = suggestion
	return e
}

// getDefaultSeverity returns the default severity for an error type
func getDefaultSeverity(errorType ErrorType) ErrorSeverity {
	switch errorType {
	case ErrResolutionDegraded:
		return SeverityWarning
	case ErrUnexpected:
		return SeverityCritical
	default:
		return SeverityError
	}
}

// redactSensitiveURL drops the query string, which may carry passwords or tokens
func redactSensitiveURL(url string) string {
	if i := strings.Index(url, "?"); i >= 0 {
		return url[:i] + "?[REDACTED]"
	}
	return url
}

// Common error constructors

// NewInvalidInputError creates an InvalidInput error with a localized message
func NewInvalidInputError(message string) *LanzouError {
	return NewLanzouError(ErrInvalidInput, message)
}

// NewUpstreamUnavailableError wraps a transport failure. Users see the generic
// exception message; the transport error text goes to Detail.
func NewUpstreamUnavailableError(url string, cause error) *LanzouError {
	return NewLanzouError(ErrUpstreamUnavailable, MsgResolveException).
		WithURL(url).
		WithCause(cause)
}

// NewUpstreamRejectedError creates an error for pages or handshakes the service refused
func NewUpstreamRejectedError(message string) *LanzouError {
	if message == "" {
		message = MsgResolveFailed
	}
	return NewLanzouError(ErrUpstreamRejected, message)
}

// NewExtractionError creates an error for tokens or elements missing from a page
func NewExtractionError(message string) *LanzouError {
	return NewLanzouError(ErrExtractionFailed, message)
}
