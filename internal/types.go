package internal

import (
	"strings"
	"time"
)

// Mode selects the shape of a successful resolution result
type Mode string

const (
	ModeParse    Mode = "parse"
	ModeRedirect Mode = "redirect"
)

// ParseMode maps user input to a Mode. The legacy value "down" means redirect.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "parse":
		return ModeParse, nil
	case "redirect", "down":
		return ModeRedirect, nil
	default:
		return "", NewValidationErrorWithValue("mode", "must be parse or redirect", s)
	}
}

// ResolutionRequest is one caller request to resolve a share link
type ResolutionRequest struct {
	ShareURL string
	Password string
	RenameTo string
	Mode     Mode
}

// FileMetadata is the outcome of a successful resolution
type FileMetadata struct {
	Filename  string    `json:"name"`
	Size      string    `json:"fileSize"`
	DirectURL string    `json:"directUrl"`
	ShareID   string    `json:"shareId,omitempty"`
	Mirror    string    `json:"mirror,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SharePageInfo is what the scraper found on a share page
type SharePageInfo struct {
	RequiresPassword bool
	Unshared         bool
	FileName         string
	FileSize         string
	IframePath       string
	Sign             string
	FileID           string
	Challenge        string
}

// HandshakeResult is the decoded ajaxm.php response
type HandshakeResult struct {
	Status   int
	Message  string
	DomHost  string
	FilePath string
}

// OK reports whether the service accepted the handshake
func (h *HandshakeResult) OK() bool {
	return h.Status == 1
}

// DirectCandidate joins the dom host and file path into the first download URL
func (h *HandshakeResult) DirectCandidate() string {
	return h.DomHost + "/file/" + h.FilePath
}

// DownloadConfig contains configuration for download operations
type DownloadConfig struct {
	OutputPath string
	RateLimit  int64 // bytes per second
	Quiet      bool
}
