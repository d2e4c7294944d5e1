package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lanzoufetch/internal"
)

// ParseRequest is the body of POST /api/parse. The short legacy names url,
// pwd, type and n are accepted when the long names are absent.
type ParseRequest struct {
	ShareURL string `json:"shareUrl"`
	Password string `json:"password"`
	RenameTo string `json:"renameTo"`
	Mode     string `json:"mode"`

	URL  string `json:"url"`
	Pwd  string `json:"pwd"`
	Type string `json:"type"`
	N    string `json:"n"`
}

// Resolution converts the body into a resolution request
func (r ParseRequest) Resolution() (internal.ResolutionRequest, error) {
	mode, err := internal.ParseMode(firstNonEmpty(r.Mode, r.Type))
	if err != nil {
		return internal.ResolutionRequest{}, err
	}
	return internal.ResolutionRequest{
		ShareURL: firstNonEmpty(r.ShareURL, r.URL),
		Password: firstNonEmpty(r.Password, r.Pwd),
		RenameTo: firstNonEmpty(r.RenameTo, r.N),
		Mode:     mode,
	}, nil
}

// Response is the envelope of every /api/parse answer
type Response struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message"`
	Data        interface{} `json:"data,omitempty"`
	ErrorDetail string      `json:"errorDetail,omitempty"`
}

// ParseData is returned in parse mode
type ParseData struct {
	Name      string `json:"name"`
	FileSize  string `json:"fileSize"`
	DirectURL string `json:"directUrl"`
}

// RedirectData is returned in redirect mode
type RedirectData struct {
	Redirect string `json:"redirect"`
}

// NewOutcome shapes a resolution result into the response envelope
func NewOutcome(mode internal.Mode, meta *internal.FileMetadata, err error) Response {
	if err != nil {
		le := internal.AsLanzouError(err)
		return Response{Success: false, Message: le.Message, ErrorDetail: le.Detail}
	}
	if mode == internal.ModeRedirect {
		return Response{
			Success: true,
			Message: internal.MsgRedirectDownload,
			Data:    RedirectData{Redirect: meta.DirectURL},
		}
	}
	return Response{
		Success: true,
		Message: internal.MsgResolveSuccess,
		Data: ParseData{
			Name:      meta.Filename,
			FileSize:  meta.Size,
			DirectURL: meta.DirectURL,
		},
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleParse(c *gin.Context) {
	var body ParseRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusInternalServerError, Response{
			Success:     false,
			Message:     internal.MsgServerError,
			ErrorDetail: err.Error(),
		})
		return
	}

	req, err := body.Resolution()
	if err != nil {
		c.JSON(http.StatusOK, Response{
			Success:     false,
			Message:     internal.MsgInvalidMode,
			ErrorDetail: err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	meta, err := s.resolver.Resolve(ctx, req)
	elapsed := time.Since(start)

	fields := map[string]interface{}{
		"request_id": c.GetString(requestIDKey),
		"mode":       string(req.Mode),
		"duration":   elapsed,
	}
	if err != nil {
		le := internal.AsLanzouError(err)
		s.metrics.ObserveResolution(false, le.Type.String(), elapsed)
		fields["type"] = le.Type.String()
		fields["message"] = le.Message
		internal.GetLogger().Fields(internal.LogLevelWarn, "parse failed", fields)
	} else {
		s.metrics.ObserveResolution(true, "", elapsed)
		fields["mirror"] = meta.Mirror
		internal.GetLogger().Fields(internal.LogLevelInfo, "parse succeeded", fields)
	}

	c.JSON(http.StatusOK, NewOutcome(req.Mode, meta, err))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
