package lanzou

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lanzoufetch/internal"
	"lanzoufetch/utils"
)

// Transport is the HTTP surface the protocol client needs
type Transport interface {
	Get(ctx context.Context, url string, headers http.Header) (*utils.Response, error)
	PostForm(ctx context.Context, url string, headers http.Header, form url.Values) (*utils.Response, error)
	Prober
}

// Client replays the share page handshake against one mirror
type Client struct {
	transport Transport
	forger    *IdentityForger
	solver    *ChallengeSolver
	redirects *RedirectResolver
}

// NewClient wires a protocol client from configuration and a transport
func NewClient(cfg *internal.Config, transport Transport) *Client {
	forger := NewIdentityForger(cfg)
	return &Client{
		transport: transport,
		forger:    forger,
		solver:    NewChallengeSolver(cfg),
		redirects: NewRedirectResolver(transport, forger, cfg.MaxRedirects),
	}
}

// Forger exposes the identity forger, mainly so tests can pin randomness
func (c *Client) Forger() *IdentityForger {
	return c.forger
}

// attempt carries the state of one mirror attempt
type attempt struct {
	mirror  string
	pageURL string
	session *Session
}

// Attempt resolves req against a single mirror with a fresh session
func (c *Client) Attempt(ctx context.Context, mirror string, share *utils.ShareURLInfo, req internal.ResolutionRequest) (*internal.FileMetadata, error) {
	a := &attempt{
		mirror:  strings.TrimRight(mirror, "/"),
		pageURL: share.MirrorURL(mirror),
		session: NewSession(),
	}

	c.bootstrap(ctx, a)

	body, err := c.fetch(ctx, a, a.pageURL, a.pageURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, internal.NewLanzouError(internal.ErrUpstreamUnavailable, internal.MsgEmptyPage).WithURL(a.pageURL)
	}

	info, err := ParseSharePage(body)
	if err != nil {
		return nil, err
	}
	if info.Unshared {
		return nil, internal.NewUpstreamRejectedError(internal.MsgFileUnshared).WithURL(a.pageURL)
	}
	if HasChallenge(body) {
		c.solveChallenge(ctx, a, info.Challenge)
	}

	var (
		result *internal.HandshakeResult
		name   = info.FileName
	)
	if info.RequiresPassword {
		result, err = c.passwordBranch(ctx, a, info, req.Password)
		if err == nil && result.Message != "" {
			name = result.Message
		}
	} else {
		result, err = c.iframeBranch(ctx, a, info)
	}
	if err != nil {
		return nil, err
	}

	direct := c.redirects.Resolve(ctx, result.DirectCandidate(), a.session)

	if req.RenameTo != "" {
		name = req.RenameTo
	}

	return &internal.FileMetadata{
		Filename:  name,
		Size:      info.FileSize,
		DirectURL: direct,
		ShareID:   share.ShareID,
		Mirror:    a.mirror,
		Timestamp: time.Now(),
	}, nil
}

// bootstrap visits the mirror origin to pick up initial cookies; failures are ignored
func (c *Client) bootstrap(ctx context.Context, a *attempt) {
	resp, err := c.transport.Get(ctx, a.mirror, a.session.Apply(c.forger.Headers(a.mirror, "")))
	if err != nil {
		internal.LogWarn("initial cookie request to %s failed: %v", a.mirror, err)
		return
	}
	a.session.Absorb(resp.Cookies)
}

// fetch GETs target with the session cookies and merges any new cookies
func (c *Client) fetch(ctx context.Context, a *attempt, target, referer string) (string, error) {
	resp, err := c.transport.Get(ctx, target, a.session.Apply(c.forger.Headers(referer, "")))
	if err != nil {
		return "", internal.NewUpstreamUnavailableError(target, err)
	}
	a.session.Absorb(resp.Cookies)
	return string(resp.Body), nil
}

// solveChallenge sets the acw_sc__v2 cookie and confirms it with one request
// to the mirror origin. A page without arg1 is logged and left alone.
func (c *Client) solveChallenge(ctx context.Context, a *attempt, arg1 string) {
	if arg1 == "" {
		internal.LogWarn("challenge marker found on %s but no arg1 token", a.mirror)
		return
	}

	a.session.Set(ChallengeCookie, c.solver.Solve(arg1))
	internal.LogDebug("computed %s cookie for %s", ChallengeCookie, a.mirror)

	resp, err := c.transport.Get(ctx, a.mirror, a.session.Apply(c.forger.Headers(a.mirror, "")))
	if err != nil {
		internal.LogWarn("challenge confirmation request to %s failed: %v", a.mirror, err)
		return
	}
	a.session.Absorb(resp.Cookies)
}

func (c *Client) passwordBranch(ctx context.Context, a *attempt, info *internal.SharePageInfo, password string) (*internal.HandshakeResult, error) {
	if password == "" {
		return nil, internal.NewInvalidInputError(internal.MsgPasswordRequired)
	}
	if info.Sign == "" || info.FileID == "" {
		return nil, internal.NewExtractionError(internal.MsgTokensMissing).
			WithURL(a.pageURL).
			WithContext("sign_found", info.Sign != "").
			WithContext("file_id_found", info.FileID != "")
	}

	return c.handshake(ctx, a, info.FileID, url.Values{
		"action": {"downprocess"},
		"sign":   {info.Sign},
		"p":      {password},
		"kd":     {"1"},
	})
}

func (c *Client) iframeBranch(ctx context.Context, a *attempt, info *internal.SharePageInfo) (*internal.HandshakeResult, error) {
	if info.IframePath == "" {
		return nil, internal.NewExtractionError(internal.MsgIframeMissing).WithURL(a.pageURL)
	}

	iframeURL := a.mirror + info.IframePath
	if strings.HasPrefix(info.IframePath, "http://") || strings.HasPrefix(info.IframePath, "https://") {
		iframeURL = info.IframePath
	}

	body, err := c.fetch(ctx, a, iframeURL, a.pageURL)
	if err != nil {
		return nil, err
	}
	if HasChallenge(body) {
		c.solveChallenge(ctx, a, ExtractChallenge(body))
	}

	sign, fileID := IframePageTokens(body)
	if sign == "" || fileID == "" {
		return nil, internal.NewExtractionError(internal.MsgTokensMissing).
			WithURL(iframeURL).
			WithContext("sign_found", sign != "").
			WithContext("file_id_found", fileID != "")
	}

	return c.handshake(ctx, a, fileID, url.Values{
		"action": {"downprocess"},
		"signs":  {"?ctdf"},
		"sign":   {sign},
		"kd":     {"1"},
	})
}

// handshake posts the form to ajaxm.php and checks the returned status
func (c *Client) handshake(ctx context.Context, a *attempt, fileID string, form url.Values) (*internal.HandshakeResult, error) {
	postURL := a.mirror + "/ajaxm.php?file=" + fileID

	resp, err := c.transport.PostForm(ctx, postURL, a.session.Apply(c.forger.Headers(a.mirror, "")), form)
	if err != nil {
		return nil, internal.NewUpstreamUnavailableError(postURL, err)
	}
	a.session.Absorb(resp.Cookies)

	result := decodeHandshake(resp.Body)
	if !result.OK() {
		return nil, internal.NewUpstreamRejectedError(result.Message).
			WithURL(postURL).
			WithContext("zt", result.Status)
	}
	return result, nil
}

// handshakeWire mirrors the ajaxm.php JSON; fields vary in type between deployments
type handshakeWire struct {
	Zt  json.RawMessage `json:"zt"`
	Dom json.RawMessage `json:"dom"`
	URL json.RawMessage `json:"url"`
	Inf json.RawMessage `json:"inf"`
}

// decodeHandshake never fails: unparsable bodies give a zero status
func decodeHandshake(body []byte) *internal.HandshakeResult {
	var wire handshakeWire
	if err := json.Unmarshal(body, &wire); err != nil {
		internal.LogDebug("handshake response is not JSON: %v", err)
		return &internal.HandshakeResult{}
	}

	result := &internal.HandshakeResult{
		DomHost:  rawString(wire.Dom),
		FilePath: rawString(wire.URL),
		Message:  rawString(wire.Inf),
	}

	var status float64
	if err := json.Unmarshal(wire.Zt, &status); err == nil && status == float64(int(status)) {
		result.Status = int(status)
	}
	return result
}

// rawString returns the value of a JSON string, "" for any other JSON type
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
