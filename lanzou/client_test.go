package lanzou

import (
	"context"
	"testing"

	"lanzoufetch/internal"
	"lanzoufetch/utils"
)

func TestDecodeHandshake(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected internal.HandshakeResult
	}{
		{
			name:     "success",
			body:     `{"zt":1,"dom":"https://d.example","url":"?x=1","inf":0}`,
			expected: internal.HandshakeResult{Status: 1, DomHost: "https://d.example", FilePath: "?x=1"},
		},
		{
			name:     "success_with_name",
			body:     `{"zt":1,"dom":"https://d.example","url":"abc","inf":"a.zip"}`,
			expected: internal.HandshakeResult{Status: 1, DomHost: "https://d.example", FilePath: "abc", Message: "a.zip"},
		},
		{
			name:     "rejected",
			body:     `{"zt":0,"inf":"密码不正确"}`,
			expected: internal.HandshakeResult{Status: 0, Message: "密码不正确"},
		},
		{
			name:     "string_status_ignored",
			body:     `{"zt":"1","dom":"d","url":"u"}`,
			expected: internal.HandshakeResult{Status: 0, DomHost: "d", FilePath: "u"},
		},
		{
			name:     "fractional_status_ignored",
			body:     `{"zt":1.5}`,
			expected: internal.HandshakeResult{},
		},
		{
			name:     "not_json",
			body:     `<html>error</html>`,
			expected: internal.HandshakeResult{},
		},
		{
			name:     "empty",
			body:     ``,
			expected: internal.HandshakeResult{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeHandshake([]byte(tt.body))
			if *got != tt.expected {
				t.Errorf("decodeHandshake() = %+v, want %+v", *got, tt.expected)
			}
		})
	}
}

func TestHandshakeDirectCandidate(t *testing.T) {
	h := &internal.HandshakeResult{Status: 1, DomHost: "https://develope.lanzoug.com", FilePath: "?AGQBP1tu"}
	if got, want := h.DirectCandidate(), "https://develope.lanzoug.com/file/?AGQBP1tu"; got != want {
		t.Errorf("DirectCandidate() = %q, want %q", got, want)
	}
	if !h.OK() {
		t.Error("status 1 should be OK")
	}
}

func TestClientPasswordGateSendsNothingMore(t *testing.T) {
	m := newFakeMirror(t)
	m.page = passwordSharePage("S", "9")

	cfg := testConfig(m.URL())
	c := NewClient(cfg, newTestTransport(t, cfg))

	share, err := utils.NewShareURLValidator().Parse(testShareURL)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	_, err = c.Attempt(context.Background(), m.URL(), share, internal.ResolutionRequest{ShareURL: testShareURL})
	le := internal.AsLanzouError(err)
	if le == nil || le.Message != internal.MsgPasswordRequired {
		t.Fatalf("error = %v, want %q", err, internal.MsgPasswordRequired)
	}

	// bootstrap and page fetch only
	if got := m.hits(); got != 2 {
		t.Errorf("mirror received %d requests, want 2", got)
	}
}

func TestClientAbsoluteIframe(t *testing.T) {
	dl := newDownloadHost(t)

	other := newFakeMirror(t)
	other.iframe = iframeTokenPage("ABS", "31")

	m := newFakeMirror(t)
	m.page = `<html><title>abs.bin 蓝奏云</title><iframe src="` + other.URL() + `/fn?abs"></iframe></html>`
	m.handshake = handshakeJSON(dl.URL, "?abs", 0)

	cfg := testConfig(m.URL())
	c := NewClient(cfg, newTestTransport(t, cfg))
	share, _ := utils.NewShareURLValidator().Parse(testShareURL)

	meta, err := c.Attempt(context.Background(), m.URL(), share, internal.ResolutionRequest{})
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if meta.Filename != "abs.bin" {
		t.Errorf("Filename = %q, want abs.bin", meta.Filename)
	}
	if other.hitsFor("GET /fn") != 1 {
		t.Error("absolute iframe URL was not fetched as-is")
	}
	if m.lastPost().Get("sign") != "ABS" {
		t.Errorf("handshake sign = %q, want ABS", m.lastPost().Get("sign"))
	}
}
