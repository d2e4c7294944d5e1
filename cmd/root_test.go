package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newUnsharedMirror serves a share page that reports the file as withdrawn
func newUnsharedMirror(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	pages := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			return
		}
		pages++
		io.WriteString(w, `<html><body><div class="off">文件取消分享了</div></body></html>`)
	}))
	t.Cleanup(srv.Close)
	return srv, &pages
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestResolveCommandPrintsOutcome(t *testing.T) {
	mirror, pages := newUnsharedMirror(t)

	out, err := runCLI(t, "--quiet", "--max-retries", "0", "--mirrors", mirror.URL,
		"https://www.lanzoux.com/iShare01")
	if err == nil {
		t.Fatal("expected an error exit for an unshared file")
	}

	var outcome struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if jsonErr := json.Unmarshal([]byte(out), &outcome); jsonErr != nil {
		t.Fatalf("stdout is not JSON: %v (%q)", jsonErr, out)
	}
	if outcome.Success || outcome.Message != "文件取消分享了" {
		t.Errorf("outcome = %+v", outcome)
	}
	if *pages != 1 {
		t.Errorf("share page fetched %d times, want 1", *pages)
	}
}

func TestResolveCommandMirrorsFromEnv(t *testing.T) {
	mirror, pages := newUnsharedMirror(t)
	t.Setenv("LANZOUFETCH_MIRRORS", mirror.URL+","+mirror.URL)
	t.Setenv("LANZOUFETCH_MAX_RETRIES", "0")

	if _, err := runCLI(t, "--quiet", "https://www.lanzoux.com/iShare01"); err == nil {
		t.Fatal("expected an error exit")
	}
	if *pages != 2 {
		t.Errorf("share page fetched %d times, want one per mirror", *pages)
	}
}

func TestResolveCommandRejectsInput(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown_mode", []string{"--quiet", "--mode", "stream", "https://www.lanzoux.com/iShare01"}, "mode"},
		{"bad_fingerprint", []string{"--quiet", "--fingerprint", "safari", "https://www.lanzoux.com/iShare01"}, "fingerprint"},
		{"bad_mirror", []string{"--quiet", "--mirrors", "ftp://mirror", "https://www.lanzoux.com/iShare01"}, "mirror"},
		{"missing_url", []string{"--quiet"}, "arg"},
		{"bad_rate", []string{"--quiet", "get", "-r", "fast", "https://www.lanzoux.com/iShare01"}, "rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolveCommandInvalidShareURL(t *testing.T) {
	mirror, pages := newUnsharedMirror(t)

	out, err := runCLI(t, "--quiet", "--mirrors", mirror.URL, "https://example.com/file")
	if err == nil {
		t.Fatal("expected an error exit")
	}
	if !strings.Contains(out, "请输入正确的蓝奏云分享链接") {
		t.Errorf("stdout = %q", out)
	}
	if *pages != 0 {
		t.Error("no mirror may be contacted for an invalid link")
	}
}
