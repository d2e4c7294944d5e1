package lanzou

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"lanzoufetch/internal"
	"lanzoufetch/utils"
)

const testShareURL = "https://www.lanzoux.com/iShare01"

// fakeMirror serves a scripted share page, iframe page and handshake
type fakeMirror struct {
	server *httptest.Server

	page      string
	iframe    string
	handshake string
	status    int

	mu      sync.Mutex
	paths   []string
	cookies map[string][]string
	posts   []url.Values
}

func newFakeMirror(t *testing.T) *fakeMirror {
	t.Helper()

	m := &fakeMirror{cookies: make(map[string][]string)}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.server.Close)
	return m
}

func (m *fakeMirror) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.paths = append(m.paths, r.Method+" "+r.URL.Path)
	m.cookies[r.URL.Path] = append(m.cookies[r.URL.Path], r.Header.Get("Cookie"))
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		m.posts = append(m.posts, r.PostForm)
	}
	m.mu.Unlock()

	if m.status != 0 {
		w.WriteHeader(m.status)
		return
	}

	switch r.URL.Path {
	case "/":
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "boot"})
		fmt.Fprint(w, "home")
	case "/iShare01":
		fmt.Fprint(w, m.page)
	case "/fn":
		fmt.Fprint(w, m.iframe)
	case "/ajaxm.php":
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, m.handshake)
	default:
		http.NotFound(w, r)
	}
}

func (m *fakeMirror) URL() string {
	return m.server.URL
}

func (m *fakeMirror) hits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.paths)
}

func (m *fakeMirror) hitsFor(methodPath string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.paths {
		if p == methodPath {
			n++
		}
	}
	return n
}

func (m *fakeMirror) lastPost() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.posts) == 0 {
		return nil
	}
	return m.posts[len(m.posts)-1]
}

func (m *fakeMirror) cookiesFor(path string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cookies[path]...)
}

// newDownloadHost serves /file/ with a relative redirect to the final file
func newDownloadHost(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/file/"):
			w.Header().Set("Location", "/dl/"+r.URL.RawQuery+".bin")
			w.WriteHeader(http.StatusFound)
		case strings.HasPrefix(r.URL.Path, "/dl/"):
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func iframeSharePage(name, size string) string {
	return `<html><head><title>` + name + ` 蓝奏云</title></head><body>
<div class="n_box_3fn">` + name + `</div>
<div class="n_filesize">大小：` + size + `</div>
<iframe class="ifr2" name="1" src="/fn?FNTOKEN" frameborder="0"></iframe>
</body></html>`
}

func iframeTokenPage(sign, fileID string) string {
	return `<script type="text/javascript">
var wp_sign = '` + sign + `';
var ajaxdata = '?ctdf';
$.ajax({
	type : 'post',
	//url : '/ajaxm.php?file=1',//
	url : '/ajaxm.php?file=` + fileID + `',
	data : { 'action':'downprocess','signs':ajaxdata,'sign':wp_sign,'kd':1 },
	dataType : 'json',
});
</script>`
}

func passwordSharePage(sign, fileID string) string {
	return `<html><body><div class="n_box_3fn"></div><div class="n_filesize">大小：9 M</div>
<script type="text/javascript">
/*
	'sign':'STALE', url : '/ajaxm.php?file=1',
*/
function down_p(){
	var pwd = document.getElementById('pwd').value;
	$.ajax({
		type : 'post',
		url : '/ajaxm.php?file=` + fileID + `',
		data : { 'action':'downprocess','sign':'` + sign + `','p':pwd,'kd':1 },
		dataType : 'json',
	});
}
</script></body></html>`
}

func handshakeJSON(dom, path string, inf interface{}) string {
	infJSON := "0"
	if s, ok := inf.(string); ok {
		infJSON = fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf(`{"zt":1,"dom":%q,"url":%q,"inf":%s}`, dom, path, infJSON)
}

func testConfig(mirrors ...string) *internal.Config {
	cfg := internal.DefaultConfig()
	cfg.Mirrors = mirrors
	cfg.MaxRetries = 0
	return cfg
}

func newTestTransport(t *testing.T, cfg *internal.Config) *utils.HTTPClient {
	t.Helper()

	client, err := utils.NewHTTPClientWithConfig(utils.HTTPClientConfigFrom(cfg))
	if err != nil {
		t.Fatalf("NewHTTPClientWithConfig() error = %v", err)
	}
	return client
}
