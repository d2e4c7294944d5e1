package lanzou

import (
	"net"
	"strconv"
	"strings"
	"testing"

	"lanzoufetch/internal"
)

func TestIdentityForger_Headers(t *testing.T) {
	forger := NewIdentityForger(internal.DefaultConfig())

	h := forger.Headers("https://www.lanzoux.com/iAbc", "")

	expected := map[string]string{
		"User-Agent":      internal.DefaultUserAgent,
		"Referer":         "https://www.lanzoux.com/iAbc",
		"Connection":      "Keep-Alive",
		"Accept":          "*/*",
		"Accept-Language": "zh-cn",
	}
	for key, want := range expected {
		if got := h.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}

	if h.Get("Host") != "" {
		t.Errorf("Host should be absent, got %q", h.Get("Host"))
	}
	if h.Get("X-Forwarded-For") != h.Get("Client-IP") {
		t.Errorf("X-Forwarded-For %q and Client-IP %q differ", h.Get("X-Forwarded-For"), h.Get("Client-IP"))
	}

	withHost := forger.Headers("https://d.example/file/abc", "d.example")
	if withHost.Get("Host") != "d.example" {
		t.Errorf("Host = %q, want d.example", withHost.Get("Host"))
	}
}

func TestIdentityForger_RandomIPShape(t *testing.T) {
	forger := NewIdentityForger(internal.DefaultConfig())

	prefixes := make(map[int]bool)
	for _, p := range internal.DefaultIPPrefixes {
		prefixes[p] = true
	}

	for i := 0; i < 500; i++ {
		ip := forger.RandomIP()
		if net.ParseIP(ip).To4() == nil {
			t.Fatalf("%q is not an IPv4 address", ip)
		}
		octets := strings.Split(ip, ".")
		first, _ := strconv.Atoi(octets[0])
		if !prefixes[first] {
			t.Fatalf("first octet %d not in prefix pool", first)
		}
		for _, o := range octets[1:] {
			v, _ := strconv.Atoi(o)
			if v < 0 || v > 254 {
				t.Fatalf("octet %d outside 0..254 in %s", v, ip)
			}
		}
	}
}

func TestIdentityForger_InjectedRand(t *testing.T) {
	forger := NewIdentityForger(internal.DefaultConfig())

	seq := []int{30, 1, 2, 254}
	i := 0
	forger.WithRand(func(n int) int {
		v := seq[i%len(seq)]
		i++
		return v
	})

	// index 30 of the pool is 122
	if ip := forger.RandomIP(); ip != "122.1.2.254" {
		t.Errorf("RandomIP() = %q, want 122.1.2.254", ip)
	}
}

func TestIdentityForger_FreshIPPerCall(t *testing.T) {
	forger := NewIdentityForger(internal.DefaultConfig())
	n := 0
	forger.WithRand(func(int) int {
		n++
		return n % 30
	})

	a := forger.Headers("r", "").Get("Client-IP")
	b := forger.Headers("r", "").Get("Client-IP")
	if a == b {
		t.Errorf("expected a new IP per header set, got %q twice", a)
	}
}
