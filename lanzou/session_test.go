package lanzou

import (
	"net/http"
	"testing"
)

func TestSession_LastWriteWins(t *testing.T) {
	s := NewSession()
	s.Set("PHPSESSID", "a")
	s.Set("acw_tc", "b")
	s.Set("PHPSESSID", "c")

	if v, _ := s.Get("PHPSESSID"); v != "c" {
		t.Errorf("PHPSESSID = %q, want c", v)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if got := s.Header(); got != "PHPSESSID=c; acw_tc=b" {
		t.Errorf("Header() = %q", got)
	}
}

func TestSession_Absorb(t *testing.T) {
	s := NewSession()
	s.Absorb([]*http.Cookie{
		{Name: "acw_tc", Value: "1"},
		nil,
		{Name: "", Value: "ignored"},
		{Name: ChallengeCookie, Value: "old"},
	})
	s.Absorb([]*http.Cookie{{Name: ChallengeCookie, Value: "new"}})

	if v, _ := s.Get(ChallengeCookie); v != "new" {
		t.Errorf("%s = %q, want new", ChallengeCookie, v)
	}
	if _, ok := s.Get(""); ok {
		t.Error("empty cookie name should be ignored")
	}
}

func TestSession_Apply(t *testing.T) {
	empty := NewSession()
	h := empty.Apply(http.Header{})
	if h.Get("Cookie") != "" {
		t.Errorf("empty session should not set Cookie, got %q", h.Get("Cookie"))
	}

	s := NewSession()
	s.Set("a", "1")
	h = s.Apply(http.Header{})
	if h.Get("Cookie") != "a=1" {
		t.Errorf("Cookie = %q, want a=1", h.Get("Cookie"))
	}

	var nilSession *Session
	if got := nilSession.Apply(http.Header{}); got.Get("Cookie") != "" {
		t.Error("nil session should leave headers untouched")
	}
}

func TestSession_Isolation(t *testing.T) {
	first := NewSession()
	second := NewSession()
	first.Set("PHPSESSID", "mirror-1")

	if _, ok := second.Get("PHPSESSID"); ok {
		t.Error("sessions must not share cookies")
	}
}
