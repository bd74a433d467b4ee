package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.internal:3128", "", "api.anthropic.com")

	req, _ := http.NewRequest(http.MethodGet, "https://api.openai.com/v1/models", nil)
	u, err := proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if u == nil || u.Host != "proxy.internal:3128" {
		t.Errorf("expected HTTP proxy to serve HTTPS requests, got %v", u)
	}

	req, _ = http.NewRequest(http.MethodGet, "https://api.anthropic.com/v1/messages", nil)
	u, err = proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if u != nil {
		t.Errorf("expected NO_PROXY host to bypass the proxy, got %v", u)
	}
}

func TestNewProxyFunc_SeparateHTTPS(t *testing.T) {
	proxy := NewProxyFunc("http://plain.internal:80", "http://secure.internal:443", "")

	req, _ := http.NewRequest(http.MethodGet, "https://api.openai.com", nil)
	u, _ := proxy(req)
	if u == nil || u.Host != "secure.internal:443" {
		t.Errorf("expected HTTPS proxy, got %v", u)
	}

	req, _ = http.NewRequest(http.MethodGet, "http://ollama.lan:11434", nil)
	u, _ = proxy(req)
	if u == nil || u.Host != "plain.internal:80" {
		t.Errorf("expected HTTP proxy, got %v", u)
	}
}
