package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc_Configured(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "http://secure.local:3128", "labs.example.mx")

	tests := []struct {
		url  string
		want string
	}{
		{"http://docs.example.com/manual.pdf", "http://proxy.local:3128"},
		{"https://docs.example.com/manual.pdf", "http://secure.local:3128"},
		{"https://labs.example.mx/etiqueta.png", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, tt.url, nil)
			if err != nil {
				t.Fatal(err)
			}
			got, err := proxy(req)
			if err != nil {
				t.Fatalf("proxy() error: %v", err)
			}
			if tt.want == "" {
				if got != nil {
					t.Errorf("Expected no proxy, got %s", got)
				}
				return
			}
			if got == nil || got.String() != tt.want {
				t.Errorf("proxy(%s) = %v, want %s", tt.url, got, tt.want)
			}
		})
	}
}

func TestNewTransport(t *testing.T) {
	tr := NewTransport("http://proxy.local:3128", "", "")
	if tr.Proxy == nil {
		t.Fatal("Expected proxy func on transport")
	}
}
