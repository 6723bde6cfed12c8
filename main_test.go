package main

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crispinterview/backend/services"
)

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed string
		origin  string
		want    bool
	}{
		{"default SPA dev origin", "http://localhost:5173", "http://localhost:5173", true},
		{"deployed origin second in list", "http://localhost:5173,https://interviews.example.com", "https://interviews.example.com", true},
		{"whitespace around list entries", "http://localhost:5173, https://interviews.example.com", "https://interviews.example.com", true},
		{"unlisted origin denied", "http://localhost:5173", "https://evil.example.com", false},
		{"scheme mismatch denied", "https://interviews.example.com", "http://interviews.example.com", false},
		{"port mismatch denied", "http://localhost:5173", "http://localhost:4173", false},
		{"empty config denies everything", "", "http://localhost:5173", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/ws", nil)
			req.Header.Set("Origin", tt.origin)
			assert.Equal(t, tt.want, services.CheckOrigin(req, tt.allowed))
		})
	}
}
