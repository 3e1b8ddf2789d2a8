package models_test

import (
	"testing"

	"proxywatch/internal/models"
)

func TestClientStatusString(t *testing.T) {
	if models.StatusOnline.String() != "Online" {
		t.Errorf("Expected Online, got %s", models.StatusOnline.String())
	}
	if models.StatusOffline.String() != "Offline" {
		t.Errorf("Expected Offline, got %s", models.StatusOffline.String())
	}
	if models.ClientStatus(42).String() != "Unknown" {
		t.Errorf("Expected Unknown for invalid status")
	}
}

func TestProxyEventHasDomain(t *testing.T) {
	tests := []struct {
		domain string
		want   bool
	}{
		{"example.com", true},
		{"", false},
		{models.NoDomain, false},
	}

	for _, tt := range tests {
		event := models.ProxyEvent{Domain: tt.domain}
		if got := event.HasDomain(); got != tt.want {
			t.Errorf("HasDomain(%q) = %v, want %v", tt.domain, got, tt.want)
		}
	}
}

func TestProxyEventTime(t *testing.T) {
	event := models.ProxyEvent{RawTimestamp: "2025-06-01T12:30:00Z"}
	ts, err := event.Time()
	if err != nil {
		t.Fatalf("Time failed: %v", err)
	}
	if ts.Hour() != 12 || ts.Minute() != 30 {
		t.Errorf("Unexpected parsed time: %v", ts)
	}

	bad := models.ProxyEvent{RawTimestamp: "yesterday"}
	if _, err := bad.Time(); err == nil {
		t.Error("Expected parse error for malformed timestamp")
	}
}
