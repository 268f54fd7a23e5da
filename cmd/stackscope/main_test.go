package main

import "testing"

func TestProfileAddr(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"", ""},
		{"0", ""},
		{"false", ""},
		{"1", defaultProfileAddr},
		{"true", defaultProfileAddr},
		{":7070", ":7070"},
		{"127.0.0.1:9000", "127.0.0.1:9000"},
	}
	for _, tt := range tests {
		if got := profileAddr(tt.value); got != tt.want {
			t.Errorf("profileAddr(%q) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
