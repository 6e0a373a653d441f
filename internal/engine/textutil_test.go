package engine

import "testing"

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"tags stripped", "<i>hello</i> <b>world</b>", "hello world"},
		{"entities decoded", "it&amp;#39;s fine", "it's fine"},
		{"double-escaped entity", "&amp;amp;", "&"},
		{"whitespace trimmed", "  padded  ", "padded"},
		{"plain text untouched", "こんにちは", "こんにちは"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanHTML(tt.in); got != tt.want {
				t.Errorf("CleanHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRandomUserAgent(t *testing.T) {
	for i := 0; i < 20; i++ {
		if RandomUserAgent() == "" {
			t.Fatal("empty user agent")
		}
	}
}
