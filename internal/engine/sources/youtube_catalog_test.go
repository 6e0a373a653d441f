package sources

import "testing"

func TestFormatISODuration(t *testing.T) {
	tests := []struct {
		iso  string
		want string
	}{
		{"PT1H2M10S", "1:02:10"},
		{"PT15M33S", "15:33"},
		{"PT45S", "0:45"},
		{"PT2H", "2:00:00"},
		{"PT1M", "1:00"},
		{"P1DT2H", "0:00"},
		{"garbage", "0:00"},
		{"", "0:00"},
	}
	for _, tt := range tests {
		if got := FormatISODuration(tt.iso); got != tt.want {
			t.Errorf("FormatISODuration(%q) = %q, want %q", tt.iso, got, tt.want)
		}
	}
}
