package smtp

import "testing"

func TestResolveTLSMode(t *testing.T) {
	cases := []struct {
		mode    string
		port    int
		want    TLSMode
		wantErr bool
	}{
		{"", 587, TLSModeStartTLS, false},
		{"", 465, TLSModeImplicit, false},
		{"auto", 25, TLSModeStartTLS, false},
		{"starttls", 465, TLSModeStartTLS, false},
		{"implicit", 587, TLSModeImplicit, false},
		{"off", 25, TLSModeDisabled, false},
		{"mystery", 587, "", true},
	}
	for _, tc := range cases {
		s := NewSender("smtp.example.com", tc.port, "u", "p", tc.mode, false)
		got, err := s.resolveTLSMode()
		if tc.wantErr {
			if err == nil {
				t.Errorf("mode %q: expected error", tc.mode)
			}
			continue
		}
		if err != nil {
			t.Errorf("mode %q: %v", tc.mode, err)
			continue
		}
		if got != tc.want {
			t.Errorf("mode %q port %d: got %v, want %v", tc.mode, tc.port, got, tc.want)
		}
	}
}
