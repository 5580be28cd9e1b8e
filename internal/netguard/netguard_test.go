package netguard

import (
	"errors"
	"testing"
)

func TestCheckHost_Blocked(t *testing.T) {
	hosts := []string{
		"127.0.0.1",
		"127.1.2.3",
		"::1",
		"[::1]",
		"localhost",
		"LOCALHOST.",
		"app.localhost",
		"0.0.0.0",
		"169.254.169.254",
		"fe80::1",
		"metadata.google.internal",
		"",
	}
	for _, h := range hosts {
		if err := CheckHost(h); !errors.Is(err, ErrBlocked) {
			t.Errorf("CheckHost(%q) = %v, want ErrBlocked", h, err)
		}
	}
}

func TestCheckHost_Allowed(t *testing.T) {
	hosts := []string{
		"93.184.216.34",
		"2606:2800:220:1:248:1893:25c8:1946",
		"example.invalid",
	}
	for _, h := range hosts {
		if err := CheckHost(h); err != nil {
			t.Errorf("CheckHost(%q) = %v, want nil", h, err)
		}
	}
}
