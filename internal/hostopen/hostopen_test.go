package hostopen

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/cardring/internal/apperr"
)

func TestOpen_ValidURL(t *testing.T) {
	var got string
	o := NewWithRunner(func(_ context.Context, target string) error {
		got = target
		return nil
	})
	if err := o.Open(context.Background(), "https://scrapbox.io/help-jp/Page"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "https://scrapbox.io/help-jp/Page" {
		t.Errorf("runner got %q", got)
	}
}

func TestOpen_RejectsOtherSchemes(t *testing.T) {
	called := false
	o := NewWithRunner(func(context.Context, string) error {
		called = true
		return nil
	})
	for _, raw := range []string{"", "file:///etc/passwd", "javascript:alert(1)", "/relative", "http://", "%zz"} {
		err := o.Open(context.Background(), raw)
		if !errors.Is(err, apperr.ErrInvalidURL) {
			t.Errorf("Open(%q) = %v, want ErrInvalidURL", raw, err)
		}
	}
	if called {
		t.Error("runner called for an invalid URL")
	}
}

func TestOpen_RunnerError(t *testing.T) {
	o := NewWithRunner(func(context.Context, string) error { return errors.New("no display") })
	err := o.Open(context.Background(), "http://example.com")
	if err == nil || errors.Is(err, apperr.ErrInvalidURL) {
		t.Fatalf("want runner error, got %v", err)
	}
}
