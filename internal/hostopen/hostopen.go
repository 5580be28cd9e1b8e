// Package hostopen opens URLs in the browser of the machine running the
// server.
package hostopen

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"

	"github.com/pkg/browser"

	"github.com/starford/cardring/internal/apperr"
)

// Runner launches a validated URL.
type Runner func(ctx context.Context, target string) error

// Opener validates URLs and hands them to a Runner.
type Opener struct {
	run Runner
}

// New returns an Opener launching the system browser. A non-empty BROWSER
// environment variable names the command to run instead.
func New() *Opener {
	return &Opener{run: systemBrowser}
}

// NewWithRunner returns an Opener that launches URLs through run.
func NewWithRunner(run Runner) *Opener {
	return &Opener{run: run}
}

// Open launches rawURL. Only absolute http and https URLs are accepted.
func (o *Opener) Open(ctx context.Context, rawURL string) error {
	u, err := Validate(rawURL)
	if err != nil {
		return err
	}
	if err := o.run(ctx, u.String()); err != nil {
		return fmt.Errorf("hostopen: open %s: %w", u.Redacted(), err)
	}
	return nil
}

// Validate parses rawURL and checks it is an absolute http or https URL.
func Validate(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("hostopen: %w: %v", apperr.ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("hostopen: %w: %q", apperr.ErrInvalidURL, rawURL)
	}
	return u, nil
}

func systemBrowser(ctx context.Context, target string) error {
	if env := os.Getenv("BROWSER"); env != "" {
		sh := fmt.Sprintf("%s \"$1\"", env)
		cmd := exec.CommandContext(ctx, "sh", "-c", sh, "--", target)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("run %v (out: %q): %w", cmd.Args, out, err)
		}
		return nil
	}
	return browser.OpenURL(target)
}
