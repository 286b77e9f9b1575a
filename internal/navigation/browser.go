package navigation

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"github.com/haasteikko/webclient/internal/log"
)

// BrowserNavigator opens targets in the desktop browser. When no opener is
// available it prints the URL for the user to follow.
type BrowserNavigator struct {
	out     io.Writer
	command func(ctx context.Context, target string) *exec.Cmd
}

func NewBrowserNavigator(out io.Writer) *BrowserNavigator {
	return &BrowserNavigator{out: out, command: openCommand}
}

func openCommand(ctx context.Context, target string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.CommandContext(ctx, "open", target)
	case "windows":
		return exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", target)
	default:
		return exec.CommandContext(ctx, "xdg-open", target)
	}
}

func (b *BrowserNavigator) Assign(ctx context.Context, target string) error {
	cmd := b.command(ctx, target)
	if err := cmd.Start(); err != nil {
		log.LogDebugWithFields("navigation", "Browser opener unavailable", map[string]any{
			"error": err.Error(),
		})
		_, werr := fmt.Fprintf(b.out, "Open this URL in your browser:\n\n  %s\n\n", target)
		return werr
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Replace has nothing to rewrite outside a browser.
func (b *BrowserNavigator) Replace(context.Context, string) error {
	return nil
}
