package cli

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

// browserNavigator hands authorize URLs to the system browser. The terminal has no location to replace.
type browserNavigator struct {
	out  io.Writer
	open func(url string) error
}

func (n *browserNavigator) Redirect(ctx context.Context, url string) error {
	if n.open == nil {
		fmt.Fprintf(n.out, "Sign in at %s\n", url)
		return nil
	}
	fmt.Fprintf(n.out, "Opening %s\n", url)
	if err := n.open(url); err != nil {
		fmt.Fprintln(n.out, "Could not open a browser, visit the URL above to continue")
	}
	return nil
}

func (n *browserNavigator) Replace(path string) {}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
