package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vibepilot/agentd/internal/config"
	"github.com/vibepilot/agentd/internal/control"
)

func attachCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "attach <sessionId>",
		Short: "Attach the local terminal to a running session's control socket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]
			sock := socketPath
			if sock == "" {
				userDir, err := config.UserConfigDir()
				if err != nil {
					return err
				}
				sock = filepath.Join(userDir, "control.sock")
			}
			return runAttach(control.NewClient(sock), sessionID)
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "Path to the daemon's control socket")
	return cmd
}

// runAttach puts the local terminal into raw mode and relays keystrokes to
// sessionID's shell via the control socket, resending the window size on
// every SIGWINCH. Output streaming is the websocket/bus path's job; attach here
// is input-only, matching the control socket's surface.
func runAttach(c *control.Client, sessionID string) error {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err == nil {
			defer term.Restore(fd, oldState)
		}
	}

	if err := resizeFromTerminal(c, sessionID, fd); err != nil {
		fmt.Fprintf(os.Stderr, "initial resize: %v\n", err)
	}

	winchCh := make(chan os.Signal, 1)
	signal.Notify(winchCh, syscall.SIGWINCH)
	defer signal.Stop(winchCh)
	go func() {
		for range winchCh {
			_ = resizeFromTerminal(c, sessionID, fd)
		}
	}()

	reader := bufio.NewReader(os.Stdin)
	buf := make([]byte, 4096)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if werr := c.Input(sessionID, buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			return nil
		}
	}
}

func resizeFromTerminal(c *control.Client, sessionID string, fd int) error {
	if !term.IsTerminal(fd) {
		return nil
	}
	w, h, err := term.GetSize(fd)
	if err != nil {
		return err
	}
	return c.Resize(sessionID, w, h)
}
