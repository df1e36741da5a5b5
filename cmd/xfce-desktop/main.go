package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "xfce-desktop",
	Short: "Browser-accessible Xfce desktop orchestrator",
	Long: `xfce-desktop boots and supervises the process pipeline that exposes an
Xfce desktop in the browser: the Xvfb framebuffer, the Xfce session, the
x11vnc server and the websockify bridge for noVNC. It serves a status
endpoint the web UI polls to decide whether the desktop is usable.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
