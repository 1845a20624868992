package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skein-dev/skein/internal/tui"
)

var watchAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard for a running fleet",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "", "Status server address (default: from config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	addr := watchAddr
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		addr = cfg.Server.Addr
	}
	return tui.Run(addr)
}
