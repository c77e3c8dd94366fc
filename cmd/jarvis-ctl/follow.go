package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jarvis/internal/status"
	"jarvis/internal/web"
)

var followURL string

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Print status changes as they happen",
	Long: `Connect to the dashboard websocket and print every status change.
The connection is re-established when the dashboard restarts.

Examples:
  jarvis-ctl follow
  jarvis-ctl follow --url ws://127.0.0.1:5000/ws --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url := followURL
		if url == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			url = "ws://" + cfg.Web.Addr + "/ws"
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return web.Follow(ctx, url, 2*time.Second, func(ev status.Event) {
			if jsonOut {
				b, _ := json.Marshal(ev)
				fmt.Println(string(b))
				return
			}
			fmt.Print(ev.At.Format(time.TimeOnly), "  ")
			printEvent(ev)
		})
	},
}

func init() {
	followCmd.Flags().StringVar(&followURL, "url", "", "dashboard websocket url (default from config)")
	rootCmd.AddCommand(followCmd)
}
