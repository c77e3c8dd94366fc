package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"jarvis/internal/ipc"
	"jarvis/internal/journal"
	"jarvis/internal/status"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the assistant loop",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := send(cmd.Context(), ipc.CmdStop, nil)
		if err != nil {
			return err
		}
		fmt.Println("stopping, status:", resp.Status)
		return nil
	},
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Refresh weather and news data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := send(cmd.Context(), ipc.CmdScrape, nil); err != nil {
			return err
		}
		fmt.Println("real-time data refreshed")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the assistant status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := send(cmd.Context(), ipc.CmdStatus, nil)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(resp.Data)
		}
		var ev status.Event
		if err := json.Unmarshal(resp.Data, &ev); err != nil {
			fmt.Println(resp.Status)
			return nil
		}
		printEvent(ev)
		return nil
	},
}

var journalN int

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show recent turns",
	Long: `Show the most recent assistant turns, newest first.

Examples:
  jarvis-ctl journal
  jarvis-ctl journal -n 20 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := send(cmd.Context(), ipc.CmdJournal, map[string]string{"n": strconv.Itoa(journalN)})
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(resp.Data)
		}
		var turns []journal.Turn
		if err := json.Unmarshal(resp.Data, &turns); err != nil {
			return fmt.Errorf("decode journal: %w", err)
		}
		for _, t := range turns {
			fmt.Printf("%s  %q\n", t.At.Format(time.DateTime), t.Utterance)
			if t.Intent != "" {
				fmt.Printf("    intent: %s\n", t.Intent)
			}
			if t.Reply != "" {
				fmt.Printf("    reply:  %s\n", t.Reply)
			}
			if t.Err != "" {
				fmt.Printf("    error:  %s\n", t.Err)
			}
			fmt.Printf("    timing: transcribe %s, respond %s, synthesize %s\n",
				t.Transcribe.Round(time.Millisecond), t.Respond.Round(time.Millisecond), t.Synthesize.Round(time.Millisecond))
		}
		return nil
	},
}

func init() {
	journalCmd.Flags().IntVarP(&journalN, "count", "n", 10, "number of turns")
	rootCmd.AddCommand(stopCmd, scrapeCmd, statusCmd, journalCmd)
}

func send(ctx context.Context, cmd string, args map[string]string) (ipc.Response, error) {
	cfg, err := loadConfig()
	if err != nil {
		return ipc.Response{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := ipc.Send(ctx, cfg.IPC.Socket, ipc.ControlMessage{Cmd: cmd, Args: args})
	if err != nil {
		return resp, fmt.Errorf("jarvis-daemon not reachable on %s: %w", cfg.IPC.Socket, err)
	}
	return resp, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printEvent(ev status.Event) {
	if ev.Note != "" {
		fmt.Printf("%s  %s\n", ev.Status, ev.Note)
		return
	}
	fmt.Println(ev.Status)
}
