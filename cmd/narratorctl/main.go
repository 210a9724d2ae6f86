// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/narrator/internal/api/httpapi"
	"github.com/osa030/narrator/internal/app/notification"
)

var (
	app    = kingpin.New("narratorctl", "narrator admin client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set NARRATOR_ADMIN_TOKEN env)").Envar("NARRATOR_ADMIN_TOKEN").String()

	// status command
	statusCmd = app.Command("status", "Get sequencer status")

	// play command
	playCmd  = app.Command("play", "Request a sequence")
	playName = playCmd.Arg("sequence", "Sequence name").Required().String()

	// abort command
	abortCmd = app.Command("abort", "Abort the active sequence")

	// reset command
	resetCmd = app.Command("reset", "Clear the queue, stack and seen-set")

	// watch command
	watchCmd = app.Command("watch", "Stream sequencer events")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or NARRATOR_ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := httpapi.NewClient(*server, *token, nil)
	ctx := context.Background()

	switch command {
	case statusCmd.FullCommand():
		status(ctx, client)
	case playCmd.FullCommand():
		play(ctx, client, *playName)
	case abortCmd.FullCommand():
		abort(ctx, client)
	case resetCmd.FullCommand():
		reset(ctx, client)
	case watchCmd.FullCommand():
		watch(ctx, client)
	}
}

func status(ctx context.Context, client *httpapi.Client) {
	s, err := client.Status(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n=== SEQUENCER STATUS ===")
	fmt.Printf("Session ID: %s\n", s.SessionID)
	fmt.Printf("Started At: %s\n", s.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Running: %v\n", s.Running)
	fmt.Printf("Playback: %s\n", s.Playback)
	if s.CurrentClip != "" {
		fmt.Printf("Current Clip: %s\n", s.CurrentClip)
	}
	fmt.Printf("Subscribers: %d\n", s.Subscribers)

	if len(s.Active) > 0 {
		fmt.Printf("\nActive Sequences (top last): %s\n", strings.Join(s.Active, " > "))
	} else {
		fmt.Println("\nNo active sequence")
	}

	if len(s.Queue) > 0 {
		fmt.Println("\nQueue:")
		for i, q := range s.Queue {
			fmt.Printf("  %2d. %-24s %-16s %6.1fs\n", i+1, q.Clip, q.Sequence, q.AgeSec)
		}
	}

	fmt.Printf("\nSeen (%d): %s\n", len(s.Seen), strings.Join(s.Seen, ", "))
	fmt.Println()
}

func play(ctx context.Context, client *httpapi.Client, name string) {
	resp, err := client.Play(ctx, name)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if resp.Success {
		fmt.Printf("%s: %s\n", resp.Sequence, resp.Message)
	} else {
		fmt.Printf("Not played (%s): %s\n", resp.Outcome, resp.Message)
	}
}

func abort(ctx context.Context, client *httpapi.Client) {
	resp, err := client.Abort(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(resp.Message)
}

func reset(ctx context.Context, client *httpapi.Client) {
	resp, err := client.Reset(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if resp.Success {
		fmt.Println(resp.Message)
	} else {
		fmt.Printf("Failed: %s\n", resp.Message)
	}
}

func watch(ctx context.Context, client *httpapi.Client) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := client.Events(ctx, func(n *notification.Notification) {
		line := fmt.Sprintf("#%d %s %s", n.SequenceNo, n.Time.Format("15:04:05.000"), n.Type)
		if n.Sequence != "" {
			line += " sequence=" + n.Sequence
		}
		if n.Clip != "" {
			line += " clip=" + n.Clip
		}
		if n.Outcome != "" {
			line += " outcome=" + n.Outcome
		}
		fmt.Println(line)
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
