// Package cli implements the interactive command-line interface for the
// relay process.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/diewolke9/flo/internal/config"
	"github.com/diewolke9/flo/internal/events"
	"github.com/diewolke9/flo/internal/records"
	"github.com/diewolke9/flo/internal/relay"
)

// CLI provides an interactive command-line interface.
type CLI struct {
	cfg      *config.Config
	eventBus *events.EventBus
	manager  *relay.Manager
	store    *records.Store
}

// NewCLI creates a new CLI handler. store may be nil when session
// history is disabled.
func NewCLI(cfg *config.Config, eventBus *events.EventBus, manager *relay.Manager, store *records.Store) *CLI {
	return &CLI{
		cfg:      cfg,
		eventBus: eventBus,
		manager:  manager,
		store:    store,
	}
}

// Start begins the interactive CLI loop.
func (c *CLI) Start(ctx context.Context) {
	fmt.Println("\nRelay CLI ready. Type 'help' for available commands.")
	fmt.Println("─────────────────────────────────────────────────────")

	reader := newLineReader()
	defer reader.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadLine("relay> ")
		if err != nil {
			if err == io.EOF {
				return
			}
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if err := c.execute(ctx, cmd, args); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

// execute processes a single CLI command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "history":
		return c.printHistory(args)
	case "loglevel":
		return c.cmdLogLevel(args)
	case "quit", "exit", "q":
		fmt.Println("Shutting down relay...")
		c.eventBus.Emit(ctx, events.Event{
			Type:   events.EventShutdown,
			Source: "cli",
		})
	default:
		fmt.Printf("Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

// printHelp displays available commands.
func (c *CLI) printHelp() {
	fmt.Println("\n╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                     Relay CLI Commands                       ║")
	fmt.Println("╠══════════════════════════════════════════════════════════════╣")
	fmt.Println("║  status             Show all active relay sessions           ║")
	fmt.Println("║  history [n]        Show the last n completed sessions       ║")
	fmt.Println("║  loglevel <level>   Change the log level at runtime          ║")
	fmt.Println("║  quit               Shutdown the relay                       ║")
	fmt.Println("║  help               Show this help message                   ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// printStatus displays active sessions in a formatted table.
func (c *CLI) printStatus() {
	sessions := c.manager.ActiveSessions()
	if len(sessions) == 0 {
		fmt.Println("No active sessions.")
		return
	}

	fmt.Println()

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Session", "Match", "Node", "Recv", "Ack", "Muted", "Uptime"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, s := range sessions {
		tw.Append([]string{
			shortID(s.SessionID),
			fmt.Sprintf("%s (#%d)", s.MatchName, s.MatchID),
			s.NodeName,
			fmt.Sprintf("%d", s.TickRecv),
			fmt.Sprintf("%d", s.TickAck),
			fmt.Sprintf("%d", s.Muted),
			time.Since(s.StartedAt).Round(time.Second).String(),
		})
	}

	tw.Render()
	fmt.Println()
}

// printHistory displays recently completed sessions.
func (c *CLI) printHistory(args []string) error {
	if c.store == nil {
		return fmt.Errorf("session history is disabled")
	}

	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid count: %s", args[0])
		}
		limit = n
	}

	recs, err := c.store.Recent(limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No completed sessions.")
		return nil
	}

	fmt.Println()

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Session", "Match", "Outcome", "Recv", "Ack", "Duration", "Ended"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, r := range recs {
		outcome := r.Outcome
		if r.Error != "" {
			outcome = "error"
		}
		tw.Append([]string{
			shortID(r.SessionID),
			fmt.Sprintf("%s (#%d)", r.MatchName, r.MatchID),
			outcome,
			fmt.Sprintf("%d", r.TickRecv),
			fmt.Sprintf("%d", r.TickAck),
			r.EndedAt.Sub(r.StartedAt).Round(time.Second).String(),
			r.EndedAt.Format(time.RFC3339),
		})
	}

	tw.Render()
	fmt.Println()
	return nil
}

func (c *CLI) cmdLogLevel(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: loglevel <trace|debug|info|warn|error>")
	}

	level, err := zerolog.ParseLevel(strings.ToLower(args[0]))
	if err != nil {
		return fmt.Errorf("invalid log level: %s", args[0])
	}

	zerolog.SetGlobalLevel(level)
	log.Info().Str("level", level.String()).Msg("log level changed")
	fmt.Printf("Log level set to %s\n", level)
	return nil
}

// shortID truncates a session UUID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// lineReader is a simple cross-platform line reader.
type lineReader struct {
	scanner *bufio.Scanner
}

func newLineReader() *lineReader {
	return &lineReader{scanner: bufio.NewScanner(os.Stdin)}
}

func (lr *lineReader) ReadLine(prompt string) (string, error) {
	fmt.Print(prompt)
	if !lr.scanner.Scan() {
		if err := lr.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return lr.scanner.Text(), nil
}

func (lr *lineReader) Close() error {
	return nil
}
