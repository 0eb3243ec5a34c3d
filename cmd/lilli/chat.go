package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ryanmello/lilli/internal/orchestrator"
	"github.com/ryanmello/lilli/internal/tui"
	"github.com/ryanmello/lilli/pkg/models"
)

var chatTUI bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session.

Commands:
  /session   print the current session ID
  /new       start a new session
  /forget    delete the current session and start a new one
  /quit      exit

Use --tui for a full-screen view that shows handler progress while a
turn runs.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatTUI, "tui", false, "Use the full-screen chat view")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID := sessionFlag
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	if chatTUI {
		return runChatTUI(cmd, a, sessionID)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          color.New(color.FgMagenta, color.Bold).Sprint("you> "),
		HistoryFile:     historyPath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		return fmt.Errorf("start readline: %w", err)
	}
	defer rl.Close()

	out := rl.Stdout()
	printStatus(out, "✿", fmt.Sprintf("Lilli %s (%s), session %s", Version(), cfg.LLM.Provider, sessionID), color.FgMagenta)
	fmt.Fprintln(out, "Type /quit to exit.")

	ctx := cmd.Context()
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/session":
			fmt.Fprintln(out, sessionID)
			continue
		case "/new":
			sessionID = uuid.New().String()
			printStatus(out, "✓", "New session "+sessionID, color.FgGreen)
			continue
		case "/forget":
			if err := a.orch.CloseSession(ctx, sessionID); err != nil {
				printStatus(out, "✗", err.Error(), color.FgRed)
				continue
			}
			sessionID = uuid.New().String()
			printStatus(out, "✓", "Forgot the conversation; new session "+sessionID, color.FgGreen)
			continue
		}

		resp, err := a.orch.HandleTurn(ctx, sessionID, line)
		fmt.Fprintln(out)
		renderResponse(out, resp)
		if err != nil {
			printStatus(out, "✗", err.Error(), color.FgRed)
		}
		fmt.Fprintln(out)
	}
}

// runChatTUI runs the chat in the full-screen view until the user quits.
func runChatTUI(cmd *cobra.Command, a *app, sessionID string) error {
	program, _ := tui.NewChatProgram(cmd.Context(), tui.ChatConfig{
		SessionID:  sessionID,
		Turn:       a.orch.HandleTurn,
		Forget:     a.orch.CloseSession,
		NewSession: func() string { return uuid.New().String() },
		Format: func(resp models.FinalResponse) string {
			var b strings.Builder
			renderResponse(&b, resp)
			return strings.TrimRight(b.String(), "\n")
		},
		Title: fmt.Sprintf("✿ Lilli %s (%s)", Version(), a.cfg.LLM.Provider),
	})

	a.observe(func(ev orchestrator.TurnEvent) {
		if text := activityText(ev); text != "" {
			program.Send(tui.ActivityMsg{SessionID: ev.SessionID, Text: text})
		}
	})
	defer a.observe(nil)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("chat view: %w", err)
	}
	return nil
}

// activityText describes an in-progress turn event for the status line.
func activityText(ev orchestrator.TurnEvent) string {
	switch ev.Type {
	case orchestrator.EventTurnClassified:
		if ev.Decision == nil {
			return "routed"
		}
		return "routed to " + strings.Join(ev.Decision.Handlers(), ", ")
	case orchestrator.EventHandlerCompleted:
		return fmt.Sprintf("%s done in %s", ev.Handler, ev.Duration.Round(10*time.Millisecond))
	case orchestrator.EventHandlerFailed:
		return ev.Handler + " failed"
	default:
		return ""
	}
}

// historyPath returns the readline history file under XDG_STATE_HOME.
func historyPath() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		stateDir = filepath.Join(home, ".local", "state")
	}
	dir := filepath.Join(stateDir, "lilli")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}
