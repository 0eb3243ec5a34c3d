package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask <request>",
	Short: "Handle a single request",
	Long: `Handle one request and print the reply.

Pass --session to continue an earlier conversation; otherwise a new session
is created and its ID is printed so it can be continued later.

Examples:
  lilli ask "Do you have red roses?"
  lilli ask --session shop-42 "Deliver them tomorrow to 90210"
  lilli ask --json "How much is a wedding bouquet?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full response as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
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
	request := strings.Join(args, " ")

	resp, turnErr := a.orch.HandleTurn(cmd.Context(), sessionID, request)
	out := cmd.OutOrStdout()

	if askJSON {
		payload := struct {
			SessionID string `json:"session_id"`
			Error     string `json:"error,omitempty"`
			Response  any    `json:"response"`
		}{SessionID: sessionID, Response: resp}
		if turnErr != nil {
			payload.Error = turnErr.Error()
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(out, "%s\n", data)
		return turnErr
	}

	renderResponse(out, resp)
	if turnErr != nil {
		printStatus(cmd.ErrOrStderr(), "✗", turnErr.Error(), color.FgRed)
		return turnErr
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "\nsession: %s\n", sessionID)
	return nil
}
