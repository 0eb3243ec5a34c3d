// Package tui provides the full-screen terminal chat used by `lilli chat --tui`.
//
// The screen has three parts:
//   - A scrollable transcript of requests and replies
//   - A single-line input with a spinner and the latest handler activity
//     while a turn runs
//   - A footer with the session ID, turn counts, and key hints
//
// Turns run off the UI goroutine through the TurnFunc in ChatConfig. Handler
// progress is pushed in from outside with ActivityMsg.
//
// Usage:
//
//	program, _ := tui.NewChatProgram(ctx, tui.ChatConfig{
//	    SessionID:  id,
//	    Turn:       orch.HandleTurn,
//	    Forget:     orch.CloseSession,
//	    NewSession: func() string { return uuid.New().String() },
//	})
//	go forwardEvents(program)
//	_, err := program.Run()
//
//	// From the event goroutine
//	program.Send(tui.ActivityMsg{SessionID: ev.SessionID, Text: "design done"})
//
// Slash commands /new, /forget, /session and /quit are handled by the app.
package tui
