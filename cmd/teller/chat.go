package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harborbank/teller/internal/model"
)

func chatCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant on the terminal",
		Long: `Starts an interactive conversation against a locally wired assistant.
Pass --user to start pre-authenticated as the demo customer; type
"confirm" or "cancel" to resolve a pending transaction, and "quit" to
leave.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), userID)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "start authenticated as this user id (e.g. user_001)")
	return cmd
}

func runChat(ctx context.Context, userID string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	var authCtx *model.AuthContext
	if userID != "" {
		authCtx, err = authenticateLocal(a, userID)
		if err != nil {
			return err
		}
		fmt.Printf("Authenticated as %s.\n", userID)
	}

	fmt.Println("Connected. Type a message, or \"quit\" to leave.")

	scanner := bufio.NewScanner(os.Stdin)
	var sessionID string
	var pendingTx string

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		if pendingTx != "" {
			switch strings.ToLower(line) {
			case "confirm", "yes", "proceed":
				result, err := a.orch.Execute(ctx, pendingTx, sessionID, authCtx)
				if err != nil {
					fmt.Println(userFacing(err))
				} else {
					fmt.Println(result.Message)
				}
				pendingTx = ""
				continue
			case "cancel", "no":
				if err := a.orch.Cancel(pendingTx, sessionID); err != nil {
					fmt.Println(userFacing(err))
				} else {
					fmt.Println("Okay, I've cancelled that transaction.")
				}
				pendingTx = ""
				continue
			}
		}

		resp := a.orch.Handle(ctx, line, sessionID, authCtx)
		sessionID = resp.SessionID

		fmt.Println(resp.Message)
		fmt.Printf("  [intent: %s, confidence: %.2f]\n", resp.Intent, resp.Confidence)

		if resp.RequiresConfirmation {
			pendingTx = resp.Metadata["transaction_id"]
			fmt.Println("  (type \"confirm\" to proceed or \"cancel\" to abort)")
		}
		if resp.RequiresAuth {
			fmt.Println("  (restart with --user to authenticate)")
		}
	}

	return scanner.Err()
}

// authenticateLocal runs the OTP round-trip in-process for the REPL.
func authenticateLocal(a *app, userID string) (*model.AuthContext, error) {
	otp := a.auth.GenerateOTP(userID)
	_, authCtx, err := a.auth.Authenticate(userID, otp)
	if err != nil {
		return nil, fmt.Errorf("local authentication failed: %w", err)
	}
	return authCtx, nil
}

func userFacing(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
