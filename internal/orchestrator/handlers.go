package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/harborbank/teller/internal/llm"
	"github.com/harborbank/teller/internal/model"
	"github.com/harborbank/teller/internal/session"
)

// fallbackFAQMessage answers when retrieval or generation is
// unavailable; the conversation must stay usable without either.
const fallbackFAQMessage = "I can help with general banking questions. " +
	"What would you like to know about accounts, cards, transfers, or branch services?"

// fallbackMenu is the fixed response for intents with no handler.
const fallbackMenu = `I'm not quite sure how to help with that. Here's what I can do:

Account Services
- Check your balance and transaction history
- View account details

Card Management
- Lock or unlock your cards
- Report lost or stolen cards

Transactions
- Transfer funds between accounts
- Pay bills

Information
- Branch hours and locations
- Fees and limits
- Product information

What would you like to do?`

// handleFAQ answers informational queries via retrieval and generation.
// It never requires auth and always returns a message.
func (o *Orchestrator) handleFAQ(ctx context.Context, sess *session.Session, message string, _ *model.AuthContext, _ model.IntentResult) handlerResponse {
	if o.retriever == nil || o.generator == nil {
		return handlerResponse{message: fallbackFAQMessage}
	}

	results, err := o.retriever.Retrieve(ctx, message, o.topK)
	if err != nil {
		o.logger.Error("retrieval failed", "session_id", sess.ID(), "error", err)
		return handlerResponse{message: fallbackFAQMessage}
	}

	passages := make([]llm.Passage, len(results))
	sources := make([]string, 0, len(results))
	for i, r := range results {
		passages[i] = llm.Passage{Content: r.Content, Source: r.Source}
		if r.Source != "" {
			sources = append(sources, r.Source)
		}
	}

	answer, err := o.generator.Generate(ctx, message, passages, sess.History(historyWindow))
	if err != nil {
		o.logger.Error("answer generation failed", "session_id", sess.ID(), "error", err)
		return handlerResponse{message: fallbackFAQMessage}
	}

	hr := handlerResponse{message: answer}
	if len(sources) > 0 {
		hr.metadata = map[string]string{"sources": strings.Join(sources, ", ")}
	}
	return hr
}

// handleAccountQuery serves balance and history questions. Both require
// an authenticated user.
func (o *Orchestrator) handleAccountQuery(ctx context.Context, sess *session.Session, _ string, auth *model.AuthContext, res model.IntentResult) handlerResponse {
	if auth == nil {
		return handlerResponse{
			message: "To check your account information, I need to verify your identity first. " +
				"Please authenticate to continue.",
			requiresAuth: true,
		}
	}

	if res.Intent == model.IntentTransactionHistory {
		return o.accountHistory(ctx, sess, auth)
	}
	return o.accountBalances(ctx, sess, auth)
}

func (o *Orchestrator) accountBalances(ctx context.Context, sess *session.Session, auth *model.AuthContext) handlerResponse {
	accounts, err := o.gateway.GetAccounts(ctx, auth.UserID)
	if err != nil {
		o.logger.Error("account lookup failed", "session_id", sess.ID(), "error", err)
		return handlerResponse{
			message: "I'm having trouble retrieving your account information. Please try again in a moment.",
			failed:  true,
		}
	}

	switch len(accounts) {
	case 0:
		return handlerResponse{message: "I couldn't find any accounts on file for you."}
	case 1:
		acc := accounts[0]
		return handlerResponse{message: fmt.Sprintf(
			"Your %s account (ending in %s) has a balance of %s %s.",
			acc.Type, lastFour(acc.Number), acc.Currency, acc.Balance.StringFixed(2))}
	default:
		var b strings.Builder
		b.WriteString("Here are your current account balances:\n\n")
		for _, acc := range accounts {
			fmt.Fprintf(&b, "- %s (****%s): %s %s\n",
				acc.Type, lastFour(acc.Number), acc.Currency, acc.Balance.StringFixed(2))
		}
		b.WriteString("\nAll balances are updated in real-time.")
		return handlerResponse{message: b.String()}
	}
}

func (o *Orchestrator) accountHistory(ctx context.Context, sess *session.Session, auth *model.AuthContext) handlerResponse {
	entries, err := o.gateway.GetRecentTransactions(ctx, auth.UserID, historyWindow)
	if err != nil {
		o.logger.Error("history lookup failed", "session_id", sess.ID(), "error", err)
		return handlerResponse{
			message: "I'm having trouble retrieving your transactions. Please try again in a moment.",
			failed:  true,
		}
	}

	if len(entries) == 0 {
		return handlerResponse{message: "You have no recent transactions on file."}
	}

	var b strings.Builder
	b.WriteString("Here are your recent transactions:\n\n")
	for _, entry := range entries {
		fmt.Fprintf(&b, "- %s: %s (SGD %s)\n",
			entry.Date.Format("2006-01-02"), entry.Description, entry.Amount.StringFixed(2))
	}
	return handlerResponse{message: b.String()}
}

// handleTransaction gates transactional intents behind authentication
// and delegates to the workflow engine.
func (o *Orchestrator) handleTransaction(ctx context.Context, sess *session.Session, message string, auth *model.AuthContext, res model.IntentResult) handlerResponse {
	if auth == nil {
		return handlerResponse{
			message: "For security, I need to verify your identity before processing any transactions. " +
				"Please authenticate first.",
			requiresAuth: true,
		}
	}

	kind, ok := res.Intent.TransactionType()
	if !ok {
		return handlerResponse{message: fallbackMenu}
	}

	result := o.workflow.Initiate(ctx, kind, message, auth, sess)

	md := result.Metadata
	if md == nil {
		md = make(map[string]string, 2)
	}
	if result.TransactionID != "" {
		md["transaction_id"] = result.TransactionID
	}
	if result.Blocked {
		md["blocked"] = "true"
	}

	return handlerResponse{
		message:              result.Message,
		requiresConfirmation: result.RequiresConfirmation,
		failed:               result.Failed,
		metadata:             md,
	}
}

// handleFallback covers intents with no registered handler.
func (o *Orchestrator) handleFallback(_ context.Context, _ *session.Session, _ string, _ *model.AuthContext, _ model.IntentResult) handlerResponse {
	return handlerResponse{message: fallbackMenu}
}

func lastFour(number string) string {
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}
