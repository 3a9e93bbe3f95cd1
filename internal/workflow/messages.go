package workflow

import (
	"fmt"
	"strings"

	"github.com/harborbank/teller/internal/model"
)

// confirmationMessage describes the pending action and asks for an
// explicit proceed/cancel.
func confirmationMessage(tx *model.Transaction) string {
	switch tx.Kind {
	case model.TypeLockCard:
		return "You're about to lock your card. This will:\n" +
			"- Prevent all new transactions\n" +
			"- Block ATM withdrawals\n" +
			"- Stop online purchases\n\n" +
			"You can unlock it anytime. Proceed?"
	case model.TypeUnlockCard:
		return "You're about to unlock your card. New transactions, ATM withdrawals " +
			"and online purchases will be enabled again. Proceed?"
	case model.TypeTransferFunds:
		return fmt.Sprintf("Confirm transfer:\n"+
			"- Amount: SGD %s\n"+
			"- From: %s\n"+
			"- To: %s\n\n"+
			"Proceed with this transfer?",
			tx.Params.Amount.StringFixed(2), tx.Params.FromAccount, tx.Params.ToAccount)
	case model.TypePayBill:
		return fmt.Sprintf("Confirm bill payment:\n"+
			"- Payee: %s\n"+
			"- Amount: SGD %s\n\n"+
			"Proceed with this payment?",
			tx.Params.Payee, tx.Params.Amount.StringFixed(2))
	default:
		return "Please confirm this transaction."
	}
}

// successMessage announces a completed transaction with its reference.
func successMessage(tx *model.Transaction) string {
	switch tx.Kind {
	case model.TypeLockCard:
		return fmt.Sprintf("Success! Your card has been locked.\n\n"+
			"Reference: %s\n\n"+
			"Next steps:\n"+
			"- Unlock anytime via the app\n"+
			"- Request a replacement if lost\n"+
			"- Call 1800-111-1111 to report fraud", tx.Reference)
	case model.TypeUnlockCard:
		return fmt.Sprintf("Success! Your card has been unlocked and is ready to use.\nReference: %s", tx.Reference)
	case model.TypeTransferFunds:
		return fmt.Sprintf("Transfer completed successfully.\n"+
			"SGD %s moved from %s to %s.\nReference: %s",
			tx.Params.Amount.StringFixed(2), tx.Params.FromAccount, tx.Params.ToAccount, tx.Reference)
	case model.TypePayBill:
		return fmt.Sprintf("Bill payment to %s completed successfully.\nReference: %s",
			tx.Params.Payee, tx.Reference)
	default:
		return fmt.Sprintf("Transaction completed successfully.\nReference: %s", tx.Reference)
	}
}

// clarificationMessage lists the user's cards when the request was
// ambiguous about which one to act on.
func clarificationMessage(cards []model.Card) string {
	var b strings.Builder
	b.WriteString("You have more than one card on file:\n")
	for _, card := range cards {
		fmt.Fprintf(&b, "- %s ending %s\n", card.Type, card.LastFour)
	}
	b.WriteString("\nPlease tell me which card, for example by its last four digits.")
	return b.String()
}

func confirmationMetadata(tx *model.Transaction) map[string]string {
	md := map[string]string{
		"type": string(tx.Kind),
	}
	if !tx.Params.Amount.IsZero() {
		md["amount"] = tx.Params.Amount.StringFixed(2)
	}
	if tx.Params.CardID != "" {
		md["card_id"] = tx.Params.CardID
	}
	return md
}

func clarificationMetadata(tx *model.Transaction) map[string]string {
	md := map[string]string{
		"type":          string(tx.Kind),
		"clarification": "card",
	}
	for i, card := range tx.Params.AvailableCards {
		md[fmt.Sprintf("card_%d", i)] = fmt.Sprintf("%s ending %s", card.Type, card.LastFour)
	}
	return md
}
