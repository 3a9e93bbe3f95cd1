// Package orchestrator coordinates one conversation turn: session
// resolution, intent classification, branch dispatch and audit. It is
// the sole recovery boundary; no fault escapes to the caller.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harborbank/teller/internal/audit"
	"github.com/harborbank/teller/internal/intent"
	"github.com/harborbank/teller/internal/ledger"
	"github.com/harborbank/teller/internal/llm"
	"github.com/harborbank/teller/internal/model"
	"github.com/harborbank/teller/internal/retrieval"
	"github.com/harborbank/teller/internal/session"
	"github.com/harborbank/teller/internal/workflow"
)

// historyWindow bounds how much conversation history is handed to
// answer generation.
const historyWindow = 10

// TextGenerator produces a grounded answer from retrieved passages and
// recent history.
type TextGenerator interface {
	Generate(ctx context.Context, message string, passages []llm.Passage, history []model.Message) (string, error)
}

// handlerResponse is the branch handlers' common return shape.
type handlerResponse struct {
	metadata             map[string]string
	message              string
	requiresAuth         bool
	requiresConfirmation bool
	failed               bool
}

// handlerFunc handles one intent family.
type handlerFunc func(ctx context.Context, sess *session.Session, message string, auth *model.AuthContext, res model.IntentResult) handlerResponse

// Orchestrator is the top-level conversation coordinator.
type Orchestrator struct {
	now        func() time.Time
	sessions   *session.Store
	classifier intent.Classifier
	workflow   *workflow.Engine
	gateway    ledger.Gateway
	retriever  retrieval.Retriever
	generator  TextGenerator
	audit      audit.Sink
	logger     *slog.Logger
	handlers   map[model.Intent]handlerFunc
	topK       int
}

// Config wires the orchestrator's collaborators. Retriever and
// Generator are optional; the FAQ branch degrades to a canned answer
// without them.
type Config struct {
	Sessions   *session.Store
	Classifier intent.Classifier
	Workflow   *workflow.Engine
	Gateway    ledger.Gateway
	Retriever  retrieval.Retriever
	Generator  TextGenerator
	Audit      audit.Sink
	Logger     *slog.Logger
	TopK       int
}

// New creates an orchestrator. The intent-to-handler mapping is
// resolved once here, not re-interpreted per call.
func New(cfg Config) *Orchestrator {
	if cfg.Audit == nil {
		cfg.Audit = audit.NopSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}

	o := &Orchestrator{
		sessions:   cfg.Sessions,
		classifier: cfg.Classifier,
		workflow:   cfg.Workflow,
		gateway:    cfg.Gateway,
		retriever:  cfg.Retriever,
		generator:  cfg.Generator,
		audit:      cfg.Audit,
		logger:     cfg.Logger,
		topK:       cfg.TopK,
		now:        time.Now,
	}

	o.handlers = map[model.Intent]handlerFunc{
		model.IntentFAQ:                o.handleFAQ,
		model.IntentGeneralQuery:       o.handleFAQ,
		model.IntentCheckBalance:       o.handleAccountQuery,
		model.IntentTransactionHistory: o.handleAccountQuery,
		model.IntentTransferFunds:      o.handleTransaction,
		model.IntentLockCard:           o.handleTransaction,
		model.IntentUnlockCard:         o.handleTransaction,
		model.IntentPayBill:            o.handleTransaction,
	}

	return o
}

// Sessions exposes the underlying session store for transport-level
// session management.
func (o *Orchestrator) Sessions() *session.Store {
	return o.sessions
}

// Workflow exposes the transaction engine for the confirmation and
// cancellation entry points.
func (o *Orchestrator) Workflow() *workflow.Engine {
	return o.workflow
}

// Handle processes one inbound message. It never propagates a fault:
// any unexpected error yields a generic apology with the error flag set
// and a usable session id.
func (o *Orchestrator) Handle(ctx context.Context, message, sessionID string, auth *model.AuthContext) (resp model.Response) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in conversation processing",
				"session_id", sessionID, "panic", r)
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			resp = model.Response{
				SessionID: sessionID,
				Message: "I apologize, but I encountered an error processing your request. " +
					"Please try again or contact support if the issue persists.",
				Error:     true,
				Timestamp: o.now(),
			}
		}
	}()

	sess := o.sessions.GetOrCreate(sessionID)

	o.sessions.Serialize(sess.ID(), func() {
		resp = o.handleLocked(ctx, sess, message, auth)
	})
	return resp
}

// handleLocked runs the turn while the per-session lock is held, so
// turns within one session never interleave.
func (o *Orchestrator) handleLocked(ctx context.Context, sess *session.Session, message string, auth *model.AuthContext) model.Response {
	// A token presented on this request refreshes the session's auth
	// context; otherwise fall back to what the session already holds.
	if auth.Valid(o.now()) {
		sess.Authenticate(auth)
	}
	effectiveAuth := sess.Auth()
	if !effectiveAuth.Valid(o.now()) {
		effectiveAuth = nil
	}

	sess.AddMessage(model.RoleUser, message)

	var txState model.TransactionState
	if txID := sess.ActiveTransaction(); txID != "" {
		if tx, ok := o.workflow.Get(txID); ok {
			txState = tx.State
		}
	}

	res, _ := o.classifier.Classify(ctx, message, sess.Context(txState))

	handler, ok := o.handlers[res.Intent]
	if !ok {
		handler = o.handleFallback
	}
	hr := handler(ctx, sess, message, effectiveAuth, res)

	sess.AddMessage(model.RoleAssistant, hr.message)
	sess.SetLastIntent(res.Intent)

	var userID string
	if effectiveAuth != nil {
		userID = effectiveAuth.UserID
	}
	o.audit.Record(audit.Interaction(sess.ID(), userID, res.Intent, len(message), len(hr.message)))

	return model.Response{
		SessionID:            sess.ID(),
		Message:              hr.message,
		Intent:               res.Intent,
		Confidence:           res.Confidence,
		RequiresAuth:         hr.requiresAuth,
		RequiresConfirmation: hr.requiresConfirmation,
		Metadata:             hr.metadata,
		Error:                hr.failed,
		Timestamp:            o.now(),
	}
}

// Execute confirms a pending transaction. It serializes on the session
// so a confirmation cannot race a new message in the same conversation.
func (o *Orchestrator) Execute(ctx context.Context, txID, sessionID string, auth *model.AuthContext) (workflow.ExecutionResult, error) {
	sess := o.sessions.Get(sessionID)

	var result workflow.ExecutionResult
	var err error
	run := func() {
		result, err = o.workflow.Execute(ctx, txID, auth, sess)
	}

	if sess != nil {
		o.sessions.Serialize(sess.ID(), run)
	} else {
		run()
	}
	return result, err
}

// Cancel abandons a pending transaction on the user's behalf.
func (o *Orchestrator) Cancel(txID, sessionID string) error {
	sess := o.sessions.Get(sessionID)

	var err error
	run := func() {
		err = o.workflow.Cancel(txID, sess)
	}

	if sess != nil {
		o.sessions.Serialize(sess.ID(), run)
	} else {
		run()
	}
	return err
}
