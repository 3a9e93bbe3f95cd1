package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborbank/teller/internal/audit"
	"github.com/harborbank/teller/internal/common"
	"github.com/harborbank/teller/internal/fraud"
	"github.com/harborbank/teller/internal/ledger"
	"github.com/harborbank/teller/internal/model"
	"github.com/harborbank/teller/internal/session"
)

// recordingSink captures audit events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Record(event audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) byType(t audit.EventType) []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// failingGateway wraps the mock gateway and fails the execution calls.
type failingGateway struct {
	ledger.Gateway
}

func (g *failingGateway) LockCard(context.Context, string, string) (string, error) {
	return "", errors.New("core banking timeout")
}

func (g *failingGateway) TransferFunds(context.Context, string, decimal.Decimal, string, string) (string, error) {
	return "", errors.New("core banking timeout")
}

type engineFixture struct {
	engine  *Engine
	scorer  *fraud.Scorer
	gateway *ledger.MockGateway
	sink    *recordingSink
	store   *session.Store
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	gateway := ledger.NewMockGateway(nil)
	gateway.SetLatency(0)

	scorer := fraud.NewScorer(fraud.DefaultConfig(), nil)
	sink := &recordingSink{}
	engine := NewEngine(NewValidator(decimal.Zero, decimal.Zero), scorer, gateway, sink, time.Second, nil)

	return &engineFixture{
		engine:  engine,
		scorer:  scorer,
		gateway: gateway,
		sink:    sink,
		store:   session.NewStore(),
	}
}

func authFor(userID string) *model.AuthContext {
	return &model.AuthContext{
		UserID:        userID,
		Authenticated: true,
		IssuedAt:      time.Now(),
		ExpiresAt:     time.Now().Add(30 * time.Minute),
	}
}

func TestEngine_TransferLifecycle(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	auth := authFor("user_001")
	sess := f.store.GetOrCreate("")

	result := f.engine.Initiate(ctx, model.TypeTransferFunds,
		"transfer $500.00 from my savings to my checking", auth, sess)

	require.True(t, result.RequiresConfirmation)
	require.NotEmpty(t, result.TransactionID)
	assert.Contains(t, result.Message, "SGD 500.00")
	assert.Equal(t, result.TransactionID, sess.ActiveTransaction())

	tx, ok := f.engine.Get(result.TransactionID)
	require.True(t, ok)
	assert.Equal(t, model.StatePendingConfirmation, tx.State)
	assert.Empty(t, tx.Reference)

	exec, err := f.engine.Execute(ctx, result.TransactionID, auth, sess)
	require.NoError(t, err)
	assert.True(t, exec.Success)
	assert.NotEmpty(t, exec.Reference)
	assert.Contains(t, exec.Reference, "TXN")
	assert.Empty(t, sess.ActiveTransaction())

	tx, ok = f.engine.Get(result.TransactionID)
	require.True(t, ok)
	assert.Equal(t, model.StateCompleted, tx.State)
	assert.Equal(t, exec.Reference, tx.Reference)
	assert.Empty(t, tx.Error)
	assert.False(t, tx.CompletedAt.IsZero())

	records := f.sink.byType(audit.EventTransaction)
	require.Len(t, records, 1)
	assert.Equal(t, "success", records[0].Result)
}

func TestEngine_ValidationFailureIsTerminal(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	auth := authFor("user_001")
	sess := f.store.GetOrCreate("")

	// Over the 50,000 transfer cap; commas keep the full amount together.
	result := f.engine.Initiate(ctx, model.TypeTransferFunds,
		"transfer $60,000 from my savings to my checking", auth, sess)

	require.True(t, result.Failed)
	assert.Contains(t, result.Message, "daily limit")
	assert.Empty(t, sess.ActiveTransaction())

	tx, ok := f.engine.Get(result.TransactionID)
	require.True(t, ok)
	assert.Equal(t, model.StateFailed, tx.State)
	assert.NotEmpty(t, tx.Error)
	assert.Empty(t, tx.Reference)

	// An invalid transaction never reaches the fraud check.
	assert.Zero(t, f.scorer.RecentAttempts("user_001"))

	// And FAILED is terminal: confirmation is refused.
	_, err := f.engine.Execute(ctx, result.TransactionID, auth, sess)
	require.ErrorIs(t, err, common.ErrInvalidState)
}

func TestEngine_FraudBlock(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	auth := authFor("user_001")
	sess := f.store.GetOrCreate("")

	// Three validated attempts fill the velocity window.
	for i := 0; i < 3; i++ {
		r := f.engine.Initiate(ctx, model.TypeTransferFunds,
			"transfer $100.00 from my savings to my checking", auth, sess)
		require.True(t, r.RequiresConfirmation, "attempt %d", i)
	}

	// Fourth attempt with a large amount trips both signals.
	result := f.engine.Initiate(ctx, model.TypeTransferFunds,
		"transfer $12,000 from my savings to my checking", auth, sess)

	require.True(t, result.Blocked)
	assert.Equal(t,
		"This transaction has been flagged for review. Please contact customer support.",
		result.Message)
	assert.NotContains(t, result.Message, "velocity")
	assert.NotContains(t, result.Message, "amount")

	tx, ok := f.engine.Get(result.TransactionID)
	require.True(t, ok)
	assert.Equal(t, model.StateFailed, tx.State)

	alerts := f.sink.byType(audit.EventSecurityAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, "user_001", alerts[0].UserID)
	assert.Contains(t, alerts[0].Reason, fraud.ReasonHighVelocity)
	assert.Contains(t, alerts[0].Reason, fraud.ReasonLargeAmount)
}

func TestEngine_ExecuteIsNotReplayable(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	auth := authFor("user_001")
	sess := f.store.GetOrCreate("")

	result := f.engine.Initiate(ctx, model.TypeTransferFunds,
		"transfer $200.00 from my savings to my checking", auth, sess)
	require.True(t, result.RequiresConfirmation)

	first, err := f.engine.Execute(ctx, result.TransactionID, auth, sess)
	require.NoError(t, err)
	require.True(t, first.Success)

	_, err = f.engine.Execute(ctx, result.TransactionID, auth, sess)
	require.ErrorIs(t, err, common.ErrInvalidState)

	records := f.sink.byType(audit.EventTransaction)
	assert.Len(t, records, 1, "the ledger call must happen exactly once")
}

func TestEngine_ConcurrentExecuteRunsOnce(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	auth := authFor("user_001")
	sess := f.store.GetOrCreate("")

	result := f.engine.Initiate(ctx, model.TypeTransferFunds,
		"transfer $200.00 from my savings to my checking", auth, sess)
	require.True(t, result.RequiresConfirmation)

	const workers = 10
	successes := make(chan bool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			exec, err := f.engine.Execute(ctx, result.TransactionID, auth, sess)
			successes <- err == nil && exec.Success
		}()
	}
	wg.Wait()
	close(successes)

	var won int
	for ok := range successes {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won, "exactly one concurrent execute may win")
	assert.Len(t, f.sink.byType(audit.EventTransaction), 1)
}

func TestEngine_ExecuteUnknownTransaction(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Execute(context.Background(), "no-such-id", authFor("user_001"), nil)
	require.ErrorIs(t, err, common.ErrTransactionNotFound)
}

func TestEngine_ExecuteChecksOwnership(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	sess := f.store.GetOrCreate("")

	result := f.engine.Initiate(ctx, model.TypeTransferFunds,
		"transfer $200.00 from my savings to my checking", authFor("user_001"), sess)
	require.True(t, result.RequiresConfirmation)

	_, err := f.engine.Execute(ctx, result.TransactionID, authFor("user_999"), sess)
	require.ErrorIs(t, err, common.ErrInvalidState)

	_, err = f.engine.Execute(ctx, result.TransactionID, nil, sess)
	require.ErrorIs(t, err, common.ErrInvalidState)
}

func TestEngine_GatewayFailure(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.gateway = &failingGateway{Gateway: f.gateway}
	ctx := context.Background()
	auth := authFor("user_001")
	sess := f.store.GetOrCreate("")

	result := f.engine.Initiate(ctx, model.TypeTransferFunds,
		"transfer $200.00 from my savings to my checking", auth, sess)
	require.True(t, result.RequiresConfirmation)

	exec, err := f.engine.Execute(ctx, result.TransactionID, auth, sess)
	require.NoError(t, err, "gateway failure is reported in the result, not as an error")
	assert.False(t, exec.Success)
	assert.Equal(t,
		"Transaction failed. Please try again later or visit a branch for assistance.",
		exec.Message)
	assert.Empty(t, exec.Reference)

	tx, ok := f.engine.Get(result.TransactionID)
	require.True(t, ok)
	assert.Equal(t, model.StateFailed, tx.State)
	assert.NotEmpty(t, tx.Error)
	assert.Empty(t, tx.Reference)

	records := f.sink.byType(audit.EventTransaction)
	require.Len(t, records, 1)
	assert.Equal(t, "failure", records[0].Result)
}

func TestEngine_Cancel(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	auth := authFor("user_001")
	sess := f.store.GetOrCreate("")

	result := f.engine.Initiate(ctx, model.TypeTransferFunds,
		"transfer $200.00 from my savings to my checking", auth, sess)
	require.True(t, result.RequiresConfirmation)

	require.NoError(t, f.engine.Cancel(result.TransactionID, sess))

	tx, ok := f.engine.Get(result.TransactionID)
	require.True(t, ok)
	assert.Equal(t, model.StateFailed, tx.State)
	assert.Equal(t, "cancelled by user", tx.Error)
	assert.Empty(t, sess.ActiveTransaction())

	// Cancelling twice is an invalid-state error, not a second audit record.
	err := f.engine.Cancel(result.TransactionID, sess)
	require.ErrorIs(t, err, common.ErrInvalidState)
	assert.Len(t, f.sink.byType(audit.EventTransaction), 1)
}

func TestEngine_CancelUnknownTransaction(t *testing.T) {
	f := newEngineFixture(t)
	err := f.engine.Cancel("no-such-id", nil)
	require.ErrorIs(t, err, common.ErrTransactionNotFound)
}

func TestEngine_CardClarificationFlow(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	auth := authFor("user_001")
	sess := f.store.GetOrCreate("")

	// The demo customer has two cards and the message names neither.
	result := f.engine.Initiate(ctx, model.TypeLockCard, "lock my card", auth, sess)

	require.True(t, result.Failed)
	assert.Contains(t, result.Message, "more than one card")
	assert.Contains(t, result.Message, "1234")
	assert.Contains(t, result.Message, "5678")
	assert.Equal(t, "card", result.Metadata["clarification"])
	assert.Empty(t, sess.ActiveTransaction())

	prior, ok := f.engine.Get(result.TransactionID)
	require.True(t, ok)
	assert.Equal(t, model.StateFailed, prior.State)

	// Choosing by last four mints a successor transaction.
	resumed, err := f.engine.ResumeWithClarification(ctx, result.TransactionID, "5678", auth, sess)
	require.NoError(t, err)
	require.True(t, resumed.RequiresConfirmation)
	assert.NotEqual(t, result.TransactionID, resumed.TransactionID)
	assert.Equal(t, "card_002", resumed.Metadata["card_id"])

	// The original transaction stays FAILED.
	prior, ok = f.engine.Get(result.TransactionID)
	require.True(t, ok)
	assert.Equal(t, model.StateFailed, prior.State)

	exec, err := f.engine.Execute(ctx, resumed.TransactionID, auth, sess)
	require.NoError(t, err)
	assert.True(t, exec.Success)
	assert.Contains(t, exec.Reference, "REF")
}

func TestEngine_CardMessageWithLastFourSkipsClarification(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	auth := authFor("user_001")
	sess := f.store.GetOrCreate("")

	result := f.engine.Initiate(ctx, model.TypeLockCard, "lock my card ending 1234", auth, sess)

	require.True(t, result.RequiresConfirmation)
	assert.Equal(t, "card_001", result.Metadata["card_id"])
}

func TestEngine_ResumeRejectsBadChoice(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	auth := authFor("user_001")
	sess := f.store.GetOrCreate("")

	result := f.engine.Initiate(ctx, model.TypeLockCard, "lock my card", auth, sess)
	require.True(t, result.Failed)

	_, err := f.engine.ResumeWithClarification(ctx, result.TransactionID, "0000", auth, sess)
	require.ErrorIs(t, err, common.ErrInvalidState)

	_, err = f.engine.ResumeWithClarification(ctx, result.TransactionID, "5678", authFor("user_999"), sess)
	require.ErrorIs(t, err, common.ErrInvalidState)
}

func TestEngine_ResumeRequiresClarifiableTransaction(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	auth := authFor("user_001")
	sess := f.store.GetOrCreate("")

	result := f.engine.Initiate(ctx, model.TypeTransferFunds,
		"transfer $200.00 from my savings to my checking", auth, sess)
	require.True(t, result.RequiresConfirmation)

	_, err := f.engine.ResumeWithClarification(ctx, result.TransactionID, "5678", auth, sess)
	require.ErrorIs(t, err, common.ErrInvalidState)
}

func TestEngine_BillPaymentLifecycle(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	auth := authFor("user_001")
	sess := f.store.GetOrCreate("")

	result := f.engine.Initiate(ctx, model.TypePayBill,
		"pay my electricity bill of $120.00", auth, sess)

	require.True(t, result.RequiresConfirmation)
	assert.Contains(t, result.Message, "electricity")
	assert.Contains(t, result.Message, "SGD 120.00")

	exec, err := f.engine.Execute(ctx, result.TransactionID, auth, sess)
	require.NoError(t, err)
	assert.True(t, exec.Success)
	assert.Contains(t, exec.Reference, "BILL")
}

func TestEngine_ConcurrentTransactionsAreIndependent(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	auth := authFor("user_001")

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess := f.store.GetOrCreate(fmt.Sprintf("sess-%d", i))
			r := f.engine.Initiate(ctx, model.TypeTransferFunds,
				"transfer $50.00 from my savings to my checking", auth, sess)
			ids[i] = r.TransactionID
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "transaction ids must be unique")
		seen[id] = true
	}
}
