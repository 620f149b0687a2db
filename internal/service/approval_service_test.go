package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/approval-sentinel/internal/logging"
	"github.com/approval-sentinel/internal/models"
	"github.com/approval-sentinel/internal/risk"
	"github.com/approval-sentinel/internal/storage"
	"github.com/approval-sentinel/internal/types"
)

// Mock stores for testing

type mockEventStore struct {
	existing  map[string]*models.ApprovalEvent
	inserted  []*models.ApprovalEvent
	feed      []*models.ApprovalEvent
	lastQuery storage.FeedQuery
	findErr   error
	insertErr error
}

func newMockEventStore() *mockEventStore {
	return &mockEventStore{existing: make(map[string]*models.ApprovalEvent)}
}

func (m *mockEventStore) FindByNaturalKeys(ctx context.Context, keys []storage.NaturalKey) ([]*models.ApprovalEvent, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []*models.ApprovalEvent
	for _, k := range keys {
		key := fmt.Sprintf("%s:%s:%d", k.Chain, k.TxHash, k.LogIndex)
		if e, ok := m.existing[key]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEventStore) InsertMany(ctx context.Context, events []*models.ApprovalEvent) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, events...)
	return nil
}

func (m *mockEventStore) FindFeed(ctx context.Context, q storage.FeedQuery) ([]*models.ApprovalEvent, error) {
	m.lastQuery = q
	return m.feed, nil
}

type mockOwnerResolver struct {
	owners map[string]string
	err    error
}

func (m *mockOwnerResolver) GetUserIDsByWalletIDs(ctx context.Context, walletIDs []string) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.owners, nil
}

type mockTrustResolver struct {
	trusted map[string]bool
	calls   int
	err     error
}

func (m *mockTrustResolver) TrustedSet(ctx context.Context, userID string, chain types.Chain, spenders []string) (map[string]bool, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]bool)
	for _, s := range spenders {
		out[s] = m.trusted[s]
	}
	return out, nil
}

func newTestApprovalService(events *mockEventStore, owners *mockOwnerResolver, trust *mockTrustResolver) *ApprovalService {
	engine := risk.NewEngine(map[types.Chain]map[string]bool{})
	log := logging.New(logging.LevelError, logging.FormatText)
	return NewApprovalService(events, owners, trust, engine, log)
}

func candidate(txHash string, logIndex uint32, spender string) *models.ApprovalEvent {
	raw := "1000000"
	return &models.ApprovalEvent{
		WalletID:     "wallet-1",
		Chain:        types.ChainEthereum,
		Kind:         types.KindERC20Approval,
		TokenAddress: "0x2222222222222222222222222222222222222222",
		Spender:      spender,
		RawValue:     &raw,
		TxHash:       txHash,
		BlockNumber:  100,
		LogIndex:     logIndex,
	}
}

func TestIngestSkipsExistingEvents(t *testing.T) {
	events := newMockEventStore()
	dup := candidate("0xaaa", 1, "0x1111111111111111111111111111111111111111")
	events.existing[dup.NaturalKey()] = dup

	owners := &mockOwnerResolver{owners: map[string]string{"wallet-1": "user-1"}}
	trust := &mockTrustResolver{trusted: map[string]bool{}}
	svc := newTestApprovalService(events, owners, trust)

	created, err := svc.Ingest(context.Background(), []*models.ApprovalEvent{
		candidate("0xaaa", 1, "0x1111111111111111111111111111111111111111"),
		candidate("0xbbb", 2, "0x1111111111111111111111111111111111111111"),
		candidate("0xccc", 3, "0x1111111111111111111111111111111111111111"),
	})
	require.NoError(t, err)

	assert.Len(t, created, 2)
	assert.Len(t, events.inserted, 2)
	for _, e := range created {
		assert.NotEqual(t, "0xaaa", e.TxHash)
	}
}

func TestIngestDeduplicatesWithinBatch(t *testing.T) {
	events := newMockEventStore()
	owners := &mockOwnerResolver{owners: map[string]string{"wallet-1": "user-1"}}
	trust := &mockTrustResolver{trusted: map[string]bool{}}
	svc := newTestApprovalService(events, owners, trust)

	created, err := svc.Ingest(context.Background(), []*models.ApprovalEvent{
		candidate("0xaaa", 1, "0x1111111111111111111111111111111111111111"),
		candidate("0xaaa", 1, "0x1111111111111111111111111111111111111111"),
	})
	require.NoError(t, err)

	assert.Len(t, created, 1)
	assert.Len(t, events.inserted, 1)
}

func TestIngestAllDuplicatesIsNoOp(t *testing.T) {
	events := newMockEventStore()
	dup := candidate("0xaaa", 1, "0x1111111111111111111111111111111111111111")
	events.existing[dup.NaturalKey()] = dup

	owners := &mockOwnerResolver{owners: map[string]string{"wallet-1": "user-1"}}
	trust := &mockTrustResolver{trusted: map[string]bool{}}
	svc := newTestApprovalService(events, owners, trust)

	created, err := svc.Ingest(context.Background(), []*models.ApprovalEvent{
		candidate("0xaaa", 1, "0x1111111111111111111111111111111111111111"),
	})
	require.NoError(t, err)

	assert.Empty(t, created)
	assert.Empty(t, events.inserted)
	// risk never runs when nothing is new
	assert.Equal(t, 0, trust.calls)
}

func TestIngestScoresOnlyNewEvents(t *testing.T) {
	events := newMockEventStore()
	owners := &mockOwnerResolver{owners: map[string]string{"wallet-1": "user-1"}}
	trust := &mockTrustResolver{trusted: map[string]bool{}}
	svc := newTestApprovalService(events, owners, trust)

	created, err := svc.Ingest(context.Background(), []*models.ApprovalEvent{
		candidate("0xaaa", 1, "0x1111111111111111111111111111111111111111"),
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	// spender unknown to the allowlist scores the not-allowlisted penalty
	assert.Equal(t, 25, created[0].RiskScore)
	assert.Equal(t, types.RiskLevelMedium, created[0].RiskLevel)
	assert.Contains(t, created[0].RiskMeta.Reasons, types.ReasonSpenderNotAllowlisted)
}

func TestIngestTrustedSpenderNotPenalized(t *testing.T) {
	events := newMockEventStore()
	owners := &mockOwnerResolver{owners: map[string]string{"wallet-1": "user-1"}}
	trust := &mockTrustResolver{trusted: map[string]bool{
		"0x1111111111111111111111111111111111111111": true,
	}}
	svc := newTestApprovalService(events, owners, trust)

	created, err := svc.Ingest(context.Background(), []*models.ApprovalEvent{
		candidate("0xaaa", 1, "0x1111111111111111111111111111111111111111"),
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	assert.Equal(t, 0, created[0].RiskScore)
	assert.NotContains(t, created[0].RiskMeta.Reasons, types.ReasonSpenderNotAllowlisted)
}

func TestIngestTrustLookupFailureLeavesUnresolved(t *testing.T) {
	events := newMockEventStore()
	owners := &mockOwnerResolver{owners: map[string]string{"wallet-1": "user-1"}}
	trust := &mockTrustResolver{err: fmt.Errorf("redis down")}
	svc := newTestApprovalService(events, owners, trust)

	created, err := svc.Ingest(context.Background(), []*models.ApprovalEvent{
		candidate("0xaaa", 1, "0x1111111111111111111111111111111111111111"),
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	// unresolved trust must not add the not-allowlisted penalty
	assert.Equal(t, 0, created[0].RiskScore)
}

func TestIngestBatchesTrustLookupPerUserChain(t *testing.T) {
	events := newMockEventStore()
	owners := &mockOwnerResolver{owners: map[string]string{"wallet-1": "user-1"}}
	trust := &mockTrustResolver{trusted: map[string]bool{}}
	svc := newTestApprovalService(events, owners, trust)

	_, err := svc.Ingest(context.Background(), []*models.ApprovalEvent{
		candidate("0xaaa", 1, "0x1111111111111111111111111111111111111111"),
		candidate("0xbbb", 2, "0x3333333333333333333333333333333333333333"),
		candidate("0xccc", 3, "0x1111111111111111111111111111111111111111"),
	})
	require.NoError(t, err)

	// three events, same user and chain: one lookup
	assert.Equal(t, 1, trust.calls)
}

func TestIngestEmptyBatch(t *testing.T) {
	events := newMockEventStore()
	svc := newTestApprovalService(events, &mockOwnerResolver{}, &mockTrustResolver{})

	created, err := svc.Ingest(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestFeedClampsTake(t *testing.T) {
	tests := []struct {
		name string
		take int
		want int
	}{
		{"default when unset", 0, 50},
		{"clamped up to one", -5, 1},
		{"passes through in range", 75, 75},
		{"clamped down to max", 1000, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := newMockEventStore()
			svc := newTestApprovalService(events, &mockOwnerResolver{}, &mockTrustResolver{})

			_, err := svc.Feed(context.Background(), storage.FeedQuery{UserID: "user-1", Take: tt.take})
			require.NoError(t, err)
			assert.Equal(t, tt.want, events.lastQuery.Take)
		})
	}
}

func TestFeedClampsNegativeSkip(t *testing.T) {
	events := newMockEventStore()
	svc := newTestApprovalService(events, &mockOwnerResolver{}, &mockTrustResolver{})

	_, err := svc.Feed(context.Background(), storage.FeedQuery{UserID: "user-1", Skip: -10})
	require.NoError(t, err)
	assert.Equal(t, 0, events.lastQuery.Skip)
}
