package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/approval-sentinel/internal/models"
	"github.com/approval-sentinel/internal/types"
)

// NaturalKey is the uniqueness tuple of an approval event
type NaturalKey struct {
	Chain    types.Chain
	TxHash   string
	LogIndex uint32
}

// FeedQuery holds the filters for the approvals feed
type FeedQuery struct {
	UserID       string
	Chain        *types.Chain
	Kind         *types.ApprovalKind
	MinRiskScore *int
	Skip         int
	Take         int
}

// EventRepository handles the append-only approval event ledger
type EventRepository struct {
	db *PostgresDB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *PostgresDB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, wallet_id, chain, kind, token_address, spender,
	raw_value, approved, tx_hash, block_number, log_index,
	risk_score, risk_level, risk_meta, created_at`

// FindByNaturalKeys returns the events already persisted for any of the
// given (chain, txHash, logIndex) tuples
func (r *EventRepository) FindByNaturalKeys(ctx context.Context, keys []NaturalKey) ([]*models.ApprovalEvent, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	placeholders := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)*3)
	for i, k := range keys {
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3))
		args = append(args, k.Chain, k.TxHash, int32(k.LogIndex))
	}

	query := fmt.Sprintf(`
		SELECT %s FROM approval_events
		WHERE (chain, tx_hash, log_index) IN (%s)
	`, eventColumns, strings.Join(placeholders, ", "))

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by natural keys: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// InsertMany persists a batch of scored events. Rows whose natural key
// already exists are silently absorbed (ON CONFLICT DO NOTHING), which is
// what makes chunk replays after a partial failure safe.
func (r *EventRepository) InsertMany(ctx context.Context, events []*models.ApprovalEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		meta, err := json.Marshal(e.RiskMeta)
		if err != nil {
			return fmt.Errorf("failed to marshal risk meta: %w", err)
		}
		batch.Queue(`
			INSERT INTO approval_events (
				id, wallet_id, chain, kind, token_address, spender,
				raw_value, approved, tx_hash, block_number, log_index,
				risk_score, risk_level, risk_meta, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
			ON CONFLICT (chain, tx_hash, log_index) DO NOTHING
		`, e.ID, e.WalletID, e.Chain, e.Kind, e.TokenAddress, e.Spender,
			e.RawValue, e.Approved, e.TxHash, int64(e.BlockNumber), int32(e.LogIndex),
			e.RiskScore, e.RiskLevel, meta)
	}

	results := r.db.Pool().SendBatch(ctx, batch)
	defer results.Close() // nolint:errcheck // batch close error surfaces via Exec

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert approval event: %w", err)
		}
	}
	return nil
}

// FindFeed returns a user's approval events ordered by
// (block_number desc, log_index desc) with optional filters
func (r *EventRepository) FindFeed(ctx context.Context, q FeedQuery) ([]*models.ApprovalEvent, error) {
	where := []string{"w.user_id = $1"}
	args := []any{q.UserID}

	if q.Chain != nil {
		args = append(args, *q.Chain)
		where = append(where, fmt.Sprintf("e.chain = $%d", len(args)))
	}
	if q.Kind != nil {
		args = append(args, *q.Kind)
		where = append(where, fmt.Sprintf("e.kind = $%d", len(args)))
	}
	if q.MinRiskScore != nil {
		args = append(args, *q.MinRiskScore)
		where = append(where, fmt.Sprintf("e.risk_score >= $%d", len(args)))
	}

	args = append(args, q.Take)
	limitIdx := len(args)
	args = append(args, q.Skip)
	offsetIdx := len(args)

	query := fmt.Sprintf(`
		SELECT e.id, e.wallet_id, e.chain, e.kind, e.token_address, e.spender,
		       e.raw_value, e.approved, e.tx_hash, e.block_number, e.log_index,
		       e.risk_score, e.risk_level, e.risk_meta, e.created_at
		FROM approval_events e
		JOIN wallets w ON w.id = e.wallet_id
		WHERE %s
		ORDER BY e.block_number DESC, e.log_index DESC
		LIMIT $%d OFFSET $%d
	`, strings.Join(where, " AND "), limitIdx, offsetIdx)

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals feed: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]*models.ApprovalEvent, error) {
	var events []*models.ApprovalEvent
	for rows.Next() {
		var (
			e           models.ApprovalEvent
			blockNumber int64
			logIndex    int32
			meta        []byte
		)
		err := rows.Scan(
			&e.ID, &e.WalletID, &e.Chain, &e.Kind, &e.TokenAddress, &e.Spender,
			&e.RawValue, &e.Approved, &e.TxHash, &blockNumber, &logIndex,
			&e.RiskScore, &e.RiskLevel, &meta, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval event row: %w", err)
		}
		e.BlockNumber = uint64(blockNumber)
		e.LogIndex = uint32(logIndex)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.RiskMeta); err != nil {
				return nil, fmt.Errorf("failed to unmarshal risk meta: %w", err)
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
