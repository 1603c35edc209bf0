package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/klauspost/compress/zstd"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/ledger"
)

const correctionAuditTable = "correction_audit"

// CorrectionAudit persists the correction trail written when a movement is
// reversed. The original and compensating events are stored as a JSON
// payload, zstd-compressed past a size threshold.
type CorrectionAudit struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
	encoder   *zstd.Encoder

	compressThreshold int // bytes
}

// NewCorrectionAudit creates the audit log.
func NewCorrectionAudit(txManager *TxManager) (*CorrectionAudit, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	return &CorrectionAudit{
		txManager:         txManager,
		builder:           squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		encoder:           encoder,
		compressThreshold: 4 * 1024,
	}, nil
}

type correctionPayload struct {
	Original     *ledger.MovementEvent `json:"original"`
	Compensating *ledger.MovementEvent `json:"compensating"`
}

// RecordCorrection implements ledger.AuditLog. It must run inside the same
// transaction as the compensating append so the trail is never orphaned.
func (a *CorrectionAudit) RecordCorrection(ctx context.Context, original, compensating *ledger.MovementEvent, note string) error {
	payload, err := json.Marshal(correctionPayload{
		Original:     original,
		Compensating: compensating,
	})
	if err != nil {
		return fmt.Errorf("marshal correction payload: %w", err)
	}

	var compressed []byte
	algo := "none"
	if len(payload) > a.compressThreshold {
		compressed = a.encoder.EncodeAll(payload, nil)
		payload = nil
		algo = "zstd"
	}

	q := a.builder.Insert(correctionAuditTable).Columns(
		"id", "original_event_id", "compensating_event_id", "product_id",
		"note", "payload", "payload_compressed", "compression_algo", "created_at",
	).Values(
		id.New(), original.ID, compensating.ID, original.ProductID,
		note, payload, compressed, algo, time.Now().UTC(),
	)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := a.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert correction audit: %w", err)
	}

	return nil
}

var _ ledger.AuditLog = (*CorrectionAudit)(nil)
