package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/protocol-service/internal/domain"
	"github.com/spec-kit/protocol-service/pkg/util"
)

// ProtocolFilter captures listing parameters. Hidden protocols are
// excluded unless IncludeHidden is set.
type ProtocolFilter struct {
	Unit          *string
	Statuses      []domain.ProtocolStatus
	DriverID      *string
	IncludeHidden bool
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Limit         int
	Offset        int
}

// ProtocolRepository encapsulates protocol persistence. It is the
// single source of truth for protocol state.
type ProtocolRepository interface {
	// Upsert creates the protocol. Ids are client-generated, so a
	// duplicate submit is a no-op: the stored row wins and created is
	// false.
	Upsert(ctx context.Context, protocol *domain.Protocol) (created bool, err error)
	// Update replaces mutable fields and appends one audit entry in the
	// same transaction. The expected version must match or the write is
	// rejected.
	Update(ctx context.Context, protocol *domain.Protocol, entry domain.AuditEntry) error
	GetByID(ctx context.Context, id string) (*domain.Protocol, error)
	GetByNumber(ctx context.Context, number string) (*domain.Protocol, error)
	ListWithFilter(ctx context.Context, filter ProtocolFilter) ([]domain.Protocol, error)
}

type protocolRepository struct {
	pool *pgxpool.Pool
}

// NewProtocolRepository instantiates repository.
func NewProtocolRepository(pool *pgxpool.Pool) ProtocolRepository {
	return &protocolRepository{pool: pool}
}

const protocolColumns = `id, number, status, version, created_at, creation_date, creation_time,
        driver_id, driver_name, driver_unit, driver_phone, unit, pdv_code, invoice_number,
        replacement_type, cause, line_items, validated, launched, hidden, closed_at,
        photo_driver_at_site, photo_product_lot, photo_damage, closure_evidence`

func (r *protocolRepository) Upsert(ctx context.Context, protocol *domain.Protocol) (bool, error) {
	items, err := json.Marshal(protocol.LineItems)
	if err != nil {
		return false, err
	}
	closure, err := marshalClosure(protocol.ClosureEvidence)
	if err != nil {
		return false, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, util.NewTransientIO(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO protocols (id, number, status, version, created_at, creation_date, creation_time,
            driver_id, driver_name, driver_unit, driver_phone, unit, pdv_code, invoice_number,
            replacement_type, cause, line_items, validated, launched, hidden, closed_at,
            photo_driver_at_site, photo_product_lot, photo_damage, closure_evidence)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
        ON CONFLICT (id) DO NOTHING`
	cmd, err := tx.Exec(ctx, query,
		protocol.ID,
		protocol.Number,
		protocol.Status,
		protocol.Version,
		protocol.CreatedAt,
		protocol.CreationDate,
		protocol.CreationTime,
		protocol.Driver.ID,
		protocol.Driver.Name,
		protocol.Driver.Unit,
		protocol.Driver.Phone,
		protocol.Unit,
		protocol.PDVCode,
		protocol.InvoiceNumber,
		protocol.ReplacementType,
		protocol.Cause,
		items,
		protocol.Validated,
		protocol.Launched,
		protocol.Hidden,
		protocol.ClosedAt,
		protocol.EvidencePhotos.DriverAtSiteURL,
		protocol.EvidencePhotos.ProductLotURL,
		protocol.EvidencePhotos.DamageURL,
		closure,
	)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	for _, entry := range protocol.AuditTrail {
		if err := insertAuditEntry(ctx, tx, protocol.ID, entry); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, util.NewTransientIO(err)
	}
	return true, nil
}

func (r *protocolRepository) Update(ctx context.Context, protocol *domain.Protocol, entry domain.AuditEntry) error {
	items, err := json.Marshal(protocol.LineItems)
	if err != nil {
		return err
	}
	closure, err := marshalClosure(protocol.ClosureEvidence)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return util.NewTransientIO(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        UPDATE protocols SET status=$1, version=version+1, line_items=$2, validated=$3, launched=$4,
            hidden=$5, closed_at=$6, closure_evidence=$7, updated_at=NOW()
        WHERE id=$8 AND version=$9`
	cmd, err := tx.Exec(ctx, query,
		protocol.Status,
		items,
		protocol.Validated,
		protocol.Launched,
		protocol.Hidden,
		protocol.ClosedAt,
		closure,
		protocol.ID,
		protocol.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var actual int64
		err := r.pool.QueryRow(ctx, `SELECT version FROM protocols WHERE id=$1`, protocol.ID).Scan(&actual)
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("protocol", map[string]any{"id": protocol.ID})
		}
		if err != nil {
			return err
		}
		return util.NewConcurrentModification("protocol", protocol.Version, actual)
	}

	if err := insertAuditEntry(ctx, tx, protocol.ID, entry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return util.NewTransientIO(err)
	}
	protocol.Version++
	protocol.AuditTrail = append(protocol.AuditTrail, entry)
	return nil
}

func insertAuditEntry(ctx context.Context, tx pgx.Tx, protocolID string, entry domain.AuditEntry) error {
	const query = `
        INSERT INTO protocol_events (id, protocol_id, actor_id, actor_name, entry_date, entry_time, action, note)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := tx.Exec(ctx, query,
		entry.ID,
		protocolID,
		entry.ActorID,
		entry.ActorName,
		entry.Date,
		entry.Time,
		entry.Action,
		entry.Note,
	)
	return err
}

func (r *protocolRepository) GetByID(ctx context.Context, id string) (*domain.Protocol, error) {
	query := fmt.Sprintf(`SELECT %s FROM protocols WHERE id=$1`, protocolColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *protocolRepository) GetByNumber(ctx context.Context, number string) (*domain.Protocol, error) {
	query := fmt.Sprintf(`SELECT %s FROM protocols WHERE number=$1`, protocolColumns)
	return r.fetchSingle(ctx, query, number)
}

func (r *protocolRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Protocol, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	protocol, err := scanProtocol(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, util.NewNotFound("protocol", nil)
	}
	if err != nil {
		return nil, err
	}
	trail, err := r.listAuditTrail(ctx, protocol.ID)
	if err != nil {
		return nil, err
	}
	protocol.AuditTrail = trail
	return protocol, nil
}

func (r *protocolRepository) listAuditTrail(ctx context.Context, protocolID string) ([]domain.AuditEntry, error) {
	const query = `
        SELECT id, actor_id, actor_name, entry_date, entry_time, action, note
        FROM protocol_events WHERE protocol_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, protocolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trail []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&entry.ActorName,
			&entry.Date,
			&entry.Time,
			&entry.Action,
			&entry.Note,
		); err != nil {
			return nil, err
		}
		trail = append(trail, entry)
	}
	return trail, rows.Err()
}

func (r *protocolRepository) ListWithFilter(ctx context.Context, filter ProtocolFilter) ([]domain.Protocol, error) {
	base := fmt.Sprintf(`SELECT %s FROM protocols`, protocolColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if !filter.IncludeHidden {
		clauses = append(clauses, "hidden=FALSE")
	}
	if filter.Unit != nil {
		args = append(args, *filter.Unit)
		clauses = append(clauses, fmt.Sprintf("unit=$%d", len(args)))
	}
	if filter.DriverID != nil {
		args = append(args, *filter.DriverID)
		clauses = append(clauses, fmt.Sprintf("driver_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Protocol
	for rows.Next() {
		protocol, err := scanProtocol(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *protocol)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProtocol(row rowScanner) (*domain.Protocol, error) {
	var (
		protocol domain.Protocol
		items    []byte
		closure  []byte
	)
	if err := row.Scan(
		&protocol.ID,
		&protocol.Number,
		&protocol.Status,
		&protocol.Version,
		&protocol.CreatedAt,
		&protocol.CreationDate,
		&protocol.CreationTime,
		&protocol.Driver.ID,
		&protocol.Driver.Name,
		&protocol.Driver.Unit,
		&protocol.Driver.Phone,
		&protocol.Unit,
		&protocol.PDVCode,
		&protocol.InvoiceNumber,
		&protocol.ReplacementType,
		&protocol.Cause,
		&items,
		&protocol.Validated,
		&protocol.Launched,
		&protocol.Hidden,
		&protocol.ClosedAt,
		&protocol.EvidencePhotos.DriverAtSiteURL,
		&protocol.EvidencePhotos.ProductLotURL,
		&protocol.EvidencePhotos.DamageURL,
		&closure,
	); err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &protocol.LineItems); err != nil {
			return nil, err
		}
	}
	if len(closure) > 0 {
		var evidence domain.ClosureEvidence
		if err := json.Unmarshal(closure, &evidence); err != nil {
			return nil, err
		}
		protocol.ClosureEvidence = &evidence
	}
	return &protocol, nil
}

func marshalClosure(evidence *domain.ClosureEvidence) ([]byte, error) {
	if evidence == nil {
		return nil, nil
	}
	return json.Marshal(evidence)
}
