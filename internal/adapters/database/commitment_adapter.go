package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/attenda/scheduling/internal/domain/entities"
	"github.com/attenda/scheduling/internal/domain/repositories"
	"github.com/attenda/scheduling/internal/domain/timespan"
	"github.com/attenda/scheduling/internal/infrastructure/clients/postgres"
	"github.com/attenda/scheduling/internal/infrastructure/observability"
	apperrors "github.com/attenda/scheduling/pkg/errors"
)

var commitmentColumns = []interface{}{
	"id", "tenant_id", "provider_id", "kind", "location_id", "client_name",
	"start_at", "end_at", "status", "reason", "cancelled_reason",
	"created_at", "updated_at",
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// CommitmentAdapter implements the CommitmentStore interface on PostgreSQL.
// Blocks and appointments share one commitments table discriminated by kind,
// so the overlap query covers both in a single range scan.
type CommitmentAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

// NewCommitmentAdapter creates a new commitment adapter
func NewCommitmentAdapter(client *postgres.Client, metrics *observability.Metrics) repositories.CommitmentStore {
	return &CommitmentAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

// InTx runs fn inside a transaction serialized per (tenant, provider). A
// transaction-scoped advisory lock on the pair keeps concurrent proposals
// for the same provider from interleaving their conflict check with another
// proposal's insert; disjoint providers hash to different locks and proceed
// in parallel.
func (a *CommitmentAdapter) InTx(ctx context.Context, tenantID, providerID string, fn func(tx repositories.CommitmentTx) error) error {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewTransientError("failed to begin transaction", err)
	}

	lockKey := tenantID + ":" + providerID
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", lockKey); err != nil {
		_ = tx.Rollback()
		return mapDBError("failed to acquire provider schedule lock", err)
	}

	if err := fn(&commitmentTx{adapter: a, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapDBError("failed to commit schedule transaction", err)
	}
	return nil
}

// GetCommitment retrieves a block or appointment by id
func (a *CommitmentAdapter) GetCommitment(ctx context.Context, tenantID, commitmentID string) (entities.Commitment, error) {
	query, args, err := a.db.Select(commitmentColumns...).
		From("commitments").
		Where(goqu.Ex{"tenant_id": tenantID, "id": commitmentID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	row := a.client.DB().QueryRowContext(ctx, query, args...)
	commitment, err := scanCommitment(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("commitment with id %s not found", commitmentID))
	}
	if err != nil {
		return nil, mapDBError("failed to get commitment", err)
	}
	return commitment, nil
}

// ListForDay returns every commitment intersecting the UTC day containing
// day, ordered by start ascending
func (a *CommitmentAdapter) ListForDay(ctx context.Context, tenantID, providerID string, day time.Time) ([]entities.Commitment, error) {
	window := timespan.Day(day)
	defer a.observeQuery("commitments.list_for_day", time.Now())

	query, args, err := a.db.Select(commitmentColumns...).
		From("commitments").
		Where(
			goqu.Ex{"tenant_id": tenantID, "provider_id": providerID},
			goqu.C("start_at").Lt(window.End),
			goqu.C("end_at").Gt(window.Start),
		).
		Order(goqu.C("start_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryCommitments(ctx, a.client.DB(), query, args)
}

// FindAppointmentWithPayment loads an appointment and its payment, if any
func (a *CommitmentAdapter) FindAppointmentWithPayment(ctx context.Context, tenantID, appointmentID string) (*entities.Appointment, *entities.Payment, error) {
	commitment, err := a.GetCommitment(ctx, tenantID, appointmentID)
	if err != nil {
		return nil, nil, err
	}
	appointment, ok := commitment.(*entities.Appointment)
	if !ok {
		return nil, nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", appointmentID))
	}

	query, args, err := a.db.Select(
		"id", "tenant_id", "appointment_id", "amount_cents", "currency",
		"status", "refunded_at", "created_at", "updated_at",
	).From("payments").
		Where(goqu.Ex{"tenant_id": tenantID, "appointment_id": appointmentID}).
		ToSQL()
	if err != nil {
		return nil, nil, apperrors.NewInternalError("failed to build query", err)
	}

	payment := &entities.Payment{}
	var refundedAt sql.NullTime
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&payment.ID,
		&payment.TenantID,
		&payment.AppointmentID,
		&payment.AmountCents,
		&payment.Currency,
		&payment.Status,
		&refundedAt,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return appointment, nil, nil
	}
	if err != nil {
		return nil, nil, mapDBError("failed to get payment", err)
	}
	if refundedAt.Valid {
		payment.RefundedAt = &refundedAt.Time
	}
	return appointment, payment, nil
}

func (a *CommitmentAdapter) queryCommitments(ctx context.Context, q querier, query string, args []interface{}) ([]entities.Commitment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapDBError("failed to query commitments", err)
	}
	defer rows.Close()

	var commitments []entities.Commitment
	for rows.Next() {
		commitment, err := scanCommitment(rows)
		if err != nil {
			return nil, mapDBError("failed to scan commitment", err)
		}
		commitments = append(commitments, commitment)
	}
	if err := rows.Err(); err != nil {
		return nil, mapDBError("failed to iterate commitments", err)
	}
	return commitments, nil
}

func (a *CommitmentAdapter) observeQuery(name string, start time.Time) {
	if a.metrics == nil {
		return
	}
	a.metrics.DBQueryDuration.Record(context.Background(),
		float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("query", name)),
	)
}

// commitmentTx is the write surface bound to one open transaction
type commitmentTx struct {
	adapter *CommitmentAdapter
	q       querier
}

// FindOverlapping returns active commitments of the provider overlapping
// span, excluding excludeID when set. Blocks are always active; appointments
// only while scheduled or in_service.
func (t *commitmentTx) FindOverlapping(ctx context.Context, tenantID, providerID string, span timespan.Span, excludeID string) ([]entities.Commitment, error) {
	defer t.adapter.observeQuery("commitments.find_overlapping", time.Now())

	ds := t.adapter.db.Select(commitmentColumns...).
		From("commitments").
		Where(
			goqu.Ex{"tenant_id": tenantID, "provider_id": providerID},
			goqu.C("start_at").Lt(span.End),
			goqu.C("end_at").Gt(span.Start),
			goqu.Or(
				goqu.C("kind").Eq(string(entities.CommitmentKindBlock)),
				goqu.C("status").In(
					string(entities.AppointmentStatusScheduled),
					string(entities.AppointmentStatusInService),
				),
			),
		)
	if excludeID != "" {
		ds = ds.Where(goqu.C("id").Neq(excludeID))
	}

	query, args, err := ds.Order(goqu.C("start_at").Asc()).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return t.adapter.queryCommitments(ctx, t.q, query, args)
}

// InsertBlock inserts a new block
func (t *commitmentTx) InsertBlock(ctx context.Context, block *entities.Block) error {
	record := goqu.Record{
		"id":          block.ID,
		"tenant_id":   block.TenantID,
		"provider_id": block.ProviderID,
		"kind":        string(entities.CommitmentKindBlock),
		"start_at":    block.StartAt,
		"end_at":      block.EndAt,
		"reason":      nullable(block.Reason),
		"created_at":  block.CreatedAt,
		"updated_at":  block.UpdatedAt,
	}
	return t.insert(ctx, record, "failed to create block")
}

// InsertAppointment inserts a new appointment
func (t *commitmentTx) InsertAppointment(ctx context.Context, appointment *entities.Appointment) error {
	record := goqu.Record{
		"id":          appointment.ID,
		"tenant_id":   appointment.TenantID,
		"provider_id": appointment.ProviderID,
		"kind":        string(entities.CommitmentKindAppointment),
		"location_id": nullable(appointment.LocationID),
		"client_name": nullable(appointment.ClientName),
		"start_at":    appointment.StartAt,
		"end_at":      appointment.EndAt,
		"status":      string(appointment.Status),
		"created_at":  appointment.CreatedAt,
		"updated_at":  appointment.UpdatedAt,
	}
	return t.insert(ctx, record, "failed to create appointment")
}

func (t *commitmentTx) insert(ctx context.Context, record goqu.Record, failMsg string) error {
	query, args, err := t.adapter.db.Insert("commitments").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}
	if _, err := t.q.ExecContext(ctx, query, args...); err != nil {
		return mapDBError(failMsg, err)
	}
	return nil
}

// UpdateCommitmentSpan moves or resizes a commitment of either kind
func (t *commitmentTx) UpdateCommitmentSpan(ctx context.Context, tenantID, commitmentID string, span timespan.Span) error {
	query, args, err := t.adapter.db.Update("commitments").
		Set(goqu.Record{
			"start_at":   span.Start,
			"end_at":     span.End,
			"updated_at": time.Now().UTC(),
		}).
		Where(goqu.Ex{"tenant_id": tenantID, "id": commitmentID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}
	return t.exec(ctx, query, args, "failed to update commitment", commitmentID)
}

// DeleteCommitment removes a commitment row
func (t *commitmentTx) DeleteCommitment(ctx context.Context, tenantID, commitmentID string) error {
	query, args, err := t.adapter.db.Delete("commitments").
		Where(goqu.Ex{"tenant_id": tenantID, "id": commitmentID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}
	return t.exec(ctx, query, args, "failed to delete commitment", commitmentID)
}

// UpdateAppointmentStatus transitions an appointment's status
func (t *commitmentTx) UpdateAppointmentStatus(ctx context.Context, tenantID, appointmentID string, status entities.AppointmentStatus, cancelledReason string) error {
	record := goqu.Record{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	}
	if cancelledReason != "" {
		record["cancelled_reason"] = cancelledReason
	}

	query, args, err := t.adapter.db.Update("commitments").
		Set(record).
		Where(goqu.Ex{
			"tenant_id": tenantID,
			"id":        appointmentID,
			"kind":      string(entities.CommitmentKindAppointment),
		}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}
	return t.exec(ctx, query, args, "failed to update appointment status", appointmentID)
}

// UpdatePaymentStatus transitions a payment's status
func (t *commitmentTx) UpdatePaymentStatus(ctx context.Context, tenantID, paymentID string, status entities.PaymentStatus, refundedAt *time.Time) error {
	record := goqu.Record{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	}
	if refundedAt != nil {
		record["refunded_at"] = *refundedAt
	}

	query, args, err := t.adapter.db.Update("payments").
		Set(record).
		Where(goqu.Ex{"tenant_id": tenantID, "id": paymentID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}
	return t.exec(ctx, query, args, "failed to update payment status", paymentID)
}

func (t *commitmentTx) exec(ctx context.Context, query string, args []interface{}, failMsg, id string) error {
	result, err := t.q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapDBError(failMsg, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError(failMsg, err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("record with id %s not found", id))
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCommitment(row rowScanner) (entities.Commitment, error) {
	var (
		id, tenantID, providerID, kind       string
		locationID, clientName               sql.NullString
		status, reason, cancelledReason      sql.NullString
		startAt, endAt, createdAt, updatedAt time.Time
	)

	err := row.Scan(
		&id, &tenantID, &providerID, &kind, &locationID, &clientName,
		&startAt, &endAt, &status, &reason, &cancelledReason,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if kind == string(entities.CommitmentKindBlock) {
		return &entities.Block{
			ID:         id,
			TenantID:   tenantID,
			ProviderID: providerID,
			StartAt:    startAt,
			EndAt:      endAt,
			Reason:     reason.String,
			CreatedAt:  createdAt,
			UpdatedAt:  updatedAt,
		}, nil
	}

	return &entities.Appointment{
		ID:              id,
		TenantID:        tenantID,
		ProviderID:      providerID,
		LocationID:      locationID.String,
		ClientName:      clientName.String,
		StartAt:         startAt,
		EndAt:           endAt,
		Status:          entities.AppointmentStatus(status.String),
		CancelledReason: cancelledReason.String,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// mapDBError translates driver errors into the application taxonomy.
// Serialization failures and deadlocks are retryable; an exclusion
// constraint violation means a concurrently committed commitment overlaps
// the one being written.
func mapDBError(message string, err error) error {
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "40001", "40P01":
			return apperrors.NewTransientError(message, err)
		case "23P01":
			return apperrors.NewAppointmentConflictError("a concurrently accepted commitment overlaps this interval")
		}
	}
	return apperrors.NewInternalError(message, err)
}
