package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jcmexdev/order-registration/internal/order-service/domain"
)

type auditRecorder struct {
	uow *unitOfWork
}

// Record stages one append-only row. It shares the fate of the order
// transaction: a rollback discards it.
func (r *auditRecorder) Record(ctx context.Context, event domain.AuditEvent) error {
	tx, err := r.uow.activeTx()
	if err != nil {
		return err
	}
	d := r.uow.store.dialect

	const q = `
		INSERT INTO audit_log (occurred_at, event, description, user_name, level)
		VALUES (?, ?, ?, ?, ?)`

	if _, err := tx.ExecContext(ctx, d.rebind(q),
		d.timeArg(event.Timestamp),
		event.Event,
		event.Description,
		nullableString(event.User),
		string(event.Level),
	); err != nil {
		return domain.PersistenceFailure("insert audit event "+event.Event, err)
	}
	return nil
}

// ListAudit returns the committed audit trail, oldest first.
func (s *Store) ListAudit(ctx context.Context) ([]domain.AuditEvent, error) {
	const q = `
		SELECT id, occurred_at, event, description, user_name, level
		FROM   audit_log
		ORDER  BY id`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, domain.PersistenceFailure("query audit log", err)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var (
			e     domain.AuditEvent
			user  sql.NullString
			level string
		)
		if err := rows.Scan(&e.ID, timeColumn{dst: &e.Timestamp}, &e.Event, &e.Description, &user, &level); err != nil {
			return nil, domain.PersistenceFailure("scan audit event", err)
		}
		e.User = user.String
		e.Level = domain.Level(level)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceFailure("iterate audit log", err)
	}
	return out, nil
}

// nullableString stores NULL instead of an empty TEXT.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
