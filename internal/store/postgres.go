package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const contactColumns = `id, brevo_id, email, name, mobile, phone, street, city, zip,
	website, country_id, active, sync_status, sync_error, last_modified,
	last_sync_at, created_at`

// contactRepo implements ContactRepository.
type contactRepo struct {
	pool *pgxpool.Pool
}

func (r *contactRepo) getBy(ctx context.Context, where string, arg any) (*Contact, error) {
	var c Contact
	err := r.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE `+where, arg,
	).Scan(&c.ID, &c.BrevoID, &c.Email, &c.Name, &c.Mobile, &c.Phone, &c.Street,
		&c.City, &c.Zip, &c.Website, &c.CountryID, &c.Active, &c.SyncStatus,
		&c.SyncError, &c.LastModified, &c.LastSyncAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *contactRepo) GetByID(ctx context.Context, id int64) (*Contact, error) {
	defer observeDB(ctx, "contacts.get_by_id")()
	return r.getBy(ctx, "id = $1", id)
}

func (r *contactRepo) GetByBrevoID(ctx context.Context, brevoID string) (*Contact, error) {
	defer observeDB(ctx, "contacts.get_by_brevo_id")()
	return r.getBy(ctx, "brevo_id = $1", brevoID)
}

func (r *contactRepo) GetByEmail(ctx context.Context, email string) (*Contact, error) {
	defer observeDB(ctx, "contacts.get_by_email")()
	return r.getBy(ctx, "lower(email) = lower($1)", email)
}

func (r *contactRepo) Create(ctx context.Context, c Contact) (*Contact, error) {
	defer observeDB(ctx, "contacts.create")()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO contacts (brevo_id, email, name, mobile, phone, street, city,
			zip, website, country_id, active, sync_status, sync_error, last_modified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id, created_at`,
		c.BrevoID, c.Email, c.Name, c.Mobile, c.Phone, c.Street, c.City, c.Zip,
		c.Website, c.CountryID, c.Active, c.SyncStatus, c.SyncError, c.LastModified,
	).Scan(&c.ID, &c.CreatedAt)
	if isUniqueViolation(err, "contacts_brevo_id_key") {
		return nil, ErrRemoteIDTaken
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *contactRepo) Update(ctx context.Context, c Contact) error {
	defer observeDB(ctx, "contacts.update")()
	tag, err := r.pool.Exec(ctx,
		`UPDATE contacts SET email = $2, name = $3, mobile = $4, phone = $5,
			street = $6, city = $7, zip = $8, website = $9, country_id = $10,
			active = $11, sync_status = $12, sync_error = $13, last_modified = $14,
			last_sync_at = $15
		 WHERE id = $1`,
		c.ID, c.Email, c.Name, c.Mobile, c.Phone, c.Street, c.City, c.Zip,
		c.Website, c.CountryID, c.Active, c.SyncStatus, c.SyncError,
		c.LastModified, c.LastSyncAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *contactRepo) ClaimBrevoID(ctx context.Context, id int64, brevoID string) error {
	defer observeDB(ctx, "contacts.claim_brevo_id")()
	tag, err := r.pool.Exec(ctx,
		`UPDATE contacts SET brevo_id = $2
		 WHERE id = $1 AND (brevo_id IS NULL OR brevo_id = $2)`,
		id, brevoID)
	if isUniqueViolation(err, "contacts_brevo_id_key") {
		return ErrRemoteIDTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the contact is gone or it already carries a different id.
		var existing *string
		if scanErr := r.pool.QueryRow(ctx,
			`SELECT brevo_id FROM contacts WHERE id = $1`, id,
		).Scan(&existing); scanErr != nil {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return scanErr
		}
		return ErrRemoteIDImmutable
	}
	return nil
}

func (r *contactRepo) Deactivate(ctx context.Context, id int64) error {
	defer observeDB(ctx, "contacts.deactivate")()
	tag, err := r.pool.Exec(ctx,
		`UPDATE contacts SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *contactRepo) ListPendingSync(ctx context.Context, limit int) ([]Contact, error) {
	defer observeDB(ctx, "contacts.list_pending_sync")()
	rows, err := r.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE active AND sync_status IN ($1, $2, $3)
		 ORDER BY last_modified
		 LIMIT $4`,
		SyncNever, SyncPending, SyncError, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.BrevoID, &c.Email, &c.Name, &c.Mobile,
			&c.Phone, &c.Street, &c.City, &c.Zip, &c.Website, &c.CountryID,
			&c.Active, &c.SyncStatus, &c.SyncError, &c.LastModified,
			&c.LastSyncAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *contactRepo) SetMemberships(ctx context.Context, contactID int64, listIDs []int64) error {
	defer observeDB(ctx, "contacts.set_memberships")()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM contact_list_members WHERE contact_id = $1`, contactID); err != nil {
		return err
	}
	for _, listID := range listIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO contact_list_members (contact_id, list_id)
			 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			contactID, listID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *contactRepo) Memberships(ctx context.Context, contactID int64) ([]int64, error) {
	defer observeDB(ctx, "contacts.memberships")()
	rows, err := r.pool.Query(ctx,
		`SELECT list_id FROM contact_list_members WHERE contact_id = $1 ORDER BY list_id`,
		contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// listRepo implements ListRepository.
type listRepo struct {
	pool *pgxpool.Pool
}

func (r *listRepo) getBy(ctx context.Context, where string, arg any) (*ContactList, error) {
	var l ContactList
	err := r.pool.QueryRow(ctx,
		`SELECT id, brevo_id, name, active, created_at, updated_at
		 FROM contact_lists WHERE `+where, arg,
	).Scan(&l.ID, &l.BrevoID, &l.Name, &l.Active, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *listRepo) GetByID(ctx context.Context, id int64) (*ContactList, error) {
	defer observeDB(ctx, "lists.get_by_id")()
	return r.getBy(ctx, "id = $1", id)
}

func (r *listRepo) GetByBrevoID(ctx context.Context, brevoID string) (*ContactList, error) {
	defer observeDB(ctx, "lists.get_by_brevo_id")()
	return r.getBy(ctx, "brevo_id = $1", brevoID)
}

func (r *listRepo) GetByName(ctx context.Context, name string) (*ContactList, error) {
	defer observeDB(ctx, "lists.get_by_name")()
	return r.getBy(ctx, "lower(name) = lower($1)", name)
}

func (r *listRepo) Create(ctx context.Context, l ContactList) (*ContactList, error) {
	defer observeDB(ctx, "lists.create")()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO contact_lists (brevo_id, name, active)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		l.BrevoID, l.Name, l.Active,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *listRepo) Update(ctx context.Context, l ContactList) error {
	defer observeDB(ctx, "lists.update")()
	tag, err := r.pool.Exec(ctx,
		`UPDATE contact_lists SET brevo_id = $2, name = $3, active = $4,
			updated_at = (now() AT TIME ZONE 'utc')
		 WHERE id = $1`,
		l.ID, l.BrevoID, l.Name, l.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *listRepo) Deactivate(ctx context.Context, id int64) error {
	defer observeDB(ctx, "lists.deactivate")()
	tag, err := r.pool.Exec(ctx,
		`UPDATE contact_lists SET active = FALSE,
			updated_at = (now() AT TIME ZONE 'utc')
		 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// countryRepo implements CountryRepository.
type countryRepo struct {
	pool *pgxpool.Pool
}

func (r *countryRepo) GetByID(ctx context.Context, id int64) (*Country, error) {
	defer observeDB(ctx, "countries.get_by_id")()
	var c Country
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name FROM countries WHERE id = $1`, id,
	).Scan(&c.ID, &c.Code, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *countryRepo) GetByName(ctx context.Context, name string) (*Country, error) {
	defer observeDB(ctx, "countries.get_by_name")()
	var c Country
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name FROM countries WHERE lower(name) = lower($1)`, name,
	).Scan(&c.ID, &c.Code, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// leadRepo implements LeadRepository.
type leadRepo struct {
	pool *pgxpool.Pool
}

func (r *leadRepo) GetByBookingID(ctx context.Context, bookingID string) (*Lead, error) {
	defer observeDB(ctx, "leads.get_by_booking_id")()
	var l Lead
	err := r.pool.QueryRow(ctx,
		`SELECT id, contact_id, booking_id, title, description, booking_time,
			status, created_at, updated_at
		 FROM leads WHERE booking_id = $1`, bookingID,
	).Scan(&l.ID, &l.ContactID, &l.BookingID, &l.Title, &l.Description,
		&l.BookingTime, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *leadRepo) Upsert(ctx context.Context, l Lead) (*Lead, error) {
	defer observeDB(ctx, "leads.upsert")()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO leads (contact_id, booking_id, title, description,
			booking_time, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (booking_id) DO UPDATE SET
			contact_id = EXCLUDED.contact_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			booking_time = EXCLUDED.booking_time,
			status = EXCLUDED.status,
			updated_at = (now() AT TIME ZONE 'utc')
		 RETURNING id, created_at, updated_at`,
		l.ContactID, l.BookingID, l.Title, l.Description, l.BookingTime, l.Status,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *leadRepo) MarkLost(ctx context.Context, bookingID string) error {
	defer observeDB(ctx, "leads.mark_lost")()
	tag, err := r.pool.Exec(ctx,
		`UPDATE leads SET status = $2, updated_at = (now() AT TIME ZONE 'utc')
		 WHERE booking_id = $1`, bookingID, LeadLost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// syncLogRepo implements SyncLogRepository.
type syncLogRepo struct {
	pool *pgxpool.Pool
}

func (r *syncLogRepo) Append(ctx context.Context, e SyncLogEntry) error {
	defer observeDB(ctx, "sync_log.append")()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sync_log (id, delivery_id, operation, direction, outcome,
			brevo_id, email, message, error_detail)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.DeliveryID, e.Operation, e.Direction, e.Outcome, e.BrevoID,
		e.Email, e.Message, e.ErrorDetail)
	return err
}

func (r *syncLogRepo) HasSuccessfulDelivery(ctx context.Context, deliveryID string) (bool, error) {
	defer observeDB(ctx, "sync_log.has_delivery")()
	if deliveryID == "" {
		return false, nil
	}
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM sync_log WHERE delivery_id = $1 AND outcome = 'success'
		 )`, deliveryID,
	).Scan(&exists)
	return exists, err
}

func (r *syncLogRepo) Recent(ctx context.Context, limit int) ([]SyncLogEntry, error) {
	defer observeDB(ctx, "sync_log.recent")()
	rows, err := r.pool.Query(ctx,
		`SELECT id, delivery_id, operation, direction, outcome, brevo_id, email,
			message, error_detail, created_at
		 FROM sync_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SyncLogEntry
	for rows.Next() {
		var e SyncLogEntry
		if err := rows.Scan(&e.ID, &e.DeliveryID, &e.Operation, &e.Direction,
			&e.Outcome, &e.BrevoID, &e.Email, &e.Message, &e.ErrorDetail,
			&e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
