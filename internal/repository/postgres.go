package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/septivank/meter-reading-service/internal/db"
	"github.com/septivank/meter-reading-service/internal/domain"
)

// Postgres stores accounts and meter readings in PostgreSQL. Unique
// constraints on accounts(account_number) and
// meter_readings(account_id, reading_date) back the natural keys.
type Postgres struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgres creates a store over pool. A positive timeout bounds every
// transaction and read.
func NewPostgres(pool *pgxpool.Pool, timeout time.Duration) *Postgres {
	return &Postgres{pool: pool, timeout: timeout}
}

func (r *Postgres) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// WithTx runs fn inside a transaction
func (r *Postgres) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return classify(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(err, "failed to commit transaction")
	}
	return nil
}

// ListAccounts returns every account ordered by account number
func (r *Postgres) ListAccounts(ctx context.Context) ([]db.Account, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, account_number, first_name, last_name
		FROM accounts
		ORDER BY account_number
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, classify(err, "failed to query accounts")
	}
	return collectAccounts(rows)
}

// ListReadingsByAccount returns an account's readings ordered by date
func (r *Postgres) ListReadingsByAccount(ctx context.Context, accountNumber string) ([]db.MeterReading, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT r.id, r.account_id, a.account_number, r.reading_date, r.value
		FROM meter_readings r
		JOIN accounts a ON a.id = r.account_id
		WHERE a.account_number = $1
		ORDER BY r.reading_date
	`

	rows, err := r.pool.Query(ctx, query, accountNumber)
	if err != nil {
		return nil, classify(err, "failed to query meter readings")
	}
	return collectReadings(rows)
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) FindAccount(ctx context.Context, accountNumber string) (*db.Account, error) {
	query := `
		SELECT id, account_number, first_name, last_name
		FROM accounts
		WHERE account_number = $1
	`

	var account db.Account
	err := t.tx.QueryRow(ctx, query, accountNumber).Scan(
		&account.ID,
		&account.AccountNumber,
		&account.FirstName,
		&account.LastName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to query account")
	}
	return &account, nil
}

func (t *pgTx) FindAccounts(ctx context.Context, accountNumbers []string) ([]db.Account, error) {
	if len(accountNumbers) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, account_number, first_name, last_name
		FROM accounts
		WHERE account_number = ANY($1)
	`

	rows, err := t.tx.Query(ctx, query, accountNumbers)
	if err != nil {
		return nil, classify(err, "failed to query accounts")
	}
	return collectAccounts(rows)
}

func (t *pgTx) FindReading(ctx context.Context, key domain.ReadingKey) (*db.MeterReading, error) {
	readings, err := t.FindReadings(ctx, []domain.ReadingKey{key})
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, nil
	}
	return &readings[0], nil
}

// FindReadings looks up every key in one round trip by joining against the
// unnested key arrays.
func (t *pgTx) FindReadings(ctx context.Context, keys []domain.ReadingKey) ([]db.MeterReading, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	query := `
		SELECT r.id, r.account_id, a.account_number, r.reading_date, r.value
		FROM meter_readings r
		JOIN accounts a ON a.id = r.account_id
		JOIN unnest($1::text[], $2::date[]) AS k(account_number, reading_date)
			ON k.account_number = a.account_number AND k.reading_date = r.reading_date
	`

	accountNumbers := lo.Map(keys, func(k domain.ReadingKey, _ int) string { return k.AccountNumber })
	dates := lo.Map(keys, func(k domain.ReadingKey, _ int) time.Time { return k.Date })

	rows, err := t.tx.Query(ctx, query, accountNumbers, dates)
	if err != nil {
		return nil, classify(err, "failed to query meter readings")
	}
	return collectReadings(rows)
}

// Apply queues every write into a single batch
func (t *pgTx) Apply(ctx context.Context, changes Changes) error {
	if changes.Empty() {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range changes.InsertAccounts {
		batch.Queue(`INSERT INTO accounts (id, account_number, first_name, last_name) VALUES ($1, $2, $3, $4)`,
			a.ID, a.AccountNumber, a.FirstName, a.LastName)
	}
	for _, a := range changes.UpdateAccounts {
		batch.Queue(`UPDATE accounts SET first_name = $1, last_name = $2 WHERE id = $3`,
			a.FirstName, a.LastName, a.ID)
	}
	for _, m := range changes.InsertReadings {
		batch.Queue(`INSERT INTO meter_readings (id, account_id, reading_date, value) VALUES ($1, $2, $3, $4)`,
			m.ID, m.AccountID, m.ReadingDate, m.Value)
	}
	for _, m := range changes.UpdateReadings {
		batch.Queue(`UPDATE meter_readings SET value = $1 WHERE id = $2`,
			m.Value, m.ID)
	}

	br := t.tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return classify(err, "failed to apply batch")
		}
	}
	if err := br.Close(); err != nil {
		return classify(err, "failed to apply batch")
	}
	return nil
}

func collectAccounts(rows pgx.Rows) ([]db.Account, error) {
	defer rows.Close()

	var accounts []db.Account
	for rows.Next() {
		var a db.Account
		if err := rows.Scan(&a.ID, &a.AccountNumber, &a.FirstName, &a.LastName); err != nil {
			return nil, classify(err, "failed to scan account")
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "rows iteration error")
	}
	return accounts, nil
}

func collectReadings(rows pgx.Rows) ([]db.MeterReading, error) {
	defer rows.Close()

	var readings []db.MeterReading
	for rows.Next() {
		var m db.MeterReading
		if err := rows.Scan(&m.ID, &m.AccountID, &m.AccountNumber, &m.ReadingDate, &m.Value); err != nil {
			return nil, classify(err, "failed to scan meter reading")
		}
		m.ReadingDate = m.ReadingDate.UTC()
		readings = append(readings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "rows iteration error")
	}
	return readings, nil
}
