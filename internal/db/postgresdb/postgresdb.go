// Package postgresdb provides a PostgreSQL-based implementation of the
// storage interface for persisting user accounts and geotagged journal
// entries. Schema migrations are applied with goose at startup.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mpetrenko/geotaglog/internal/models"
	"github.com/mpetrenko/geotaglog/internal/user"
)

const uniqueViolationCode = "23505"

// PostgresDB is a PostgreSQL-backed implementation of the storage
// contract. All persistence operations go through a single *sql.DB.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables or disables resetting the database schema before migration.
// It can be used for test setups or development purposes.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil, fmt.Errorf("error while `result.resetDB()` calling: %w", err)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("error while `goose.SetDialect()` calling: %w", err)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil, fmt.Errorf("error while `goose.Up()` calling: %w", err)
	}

	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// CreateUser inserts a new user record. A duplicate email trips the
// unique index and is reported as models.ErrEmailAlreadyTaken.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		usr.ID,
		usr.Name,
		usr.Email,
		usr.PasswordHash,
		usr.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrEmailAlreadyTaken
		}
		return err
	}

	return nil
}

func (db *PostgresDB) findUser(ctx context.Context, condition string, arg any) (*user.User, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE `+condition,
		arg,
	)

	usr := &user.User{}
	err := row.Scan(&usr.ID, &usr.Name, &usr.Email, &usr.PasswordHash, &usr.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return usr, true, nil
}

// FindUserByEmail fetches the user registered under the given email.
func (db *PostgresDB) FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	return db.findUser(ctx, `email = $1`, email)
}

// FindUserByID fetches a user by their UUID.
func (db *PostgresDB) FindUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	return db.findUser(ctx, `id = $1`, userID)
}

// CreateEntry inserts a new journal entry record.
func (db *PostgresDB) CreateEntry(ctx context.Context, entry *models.Entry) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			INSERT INTO entries
				(id, user_id, title, description, image_url, latitude, longitude, address, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
		entry.ID,
		entry.UserID,
		entry.Title,
		entry.Description,
		entry.ImageURL,
		entry.Latitude,
		entry.Longitude,
		entry.Address,
		entry.CreatedAt,
	)

	return err
}

// FindEntriesByUser returns the user's entries ordered by creation time
// descending, id as a stable tie-break.
func (db *PostgresDB) FindEntriesByUser(ctx context.Context, userID string) ([]models.Entry, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT id, user_id, title, description, image_url, latitude, longitude, address, created_at
				FROM entries
				WHERE user_id = $1
				ORDER BY created_at DESC, id DESC
		`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.Entry{}
	for rows.Next() {
		var entry models.Entry
		err = rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Title,
			&entry.Description,
			&entry.ImageURL,
			&entry.Latitude,
			&entry.Longitude,
			&entry.Address,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		result = append(result, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return result, nil
}

// FindEntryByID fetches a single entry by its UUID.
func (db *PostgresDB) FindEntryByID(ctx context.Context, entryID string) (*models.Entry, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			SELECT id, user_id, title, description, image_url, latitude, longitude, address, created_at
				FROM entries
				WHERE id = $1
		`,
		entryID,
	)

	entry := &models.Entry{}
	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Title,
		&entry.Description,
		&entry.ImageURL,
		&entry.Latitude,
		&entry.Longitude,
		&entry.Address,
		&entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return entry, true, nil
}

// DeleteEntry removes the entry record. Deleting an unknown id is a no-op.
func (db *PostgresDB) DeleteEntry(ctx context.Context, entryID string) error {
	_, err := db.database.ExecContext(
		ctx,
		`DELETE FROM entries WHERE id = $1`,
		entryID,
	)

	return err
}

// GetNumberOfUsers returns the total number of registered users.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM users`)
}

// GetNumberOfEntries returns the total number of stored entries.
func (db *PostgresDB) GetNumberOfEntries(ctx context.Context) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM entries`)
}

func (db *PostgresDB) count(ctx context.Context, query string) (int64, error) {
	row := db.database.QueryRowContext(ctx, query)
	var result int64
	if err := row.Scan(&result); err != nil {
		return 0, err
	}

	return result, nil
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf("error while `db.database.ExecContext()` calling: %w", err)
	}
	return nil
}
