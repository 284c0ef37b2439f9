package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

const pgUniqueViolation = "23505"

// BunAccountStore is the SQL AccountStore, usable with sqlite and postgres.
type BunAccountStore struct {
	repository.Repository[*Account]
	db  *bun.DB
	now func() time.Time
}

var _ AccountStore = (*BunAccountStore)(nil)

// NewAccountsRepository creates the SQL account store
func NewAccountsRepository(db *bun.DB) *BunAccountStore {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return FieldEmail
		},
	})

	return &BunAccountStore{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (s *BunAccountStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return s.findOneTx(ctx, s.db, FieldEmail, NormalizeEmail(email))
}

func (s *BunAccountStore) FindByUsername(ctx context.Context, username string) (*Account, error) {
	return s.findOneTx(ctx, s.db, FieldUsername, NormalizeUsername(username))
}

func (s *BunAccountStore) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.findOneTx(ctx, s.db, "id", id)
}

func (s *BunAccountStore) FindByVerificationToken(ctx context.Context, token string, now time.Time) (*Account, error) {
	record := &Account{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.verification_token = ?", token).
		Where("?TableAlias.verification_token_expires_at > ?", now.UTC()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, s.mapFindError(err, "verification_token", token)
	}
	return record, nil
}

func (s *BunAccountStore) FindByResetToken(ctx context.Context, token string) (*Account, error) {
	return s.findOneTx(ctx, s.db, "reset_password_token", token)
}

// Create inserts the account. The uniqueness pre-check runs in the same
// transaction as the insert; the unique indexes settle any race.
func (s *BunAccountStore) Create(ctx context.Context, account *Account) (*Account, error) {
	record := account.Clone()
	record.Email = NormalizeEmail(record.Email)
	record.Username = NormalizeUsername(record.Username)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := s.now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	toUTC(record)

	var created *Account
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, field := range []string{FieldEmail, FieldUsername} {
			value := record.Email
			if field == FieldUsername {
				value = record.Username
			}
			exists, err := tx.NewSelect().
				Model((*Account)(nil)).
				Where(fmt.Sprintf("?TableAlias.%s = ?", field), value).
				Exists(ctx)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check account uniqueness")
			}
			if exists {
				return ConflictOn(field)
			}
		}

		var err error
		created, err = s.Repository.CreateTx(ctx, tx, record)
		return err
	})

	if err != nil {
		return nil, mapWriteError(err, "failed to create account")
	}

	return created, nil
}

func (s *BunAccountStore) Update(ctx context.Context, account *Account) (*Account, error) {
	record := account.Clone()
	record.UpdatedAt = s.now().UTC()
	toUTC(record)

	// Full row write: cleared codes are nil pointers and must reach the
	// table as NULL, which an OmitZero update would skip.
	res, err := s.db.NewUpdate().
		Model(record).
		ExcludeColumn("created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, mapWriteError(err, "failed to update account")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account")
	}
	if rows == 0 {
		return nil, accountNotFound("id", record.ID.String())
	}

	return record, nil
}

func (s *BunAccountStore) findOneTx(ctx context.Context, tx bun.IDB, column string, value any) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, s.mapFindError(err, column, value)
	}
	return record, nil
}

func (s *BunAccountStore) mapFindError(err error, key string, value any) error {
	if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
		return accountNotFound(key, value)
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query accounts")
}

// toUTC keeps stored timestamps comparable as text on sqlite.
func toUTC(a *Account) {
	a.CreatedAt = a.CreatedAt.UTC()
	for _, t := range []**time.Time{&a.VerificationTokenExpiresAt, &a.ResetPasswordTokenExpiresAt, &a.LastLoginAt} {
		if *t != nil {
			v := (*t).UTC()
			*t = &v
		}
	}
}

func mapWriteError(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeAccountConflict {
		return richErr
	}

	if field, ok := uniqueViolationField(err); ok {
		return ConflictOn(field)
	}

	if goerrors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

// uniqueViolationField extracts the colliding column from a driver unique
// constraint error (postgres SQLSTATE 23505 or sqlite UNIQUE constraint).
func uniqueViolationField(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}
		if field, ok := fieldFromConstraint(pgErr.ConstraintName); ok {
			return field, true
		}
		return fieldFromConstraint(pgErr.Detail)
	}

	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return fieldFromConstraint(msg)
	}

	return "", false
}

func fieldFromConstraint(s string) (string, bool) {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, FieldEmail):
		return FieldEmail, true
	case strings.Contains(s, FieldUsername):
		return FieldUsername, true
	}
	return "", false
}
