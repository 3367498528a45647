package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creativedesigns/retail-iam/internal/core/domain"
	"github.com/creativedesigns/retail-iam/internal/core/port"
	"github.com/creativedesigns/retail-iam/internal/repository"
)

const accountsTable = "iam.accounts"

var accountColumns = []string{
	"id",
	"full_name",
	"username",
	"secret_hash",
	"role",
	"is_active",
	"created_at",
	"last_login_at",
	"failed_attempts",
	"custom_permissions",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	repo := &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// LoadAll returns every account ordered by registration.
func (r *AccountRepository) LoadAll(ctx context.Context) ([]*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select accounts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

// FindByUsername retrieves an account by its normalized username.
func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Eq{"username": username}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	acct, err := scanAccount(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return acct, nil
}

// Add inserts a new account row.
func (r *AccountRepository) Add(ctx context.Context, account *domain.Account) error {
	query := r.builder.Insert(accountsTable).
		Columns(accountColumns...).
		Values(
			account.ID,
			account.FullName,
			account.Username,
			account.SecretHash,
			string(account.Role),
			account.IsActive,
			account.CreatedAt,
			account.LastLoginAt,
			account.FailedAttempts,
			account.PermissionList(),
		)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// Update overwrites the row identified by username, including the username
// column itself when the registry replaces an account wholesale.
func (r *AccountRepository) Update(ctx context.Context, username string, account *domain.Account) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("full_name", account.FullName).
		Set("username", account.Username).
		Set("secret_hash", account.SecretHash).
		Set("role", string(account.Role)).
		Set("is_active", account.IsActive).
		Set("last_login_at", account.LastLoginAt).
		Set("failed_attempts", account.FailedAttempts).
		Set("custom_permissions", account.PermissionList()).
		Where(squirrel.Eq{"username": username}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update account sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Remove deletes the account identified by username.
func (r *AccountRepository) Remove(ctx context.Context, username string) error {
	stmt, args, err := r.builder.Delete(accountsTable).
		Where(squirrel.Eq{"username": username}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete account sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		acct        domain.Account
		role        string
		lastLogin   *time.Time
		permissions []string
	)

	if err := row.Scan(
		&acct.ID,
		&acct.FullName,
		&acct.Username,
		&acct.SecretHash,
		&role,
		&acct.IsActive,
		&acct.CreatedAt,
		&lastLogin,
		&acct.FailedAttempts,
		&permissions,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	acct.Role = domain.Role(role)
	acct.LastLoginAt = lastLogin
	acct.CustomPermissions = make(map[string]struct{}, len(permissions))
	for _, name := range permissions {
		acct.CustomPermissions[name] = struct{}{}
	}

	return &acct, nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
