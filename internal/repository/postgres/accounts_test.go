package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/creativedesigns/retail-iam/internal/core/domain"
	"github.com/creativedesigns/retail-iam/internal/repository"
)

func newMockRepository(t *testing.T) (*AccountRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewAccountRepository(mock), mock
}

func accountRows() *pgxmock.Rows {
	return pgxmock.NewRows(accountColumns)
}

func sampleAccount() *domain.Account {
	acct := domain.NewAccount("Jane Doe", "jdoe", "stored-hash", domain.RoleSalesperson)
	acct.ID = 2
	return acct
}

func TestLoadAll(t *testing.T) {
	repo, mock := newMockRepository(t)

	created := time.Now().UTC()
	rows := accountRows().
		AddRow(1, "System Administrator", "admin", "hash-a", "administrator", true, created, (*time.Time)(nil), 0, []string{}).
		AddRow(2, "Jane Doe", "jdoe", "hash-b", "salesperson", true, created, (*time.Time)(nil), 1, []string{"view_reports"})

	mock.ExpectQuery(`SELECT (.+) FROM iam\.accounts ORDER BY created_at ASC, id ASC`).
		WillReturnRows(rows)

	accounts, err := repo.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Role != domain.RoleAdministrator {
		t.Fatalf("expected administrator, got %s", accounts[0].Role)
	}
	if _, ok := accounts[1].CustomPermissions["view_reports"]; !ok {
		t.Fatal("expected custom permission to be restored")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindByUsername(t *testing.T) {
	repo, mock := newMockRepository(t)

	created := time.Now().UTC()
	mock.ExpectQuery(`SELECT (.+) FROM iam\.accounts WHERE username = \$1`).
		WithArgs("jdoe").
		WillReturnRows(accountRows().
			AddRow(2, "Jane Doe", "jdoe", "stored-hash", "salesperson", true, created, (*time.Time)(nil), 0, []string{}))

	acct, err := repo.FindByUsername(context.Background(), "jdoe")
	if err != nil {
		t.Fatalf("FindByUsername returned error: %v", err)
	}
	if acct.ID != 2 || acct.Username != "jdoe" {
		t.Fatalf("unexpected account %+v", acct)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindByUsernameNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT (.+) FROM iam\.accounts WHERE username = \$1`).
		WithArgs("ghost").
		WillReturnRows(accountRows())

	_, err := repo.FindByUsername(context.Background(), "ghost")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdd(t *testing.T) {
	repo, mock := newMockRepository(t)
	acct := sampleAccount()

	mock.ExpectExec(`INSERT INTO iam\.accounts`).
		WithArgs(
			acct.ID,
			acct.FullName,
			acct.Username,
			acct.SecretHash,
			string(acct.Role),
			acct.IsActive,
			acct.CreatedAt,
			acct.LastLoginAt,
			acct.FailedAttempts,
			acct.PermissionList(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Add(context.Background(), acct); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdate(t *testing.T) {
	repo, mock := newMockRepository(t)
	acct := sampleAccount()

	mock.ExpectExec(`UPDATE iam\.accounts SET`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Update(context.Background(), "jdoe", acct); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateMissingRow(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`UPDATE iam\.accounts SET`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), "ghost", sampleAccount())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`DELETE FROM iam\.accounts WHERE username = \$1`).
		WithArgs("jdoe").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := repo.Remove(context.Background(), "jdoe"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRemoveMissingRow(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`DELETE FROM iam\.accounts WHERE username = \$1`).
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Remove(context.Background(), "ghost")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
