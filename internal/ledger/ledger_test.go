package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vpn-reseller-bot/internal/db"
	"vpn-reseller-bot/internal/provision"
)

func TestDebitAmount(t *testing.T) {
	cases := []struct {
		price int64
		want  int64
	}{
		{399, 39900},
		{999, 99900},
		{0, 0},
	}
	for _, tc := range cases {
		if got := DebitAmount(db.Tariff{Price: tc.price}); got != tc.want {
			t.Errorf("DebitAmount(%d) = %d, want %d", tc.price, got, tc.want)
		}
	}
}

// newMockDB подменяет глобальный gorm-хендл на sqlmock до конца теста
func newMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open gorm: %v", err)
	}
	old := db.DB
	db.DB = gdb
	t.Cleanup(func() {
		db.DB = old
		sqlDB.Close()
	})
	return mock
}

func tariffRows(price int64, active bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "days", "price", "active", "created_at"}).
		AddRow(1, "30 дней", 30, price, active, time.Now())
}

func userRows(balance int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tg_id", "username", "is_active", "tos_accepted_at", "balance", "created_at"}).
		AddRow(5, 100500, "user", true, nil, balance, time.Now())
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	mock := newMockDB(t)

	// Баланс 100, цена 400: отказ без списания, без подписки и без
	// обращения к панелям
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "tariffs"`).WillReturnRows(tariffRows(4, true))
	mock.ExpectQuery(`SELECT \* FROM "users" .* FOR UPDATE`).WillReturnRows(userRows(100))
	mock.ExpectRollback()

	_, err := Purchase(context.Background(), 100500, 1, provision.NewOrchestrator())
	require.ErrorIs(t, err, ErrInsufficientFunds)
	// Ни UPDATE users, ни INSERT subscriptions, ни SELECT panels не
	// ожидались: лишний запрос провалил бы тест
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseInactiveTariff(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "tariffs"`).WillReturnRows(tariffRows(4, false))
	mock.ExpectRollback()

	_, err := Purchase(context.Background(), 100500, 1, provision.NewOrchestrator())
	require.ErrorIs(t, err, ErrTariffUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseDebitsThenProvisions(t *testing.T) {
	mock := newMockDB(t)

	subCols := []string{"id", "user_id", "status", "expires_at", "created_at", "notified_expiring"}
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "tariffs"`).WillReturnRows(tariffRows(399, true))
	mock.ExpectQuery(`SELECT \* FROM "users" .* FOR UPDATE`).WillReturnRows(userRows(100000))
	mock.ExpectExec(`UPDATE "users" SET "balance"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "subscriptions"`).WillReturnRows(sqlmock.NewRows(subCols))
	mock.ExpectExec(`UPDATE "subscriptions" SET "status"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO "subscriptions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()
	// Панели опрашиваются только после коммита списания
	mock.ExpectQuery(`SELECT \* FROM "panels"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "base_url", "username", "password", "domain", "active", "created_at"}))

	result, err := Purchase(context.Background(), 100500, 1, provision.NewOrchestrator())
	require.NoError(t, err)
	require.Equal(t, int64(39900), result.Debited)
	require.Equal(t, db.SubStatusActive, result.Subscription.Status)
	require.Empty(t, result.Nodes)
	require.NoError(t, mock.ExpectationsWereMet())
}
