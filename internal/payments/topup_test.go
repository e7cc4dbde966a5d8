package payments

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vpn-reseller-bot/internal/db"
)

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

var payCols = []string{"id", "user_id", "provider", "external_id", "amount", "currency", "status", "created_at", "updated_at"}

func payRows(status string) *sqlmock.Rows {
	return sqlmock.NewRows(payCols).
		AddRow(1, 5, "fakepay", "inv-1", 19900, "RUB", status, time.Now(), time.Now())
}

func TestConfirmPaidCreditsPending(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payments"`).WillReturnRows(payRows(db.PayStatusPending))
	mock.ExpectExec(`UPDATE "payments" SET "status"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tg_id", "username", "is_active", "tos_accepted_at", "balance", "created_at"}).
			AddRow(5, 100500, "user", true, nil, 0, time.Now()))
	mock.ExpectExec(`UPDATE "users" SET "balance"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	pay, credited, err := ConfirmPaid("fakepay", "inv-1")
	require.NoError(t, err)
	require.True(t, credited)
	require.Equal(t, db.PayStatusPaid, pay.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPaidDuplicateIsNoop(t *testing.T) {
	mock := newMockDB(t)

	// Повторный webhook: платёж уже paid, повторного зачисления и
	// повторного уведомления быть не должно
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payments"`).WillReturnRows(payRows(db.PayStatusPaid))
	mock.ExpectCommit()

	_, credited, err := ConfirmPaid("fakepay", "inv-1")
	require.NoError(t, err)
	require.False(t, credited)
	require.NoError(t, mock.ExpectationsWereMet())
}

type fakeProvider struct {
	paid bool
}

func (f *fakeProvider) Start(ctx context.Context, userID int64, amount int64, currency string) (string, string, error) {
	return "", "", nil
}

func (f *fakeProvider) Check(ctx context.Context, externalID string) (bool, error) {
	return f.paid, nil
}

func (f *fakeProvider) Name() string { return "fakepay" }

func TestCheckAndConfirmCanceledInvoiceNotCredited(t *testing.T) {
	mock := newMockDB(t)

	// Отменённый у нас счёт, который провайдер потом пометил оплаченным:
	// баланс не зачисляется и "оплачено" не сообщается
	mock.ExpectQuery(`SELECT \* FROM "payments"`).WillReturnRows(payRows(db.PayStatusCanceled))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payments"`).WillReturnRows(payRows(db.PayStatusCanceled))
	mock.ExpectCommit()

	credited, err := CheckAndConfirm(context.Background(), &fakeProvider{paid: true}, "inv-1")
	require.NoError(t, err)
	require.False(t, credited)
	require.NoError(t, mock.ExpectationsWereMet())
}
