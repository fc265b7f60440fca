package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/boostgrid/panel-service/internal/app/domain/catalog"
	"github.com/boostgrid/panel-service/internal/app/domain/order"
	"github.com/boostgrid/panel-service/internal/app/domain/profile"
	"github.com/boostgrid/panel-service/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func profileRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "username", "full_name", "email", "balance", "total_orders",
		"status", "is_admin", "admin_created_at", "created_at", "updated_at",
	})
}

func TestCreateOrderAndDebit(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE profiles").
		WithArgs("user-1", "75", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM profiles").
		WithArgs("user-1").
		WillReturnRows(profileRows().AddRow(
			"p-1", "user-1", "alice", "Alice", "alice@example.com", "25.00", 4,
			"active", false, nil, now, now,
		))
	mock.ExpectCommit()

	o, p, err := store.CreateOrderAndDebit(context.Background(), order.Order{
		UserID:    "user-1",
		ServiceID: "svc-1",
		TargetURL: "https://example.com/post/1",
		Quantity:  500,
		TotalCost: decimal.RequireFromString("75"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, o.ID)
	require.Equal(t, order.StatusPending, o.Status)
	require.True(t, p.Balance.Equal(decimal.RequireFromString("25")))
	require.Equal(t, 4, p.TotalOrders)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderAndDebitInsufficientBalance(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE profiles").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, _, err := store.CreateOrderAndDebit(context.Background(), order.Order{
		UserID:    "user-1",
		ServiceID: "svc-1",
		TotalCost: decimal.RequireFromString("75"),
	})
	require.ErrorIs(t, err, storage.ErrInsufficientBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderAndDebitMissingProfile(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE profiles").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, _, err := store.CreateOrderAndDebit(context.Background(), order.Order{
		UserID:    "ghost",
		TotalCost: decimal.RequireFromString("10"),
	})
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeInvitationRejectsUsedToken(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE admin_invitations").
		WithArgs("tok-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.ConsumeInvitation(context.Background(), "tok-1", time.Now())
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetServiceNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM services").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetService(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// TestPostgresIntegration exercises the store against a real database. It is
// skipped unless TEST_POSTGRES_DSN is set.
func TestPostgresIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(db))

	store := New(db)
	ctx := context.Background()

	svc, err := store.CreateService(ctx, catalog.Service{
		Platform:     "instagram",
		Category:     "followers",
		Name:         "Instagram Followers",
		PricePer1000: decimal.RequireFromString("150"),
		MinQuantity:  10,
		MaxQuantity:  1000,
	})
	require.NoError(t, err)

	userID := "itest-" + time.Now().Format("150405.000000000")
	p, err := store.CreateProfile(ctx, profile.Profile{
		UserID:  userID,
		Balance: decimal.RequireFromString("100"),
	})
	require.NoError(t, err)
	require.True(t, p.Balance.Equal(decimal.RequireFromString("100")))

	o, updated, err := store.CreateOrderAndDebit(ctx, order.Order{
		UserID:    userID,
		ServiceID: svc.ID,
		TargetURL: "https://example.com/p/1",
		Quantity:  500,
		TotalCost: decimal.RequireFromString("75"),
	})
	require.NoError(t, err)
	require.True(t, updated.Balance.Equal(decimal.RequireFromString("25")))
	require.Equal(t, 1, updated.TotalOrders)

	_, _, err = store.CreateOrderAndDebit(ctx, order.Order{
		UserID:    userID,
		ServiceID: svc.ID,
		TargetURL: "https://example.com/p/2",
		Quantity:  500,
		TotalCost: decimal.RequireFromString("75"),
	})
	require.True(t, errors.Is(err, storage.ErrInsufficientBalance))

	orders, err := store.ListOrdersByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, o.ID, orders[0].ID)
}
