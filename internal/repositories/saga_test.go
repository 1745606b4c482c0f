package repositories

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/satbounty/backend/internal/models"
)

// fakeTx answers queries by SQL substring so the money sagas can run
// without a database. Every executed statement is logged in order.
type fakeTx struct {
	t       *testing.T
	rows    map[string]*fakeRow // substring of the SQL -> canned row
	execErr map[string]error    // substring of the SQL -> Exec failure
	log     []string
}

type fakeRow struct {
	vals []any
	err  error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.vals[i].(int64)
		case *int:
			*p = r.vals[i].(int)
		case *string:
			*p = r.vals[i].(string)
		case *time.Time:
			*p = r.vals[i].(time.Time)
		default:
			return errors.New("unhandled scan destination")
		}
	}
	return nil
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.log = append(tx.log, firstWords(sql))
	for sub, err := range tx.execErr {
		if strings.Contains(sql, sub) {
			return pgconn.CommandTag{}, err
		}
	}
	return pgconn.NewCommandTag("OK 1"), nil
}

func (tx *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	tx.log = append(tx.log, firstWords(sql))
	for sub, row := range tx.rows {
		if strings.Contains(sql, sub) {
			return row
		}
	}
	tx.t.Fatalf("unexpected query: %s", firstWords(sql))
	return nil
}

func (tx *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { return tx, nil }
func (tx *fakeTx) Commit(ctx context.Context) error          { return nil }
func (tx *fakeTx) Rollback(ctx context.Context) error        { return nil }
func (tx *fakeTx) Conn() *pgx.Conn                           { return nil }
func (tx *fakeTx) LargeObjects() pgx.LargeObjects            { return pgx.LargeObjects{} }

func (tx *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not supported")
}

func (tx *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (tx *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not supported")
}

func (tx *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func firstWords(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}

func withdrawalTx(t *testing.T, recent int, balance int64) *fakeTx {
	return &fakeTx{
		t: t,
		rows: map[string]*fakeRow{
			"INSERT INTO withdrawals":   {vals: []any{int64(7), time.Now()}},
			"COUNT(*) FROM withdrawals": {vals: []any{recent}},
			"SUM(CASE":                  {vals: []any{balance}},
		},
	}
}

func TestWithdrawalAtRateLimitBoundary(t *testing.T) {
	// Three withdrawals inside the window including this one: allowed
	// when the cap is three.
	tx := withdrawalTx(t, 3, 0)
	w := &models.Withdrawal{PublicID: uuid.New(), UserID: 42, AmountSat: 100}

	sent := false
	err := doWithdrawal(context.Background(), tx, w, 3, time.Hour,
		func(ctx context.Context) (string, error) {
			sent = true
			return "hash-a", nil
		})
	if err != nil {
		t.Fatalf("doWithdrawal: %v", err)
	}
	if !sent {
		t.Fatal("payment was not sent")
	}
	if w.InvoiceHash != "hash-a" {
		t.Fatalf("invoice hash = %q", w.InvoiceHash)
	}
	if tx.log[0] != "SELECT pg_advisory_xact_lock($1)" {
		t.Fatalf("first statement = %q, want the user lock", tx.log[0])
	}
}

func TestWithdrawalOverRateLimit(t *testing.T) {
	tx := withdrawalTx(t, 4, 0)
	w := &models.Withdrawal{PublicID: uuid.New(), UserID: 42, AmountSat: 100}

	err := doWithdrawal(context.Background(), tx, w, 3, time.Hour,
		func(ctx context.Context) (string, error) {
			t.Fatal("payment sent despite the rate limit")
			return "", nil
		})
	if !errors.Is(err, ErrWithdrawalRateLimited) {
		t.Fatalf("err = %v, want ErrWithdrawalRateLimited", err)
	}
}

func TestWithdrawalInsufficientFunds(t *testing.T) {
	// Balance of 100 sat, withdrawal of 150: after the speculative debit
	// the sum is -50 and the saga must stop before paying.
	tx := withdrawalTx(t, 1, -50)
	w := &models.Withdrawal{PublicID: uuid.New(), UserID: 42, AmountSat: 150}

	err := doWithdrawal(context.Background(), tx, w, 3, time.Hour,
		func(ctx context.Context) (string, error) {
			t.Fatal("payment sent despite insufficient funds")
			return "", nil
		})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestWithdrawalSendFailureSkipsHashUpdate(t *testing.T) {
	tx := withdrawalTx(t, 1, 0)
	w := &models.Withdrawal{PublicID: uuid.New(), UserID: 42, AmountSat: 100}

	sendErr := errors.New("route not found")
	err := doWithdrawal(context.Background(), tx, w, 3, time.Hour,
		func(ctx context.Context) (string, error) {
			return "", sendErr
		})
	if !errors.Is(err, sendErr) {
		t.Fatalf("err = %v, want the send failure", err)
	}
	for _, stmt := range tx.log {
		if strings.HasPrefix(stmt, "UPDATE withdrawals") {
			t.Fatal("hash recorded for a failed payment")
		}
	}
}

func deactivationTx(t *testing.T, openCases int, bondSat int64, balance int64) *fakeTx {
	return &fakeTx{
		t: t,
		rows: map[string]*fakeRow{
			"COUNT(*) FROM cases":     {vals: []any{openCases}},
			"DELETE FROM activations": {vals: []any{bondSat}},
			"SUM(CASE":                {vals: []any{balance}},
		},
	}
}

func TestDeactivationPaysBondMinusFee(t *testing.T) {
	tx := deactivationTx(t, 0, 10000, 0)

	var paid int64 = -1
	err := doDeactivation(context.Background(), tx, 42, 40,
		func(ctx context.Context, payoutSat int64) error {
			paid = payoutSat
			return nil
		})
	if err != nil {
		t.Fatalf("doDeactivation: %v", err)
	}
	if paid != 9960 {
		t.Fatalf("payout = %d, want 9960", paid)
	}
	if tx.log[0] != "SELECT pg_advisory_xact_lock($1)" {
		t.Fatalf("first statement = %q, want the user lock", tx.log[0])
	}
	var deletedUsers, deletedBounties bool
	for _, stmt := range tx.log {
		if strings.HasPrefix(stmt, "DELETE FROM users") {
			deletedUsers = true
		}
		if strings.HasPrefix(stmt, "DELETE FROM bounties") {
			deletedBounties = true
		}
	}
	if !deletedUsers || !deletedBounties {
		t.Fatalf("missing deletes, log: %v", tx.log)
	}
}

func TestDeactivationRefusedWithOpenCases(t *testing.T) {
	tx := deactivationTx(t, 1, 10000, 0)

	err := doDeactivation(context.Background(), tx, 42, 40,
		func(ctx context.Context, payoutSat int64) error {
			t.Fatal("payout sent with an open case")
			return nil
		})
	if !errors.Is(err, ErrUnresolvedCases) {
		t.Fatalf("err = %v, want ErrUnresolvedCases", err)
	}
	for _, stmt := range tx.log {
		if strings.HasPrefix(stmt, "DELETE") {
			t.Fatalf("deleted %q with an open case", stmt)
		}
	}
}

func TestDeactivationRefusedWhenBondAlreadyWithdrawn(t *testing.T) {
	// The bond was 10000 sat and the user already withdrew it through the
	// ledger, so once the activation credit is gone the sum goes negative
	// and the bond must not be paid a second time.
	tx := deactivationTx(t, 0, 10000, -10000)

	err := doDeactivation(context.Background(), tx, 42, 40,
		func(ctx context.Context, payoutSat int64) error {
			t.Fatal("bond paid twice")
			return nil
		})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestDeactivationBondBelowFee(t *testing.T) {
	tx := deactivationTx(t, 0, 20, 0)

	err := doDeactivation(context.Background(), tx, 42, 40,
		func(ctx context.Context, payoutSat int64) error {
			t.Fatal("payout sent with bond below the fee")
			return nil
		})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestDeactivationWithoutBond(t *testing.T) {
	tx := deactivationTx(t, 0, 0, 0)
	tx.rows["DELETE FROM activations"] = &fakeRow{err: pgx.ErrNoRows}

	err := doDeactivation(context.Background(), tx, 42, 40,
		func(ctx context.Context, payoutSat int64) error {
			t.Fatal("payout sent without a bond")
			return nil
		})
	if !errors.Is(err, ErrNoUserBond) {
		t.Fatalf("err = %v, want ErrNoUserBond", err)
	}
}
