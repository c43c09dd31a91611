package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "expected exactly one %s migration", suffix)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestLedgerMigrationsCarryStoreLevelInvariants(t *testing.T) {
	checks := map[string][]string{
		"create_wallets": {
			"CONSTRAINT uq_wallets_user_tenant UNIQUE (user_id, tenant_id)",
			"CHECK (cash_balance >= 0)",
			"CHECK (grams >= 0)",
			"UNIQUE (wallet_id, commodity)",
		},
		"create_price_snapshots": {
			"UNIQUE (tenant_id, commodity, effective_day)",
		},
		"create_ledger_transactions": {
			"CONSTRAINT uq_ledger_transactions_type_ref UNIQUE (type, external_ref)",
			"ON ledger_transactions (booking_id) WHERE type = 'DEBIT'",
			"BEFORE UPDATE OR DELETE ON ledger_transactions",
		},
		"create_payment_orders": {
			"UNIQUE (gateway_order_id)",
		},
	}

	for file, subs := range checks {
		content := readMigration(t, file)
		for _, sub := range subs {
			assert.Truef(t, strings.Contains(content, sub), "%s missing %q", file, sub)
		}
	}
}

// Commodity values are validated by enums.Commodity; the schema stays open to new metals.
func TestMigrationsDoNotPinCommodityList(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, path := range matches {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContainsf(t, string(data), "commodity IN (", "%s pins the commodity list", filepath.Base(path))
	}
}

func TestCreateSQLMigrationWritesValidFile(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Refund Index!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_refund_index.sql"))
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestValidateDirRejectsBadMigrations(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_missing_down.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644))
	require.Error(t, ValidateDir(dir))

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, ValidateDir(dir))
}
