package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMySQLDSN(t *testing.T) {
	got, err := normalizeMySQLDSN(
		"jdbc:mysql://127.0.0.1:3306/library?useSSL=false&serverTimezone=UTC&characterEncoding=utf8",
		"root", "secret",
	)
	require.NoError(t, err)
	assert.Contains(t, got, "root:secret@tcp(127.0.0.1:3306)/library?")
	assert.NotContains(t, got, "tls=")
	assert.Contains(t, got, "parseTime=true")
	assert.Contains(t, got, "charset=utf8")
	assert.NotContains(t, got, "utf8mb4")

	got, err = normalizeMySQLDSN("mysql://app:pw@db:3306/library?useSSL=true", "", "")
	require.NoError(t, err)
	assert.Contains(t, got, "app:pw@tcp(db:3306)/library?")
	assert.Contains(t, got, "tls=true")
	assert.Contains(t, got, "charset=utf8mb4")

	got, err = normalizeMySQLDSN("u:p@tcp(db:3306)/library", "", "override")
	require.NoError(t, err)
	assert.Contains(t, got, "u:override@tcp(db:3306)/library?")
	assert.Contains(t, got, "parseTime=true")

	_, err = normalizeMySQLDSN("mysql://db/library?serverTimezone=Not/AZone", "", "")
	assert.Error(t, err)
}

func TestNormalizeSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:a.db?_busy_timeout=5000&_foreign_keys=1", normalizeSQLiteDSN("file:a.db"))
	assert.Equal(t, "file:a.db?cache=shared&_busy_timeout=5000&_foreign_keys=1", normalizeSQLiteDSN("file:a.db?cache=shared"))
	assert.Equal(t, "file:a.db?_busy_timeout=1&_foreign_keys=0", normalizeSQLiteDSN("file:a.db?_busy_timeout=1&_foreign_keys=0"))
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "root:****@tcp(h)/db", maskDSN("root:secret@tcp(h)/db"))
	assert.Equal(t, "host=db", maskDSN("host=db"))
}

func TestNewGormSQLite(t *testing.T) {
	db, err := NewGorm(Opts{Driver: "sqlite", DSN: "file:" + filepath.Join(t.TempDir(), "t.db"), LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)

	var fk int
	require.NoError(t, db.Raw("PRAGMA foreign_keys").Scan(&fk).Error)
	assert.Equal(t, 1, fk)
}

func TestNewGormUnsupported(t *testing.T) {
	_, err := NewGorm(Opts{Driver: "oracle"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}
