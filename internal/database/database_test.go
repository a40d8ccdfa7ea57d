package database

import (
	"strings"
	"testing"

	"ctfarena/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool_SQLiteSingleConnection(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		runSQL   bool
		runAuto  bool
		expectOK bool
	}{
		{"hybrid dev runs both", config.Config{Env: "development"}, true, true, true},
		{"hybrid prod runs sql only", config.Config{Env: "production", DBSchemaMode: "hybrid"}, true, false, true},
		{"sql only", config.Config{Env: "development", DBSchemaMode: "sql"}, true, false, true},
		{"auto in prod refused", config.Config{Env: "production", DBSchemaMode: "auto"}, false, false, false},
		{"auto in prod allowed explicitly", config.Config{Env: "production", DBSchemaMode: "auto", DBAutoMigrateAllowDestructive: true}, false, true, true},
		{"unknown mode", config.Config{Env: "development", DBSchemaMode: "yolo"}, false, false, false},
		{"sqlite always auto", config.Config{Env: "development", DBDriver: "sqlite", DBSchemaMode: "sql"}, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&tt.cfg)
			if !tt.expectOK {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.runSQL, runSQL)
			assert.Equal(t, tt.runAuto, runAuto)
		})
	}
}

func TestRegisteredMigrations(t *testing.T) {
	migs := GetMigrations()
	require.NotEmpty(t, migs)
	assert.Equal(t, 1, migs[0].Version)
	assert.Equal(t, "000001_init", migs[0].String())
	assert.True(t, strings.Contains(migs[0].UpScript, "idx_solves_user_challenge"))
	assert.True(t, strings.Contains(migs[0].UpScript, "idx_upvotes_user_post"))
	assert.NotEmpty(t, migs[0].DownScript)
	assert.NotNil(t, GetMigrationByVersion(1))
	assert.Nil(t, GetMigrationByVersion(999))
}

func TestValidateAppliedVersions(t *testing.T) {
	assert.NoError(t, validateAppliedVersions(nil, GetMigrations()))
	assert.NoError(t, validateAppliedVersions([]int{1}, GetMigrations()))
	assert.ErrorContains(t, validateAppliedVersions([]int{1, 42}, GetMigrations()), "000042")
}

func TestApplySchema_SQLiteAutoMigrate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{Env: "test", DBDriver: "sqlite"}
	require.NoError(t, ApplySchema(t.Context(), db, cfg))

	for _, table := range []string{"users", "challenges", "solves", "flag_attempts", "submissions", "posts", "comments", "upvotes"} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}
	assert.True(t, db.Migrator().HasIndex("solves", "idx_solves_user_challenge"))
	assert.False(t, db.Migrator().HasColumn("challenges", "solve_count"))
}

func TestAppliedVersions_FreshDatabase(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	applied, err := appliedVersions(t.Context(), db)
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Len(t, pendingMigrations(applied), len(GetMigrations()))

	require.NoError(t, db.AutoMigrate(&appliedMigration{}))
	require.NoError(t, db.Create(&appliedMigration{Version: 1, Name: "init"}).Error)
	applied, err = appliedVersions(t.Context(), db)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)
	assert.Empty(t, pendingMigrations(applied))
}
