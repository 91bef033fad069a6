package database

import (
	"context"
	"testing"

	"github.com/biodoia/nutrillm/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UnsupportedType(t *testing.T) {
	_, err := New(&Config{Type: "mysql", Connection: "x"})
	assert.Error(t, err)
}

func TestNew_SQLiteMigrate(t *testing.T) {
	db, err := New(&Config{Type: "sqlite", Connection: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.AutoMigrate())
	require.NoError(t, db.Ping(context.Background()))

	assert.True(t, db.Migrator().HasTable("user_memory"))
	assert.True(t, db.Migrator().HasTable("profiles"))

	turn := models.ConversationTurn{ChatID: 1, UserID: 2, Topic: "nutrition", UserMessage: "привет"}
	require.NoError(t, db.Create(&turn).Error)
	assert.NotZero(t, turn.ID)
}
