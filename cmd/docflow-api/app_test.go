package main

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAppCloseReleasesPartialSetup(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	a := &app{logger: zap.NewNop(), db: sqlx.NewDb(sqlDB, "sqlmock"), redis: client}

	assert.NotPanics(t, a.Close)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.ErrorIs(t, client.Ping(context.Background()).Err(), redis.ErrClosed)
}

func TestAppCloseOnEmptyApp(t *testing.T) {
	assert.NotPanics(t, (&app{}).Close)
}
