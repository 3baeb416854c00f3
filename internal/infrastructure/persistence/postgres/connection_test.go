package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/taskloop/taskloop/internal/domain"
)

func TestIsUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "connection failure", err: &pgconn.PgError{Code: "08006"}, want: true},
		{name: "connection does not exist", err: &pgconn.PgError{Code: "08003"}, want: true},
		{name: "cannot connect now", err: &pgconn.PgError{Code: "57P03"}, want: true},
		{name: "too many connections", err: &pgconn.PgError{Code: "53300"}, want: true},
		{name: "wrapped connection failure", err: fmt.Errorf("query: %w", &pgconn.PgError{Code: "08001"}), want: true},
		{name: "network error", err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}, want: true},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "invalid text representation", err: &pgconn.PgError{Code: "22P02"}, want: false},
		{name: "no rows", err: pgx.ErrNoRows, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUnavailable(tt.err))
		})
	}
}

func TestDBErr(t *testing.T) {
	t.Run("transient failures carry ErrUnavailable", func(t *testing.T) {
		cause := &pgconn.PgError{Code: "08006"}
		err := dbErr(cause, "failed to list tasks")
		assert.ErrorIs(t, err, domain.ErrUnavailable)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "failed to list tasks")
	})

	t.Run("other failures stay plain", func(t *testing.T) {
		cause := errors.New("syntax error")
		err := dbErr(cause, "failed to list tasks")
		assert.NotErrorIs(t, err, domain.ErrUnavailable)
		assert.ErrorIs(t, err, cause)
	})
}
