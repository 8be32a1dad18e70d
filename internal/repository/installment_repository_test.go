package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: agreementSequenceIndex}

	assert.True(t, isUniqueViolation(dup, agreementSequenceIndex))
	assert.True(t, isUniqueViolation(fmt.Errorf("create: %w", dup), agreementSequenceIndex))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "other"}, agreementSequenceIndex))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503", ConstraintName: agreementSequenceIndex}, agreementSequenceIndex))
	assert.False(t, isUniqueViolation(errors.New("boom"), agreementSequenceIndex))
	assert.False(t, isUniqueViolation(nil, agreementSequenceIndex))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(gorm.ErrRecordNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("find: %w", gorm.ErrRecordNotFound)))
	assert.False(t, IsNotFound(errors.New("boom")))
}
