package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrDuplicate  = errors.New("record already exists")
	ErrForeignKey = errors.New("referenced record does not exist")
	// ErrStale is returned when a conditional update matched no row because
	// another writer changed it first.
	ErrStale = errors.New("record was modified concurrently")

	ErrAlreadyDisbursed   = errors.New("already disbursed")
	ErrNotDisbursed       = errors.New("loan account not disbursed")
	ErrExceedsOutstanding = errors.New("amount exceeds outstanding principal")
)

// translate maps gorm errors (TranslateError is on) to repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrForeignKey
	}
	return err
}
