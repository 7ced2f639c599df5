package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// 对外的错误分类，controller 层据此映射状态码
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrStoreFailure = errors.New("store failure")

	ErrAlreadyBorrowed = fmt.Errorf("%w: item already borrowed", ErrConflict)
	ErrItemOnLoan      = fmt.Errorf("%w: item is currently on loan", ErrConflict)
	ErrEmailTaken      = fmt.Errorf("%w: email already registered", ErrConflict)
)

// StoreError wraps an underlying persistence error. It matches ErrStoreFailure
// with errors.Is and unwraps to the driver error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreFailure }

// Postgres: serialization_failure / deadlock_detected
const (
	sqlStateSerialization = "40001"
	sqlStateDeadlock      = "40P01"
)

// classify 把 gorm / 驱动错误归到上面的分类里；已分类的错误原样返回
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict),
		errors.Is(err, ErrUnauthorized), errors.Is(err, ErrStoreFailure):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s", ErrConflict, op)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &StoreError{Op: op, Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == sqlStateSerialization || pgErr.Code == sqlStateDeadlock {
			return fmt.Errorf("%w: %s aborted (%s)", ErrConflict, op, pgErr.Code)
		}
	}
	return &StoreError{Op: op, Err: err}
}
