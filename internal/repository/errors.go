package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when an insert or update violates a unique index.
var ErrDuplicate = errors.New("duplicate record")

const pqUniqueViolation = "23505"

// translateWriteErr maps unique violations to ErrDuplicate, keeping the
// constraint name for diagnostics.
func translateWriteErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%s: %w (%s)", op, ErrDuplicate, pqErr.Constraint)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func normalisePage(page, size int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size, (page - 1) * size
}
