package persistence

import (
	"errors"
	"strconv"

	"github.com/erp/wooerp/internal/domain/shared"
	"gorm.io/gorm"
)

// translateError maps GORM errors to domain errors. resource and key name
// the record for the error message.
func translateError(err error, resource, key string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.NewNotFoundError(resource, key)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.NewConflictError(resource, key)
	default:
		return err
	}
}

// requireAffected returns a not-found error when an update touched no row
func requireAffected(result *gorm.DB, resource, key string) error {
	if result.Error != nil {
		return translateError(result.Error, resource, key)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError(resource, key)
	}
	return nil
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
