package postgres

import (
	"github.com/fastygo/catalog-sync/repository"
)

func nullString(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return repository.DefaultPageSize
	}
	return limit
}
