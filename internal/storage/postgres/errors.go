package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Код unique_violation из перечня ошибок PostgreSQL.
const pgCodeUniqueViolation = "23505"

// isUniqueViolation распознаёт нарушение уникального ограничения,
// чтобы репозитории могли отличить конфликт ключа от прочих ошибок БД.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCodeUniqueViolation
}
