package postgres

import (
	"errors"
	"fmt"
	"time"

	"daily-quiz-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// dateParam turns a Day into the value bound to DATE columns.
func dateParam(day domain.Day) (time.Time, error) {
	t, err := day.Start(time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", day, err)
	}
	return t, nil
}

func dayFromDate(t time.Time) domain.Day {
	return domain.DayOf(t.UTC())
}
