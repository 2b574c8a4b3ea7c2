package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentacar/internal/domain"
	"rentacar/internal/models"

	"github.com/mattn/go-sqlite3"
)

func (db *DB) GetFavoritesByUserID(ctx context.Context, userID int64) ([]*models.Favorite, error) {
	query := `SELECT f.id, f.user_id, f.car_id, f.created_at, ` + prefixColumns("c.", carColumns) + `
              FROM favorites f
              JOIN cars c ON c.id = f.car_id
              WHERE f.user_id = ?
              ORDER BY f.created_at DESC, f.id DESC`
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get favorites: %w", err)
	}
	defer rows.Close()

	favorites := []*models.Favorite{}
	for rows.Next() {
		var f models.Favorite
		car, err := scanCar(prefixedScanner{rows, []any{&f.ID, &f.UserID, &f.CarID, &f.CreatedAt}})
		if err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		f.Car = car
		favorites = append(favorites, &f)
	}
	return favorites, rows.Err()
}

// ToggleFavorite decides membership from the stored row inside one transaction.
func (db *DB) ToggleFavorite(ctx context.Context, userID, carID int64) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM favorites WHERE user_id = ? AND car_id = ?`, userID, carID).Scan(&id)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `DELETE FROM favorites WHERE id = ?`, id); err != nil {
			return false, fmt.Errorf("failed to remove favorite: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit favorite: %w", err)
		}
		return false, nil
	case errors.Is(err, sql.ErrNoRows):
		_, err := tx.ExecContext(ctx, `INSERT INTO favorites (user_id, car_id, created_at) VALUES (?, ?, ?)`,
			userID, carID, time.Now().UTC())
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return false, domain.NotFound("car %d not found", carID)
		}
		if err != nil {
			return false, fmt.Errorf("failed to add favorite: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit favorite: %w", err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("failed to read favorite: %w", err)
	}
}

func (db *DB) IsFavorite(ctx context.Context, userID, carID int64) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM favorites WHERE user_id = ? AND car_id = ?`, userID, carID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return n > 0, nil
}

func prefixColumns(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// prefixedScanner prepends head to the destinations of every Scan.
type prefixedScanner struct {
	row  rowScanner
	head []any
}

func (p prefixedScanner) Scan(dest ...any) error {
	return p.row.Scan(append(append([]any{}, p.head...), dest...)...)
}
