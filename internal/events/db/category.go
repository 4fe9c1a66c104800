package db

import (
	"context"
	"time"

	"ms-events/internal/models"
)

// ListCategories → all seeded categories ordered by name
func (d *DB) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := d.Bun.NewSelect().
		Model(&categories).
		Order("name").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// CountUpcomingByCategory counts active events starting at or after now,
// keyed by category name. Events without a category are not counted.
func (d *DB) CountUpcomingByCategory(ctx context.Context, now time.Time) (map[string]int, error) {
	var rows []struct {
		Category string `bun:"category"`
		Count    int    `bun:"count"`
	}
	err := d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		ColumnExpr("?TableAlias.category AS category").
		ColumnExpr("COUNT(*) AS count").
		Where("?TableAlias.status = ?", models.EventStatusActive).
		Where("?TableAlias.event_date >= ?", now).
		Where("?TableAlias.category IS NOT NULL").
		GroupExpr("?TableAlias.category").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Category] = r.Count
	}
	return counts, nil
}
