package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cashrecon/internal/core"
	"cashrecon/internal/sources"
)

func (r *Repository) CreateStore(ctx context.Context, s core.Store) error {
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, r.rebind(`INSERT INTO stores (id, name, location) VALUES (?, ?, ?)`),
		s.ID, s.Name, s.Location)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("store %s: %w", s.ID, sources.ErrDuplicate)
		}
		return fmt.Errorf("create store: %w", err)
	}
	return nil
}

func (r *Repository) GetStore(ctx context.Context, id string) (core.Store, error) {
	var s core.Store
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT id, name, location FROM stores WHERE id = ?`), id).
		Scan(&s.ID, &s.Name, &s.Location)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Store{}, fmt.Errorf("store %s: %w", id, sources.ErrNotFound)
	}
	if err != nil {
		return core.Store{}, fmt.Errorf("get store: %w", err)
	}
	return s, nil
}

func (r *Repository) ListStores(ctx context.Context) ([]core.Store, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, location FROM stores ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	var out []core.Store
	for rows.Next() {
		var s core.Store
		if err := rows.Scan(&s.ID, &s.Name, &s.Location); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
