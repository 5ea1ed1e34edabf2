package storage

import (
	"context"
	"fmt"

	"github.com/cuongbtq/promptcraft/internal/domain"
)

// GetSetting returns the stored value for key
func (s *Storage) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	if err := s.db.GetContext(ctx, &value, s.q(`SELECT value FROM settings WHERE key = ?`), key); err != nil {
		if isNoRows(err) {
			return "", domain.ErrSettingNotFound
		}
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

// SetSetting inserts or replaces the value for key
func (s *Storage) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, s.q(query), key, value, s.now()); err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

// ListSettings returns every stored key and value
func (s *Storage) ListSettings(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT key, value FROM settings ORDER BY key`); err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}

	settings := make(map[string]string, len(rows))
	for _, row := range rows {
		settings[row.Key] = row.Value
	}
	return settings, nil
}
