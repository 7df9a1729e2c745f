package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pos-backend/internal/db"
)

// Setting is one named JSON configuration value, e.g. a button-layout book.
type Setting struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// SettingsService stores free-form per-tenant configuration documents.
type SettingsService interface {
	Get(ctx context.Context, name string) (*Setting, error)
	Put(ctx context.Context, setting Setting) error
	List(ctx context.Context) ([]Setting, error)
	Delete(ctx context.Context, name string) error
}

type settingsService struct {
	tdb *db.TenantDB
}

func NewSettingsService(tdb *db.TenantDB) SettingsService {
	return &settingsService{tdb: tdb}
}

func (s *settingsService) Get(ctx context.Context, name string) (*Setting, error) {
	st := &Setting{}
	err := s.tdb.Pool().QueryRow(ctx, fmt.Sprintf(
		"SELECT name, value FROM %s WHERE name = $1", s.tdb.T("settings")), name).Scan(&st.Name, &st.Value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrValidation.Withf("setting %s not found", name)
		}
		return nil, fmt.Errorf("failed to fetch setting %s: %w", name, err)
	}
	return st, nil
}

func (s *settingsService) Put(ctx context.Context, setting Setting) error {
	if setting.Name == "" {
		return ErrValidation.Withf("setting name is required")
	}
	value := setting.Value
	if len(value) == 0 {
		value = json.RawMessage("{}")
	}
	_, err := s.tdb.Pool().Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, s.tdb.T("settings")), setting.Name, value)
	if err != nil {
		return fmt.Errorf("failed to store setting %s: %w", setting.Name, err)
	}
	return nil
}

func (s *settingsService) List(ctx context.Context) ([]Setting, error) {
	rows, err := s.tdb.Pool().Query(ctx, fmt.Sprintf(
		"SELECT name, value FROM %s ORDER BY name", s.tdb.T("settings")))
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var st Setting
		if err := rows.Scan(&st.Name, &st.Value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings = append(settings, st)
	}
	return settings, nil
}

func (s *settingsService) Delete(ctx context.Context, name string) error {
	tag, err := s.tdb.Pool().Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE name = $1", s.tdb.T("settings")), name)
	if err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeleteMiss.Withf("settings/%s", name)
	}
	return nil
}
