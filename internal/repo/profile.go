package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cogniview/internal/model"
)

type IProfile interface {
	Upsert(ctx context.Context, profile *model.Profile) error
	Get(ctx context.Context, id string) (*model.Profile, error)
}

type SqlProfile struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) IProfile {
	return &SqlProfile{db: db}
}

func (r *SqlProfile) Upsert(ctx context.Context, p *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO `profiles` (`id`, `email`, `name`, `role`, `company_name`, `created_at`) VALUES (?, ?, ?, ?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE `email` = VALUES(`email`), `name` = VALUES(`name`), `role` = VALUES(`role`), `company_name` = VALUES(`company_name`)",
		p.ID, p.Email, p.Name, string(p.Role), p.CompanyName, p.CreatedAt.UTC())
	if isDuplicate(err) {
		return fmt.Errorf("email %s: %w", p.Email, ErrDuplicate)
	}
	return err
}

func (r *SqlProfile) Get(ctx context.Context, id string) (*model.Profile, error) {
	var (
		p    model.Profile
		role string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT `id`, `email`, `name`, `role`, `company_name`, `created_at` FROM `profiles` WHERE `id` = ?", id).
		Scan(&p.ID, &p.Email, &p.Name, &role, &p.CompanyName, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	p.Role = model.Role(role)
	return &p, nil
}
