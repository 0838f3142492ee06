package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"mentor-chat-service/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository abstracts account lookups.
type ProfileRepository interface {
	GetProfile(ctx context.Context, profileID string) (models.Profile, error)
	UpsertProfile(ctx context.Context, email, displayName, role string) (models.Profile, error)
}

// ProfileRepo is a sqlx implementation of ProfileRepository.
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// GetProfile fetches a profile by id.
func (r *ProfileRepo) GetProfile(ctx context.Context, profileID string) (models.Profile, error) {
	var profile models.Profile
	err := r.db.GetContext(ctx, &profile, `SELECT id, email, display_name, role, created_at
        FROM profiles WHERE id=$1`, profileID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	return profile, err
}

// UpsertProfile creates or refreshes a profile keyed by email.
func (r *ProfileRepo) UpsertProfile(ctx context.Context, email, displayName, role string) (models.Profile, error) {
	var profile models.Profile
	err := r.db.QueryRowxContext(ctx, `INSERT INTO profiles (email, display_name, role)
        VALUES ($1, $2, $3)
        ON CONFLICT (email) DO UPDATE SET display_name = EXCLUDED.display_name, role = EXCLUDED.role
        RETURNING id, email, display_name, role, created_at`,
		email, displayName, role).
		StructScan(&profile)
	return profile, err
}
