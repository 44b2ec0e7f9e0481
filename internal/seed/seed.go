package seed

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// CreateDefaultData creates a demo organization, program and live activity if
// they don't exist, so a fresh install has something to issue access against.
func CreateDefaultData(ctx context.Context, dbPool *pgxpool.Pool, lgr zerolog.Logger) error {
	lgr.Info().Msg("Checking/Creating default data (Organization/Program/Activity)...")
	var finalErr error

	orgID, err := ensureOrganization(ctx, dbPool, "Demo Organization")
	if err != nil {
		lgr.Error().Err(err).Msg("Error creating demo organization")
		return errors.Join(finalErr, err)
	}

	programID, err := ensureProgram(ctx, dbPool, orgID, "Demo Program")
	if err != nil {
		lgr.Error().Err(err).Msg("Error creating demo program")
		return errors.Join(finalErr, err)
	}

	if err := ensureActivity(ctx, dbPool, programID, "Demo Survey", "live"); err != nil {
		lgr.Error().Err(err).Msg("Error creating demo activity")
		finalErr = errors.Join(finalErr, err)
	}

	if finalErr == nil {
		lgr.Info().Msg("Default data check/creation complete.")
	}
	return finalErr
}

func ensureOrganization(ctx context.Context, dbPool *pgxpool.Pool, name string) (int64, error) {
	var id int64
	err := dbPool.QueryRow(ctx, "SELECT id FROM organizations WHERE name = $1", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	err = dbPool.QueryRow(ctx, "INSERT INTO organizations (name) VALUES ($1) RETURNING id", name).Scan(&id)
	return id, err
}

func ensureProgram(ctx context.Context, dbPool *pgxpool.Pool, orgID int64, name string) (int64, error) {
	var id int64
	err := dbPool.QueryRow(ctx,
		"SELECT id FROM programs WHERE organization_id = $1 AND name = $2", orgID, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	err = dbPool.QueryRow(ctx,
		"INSERT INTO programs (organization_id, name) VALUES ($1, $2) RETURNING id", orgID, name).Scan(&id)
	return id, err
}

func ensureActivity(ctx context.Context, dbPool *pgxpool.Pool, programID int64, title, status string) error {
	var id int64
	err := dbPool.QueryRow(ctx,
		"SELECT id FROM activities WHERE program_id = $1 AND title = $2", programID, title).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	_, err = dbPool.Exec(ctx,
		"INSERT INTO activities (program_id, title, status) VALUES ($1, $2, $3)", programID, title, status)
	return err
}
