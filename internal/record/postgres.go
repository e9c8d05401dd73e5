package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PostgresStore is the durable Store implementation. Cascade delete of
// interactions and strategies is enforced by foreign keys, not Go code.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const opportunityColumns = `id, name, email, status, value, owner_id, created_at, updated_at`

func scanOpportunity(row interface{ Scan(...any) error }) (Opportunity, error) {
	var opp Opportunity
	err := row.Scan(&opp.ID, &opp.Name, &opp.Email, &opp.Status, &opp.Value, &opp.OwnerID, &opp.CreatedAt, &opp.UpdatedAt)
	return opp, err
}

func (s *PostgresStore) ListOpportunities(ctx context.Context, ownerID string) ([]Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities`
	args := []any{}
	if ownerID != "" {
		query += ` WHERE owner_id = $1`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	defer rows.Close()

	var out []Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		out = append(out, opp)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetOpportunity(ctx context.Context, id, ownerID string) (Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE id = $1`
	args := []any{id}
	if ownerID != "" {
		query += ` AND owner_id = $2`
		args = append(args, ownerID)
	}
	opp, err := scanOpportunity(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Opportunity{}, ErrNotFound
	}
	if err != nil {
		return Opportunity{}, fmt.Errorf("get opportunity: %w", err)
	}
	return opp, nil
}

func (s *PostgresStore) CreateOpportunity(ctx context.Context, opp Opportunity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO opportunities (id, name, email, status, value, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, opp.ID, opp.Name, opp.Email, opp.Status, opp.Value, opp.OwnerID, opp.CreatedAt, opp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateOpportunity(ctx context.Context, id, ownerID string, patch OpportunityPatch) (Opportunity, error) {
	sets := []string{}
	args := []any{}
	idx := 1
	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.Value != nil {
		add("value", *patch.Value)
	}
	// GREATEST keeps updated_at strictly increasing even under clock skew
	sets = append(sets, "updated_at = GREATEST(NOW(), updated_at + interval '1 microsecond')")

	query := `UPDATE opportunities SET ` + strings.Join(sets, ", ") + fmt.Sprintf(` WHERE id = $%d`, idx)
	args = append(args, id)
	idx++
	if ownerID != "" {
		query += fmt.Sprintf(` AND owner_id = $%d`, idx)
		args = append(args, ownerID)
	}
	query += ` RETURNING ` + opportunityColumns

	opp, err := scanOpportunity(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Opportunity{}, ErrNotFound
	}
	if err != nil {
		return Opportunity{}, fmt.Errorf("update opportunity: %w", err)
	}
	return opp, nil
}

func (s *PostgresStore) DeleteOpportunity(ctx context.Context, id, ownerID string) error {
	query := `DELETE FROM opportunities WHERE id = $1`
	args := []any{id}
	if ownerID != "" {
		query += ` AND owner_id = $2`
		args = append(args, ownerID)
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete opportunity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete opportunity rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListInteractions(ctx context.Context, opportunityID string) ([]Interaction, error) {
	query := `SELECT id, opportunity_id, type, notes, created_at FROM interactions`
	args := []any{}
	if opportunityID != "" {
		query += ` WHERE opportunity_id = $1`
		args = append(args, opportunityID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var interaction Interaction
		if err := rows.Scan(&interaction.ID, &interaction.OpportunityID, &interaction.Type, &interaction.Notes, &interaction.Timestamp); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, interaction)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateInteraction(ctx context.Context, interaction Interaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, opportunity_id, type, notes, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, interaction.ID, interaction.OpportunityID, interaction.Type, interaction.Notes, interaction.Timestamp)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetInteraction(ctx context.Context, id string) (Interaction, error) {
	var interaction Interaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, opportunity_id, type, notes, created_at FROM interactions WHERE id = $1
	`, id).Scan(&interaction.ID, &interaction.OpportunityID, &interaction.Type, &interaction.Notes, &interaction.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return Interaction{}, ErrNotFound
	}
	if err != nil {
		return Interaction{}, fmt.Errorf("get interaction: %w", err)
	}
	return interaction, nil
}

func (s *PostgresStore) DeleteInteraction(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM interactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete interaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete interaction rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveStrategy(ctx context.Context, result StrategyResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO strategies (opportunity_id, summary, next_step, sentiment, tactical_advice, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (opportunity_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			next_step = EXCLUDED.next_step,
			sentiment = EXCLUDED.sentiment,
			tactical_advice = EXCLUDED.tactical_advice,
			created_at = EXCLUDED.created_at
	`, result.OpportunityID, result.Summary, result.NextStep, result.Sentiment, result.TacticalAdvice, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("save strategy: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestStrategy(ctx context.Context, opportunityID string) (StrategyResult, error) {
	var result StrategyResult
	err := s.db.QueryRowContext(ctx, `
		SELECT opportunity_id, summary, next_step, sentiment, tactical_advice, created_at
		FROM strategies WHERE opportunity_id = $1
	`, opportunityID).Scan(&result.OpportunityID, &result.Summary, &result.NextStep, &result.Sentiment, &result.TacticalAdvice, &result.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StrategyResult{}, ErrNotFound
	}
	if err != nil {
		return StrategyResult{}, fmt.Errorf("latest strategy: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) UpsertUserProfile(ctx context.Context, profile UserProfile) (UserProfile, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO user_profiles (id, email, full_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, full_name = EXCLUDED.full_name
		RETURNING id, email, full_name, created_at
	`, profile.ID, profile.Email, profile.FullName).Scan(&profile.ID, &profile.Email, &profile.FullName, &profile.CreatedAt)
	if err != nil {
		return UserProfile{}, fmt.Errorf("upsert user profile: %w", err)
	}
	return profile, nil
}

func (s *PostgresStore) GetUserProfile(ctx context.Context, id string) (UserProfile, error) {
	var profile UserProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, created_at FROM user_profiles WHERE id = $1
	`, id).Scan(&profile.ID, &profile.Email, &profile.FullName, &profile.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return UserProfile{}, ErrNotFound
	}
	if err != nil {
		return UserProfile{}, fmt.Errorf("get user profile: %w", err)
	}
	return profile, nil
}

func (s *PostgresStore) SearchOpportunities(ctx context.Context, ownerID, query string, limit int) ([]Opportunity, error) {
	sqlQuery := `SELECT ` + opportunityColumns + ` FROM opportunities
		WHERE (name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')`
	args := []any{query}
	idx := 2
	if ownerID != "" {
		sqlQuery += fmt.Sprintf(` AND owner_id = $%d`, idx)
		args = append(args, ownerID)
		idx++
	}
	sqlQuery += fmt.Sprintf(` ORDER BY updated_at DESC LIMIT $%d`, idx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search opportunities: %w", err)
	}
	defer rows.Close()

	var out []Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		out = append(out, opp)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
