package proof

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/greengig/greengig/internal/database"
	"github.com/greengig/greengig/internal/travel"
)

const proofColumns = `
	proof_id, user_id, concert_id, travel_mode, origin_lat, origin_lng,
	distance_km, emissions_kg_co2, proof_image_ref, proof_description, status,
	ai_analysis, points_earned, is_green_travel, reviewed_by, review_notes, reviewed_at,
	created_at`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db database.Querier
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a repository over a pool or a transaction.
func NewPostgresRepository(db database.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get retrieves a proof by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*TravelProof, error) {
	return r.get(ctx, `SELECT `+proofColumns+` FROM travel_proofs WHERE proof_id = $1`, id)
}

// GetForUpdate retrieves a proof and locks its row for the surrounding transaction.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*TravelProof, error) {
	return r.get(ctx, `SELECT `+proofColumns+` FROM travel_proofs WHERE proof_id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) get(ctx context.Context, query, id string) (*TravelProof, error) {
	p, err := scanProof(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProofNotFound
		}
		return nil, fmt.Errorf("query travel proof: %w", err)
	}
	return p, nil
}

// ListByUser returns a user's proofs, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, status Status) ([]*TravelProof, error) {
	query := `SELECT ` + proofColumns + ` FROM travel_proofs WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, proof_id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list travel proofs: %w", err)
	}
	defer rows.Close()

	var out []*TravelProof
	for rows.Next() {
		p, err := scanProof(rows)
		if err != nil {
			return nil, fmt.Errorf("scan travel proof: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate travel proofs: %w", err)
	}
	return out, nil
}

// Stats summarizes proofs that carry an AI analysis.
func (r *PostgresRepository) Stats(ctx context.Context) (Stats, error) {
	var (
		total, approved, matches int
		confidenceSum            float64
	)
	err := r.db.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'auto_approved'),
			count(*) FILTER (WHERE travel_mode = ai_analysis->>'detectedTravelMode'),
			COALESCE(sum((ai_analysis->>'overallConfidence')::double precision), 0)
		FROM travel_proofs
		WHERE ai_analysis IS NOT NULL`).Scan(&total, &approved, &matches, &confidenceSum)
	if err != nil {
		return Stats{}, fmt.Errorf("query travel proof stats: %w", err)
	}
	return NewStats(total, approved, matches, confidenceSum), nil
}

// Insert stores a new proof.
func (r *PostgresRepository) Insert(ctx context.Context, p *TravelProof) error {
	analysis, err := marshalAnalysis(p.AIAnalysis)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO travel_proofs (`+proofColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NULL, NULL, NULL, $15)`,
		p.ID, p.UserID, p.ConcertID, string(p.TravelMode), p.Origin.Lat, p.Origin.Lng,
		p.DistanceKm, p.EmissionsKgCO2, p.ProofImageRef, p.ProofDescription, string(p.Status),
		analysis, p.PointsEarned, p.IsGreenTravel, p.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrProofExists
		}
		return fmt.Errorf("insert travel proof: %w", err)
	}
	return nil
}

// UpdateReview persists a status transition. The WHERE clause keeps the
// transition single-shot even without a prior row lock.
func (r *PostgresRepository) UpdateReview(ctx context.Context, p *TravelProof) error {
	if p.Review == nil {
		return errors.New("review is required")
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE travel_proofs
		SET status = $2, reviewed_by = $3, review_notes = $4, reviewed_at = $5
		WHERE proof_id = $1 AND status = 'pending'`,
		p.ID, string(p.Status), p.Review.ReviewerID, p.Review.Notes, p.Review.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("update travel proof review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func marshalAnalysis(a *AIAnalysis) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode ai analysis: %w", err)
	}
	return b, nil
}

func scanProof(row pgx.Row) (*TravelProof, error) {
	var (
		p          TravelProof
		mode       string
		status     string
		analysis   []byte
		reviewedBy *string
		notes      *string
		reviewedAt *time.Time
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.ConcertID, &mode, &p.Origin.Lat, &p.Origin.Lng,
		&p.DistanceKm, &p.EmissionsKgCO2, &p.ProofImageRef, &p.ProofDescription, &status,
		&analysis, &p.PointsEarned, &p.IsGreenTravel, &reviewedBy, &notes, &reviewedAt,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.TravelMode = travel.Mode(mode)
	p.Status = Status(status)
	if len(analysis) > 0 {
		var a AIAnalysis
		if err := json.Unmarshal(analysis, &a); err != nil {
			return nil, fmt.Errorf("decode ai analysis: %w", err)
		}
		p.AIAnalysis = &a
	}
	if reviewedAt != nil {
		p.Review = &Review{ReviewedAt: *reviewedAt}
		if reviewedBy != nil {
			p.Review.ReviewerID = *reviewedBy
		}
		if notes != nil {
			p.Review.Notes = *notes
		}
	}
	return &p, nil
}
