package postgres

import (
	"context"
	"fmt"

	"github.com/planboard/planboard-core/internal/domain/member"
)

// MemberRepository implements member.Source for PostgreSQL.
type MemberRepository struct {
	db Querier
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(db Querier) *MemberRepository {
	return &MemberRepository{db: db}
}

// Members returns all active members.
func (r *MemberRepository) Members(ctx context.Context) ([]member.Member, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, email FROM members WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	members := []member.Member{}
	for rows.Next() {
		var m member.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// Save inserts or updates a member.
func (r *MemberRepository) Save(ctx context.Context, m member.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO members (id, name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			active = TRUE,
			updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, m.ID, m.Name, m.Email); err != nil {
		return fmt.Errorf("failed to save member %s: %w", m.ID, err)
	}
	return nil
}

// Deactivate hides a member from the roster without deleting references.
func (r *MemberRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE members SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate member %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}
