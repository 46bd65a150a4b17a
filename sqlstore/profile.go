package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/creastat/convstore"
	"github.com/creastat/convstore/session"
)

// GetProfile implements session.ProfileSource. Unknown users get an empty profile.
func (s *Store) GetProfile(ctx context.Context, handle string) (convstore.Profile, error) {
	query := `SELECT skill_level, goal, interest_tags FROM user_profile WHERE handle = ` + s.placeholder(1)

	var (
		p    convstore.Profile
		tags string
	)
	err := s.db.QueryRowContext(ctx, query, handle).Scan(&p.SkillLevel, &p.Goal, &tags)
	if errors.Is(err, sql.ErrNoRows) {
		return convstore.Profile{}, nil
	}
	if err != nil {
		return convstore.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	p.InterestTags = splitTags(tags)
	return p, nil
}

// UpsertProfile stores a user's profile.
func (s *Store) UpsertProfile(ctx context.Context, handle string, p convstore.Profile) error {
	stmt := fmt.Sprintf(`INSERT INTO user_profile (handle, skill_level, goal, interest_tags)
	         VALUES (%s, %s, %s, %s)
	         ON CONFLICT (handle) DO UPDATE SET
	           skill_level = excluded.skill_level,
	           goal = excluded.goal,
	           interest_tags = excluded.interest_tags`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4))
	if _, err := s.db.ExecContext(ctx, stmt, handle, p.SkillLevel, p.Goal, strings.Join(p.InterestTags, ",")); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

var _ session.ProfileSource = (*Store)(nil)
