package invoicing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/infrastructure/batch"
	"github.com/eyc/invoicing/internal/infrastructure/telemetry"
)

// SeedResult reports what SeedMembers wrote.
type SeedResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// SeedMembers adds roster members to the Membership table. Members whose
// name is already present are skipped, so loading the same roster twice is
// harmless. Open invoice links in the roster are ignored.
func (s *Service) SeedMembers(ctx context.Context, roster []*membership.Member) (*SeedResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "seed_members")
	defer span.End()

	existing, err := s.store.Members().ListAll(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("list members: %w", err)
	}
	names := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		names[m.Name] = struct{}{}
	}

	result := &SeedResult{}
	toCreate := make([]*membership.Member, 0, len(roster))
	for _, m := range roster {
		if _, ok := names[m.Name]; ok {
			result.Skipped++
			continue
		}
		names[m.Name] = struct{}{}
		m.OpenInvoice = nil
		toCreate = append(toCreate, m)
	}

	if err := batch.CreateMany(ctx, s.exec, s.store.Members(), toCreate); err != nil {
		s.metrics.RunFailed(ctx, "seed_members")
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("create members: %w", err)
	}
	result.Created = len(toCreate)

	s.logger.Info("Roster seeded",
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}
