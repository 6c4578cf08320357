package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/persistence"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/repository/memory"
)

type stores struct {
	tickets   repository.TicketRepository
	staff     repository.StaffRepository
	residents repository.ResidentRepository
}

// buildStores picks postgres when configured and falls back to in-memory stores,
// seeded with demo accounts outside production.
func buildStores(ctx context.Context, pg *persistence.Postgres, app config.AppConfig, logger *zap.Logger) (stores, error) {
	if pg.Enabled() {
		return stores{
			tickets:   repository.NewTicketRepository(pg.Pool),
			staff:     repository.NewStaffRepository(pg.Pool),
			residents: repository.NewResidentRepository(pg.Pool),
		}, nil
	}

	s := stores{
		tickets:   memory.NewTicketRepository(),
		staff:     memory.NewStaffRepository(),
		residents: memory.NewResidentRepository(),
	}
	if app.IsProduction() {
		return s, nil
	}

	now := time.Now().UTC()
	seedStaff := []domain.StaffMember{
		{ID: "admin-demo", Name: "Demo Admin", Email: "admin@example.com", Role: domain.RoleAdmin, Active: true, CreatedAt: now},
		{ID: "staff-demo", Name: "Demo Staff", Email: "staff@example.com", Role: domain.RoleStaff, Active: true, CreatedAt: now},
	}
	for i := range seedStaff {
		if err := s.staff.Create(ctx, &seedStaff[i]); err != nil {
			return s, err
		}
	}
	resident := domain.Resident{ID: "resident-demo", Name: "Demo Resident", Email: "resident@example.com", Apartment: "A-101", Active: true, CreatedAt: now}
	if err := s.residents.Create(ctx, &resident); err != nil {
		return s, err
	}
	logger.Info("seeded demo accounts for in-memory mode",
		zap.Strings("staff", []string{"admin-demo", "staff-demo"}),
		zap.String("resident", "resident-demo"))
	return s, nil
}
