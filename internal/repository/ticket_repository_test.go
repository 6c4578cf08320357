package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/persistence"
	"github.com/spec-kit/complaint-service/internal/repository"
)

// startPostgres boots a disposable database with the schema applied.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("complaints"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, persistence.RunMigrations(dsn, zap.NewNop()))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresTicketRepository(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	tickets := repository.NewTicketRepository(pool)
	staff := repository.NewStaffRepository(pool)
	residents := repository.NewResidentRepository(pool)

	require.NoError(t, residents.Create(ctx, &domain.Resident{ID: "res-1", Name: "Ann", Email: "ann@example.com", Apartment: "4B", Active: true}))
	require.NoError(t, staff.Create(ctx, &domain.StaffMember{ID: "staff-1", Name: "Bo", Email: "bo@example.com", Role: domain.RoleStaff, Active: true}))
	require.NoError(t, staff.Create(ctx, &domain.StaffMember{ID: "admin-1", Name: "Cy", Email: "cy@example.com", Role: domain.RoleAdmin, Active: true}))

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tk, err := domain.NewTicket("7b0c1d0e-0000-4000-8000-000000000001", domain.TicketParams{
		ExternalKey: "CMP-AAAA0001",
		CreatedBy:   "res-1",
		Category:    domain.CategoryElectrical,
		Priority:    domain.TicketPriorityHigh,
		Description: "sparking socket",
		Location:    "living room",
		Media:       []domain.MediaRef{{URL: "https://cdn.example.com/a.jpg", PublicID: "a"}},
	}, at)
	require.NoError(t, err)

	t.Run("create and read back", func(t *testing.T) {
		require.NoError(t, tickets.Create(ctx, tk))
		assert.Equal(t, int64(1), tk.Version)
		assert.ErrorIs(t, tickets.Create(ctx, tk), repository.ErrDuplicate)

		got, err := tickets.GetByExternalKey(ctx, "CMP-AAAA0001")
		require.NoError(t, err)
		assert.Equal(t, tk.ID, got.ID)
		assert.Equal(t, domain.TicketStatusOpen, got.Status)
		assert.Equal(t, tk.Media, got.Media)
		assert.Nil(t, got.Rating)
		assert.Empty(t, got.StatusHistory)
	})

	t.Run("versioned update persists trails", func(t *testing.T) {
		loaded, err := tickets.GetByID(ctx, tk.ID)
		require.NoError(t, err)
		stale, err := tickets.GetByID(ctx, tk.ID)
		require.NoError(t, err)

		require.NoError(t, loaded.Assign("staff-1", "admin-1", at.Add(time.Minute)))
		require.NoError(t, loaded.AddComment("admin-1", domain.RoleAdmin, "on it", domain.VisibilityStaff, at.Add(2*time.Minute)))
		require.NoError(t, tickets.Update(ctx, loaded))
		assert.Equal(t, int64(2), loaded.Version)

		require.NoError(t, stale.Cancel("admin-1", "duplicate", at.Add(time.Minute)))
		assert.ErrorIs(t, tickets.Update(ctx, stale), repository.ErrVersionConflict)

		got, err := tickets.GetByID(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusAssigned, got.Status)
		require.NotNil(t, got.AssignedStaff)
		assert.Equal(t, "staff-1", *got.AssignedStaff)
		require.Len(t, got.StatusHistory, 1)
		assert.Equal(t, domain.EventAssign, got.StatusHistory[0].Event)
		require.Len(t, got.Comments, 1)
		assert.Equal(t, domain.VisibilityStaff, got.Comments[0].Visibility)
	})

	t.Run("concurrent writers exactly one wins", func(t *testing.T) {
		base, err := tickets.GetByID(ctx, tk.ID)
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				copyTk := base.Clone()
				if err := copyTk.AddInternalNote("admin-1", "note", at.Add(time.Hour)); err != nil {
					return
				}
				err := tickets.Update(ctx, copyTk)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case assert.ErrorIs(t, err, repository.ErrVersionConflict):
					conflicts++
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, successes)
		assert.Equal(t, 3, conflicts)
	})

	t.Run("list and workload", func(t *testing.T) {
		owner := "res-1"
		list, err := tickets.List(ctx, repository.TicketFilter{CreatedBy: &owner, Statuses: []domain.TicketStatus{domain.TicketStatusAssigned}})
		require.NoError(t, err)
		require.Len(t, list, 1)

		counts, err := tickets.CountActiveByAssignee(ctx, []string{"staff-1"})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"staff-1": 1}, counts)

		active, err := staff.ListActive(ctx, domain.RoleStaff)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "staff-1", active[0].ID)
	})

	t.Run("missing rows map to ErrNotFound", func(t *testing.T) {
		_, err := tickets.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = staff.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = residents.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}
