//go:build integration

package repository_test

import (
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/lifecycle"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/models"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/repository"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/service"
	"github.com/Eursukkul/booking-microservice/allocation-service/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDB *gorm.DB

var tables = []string{
	"ticket_transitions", "user_rewards", "tickets", "payments",
	"table_reservations", "capacity_holds", "tables", "ticket_tiers", "rewards",
}

func TestMain(m *testing.M) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("TEST_DB_HOST", "localhost"),
		getEnv("TEST_DB_PORT", "5434"),
		getEnv("TEST_DB_USER", "postgres"),
		getEnv("TEST_DB_PASSWORD", "postgres"),
		getEnv("TEST_DB_NAME", "allocation_test_db"),
	)

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to test database: %v", err)
	}

	dropTables()
	if err := database.Migrate(testDB); err != nil {
		log.Fatalf("failed to migrate test database: %v", err)
	}

	code := m.Run()

	dropTables()
	os.Exit(code)
}

func dropTables() {
	for _, t := range tables {
		testDB.Exec("DROP TABLE IF EXISTS " + t + " CASCADE")
	}
}

func cleanTables() {
	for _, t := range tables {
		testDB.Exec("DELETE FROM " + t)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newCoordinator() (*repository.Store, *service.Coordinator) {
	store := repository.NewGormStore(testDB, 3*time.Second)
	return store, service.NewCoordinator(store, service.Options{
		Retry: service.RetryPolicy{Attempts: 8, BaseDelay: 10 * time.Millisecond, MaxDelay: 200 * time.Millisecond},
	})
}

func intPtr(v int) *int    { return &v }
func uintPtr(v uint) *uint { return &v }

// Test: 60 buyers check out a 50-unit tier concurrently
// → exactly 50 succeed and the counters never overshoot
func TestConcurrentCheckout(t *testing.T) {
	cleanTables()
	_, svc := newCoordinator()
	tier, err := svc.CreateTier(t.Context(), &models.TicketTier{EventID: 1, Name: "General", Capacity: intPtr(50), IsPublic: true})
	require.NoError(t, err)

	buyers := 60
	var wg sync.WaitGroup
	var mu sync.Mutex
	kinds := map[service.Kind]int{}
	succeeded := 0

	wg.Add(buyers)
	for i := 0; i < buyers; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := svc.Checkout(t.Context(), service.CheckoutRequest{
				ReservationRequest: service.ReservationRequest{
					TierID:     uintPtr(tier.ID),
					ClientID:   fmt.Sprintf("client-%03d", i),
					GuestCount: 1,
					TotalPrice: 2500,
				},
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				kinds[service.KindOf(err)]++
				return
			}
			succeeded++
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, succeeded)
	assert.Equal(t, 10, kinds[service.KindCapacityExceeded])

	var stored models.TicketTier
	require.NoError(t, testDB.First(&stored, tier.ID).Error)
	assert.Equal(t, 50, stored.HeldCount+stored.SoldCount)
}

// Test: ten clients race for one table → one reservation, nine TableUnavailable
func TestConcurrentTableReservation(t *testing.T) {
	cleanTables()
	_, svc := newCoordinator()
	table, err := svc.CreateTable(t.Context(), &models.Table{Label: "A1"})
	require.NoError(t, err)

	attempts := 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, unavailable := 0, 0

	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := svc.CreateReservation(t.Context(), service.ReservationRequest{
				TableID:    uintPtr(table.ID),
				ClientID:   fmt.Sprintf("client-%d", i),
				GuestCount: 4,
				TotalPrice: 8000,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case service.KindOf(err) == service.KindTableUnavailable:
				unavailable++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, unavailable)

	var live int64
	testDB.Model(&models.TableReservation{}).
		Where("table_id = ? AND status IN ?", table.ID, []models.ReservationStatus{models.ReservationHeld, models.ReservationConfirmed}).
		Count(&live)
	assert.Equal(t, int64(1), live)
}

// Test: split payments confirm the reservation and issue one ticket;
// a redelivered reference changes nothing
func TestPaymentFlow(t *testing.T) {
	cleanTables()
	_, svc := newCoordinator()
	ctx := t.Context()
	table, err := svc.CreateTable(ctx, &models.Table{Label: "B2"})
	require.NoError(t, err)

	res, err := svc.CreateReservation(ctx, service.ReservationRequest{
		TableID: uintPtr(table.ID), ClientID: "client-1", GuestCount: 2, TotalPrice: 1000,
	})
	require.NoError(t, err)

	first, err := svc.ApplyPayment(ctx, service.PaymentRequest{ReservationID: res.ID, Amount: 400, Reference: "pay-1"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePartial, first.Outcome)
	assert.Nil(t, first.Ticket)

	second, err := svc.ApplyPayment(ctx, service.PaymentRequest{ReservationID: res.ID, Amount: 600, Reference: "pay-2"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeComplete, second.Outcome)
	require.NotNil(t, second.Ticket)
	assert.Equal(t, lifecycle.StatusValid, second.Ticket.Status)

	replay, err := svc.ApplyPayment(ctx, service.PaymentRequest{ReservationID: res.ID, Amount: 600, Reference: "pay-2"})
	require.NoError(t, err)
	assert.True(t, replay.Replayed)

	_, err = svc.ApplyPayment(ctx, service.PaymentRequest{ReservationID: res.ID, Amount: 1, Reference: "pay-3"})
	assert.ErrorIs(t, err, service.ErrOverpaymentRejected)

	var stored models.TableReservation
	require.NoError(t, testDB.First(&stored, res.ID).Error)
	assert.Equal(t, int64(1000), stored.AmountPaid)
	assert.Equal(t, models.ReservationConfirmed, stored.Status)

	var tickets int64
	testDB.Model(&models.Ticket{}).Where("reservation_id = ?", res.ID).Count(&tickets)
	assert.Equal(t, int64(1), tickets)

	scan, err := svc.ScanByCode(ctx, second.Ticket.Code, 2, "gate-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusUsed, scan.Ticket.Status)

	var occupied models.Table
	require.NoError(t, testDB.First(&occupied, table.ID).Error)
	assert.Equal(t, models.TableOccupied, occupied.Status)
}

func TestVersionedUpdateConflict(t *testing.T) {
	cleanTables()
	store, _ := newCoordinator()
	ctx := t.Context()

	tier := &models.TicketTier{EventID: 1, Name: "VIP", Capacity: intPtr(10)}
	require.NoError(t, store.Tiers.Create(ctx, tier))

	a, err := store.Tiers.FindByID(ctx, tier.ID)
	require.NoError(t, err)
	b, err := store.Tiers.FindByID(ctx, tier.ID)
	require.NoError(t, err)

	a.HeldCount = 2
	require.NoError(t, store.Tiers.Update(ctx, a))

	b.HeldCount = 5
	assert.ErrorIs(t, store.Tiers.Update(ctx, b), repository.ErrConflict)
}

func TestCapacityConstraint(t *testing.T) {
	cleanTables()
	store, _ := newCoordinator()
	ctx := t.Context()

	tier := &models.TicketTier{EventID: 1, Name: "Small", Capacity: intPtr(2)}
	require.NoError(t, store.Tiers.Create(ctx, tier))

	tier.SoldCount = 3
	assert.Error(t, store.Tiers.Update(ctx, tier))
}

func TestPaymentReferenceUnique(t *testing.T) {
	cleanTables()
	store, _ := newCoordinator()
	ctx := t.Context()
	ref := "dup-ref"

	require.NoError(t, store.Payments.Create(ctx, &models.Payment{ReservationID: 1, Reference: &ref, Amount: 10, Outcome: models.OutcomePartial, PaidAfter: 10}))
	err := store.Payments.Create(ctx, &models.Payment{ReservationID: 2, Reference: &ref, Amount: 10, Outcome: models.OutcomePartial, PaidAfter: 10})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestSweepExpiresStaleReservations(t *testing.T) {
	cleanTables()
	store := repository.NewGormStore(testDB, 3*time.Second)
	svc := service.NewCoordinator(store, service.Options{Policy: service.StaticPolicy{TTL: time.Millisecond}})
	ctx := t.Context()

	tier, err := svc.CreateTier(ctx, &models.TicketTier{EventID: 1, Name: "GA", Capacity: intPtr(5)})
	require.NoError(t, err)
	res, err := svc.CreateReservation(ctx, service.ReservationRequest{
		TierID: uintPtr(tier.ID), ClientID: "late", GuestCount: 3, TotalPrice: 300,
	})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	report, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reservations)

	var stored models.TableReservation
	require.NoError(t, testDB.First(&stored, res.ID).Error)
	assert.Equal(t, models.ReservationExpired, stored.Status)

	after, err := svc.Tier(ctx, tier.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.HeldCount)
}

// Test: a hidden VIP tier keeps is_public=false and lands in is_vip
func TestTierFlagsPersist(t *testing.T) {
	cleanTables()
	store, _ := newCoordinator()
	ctx := t.Context()

	tier := &models.TicketTier{EventID: 1, Name: "Backstage", IsPublic: false, IsVIP: true}
	require.NoError(t, store.Tiers.Create(ctx, tier))

	var row struct {
		IsPublic bool
		IsVIP    bool `gorm:"column:is_vip"`
	}
	require.NoError(t, testDB.Table("ticket_tiers").Select("is_public, is_vip").Where("id = ?", tier.ID).Scan(&row).Error)
	assert.False(t, row.IsPublic)
	assert.True(t, row.IsVIP)

	got, err := store.Tiers.FindByID(ctx, tier.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPublic)
	assert.True(t, got.IsVIP)
}

// Test: a free reservation commits its units and issues a VALID ticket
func TestFreeReservationIssuesTicket(t *testing.T) {
	cleanTables()
	_, svc := newCoordinator()
	ctx := t.Context()

	tier, err := svc.CreateTier(ctx, &models.TicketTier{EventID: 1, Name: "Guest list", Capacity: intPtr(5), IsPublic: true})
	require.NoError(t, err)
	out, err := svc.Checkout(ctx, service.CheckoutRequest{
		ReservationRequest: service.ReservationRequest{TierID: uintPtr(tier.ID), ClientID: "guest", GuestCount: 2, TotalPrice: 0},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Ticket)
	assert.Equal(t, lifecycle.StatusValid, out.Ticket.Status)

	var stored models.TableReservation
	require.NoError(t, testDB.First(&stored, out.Reservation.ID).Error)
	assert.Equal(t, models.ReservationConfirmed, stored.Status)

	after, err := svc.Tier(ctx, tier.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.SoldCount)
	assert.Equal(t, 0, after.HeldCount)
}
