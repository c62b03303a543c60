package service

import (
	"time"

	"keyhouse/internal/cache"
	"keyhouse/internal/events"
	"keyhouse/internal/featureflags"
	"keyhouse/internal/repository"

	"github.com/redis/go-redis/v9"
)

// Settings carries the tunables read from configuration.
type Settings struct {
	InspectionFeeWindow time.Duration
	SlotCacheTTL        time.Duration
	FeatureFlags        string
}

// Services is the fully wired set of engines shared by the HTTP server, the
// job runner and the seeder.
type Services struct {
	Store        *repository.Store
	Publisher    events.Publisher
	Flags        *featureflags.Manager
	Slots        *SlotService
	Inspections  *InspectionService
	Reschedules  *RescheduleService
	Reviews      *ReviewService
	Precedents   *PrecedentService
	Applications *ApplicationService
	Loans        *LoanService
	Payments     *PaymentService
	Jobs         *Jobs
}

// NewServices wires every engine over store. A nil rdb disables caching and
// event delivery.
func NewServices(store *repository.Store, rdb *redis.Client, settings Settings) *Services {
	var cmd redis.Cmdable
	if rdb != nil {
		cmd = rdb
	}
	return newServices(store, cmd, events.NewRedisPublisher(cmd), settings)
}

func newServices(store *repository.Store, rdb redis.Cmdable, publisher events.Publisher, settings Settings) *Services {
	c := cache.New(rdb)
	flags := featureflags.NewManager(settings.FeatureFlags)

	reviews := NewReviewService(store, c, publisher)
	inspections := NewInspectionService(store, c, publisher, flags, settings.InspectionFeeWindow)
	precedents := NewPrecedentService(store, publisher)
	loans := NewLoanService(store, publisher)

	return &Services{
		Store:        store,
		Publisher:    publisher,
		Flags:        flags,
		Slots:        NewSlotService(store, c, settings.SlotCacheTTL),
		Inspections:  inspections,
		Reschedules:  NewRescheduleService(store, c, publisher),
		Reviews:      reviews,
		Precedents:   precedents,
		Applications: NewApplicationService(store, reviews, publisher),
		Loans:        loans,
		Payments:     NewPaymentService(store, inspections, publisher),
		Jobs:         NewJobs(inspections, precedents, loans),
	}
}
