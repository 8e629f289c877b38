package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/metrics"
	"github.com/Domenick1991/flightbooking/internal/pnr"
	"github.com/Domenick1991/flightbooking/internal/pricing"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultMaxTxAttempts  = 3
	DefaultMaxPNRAttempts = 100

	minPassengerName = 2
	maxPassengerName = 200

	publishTimeout = 5 * time.Second
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, identity domain.Identity, input CreateBookingInput) (*domain.BookingView, error)
	CancelBooking(ctx context.Context, identity domain.Identity, pnr string) (*domain.BookingView, error)
	UpdateBooking(ctx context.Context, identity domain.Identity, pnr string, patch domain.BookingPatch) (*domain.BookingView, error)
	GetBooking(ctx context.Context, identity domain.Identity, pnr string) (*domain.BookingView, error)
	ListUserBookings(ctx context.Context, identity domain.Identity) ([]domain.BookingView, error)
	ListAllBookings(ctx context.Context, identity domain.Identity, page domain.Page) (*domain.BookingList, error)
}

// Cache is the part of the flight cache the booking engine touches: every
// seat change makes the flight's cached availability stale.
type Cache interface {
	InvalidateFlight(ctx context.Context, code string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	store              repository.Store
	cache              Cache
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	pnrs               pnr.Generator
	now                func() time.Time
	logger             *zap.Logger
	metrics            *metrics.Registry
	maxTxAttempts      int
	maxPNRAttempts     int
}

type CreateBookingInput struct {
	FlightCode    string               `json:"flight_id"`
	PassengerName string               `json:"passenger_name"`
	SeatNumber    string               `json:"seat_number"`
	PaymentStatus domain.PaymentStatus `json:"payment_status,omitempty"`
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithPNRGenerator(g pnr.Generator) BookingServiceOption {
	return func(s *BookingService) {
		s.pnrs = g
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func WithLogger(l *zap.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.logger = l
	}
}

func WithMetrics(m *metrics.Registry) BookingServiceOption {
	return func(s *BookingService) {
		s.metrics = m
	}
}

func WithMaxTxAttempts(n int) BookingServiceOption {
	return func(s *BookingService) {
		if n > 0 {
			s.maxTxAttempts = n
		}
	}
}

func WithMaxPNRAttempts(n int) BookingServiceOption {
	return func(s *BookingService) {
		if n > 0 {
			s.maxPNRAttempts = n
		}
	}
}

// NewBookingService wires the engine. cache and producer may be nil.
func NewBookingService(
	store repository.Store,
	cache Cache,
	producer Producer,
	bookingTopic string,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		store:          store,
		cache:          cache,
		producer:       producer,
		bookingTopic:   bookingTopic,
		pnrs:           pnr.NewGenerator(),
		now:            time.Now,
		logger:         zap.NewNop(),
		maxTxAttempts:  DefaultMaxTxAttempts,
		maxPNRAttempts: DefaultMaxPNRAttempts,
	}
	for _, opt := range opts {
		opt(service)
	}
	if service.metrics == nil {
		service.metrics = metrics.Nop()
	}
	return service
}

func (s *BookingService) CreateBooking(ctx context.Context, identity domain.Identity, input CreateBookingInput) (view *domain.BookingView, err error) {
	defer func() { s.observe("create", err) }()

	input.FlightCode = strings.TrimSpace(input.FlightCode)
	input.SeatNumber = domain.NormalizeSeat(input.SeatNumber)
	input.PassengerName = strings.TrimSpace(input.PassengerName)
	if input.PaymentStatus == "" {
		input.PaymentStatus = domain.PaymentCompleted
	}
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	err = s.runTx(ctx, "create", func(q repository.Queries) error {
		flight, err := q.LockFlight(ctx, input.FlightCode)
		if err != nil {
			return flightErr(input.FlightCode, err)
		}
		if !flight.Seats.Has(input.SeatNumber) {
			return fmt.Errorf("seat %s on flight %s: %w", input.SeatNumber, flight.Code, domain.ErrInvalidSeat)
		}
		if !flight.Seats.IsAvailable(input.SeatNumber) {
			return fmt.Errorf("seat %s on flight %s: %w", input.SeatNumber, flight.Code, domain.ErrSeatUnavailable)
		}
		now := s.now().UTC()
		if flight.Departed(now) {
			return fmt.Errorf("flight %s: %w", flight.Code, domain.ErrFlightDeparted)
		}

		code, err := s.allocatePNR(ctx, q)
		if err != nil {
			return err
		}

		class, _ := flight.Seats.Class(input.SeatNumber)
		price := pricing.ForSeats(flight.PriceCents, flight.Seats, class)

		if err := q.SetSeatStatus(ctx, flight.ID, input.SeatNumber, domain.SeatAvailable, domain.SeatBooked); err != nil {
			return err
		}
		booking := &domain.Booking{
			PNR:           code,
			UserID:        identity.UserID,
			FlightID:      flight.ID,
			FlightCode:    flight.Code,
			PassengerName: input.PassengerName,
			SeatNumber:    input.SeatNumber,
			Status:        domain.BookingStatusConfirmed,
			PaymentStatus: input.PaymentStatus,
			BookedAt:      now,
		}
		if err := q.InsertBooking(ctx, booking); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return flightErr(flight.Code, err)
			}
			return err
		}
		if err := flight.Seats.Book(input.SeatNumber); err != nil {
			return err
		}

		view = &domain.BookingView{
			Booking:    *booking,
			SeatClass:  class,
			Flight:     domain.SummaryOf(flight),
			PriceCents: price,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("pnr", view.PNR), zap.String("flight_id", view.FlightCode),
		zap.String("seat", view.SeatNumber), zap.Int64("user_id", view.UserID))
	s.afterCommit(ctx, kafka.EventBookingCreated, &view.Booking, "")
	return view, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, identity domain.Identity, code string) (view *domain.BookingView, err error) {
	defer func() { s.observe("cancel", err) }()

	code, err = normalizePNR(code)
	if err != nil {
		return nil, err
	}

	err = s.runTx(ctx, "cancel", func(q repository.Queries) error {
		booking, flight, err := s.resolveForChange(ctx, q, identity, code)
		if err != nil {
			return err
		}
		if err := s.cancelLocked(ctx, q, booking, flight); err != nil {
			return err
		}
		if err := q.UpdateBooking(ctx, booking); err != nil {
			return err
		}
		view = viewOf(booking, flight)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking cancelled", zap.String("pnr", view.PNR), zap.String("flight_id", view.FlightCode), zap.String("seat", view.SeatNumber))
	s.afterCommit(ctx, kafka.EventBookingCancelled, &view.Booking, "")
	return view, nil
}

// UpdateBooking applies an owner's patch. A seat change releases the old seat
// and books the new one in the same transaction. Status accepts "cancelled",
// which runs the cancel rules, and "confirmed", which changes nothing.
func (s *BookingService) UpdateBooking(ctx context.Context, identity domain.Identity, code string, patch domain.BookingPatch) (view *domain.BookingView, err error) {
	defer func() { s.observe("update", err) }()

	code, err = normalizePNR(code)
	if err != nil {
		return nil, err
	}
	if err := normalizePatch(&patch); err != nil {
		return nil, err
	}

	var previousSeat string
	err = s.runTx(ctx, "update", func(q repository.Queries) error {
		booking, flight, err := s.resolveForChange(ctx, q, identity, code)
		if err != nil {
			return err
		}
		previousSeat = booking.SeatNumber

		if patch.SeatNumber != nil && *patch.SeatNumber != booking.SeatNumber {
			if err := s.moveSeat(ctx, q, booking, flight, *patch.SeatNumber); err != nil {
				return err
			}
		}
		if patch.PassengerName != nil {
			booking.PassengerName = *patch.PassengerName
		}
		if patch.PaymentStatus != nil {
			booking.PaymentStatus = *patch.PaymentStatus
		}
		if patch.Status != nil && *patch.Status == domain.BookingStatusCancelled {
			if err := s.cancelLocked(ctx, q, booking, flight); err != nil {
				return err
			}
		}

		if err := q.UpdateBooking(ctx, booking); err != nil {
			return err
		}
		view = viewOf(booking, flight)
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventType := kafka.EventBookingUpdated
	if !view.Confirmed() {
		eventType = kafka.EventBookingCancelled
	}
	s.logger.Info("booking updated", zap.String("pnr", view.PNR), zap.String("status", string(view.Status)), zap.String("seat", view.SeatNumber))
	s.afterCommit(ctx, eventType, &view.Booking, previousSeat)
	return view, nil
}

func (s *BookingService) GetBooking(ctx context.Context, identity domain.Identity, code string) (*domain.BookingView, error) {
	code, err := normalizePNR(code)
	if err != nil {
		return nil, err
	}
	view, err := s.store.BookingView(ctx, code)
	if err != nil {
		return nil, bookingErr(code, err)
	}
	if !identity.CanAccess(view.UserID) {
		return nil, fmt.Errorf("booking %s: %w", code, domain.ErrForbidden)
	}
	return view, nil
}

// ListUserBookings returns the caller's own bookings, newest first.
func (s *BookingService) ListUserBookings(ctx context.Context, identity domain.Identity) ([]domain.BookingView, error) {
	views, err := s.store.UserBookings(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("list bookings of user %d: %w", identity.UserID, err)
	}
	return views, nil
}

func (s *BookingService) ListAllBookings(ctx context.Context, identity domain.Identity, page domain.Page) (*domain.BookingList, error) {
	if !identity.IsAdmin() {
		return nil, fmt.Errorf("list all bookings: %w", domain.ErrForbidden)
	}
	page = page.Normalize()
	views, total, err := s.store.ListBookings(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return &domain.BookingList{
		Bookings:    views,
		Total:       total,
		Pages:       page.Pages(total),
		CurrentPage: page.Number,
	}, nil
}

// resolveForChange locks the booking and its flight and runs the checks shared
// by cancel and update: existence, ownership, not yet cancelled.
func (s *BookingService) resolveForChange(ctx context.Context, q repository.Queries, identity domain.Identity, code string) (*domain.Booking, *domain.Flight, error) {
	booking, err := q.LockBooking(ctx, code)
	if err != nil {
		return nil, nil, bookingErr(code, err)
	}
	if booking.UserID != identity.UserID {
		return nil, nil, fmt.Errorf("booking %s: %w", code, domain.ErrForbidden)
	}
	if !booking.Confirmed() {
		return nil, nil, fmt.Errorf("booking %s: %w", code, domain.ErrAlreadyCancelled)
	}
	flight, err := q.LockFlight(ctx, booking.FlightCode)
	if err != nil {
		return nil, nil, flightErr(booking.FlightCode, err)
	}
	return booking, flight, nil
}

// cancelLocked marks booking cancelled and releases its seat. The caller
// persists the booking.
func (s *BookingService) cancelLocked(ctx context.Context, q repository.Queries, booking *domain.Booking, flight *domain.Flight) error {
	if !booking.Confirmed() {
		return fmt.Errorf("booking %s: %w", booking.PNR, domain.ErrAlreadyCancelled)
	}
	if flight.Departed(s.now().UTC()) {
		return fmt.Errorf("flight %s: %w", flight.Code, domain.ErrFlightDeparted)
	}
	if err := s.releaseSeat(ctx, q, flight, booking.SeatNumber); err != nil {
		return err
	}
	booking.Status = domain.BookingStatusCancelled
	return nil
}

func (s *BookingService) moveSeat(ctx context.Context, q repository.Queries, booking *domain.Booking, flight *domain.Flight, seat string) error {
	if !flight.Seats.Has(seat) {
		return fmt.Errorf("seat %s on flight %s: %w", seat, flight.Code, domain.ErrInvalidSeat)
	}
	if !flight.Seats.IsAvailable(seat) {
		return fmt.Errorf("seat %s on flight %s: %w", seat, flight.Code, domain.ErrSeatUnavailable)
	}
	if err := s.releaseSeat(ctx, q, flight, booking.SeatNumber); err != nil {
		return err
	}
	if err := q.SetSeatStatus(ctx, flight.ID, seat, domain.SeatAvailable, domain.SeatBooked); err != nil {
		return err
	}
	if err := flight.Seats.Book(seat); err != nil {
		return err
	}
	booking.SeatNumber = seat
	return nil
}

// releaseSeat frees seat. A seat that is already available is left alone and
// reported as drift.
func (s *BookingService) releaseSeat(ctx context.Context, q repository.Queries, flight *domain.Flight, seat string) error {
	if flight.Seats.IsAvailable(seat) {
		s.logger.Warn("releasing a seat that is not booked", zap.String("flight_id", flight.Code), zap.String("seat", seat))
		return nil
	}
	if !flight.Seats.Has(seat) {
		s.logger.Warn("booking references an unknown seat", zap.String("flight_id", flight.Code), zap.String("seat", seat))
		return nil
	}
	if err := q.SetSeatStatus(ctx, flight.ID, seat, domain.SeatBooked, domain.SeatAvailable); err != nil {
		return err
	}
	return flight.Seats.Release(seat)
}

func (s *BookingService) allocatePNR(ctx context.Context, q repository.Queries) (string, error) {
	for i := 0; i < s.maxPNRAttempts; i++ {
		code := s.pnrs.Generate()
		exists, err := q.PNRExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check pnr: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("after %d attempts: %w", s.maxPNRAttempts, domain.ErrPNRExhausted)
}

// runTx runs fn in a transaction, retrying lost races a bounded number of times.
// Each attempt re-reads state, so a seat taken by a concurrent winner surfaces
// as ErrSeatUnavailable on the next attempt.
func (s *BookingService) runTx(ctx context.Context, op string, fn func(q repository.Queries) error) error {
	for attempt := 1; ; attempt++ {
		err := s.store.WithinTx(ctx, fn)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt >= s.maxTxAttempts {
			s.logger.Warn("transaction retries exhausted", zap.String("op", op), zap.Int("attempts", attempt), zap.Error(err))
			return fmt.Errorf("%s booking after %d attempts: %w", op, attempt, domain.ErrTransientConflict)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.metrics.TxRetries.WithLabelValues(op).Inc()
		s.logger.Debug("retrying transaction", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
	}
}

func retryable(err error) bool {
	return errors.Is(err, repository.ErrTxConflict) ||
		errors.Is(err, repository.ErrSeatConflict) ||
		errors.Is(err, repository.ErrDuplicatePNR)
}

func (s *BookingService) afterCommit(ctx context.Context, eventType string, booking *domain.Booking, previousSeat string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if s.cache != nil {
		if err := s.cache.InvalidateFlight(ctx, booking.FlightCode); err != nil {
			s.logger.Warn("failed to invalidate flight cache", zap.String("flight_id", booking.FlightCode), zap.Error(err))
		}
	}
	if err := s.publish(ctx, eventType, booking, previousSeat); err != nil {
		s.logger.Warn("failed to publish booking event", zap.String("type", eventType), zap.String("pnr", booking.PNR), zap.Error(err))
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking, previousSeat string) error {
	if s.producer == nil || s.bookingTopic == "" {
		return nil
	}
	event := kafka.NewBookingEvent(eventType, s.now().UTC())
	event.PNR = booking.PNR
	event.UserID = booking.UserID
	event.FlightCode = booking.FlightCode
	event.SeatNumber = booking.SeatNumber
	event.PassengerName = booking.PassengerName
	event.Status = string(booking.Status)
	event.PaymentStatus = string(booking.PaymentStatus)
	if previousSeat != booking.SeatNumber {
		event.PreviousSeat = previousSeat
	}

	if err := s.producer.Publish(ctx, s.bookingTopic, booking.PNR, event); err != nil {
		return err
	}
	if s.notificationsTopic != "" {
		return s.producer.Publish(ctx, s.notificationsTopic, booking.PNR, event)
	}
	return nil
}

func (s *BookingService) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = domain.KindOf(err).String()
	}
	s.metrics.BookingOperations.WithLabelValues(op, outcome).Inc()
}

func viewOf(booking *domain.Booking, flight *domain.Flight) *domain.BookingView {
	class, _ := flight.Seats.Class(booking.SeatNumber)
	return &domain.BookingView{
		Booking:   *booking,
		SeatClass: class,
		Flight:    domain.SummaryOf(flight),
	}
}

func validateCreate(input CreateBookingInput) error {
	if input.FlightCode == "" {
		return fmt.Errorf("flight_id is required: %w", domain.ErrInvalidInput)
	}
	if input.SeatNumber == "" {
		return fmt.Errorf("seat_number is required: %w", domain.ErrInvalidInput)
	}
	if err := validatePassengerName(input.PassengerName); err != nil {
		return err
	}
	if !input.PaymentStatus.Valid() {
		return fmt.Errorf("payment_status %q: %w", input.PaymentStatus, domain.ErrInvalidInput)
	}
	return nil
}

func validatePassengerName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < minPassengerName || n > maxPassengerName {
		return fmt.Errorf("passenger_name must be %d to %d characters: %w", minPassengerName, maxPassengerName, domain.ErrInvalidInput)
	}
	return nil
}

func normalizePatch(patch *domain.BookingPatch) error {
	if patch.Empty() {
		return fmt.Errorf("no updatable fields: %w", domain.ErrInvalidInput)
	}
	if patch.PassengerName != nil {
		name := strings.TrimSpace(*patch.PassengerName)
		if err := validatePassengerName(name); err != nil {
			return err
		}
		patch.PassengerName = &name
	}
	if patch.SeatNumber != nil {
		seat := domain.NormalizeSeat(*patch.SeatNumber)
		if seat == "" {
			return fmt.Errorf("seat_number must not be empty: %w", domain.ErrInvalidInput)
		}
		patch.SeatNumber = &seat
	}
	if patch.PaymentStatus != nil && !patch.PaymentStatus.Valid() {
		return fmt.Errorf("payment_status %q: %w", *patch.PaymentStatus, domain.ErrInvalidInput)
	}
	if patch.Status != nil {
		switch *patch.Status {
		case domain.BookingStatusCancelled:
			if patch.SeatNumber != nil {
				return fmt.Errorf("cannot change seat and cancel in one request: %w", domain.ErrInvalidInput)
			}
		case domain.BookingStatusConfirmed:
		default:
			return fmt.Errorf("status %q: %w", *patch.Status, domain.ErrInvalidInput)
		}
	}
	return nil
}

// normalizePNR upper-cases code and rejects strings that cannot be a PNR as
// not found.
func normalizePNR(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !pnr.Valid(code) {
		return "", fmt.Errorf("booking %q: %w", code, domain.ErrBookingNotFound)
	}
	return code, nil
}

func flightErr(code string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("flight %s: %w", code, domain.ErrFlightNotFound)
	}
	return fmt.Errorf("load flight %s: %w", code, err)
}

func bookingErr(code string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("booking %s: %w", code, domain.ErrBookingNotFound)
	}
	return fmt.Errorf("load booking %s: %w", code, err)
}

var _ BookingUseCase = (*BookingService)(nil)
