package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/harentsoaR/dentaheal-api/internal/apperrors"
	"github.com/harentsoaR/dentaheal-api/internal/config"
	"github.com/harentsoaR/dentaheal-api/internal/models"
	"github.com/harentsoaR/dentaheal-api/internal/repository"
	"github.com/harentsoaR/dentaheal-api/internal/validation"
)

// LedgerService books appointments and records treatments on them.
type LedgerService struct {
	appointments      repository.AppointmentRepository
	accounts          repository.AccountRepository
	notifier          *NotificationService
	logger            *zap.Logger
	now               func() time.Time
	emptyListNotFound bool
	verifyDoctor      bool
}

// LedgerDependencies bundles the collaborators of LedgerService.
type LedgerDependencies struct {
	Appointments repository.AppointmentRepository
	Accounts     repository.AccountRepository
	Notifier     *NotificationService
	Logger       *zap.Logger
	Clock        func() time.Time
}

// Actor is the authenticated caller of a ledger operation.
type Actor struct {
	ID   string
	Role models.Role
}

// CureInput is a treatment entry to append.
type CureInput struct {
	Description string
	Image       string
}

func NewLedgerService(cfg config.LedgerConfig, deps LedgerDependencies) *LedgerService {
	s := &LedgerService{
		appointments:      deps.Appointments,
		accounts:          deps.Accounts,
		notifier:          deps.Notifier,
		logger:            deps.Logger,
		now:               deps.Clock,
		emptyListNotFound: cfg.EmptyListNotFound,
		verifyDoctor:      cfg.VerifyDoctor,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Book records a pending appointment request from a patient to a doctor.
func (s *LedgerService) Book(ctx context.Context, patientID, doctorID, problem string) (*models.Appointment, error) {
	if strings.TrimSpace(patientID) == "" || strings.TrimSpace(doctorID) == "" {
		return nil, apperrors.NewValidationError("User ID and Doctor ID are required", nil)
	}
	if err := validation.Required(problem, "Problem description is required"); err != nil {
		return nil, err
	}
	problem = strings.TrimSpace(problem)
	pID, err := primitive.ObjectIDFromHex(patientID)
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid user ID", nil)
	}
	dID, err := primitive.ObjectIDFromHex(doctorID)
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid doctor ID", nil)
	}

	var doctor *models.Account
	if s.verifyDoctor {
		doctor, err = s.accounts.GetByID(ctx, dID)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && doctor.Role != models.RoleDoctor) {
			return nil, apperrors.NewNotFound("Doctor")
		}
		if err != nil {
			return nil, fmt.Errorf("lookup doctor: %w", err)
		}
	}

	apt := &models.Appointment{
		PatientID: pID,
		DoctorID:  dID,
		Date:      s.now(),
		Status:    models.StatusPending,
		Problem:   problem,
		Cures:     []models.Cure{},
	}
	if err := s.appointments.Create(ctx, apt); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	s.logger.Info("appointment booked",
		zap.String("appointment_id", apt.ID.Hex()), zap.String("doctor_id", doctorID))

	if s.notifier != nil {
		patient, err := s.accounts.GetByID(ctx, pID)
		if err == nil {
			if doctor == nil {
				doctor, _ = s.accounts.GetByID(ctx, dID)
			}
			s.notifier.SendBookingNotice(patient, doctor, apt)
		}
	}
	return apt, nil
}

// ListForPatient returns the patient's appointments, each with the doctor's public profile.
func (s *LedgerService) ListForPatient(ctx context.Context, patientID string) ([]models.AppointmentView, error) {
	id, err := primitive.ObjectIDFromHex(patientID)
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid user ID", nil)
	}
	appointments, err := s.appointments.ListByPatient(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if len(appointments) == 0 && s.emptyListNotFound {
		return nil, apperrors.NewNotFoundMessage("No appointments found for this user")
	}

	profiles := s.profileLookup(ctx)
	views := make([]models.AppointmentView, 0, len(appointments))
	for _, apt := range appointments {
		views = append(views, models.AppointmentView{
			Appointment: withCures(apt),
			Doctor:      profiles(apt.DoctorID),
		})
	}
	return views, nil
}

// ListForDoctor returns the doctor's appointments, each with the patient's public profile.
func (s *LedgerService) ListForDoctor(ctx context.Context, doctorID string) ([]models.AppointmentView, error) {
	id, err := primitive.ObjectIDFromHex(doctorID)
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid doctor ID", nil)
	}
	appointments, err := s.appointments.ListByDoctor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if len(appointments) == 0 && s.emptyListNotFound {
		return nil, apperrors.NewNotFoundMessage("No appointments found for this doctor")
	}

	profiles := s.profileLookup(ctx)
	views := make([]models.AppointmentView, 0, len(appointments))
	for _, apt := range appointments {
		user := profiles(apt.PatientID)
		if user != nil {
			user.Speciality = ""
		}
		views = append(views, models.AppointmentView{
			Appointment: withCures(apt),
			User:        user,
		})
	}
	return views, nil
}

// AddCure appends a treatment entry to the doctor's appointment and marks it completed.
func (s *LedgerService) AddCure(ctx context.Context, doctorID, appointmentID string, in CureInput) (*models.Appointment, error) {
	if err := validation.Required(in.Description, "Cure description is required"); err != nil {
		return nil, err
	}
	description := strings.TrimSpace(in.Description)
	aptID, err := primitive.ObjectIDFromHex(appointmentID)
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid appointment ID", nil)
	}

	apt, err := s.owned(ctx, doctorID, aptID)
	if err != nil {
		return nil, err
	}
	if apt.Status == models.StatusCancelled {
		return nil, apperrors.NewInvalidTransition(string(apt.Status), string(models.StatusCompleted))
	}

	cure := models.Cure{
		ID:          primitive.NewObjectID(),
		Description: description,
		Image:       strings.TrimSpace(in.Image),
		Date:        s.now(),
	}
	updated, err := s.appointments.AppendCure(ctx, aptID, cure, models.StatusCompleted)
	switch {
	case errors.Is(err, repository.ErrConflict):
		return nil, apperrors.NewInvalidTransition(string(models.StatusCancelled), string(models.StatusCompleted))
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.NewNotFound("Appointment")
	case err != nil:
		return nil, fmt.Errorf("append cure: %w", err)
	}

	s.logger.Info("cure added",
		zap.String("appointment_id", appointmentID), zap.Int("cures", len(updated.Cures)))
	out := withCures(*updated)
	return &out, nil
}

// Confirm accepts a pending appointment on behalf of its doctor.
func (s *LedgerService) Confirm(ctx context.Context, doctorID, appointmentID string) (*models.Appointment, error) {
	aptID, err := primitive.ObjectIDFromHex(appointmentID)
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid appointment ID", nil)
	}
	apt, err := s.owned(ctx, doctorID, aptID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, apt, models.StatusConfirmed, models.StatusPending)
}

// Cancel withdraws an appointment that is not yet completed. Either party may cancel.
func (s *LedgerService) Cancel(ctx context.Context, actor Actor, appointmentID string) (*models.Appointment, error) {
	aptID, err := primitive.ObjectIDFromHex(appointmentID)
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid appointment ID", nil)
	}
	apt, err := s.get(ctx, aptID)
	if err != nil {
		return nil, err
	}
	if !participant(apt, actor) {
		return nil, apperrors.NewForbidden("Not your appointment")
	}
	if apt.Status.Terminal() {
		return nil, apperrors.NewInvalidTransition(string(apt.Status), string(models.StatusCancelled))
	}
	return s.transition(ctx, apt, models.StatusCancelled, models.StatusPending, models.StatusConfirmed)
}

func (s *LedgerService) transition(ctx context.Context, apt *models.Appointment, to models.AppointmentStatus, from ...models.AppointmentStatus) (*models.Appointment, error) {
	updated, err := s.appointments.SetStatus(ctx, apt.ID, to, from...)
	switch {
	case errors.Is(err, repository.ErrConflict):
		current := apt.Status
		if latest, getErr := s.appointments.GetByID(ctx, apt.ID); getErr == nil {
			current = latest.Status
		}
		return nil, apperrors.NewInvalidTransition(string(current), string(to))
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.NewNotFound("Appointment")
	case err != nil:
		return nil, fmt.Errorf("set status: %w", err)
	}

	s.logger.Info("appointment status changed",
		zap.String("appointment_id", apt.ID.Hex()), zap.String("status", string(to)))
	out := withCures(*updated)
	return &out, nil
}

func (s *LedgerService) get(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	apt, err := s.appointments.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("Appointment")
	}
	if err != nil {
		return nil, fmt.Errorf("lookup appointment: %w", err)
	}
	return apt, nil
}

// owned loads the appointment and checks it belongs to doctorID.
func (s *LedgerService) owned(ctx context.Context, doctorID string, id primitive.ObjectID) (*models.Appointment, error) {
	apt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.DoctorID.Hex() != doctorID {
		return nil, apperrors.NewForbidden("Not your appointment")
	}
	return apt, nil
}

// profileLookup memoizes account lookups for one listing. Missing accounts yield nil.
func (s *LedgerService) profileLookup(ctx context.Context) func(primitive.ObjectID) *models.PublicProfile {
	cache := make(map[primitive.ObjectID]*models.PublicProfile)
	return func(id primitive.ObjectID) *models.PublicProfile {
		if p, ok := cache[id]; ok {
			if p == nil {
				return nil
			}
			cp := *p
			return &cp
		}
		acc, err := s.accounts.GetByID(ctx, id)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				s.logger.Warn("counterpart lookup failed", zap.String("account_id", id.Hex()), zap.Error(err))
			}
			cache[id] = nil
			return nil
		}
		p := acc.Public()
		cache[id] = &p
		cp := p
		return &cp
	}
}

func participant(apt *models.Appointment, actor Actor) bool {
	switch actor.Role {
	case models.RolePatient:
		return apt.PatientID.Hex() == actor.ID
	case models.RoleDoctor:
		return apt.DoctorID.Hex() == actor.ID
	default:
		return false
	}
}

func withCures(apt models.Appointment) models.Appointment {
	if apt.Cures == nil {
		apt.Cures = []models.Cure{}
	}
	return apt
}
