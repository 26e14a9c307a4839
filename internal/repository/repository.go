package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/dentaheal-api/internal/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrConflict reports a conditional write whose precondition no longer held.
	ErrConflict = errors.New("record changed concurrently")
)

// AccountRepository is the credential store for patients and doctors.
// Emails are matched after models.NormalizeEmail.
type AccountRepository interface {
	Create(ctx context.Context, acc *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	// ClearOTP marks the account verified if its stored code still equals code.
	ClearOTP(ctx context.Context, id primitive.ObjectID, code string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update ProfileUpdate) (*models.Account, error)
	ListDoctors(ctx context.Context) ([]models.Account, error)
	// DeleteExpiredPending removes pending accounts whose OTP expired before cutoff.
	DeleteExpiredPending(ctx context.Context, cutoff time.Time) (int64, error)
}

// ProfileUpdate carries the optional profile fields to change.
type ProfileUpdate struct {
	Name  *string
	Phone *string
}

// AppointmentRepository is the appointment ledger store.
type AppointmentRepository interface {
	Create(ctx context.Context, apt *models.Appointment) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error)
	// ListByPatient and ListByDoctor return newest bookings first.
	ListByPatient(ctx context.Context, patientID primitive.ObjectID) ([]models.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID primitive.ObjectID) ([]models.Appointment, error)
	// AppendCure pushes cure and sets the status in one write, returning the updated record.
	// A cancelled appointment is left untouched and yields ErrConflict.
	AppendCure(ctx context.Context, id primitive.ObjectID, cure models.Cure, status models.AppointmentStatus) (*models.Appointment, error)
	// SetStatus moves the appointment to status only if it is currently in one of from.
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.AppointmentStatus, from ...models.AppointmentStatus) (*models.Appointment, error)
}
