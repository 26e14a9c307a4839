package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/dentaheal-api/internal/models"
)

// MemoryAccounts is an in-process AccountRepository used in tests and
// when no MongoDB URI is configured.
type MemoryAccounts struct {
	mu       sync.Mutex
	byID     map[primitive.ObjectID]models.Account
	idByMail map[string]primitive.ObjectID
}

func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{
		byID:     make(map[primitive.ObjectID]models.Account),
		idByMail: make(map[string]primitive.ObjectID),
	}
}

func (m *MemoryAccounts) Create(_ context.Context, acc *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc.Email = models.NormalizeEmail(acc.Email)
	if _, taken := m.idByMail[acc.Email]; taken {
		return ErrDuplicateEmail
	}
	if acc.ID.IsZero() {
		acc.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	acc.CreatedAt, acc.UpdatedAt = now, now

	m.byID[acc.ID] = cloneAccount(*acc)
	m.idByMail[acc.Email] = acc.ID
	return nil
}

func (m *MemoryAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.idByMail[models.NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	acc := cloneAccount(m.byID[id])
	return &acc, nil
}

func (m *MemoryAccounts) GetByID(_ context.Context, id primitive.ObjectID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	acc = cloneAccount(acc)
	return &acc, nil
}

func (m *MemoryAccounts) ClearOTP(_ context.Context, id primitive.ObjectID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.byID[id]
	if !ok || acc.OTP == nil || *acc.OTP != code {
		return ErrConflict
	}
	acc.OTP, acc.OTPExpiresAt = nil, nil
	acc.UpdatedAt = time.Now().UTC()
	m.byID[id] = acc
	return nil
}

func (m *MemoryAccounts) Delete(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	delete(m.idByMail, acc.Email)
	return nil
}

func (m *MemoryAccounts) UpdateProfile(_ context.Context, id primitive.ObjectID, update ProfileUpdate) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Name != nil {
		acc.Name = *update.Name
	}
	if update.Phone != nil {
		acc.PhoneNumber = *update.Phone
	}
	acc.UpdatedAt = time.Now().UTC()
	m.byID[id] = acc

	out := cloneAccount(acc)
	return &out, nil
}

func (m *MemoryAccounts) ListDoctors(_ context.Context) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doctors := make([]models.Account, 0)
	for _, acc := range m.byID {
		if acc.Role == models.RoleDoctor && !acc.IsPending() {
			doctors = append(doctors, cloneAccount(acc))
		}
	}
	sort.Slice(doctors, func(i, j int) bool { return doctors[i].Name < doctors[j].Name })
	return doctors, nil
}

func (m *MemoryAccounts) DeleteExpiredPending(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, acc := range m.byID {
		if acc.IsPending() && acc.OTPExpiresAt != nil && acc.OTPExpiresAt.Before(cutoff) {
			delete(m.byID, id)
			delete(m.idByMail, acc.Email)
			n++
		}
	}
	return n, nil
}

func cloneAccount(acc models.Account) models.Account {
	if acc.OTP != nil {
		code := *acc.OTP
		acc.OTP = &code
	}
	if acc.OTPExpiresAt != nil {
		exp := *acc.OTPExpiresAt
		acc.OTPExpiresAt = &exp
	}
	if acc.Doctor != nil {
		d := *acc.Doctor
		acc.Doctor = &d
	}
	return acc
}

// MemoryAppointments is an in-process AppointmentRepository.
type MemoryAppointments struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Appointment
}

func NewMemoryAppointments() *MemoryAppointments {
	return &MemoryAppointments{byID: make(map[primitive.ObjectID]models.Appointment)}
}

func (m *MemoryAppointments) Create(_ context.Context, apt *models.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if apt.ID.IsZero() {
		apt.ID = primitive.NewObjectID()
	}
	if apt.Cures == nil {
		apt.Cures = []models.Cure{}
	}
	now := time.Now().UTC()
	apt.CreatedAt, apt.UpdatedAt = now, now
	m.byID[apt.ID] = cloneAppointment(*apt)
	return nil
}

func (m *MemoryAppointments) GetByID(_ context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	apt, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	apt = cloneAppointment(apt)
	return &apt, nil
}

func (m *MemoryAppointments) ListByPatient(_ context.Context, patientID primitive.ObjectID) ([]models.Appointment, error) {
	return m.list(func(a models.Appointment) bool { return a.PatientID == patientID }), nil
}

func (m *MemoryAppointments) ListByDoctor(_ context.Context, doctorID primitive.ObjectID) ([]models.Appointment, error) {
	return m.list(func(a models.Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (m *MemoryAppointments) AppendCure(_ context.Context, id primitive.ObjectID, cure models.Cure, status models.AppointmentStatus) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	apt, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if apt.Status == models.StatusCancelled {
		return nil, ErrConflict
	}
	apt = cloneAppointment(apt)
	apt.Cures = append(apt.Cures, cure)
	apt.Status = status
	apt.UpdatedAt = time.Now().UTC()
	m.byID[id] = apt

	out := cloneAppointment(apt)
	return &out, nil
}

func (m *MemoryAppointments) SetStatus(_ context.Context, id primitive.ObjectID, status models.AppointmentStatus, from ...models.AppointmentStatus) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	apt, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if len(from) > 0 && !slices.Contains(from, apt.Status) {
		return nil, ErrConflict
	}
	apt.Status = status
	apt.UpdatedAt = time.Now().UTC()
	m.byID[id] = apt

	out := cloneAppointment(apt)
	return &out, nil
}

func (m *MemoryAppointments) list(match func(models.Appointment) bool) []models.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Appointment, 0)
	for _, apt := range m.byID {
		if match(apt) {
			out = append(out, cloneAppointment(apt))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return out[i].Date.After(out[j].Date)
	})
	return out
}

func cloneAppointment(apt models.Appointment) models.Appointment {
	cures := make([]models.Cure, len(apt.Cures))
	copy(cures, apt.Cures)
	apt.Cures = cures
	return apt
}

var (
	_ AccountRepository     = (*MemoryAccounts)(nil)
	_ AppointmentRepository = (*MemoryAppointments)(nil)
)
