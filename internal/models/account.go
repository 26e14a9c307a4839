package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role discriminates account variants.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// DoctorDetails holds the fields only a doctor account carries.
type DoctorDetails struct {
	Speciality string `bson:"speciality" json:"speciality"`
}

// Account is a patient or doctor login. Doctor is non-nil exactly when Role is RoleDoctor.
type Account struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Role         Role               `bson:"role" json:"role"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PhoneNumber  string             `bson:"phoneNumber" json:"phoneNumber"`
	Password     string             `bson:"password" json:"-"`
	Doctor       *DoctorDetails     `bson:"doctor,omitempty" json:"doctor,omitempty"`
	OTP          *string            `bson:"otp" json:"-"`
	OTPExpiresAt *time.Time         `bson:"otpExpiresAt" json:"-"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NewPatient builds a pending patient account.
func NewPatient(name, email, phone, passwordHash string) *Account {
	return &Account{
		Role:        RolePatient,
		Name:        strings.TrimSpace(name),
		Email:       NormalizeEmail(email),
		PhoneNumber: phone,
		Password:    passwordHash,
	}
}

// NewDoctor builds a pending doctor account.
func NewDoctor(name, email, phone, passwordHash, speciality string) *Account {
	acc := NewPatient(name, email, phone, passwordHash)
	acc.Role = RoleDoctor
	acc.Doctor = &DoctorDetails{Speciality: strings.TrimSpace(speciality)}
	return acc
}

// IsPending reports whether the account still waits for OTP verification.
func (a *Account) IsPending() bool {
	return a.OTP != nil
}

// Speciality returns the doctor speciality, or "" for patients.
func (a *Account) Speciality() string {
	if a.Doctor == nil {
		return ""
	}
	return a.Doctor.Speciality
}

// Public returns the fields safe to show to the other party of an appointment.
func (a *Account) Public() PublicProfile {
	return PublicProfile{
		ID:          a.ID,
		Name:        a.Name,
		Email:       a.Email,
		PhoneNumber: a.PhoneNumber,
		Speciality:  a.Speciality(),
	}
}

// PublicProfile is the counterpart view embedded in appointment listings.
type PublicProfile struct {
	ID          primitive.ObjectID `json:"_id"`
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	PhoneNumber string             `json:"phoneNumber"`
	Speciality  string             `json:"speciality,omitempty"`
}

// NormalizeEmail trims and lower-cases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
