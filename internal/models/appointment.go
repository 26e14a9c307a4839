package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Terminal reports whether no further status change is allowed.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type Appointment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	PatientID primitive.ObjectID `bson:"userId" json:"userId"`
	DoctorID  primitive.ObjectID `bson:"doctorId" json:"doctorId"`
	Date      time.Time          `bson:"date" json:"date"`
	Status    AppointmentStatus  `bson:"status" json:"status"`
	Problem   string             `bson:"problem" json:"problem"`
	Cures     []Cure             `bson:"cures" json:"cures"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Cure is one treatment entry appended by the treating doctor.
type Cure struct {
	ID          primitive.ObjectID `bson:"_id" json:"_id"`
	Description string             `bson:"description" json:"description"`
	Image       string             `bson:"image,omitempty" json:"image,omitempty"`
	Date        time.Time          `bson:"date" json:"date"`
}

// AppointmentView is an appointment enriched with the counterpart's public profile.
// Doctor is set on patient listings, User on doctor listings.
type AppointmentView struct {
	Appointment
	Doctor *PublicProfile `json:"doctor,omitempty"`
	User   *PublicProfile `json:"user,omitempty"`
}
