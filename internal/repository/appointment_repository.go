package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/dentaheal-api/internal/models"
)

type mongoAppointmentRepository struct {
	coll *mongo.Collection
}

// NewAppointmentRepository returns the MongoDB backed ledger store.
func NewAppointmentRepository(db *mongo.Database) AppointmentRepository {
	return &mongoAppointmentRepository{coll: db.Collection(appointmentsCollection)}
}

func (r *mongoAppointmentRepository) Create(ctx context.Context, apt *models.Appointment) error {
	now := time.Now().UTC()
	if apt.ID.IsZero() {
		apt.ID = primitive.NewObjectID()
	}
	if apt.Cures == nil {
		apt.Cures = []models.Cure{}
	}
	apt.CreatedAt, apt.UpdatedAt = now, now

	_, err := r.coll.InsertOne(ctx, apt)
	return err
}

func (r *mongoAppointmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	var apt models.Appointment
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&apt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &apt, nil
}

func (r *mongoAppointmentRepository) ListByPatient(ctx context.Context, patientID primitive.ObjectID) ([]models.Appointment, error) {
	return r.list(ctx, bson.M{"userId": patientID})
}

func (r *mongoAppointmentRepository) ListByDoctor(ctx context.Context, doctorID primitive.ObjectID) ([]models.Appointment, error) {
	return r.list(ctx, bson.M{"doctorId": doctorID})
}

func (r *mongoAppointmentRepository) AppendCure(ctx context.Context, id primitive.ObjectID, cure models.Cure, status models.AppointmentStatus) (*models.Appointment, error) {
	filter := bson.M{"_id": id, "status": bson.M{"$ne": models.StatusCancelled}}
	apt, err := r.update(ctx, filter, bson.M{
		"$push": bson.M{"cures": cure},
		"$set":  bson.M{"status": status, "updatedAt": time.Now().UTC()},
	})
	return apt, r.conflictOrMissing(ctx, id, err)
}

func (r *mongoAppointmentRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status models.AppointmentStatus, from ...models.AppointmentStatus) (*models.Appointment, error) {
	filter := bson.M{"_id": id}
	if len(from) > 0 {
		filter["status"] = bson.M{"$in": from}
	}
	apt, err := r.update(ctx, filter, bson.M{
		"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()},
	})
	if len(from) == 0 {
		return apt, err
	}
	return apt, r.conflictOrMissing(ctx, id, err)
}

// conflictOrMissing tells a guarded update that matched nothing because the
// status guard failed (ErrConflict) from one whose document is gone.
func (r *mongoAppointmentRepository) conflictOrMissing(ctx context.Context, id primitive.ObjectID, err error) error {
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	if _, getErr := r.GetByID(ctx, id); getErr == nil {
		return ErrConflict
	}
	return err
}

func (r *mongoAppointmentRepository) update(ctx context.Context, filter, update bson.M) (*models.Appointment, error) {
	var apt models.Appointment
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&apt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &apt, nil
}

func (r *mongoAppointmentRepository) list(ctx context.Context, filter bson.M) ([]models.Appointment, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	appointments := make([]models.Appointment, 0)
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}
