package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"garagebook/internal/config"
	"garagebook/internal/models"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type bookingDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Phone     string             `bson:"phone"`
	Service   string             `bson:"service"`
	Date      string             `bson:"date"`
	CarModel  string             `bson:"carModel"`
	Message   string             `bson:"message"`
	Status    string             `bson:"status"`
	Archived  bool               `bson:"archived"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *bookingDocument) toModel() models.Booking {
	return models.Booking{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Email:     d.Email,
		Phone:     d.Phone,
		Service:   d.Service,
		Date:      d.Date,
		CarModel:  d.CarModel,
		Message:   d.Message,
		Status:    d.Status,
		Archived:  d.Archived,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

// MongoBookingRepository stores bookings in a single MongoDB collection.
type MongoBookingRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zerolog.Logger
}

// NewMongoBookingRepository connects, pings the primary and ensures indexes.
func NewMongoBookingRepository(ctx context.Context, cfg config.MongoConfig, logger *zerolog.Logger) (*MongoBookingRepository, error) {
	timeout := time.Duration(cfg.ConnectTimeoutSeconds) * time.Second
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	repo := newMongoBookingRepository(client.Database(cfg.Database).Collection(cfg.Collection), logger)
	repo.client = client

	if err := repo.ensureIndexes(connectCtx); err != nil {
		repo.logger.Warn().Err(err).Msg("Failed to create booking indexes")
	}

	return repo, nil
}

func newMongoBookingRepository(collection *mongo.Collection, logger *zerolog.Logger) *MongoBookingRepository {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &MongoBookingRepository{collection: collection, logger: logger}
}

func (r *MongoBookingRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "archived", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	return err
}

func (r *MongoBookingRepository) CreateBooking(ctx context.Context, booking *models.Booking) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	doc := bookingDocument{
		Name:      booking.Name,
		Email:     booking.Email,
		Phone:     booking.Phone,
		Service:   booking.Service,
		Date:      booking.Date,
		CarModel:  booking.CarModel,
		Message:   booking.Message,
		Status:    booking.Status,
		Archived:  booking.Archived,
		CreatedAt: booking.CreatedAt,
		UpdatedAt: booking.UpdatedAt,
	}

	res, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *MongoBookingRepository) ListActiveBookings(ctx context.Context) ([]models.Booking, error) {
	return r.find(ctx, bson.M{"archived": false})
}

func (r *MongoBookingRepository) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	oid, ok := parseObjectID(id)
	if !ok {
		return nil, nil
	}

	var doc bookingDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	booking := doc.toModel()
	return &booking, nil
}

// SearchBookings matches term literally and case-insensitively against
// name, phone and service of active bookings.
func (r *MongoBookingRepository) SearchBookings(ctx context.Context, term string) ([]models.Booking, error) {
	pattern := bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
	filter := bson.M{
		"archived": false,
		"$or": bson.A{
			bson.M{"name": pattern},
			bson.M{"phone": pattern},
			bson.M{"service": pattern},
		},
	}
	return r.find(ctx, filter)
}

func (r *MongoBookingRepository) UpdateBookingStatus(ctx context.Context, id string, status string) (bool, error) {
	return r.update(ctx, id, bson.M{"status": status})
}

func (r *MongoBookingRepository) ArchiveBooking(ctx context.Context, id string) (bool, error) {
	return r.update(ctx, id, bson.M{"archived": true})
}

func (r *MongoBookingRepository) DeleteBooking(ctx context.Context, id string) (bool, error) {
	oid, ok := parseObjectID(id)
	if !ok {
		return false, nil
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("failed to delete booking: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// CountActiveBookings counts non-archived bookings; an empty status counts all.
func (r *MongoBookingRepository) CountActiveBookings(ctx context.Context, status string) (int64, error) {
	filter := bson.M{"archived": false}
	if status != "" {
		filter["status"] = status
	}
	n, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return n, nil
}

func (r *MongoBookingRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *MongoBookingRepository) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}

func (r *MongoBookingRepository) find(ctx context.Context, filter bson.M) ([]models.Booking, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bookingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	bookings := make([]models.Booking, 0, len(docs))
	for i := range docs {
		bookings = append(bookings, docs[i].toModel())
	}
	return bookings, nil
}

func (r *MongoBookingRepository) update(ctx context.Context, id string, set bson.M) (bool, error) {
	oid, ok := parseObjectID(id)
	if !ok {
		return false, nil
	}
	set["updatedAt"] = time.Now().UTC()
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to update booking: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func parseObjectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}
