package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"egress-worker/internal/domain"
	"egress-worker/pkg/log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoDBManager serves the egress address registry and stores job failures
type MongoDBManager struct {
	client    *mongo.Client
	database  *mongo.Database
	addresses *mongo.Collection
	jobErrors *mongo.Collection
}

// AddressDocument represents one egress identifier in the registry collection.
// Addresses are stored in canonical text form (net.IP.String) so that lookups
// by the interface lister's output match.
type AddressDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	EgressID  int64              `bson:"egress_id" json:"egress_id"`
	IPv4      string             `bson:"ipv4,omitempty" json:"ipv4,omitempty"`
	IPv6      string             `bson:"ipv6,omitempty" json:"ipv6,omitempty"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// JobErrorDocument represents a reported job failure
type JobErrorDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	JobID     string             `bson:"job_id" json:"job_id"`
	ClassName string             `bson:"class_name" json:"class_name"`
	ErrorType string             `bson:"error_type" json:"error_type"`
	Message   string             `bson:"message" json:"message"`
	WorkerID  string             `bson:"worker_id" json:"worker_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// NewMongoDBManager creates a new MongoDB manager
func NewMongoDBManager(connectionString, databaseName, addressCollection, errorCollection string) (*MongoDBManager, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(databaseName)
	m := &MongoDBManager{
		client:    client,
		database:  database,
		addresses: database.Collection(addressCollection),
		jobErrors: database.Collection(errorCollection),
	}

	if err = m.createIndexes(ctx); err != nil {
		log.L().Warn("Failed to create indexes", zap.Error(err))
	}

	log.L().Info("Connected to MongoDB", zap.String("database", databaseName),
		zap.String("address_collection", addressCollection), zap.String("error_collection", errorCollection))

	return m, nil
}

func (m *MongoDBManager) createIndexes(ctx context.Context) error {
	_, err := m.addresses.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ipv4", Value: 1}},
			Options: options.Index().SetName("ipv4_idx").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "ipv6", Value: 1}},
			Options: options.Index().SetName("ipv6_idx").SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("address indexes: %w", err)
	}

	_, err = m.jobErrors.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "job_id", Value: 1}},
			Options: options.Index().SetName("job_id_idx"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("created_at_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("job error indexes: %w", err)
	}
	return nil
}

// Lookup implements domain.AddressResolver. An IP without a registry entry
// yields a nil record and no error.
func (m *MongoDBManager) Lookup(ctx context.Context, ip string) (*domain.AddressRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc AddressDocument
	err := m.addresses.FindOne(ctx, AddressFilter(ip)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up address %s: %w", ip, err)
	}

	return doc.ToRecord(), nil
}

// SaveAddress upserts the registry entry for rec.ID, canonicalizing its addresses
func (m *MongoDBManager) SaveAddress(ctx context.Context, rec *domain.AddressRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	doc, err := NewAddressDocument(rec)
	if err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{
		"ipv4":       doc.IPv4,
		"ipv6":       doc.IPv6,
		"updated_at": time.Now(),
	}}
	opts := options.Update().SetUpsert(true)
	if _, err := m.addresses.UpdateOne(ctx, bson.M{"egress_id": doc.EgressID}, update, opts); err != nil {
		return fmt.Errorf("failed to save address %s: %w", rec.ID, err)
	}
	return nil
}

// SaveJobError stores a job failure report
func (m *MongoDBManager) SaveJobError(ctx context.Context, doc *JobErrorDocument) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if _, err := m.jobErrors.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to save job error: %w", err)
	}
	return nil
}

// RecentJobErrors returns the most recent job failures, newest first
func (m *MongoDBManager) RecentJobErrors(ctx context.Context, limit int64) ([]*JobErrorDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := m.jobErrors.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query job errors: %w", err)
	}
	defer cursor.Close(ctx)

	var results []*JobErrorDocument
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode job errors: %w", err)
	}
	return results, nil
}

// Close closes the MongoDB connection
func (m *MongoDBManager) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	log.L().Info("MongoDB connection closed")
	return nil
}

// AddressFilter matches a registry document by either address family
func AddressFilter(ip string) bson.M {
	ip = canonicalIP(ip)
	return bson.M{"$or": []bson.M{{"ipv4": ip}, {"ipv6": ip}}}
}

// NewAddressDocument converts a domain record to its stored form
func NewAddressDocument(rec *domain.AddressRecord) (*AddressDocument, error) {
	id, err := strconv.ParseInt(rec.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("egress id %q is not numeric: %w", rec.ID, err)
	}
	if rec.IPv4 == "" && rec.IPv6 == "" {
		return nil, fmt.Errorf("egress id %s has no address", rec.ID)
	}
	return &AddressDocument{
		EgressID: id,
		IPv4:     canonicalIP(rec.IPv4),
		IPv6:     canonicalIP(rec.IPv6),
	}, nil
}

// ToRecord converts the document to a domain record
func (d *AddressDocument) ToRecord() *domain.AddressRecord {
	return &domain.AddressRecord{
		ID:   strconv.FormatInt(d.EgressID, 10),
		IPv4: canonicalIP(d.IPv4),
		IPv6: canonicalIP(d.IPv6),
	}
}
