package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/otpgate/internal/auth/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
)

const collectionName = "auth_enrollments"

type enrollmentDocument struct {
	ID              int64              `bson:"_id"`
	Username        string             `bson:"username"`
	Email           string             `bson:"email"`
	PasswordHash    string             `bson:"password_hash"`
	SecretEncrypted []byte             `bson:"secret_encrypted"`
	CreatedAt       primitive.DateTime `bson:"created_at"`
}

func toDocument(in entity.Enrollment) enrollmentDocument {
	return enrollmentDocument{
		ID:              in.ID,
		Username:        in.Username,
		Email:           in.Email,
		PasswordHash:    in.PasswordHash,
		SecretEncrypted: in.SecretEncrypted,
		CreatedAt:       primitive.NewDateTimeFromTime(in.CreatedAt),
	}
}

func (d enrollmentDocument) toEntity() *entity.Enrollment {
	return &entity.Enrollment{
		ID:              d.ID,
		Username:        d.Username,
		Email:           d.Email,
		PasswordHash:    d.PasswordHash,
		SecretEncrypted: d.SecretEncrypted,
		CreatedAt:       d.CreatedAt.Time(),
	}
}

// Mongo stores enrollments in a MongoDB collection keyed by snowflake id,
// with a unique index on username.
type Mongo struct {
	coll *mongo.Collection
	ins  instrument.Instrumentation
}

func NewMongo(db *mongo.Database, ins instrument.Instrumentation) *Mongo {
	return &Mongo{coll: db.Collection(collectionName), ins: ins}
}

func (m *Mongo) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return m.ins.Tracer("auth.outbound.mongo").Start(ctx, name)
}

func (m *Mongo) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return goerror.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return goerror.ErrConflict
	default:
		return err
	}
}

// Migrate ensures the unique username index.
func (m *Mongo) Migrate(ctx context.Context) (err error) {
	ctx, span := m.startSpan(ctx, "Migrate")
	defer func() { m.endSpan(span, err) }()

	_, err = m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_username"),
	})
	return err
}

func (m *Mongo) GetEnrollment(ctx context.Context, username string) (_ *entity.Enrollment, err error) {
	ctx, span := m.startSpan(ctx, "GetEnrollment")
	defer func() { m.endSpan(span, err) }()

	var doc enrollmentDocument
	if err = m.coll.FindOne(ctx, bson.M{"username": username}).Decode(&doc); err != nil {
		err = mapError(err)
		return nil, err
	}

	return doc.toEntity(), nil
}

func (m *Mongo) ExistsEnrollment(ctx context.Context, username string) (_ bool, err error) {
	ctx, span := m.startSpan(ctx, "ExistsEnrollment")
	defer func() { m.endSpan(span, err) }()

	n, err := m.coll.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	if err != nil {
		return false, mapError(err)
	}

	return n > 0, nil
}

func (m *Mongo) CreateEnrollment(ctx context.Context, in entity.Enrollment) (err error) {
	ctx, span := m.startSpan(ctx, "CreateEnrollment")
	defer func() { m.endSpan(span, err) }()

	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}

	_, err = m.coll.InsertOne(ctx, toDocument(in))
	err = mapError(err)
	return err
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.coll.Database().Client().Ping(ctx, readpref.Primary())
}
