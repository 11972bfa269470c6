package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phenrril/printstock/internal/domain"
)

type ledgerDoc struct {
	ID           string    `bson:"_id"`
	ProductID    string    `bson:"product_id"`
	SubmissionID string    `bson:"submission_id,omitempty"`
	Quantity     float64   `bson:"quantity"`
	Direction    string    `bson:"direction"`
	Timestamp    time.Time `bson:"timestamp"`
}

func (d *ledgerDoc) toDomain() (*domain.LedgerEntry, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	pid, err := uuid.Parse(d.ProductID)
	if err != nil {
		return nil, err
	}
	e := &domain.LedgerEntry{ID: id, ProductID: pid, Quantity: d.Quantity, Direction: domain.Direction(d.Direction), Timestamp: d.Timestamp}
	if d.SubmissionID != "" {
		sid, err := uuid.Parse(d.SubmissionID)
		if err != nil {
			return nil, err
		}
		e.SubmissionID = &sid
	}
	return e, nil
}

type LedgerRepo struct{ coll *mongo.Collection }

func NewLedgerRepo(db *mongo.Database) *LedgerRepo {
	return &LedgerRepo{coll: db.Collection(ledgerCollection)}
}

func (r *LedgerRepo) Append(ctx context.Context, e *domain.LedgerEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	doc := ledgerDoc{
		ID:        e.ID.String(),
		ProductID: e.ProductID.String(),
		Quantity:  e.Quantity,
		Direction: string(e.Direction),
		Timestamp: e.Timestamp,
	}
	if e.SubmissionID != nil {
		doc.SubmissionID = e.SubmissionID.String()
	}
	_, err := r.coll.InsertOne(ctx, doc)
	return err
}

func (r *LedgerRepo) FindBySubmission(ctx context.Context, submissionID uuid.UUID) (*domain.LedgerEntry, error) {
	var doc ledgerDoc
	if err := r.coll.FindOne(ctx, bson.M{"submission_id": submissionID.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain()
}

func (r *LedgerRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]domain.LedgerEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"product_id": productID.String()}, opts)
	if err != nil {
		return nil, err
	}
	var docs []ledgerDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	list := make([]domain.LedgerEntry, 0, len(docs))
	for i := range docs {
		e, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, nil
}

func (r *LedgerRepo) SumByProduct(ctx context.Context, productID uuid.UUID) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"product_id": productID.String()}}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"total": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$direction", string(domain.DirectionOut)}},
				bson.M{"$multiply": bson.A{"$quantity", -1}},
				"$quantity",
			}}},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	var out []struct {
		Total float64 `bson:"total"`
	}
	if err := cur.All(ctx, &out); err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, nil
	}
	return domain.RoundTo(out[0].Total, domain.ComparePlaces), nil
}
