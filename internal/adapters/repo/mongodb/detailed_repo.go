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

type detailedDoc struct {
	ID        string    `bson:"_id"`
	ProductID string    `bson:"product_id"`
	Source    string    `bson:"source"`
	Quantity  float64   `bson:"quantity"`
	Payload   bson.M    `bson:"payload"`
	State     string    `bson:"state"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d *detailedDoc) toDomain() (*domain.DetailedStockRecord, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	pid, err := uuid.Parse(d.ProductID)
	if err != nil {
		return nil, err
	}
	return &domain.DetailedStockRecord{
		ID:        id,
		ProductID: pid,
		Source:    domain.IntakeSource(d.Source),
		Quantity:  d.Quantity,
		Payload:   map[string]any(d.Payload),
		State:     domain.CommitState(d.State),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

type DetailedRecordRepo struct{ coll *mongo.Collection }

func NewDetailedRecordRepo(db *mongo.Database) *DetailedRecordRepo {
	return &DetailedRecordRepo{coll: db.Collection(detailedCollection)}
}

func (r *DetailedRecordRepo) Append(ctx context.Context, rec *domain.DetailedStockRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, detailedDoc{
		ID:        rec.ID.String(),
		ProductID: rec.ProductID.String(),
		Source:    string(rec.Source),
		Quantity:  rec.Quantity,
		Payload:   bson.M(rec.Payload),
		State:     string(rec.State),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	})
	return err
}

func (r *DetailedRecordRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.DetailedStockRecord, error) {
	var doc detailedDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain()
}

func (r *DetailedRecordRepo) UpdateState(ctx context.Context, id uuid.UUID, state domain.CommitState) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": bson.M{
		"state":      string(state),
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *DetailedRecordRepo) ListPending(ctx context.Context) ([]domain.DetailedStockRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"state": bson.M{"$ne": string(domain.StateCommitted)}}, opts)
	if err != nil {
		return nil, err
	}
	var docs []detailedDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	list := make([]domain.DetailedStockRecord, 0, len(docs))
	for i := range docs {
		rec, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		list = append(list, *rec)
	}
	return list, nil
}
