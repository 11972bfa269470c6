package mongodb

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phenrril/printstock/internal/domain"
)

type productDoc struct {
	ID          string     `bson:"_id"`
	Name        string     `bson:"name"`
	NameLower   string     `bson:"name_lower"`
	Category    string     `bson:"category"`
	IdentityKey string     `bson:"identity_key"`
	Stock       float64    `bson:"stock"`
	Imported    bool       `bson:"imported"`
	Dimensions  bson.M     `bson:"dimensions"`
	CreatedAt   time.Time  `bson:"created_at"`
	LastUpdated *time.Time `bson:"last_updated,omitempty"`
}

func toDoc(p *domain.Product) (*productDoc, error) {
	dims, err := domain.EncodeDimensions(p.Dimensions)
	if err != nil {
		return nil, err
	}
	return &productDoc{
		ID:          p.ID.String(),
		Name:        p.Name,
		NameLower:   strings.ToLower(p.Name),
		Category:    string(p.Category),
		IdentityKey: p.IdentityKey,
		Stock:       p.Stock,
		Imported:    p.Imported,
		Dimensions:  bson.M(dims),
		CreatedAt:   p.CreatedAt,
		LastUpdated: p.LastUpdated,
	}, nil
}

func (d *productDoc) toDomain() (*domain.Product, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	cat := domain.Category(d.Category)
	dims, err := domain.DecodeDimensions(cat, map[string]any(d.Dimensions))
	if err != nil {
		return nil, err
	}
	return &domain.Product{
		ID:          id,
		Name:        d.Name,
		Category:    cat,
		IdentityKey: d.IdentityKey,
		Stock:       d.Stock,
		Imported:    d.Imported,
		Dimensions:  dims,
		CreatedAt:   d.CreatedAt,
		LastUpdated: d.LastUpdated,
	}, nil
}

type ProductRepo struct{ coll *mongo.Collection }

func NewProductRepo(db *mongo.Database) *ProductRepo {
	return &ProductRepo{coll: db.Collection(productsCollection)}
}

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	doc, err := toDoc(p)
	if err != nil {
		return err
	}
	_, err = r.coll.InsertOne(ctx, doc)
	return err
}

func (r *ProductRepo) findOne(ctx context.Context, filter bson.M) (*domain.Product, error) {
	var doc productDoc
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if err := r.coll.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain()
}

func (r *ProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *ProductRepo) FindByIdentity(ctx context.Context, key string) (*domain.Product, error) {
	return r.findOne(ctx, bson.M{"identity_key": key})
}

func (r *ProductRepo) FindByName(ctx context.Context, name string, category domain.Category) (*domain.Product, error) {
	return r.findOne(ctx, bson.M{"name_lower": strings.ToLower(strings.TrimSpace(name)), "category": string(category)})
}

func (r *ProductRepo) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = string(f.Category)
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		filter["name_lower"] = primitive.Regex{Pattern: regexp.QuoteMeta(q)}
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "created_at", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	list := make([]domain.Product, 0, len(docs))
	for i := range docs {
		p, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, nil
}

func (r *ProductRepo) UpdateDimensions(ctx context.Context, id uuid.UUID, d domain.Dimensions, identityKey string) error {
	dims, err := domain.EncodeDimensions(d)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": bson.M{
		"dimensions":   bson.M(dims),
		"identity_key": identityKey,
		"last_updated": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AdjustStock applies delta with $inc. Outgoing deltas only match documents
// holding enough stock.
func (r *ProductRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta float64) error {
	filter := bson.M{"_id": id.String()}
	if delta < 0 {
		filter["stock"] = bson.M{"$gte": -delta}
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{
		"$inc": bson.M{"stock": delta},
		"$set": bson.M{"last_updated": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrInsufficientStock
}

func (r *ProductRepo) SetStock(ctx context.Context, id uuid.UUID, stock float64) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": bson.M{
		"stock":        stock,
		"last_updated": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
