package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

const (
	cartsCollection   = "carts"
	incrementAttempts = 3
)

var errConcurrentModification = errors.New("cart modified concurrently")

type cartDocument struct {
	ID        string         `bson:"_id"`
	UserID    string         `bson:"user_id,omitempty"`
	Items     []lineDocument `bson:"items"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type lineDocument struct {
	ProductID string    `bson:"product_id"`
	Quantity  int       `bson:"quantity"`
	AddedAt   time.Time `bson:"added_at"`
}

// ConnectMongo opens a client against uri and returns the named database
// after a successful ping.
func ConnectMongo(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(5)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client.Database(database), nil
}

// MongoStore keeps each cart as a single document with embedded lines.
type MongoStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoStore binds the store to the carts collection of database.
func NewMongoStore(database *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: database.Collection(cartsCollection),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateIndexes ensures the user lookup index exists.
func (s *MongoStore) CreateIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}},
		Options: options.Index().SetSparse(true),
	})
	if err != nil {
		return fmt.Errorf("create cart indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateCart(ctx context.Context) (Cart, error) {
	now := s.now()
	doc := cartDocument{
		ID:        uuid.NewString(),
		Items:     []lineDocument{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return Cart{}, fmt.Errorf("insert cart: %w", err)
	}
	return doc.toCart(), nil
}

func (s *MongoStore) GetCart(ctx context.Context, cartID string) (Cart, error) {
	doc, err := s.find(ctx, bson.M{"_id": cartID})
	if err != nil {
		return Cart{}, err
	}
	return doc.toCart(), nil
}

func (s *MongoStore) FindCartByUser(ctx context.Context, userID string) (Cart, error) {
	if userID == "" {
		return Cart{}, ErrNotFound
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	var doc cartDocument
	err := s.collection.FindOne(ctx, bson.M{"user_id": userID}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("find cart by user: %w", err)
	}
	return doc.toCart(), nil
}

func (s *MongoStore) AttachUser(ctx context.Context, cartID, userID string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": cartID},
		bson.M{"$set": bson.M{"user_id": userID, "updated_at": s.now()}},
	)
	if err != nil {
		return fmt.Errorf("attach user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementLine first tries an in-place $inc guarded by the limit, then a
// $push guarded by the line's absence. When neither matches it reads the
// cart to tell a missing cart from a full line; a line removed in between
// sends it round again.
func (s *MongoStore) IncrementLine(ctx context.Context, cartID, productID string, delta, limit int) (int, error) {
	for attempt := 0; attempt < incrementAttempts; attempt++ {
		now := s.now()

		var updated cartDocument
		err := s.collection.FindOneAndUpdate(ctx,
			bson.M{
				"_id": cartID,
				"items": bson.M{"$elemMatch": bson.M{
					"product_id": productID,
					"quantity":   bson.M{"$lte": limit - delta},
				}},
			},
			bson.M{
				"$inc": bson.M{"items.$.quantity": delta},
				"$set": bson.M{"updated_at": now},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		switch {
		case err == nil:
			if line, ok := updated.line(productID); ok {
				return line.Quantity, nil
			}
			return 0, fmt.Errorf("increment line: %w", errConcurrentModification)
		case !errors.Is(err, mongo.ErrNoDocuments):
			return 0, fmt.Errorf("increment line: %w", err)
		}

		res, err := s.collection.UpdateOne(ctx,
			bson.M{"_id": cartID, "items.product_id": bson.M{"$ne": productID}},
			bson.M{
				"$push": bson.M{"items": lineDocument{ProductID: productID, Quantity: delta, AddedAt: now}},
				"$set":  bson.M{"updated_at": now},
			},
		)
		if err != nil {
			return 0, fmt.Errorf("push line: %w", err)
		}
		if res.MatchedCount == 1 {
			return delta, nil
		}

		current, err := s.find(ctx, bson.M{"_id": cartID})
		if err != nil {
			return 0, err
		}
		if line, ok := current.line(productID); ok && line.Quantity+delta > limit {
			return 0, ErrQuantityLimit
		}
	}
	return 0, fmt.Errorf("increment line %s: %w", productID, errConcurrentModification)
}

func (s *MongoStore) SetLineQuantity(ctx context.Context, cartID, productID string, qty int) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": cartID, "items.product_id": productID},
		bson.M{"$set": bson.M{"items.$.quantity": qty, "updated_at": s.now()}},
	)
	if err != nil {
		return fmt.Errorf("set line quantity: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.find(ctx, bson.M{"_id": cartID}); err != nil {
			return err
		}
		return ErrLineNotFound
	}
	return nil
}

func (s *MongoStore) RemoveLine(ctx context.Context, cartID, productID string) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": cartID},
		bson.M{
			"$pull": bson.M{"items": bson.M{"product_id": productID}},
			"$set":  bson.M{"updated_at": s.now()},
		},
	)
	if err != nil {
		return fmt.Errorf("remove line: %w", err)
	}
	return nil
}

func (s *MongoStore) ClearLines(ctx context.Context, cartID string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": cartID},
		bson.M{"$set": bson.M{"items": bson.A{}, "updated_at": s.now()}},
	)
	if err != nil {
		return fmt.Errorf("clear lines: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ReleaseLines(ctx context.Context, cartID string, lines []pricing.Line) error {
	if len(lines) == 0 {
		_, err := s.find(ctx, bson.M{"_id": cartID})
		return err
	}
	for _, l := range lines {
		now := s.now()
		res, err := s.collection.UpdateOne(ctx,
			bson.M{
				"_id": cartID,
				"items": bson.M{"$elemMatch": bson.M{
					"product_id": l.ProductID,
					"quantity":   bson.M{"$gt": l.Quantity},
				}},
			},
			bson.M{
				"$inc": bson.M{"items.$.quantity": -l.Quantity},
				"$set": bson.M{"updated_at": now},
			},
		)
		if err != nil {
			return fmt.Errorf("release line %s: %w", l.ProductID, err)
		}
		if res.MatchedCount == 1 {
			continue
		}
		res, err = s.collection.UpdateOne(ctx,
			bson.M{"_id": cartID},
			bson.M{
				"$pull": bson.M{"items": bson.M{
					"product_id": l.ProductID,
					"quantity":   bson.M{"$lte": l.Quantity},
				}},
				"$set": bson.M{"updated_at": now},
			},
		)
		if err != nil {
			return fmt.Errorf("release line %s: %w", l.ProductID, err)
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// Ping reports whether the backing deployment answers.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, nil)
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) (cartDocument, error) {
	var doc cartDocument
	if err := s.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return cartDocument{}, ErrNotFound
		}
		return cartDocument{}, fmt.Errorf("find cart: %w", err)
	}
	return doc, nil
}

func (d cartDocument) line(productID string) (lineDocument, bool) {
	for _, l := range d.Items {
		if l.ProductID == productID {
			return l, true
		}
	}
	return lineDocument{}, false
}

func (d cartDocument) toCart() Cart {
	c := Cart{
		ID:        d.ID,
		UserID:    optional(d.UserID),
		Lines:     make([]pricing.Line, 0, len(d.Items)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, l := range d.Items {
		c.Lines = append(c.Lines, pricing.Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return c
}
