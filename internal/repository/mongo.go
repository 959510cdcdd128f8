package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

const (
	productsCollection = "products"
	ordersCollection   = "orders"
	usersCollection    = "users"
)

// MongoStore stores each entity in its own collection, keyed by the
// application id rather than Mongo's _id.
type MongoStore struct {
	products *mongo.Collection
	orders   *mongo.Collection
	users    *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		products: db.Collection(productsCollection),
		orders:   db.Collection(ordersCollection),
		users:    db.Collection(usersCollection),
	}
}

// EnsureIndexes creates the unique lookup indexes. Safe to call on every start.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	for coll, key := range map[*mongo.Collection]string{
		s.products: "id",
		s.orders:   "id",
		s.users:    "email",
	} {
		_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: key, Value: 1}},
			Options: unique,
		})
		if err != nil {
			return fmt.Errorf("create index %s.%s: %w", coll.Name(), key, err)
		}
	}
	_, err := s.orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	return err
}

func (s *MongoStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	cursor, err := s.products.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *MongoStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := s.products.FindOne(ctx, bson.M{"id": id}).Decode(&p); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *MongoStore) CreateProduct(ctx context.Context, p *models.Product) error {
	_, err := s.products.InsertOne(ctx, p)
	return duplicate(err)
}

func (s *MongoStore) UpdateProduct(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error) {
	set := bson.M{}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Price != nil {
		set["price"] = *update.Price
	}
	if update.Stock != nil {
		set["stock"] = *update.Stock
	}
	if update.Available != nil {
		set["available"] = *update.Available
	}
	if len(set) == 0 {
		return s.GetProduct(ctx, id)
	}

	var p models.Product
	err := s.products.FindOneAndUpdate(ctx, bson.M{"id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&p)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *MongoStore) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.products.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ReserveStock decrements each product with a conditional update so two
// concurrent checkouts cannot both take the last unit. Decrements already
// applied are given back if a later item fails.
func (s *MongoStore) ReserveStock(ctx context.Context, items []models.OrderItem) error {
	var reserved []models.OrderItem
	rollback := func() {
		for _, r := range reserved {
			_, _ = s.products.UpdateOne(ctx, bson.M{"id": r.ProductID},
				bson.M{"$inc": bson.M{"stock": r.Quantity}, "$set": bson.M{"available": true}})
		}
	}

	for _, item := range items {
		res, err := s.products.UpdateOne(ctx,
			bson.M{"id": item.ProductID, "available": true, "stock": bson.M{"$gte": item.Quantity}},
			bson.M{"$inc": bson.M{"stock": -item.Quantity}})
		if err != nil {
			rollback()
			return err
		}
		if res.MatchedCount == 0 {
			rollback()
			return &ItemError{Item: item, Err: s.reserveFailure(ctx, item.ProductID)}
		}
		reserved = append(reserved, item)
	}

	ids := make([]string, 0, len(reserved))
	for _, r := range reserved {
		ids = append(ids, r.ProductID)
	}
	_, err := s.products.UpdateMany(ctx,
		bson.M{"id": bson.M{"$in": ids}, "stock": bson.M{"$lte": 0}},
		bson.M{"$set": bson.M{"available": false}})
	return err
}

// reserveFailure explains why a conditional decrement matched nothing.
func (s *MongoStore) reserveFailure(ctx context.Context, id string) error {
	p, err := s.GetProduct(ctx, id)
	switch {
	case err != nil:
		return err
	case !p.Available:
		return ErrProductUnavailable
	default:
		return ErrInsufficientStock
	}
}

func (s *MongoStore) CreateOrder(ctx context.Context, o *models.Order) error {
	_, err := s.orders.InsertOne(ctx, o)
	return duplicate(err)
}

func (s *MongoStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(1000)
	cursor, err := s.orders.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *MongoStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := s.orders.FindOne(ctx, bson.M{"id": id}).Decode(&o); err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *MongoStore) UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) (*models.Order, error) {
	var o models.Order
	err := s.orders.FindOneAndUpdate(ctx,
		bson.M{"id": id, "status": from},
		bson.M{"$set": bson.M{"status": to}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&o)
	if err == nil {
		return &o, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	if _, getErr := s.GetOrder(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrStatusChanged
}

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.users.InsertOne(ctx, u)
	return duplicate(err)
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}
