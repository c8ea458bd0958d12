package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"storefront/internal/models"
)

// MongoStore keeps products, coupons and orders (items embedded) in MongoDB.
// Every method takes its session from ctx, so inside WithTx it runs as part of
// the transaction.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) products() *mongo.Collection { return s.db.Collection(productsCollection) }
func (s *MongoStore) coupons() *mongo.Collection  { return s.db.Collection(couponsCollection) }
func (s *MongoStore) orders() *mongo.Collection   { return s.db.Collection(ordersCollection) }
func (s *MongoStore) history() *mongo.Collection  { return s.db.Collection(historyCollection) }
func (s *MongoStore) carts() *mongo.Collection    { return s.db.Collection(cartsCollection) }

// WithTx runs fn in a multi-document transaction. The driver retries fn on
// transient errors such as write conflicts between concurrent checkouts, so
// fn must not keep state across attempts.
func (s *MongoStore) WithTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx, s)
	})
	return err
}

func (s *MongoStore) GetProduct(ctx context.Context, id string) (models.Product, error) {
	var product models.Product
	err := s.products().FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	return product, notFound(err)
}

// decrementStockFilter only matches a sellable product that still has qty
// units, so the $inc never drives stock below zero.
func decrementStockFilter(productID string, qty int) bson.M {
	return bson.M{
		"_id":       productID,
		"isActive":  true,
		"isDeleted": bson.M{"$ne": true},
		"stock":     bson.M{"$gte": qty},
	}
}

func stockDelta(delta int) bson.M {
	return bson.M{"$inc": bson.M{"stock": delta}}
}

func (s *MongoStore) DecrementStock(ctx context.Context, productID string, qty int) (bool, error) {
	if qty <= 0 {
		return false, ErrInvalidQuantity
	}
	res, err := s.products().UpdateOne(ctx, decrementStockFilter(productID, qty), stockDelta(-qty))
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (s *MongoStore) IncrementStock(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	res, err := s.products().UpdateOne(ctx, bson.M{"_id": productID}, stockDelta(qty))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) FindCouponByCode(ctx context.Context, code string) (models.Coupon, error) {
	var coupon models.Coupon
	err := s.coupons().FindOne(ctx, bson.M{"code": code}).Decode(&coupon)
	return coupon, notFound(err)
}

func (s *MongoStore) IncrementCouponUsage(ctx context.Context, couponID string) error {
	res, err := s.coupons().UpdateOne(ctx, bson.M{"_id": couponID}, bson.M{"$inc": bson.M{"usedCount": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) InsertOrder(ctx context.Context, order *models.Order) error {
	_, err := s.orders().InsertOne(ctx, order)
	return duplicate(err)
}

func (s *MongoStore) GetOrderByNumber(ctx context.Context, orderNumber string) (models.Order, error) {
	var order models.Order
	err := s.orders().FindOne(ctx, bson.M{"orderNumber": orderNumber}).Decode(&order)
	return order, notFound(err)
}

func (s *MongoStore) UpdateOrderStatus(ctx context.Context, orderNumber string, from []models.OrderStatus, change models.StatusChange) (bool, error) {
	filter := bson.M{"orderNumber": orderNumber}
	if len(from) > 0 {
		filter["status"] = bson.M{"$in": from}
	}

	res, err := s.orders().UpdateOne(ctx, filter, statusChangeUpdate(change))
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func statusChangeUpdate(change models.StatusChange) bson.M {
	set := bson.M{
		"status":    change.To,
		"updatedAt": change.At,
	}
	if change.TrackingNumber != "" {
		set["trackingNumber"] = change.TrackingNumber
	}
	if change.DeliveredAt != nil {
		set["deliveredAt"] = *change.DeliveredAt
	}
	if change.EstimatedDelivery != nil {
		set["estimatedDelivery"] = *change.EstimatedDelivery
	}
	return bson.M{"$set": set}
}

func (s *MongoStore) AppendStatusHistory(ctx context.Context, entry models.OrderStatusHistory) error {
	_, err := s.history().InsertOne(ctx, entry)
	return err
}

func (s *MongoStore) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filter.Skip > 0 {
		opts.SetSkip(filter.Skip)
	}
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := s.orders().Find(ctx, orderFilterQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func orderFilterQuery(filter models.OrderFilter) bson.M {
	query := bson.M{}
	if filter.UserID != nil {
		query["userId"] = *filter.UserID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.PaymentMethod != "" {
		query["paymentMethod"] = filter.PaymentMethod
	}
	if filter.CreatedFrom != nil || filter.CreatedTo != nil {
		created := bson.M{}
		if filter.CreatedFrom != nil {
			created["$gte"] = *filter.CreatedFrom
		}
		if filter.CreatedTo != nil {
			created["$lte"] = *filter.CreatedTo
		}
		query["createdAt"] = created
	}
	return query
}

func (s *MongoStore) ListStatusHistory(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := s.history().Find(ctx, bson.M{"orderId": orderID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	history := make([]models.OrderStatusHistory, 0)
	if err := cursor.All(ctx, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *MongoStore) DeleteOrder(ctx context.Context, orderNumber string) error {
	return s.WithTx(ctx, func(ctx context.Context, _ Repository) error {
		order, err := s.GetOrderByNumber(ctx, orderNumber)
		if err != nil {
			return err
		}
		if _, err := s.orders().DeleteOne(ctx, bson.M{"_id": order.ID}); err != nil {
			return err
		}
		_, err = s.history().DeleteMany(ctx, bson.M{"orderId": order.ID})
		return err
	})
}

func (s *MongoStore) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	query := bson.M{"isDeleted": bson.M{"$ne": true}}
	if filter.AvailableOnly {
		query["isActive"] = true
	}

	total, err := s.products().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filter.Skip > 0 {
		opts.SetSkip(filter.Skip)
	}
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	cursor, err := s.products().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	products := make([]models.Product, 0)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (s *MongoStore) InsertProduct(ctx context.Context, product *models.Product) error {
	_, err := s.products().InsertOne(ctx, product)
	return duplicate(err)
}

func (s *MongoStore) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (models.Product, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var product models.Product
	err := s.products().FindOneAndUpdate(ctx, bson.M{"_id": id}, productPatchUpdate(patch), opts).Decode(&product)
	if err != nil {
		return models.Product{}, duplicate(notFound(err))
	}
	return product, nil
}

// productPatchUpdate never touches stock with $set unless the patch asks for
// it, so concurrent checkout decrements are not overwritten.
func productPatchUpdate(patch models.ProductPatch) bson.M {
	set := bson.M{"updatedAt": patch.UpdatedAt}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.SKU != nil {
		set["sku"] = *patch.SKU
	}
	if patch.Price != nil {
		set["price"] = *patch.Price
	}
	if patch.DiscountPrice != nil && !patch.ClearDiscount {
		set["discountPrice"] = *patch.DiscountPrice
	}
	if patch.Stock != nil {
		set["stock"] = *patch.Stock
	}
	if patch.IsActive != nil {
		set["isActive"] = *patch.IsActive
	}
	if patch.IsDeleted != nil {
		set["isDeleted"] = *patch.IsDeleted
	}

	update := bson.M{"$set": set}
	if patch.ClearDiscount {
		update["$unset"] = bson.M{"discountPrice": ""}
	}
	return update
}

func (s *MongoStore) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	opts := options.Find().SetSort(bson.D{{Key: "code", Value: 1}})
	cursor, err := s.coupons().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	coupons := make([]models.Coupon, 0)
	if err := cursor.All(ctx, &coupons); err != nil {
		return nil, err
	}
	return coupons, nil
}

func (s *MongoStore) GetCoupon(ctx context.Context, id string) (models.Coupon, error) {
	var coupon models.Coupon
	err := s.coupons().FindOne(ctx, bson.M{"_id": id}).Decode(&coupon)
	return coupon, notFound(err)
}

func (s *MongoStore) InsertCoupon(ctx context.Context, coupon *models.Coupon) error {
	_, err := s.coupons().InsertOne(ctx, coupon)
	return duplicate(err)
}

func (s *MongoStore) UpdateCoupon(ctx context.Context, id string, patch models.CouponPatch) (models.Coupon, error) {
	update := couponPatchUpdate(patch)
	if len(update) == 0 {
		return s.GetCoupon(ctx, id)
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var coupon models.Coupon
	err := s.coupons().FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&coupon)
	if err != nil {
		return models.Coupon{}, notFound(err)
	}
	return coupon, nil
}

func couponPatchUpdate(patch models.CouponPatch) bson.M {
	set := bson.M{}
	unset := bson.M{}
	if patch.DiscountValue != nil {
		set["discountValue"] = *patch.DiscountValue
	}
	if patch.IsActive != nil {
		set["isActive"] = *patch.IsActive
	}
	if patch.ClearExpiry {
		unset["expiresAt"] = ""
	} else if patch.ExpiresAt != nil {
		set["expiresAt"] = *patch.ExpiresAt
	}
	if patch.ClearUsageLimit {
		unset["usageLimit"] = ""
	} else if patch.UsageLimit != nil {
		set["usageLimit"] = *patch.UsageLimit
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func activeCartFilter(owner models.CartOwner) bson.M {
	if owner.Guest() {
		return bson.M{"sessionId": owner.SessionID, "userId": bson.M{"$exists": false}, "isActive": true}
	}
	return bson.M{"userId": owner.UserID, "isActive": true}
}

func (s *MongoStore) GetActiveCart(ctx context.Context, owner models.CartOwner) (models.Cart, error) {
	if owner.Guest() && owner.SessionID == "" {
		return models.Cart{}, ErrNotFound
	}
	var cart models.Cart
	err := s.carts().FindOne(ctx, activeCartFilter(owner)).Decode(&cart)
	return cart, notFound(err)
}

func (s *MongoStore) InsertCart(ctx context.Context, cart *models.Cart) error {
	_, err := s.carts().InsertOne(ctx, cart)
	return duplicate(err)
}

func (s *MongoStore) SaveCart(ctx context.Context, cart *models.Cart) error {
	res, err := s.carts().UpdateOne(ctx,
		bson.M{"_id": cart.ID, "version": cart.Version},
		bson.M{
			"$set": bson.M{"items": cart.Items, "isActive": cart.IsActive, "updatedAt": cart.UpdatedAt},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return duplicate(err)
	}
	if res.MatchedCount == 0 {
		return ErrStale
	}
	cart.Version++
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

// mongoIndexKeys maps unique index names to the key they protect.
var mongoIndexKeys = map[string]string{
	"orderNumber_unique":  KeyOrderNumber,
	"paymentId_unique":    KeyPaymentID,
	"sku_unique":          KeySKU,
	"code_unique":         KeyCouponCode,
	"cart_user_active":    KeyActiveCart,
	"cart_session_active": KeyActiveCart,
}

func duplicate(err error) error {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}
	return DuplicateKeyError{Key: mongoDuplicateKey(err.Error()), Err: err}
}

// mongoDuplicateKey reads the index name out of an E11000 message such as
// "E11000 duplicate key error collection: shop.orders index: paymentId_unique dup key".
func mongoDuplicateKey(msg string) string {
	_, rest, ok := strings.Cut(msg, "index: ")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, " ")
	return mongoIndexKeys[name]
}
