package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureProductIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection(productsCollection).Indexes()

	skuIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "sku", Value: 1}},
		Options: options.Index().
			SetName("sku_unique").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{
				"sku": bson.M{"$gt": ""},
			}),
	}

	log.Println("EnsureProductIndexes: creating sku_unique index")
	if _, err := indexes.CreateOne(ctx, skuIndex); err != nil {
		log.Println("EnsureProductIndexes: sku index error:", err)
		return err
	}
	log.Println("EnsureProductIndexes: sku_unique index created")
	return nil
}

func EnsureCouponIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection(couponsCollection).Indexes()

	codeIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetName("code_unique").SetUnique(true),
	}

	log.Println("EnsureCouponIndexes: creating code_unique index")
	if _, err := indexes.CreateOne(ctx, codeIndex); err != nil {
		log.Println("EnsureCouponIndexes: code index error:", err)
		return err
	}
	log.Println("EnsureCouponIndexes: code_unique index created")
	return nil
}

func EnsureOrderIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "orderNumber", Value: 1}},
			Options: options.Index().SetName("orderNumber_unique").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "paymentId", Value: 1}},
			Options: options.Index().
				SetName("paymentId_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"paymentId": bson.M{"$exists": true},
				}),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("userId_createdAt_index"),
		},
	}

	log.Println("EnsureOrderIndexes: creating order indexes")
	if _, err := db.Collection(ordersCollection).Indexes().CreateMany(ctx, models); err != nil {
		log.Println("EnsureOrderIndexes: order index error:", err)
		return err
	}

	historyIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "orderId", Value: 1}, {Key: "createdAt", Value: 1}},
		Options: options.Index().SetName("orderId_createdAt_index"),
	}
	if _, err := db.Collection(historyCollection).Indexes().CreateOne(ctx, historyIndex); err != nil {
		log.Println("EnsureOrderIndexes: history index error:", err)
		return err
	}
	log.Println("EnsureOrderIndexes: order indexes created")
	return nil
}

func EnsureCartIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	models := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().
				SetName("cart_user_active").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"isActive": true,
					"userId":   bson.M{"$exists": true},
				}),
		},
		{
			Keys: bson.D{{Key: "sessionId", Value: 1}},
			Options: options.Index().
				SetName("cart_session_active").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"isActive":  true,
					"sessionId": bson.M{"$exists": true},
				}),
		},
	}

	log.Println("EnsureCartIndexes: creating cart indexes")
	if _, err := db.Collection(cartsCollection).Indexes().CreateMany(ctx, models); err != nil {
		log.Println("EnsureCartIndexes: cart index error:", err)
		return err
	}
	log.Println("EnsureCartIndexes: cart indexes created")
	return nil
}
