package config

import (
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

var AppEnv Config

type Config struct {
	Port           string        `validate:"required,numeric"`
	StoreDriver    string        `validate:"oneof=mongo postgres memory"`
	MongoURI       string        `validate:"required_if=StoreDriver mongo"`
	DBName         string        `validate:"required_if=StoreDriver mongo"`
	DatabaseURL    string        `validate:"required_if=StoreDriver postgres"`
	JWTSecret      string        `validate:"required"`
	RequestTimeout time.Duration `validate:"gt=0"`

	TaxRate          decimal.Decimal `validate:"-"`
	ShippingFlatRate decimal.Decimal `validate:"-"`
	Currency         string          `validate:"required,len=3,lowercase"`

	StripeSecretKey   string
	PaymentSimulation bool

	RedisURL       string
	IdempotencyTTL time.Duration `validate:"gt=0"`

	KafkaBrokers    []string
	KafkaOrderTopic string `validate:"required_with=KafkaBrokers"`
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = FromEnv()
}

// FromEnv reads the configuration from the process environment without
// touching .env files.
func FromEnv() Config {
	return Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		StoreDriver:    getEnvOrDefault("STORE_DRIVER", "mongo"),
		MongoURI:       getEnvOrDefault("MONGO_URI", ""),
		DBName:         getEnvOrDefault("DB_NAME", "storefront"),
		DatabaseURL:    getEnvOrDefault("DATABASE_URL", ""),
		JWTSecret:      getEnvOrDefault("JWT_SECRET", ""),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT_SECONDS", 5, time.Second),

		TaxRate:          getDecimalEnv("TAX_RATE", "0.18"),
		ShippingFlatRate: getDecimalEnv("SHIPPING_FLAT_RATE", "10.00"),
		Currency:         getEnvOrDefault("CURRENCY", "pen"),

		StripeSecretKey:   getEnvOrDefault("STRIPE_SECRET_KEY", ""),
		PaymentSimulation: getBoolEnv("PAYMENT_SIMULATION", true),

		RedisURL:       getEnvOrDefault("REDIS_URL", ""),
		IdempotencyTTL: getDurationEnv("IDEMPOTENCY_TTL_HOURS", 24, time.Hour),

		KafkaBrokers:    getCSVEnv("KAFKA_BROKERS"),
		KafkaOrderTopic: getEnvOrDefault("KAFKA_ORDER_TOPIC", "orders.events"),
	}
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("TAX_RATE must be in [0, 1), got %s", c.TaxRate)
	}
	if c.ShippingFlatRate.IsNegative() {
		return fmt.Errorf("SHIPPING_FLAT_RATE must not be negative, got %s", c.ShippingFlatRate)
	}
	if c.StripeSecretKey == "" && !c.PaymentSimulation {
		return fmt.Errorf("STRIPE_SECRET_KEY is required when PAYMENT_SIMULATION is disabled")
	}
	return nil
}
