package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rcms/internal/repository"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrUnsupportedDatabase = errors.New("unsupported DATABASE_URL scheme")

// Database holds whichever store DATABASE_URL selected. Exactly one of
// Gorm and Mongo is set.
type Database struct {
	Gorm  *gorm.DB
	Mongo *mongo.Database

	mongoClient *mongo.Client
}

// ConnectDatabase picks the backend from the URL scheme and prepares its
// schema: tables for gorm, indexes for MongoDB.
func ConnectDatabase(ctx context.Context, cfg DatabaseConfig) (*Database, error) {
	switch {
	case strings.HasPrefix(cfg.URL, "mongodb://"), strings.HasPrefix(cfg.URL, "mongodb+srv://"):
		return connectMongo(ctx, cfg)
	case strings.HasPrefix(cfg.URL, "postgres://"), strings.HasPrefix(cfg.URL, "postgresql://"):
		return openGorm(postgres.New(postgres.Config{
			DSN:                  cfg.URL,
			PreferSimpleProtocol: true,
		}))
	case strings.HasPrefix(cfg.URL, "sqlite://"):
		return openGorm(sqlite.Open(strings.TrimPrefix(cfg.URL, "sqlite://")))
	default:
		return nil, ErrUnsupportedDatabase
	}
}

func openGorm(dialector gorm.Dialector) (*Database, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt:    false,
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Database{Gorm: db}, nil
}

func connectMongo(ctx context.Context, cfg DatabaseConfig) (*Database, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	db := client.Database(cfg.Name)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return &Database{Mongo: db, mongoClient: client}, nil
}

func (d *Database) Users() repository.UserRepository {
	if d.Mongo != nil {
		return repository.NewMongoUserRepository(d.Mongo)
	}
	return repository.NewUserRepository(d.Gorm)
}

func (d *Database) SecurityLogs() repository.SecurityLogRepository {
	if d.Mongo != nil {
		return repository.NewMongoSecurityLogRepository(d.Mongo)
	}
	return repository.NewSecurityLogRepository(d.Gorm)
}

func (d *Database) Driver() string {
	if d.Mongo != nil {
		return "mongodb"
	}
	return d.Gorm.Dialector.Name()
}

func (d *Database) Close(ctx context.Context) error {
	if d.mongoClient != nil {
		return d.mongoClient.Disconnect(ctx)
	}
	if d.Gorm == nil {
		return nil
	}
	sqlDB, err := d.Gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
