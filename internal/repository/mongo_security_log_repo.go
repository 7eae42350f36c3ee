package repository

import (
	"context"
	"encoding/json"
	"time"

	"rcms/internal/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type securityLogDocument struct {
	ID        string         `bson:"_id"`
	UserID    *string        `bson:"userId,omitempty"`
	IPAddress *string        `bson:"ipAddress,omitempty"`
	Action    string         `bson:"action"`
	Metadata  map[string]any `bson:"metadata,omitempty"`
	CreatedAt time.Time      `bson:"createdAt"`
}

type mongoSecurityLogRepository struct {
	logs *mongo.Collection
}

func NewMongoSecurityLogRepository(db *mongo.Database) SecurityLogRepository {
	return &mongoSecurityLogRepository{logs: db.Collection(securityLogsCollection)}
}

func (r *mongoSecurityLogRepository) Log(ctx context.Context, log *entity.SecurityLog) error {
	doc, err := newSecurityLogDocument(log)
	if err != nil {
		return err
	}
	_, err = r.logs.InsertOne(ctx, doc)
	return err
}

func newSecurityLogDocument(log *entity.SecurityLog) (securityLogDocument, error) {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	doc := securityLogDocument{
		ID:        log.ID.String(),
		IPAddress: log.IPAddress,
		Action:    string(log.Action),
		CreatedAt: log.CreatedAt,
	}
	if log.UserID != nil {
		userID := log.UserID.String()
		doc.UserID = &userID
	}
	if len(log.Metadata) > 0 {
		if err := json.Unmarshal(log.Metadata, &doc.Metadata); err != nil {
			return securityLogDocument{}, err
		}
	}
	return doc, nil
}
