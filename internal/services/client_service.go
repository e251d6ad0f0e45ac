package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shopops/portal/internal/db"
	"shopops/portal/internal/models"
)

// ClientInput holds the editable client fields.
type ClientInput struct {
	Name     string
	Phone    string
	AltPhone string
	Notes    string
}

// IClientService manages the customer directory.
type IClientService interface {
	CreateClient(ctx context.Context, in ClientInput) (*models.Client, error)
	GetClient(ctx context.Context, clientID primitive.ObjectID) (*models.Client, error)
	ListClients(ctx context.Context, query string, limit int64) ([]models.Client, error)
	UpdateClient(ctx context.Context, clientID primitive.ObjectID, in ClientInput) (*models.Client, error)
	DeleteClient(ctx context.Context, clientID primitive.ObjectID) error
}

type clientService struct {
	db *mongo.Database
}

func NewClientService(database *mongo.Database) IClientService {
	return &clientService{db: database}
}

func (in *ClientInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.AltPhone = strings.TrimSpace(in.AltPhone)
	if in.Name == "" {
		return invalid("name", "is required")
	}
	if in.Phone == "" {
		return invalid("phone", "is required")
	}
	return nil
}

func (s *clientService) CreateClient(ctx context.Context, in ClientInput) (*models.Client, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	client := &models.Client{
		Base:      models.NewBase(),
		Name:      in.Name,
		Phone:     in.Phone,
		AltPhone:  in.AltPhone,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.Collection(db.ClientsCollection).InsertOne(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to insert client %s: %w", in.Name, err)
	}
	return client, nil
}

func (s *clientService) GetClient(ctx context.Context, clientID primitive.ObjectID) (*models.Client, error) {
	var client models.Client
	err := s.db.Collection(db.ClientsCollection).FindOne(ctx, bson.M{"_id": clientID}).Decode(&client)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding client %s: %w", clientID.Hex(), err)
	}
	return &client, nil
}

// ListClients searches name and phone numbers case-insensitively.
func (s *clientService) ListClients(ctx context.Context, query string, limit int64) ([]models.Client, error) {
	filter := bson.M{}
	if q := strings.TrimSpace(query); q != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"phone": pattern},
			bson.M{"altPhone": pattern},
		}
	}
	if limit <= 0 || limit > maxTaskListLimit {
		limit = defaultTaskListLimit
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}}).SetLimit(limit)

	cursor, err := s.db.Collection(db.ClientsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer cursor.Close(ctx)

	clients := []models.Client{}
	if err := cursor.All(ctx, &clients); err != nil {
		return nil, fmt.Errorf("failed to decode clients: %w", err)
	}
	return clients, nil
}

func (s *clientService) UpdateClient(ctx context.Context, clientID primitive.ObjectID, in ClientInput) (*models.Client, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	update := bson.M{"$set": bson.M{
		"name":      in.Name,
		"phone":     in.Phone,
		"altPhone":  in.AltPhone,
		"notes":     in.Notes,
		"updatedAt": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Client
	err := s.db.Collection(db.ClientsCollection).FindOneAndUpdate(ctx, bson.M{"_id": clientID}, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update client %s: %w", clientID.Hex(), err)
	}
	return &updated, nil
}

func (s *clientService) DeleteClient(ctx context.Context, clientID primitive.ObjectID) error {
	res, err := s.db.Collection(db.ClientsCollection).DeleteOne(ctx, bson.M{"_id": clientID})
	if err != nil {
		return fmt.Errorf("failed to delete client %s: %w", clientID.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
