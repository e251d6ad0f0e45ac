package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"shopops/portal/internal/auth"
	"shopops/portal/internal/db"
	"shopops/portal/internal/logger"
	"shopops/portal/internal/models"
)

// CreateUserInput describes a new portal account.
type CreateUserInput struct {
	Name       string
	Username   string
	Password   string
	Role       models.Role
	Department string
}

// IUserService defines the interface for user-related operations.
// This allows for easier mocking in tests.
type IUserService interface {
	CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context, includeInactive bool) ([]models.User, error)
}

// userService implements IUserService.
type userService struct {
	db *mongo.Database
}

// NewUserService creates a new UserService.
func NewUserService(database *mongo.Database) IUserService {
	return &userService{db: database}
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// CreateUser hashes the password and inserts an active account. Usernames are
// case-insensitive and unique.
func (s *userService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = normalizeUsername(in.Username)
	if in.Name == "" {
		return nil, invalid("name", "is required")
	}
	if in.Username == "" {
		return nil, invalid("username", "is required")
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, invalid("password", "%s", strings.TrimPrefix(err.Error(), "password "))
	}
	if in.Role == "" {
		in.Role = models.RoleStaff
	}
	if !in.Role.Valid() {
		return nil, invalid("role", "must be one of admin, developer, staff, user")
	}

	hashedPassword, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password for %s: %w", in.Username, err)
	}

	user := &models.User{
		Base:         models.NewBase(),
		Name:         in.Name,
		Username:     in.Username,
		PasswordHash: hashedPassword,
		Role:         in.Role,
		Department:   strings.TrimSpace(in.Department),
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}

	if _, err := s.db.Collection(db.UsersCollection).InsertOne(ctx, user); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("error inserting user %s: %w", in.Username, err)
	}

	logger.Info("User created", zap.String("username", user.Username), zap.String("role", string(user.Role)))
	return user, nil
}

// Authenticate returns the active user matching the credentials. Unknown
// usernames and wrong passwords produce the same error.
func (s *userService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active || !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// FindByID finds a user by id, active or not.
func (s *userService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID.Hex(), err)
	}
	return &user, nil
}

func (s *userService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	username = normalizeUsername(username)
	err := s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding user %s: %w", username, err)
	}
	return &user, nil
}

// ListUsers returns accounts sorted by name, used to populate assignment pickers.
func (s *userService) ListUsers(ctx context.Context, includeInactive bool) ([]models.User, error) {
	filter := bson.M{}
	if !includeInactive {
		filter["active"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := s.db.Collection(db.UsersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}
