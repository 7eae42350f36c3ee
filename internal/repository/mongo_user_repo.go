package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rcms/internal/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection        = "users"
	securityLogsCollection = "security_logs"
)

type userDocument struct {
	ID           string `bson:"_id"`
	Name         string `bson:"name"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"passwordHash"`
	Role         string `bson:"role"`

	EmailVerified        bool       `bson:"emailVerified"`
	VerificationToken    *string    `bson:"verificationToken,omitempty"`
	VerificationExpires  *time.Time `bson:"verificationExpires,omitempty"`
	ResetPasswordToken   *string    `bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpires *time.Time `bson:"resetPasswordExpires,omitempty"`

	Location      *string `bson:"location,omitempty"`
	CentreName    *string `bson:"centreName,omitempty"`
	CreditBalance float64 `bson:"creditBalance"`
	AdminID       *string `bson:"adminId,omitempty"`
	Revenue       float64 `bson:"revenue"`

	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func newUserDocument(user *entity.User) userDocument {
	doc := userDocument{
		ID:                   user.ID.String(),
		Name:                 user.Name,
		Email:                user.Email,
		PasswordHash:         user.PasswordHash,
		Role:                 string(user.Role),
		EmailVerified:        user.EmailVerified,
		VerificationToken:    user.VerificationToken,
		VerificationExpires:  user.VerificationExpires,
		ResetPasswordToken:   user.ResetPasswordToken,
		ResetPasswordExpires: user.ResetPasswordExpires,
		Location:             user.Location,
		CentreName:           user.CentreName,
		CreditBalance:        user.CreditBalance,
		Revenue:              user.Revenue,
		CreatedAt:            user.CreatedAt,
		UpdatedAt:            user.UpdatedAt,
	}
	if user.AdminID != nil {
		adminID := user.AdminID.String()
		doc.AdminID = &adminID
	}
	return doc
}

func (d userDocument) toEntity() (*entity.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", d.ID, err)
	}
	user := &entity.User{
		ID:                   id,
		Name:                 d.Name,
		Email:                d.Email,
		PasswordHash:         d.PasswordHash,
		Role:                 entity.UserRole(d.Role),
		EmailVerified:        d.EmailVerified,
		VerificationToken:    d.VerificationToken,
		VerificationExpires:  d.VerificationExpires,
		ResetPasswordToken:   d.ResetPasswordToken,
		ResetPasswordExpires: d.ResetPasswordExpires,
		Location:             d.Location,
		CentreName:           d.CentreName,
		CreditBalance:        d.CreditBalance,
		Revenue:              d.Revenue,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
	if d.AdminID != nil {
		adminID, err := uuid.Parse(*d.AdminID)
		if err != nil {
			return nil, fmt.Errorf("user %q admin id: %w", d.ID, err)
		}
		user.AdminID = &adminID
	}
	return user, nil
}

type mongoUserRepository struct {
	users *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{users: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique email index and the token lookup
// indexes. Safe to call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "verificationToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "resetPasswordToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	_, err = db.Collection(securityLogsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create security log indexes: %w", err)
	}
	return nil
}

func (r *mongoUserRepository) Create(ctx context.Context, user *entity.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	_, err := r.users.InsertOne(ctx, newUserDocument(user))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *mongoUserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoUserRepository) SetVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := r.users.UpdateByID(ctx, id.String(), bson.M{"$set": bson.M{
		"verificationToken":   tokenHash,
		"verificationExpires": expiresAt,
		"updatedAt":           time.Now().UTC(),
	}})
	return err
}

func (r *mongoUserRepository) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*entity.User, error) {
	if tokenHash == "" {
		return nil, nil
	}
	return r.findOneAndUpdate(ctx,
		bson.M{"verificationToken": tokenHash, "verificationExpires": bson.M{"$gt": now}},
		bson.M{
			"$set":   bson.M{"emailVerified": true, "updatedAt": now},
			"$unset": bson.M{"verificationToken": "", "verificationExpires": ""},
		})
}

func (r *mongoUserRepository) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := r.users.UpdateByID(ctx, id.String(), bson.M{"$set": bson.M{
		"resetPasswordToken":   tokenHash,
		"resetPasswordExpires": expiresAt,
		"updatedAt":            time.Now().UTC(),
	}})
	return err
}

func (r *mongoUserRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*entity.User, error) {
	if tokenHash == "" {
		return nil, nil
	}
	return r.findOneAndUpdate(ctx,
		bson.M{"resetPasswordToken": tokenHash, "resetPasswordExpires": bson.M{"$gt": now}},
		bson.M{
			"$set":   bson.M{"passwordHash": passwordHash, "updatedAt": now},
			"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpires": ""},
		})
}

func (r *mongoUserRepository) UpdateProfile(ctx context.Context, user *entity.User) error {
	user.UpdatedAt = time.Now().UTC()
	set := bson.M{
		"name":          user.Name,
		"email":         user.Email,
		"passwordHash":  user.PasswordHash,
		"emailVerified": user.EmailVerified,
		"updatedAt":     user.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if user.VerificationToken != nil && user.VerificationExpires != nil {
		set["verificationToken"] = *user.VerificationToken
		set["verificationExpires"] = *user.VerificationExpires
	} else {
		update["$unset"] = bson.M{"verificationToken": "", "verificationExpires": ""}
	}
	_, err := r.users.UpdateByID(ctx, user.ID.String(), update)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *mongoUserRepository) ListByRole(ctx context.Context, role entity.UserRole) ([]entity.User, error) {
	cursor, err := r.users.Find(ctx, bson.M{"role": string(role)},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	users := make([]entity.User, 0, len(docs))
	for _, doc := range docs {
		user, err := doc.toEntity()
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, nil
}

func (r *mongoUserRepository) UpdateByRole(ctx context.Context, id uuid.UUID, role entity.UserRole, patch entity.AdminPatch) (*entity.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	unset := bson.M{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	setOrUnset(set, unset, "location", patch.Location)
	setOrUnset(set, unset, "centreName", patch.CentreName)
	if patch.CreditBalance != nil {
		set["creditBalance"] = *patch.CreditBalance
	}
	if patch.EmailVerified != nil {
		set["emailVerified"] = *patch.EmailVerified
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	user, err := r.findOneAndUpdate(ctx, bson.M{"_id": id.String(), "role": string(role)}, update)
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrDuplicateEmail
	}
	return user, err
}

func (r *mongoUserRepository) DeleteByRole(ctx context.Context, id uuid.UUID, role entity.UserRole) (bool, error) {
	res, err := r.users.DeleteOne(ctx, bson.M{"_id": id.String(), "role": string(role)})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*entity.User, error) {
	var doc userDocument
	err := r.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toEntity()
}

func (r *mongoUserRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*entity.User, error) {
	var doc userDocument
	err := r.users.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toEntity()
}

func setOrUnset(set, unset bson.M, field string, value *string) {
	if value == nil {
		return
	}
	if *value == "" {
		unset[field] = ""
		return
	}
	set[field] = *value
}
