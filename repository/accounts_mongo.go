package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	auth "github.com/goliatone/go-authflow"
)

const AccountsCollection = "accounts"

// MongoAccountStore keeps accounts in a MongoDB collection. Unique indexes
// on username and email enforce uniqueness.
type MongoAccountStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

var _ auth.AccountStore = (*MongoAccountStore)(nil)

type dbAccount struct {
	ID                          string     `bson:"_id"`
	Username                    string     `bson:"username"`
	Email                       string     `bson:"email"`
	PasswordHash                string     `bson:"password"`
	IsVerified                  bool       `bson:"isVerified"`
	VerificationToken           *string    `bson:"verificationToken,omitempty"`
	VerificationTokenExpiresAt  *time.Time `bson:"verificationTokenExpiresAt,omitempty"`
	ResetPasswordToken          *string    `bson:"resetPasswordToken,omitempty"`
	ResetPasswordTokenExpiresAt *time.Time `bson:"resetPasswordTokenExpiresAt,omitempty"`
	LastLoginAt                 *time.Time `bson:"lastLogin,omitempty"`
	CreatedAt                   time.Time  `bson:"createdAt"`
	UpdatedAt                   time.Time  `bson:"updatedAt"`
}

// NewMongoAccountStore wraps the accounts collection
func NewMongoAccountStore(c *mongo.Collection) *MongoAccountStore {
	return &MongoAccountStore{collection: c, now: time.Now}
}

// EnsureIndexes creates the unique and lookup indexes
func (m *MongoAccountStore) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(usernameIndex),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(emailIndex),
		},
		{
			Keys:    bson.D{{Key: "verificationToken", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "resetPasswordToken", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create account indexes")
	}
	return nil
}

func (m *MongoAccountStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return m.findBy(ctx, bson.M{"email": auth.NormalizeEmail(email)})
}

func (m *MongoAccountStore) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	return m.findBy(ctx, bson.M{"username": auth.NormalizeUsername(username)})
}

func (m *MongoAccountStore) FindByID(ctx context.Context, id uuid.UUID) (*auth.Account, error) {
	return m.findBy(ctx, bson.M{"_id": id.String()})
}

func (m *MongoAccountStore) FindByVerificationToken(ctx context.Context, token string, now time.Time) (*auth.Account, error) {
	return m.findBy(ctx, bson.M{
		"verificationToken":          token,
		"verificationTokenExpiresAt": bson.M{"$gt": now},
	})
}

func (m *MongoAccountStore) FindByResetToken(ctx context.Context, token string) (*auth.Account, error) {
	return m.findBy(ctx, bson.M{"resetPasswordToken": token})
}

func (m *MongoAccountStore) Create(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	record := account.Clone()
	record.Email = auth.NormalizeEmail(record.Email)
	record.Username = auth.NormalizeUsername(record.Username)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := m.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	doc := toDB(record)
	if _, err := m.collection.InsertOne(ctx, &doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, auth.ConflictOn(duplicateField(err))
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create account")
	}

	return record, nil
}

func (m *MongoAccountStore) Update(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	record := account.Clone()
	record.UpdatedAt = m.now()

	doc := toDB(record)
	res, err := m.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, auth.ConflictOn(duplicateField(err))
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account")
	}

	if res.MatchedCount == 0 {
		return nil, auth.ErrAccountNotFound.Clone().WithMetadata(map[string]any{
			"id": doc.ID,
		})
	}

	return record, nil
}

func (m *MongoAccountStore) findBy(ctx context.Context, filter bson.M) (*auth.Account, error) {
	var doc dbAccount
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, auth.ErrAccountNotFound.Clone().WithMetadata(map[string]any{
				"filter": filterKeys(filter),
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query accounts")
	}

	return fromDB(doc)
}

const (
	usernameIndex = "username_unique"
	emailIndex    = "email_unique"
)

// duplicateField reads the index name out of an E11000 error. The dup key
// values are user input and are never matched.
func duplicateField(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "index: "+usernameIndex+" "):
		return auth.FieldUsername
	case strings.Contains(msg, "index: "+emailIndex+" "):
		return auth.FieldEmail
	}
	return ""
}

func filterKeys(filter bson.M) []string {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	return keys
}

func toDB(a *auth.Account) dbAccount {
	return dbAccount{
		ID:                          a.ID.String(),
		Username:                    a.Username,
		Email:                       a.Email,
		PasswordHash:                a.PasswordHash,
		IsVerified:                  a.IsVerified,
		VerificationToken:           a.VerificationToken,
		VerificationTokenExpiresAt:  a.VerificationTokenExpiresAt,
		ResetPasswordToken:          a.ResetPasswordToken,
		ResetPasswordTokenExpiresAt: a.ResetPasswordTokenExpiresAt,
		LastLoginAt:                 a.LastLoginAt,
		CreatedAt:                   a.CreatedAt,
		UpdatedAt:                   a.UpdatedAt,
	}
}

func fromDB(d dbAccount) (*auth.Account, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "stored account has an invalid id")
	}
	return &auth.Account{
		ID:                          id,
		Username:                    d.Username,
		Email:                       d.Email,
		PasswordHash:                d.PasswordHash,
		IsVerified:                  d.IsVerified,
		VerificationToken:           d.VerificationToken,
		VerificationTokenExpiresAt:  d.VerificationTokenExpiresAt,
		ResetPasswordToken:          d.ResetPasswordToken,
		ResetPasswordTokenExpiresAt: d.ResetPasswordTokenExpiresAt,
		LastLoginAt:                 d.LastLoginAt,
		CreatedAt:                   d.CreatedAt,
		UpdatedAt:                   d.UpdatedAt,
	}, nil
}
