package repo

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"account-service/internal/domain"
)

const UsersCollection = "users"

type userDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Name             string             `bson:"name"`
	Email            string             `bson:"email"`
	PasswordHash     string             `bson:"password"`
	Country          string             `bson:"country,omitempty"`
	ResetTokenHash   *string            `bson:"resetPasswordToken,omitempty"`
	ResetTokenExpiry *time.Time         `bson:"resetPasswordExpire,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
}

func (d userDoc) toDomain() *domain.User {
	return &domain.User{
		ID:               d.ID.Hex(),
		Name:             d.Name,
		Email:            d.Email,
		PasswordHash:     d.PasswordHash,
		Country:          d.Country,
		ResetTokenHash:   d.ResetTokenHash,
		ResetTokenExpiry: utcPtr(d.ResetTokenExpiry),
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
}

// MongoUserRepo 文档库版 domain.UserStore
type MongoUserRepo struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ domain.UserStore = (*MongoUserRepo)(nil)

func NewMongoUserRepo(db *mongo.Database) *MongoUserRepo {
	return &MongoUserRepo{
		coll: db.Collection(UsersCollection),
		// BSON 日期精度为毫秒
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// EnsureIndexes email 唯一 + name + createdAt 倒序
func (r *MongoUserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, userIndexes())
	if err != nil {
		return domain.Unexpected("create user indexes", err)
	}
	return nil
}

func userIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetName("name_1")},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("createdAt_-1")},
		{Keys: bson.D{{Key: "resetPasswordToken", Value: 1}}, Options: options.Index().SetName("resetPasswordToken_1").SetSparse(true)},
	}
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, domain.InvalidID(id, err)
	}
	return oid, nil
}

func mongoErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrNotFound
	}
	return domain.Unexpected(op, err)
}

func (r *MongoUserRepo) Create(ctx context.Context, u *domain.User) error {
	now := r.now()
	doc := userDoc{
		ID:           primitive.NewObjectID(),
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Country:      u.Country,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.DuplicateEmail(u.Email)
		}
		return domain.Unexpected("insert user", err)
	}
	*u = *doc.toDomain()
	return nil
}

func (r *MongoUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var d userDoc
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("user with email %s not found", email)
		}
		return nil, mongoErr("find user", err)
	}
	return d.toDomain(), nil
}

func (r *MongoUserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	var d userDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("user %s not found", id)
		}
		return nil, mongoErr("find user", err)
	}
	return d.toDomain(), nil
}

func searchFilter(search string) bson.M {
	s := strings.TrimSpace(search)
	if s == "" {
		return bson.M{}
	}
	re := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
	return bson.M{"$or": bson.A{
		bson.M{"name": re},
		bson.M{"email": re},
		bson.M{"country": re},
	}}
}

func (r *MongoUserRepo) List(ctx context.Context, q domain.ListQuery) ([]domain.User, int64, error) {
	filter := searchFilter(q.Search)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, domain.Unexpected("count users", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(q.Offset)).
		SetLimit(int64(q.Limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, domain.Unexpected("list users", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, domain.Unexpected("decode users", err)
	}
	users := make([]domain.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, *d.toDomain())
	}
	return users, total, nil
}

func (r *MongoUserRepo) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	filter := bson.M{"email": email}
	if oid, err := primitive.ObjectIDFromHex(exceptID); err == nil {
		filter["_id"] = bson.M{"$ne": oid}
	}
	n, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, domain.Unexpected("check email", err)
	}
	return n > 0, nil
}

func patchSet(p domain.UserPatch, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Email != nil {
		set["email"] = *p.Email
	}
	if p.Country != nil {
		set["country"] = *p.Country
	}
	return set
}

func (r *MongoUserRepo) Update(ctx context.Context, id string, p domain.UserPatch) (*domain.User, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	var d userDoc
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": patchSet(p, r.now())},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) && p.Email != nil {
			return nil, domain.DuplicateEmail(*p.Email)
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("user %s not found", id)
		}
		return nil, domain.Unexpected("update user", err)
	}
	return d.toDomain(), nil
}

func (r *MongoUserRepo) Delete(ctx context.Context, id string) (*domain.User, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	var d userDoc
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("user %s not found", id)
		}
		return nil, domain.Unexpected("delete user", err)
	}
	return d.toDomain(), nil
}

func (r *MongoUserRepo) SetResetToken(ctx context.Context, id, tokenHash string, expiry time.Time) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"resetPasswordToken":  tokenHash,
		"resetPasswordExpire": expiry.UTC(),
		"updatedAt":           r.now(),
	}})
	if err != nil {
		return domain.Unexpected("store reset token", err)
	}
	if res.MatchedCount == 0 {
		return domain.NotFound("user %s not found", id)
	}
	return nil
}

// RedeemResetToken 单文档原子更新：匹配未过期令牌，写入新摘要并清空令牌字段
func (r *MongoUserRepo) RedeemResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*domain.User, error) {
	var d userDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"resetPasswordToken": tokenHash, "resetPasswordExpire": bson.M{"$gt": now.UTC()}},
		bson.M{
			"$set":   bson.M{"password": passwordHash, "updatedAt": r.now()},
			"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpire": ""},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errResetTokenInvalid
		}
		return nil, domain.Unexpected("redeem reset token", err)
	}
	return d.toDomain(), nil
}

func (r *MongoUserRepo) SetPassword(ctx context.Context, id, passwordHash string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"password":  passwordHash,
		"updatedAt": r.now(),
	}})
	if err != nil {
		return domain.Unexpected("set password", err)
	}
	if res.MatchedCount == 0 {
		return domain.NotFound("user %s not found", id)
	}
	return nil
}

func (r *MongoUserRepo) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}
