package accounts

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoResolver reads the faction field of an account document.
type MongoResolver struct {
	coll  *mongo.Collection
	field string
}

// NewMongoResolver reads field from documents of coll. An empty field means factionId.
func NewMongoResolver(coll *mongo.Collection, field string) *MongoResolver {
	if field == "" {
		field = DefaultFactionField
	}
	return &MongoResolver{coll: coll, field: field}
}

// FactionOf implements cluster.Resolver. A missing account or an empty
// faction field means no faction.
func (r *MongoResolver) FactionOf(ctx context.Context, accountID string) (string, bool, error) {
	opts := options.FindOne().SetProjection(bson.M{r.field: 1})
	raw, err := r.coll.FindOne(ctx, accountFilter(accountID), opts).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "faction of account %s", accountID)
	}
	f := factionValue(raw.Lookup(r.field))
	return f, f != "", nil
}

func accountFilter(accountID string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(accountID); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"_id": accountID}
}

func factionValue(v bson.RawValue) string {
	switch v.Type {
	case bson.TypeString:
		return v.StringValue()
	case bson.TypeObjectID:
		return v.ObjectID().Hex()
	case bson.TypeInt32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case bson.TypeInt64:
		return strconv.FormatInt(v.Int64(), 10)
	default:
		return ""
	}
}
