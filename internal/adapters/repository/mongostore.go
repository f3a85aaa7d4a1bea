package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/okian/fightlens/internal/domain/model"
	"github.com/okian/fightlens/pkg/logger"
)

// MongoStore keeps encounters in player-fights and clusters in faction-fights.
type MongoStore struct {
	client     *mongo.Client
	db         *mongo.Database
	encounters *mongo.Collection
	clusters   *mongo.Collection

	opTimeout       time.Duration
	connectAttempts int
	retryWait       time.Duration
	log             logger.Logger
}

var _ Store = (*MongoStore)(nil)

// ConnectMongo opens a client, verifying it with a ping. It retries a fixed
// number of times before giving up.
func ConnectMongo(ctx context.Context, url, database string, opts ...MongoOption) (*MongoStore, error) {
	if url == "" {
		return nil, ErrMissingURL
	}
	if database == "" {
		return nil, ErrMissingDB
	}
	s := &MongoStore{
		opTimeout:       defaultOpTimeout,
		connectAttempts: defaultConnectAttempts,
		retryWait:       defaultConnectRetryWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("repository")
	}

	clientOpts := options.Client().
		ApplyURI(url).
		SetMinPoolSize(defaultMinPool).
		SetMaxPoolSize(defaultMaxPool).
		SetMaxConnIdleTime(defaultMaxIdle).
		SetServerSelectionTimeout(defaultServerSelection).
		SetConnectTimeout(defaultConnectTimeout).
		SetRetryWrites(true).
		SetCompressors([]string{"zlib"}).
		SetZlibLevel(defaultZlibLevel)

	var lastErr error
	for attempt := 1; attempt <= s.connectAttempts; attempt++ {
		client, err := connectOnce(ctx, clientOpts)
		if err == nil {
			db := client.Database(database)
			s.client = client
			s.db = db
			s.encounters = db.Collection(EncounterCollection)
			s.clusters = db.Collection(ClusterCollection)
			s.log.Info(ctx, "connected to mongodb", logger.String("database", database))
			return s, nil
		}
		lastErr = err
		s.log.Error(ctx, "mongodb connection attempt failed",
			logger.Int("attempt", attempt),
			logger.Int("maxAttempts", s.connectAttempts),
			logger.Error(err))
		if attempt == s.connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "connect mongodb")
		case <-time.After(s.retryWait):
		}
	}
	return nil, errors.Wrapf(lastErr, "connect mongodb after %d attempts", s.connectAttempts)
}

func connectOnce(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

func (s *MongoStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// PendingAnalysis returns encounters whose analysis is null or missing.
func (s *MongoStore) PendingAnalysis(ctx context.Context) ([]model.Encounter, error) {
	return s.findEncounters(ctx, pendingAnalysisFilter(), "pending analysis")
}

// PendingClustering returns analyzed encounters without a faction fight below maxAttempts.
func (s *MongoStore) PendingClustering(ctx context.Context, maxAttempts int) ([]model.Encounter, error) {
	return s.findEncounters(ctx, pendingClusteringFilter(maxAttempts), "pending clustering")
}

func (s *MongoStore) findEncounters(ctx context.Context, filter bson.M, op string) ([]model.Encounter, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	cur, err := s.encounters.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	var docs []encounterDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrapf(err, "%s: decode", op)
	}
	out := make([]model.Encounter, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

// ApplyPatches writes all non-empty patches in one unordered bulk write.
func (s *MongoStore) ApplyPatches(ctx context.Context, patches []model.EncounterPatch) error {
	writes := make([]mongo.WriteModel, 0, len(patches))
	for i := range patches {
		if m := patchModel(&patches[i]); m != nil {
			writes = append(writes, m)
		}
	}
	if len(writes) == 0 {
		return nil
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	if _, err := s.encounters.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return errors.Wrapf(err, "apply %d encounter patches", len(writes))
	}
	return nil
}

// RecentClusters returns up to limit clusters of a faction, newest end time first.
func (s *MongoStore) RecentClusters(ctx context.Context, factionID string, limit int) ([]model.FactionCluster, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "endTime", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.clusters.Find(ctx, bson.M{"factionId": factionID}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "recent clusters of faction %s", factionID)
	}
	var docs []clusterReadDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "recent clusters: decode")
	}
	out := make([]model.FactionCluster, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

// InsertCluster inserts a new faction fight and returns its hex id.
func (s *MongoStore) InsertCluster(ctx context.Context, c *model.FactionCluster) (string, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	doc := newClusterDoc(c)
	if c.ID == "" {
		doc.ID = primitive.NewObjectID()
	}
	res, err := s.clusters.InsertOne(ctx, doc)
	if err != nil {
		return "", errors.Wrapf(err, "insert cluster for faction %s", c.FactionID)
	}
	return idString(res.InsertedID), nil
}

// UpdateClusters writes merged spans and member sets of existing clusters.
func (s *MongoStore) UpdateClusters(ctx context.Context, clusters []model.FactionCluster) error {
	if len(clusters) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(clusters))
	for i := range clusters {
		doc := newClusterDoc(&clusters[i])
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": doc.ID}).
			SetUpdate(bson.M{"$set": bson.M{
				"startTime":        doc.StartTime,
				"endTime":          doc.EndTime,
				"fightIds":         doc.FightIDs,
				"memberAccountIds": doc.MemberAccountIDs,
			}}))
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	res, err := s.clusters.BulkWrite(ctx, writes)
	if err != nil {
		return errors.Wrapf(err, "update %d clusters", len(writes))
	}
	if int(res.MatchedCount) < len(writes) {
		return errors.Wrapf(ErrNotFound, "update clusters: matched %d of %d", res.MatchedCount, len(writes))
	}
	return nil
}

// Collection returns another collection of the same database.
func (s *MongoStore) Collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// Ping checks the primary is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return errors.Wrap(s.client.Ping(ctx, readpref.Primary()), "ping mongodb")
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return errors.Wrap(err, "disconnect mongodb")
	}
	s.log.Info(ctx, "disconnected from mongodb")
	return nil
}

func pendingAnalysisFilter() bson.M {
	return bson.M{"analysis": nil}
}

func pendingClusteringFilter(maxAttempts int) bson.M {
	return bson.M{
		"analysis":                  bson.M{"$ne": nil},
		"factionFightId":            nil,
		"factionAssignmentAttempts": bson.M{"$not": bson.M{"$gte": maxAttempts}},
	}
}

func patchModel(p *model.EncounterPatch) mongo.WriteModel {
	if p.Empty() {
		return nil
	}
	set := bson.M{}
	if p.Analysis != nil {
		set["analysis"] = p.Analysis
	}
	if p.ClusterRef != nil {
		set["factionFightId"] = *p.ClusterRef
	}
	if p.Attempts != nil {
		set["factionAssignmentAttempts"] = *p.Attempts
	}
	return mongo.NewUpdateOneModel().
		SetFilter(bson.M{"_id": docID(p.ID)}).
		SetUpdate(bson.M{"$set": set})
}

// encounterDoc decodes player-fights documents. Ids are kept raw so both
// ObjectId and string keys round-trip.
type encounterDoc struct {
	ID             bson.RawValue          `bson:"_id"`
	AccountID      bson.RawValue          `bson:"accountId"`
	Shots          []model.ShotEvent      `bson:"shotLogs"`
	Damages        []model.DamageEvent    `bson:"damageLogs"`
	Created        time.Time              `bson:"created"`
	LastUpdate     time.Time              `bson:"lastUpdate"`
	Analysis       *model.AnalysisSummary `bson:"analysis"`
	FactionFightID bson.RawValue          `bson:"factionFightId,omitempty"`
	Attempts       *int                   `bson:"factionAssignmentAttempts,omitempty"`
}

func (d *encounterDoc) toModel() model.Encounter {
	e := model.Encounter{
		ID:         rawString(d.ID),
		AccountID:  rawString(d.AccountID),
		Shots:      d.Shots,
		Damages:    d.Damages,
		Created:    d.Created,
		LastUpdate: d.LastUpdate,
		Analysis:   d.Analysis,
		Attempts:   d.Attempts,
	}
	if ref := rawString(d.FactionFightID); ref != "" {
		e.ClusterRef = &ref
	}
	return e
}

type clusterDoc struct {
	ID               interface{}   `bson:"_id"`
	FactionID        string        `bson:"factionId"`
	FightIDs         []interface{} `bson:"fightIds"`
	MemberAccountIDs []string      `bson:"memberAccountIds"`
	StartTime        time.Time     `bson:"startTime"`
	EndTime          time.Time     `bson:"endTime"`
	Created          time.Time     `bson:"created"`
}

func newClusterDoc(c *model.FactionCluster) clusterDoc {
	fights := make([]interface{}, 0, len(c.EncounterIDs))
	for _, id := range c.EncounterIDs {
		fights = append(fights, docID(id))
	}
	members := c.MemberAccountIDs
	if members == nil {
		members = []string{}
	}
	return clusterDoc{
		ID:               docID(c.ID),
		FactionID:        c.FactionID,
		FightIDs:         fights,
		MemberAccountIDs: members,
		StartTime:        c.StartTime,
		EndTime:          c.EndTime,
		Created:          c.Created,
	}
}

type clusterReadDoc struct {
	ID               bson.RawValue   `bson:"_id"`
	FactionID        bson.RawValue   `bson:"factionId"`
	FightIDs         []bson.RawValue `bson:"fightIds"`
	MemberAccountIDs []bson.RawValue `bson:"memberAccountIds"`
	StartTime        time.Time       `bson:"startTime"`
	EndTime          time.Time       `bson:"endTime"`
	Created          time.Time       `bson:"created"`
}

func (d *clusterReadDoc) toModel() model.FactionCluster {
	return model.FactionCluster{
		ID:               rawString(d.ID),
		FactionID:        rawString(d.FactionID),
		EncounterIDs:     rawStrings(d.FightIDs),
		MemberAccountIDs: rawStrings(d.MemberAccountIDs),
		StartTime:        d.StartTime,
		EndTime:          d.EndTime,
		Created:          d.Created,
	}
}

// docID maps a domain id to its stored form: hex ids become ObjectIds.
func docID(id string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return ""
	}
}

func rawString(v bson.RawValue) string {
	if len(v.Value) == 0 {
		return ""
	}
	switch v.Type {
	case bson.TypeObjectID:
		return v.ObjectID().Hex()
	case bson.TypeString:
		return v.StringValue()
	case bson.TypeInt32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case bson.TypeInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case bson.TypeDouble:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	case bson.TypeNull, bson.TypeUndefined:
		return ""
	default:
		return v.String()
	}
}

func rawStrings(vs []bson.RawValue) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if s := rawString(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
