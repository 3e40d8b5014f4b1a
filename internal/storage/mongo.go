package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hakim/censysmatch/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore implements Backend on a MongoDB database
type MongoStore struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

// NewMongoStore connects to uri and verifies the primary is reachable
func NewMongoStore(ctx context.Context, uri, database string, timeout time.Duration) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return &MongoStore{
		client:  client,
		db:      client.Database(database),
		timeout: timeout,
	}, nil
}

// Close disconnects the client
func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoStore) coll(name string) *mongo.Collection {
	return m.db.Collection(name)
}

// DistinctZones returns each usable zone once, sorted
func (m *MongoStore) DistinctZones(ctx context.Context) ([]string, error) {
	filter := bson.M{"status": bson.M{"$nin": bson.A{models.RangeStatusFalsePositive, models.ZoneStatusExpired}}}

	values, err := m.coll(CollZones).Distinct(ctx, "zone", filter)
	if err != nil {
		return nil, fmt.Errorf("reading zones: %w", err)
	}

	zones := make([]string, 0, len(values))
	for _, v := range values {
		if z, ok := v.(string); ok && z != "" {
			zones = append(zones, z)
		}
	}
	sort.Strings(zones)
	return zones, nil
}

// Organizations returns SSL_Orgs from the first config document
func (m *MongoStore) Organizations(ctx context.Context) ([]string, error) {
	var doc configDoc
	if err := m.coll(CollConfig).FindOne(ctx, bson.D{}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return doc.SSLOrgs, nil
}

// AWSPrefixes returns the published AWS CIDR blocks
func (m *MongoStore) AWSPrefixes(ctx context.Context) ([]string, error) {
	return m.prefixes(ctx, CollAWS)
}

// AzurePrefixes returns the published Azure CIDR blocks
func (m *MongoStore) AzurePrefixes(ctx context.Context) ([]string, error) {
	return m.prefixes(ctx, CollAzure)
}

func (m *MongoStore) prefixes(ctx context.Context, name string) ([]string, error) {
	var doc prefixDoc
	if err := m.coll(name).FindOne(ctx, bson.D{}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return doc.cidrs(), nil
}

// KnownRanges returns the organization's CIDR blocks that are not false positives
func (m *MongoStore) KnownRanges(ctx context.Context) ([]string, error) {
	filter := bson.M{"status": bson.M{"$ne": models.RangeStatusFalsePositive}}
	opts := options.Find().SetProjection(bson.M{"zone": 1, "_id": 0})

	cursor, err := m.coll(CollIPZones).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("reading ip zones: %w", err)
	}

	var docs []RangeDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding ip zones: %w", err)
	}

	ranges := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.Zone != "" {
			ranges = append(ranges, d.Zone)
		}
	}
	return ranges, nil
}

// LookupFQDNs returns the names that resolve to ip in the DNS inventory
func (m *MongoStore) LookupFQDNs(ctx context.Context, ip string) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"fqdn": 1, "_id": 0})

	cursor, err := m.coll(CollDNS).Find(ctx, bson.M{"value": ip}, opts)
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", ip, err)
	}

	var docs []DNSDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding dns records for %s: %w", ip, err)
	}

	fqdns := make([]string, 0, len(docs))
	for _, d := range docs {
		fqdns = append(fqdns, d.FQDN)
	}
	return fqdns, nil
}

// GetJob returns the job record for name
func (m *MongoStore) GetJob(ctx context.Context, name string) (*models.JobRecord, error) {
	var job models.JobRecord
	err := m.coll(CollJobs).FindOne(ctx, bson.M{"job_name": name}).Decode(&job)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("job %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("reading job %q: %w", name, err)
	}
	return &job, nil
}

// SetJobStatus updates the status and timestamp of an existing job record
func (m *MongoStore) SetJobStatus(ctx context.Context, name string, status models.JobStatus, at time.Time) error {
	update := bson.M{"$set": bson.M{"status": status, "updated": at}}

	res, err := m.coll(CollJobs).UpdateOne(ctx, bson.M{"job_name": name}, update)
	if err != nil {
		return fmt.Errorf("updating job %q: %w", name, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("job %q: %w", name, ErrNotFound)
	}
	return nil
}

// ClearResults removes every stored result
func (m *MongoStore) ClearResults(ctx context.Context) error {
	if _, err := m.coll(CollResults).DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("clearing results: %w", err)
	}
	return nil
}

// UpsertResult replaces the document with res.IP, inserting it if absent
func (m *MongoStore) UpsertResult(ctx context.Context, res *models.MatchResult) error {
	doc, err := resultToBSON(res)
	if err != nil {
		return err
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := m.coll(CollResults).ReplaceOne(ctx, bson.M{"ip": res.IP}, doc, opts); err != nil {
		return fmt.Errorf("upserting result %s: %w", res.IP, err)
	}
	return nil
}

// ListResults returns every stored result ordered by ip
func (m *MongoStore) ListResults(ctx context.Context) ([]*models.MatchResult, error) {
	opts := options.Find().SetSort(bson.D{{Key: "ip", Value: 1}})

	cursor, err := m.coll(CollResults).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}
	defer cursor.Close(ctx)

	var results []*models.MatchResult
	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding result: %w", err)
		}
		res, err := resultFromBSON(doc)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}

	return results, nil
}

// CountResults returns the number of stored results
func (m *MongoStore) CountResults(ctx context.Context) (int64, error) {
	n, err := m.coll(CollResults).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("counting results: %w", err)
	}
	return n, nil
}

// SaveRun creates or replaces a run record
func (m *MongoStore) SaveRun(ctx context.Context, meta *models.RunMeta) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := m.coll(CollRuns).ReplaceOne(ctx, bson.M{"_id": meta.ID}, meta, opts); err != nil {
		return fmt.Errorf("saving run %s: %w", meta.ID, err)
	}
	return nil
}

// GetRun retrieves a run record by ID
func (m *MongoStore) GetRun(ctx context.Context, id string) (*models.RunMeta, error) {
	var meta models.RunMeta
	if err := m.coll(CollRuns).FindOne(ctx, bson.M{"_id": id}).Decode(&meta); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("run %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("reading run %q: %w", id, err)
	}
	return &meta, nil
}

// ListRuns retrieves all runs of a job, newest first
func (m *MongoStore) ListRuns(ctx context.Context, jobName string) ([]*models.RunMeta, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})

	cursor, err := m.coll(CollRuns).Find(ctx, bson.M{"job_name": jobName}, opts)
	if err != nil {
		return nil, fmt.Errorf("reading runs: %w", err)
	}

	var runs []*models.RunMeta
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, fmt.Errorf("decoding runs: %w", err)
	}
	return runs, nil
}

// resultToBSON converts a result into the stored document. The record goes
// through its JSON form so passthrough fields keep their original shape;
// createdAt is stored as a BSON date.
func resultToBSON(res *models.MatchResult) (bson.D, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encoding result %s: %w", res.IP, err)
	}

	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("converting result %s: %w", res.IP, err)
	}

	out := make(bson.D, 0, len(doc))
	for _, e := range doc {
		switch e.Key {
		case "_id":
			continue
		case models.FieldCreatedAt:
			e.Value = res.CreatedAt.UTC()
		}
		out = append(out, e)
	}
	return out, nil
}

// resultFromBSON is the inverse of resultToBSON
func resultFromBSON(doc bson.D) (*models.MatchResult, error) {
	var createdAt time.Time
	rest := make(bson.D, 0, len(doc))
	for _, e := range doc {
		switch e.Key {
		case "_id":
			continue
		case models.FieldCreatedAt:
			if dt, ok := e.Value.(primitive.DateTime); ok {
				createdAt = dt.Time().UTC()
			}
			continue
		}
		rest = append(rest, e)
	}

	data, err := bson.MarshalExtJSON(rest, false, false)
	if err != nil {
		return nil, fmt.Errorf("converting result: %w", err)
	}

	var res models.MatchResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	res.CreatedAt = createdAt
	return &res, nil
}
