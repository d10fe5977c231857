package vectorstore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var tracer = otel.Tracer("docusearchd.vectorstore.qdrant")

// Config holds QdrantClient configuration.
type Config struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (not the HTTP REST port).
	Port int

	// VectorSize is the lead-vector dimensionality; must match the
	// embedding engine's output dimension.
	VectorSize uint64

	// Distance is the similarity metric. Defaults to Cosine.
	Distance qdrant.Distance

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// MaxRetries is the maximum retry attempts for transient failures.
	MaxRetries int

	// RetryBackoff is the initial backoff between retries, doubled each attempt.
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes, sized to
	// carry a full page-image record's sequence blob.
	MaxMessageSize int

	// CircuitBreakerThreshold is the consecutive-failure count that opens
	// the circuit.
	CircuitBreakerThreshold int
}

// Validate checks required fields are set.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 64 * 1024 * 1024
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
}

// circuitResetWindow is how long the breaker stays open after tripping.
const circuitResetWindow = 30 * time.Second

// QdrantClient implements Client against Qdrant's native gRPC API. It
// maintains exactly two collections (visual, text), created on first use,
// and wraps every RPC in retry-with-backoff plus a circuit breaker so a
// flapping store degrades to fast failures instead of blocking callers.
type QdrantClient struct {
	client *qdrant.Client
	config Config

	ensured sync.Map // Collection -> bool, collections confirmed to exist

	circuitBreaker struct {
		mu       sync.Mutex
		failures int
		lastFail time.Time
	}
}

// NewQdrantClient connects to Qdrant, validates connectivity with a health
// check, and returns a ready-to-use client.
func NewQdrantClient(config Config) (*QdrantClient, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !config.UseTLS {
		fmt.Fprintln(os.Stderr, "WARNING: qdrant gRPC using plaintext (TLS disabled)")
	}

	qc, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	c := &QdrantClient{client: qc, config: config}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Heartbeat(ctx); err != nil {
		_ = qc.Close()
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	return c, nil
}

// Close releases the underlying gRPC connection.
func (c *QdrantClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Heartbeat checks store liveness.
func (c *QdrantClient) Heartbeat(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantClient.Heartbeat")
	defer span.End()

	_, err := c.client.HealthCheck(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	span.SetStatus(codes.Ok, "healthy")
	return nil
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func (c *QdrantClient) retry(ctx context.Context, op string, fn func() error) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("%s: %w: circuit breaker open", op, ErrTransient)
	}

	backoff := c.config.RetryBackoff
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			c.resetCircuitBreaker()
			return nil
		}

		if !isTransientError(err) {
			return fmt.Errorf("%s: %w", op, err)
		}

		c.recordFailure()

		if attempt == c.config.MaxRetries {
			return fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", op, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

func (c *QdrantClient) recordFailure() {
	c.circuitBreaker.mu.Lock()
	defer c.circuitBreaker.mu.Unlock()
	c.circuitBreaker.failures++
	c.circuitBreaker.lastFail = time.Now()
}

func (c *QdrantClient) resetCircuitBreaker() {
	c.circuitBreaker.mu.Lock()
	defer c.circuitBreaker.mu.Unlock()
	c.circuitBreaker.failures = 0
}

func (c *QdrantClient) isCircuitOpen() bool {
	c.circuitBreaker.mu.Lock()
	defer c.circuitBreaker.mu.Unlock()
	if c.circuitBreaker.failures < c.config.CircuitBreakerThreshold {
		return false
	}
	if time.Since(c.circuitBreaker.lastFail) > circuitResetWindow {
		c.circuitBreaker.failures = 0
		return false
	}
	return true
}

func collectionName(col Collection) string {
	return string(col)
}

// ensureCollection creates the collection if it doesn't exist yet, caching
// the result so steady-state operations skip the existence check.
func (c *QdrantClient) ensureCollection(ctx context.Context, col Collection) error {
	if _, ok := c.ensured.Load(col); ok {
		return nil
	}

	name := collectionName(col)
	_, err := c.client.GetCollectionInfo(ctx, name)
	if err == nil {
		c.ensured.Store(col, true)
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != grpccodes.NotFound {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}

	err = c.retry(ctx, "create_collection", func() error {
		return c.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     c.config.VectorSize,
				Distance: c.config.Distance,
			}),
		})
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	c.ensured.Store(col, true)
	return nil
}

func payloadValue(v interface{}) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
	default:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprintf("%v", val)}}
	}
}

func payloadToMetadata(payload map[string]*qdrant.Value) map[string]interface{} {
	meta := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		switch val := v.Kind.(type) {
		case *qdrant.Value_StringValue:
			meta[k] = val.StringValue
		case *qdrant.Value_IntegerValue:
			meta[k] = val.IntegerValue
		case *qdrant.Value_DoubleValue:
			meta[k] = val.DoubleValue
		case *qdrant.Value_BoolValue:
			meta[k] = val.BoolValue
		}
	}
	return meta
}

// seqBlobKey is the payload field carrying a record's codec-encoded
// multi-vector sequence. It is never indexed or filtered on.
const seqBlobKey = "_seq_blob"

func recordToPoint(r Record) *qdrant.PointStruct {
	payload := make(map[string]*qdrant.Value, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		payload[k] = payloadValue(v)
	}
	payload[seqBlobKey] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: string(r.SequenceBlob)}}

	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(r.ID),
		Vectors: qdrant.NewVectors(r.LeadVector...),
		Payload: payload,
	}
}

func pointToRecord(id string, leadVector []float32, payload map[string]*qdrant.Value) Record {
	blob := []byte(nil)
	meta := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if k == seqBlobKey {
			if s, ok := v.Kind.(*qdrant.Value_StringValue); ok {
				blob = []byte(s.StringValue)
			}
			continue
		}
		switch val := v.Kind.(type) {
		case *qdrant.Value_StringValue:
			meta[k] = val.StringValue
		case *qdrant.Value_IntegerValue:
			meta[k] = val.IntegerValue
		case *qdrant.Value_DoubleValue:
			meta[k] = val.DoubleValue
		case *qdrant.Value_BoolValue:
			meta[k] = val.BoolValue
		}
	}
	return Record{ID: id, LeadVector: leadVector, SequenceBlob: blob, Metadata: meta}
}

func buildQdrantFilter(f *Filter) (*qdrant.Filter, error) {
	if f == nil || len(f.Conditions) == 0 {
		return nil, nil
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	conds := make([]*qdrant.Condition, 0, len(f.Conditions))
	for _, cond := range f.Conditions {
		fieldCond, err := qdrantFieldCondition(cond)
		if err != nil {
			return nil, err
		}
		conds = append(conds, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{Field: fieldCond},
		})
	}
	return &qdrant.Filter{Must: conds}, nil
}

// qdrantFieldCondition translates one Condition into the matching Qdrant
// FieldCondition variant: keyword/keywords match for Eq/In, full-text match
// for Contains (requires a text index on the field), values-count for
// NonEmpty, and a numeric range for Range.
func qdrantFieldCondition(cond Condition) (*qdrant.FieldCondition, error) {
	switch cond.Kind {
	case CondIn:
		vals := make([]string, len(cond.In))
		for i, v := range cond.In {
			vals[i] = fmt.Sprintf("%v", v)
		}
		return &qdrant.FieldCondition{
			Key:   cond.Field,
			Match: &qdrant.Match{MatchValue: &qdrant.Match_Keywords{Keywords: &qdrant.RepeatedStrings{Strings: vals}}},
		}, nil
	case CondContains:
		return &qdrant.FieldCondition{
			Key:   cond.Field,
			Match: &qdrant.Match{MatchValue: &qdrant.Match_Text{Text: cond.Substring}},
		}, nil
	case CondNonEmpty:
		min := uint64(1)
		return &qdrant.FieldCondition{
			Key:         cond.Field,
			ValuesCount: &qdrant.ValuesCount{Gte: &min},
		}, nil
	case CondRange:
		r := &qdrant.Range{}
		if cond.Gte != nil {
			r.Gte = cond.Gte
		}
		if cond.Lte != nil {
			r.Lte = cond.Lte
		}
		return &qdrant.FieldCondition{Key: cond.Field, Range: r}, nil
	default:
		return &qdrant.FieldCondition{
			Key:   cond.Field,
			Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: fmt.Sprintf("%v", cond.Value)}},
		}, nil
	}
}

// Upsert writes or replaces records in collection, creating the collection
// first if this is its first use.
func (c *QdrantClient) Upsert(ctx context.Context, collection Collection, records []Record) error {
	ctx, span := tracer.Start(ctx, "QdrantClient.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("collection", string(collection)), attribute.Int("count", len(records)))

	if len(records) == 0 {
		return nil
	}
	if err := c.ensureCollection(ctx, collection); err != nil {
		span.RecordError(err)
		return err
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = recordToPoint(r)
	}

	err := c.retry(ctx, "upsert", func() error {
		_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collectionName(collection),
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query runs Stage-1 approximate lead-vector ANN search in collection.
func (c *QdrantClient) Query(ctx context.Context, collection Collection, leadVector []float32, k int, filter *Filter) ([]ScoredRecord, error) {
	ctx, span := tracer.Start(ctx, "QdrantClient.Query")
	defer span.End()
	span.SetAttributes(attribute.String("collection", string(collection)), attribute.Int("k", k))

	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidFilter, k)
	}

	qFilter, err := buildQdrantFilter(filter)
	if err != nil {
		return nil, err
	}

	var results []*qdrant.ScoredPoint
	err = c.retry(ctx, "query", func() error {
		res, err := c.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collectionName(collection),
			Query:          qdrant.NewQuery(leadVector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
			Filter:         qFilter,
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := make([]ScoredRecord, len(results))
	for i, p := range results {
		rec := pointToRecord(pointIDString(p.Id), pointLeadVector(p.Vectors), p.Payload)
		out[i] = ScoredRecord{Record: rec, Score: p.Score}
	}
	span.SetAttributes(attribute.Int("results", len(out)))
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// GetMany fetches full records by ID for exact re-ranking.
func (c *QdrantClient) GetMany(ctx context.Context, collection Collection, ids []string) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "QdrantClient.GetMany")
	defer span.End()
	span.SetAttributes(attribute.String("collection", string(collection)), attribute.Int("count", len(ids)))

	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}

	var points []*qdrant.RetrievedPoint
	err := c.retry(ctx, "get_many", func() error {
		res, err := c.client.Get(ctx, &qdrant.GetPoints{
			CollectionName: collectionName(collection),
			Ids:            pointIDs,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := make([]Record, len(points))
	for i, p := range points {
		out[i] = pointToRecord(pointIDString(p.Id), pointLeadVector(p.Vectors), p.Payload)
	}
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// DeleteBy removes every record matching filter from collection.
func (c *QdrantClient) DeleteBy(ctx context.Context, collection Collection, filter Filter) error {
	ctx, span := tracer.Start(ctx, "QdrantClient.DeleteBy")
	defer span.End()
	span.SetAttributes(attribute.String("collection", string(collection)))

	qFilter, err := buildQdrantFilter(&filter)
	if err != nil {
		return err
	}
	if qFilter == nil {
		return fmt.Errorf("%w: DeleteBy requires at least one condition", ErrInvalidFilter)
	}

	err = c.retry(ctx, "delete_by", func() error {
		_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collectionName(collection),
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: qFilter},
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	if num := id.GetNum(); num != 0 {
		return fmt.Sprintf("%d", num)
	}
	return ""
}

func pointLeadVector(vectors *qdrant.VectorsOutput) []float32 {
	if vectors == nil {
		return nil
	}
	if vec := vectors.GetVector(); vec != nil {
		if dense := vec.GetDense(); dense != nil {
			return dense.GetData()
		}
	}
	return nil
}

var _ Client = (*QdrantClient)(nil)
