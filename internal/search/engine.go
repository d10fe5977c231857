package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fyrsmithlabs/contextd/internal/codec"
	"github.com/fyrsmithlabs/contextd/internal/domain"
	"github.com/fyrsmithlabs/contextd/internal/embeddings"
	"github.com/fyrsmithlabs/contextd/internal/reranker"
	"github.com/fyrsmithlabs/contextd/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("docusearchd.search")

// Engine runs two-stage retrieval against the vector store: an approximate
// lead-vector shortlist followed by an exact MaxSim re-rank.
type Engine struct {
	engine  embeddings.Engine
	store   vectorstore.Client
	seqCdc  *codec.SequenceCodec
	lexical reranker.Reranker
	config  Config
	metrics *Metrics
	logger  *zap.Logger
}

// New constructs an Engine.
func New(engine embeddings.Engine, store vectorstore.Client, config Config, logger *zap.Logger) (*Engine, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if engine == nil || store == nil {
		return nil, fmt.Errorf("%w: engine and store are required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	seqCdc, err := codec.NewSequenceCodec(false)
	if err != nil {
		return nil, fmt.Errorf("constructing sequence codec: %w", err)
	}
	return &Engine{
		engine:  engine,
		store:   store,
		seqCdc:  seqCdc,
		lexical: reranker.NewTermOverlapReranker(),
		config:  config,
		metrics: NewMetrics(logger),
		logger:  logger,
	}, nil
}

// Close releases codec and reranker resources.
func (e *Engine) Close() {
	e.seqCdc.Close()
	e.lexical.Close()
}

// Search runs the query against the selected collections and returns a
// ranked, truncated result set.
func (e *Engine) Search(ctx context.Context, q Query) (Results, error) {
	if err := q.Validate(); err != nil {
		return Results{}, err
	}

	deadline := q.Deadline
	if deadline.IsZero() {
		deadline = time.Now().Add(e.config.Deadline)
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	ctx, span := tracer.Start(ctx, "Engine.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("search.mode", string(q.Mode)),
		attribute.Int("search.n_results", q.NResults),
	)

	start := time.Now()
	queryEmb, err := e.engine.EmbedQuery(ctx, q.Text)
	e.metrics.RecordStage(ctx, "embed_query", start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Results{}, fmt.Errorf("embedding query: %w", err)
	}

	collections := collectionsForMode(q.Mode)
	k := e.config.shortlistSize(q.NResults)

	var (
		normalized           []Result
		perCollectionResults [][]Result
		gotAnyShortlist      bool
		stage1Failures       int
		lastStage1Err        error
	)

	for _, col := range collections {
		stage1Start := time.Now()
		shortlist, err := e.store.Query(ctx, col, queryEmb.LeadVector(), k, q.Filter)
		e.metrics.RecordStage(ctx, "stage1_"+string(col), stage1Start)
		if err != nil {
			e.logger.Warn("stage1 shortlist failed", zap.String("collection", string(col)), zap.Error(err))
			stage1Failures++
			lastStage1Err = err
			continue
		}
		if len(shortlist) == 0 {
			continue
		}
		gotAnyShortlist = true

		stage2Start := time.Now()
		rescored, err := e.rescore(ctx, col, queryEmb, shortlist)
		e.metrics.RecordStage(ctx, "stage2_"+string(col), stage2Start)
		if err != nil {
			e.logger.Warn("stage2 re-rank incomplete", zap.String("collection", string(col)), zap.Error(err))
		}
		if q.Mode == ModeHybrid {
			minMaxNormalize(rescored)
		}
		perCollectionResults = append(perCollectionResults, rescored)
	}

	if !gotAnyShortlist {
		if err := ctx.Err(); err != nil {
			span.RecordError(ErrDeadlineExceeded)
			return Results{}, ErrDeadlineExceeded
		}
		if stage1Failures == len(collections) {
			span.RecordError(lastStage1Err)
			return Results{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, lastStage1Err)
		}
		return Results{Hits: nil}, nil
	}

	// hybrid queries normalize per collection then collapse to one hit per
	// document; visual_only/text_only keep every shortlisted record as its
	// own ranked hit, since there's only one collection to begin with.
	if q.Mode == ModeHybrid {
		normalized = mergeByDocument(perCollectionResults...)
	} else {
		for _, results := range perCollectionResults {
			normalized = append(normalized, results...)
		}
	}
	if e.config.LexicalRerank {
		normalized = e.applyLexicalRerank(ctx, q.Text, normalized)
	}
	sort.Slice(normalized, func(i, j int) bool { return normalized[i].Score > normalized[j].Score })

	partial := ctx.Err() != nil
	if len(normalized) > q.NResults {
		normalized = normalized[:q.NResults]
	}

	e.metrics.RecordResult(ctx, q.Mode, len(normalized), partial)
	span.SetAttributes(attribute.Int("search.result_count", len(normalized)))
	return Results{Hits: normalized, Partial: partial}, nil
}

// rescore fetches the full multi-vector sequence for each shortlisted
// candidate and computes its exact MaxSim score against the query. A
// candidate that fails to fetch or decode is dropped rather than failing
// the whole stage, since the deadline may already be close.
func (e *Engine) rescore(ctx context.Context, col vectorstore.Collection, query domain.Embedding, shortlist []vectorstore.ScoredRecord) ([]Result, error) {
	ids := make([]string, len(shortlist))
	for i, s := range shortlist {
		ids[i] = s.ID
	}

	records, err := e.store.GetMany(ctx, col, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching candidates: %w", err)
	}

	results := make([]Result, 0, len(records))
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		seq, err := e.seqCdc.DecodeSequence(rec.SequenceBlob)
		if err != nil {
			e.logger.Warn("decoding sequence failed, dropping candidate", zap.String("record.id", rec.ID), zap.Error(err))
			continue
		}
		score, err := e.engine.ScoreMultiVector(query, domain.Embedding{Vectors: seq})
		if err != nil {
			e.logger.Warn("scoring candidate failed, dropping candidate", zap.String("record.id", rec.ID), zap.Error(err))
			continue
		}
		results = append(results, recordToResult(col, rec, score))
	}
	return results, ctx.Err()
}

func recordToResult(col vectorstore.Collection, rec vectorstore.Record, score float32) Result {
	r := Result{
		RecordID:   rec.ID,
		Collection: col,
		Score:      score,
		Metadata:   rec.Metadata,
	}
	if docID, ok := rec.Metadata["doc_id"].(string); ok {
		r.DocID = docID
	}
	if page, ok := rec.Metadata["page"].(int64); ok {
		r.Page = int(page)
	}
	if section, ok := rec.Metadata["section"].(string); ok {
		r.Section = section
	}
	if text, ok := rec.Metadata["full_text"].(string); ok {
		r.Text = text
	}
	return r
}

func collectionsForMode(mode Mode) []vectorstore.Collection {
	switch mode {
	case ModeVisualOnly:
		return []vectorstore.Collection{vectorstore.CollectionVisual}
	case ModeTextOnly:
		return []vectorstore.Collection{vectorstore.CollectionText}
	default:
		return []vectorstore.Collection{vectorstore.CollectionVisual, vectorstore.CollectionText}
	}
}
