package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/contextd/internal/codec"
	"github.com/fyrsmithlabs/contextd/internal/domain"
	"github.com/fyrsmithlabs/contextd/internal/embeddings"
	"github.com/fyrsmithlabs/contextd/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// metadataVersion is stamped onto every stored record so future schema
// changes can be detected on read.
const metadataVersion = "v1.0"

var tracer = otel.Tracer("docusearchd.ingestion")

// job is one in-flight document, queued for a worker to pick up.
type job struct {
	docID    string
	filename string
	content  []byte
	ctx      context.Context
}

// Pipeline runs documents through the ingestion state machine using a
// bounded pool of workers, one document per worker at a time.
type Pipeline struct {
	parser     Parser
	engine     embeddings.Engine
	store      vectorstore.Client
	seqCodec   *codec.SequenceCodec
	structCdc  *codec.StructureCodec
	config     Config
	logger     *zap.Logger
	onProgress ProgressFunc

	queue chan job
	wg    sync.WaitGroup

	mu       sync.RWMutex
	statuses map[string]*domain.Document
	cancels  map[string]context.CancelFunc

	closeOnce sync.Once
}

// New constructs a Pipeline and starts its worker pool. Call Close to stop
// the workers and release resources.
func New(parser Parser, engine embeddings.Engine, store vectorstore.Client, config Config, logger *zap.Logger) (*Pipeline, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if parser == nil || engine == nil || store == nil {
		return nil, fmt.Errorf("%w: parser, engine, and store are required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	seqCodec, err := codec.NewSequenceCodec(config.Quantize)
	if err != nil {
		return nil, fmt.Errorf("constructing sequence codec: %w", err)
	}

	p := &Pipeline{
		parser:    parser,
		engine:    engine,
		store:     store,
		seqCodec:  seqCodec,
		structCdc: codec.NewStructureCodec(),
		config:    config,
		logger:    logger,
		queue:     make(chan job, config.QueueCapacity),
		statuses:  make(map[string]*domain.Document),
		cancels:   make(map[string]context.CancelFunc),
	}

	for i := 0; i < config.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p, nil
}

// OnProgress registers a callback invoked on every stage transition.
func (p *Pipeline) OnProgress(fn ProgressFunc) {
	p.onProgress = fn
}

// Submit enqueues a document for ingestion. Resubmitting a doc_id already
// in-flight returns its existing status rather than starting a second job.
func (p *Pipeline) Submit(ctx context.Context, docID, filename string, content []byte) (domain.Document, error) {
	p.mu.Lock()
	if existing, ok := p.statuses[docID]; ok && !existing.Status.Terminal() {
		doc := *existing
		p.mu.Unlock()
		return doc, nil
	}

	now := time.Now()
	doc := &domain.Document{ID: docID, Status: domain.DocSubmitted, SubmittedAt: now, UpdatedAt: now}
	p.statuses[docID] = doc
	jobCtx, cancel := context.WithCancel(context.Background())
	p.cancels[docID] = cancel
	p.mu.Unlock()

	select {
	case p.queue <- job{docID: docID, filename: filename, content: content, ctx: jobCtx}:
		p.setStatus(docID, domain.DocQueued, "")
		return p.snapshot(docID), nil
	default:
		p.mu.Lock()
		delete(p.statuses, docID)
		delete(p.cancels, docID)
		p.mu.Unlock()
		cancel()
		return domain.Document{}, ErrQueueFull
	}
}

// Status returns the current status of a submitted document.
func (p *Pipeline) Status(docID string) (domain.Document, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	doc, ok := p.statuses[docID]
	if !ok {
		return domain.Document{}, ErrNotFound
	}
	return *doc, nil
}

// Cancel requests cooperative cancellation of an in-flight document. The
// worker observes this at its next stage boundary.
func (p *Pipeline) Cancel(docID string) error {
	p.mu.Lock()
	doc, ok := p.statuses[docID]
	if !ok {
		p.mu.Unlock()
		return ErrNotFound
	}
	if doc.Status.Terminal() {
		p.mu.Unlock()
		return ErrAlreadyTerminal
	}
	cancel := p.cancels[docID]
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Close stops accepting new work, waits for queued and in-flight documents
// to drain, and releases codec resources.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		close(p.queue)
		p.wg.Wait()
		p.seqCodec.Close()
	})
	return nil
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for j := range p.queue {
		p.run(j)
	}
}

func (p *Pipeline) snapshot(docID string) domain.Document {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return *p.statuses[docID]
}

func (p *Pipeline) setStatus(docID string, status domain.DocStatus, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, ok := p.statuses[docID]
	if !ok {
		return
	}
	doc.Status = status
	doc.Error = errMsg
	doc.UpdatedAt = time.Now()
	if p.onProgress != nil {
		fn := p.onProgress
		go fn(Progress{DocID: docID, Status: status})
	}
}

func (p *Pipeline) run(j job) {
	ctx, span := tracer.Start(j.ctx, "Pipeline.run")
	defer span.End()
	span.SetAttributes(attribute.String("doc.id", j.docID))

	fail := func(stage string, err error) {
		p.logger.Warn("ingestion stage failed", zap.String("doc.id", j.docID), zap.String("stage", stage), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.setStatus(j.docID, domain.DocFailed, err.Error())
	}

	if stageCancelled(ctx) {
		p.setStatus(j.docID, domain.DocCancelled, "")
		return
	}

	p.setStatus(j.docID, domain.DocParsing, "")
	pages, chunks, headings, err := p.parser.Parse(ctx, j.docID, j.filename, j.content)
	if err != nil {
		fail("parse", fmt.Errorf("parsing document: %w", err))
		return
	}

	if stageCancelled(ctx) {
		p.setStatus(j.docID, domain.DocCancelled, "")
		return
	}

	p.setStatus(j.docID, domain.DocEmbeddingVisual, "")
	visualEmb, err := embedVisual(ctx, p.engine, pages)
	if err != nil {
		fail("embed_visual", err)
		return
	}

	if stageCancelled(ctx) {
		p.setStatus(j.docID, domain.DocCancelled, "")
		return
	}

	p.setStatus(j.docID, domain.DocEmbeddingText, "")
	textEmb, err := embedText(ctx, p.engine, chunks)
	if err != nil {
		fail("embed_text", err)
		return
	}

	if stageCancelled(ctx) {
		p.setStatus(j.docID, domain.DocCancelled, "")
		return
	}

	visualRecords, textRecords, err := p.buildRecords(j.docID, j.filename, pages, chunks, headings, visualEmb, textEmb)
	if err != nil {
		fail("enrich_metadata", err)
		return
	}

	if stageCancelled(ctx) {
		p.setStatus(j.docID, domain.DocCancelled, "")
		return
	}

	p.setStatus(j.docID, domain.DocStoring, "")
	if err := p.storeWithRetry(ctx, vectorstore.CollectionVisual, visualRecords); err != nil {
		fail("store_visual", err)
		return
	}
	if err := p.storeWithRetry(ctx, vectorstore.CollectionText, textRecords); err != nil {
		fail("store_text", err)
		return
	}

	p.mu.Lock()
	if doc, ok := p.statuses[j.docID]; ok {
		doc.PageCount = len(pages)
		doc.ChunkCount = len(chunks)
	}
	p.mu.Unlock()

	p.setStatus(j.docID, domain.DocCompleted, "")
	span.SetStatus(codes.Ok, "completed")
}

func stageCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func embedVisual(ctx context.Context, engine embeddings.Engine, pages []domain.Page) ([]domain.Embedding, error) {
	if len(pages) == 0 {
		return nil, nil
	}
	return engine.EmbedImages(ctx, pages)
}

func embedText(ctx context.Context, engine embeddings.Engine, chunks []domain.TextChunk) ([]domain.Embedding, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	return engine.EmbedTexts(ctx, chunks)
}

// buildRecords encodes multi-vector sequences and cross-reference structure
// into vector store records for both collections, filling in every
// metadata field the metadata schema requires: navigation fields, document
// structure summary counts, and the heading<->chunk backlinks.
func (p *Pipeline) buildRecords(docID, filename string, pages []domain.Page, chunks []domain.TextChunk, headings []domain.Heading, visualEmb, textEmb []domain.Embedding) ([]vectorstore.Record, []vectorstore.Record, error) {
	now := time.Now().Unix()

	chunkIDs := make([]string, len(chunks))
	for i, c := range chunks {
		chunkIDs[i] = textRecordID(docID, c.Index)
	}

	byHeadingTitle := make(map[string][]string, len(headings))
	for i, c := range chunks {
		if c.ParentHeading == "" {
			continue
		}
		byHeadingTitle[c.ParentHeading] = append(byHeadingTitle[c.ParentHeading], chunkIDs[i])
	}

	structure := domain.DocumentStructure{DocID: docID, Headings: make([]domain.Heading, len(headings))}
	maxHeadingDepth := 0
	for i, h := range headings {
		h.ChunkIDs = byHeadingTitle[h.Title]
		structure.Headings[i] = h
		if h.Level > maxHeadingDepth {
			maxHeadingDepth = h.Level
		}
	}
	for i, c := range chunks {
		var bbox domain.BoundingBox
		if c.BBox != nil {
			bbox = *c.BBox
		}
		structure.Chunks = append(structure.Chunks, domain.ChunkContext{
			ChunkID: chunkIDs[i],
			Page:    c.Page,
			BBox:    bbox,
		})
	}
	hasStructure := len(structure.Headings) > 0

	encodedStructure, err := p.structCdc.EncodeStructure(structure)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding structure: %w", err)
	}

	visualRecords := make([]vectorstore.Record, len(pages))
	for i, page := range pages {
		blob, err := p.seqCodec.EncodeSequence(visualEmb[i].Vectors)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding visual sequence for page %d: %w", page.Number, err)
		}
		visualRecords[i] = vectorstore.Record{
			ID:           visualRecordID(docID, page.Number),
			LeadVector:   visualEmb[i].LeadVector(),
			SequenceBlob: blob,
			Metadata: map[string]interface{}{
				"doc_id":            docID,
				"filename":          firstNonEmpty(page.Filename, filename),
				"page":              int64(page.Number),
				"image_path":        page.ImagePath,
				"thumb_path":        page.ThumbPath,
				"format":            page.Format,
				"mimetype":          page.Mimetype,
				"timestamp":         now,
				"has_structure":     hasStructure,
				"num_headings":      int64(len(structure.Headings)),
				"num_tables":        int64(0), // table detection isn't implemented by the text parser
				"num_pictures":      int64(0), // picture detection isn't implemented by the text parser
				"max_heading_depth": int64(maxHeadingDepth),
				"structure":         encodedStructure,
				"image_width":       int64(page.Width),
				"image_height":      int64(page.Height),
				"metadata_version":  metadataVersion,
			},
		}
	}

	textRecords := make([]vectorstore.Record, len(chunks))
	for i, chunk := range chunks {
		blob, err := p.seqCodec.EncodeSequence(textEmb[i].Vectors)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding text sequence for chunk %d: %w", chunk.Index, err)
		}
		hasContext := chunk.ElementType != ""
		meta := map[string]interface{}{
			"doc_id":           docID,
			"chunk_id":         chunkIDs[i],
			"page":             int64(chunk.Page),
			"section":          chunk.Section,
			"filename":         filename,
			"text_preview":     textPreview(chunk.Text, 200),
			"full_text":        chunk.Text,
			"word_count":       int64(wordCount(chunk.Text)),
			"timestamp":        now,
			"has_context":      hasContext,
			"metadata_version": metadataVersion,
		}
		if hasContext {
			meta["parent_heading"] = chunk.ParentHeading
			meta["parent_heading_level"] = int64(chunk.ParentHeadingLevel)
			meta["section_path"] = chunk.SectionPath
			meta["element_type"] = chunk.ElementType
			meta["is_page_boundary"] = chunk.IsPageBoundary
			meta["related_tables"] = jsonEncodeOrEmpty(chunk.RelatedTables)
			meta["related_pictures"] = jsonEncodeOrEmpty(chunk.RelatedPictures)
			meta["page_nums"] = jsonEncodeOrEmpty([]int{chunk.Page})
			if chunk.BBox != nil {
				meta["bbox"] = jsonEncodeOrEmpty(chunk.BBox)
			} else {
				meta["bbox"] = nil
			}
		}

		textRecords[i] = vectorstore.Record{
			ID:           chunkIDs[i],
			LeadVector:   textEmb[i].LeadVector(),
			SequenceBlob: blob,
			Metadata:     meta,
		}
	}

	return visualRecords, textRecords, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// textPreview returns the first maxRunes runes of text, trimmed at a rune
// boundary so multi-byte characters are never split.
func textPreview(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}

// jsonEncodeOrEmpty marshals v to a JSON string for storage as flat vector
// store metadata. A marshal failure (never expected for these types) yields
// an empty JSON array so callers always get valid JSON back.
func jsonEncodeOrEmpty(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func (p *Pipeline) storeWithRetry(ctx context.Context, collection vectorstore.Collection, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	backoff := p.config.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= p.config.RetryAttempts; attempt++ {
		err := p.store.Upsert(ctx, collection, records)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == p.config.RetryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return fmt.Errorf("upsert to %s failed after %d retries: %w", collection, p.config.RetryAttempts, lastErr)
}
