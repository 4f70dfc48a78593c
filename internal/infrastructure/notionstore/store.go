// Package notionstore keeps the Membership, Invoices and Invoice items
// tables in three Notion databases. Notion writes one page per request, so
// every record of a chunk is its own API call, paced by a rate limiter.
package notionstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eyc/invoicing/internal/domain/membership"
	"github.com/eyc/invoicing/internal/infrastructure/config"
)

// DefaultRequestsPerSecond is Notion's documented average request rate.
const DefaultRequestsPerSecond = 3

const queryPageSize = 100

// Config names the three databases backing the tables.
type Config struct {
	MembersDatabaseID  string
	InvoicesDatabaseID string
	ItemsDatabaseID    string
	RequestsPerSecond  float64
}

// ConfigFrom maps the application config onto the store config.
func ConfigFrom(cfg config.NotionConfig, requestsPerSecond float64) Config {
	return Config{
		MembersDatabaseID:  cfg.MembersDatabaseID,
		InvoicesDatabaseID: cfg.InvoicesDatabaseID,
		ItemsDatabaseID:    cfg.ItemsDatabaseID,
		RequestsPerSecond:  requestsPerSecond,
	}
}

// Store implements membership.Store on Notion.
type Store struct {
	api     NotionService
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a Store over api.
func New(api NotionService, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.MembersDatabaseID == "" || cfg.InvoicesDatabaseID == "" || cfg.ItemsDatabaseID == "" {
		return nil, errors.New("notion store needs the members, invoices and items database IDs")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Store{
		api:     api,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("notion"),
	}, nil
}

// Open creates a Store that talks to the Notion API with token.
func Open(cfg config.NotionConfig, requestsPerSecond float64, logger *zap.Logger) (*Store, error) {
	if cfg.Token == "" {
		return nil, errors.New("notion token is required")
	}
	return New(NewNotionClient(cfg.Token), ConfigFrom(cfg, requestsPerSecond), logger)
}

// Members implements membership.Store
func (s *Store) Members() membership.MemberRepository { return &memberTable{s} }

// Invoices implements membership.Store
func (s *Store) Invoices() membership.InvoiceRepository { return &invoiceTable{s} }

// LineItems implements membership.Store
func (s *Store) LineItems() membership.LineItemRepository { return &lineItemTable{s} }

// Close implements membership.Store. The HTTP client needs no cleanup.
func (s *Store) Close() error { return nil }

func (s *Store) wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notion rate limiter: %w", err)
	}
	return nil
}

// queryAll reads every page of a database matching filter (nil for all).
func (s *Store) queryAll(ctx context.Context, databaseID string, filter notionapi.Filter) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter:   filter,
			PageSize: queryPageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		resp, err := s.api.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, err
		}
		pages = append(pages, resp.Results...)

		if !resp.HasMore {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

// createPages creates one page per record and hands each new page ID to
// assign. Pages created before a failure stay in Notion.
func (s *Store) createPages(ctx context.Context, table, databaseID string, props []notionapi.Properties, assign func(i int, id string)) error {
	for i, p := range props {
		if err := s.wait(ctx); err != nil {
			return &membership.PartialWriteError{N: i, Err: err}
		}
		page, err := s.api.CreatePage(ctx, databaseID, p)
		if err != nil {
			return &membership.PartialWriteError{N: i, Err: fmt.Errorf("create %s record %d of %d: %w", table, i+1, len(props), err)}
		}
		assign(i, string(page.ID))
	}
	return nil
}

func (s *Store) updatePages(ctx context.Context, table string, ids []string, props []notionapi.Properties) error {
	for i, id := range ids {
		if err := s.wait(ctx); err != nil {
			return &membership.PartialWriteError{N: i, Err: err}
		}
		if _, err := s.api.UpdatePage(ctx, id, props[i]); err != nil {
			return &membership.PartialWriteError{N: i, Err: fmt.Errorf("update %s record %d of %d: %w", table, i+1, len(ids), err)}
		}
	}
	return nil
}

func (s *Store) archivePages(ctx context.Context, table string, ids []string) error {
	for i, id := range ids {
		if err := s.wait(ctx); err != nil {
			return &membership.PartialWriteError{N: i, Err: err}
		}
		if err := s.api.ArchivePage(ctx, id); err != nil {
			return &membership.PartialWriteError{N: i, Err: fmt.Errorf("delete %s record %d of %d: %w", table, i+1, len(ids), err)}
		}
	}
	return nil
}

func recordIDs[T membership.Record](records []T) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.RecordID()
	}
	return ids
}

// relationFilter matches pages whose relation prop links to pageID, or any
// page at all when pageID is "".
func relationFilter(prop, pageID string) notionapi.Filter {
	cond := &notionapi.RelationFilterCondition{Contains: pageID}
	if pageID == "" {
		cond = &notionapi.RelationFilterCondition{IsNotEmpty: true}
	}
	return &notionapi.PropertyFilter{Property: prop, Relation: cond}
}

var _ membership.Store = (*Store)(nil)
