package chatwoot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/domain"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/observability"
)

const defaultMaxPages = 100

// PageFetcher returns one page of messages older than the before cursor.
type PageFetcher interface {
	FetchPage(ctx context.Context, accountID, conversationID string, before int64) ([]domain.RawMessage, error)
}

// Paginator walks a conversation backwards using the oldest id of each page as cursor.
type Paginator struct {
	pages    PageFetcher
	maxPages int
	limiter  *rate.Limiter
	logger   *zerolog.Logger
}

// NewPaginator creates a paginator issuing at most maxPages requests spaced by delay.
func NewPaginator(pages PageFetcher, maxPages int, delay time.Duration, logger *zerolog.Logger) *Paginator {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}

	return &Paginator{
		pages:    pages,
		maxPages: maxPages,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}
}

// FetchAllMessages returns every customer or agent visible message of the
// conversation, oldest first. Private notes and activity entries are dropped.
// Any page error aborts the fetch.
func (p *Paginator) FetchAllMessages(ctx context.Context, conversationID, accountID string) ([]domain.RawMessage, error) {
	var (
		cursor   int64
		requests int
		done     bool
		all      []domain.RawMessage
	)

	seen := make(map[int64]struct{})

	for requests < p.maxPages {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("page limiter wait: %w", err)
		}

		page, err := p.pages.FetchPage(ctx, accountID, conversationID, cursor)
		if err != nil {
			return nil, fmt.Errorf("conversation %s page %d: %w", conversationID, requests+1, err)
		}

		requests++

		observability.PagesFetched.Inc()

		if len(page) == 0 {
			done = true

			break
		}

		next := oldestID(page)
		if next == cursor {
			p.logger.Debug().Str("conversation_id", conversationID).Int64("cursor", cursor).Msg("cursor did not advance, stopping")

			done = true

			break
		}

		cursor = next

		for _, msg := range page {
			if msg.Private || msg.MessageType == domain.MessageTypeActivity {
				continue
			}

			if _, dup := seen[msg.ID]; dup {
				continue
			}

			seen[msg.ID] = struct{}{}
			all = append(all, msg)
		}
	}

	if !done {
		p.logger.Warn().Str("conversation_id", conversationID).Int("max_pages", p.maxPages).Msg("page limit reached, history may be truncated")
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt < all[j].CreatedAt
	})

	observability.MessagesFetched.Observe(float64(len(all)))

	return all, nil
}

func oldestID(page []domain.RawMessage) int64 {
	oldest := page[0].ID

	for _, msg := range page[1:] {
		if msg.ID < oldest {
			oldest = msg.ID
		}
	}

	return oldest
}
