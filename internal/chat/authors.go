package chat

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pitchroom/internal/logging"
)

// authorCache memoizes successful lookups for one conversation session.
// Failed lookups are not cached and degrade to UnknownAuthor.
type authorCache struct {
	lookup AuthorLookup
	logger *logging.Logger

	mu      sync.Mutex
	authors map[string]Author
}

func newAuthorCache(lookup AuthorLookup, logger *logging.Logger) *authorCache {
	return &authorCache{lookup: lookup, logger: logger, authors: make(map[string]Author)}
}

func (c *authorCache) reset() {
	c.mu.Lock()
	c.authors = make(map[string]Author)
	c.mu.Unlock()
}

func (c *authorCache) resolve(ctx context.Context, authorID string) Author {
	c.mu.Lock()
	a, ok := c.authors[authorID]
	c.mu.Unlock()
	if ok {
		return a
	}
	if c.lookup == nil || authorID == "" {
		return UnknownAuthor
	}

	a, err := c.lookup.LookupAuthor(ctx, authorID)
	if err != nil {
		c.logger.Warn(ctx, "author lookup failed",
			zap.String("author.id", authorID),
			zap.Error(err),
		)
		return UnknownAuthor
	}
	if a.Name == "" {
		a.Name = UnknownAuthor.Name
	}

	c.mu.Lock()
	c.authors[authorID] = a
	c.mu.Unlock()
	return a
}
