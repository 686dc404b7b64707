package retriever

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

var fold = cases.Fold()

func containsFold(text, term string) bool {
	return strings.Contains(fold.String(text), fold.String(term))
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// snippetKey is the merge-dedupe key from spec §4.3.2: a hash of the first
// 100 characters of a result's text.
func snippetKey(text string) string {
	r := []rune(text)
	if len(r) > 100 {
		r = r[:100]
	}
	return hashText(string(r))
}

type cacheKey struct {
	category models.Category
	queryKey string
}

// resultCache is the bounded FIFO (category, hash(query)) -> formatted
// context cache from spec §3/§4.3.2. A single mutex guards it; misses do
// their I/O outside the lock (spec §5).
type resultCache struct {
	mu       sync.Mutex
	capacity int
	order    []cacheKey
	data     map[cacheKey]string
}

func newResultCache(capacity int) *resultCache {
	if capacity <= 0 {
		capacity = 100
	}
	return &resultCache{
		capacity: capacity,
		data:     make(map[cacheKey]string),
	}
}

func (c *resultCache) get(category models.Category, query string) (string, bool) {
	key := cacheKey{category: category, queryKey: hashText(query)}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *resultCache) put(category models.Category, query, value string) {
	key := cacheKey{category: category, queryKey: hashText(query)}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; exists {
		c.data[key] = value
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.data, oldest)
	}
	c.order = append(c.order, key)
	c.data[key] = value
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
