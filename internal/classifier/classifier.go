// Package classifier implements the two-stage query classifier (C6):
// weighted keyword scoring against a fixed table, a context-carry fallback
// for follow-up turns, and an optional remote fine-tuned-model fallback.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/text/cases"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/observability"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
	"github.com/rs/zerolog"
)

var fold = cases.Fold()

// containsFold reports whether text contains term as a case-folded substring.
// Korean text has no case, but queries are free-form and may mix in Latin
// script, so folding still matters for those tokens.
func containsFold(text, term string) bool {
	return bytes.Contains([]byte(fold.String(text)), []byte(fold.String(term)))
}

// Config mirrors config.ClassifierConfig; kept separate so this package has
// no dependency on internal/config.
type Config struct {
	ConfidenceThreshold float64
	MinScore            int
	RemoteTimeout       time.Duration
	RemoteEndpoint      string // empty disables the fine-tuned fallback
	RemoteModel         string
}

// Classifier implements classify(query, prev_category) -> Category. It is
// stateless and never returns an error: every failure mode downgrades to a
// lower-confidence decision, ending at models.CategoryGeneral.
type Classifier struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger
}

// New creates a Classifier with an http.Client bounded by cfg.RemoteTimeout;
// the client is only used when a remote endpoint is set.
func New(cfg Config) *Classifier {
	return &Classifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RemoteTimeout},
		logger: observability.Logger("classifier"),
	}
}

// maxQueryRunes bounds the text handed to scoring; longer queries are
// truncated before classification (spec §8 boundary: >2KB query).
const maxQueryRunes = 2048

func truncateQuery(query string) string {
	r := []rune(query)
	if len(r) <= maxQueryRunes {
		return query
	}
	return string(r[:maxQueryRunes])
}

// Classify implements the four-step decision rule from spec §4.1. It never
// panics or returns an error; ctx only bounds the optional remote call.
func (c *Classifier) Classify(ctx context.Context, query string, prevCategory models.Category) models.Category {
	query = truncateQuery(query)
	if len(query) == 0 {
		return models.CategoryGeneral
	}

	scores := make(map[models.Category]int, len(keywordTable))
	total := 0
	var best models.Category
	bestScore := -1
	for _, cat := range models.Categories {
		if cat == models.CategoryGeneral {
			continue
		}
		s := score(query, keywordTable[cat])
		scores[cat] = s
		total += s
		if s > bestScore {
			bestScore = s
			best = cat
		}
	}

	if total > 0 {
		confidence := float64(bestScore) / float64(total)
		if bestScore >= c.cfg.MinScore && confidence >= c.cfg.ConfidenceThreshold {
			return best
		}
	}

	if prevCategory.Valid() && prevCategory != models.CategoryGeneral {
		if score(query, contextCarryKeywords) >= 2 {
			return prevCategory
		}
	}

	if c.cfg.RemoteEndpoint != "" && len([]rune(query)) > 10 {
		if cat, ok := c.classifyRemote(ctx, query); ok {
			return cat
		}
	}

	return models.CategoryGeneral
}

type remoteClassifyRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type remoteClassifyResponse struct {
	Category string `json:"category"`
}

// classifyRemote calls the configured fine-tuned classifier endpoint once,
// under a fixed timeout. Any failure or off-enum result is logged and
// downgraded; it never propagates as an error (spec §4.1 failure semantics).
func (c *Classifier) classifyRemote(ctx context.Context, query string) (models.Category, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RemoteTimeout)
	defer cancel()

	reqBody := remoteClassifyRequest{
		Model:       c.cfg.RemoteModel,
		Prompt:      query,
		MaxTokens:   10,
		Temperature: 0.0,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		c.logger.Warn().Err(err).Msg("remote classifier request marshal failed")
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RemoteEndpoint, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn().Err(err).Msg("remote classifier request build failed")
		return "", false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("remote classifier call failed, falling back")
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("remote classifier returned non-200, falling back")
		return "", false
	}

	var parsed remoteClassifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Warn().Err(err).Msg("remote classifier response decode failed")
		return "", false
	}

	cat := models.Category(parsed.Category)
	if !cat.Valid() {
		c.logger.Warn().Str("category", parsed.Category).Msg("remote classifier returned invalid category")
		return "", false
	}
	return cat, true
}

// Scores exposes the raw per-category weighted scores for a query.
func (c *Classifier) Scores(query string) map[models.Category]int {
	query = truncateQuery(query)
	out := make(map[models.Category]int, len(keywordTable))
	for cat, kws := range keywordTable {
		out[cat] = score(query, kws)
	}
	return out
}
