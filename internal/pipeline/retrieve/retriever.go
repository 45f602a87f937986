// internal/pipeline/retrieve/retriever.go
package retrieve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"support-triage/internal/common/logger"
	"support-triage/internal/models"
)

const Stage = "retrieve"

// Config holds the retrieval settings.
type Config struct {
	Index               string
	Limit               int
	SimilarityThreshold float64
}

// Retriever searches the tenant's knowledge base for passages grounding a
// query. Every search carries a hard tenant filter; a query for tenant A can
// never see tenant B's passages.
type Retriever struct {
	config *Config
	client *elasticsearch.Client
	logger logger.Logger
}

func NewRetriever(config *Config, client *elasticsearch.Client, log logger.Logger) *Retriever {
	return &Retriever{
		config: config,
		client: client,
		logger: log.WithFields(map[string]interface{}{"stage": Stage}),
	}
}

// fallbackPassages is the static grounding set substituted when a tenant has
// no matching knowledge. The generator always needs some grounding text, so
// retrieval never returns an empty passage list.
var fallbackPassages = []string{
	"Our support team is available to help with account, billing, and technical questions.",
	"For account-specific issues, an agent may need to verify your identity before making changes.",
	"If your issue is urgent, let us know and we will prioritize connecting you with an agent.",
}

const fallbackDocumentID = "general-support-guide"

// Retrieve returns ranked passages with per-document provenance. It does not
// return an error: any search failure degrades to the fallback context with
// UsedFallback set, which the generator's confidence policy penalizes.
func (r *Retriever) Retrieve(ctx context.Context, query, tenantID string) *models.RetrievalResult {
	hits, err := r.search(ctx, query, tenantID)
	if err != nil {
		r.logger.Warn("knowledge search failed, using fallback context", map[string]interface{}{
			"tenantId": tenantID,
			"error":    err.Error(),
		})
		return fallbackResult()
	}

	if len(hits) == 0 {
		r.logger.Info("no passages cleared threshold, using fallback context", map[string]interface{}{
			"tenantId":  tenantID,
			"threshold": r.config.SimilarityThreshold,
		})
		return fallbackResult()
	}

	passages := make([]string, 0, len(hits))
	sourceIndex := make(map[string]int)
	sources := make([]models.SourceRef, 0)

	for _, h := range hits {
		passages = append(passages, h.Content)
		if idx, ok := sourceIndex[h.DocumentID]; ok {
			sources[idx].PassageCount++
			continue
		}
		sourceIndex[h.DocumentID] = len(sources)
		sources = append(sources, models.SourceRef{
			DocumentID:   h.DocumentID,
			DisplayName:  h.DocumentName,
			PassageCount: 1,
		})
	}

	r.logger.Info("passages retrieved", map[string]interface{}{
		"tenantId":     tenantID,
		"passageCount": len(passages),
		"sourceCount":  len(sources),
	})

	return &models.RetrievalResult{
		Passages: passages,
		Sources:  sources,
	}
}

func fallbackResult() *models.RetrievalResult {
	passages := make([]string, len(fallbackPassages))
	copy(passages, fallbackPassages)
	return &models.RetrievalResult{
		Passages: passages,
		Sources: []models.SourceRef{{
			DocumentID:   fallbackDocumentID,
			DisplayName:  "General Support Guide",
			PassageCount: len(passages),
		}},
		UsedFallback: true,
	}
}

type passageHit struct {
	Content      string
	DocumentID   string
	DocumentName string
	Score        float64
}

func (r *Retriever) search(ctx context.Context, query, tenantID string) ([]passageHit, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}

	body, _ := json.Marshal(buildPassageQuery(query, tenantID, r.config.SimilarityThreshold))

	size := r.config.Limit
	req := esapi.SearchRequest{
		Index: []string{r.config.Index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					Content      string `json:"content"`
					DocumentID   string `json:"document_id"`
					DocumentName string `json:"document_name"`
					TenantID     string `json:"tenant_id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]passageHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		// The index-side filter already scopes by tenant; the check here is a
		// correctness guard, not a convenience.
		if h.Source.TenantID != tenantID {
			continue
		}
		hits = append(hits, passageHit{
			Content:      h.Source.Content,
			DocumentID:   h.Source.DocumentID,
			DocumentName: h.Source.DocumentName,
			Score:        h.Score,
		})
	}

	return hits, nil
}

// buildPassageQuery builds the search body. Scores in the passage index are
// normalized similarities, so min_score doubles as the similarity threshold.
// The term filter on tenant_id is mandatory.
func buildPassageQuery(query, tenantID string, threshold float64) map[string]interface{} {
	return map[string]interface{}{
		"min_score": threshold,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  query,
							"fields": []string{"content^2", "document_name"},
							"type":   "best_fields",
						},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"tenant_id": tenantID},
					},
				},
			},
		},
	}
}
