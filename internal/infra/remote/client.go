package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/concoursapp/catalogsync/internal/domain/catalog"
	apperrors "github.com/concoursapp/catalogsync/pkg/errors"
)

const categoriesPath = "/api/categories"

// Client fetches the catalog graph from the remote service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds an API client. The timeout bounds the whole round trip;
// zero falls back to a conservative default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchCategories performs one GET /api/categories round trip and maps the
// wire payload onto domain entities. No retry; every failure carries the
// fetch_error code and the orchestrator falls back to the cache.
func (c *Client) FetchCategories(ctx context.Context) ([]catalog.Category, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+categoriesPath, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFetch, "build catalog request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFetch, "catalog request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, apperrors.Wrap(apperrors.CodeFetch, "catalog request error: status "+resp.Status+" body "+string(payload), nil)
	}

	var raw []wireCategory
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFetch, "decode catalog response", err)
	}

	return mapCategories(raw), nil
}

// Wire payload as served by the catalog endpoint. Identifiers arrive under
// the service's `_id` key and answers under `options`.
type wireCategory struct {
	ID          string         `json:"_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Questions   []wireQuestion `json:"questions"`
}

type wireQuestion struct {
	ID            string       `json:"_id"`
	Text          string       `json:"text"`
	CorrectAnswer string       `json:"correctAnswer"`
	Options       []wireOption `json:"options"`
}

type wireOption struct {
	ID        string `json:"_id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

func mapCategories(raw []wireCategory) []catalog.Category {
	categories := make([]catalog.Category, 0, len(raw))
	for _, rc := range raw {
		category := catalog.Category{
			ID:          rc.ID,
			Title:       rc.Title,
			Description: rc.Description,
			Questions:   make([]catalog.Question, 0, len(rc.Questions)),
		}
		for _, rq := range rc.Questions {
			question := catalog.Question{
				ID:            rq.ID,
				CategoryID:    rc.ID,
				Text:          rq.Text,
				CorrectAnswer: rq.CorrectAnswer,
				Answers:       make([]catalog.Answer, 0, len(rq.Options)),
			}
			for _, ro := range rq.Options {
				if question.CorrectAnswer == "" && ro.IsCorrect {
					question.CorrectAnswer = ro.Text
				}
				question.Answers = append(question.Answers, catalog.Answer{
					ID:         ro.ID,
					QuestionID: rq.ID,
					Text:       ro.Text,
					IsCorrect:  ro.IsCorrect,
				})
			}
			category.Questions = append(category.Questions, question)
		}
		categories = append(categories, category)
	}
	return categories
}

var _ catalog.Fetcher = (*Client)(nil)
