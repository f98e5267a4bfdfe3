package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/culturalbot/eventbot/internal/feed"
)

const entriesPageSize = 100

// ContentfulClient reads event entries from the Contentful delivery API.
type ContentfulClient struct {
	baseURL     string
	spaceID     string
	environment string
	contentType string
	accessToken string
	client      *http.Client
}

func NewContentfulClient(baseURL, spaceID, environment, contentType, accessToken string, timeout time.Duration) *ContentfulClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ContentfulClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		spaceID:     spaceID,
		environment: environment,
		contentType: contentType,
		accessToken: accessToken,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type entriesResponse struct {
	Total int `json:"total"`
	Skip  int `json:"skip"`
	Items []struct {
		Sys struct {
			ID string `json:"id"`
		} `json:"sys"`
		Fields map[string]any `json:"fields"`
	} `json:"items"`
	Includes struct {
		Asset []struct {
			Sys struct {
				ID string `json:"id"`
			} `json:"sys"`
			Fields struct {
				File struct {
					URL string `json:"url"`
				} `json:"file"`
			} `json:"fields"`
		} `json:"Asset"`
	} `json:"includes"`
}

// FetchEntries returns every event entry ordered by date, following the
// API's pages, with linked image assets resolved to absolute URLs.
func (c *ContentfulClient) FetchEntries(ctx context.Context) ([]feed.Entry, error) {
	var (
		pages  []entriesResponse
		assets = map[string]string{}
		skip   int
	)

	for {
		page, err := c.fetchPage(ctx, skip)
		if err != nil {
			return nil, fmt.Errorf("fetch entries skip=%d: %w", skip, err)
		}
		pages = append(pages, page)

		for _, a := range page.Includes.Asset {
			u := a.Fields.File.URL
			if u == "" {
				continue
			}
			if strings.HasPrefix(u, "//") {
				u = "https:" + u
			}
			assets[a.Sys.ID] = u
		}

		skip += len(page.Items)
		if len(page.Items) == 0 || skip >= page.Total {
			break
		}
	}

	out := make([]feed.Entry, 0, skip)
	for _, page := range pages {
		for _, it := range page.Items {
			out = append(out, feed.Entry{
				ID:     it.Sys.ID,
				Fields: it.Fields,
				Assets: assets,
			})
		}
	}
	return out, nil
}

func (c *ContentfulClient) fetchPage(ctx context.Context, skip int) (entriesResponse, error) {
	q := url.Values{}
	q.Set("content_type", c.contentType)
	q.Set("order", "fields.date")
	q.Set("include", "1")
	q.Set("limit", fmt.Sprint(entriesPageSize))
	q.Set("skip", fmt.Sprint(skip))

	endpoint := fmt.Sprintf("%s/spaces/%s/environments/%s/entries?%s",
		c.baseURL, url.PathEscape(c.spaceID), url.PathEscape(c.environment), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return entriesResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return entriesResponse{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return entriesResponse{}, fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}

	var er entriesResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&er); err != nil {
		return entriesResponse{}, fmt.Errorf("failed to decode json: %w", err)
	}
	return er, nil
}
