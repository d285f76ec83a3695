// Package jobboard pulls jobs and applications from the upstream job board API.
package jobboard

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/ats-scorer/internal/candidates"
)

const (
	DefaultBaseURL = "https://listailor-web.onrender.com"
	userAgent      = "spigell/ats-scorer"

	jobsPath         = "/api/v1/technical_test/jobs"
	applicationsPath = "/api/v1/technical_test/applications"

	jobsTimeout         = 15 * time.Second
	applicationsTimeout = 25 * time.Second

	contentType     = "application/json"
	contentEncoding = "gzip"
)

type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	BaseURL    string
}

func New(logger *zap.Logger, baseURL, token string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		token:      token,
		logger:     logger,
		HTTPClient: &http.Client{},
		UserAgent:  userAgent,
		BaseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type job struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// application keeps answers untyped: values may be strings, lists or objects.
type application struct {
	ID            int64  `json:"id"`
	CandidateName string `json:"candidate_name"`
	JobID         int64  `json:"job_id"`
	CVURL         string `json:"cv_url"`
	Answers       any    `json:"answers"`
}

// FetchJobs implements candidates.Source.
func (c *Client) FetchJobs(ctx context.Context) ([]candidates.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, jobsTimeout)
	defer cancel()

	var items []job
	if err := c.getItems(ctx, jobsPath, "jobs", &items); err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}

	jobs := make([]candidates.Job, 0, len(items))
	for _, item := range items {
		jobs = append(jobs, candidates.Job{ID: item.ID, Title: item.Title, Description: item.Description})
	}

	c.logger.Info("fetched jobs", zap.Int("count", len(jobs)))
	return jobs, nil
}

// FetchApplications implements candidates.Source.
func (c *Client) FetchApplications(ctx context.Context) ([]candidates.Application, error) {
	ctx, cancel := context.WithTimeout(ctx, applicationsTimeout)
	defer cancel()

	var items []application
	if err := c.getItems(ctx, applicationsPath, "applications", &items); err != nil {
		return nil, fmt.Errorf("fetch applications: %w", err)
	}

	apps := make([]candidates.Application, 0, len(items))
	for _, item := range items {
		var answers json.RawMessage
		if item.Answers != nil {
			raw, err := json.Marshal(item.Answers)
			if err != nil {
				return nil, fmt.Errorf("fetch applications: encode answers of %d: %w", item.ID, err)
			}
			answers = raw
		}
		apps = append(apps, candidates.Application{
			ID:            item.ID,
			JobID:         item.JobID,
			CandidateName: item.CandidateName,
			CVURL:         item.CVURL,
			Answers:       answers,
		})
	}

	c.logger.Info("fetched applications", zap.Int("count", len(apps)))
	return apps, nil
}

// getItems reads the list stored under key and decodes it loosely into target.
// A missing key yields an empty list.
func (c *Client) getItems(ctx context.Context, path, key string, target any) error {
	var envelope map[string]any
	if err := c.getJSON(ctx, c.BaseURL+path, &envelope); err != nil {
		return err
	}

	items, _ := envelope[key].([]any)
	if items == nil {
		items = []any{}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(items); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	return json.NewDecoder(reader).Decode(target)
}
