package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/araddon/dateparse"

	"github.com/lysyi3m/news-sieve/app/config"
	"github.com/lysyi3m/news-sieve/app/content"
	"github.com/lysyi3m/news-sieve/app/credentials"
)

// Social polls the quota-constrained social API, picking a credential from
// the rotator for every call and reporting the outcome back.
type Social struct {
	cfg        *config.SourceConfig
	rotator    *credentials.Rotator
	httpClient *http.Client
	userAgent  string
}

func NewSocial(cfg *config.SourceConfig, rotator *credentials.Rotator, httpClient *http.Client, userAgent string) *Social {
	return &Social{
		cfg:        cfg,
		rotator:    rotator,
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

func (s *Social) Name() string {
	return s.cfg.Name
}

type socialResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Text        string `json:"text"`
		CreatedAt   string `json:"created_at"`
		Attachments struct {
			MediaKeys []string `json:"media_keys"`
		} `json:"attachments"`
	} `json:"data"`
	Includes struct {
		Media []struct {
			MediaKey string `json:"media_key"`
			URL      string `json:"url"`
		} `json:"media"`
	} `json:"includes"`
}

// Fetch returns the latest posts. When no credential qualifies the source
// is temporarily unavailable and yields zero items without error.
func (s *Social) Fetch(ctx context.Context) ([]*content.Item, error) {
	cred, ok := s.rotator.Current()
	if !ok {
		slog.Warn("No credential available, skipping social source", "source", s.cfg.Name)
		return nil, nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Secret)
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.rotator.ReportContentFailure(cred.Name, err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		s.rotator.ReportContentFailure(cred.Name, rateLimitFromHeaders(resp.Header))
		slog.Warn("Social source rate limited", "source", s.cfg.Name, "credential", cred.Name)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
		s.rotator.ReportContentFailure(cred.Name, err)
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		s.rotator.ReportContentFailure(cred.Name, err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed socialResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		s.rotator.ReportContentFailure(cred.Name, err)
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	s.rotator.ReportContentSuccess(cred.Name)

	media := make(map[string]string, len(parsed.Includes.Media))
	for _, m := range parsed.Includes.Media {
		if m.URL != "" {
			media[m.MediaKey] = m.URL
		}
	}

	items := make([]*content.Item, 0, len(parsed.Data))
	for _, post := range parsed.Data {
		item := &content.Item{
			ID:         post.ID,
			Kind:       content.KindTweet,
			Text:       post.Text,
			SourceName: s.cfg.Name,
		}
		if t, err := dateparse.ParseAny(post.CreatedAt); err == nil {
			item.PublishedAt = &t
		}
		for _, key := range post.Attachments.MediaKeys {
			if url, ok := media[key]; ok {
				item.MediaRefs = append(item.MediaRefs, url)
			}
		}
		items = append(items, item)
	}

	return items, nil
}

func rateLimitFromHeaders(headers http.Header) error {
	rl := &credentials.RateLimitError{}
	if raw := headers.Get("x-rate-limit-reset"); raw != "" {
		if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil {
			t := time.Unix(epoch, 0)
			rl.ResetAt = &t
		}
	}
	return rl
}

// UsageClient queries the upstream quota endpoint, implementing
// credentials.UsageChecker.
type UsageClient struct {
	endpoint   string
	httpClient *http.Client
	userAgent  string
}

var _ credentials.UsageChecker = (*UsageClient)(nil)

func NewUsageClient(endpoint string, httpClient *http.Client, userAgent string) *UsageClient {
	return &UsageClient{endpoint: endpoint, httpClient: httpClient, userAgent: userAgent}
}

type usageResponse struct {
	Data struct {
		ProjectUsage json.Number `json:"project_usage"`
		ProjectCap   json.Number `json:"project_cap"`
		CapResetDay  json.Number `json:"cap_reset_day"`
	} `json:"data"`
}

func (u *UsageClient) CheckUsage(ctx context.Context, name, secret string) (credentials.Usage, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, u.endpoint, nil)
	if err != nil {
		return credentials.Usage{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+secret)
	req.Header.Set("User-Agent", u.userAgent)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return credentials.Usage{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return credentials.Usage{}, rateLimitFromHeaders(resp.Header)
	}
	if resp.StatusCode != http.StatusOK {
		return credentials.Usage{}, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	var parsed usageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return credentials.Usage{}, fmt.Errorf("failed to decode usage response: %w", err)
	}

	usage := credentials.Usage{}
	if v, err := parsed.Data.ProjectUsage.Int64(); err == nil {
		usage.Count = int(v)
	}
	if v, err := parsed.Data.ProjectCap.Int64(); err == nil {
		usage.Limit = int(v)
	}
	if v, err := parsed.Data.CapResetDay.Int64(); err == nil {
		usage.ResetDay = int(v)
	}

	return usage, nil
}
