// Package api is a thin client for the TFS/Azure DevOps Server work item
// tracking REST surface. It covers only the calls the template engine needs:
// work item reads, type categories, team backlog settings, templates, item
// creation and relation updates, plus identity resolution for @me.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"tfs-autotasks/internal/errs"
)

const (
	defaultTimeout    = 30 * time.Second
	maxRetries        = 4
	initialBackoff    = 500 * time.Millisecond
	maxBackoff        = 5 * time.Second
	defaultAPIVersion = "6.0"

	// HierarchyForward is the parent-to-child link relation type.
	HierarchyForward = "System.LinkTypes.Hierarchy-Forward"
)

type Client struct {
	baseURL string
	project string
	team    string
	pat     string
	client  *http.Client
	log     *zap.Logger
}

func NewClient(baseURL, project, team, pat string, insecure bool, log *zap.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errs.New(errs.CodeConfigMissing, "base URL is required", nil)
	}
	if pat == "" {
		return nil, errs.New(errs.CodeConfigMissing, "PAT is required", nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: insecure,
		},
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		project: project,
		team:    team,
		pat:     pat,
		client: &http.Client{
			Timeout:   defaultTimeout,
			Transport: transport,
		},
		log: log,
	}, nil
}

func (c *Client) GetWorkItem(ctx context.Context, id int, fields []string) (WorkItem, error) {
	path := fmt.Sprintf("%s/_apis/wit/workitems/%d", c.project, id)
	params := url.Values{}
	params.Set("api-version", defaultAPIVersion)
	if len(fields) > 0 {
		params.Set("fields", strings.Join(fields, ","))
	}
	respBody, err := c.do(ctx, http.MethodGet, path, params, nil, "")
	if err != nil {
		return WorkItem{}, err
	}
	var wi WorkItem
	if err := json.Unmarshal(respBody, &wi); err != nil {
		return WorkItem{}, err
	}
	return wi, nil
}

func (c *Client) GetWorkItemTypeCategories(ctx context.Context) ([]Category, error) {
	path := fmt.Sprintf("%s/_apis/wit/workitemtypecategories", c.project)
	params := url.Values{}
	params.Set("api-version", defaultAPIVersion)
	respBody, err := c.do(ctx, http.MethodGet, path, params, nil, "")
	if err != nil {
		return nil, err
	}
	var resp CategoriesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (c *Client) GetWorkItemTypeCategory(ctx context.Context, referenceName string) (Category, error) {
	path := fmt.Sprintf("%s/_apis/wit/workitemtypecategories/%s", c.project, url.PathEscape(referenceName))
	params := url.Values{}
	params.Set("api-version", defaultAPIVersion)
	respBody, err := c.do(ctx, http.MethodGet, path, params, nil, "")
	if err != nil {
		return Category{}, err
	}
	var cat Category
	if err := json.Unmarshal(respBody, &cat); err != nil {
		return Category{}, err
	}
	return cat, nil
}

// GetTeamSettings reads the team's backlog configuration. The team segment is
// omitted when no team is configured, which yields the project default team.
func (c *Client) GetTeamSettings(ctx context.Context) (TeamSettings, error) {
	path := joinSegments(c.project, c.team, "_apis/work/teamsettings")
	params := url.Values{}
	params.Set("api-version", defaultAPIVersion)
	respBody, err := c.do(ctx, http.MethodGet, path, params, nil, "")
	if err != nil {
		return TeamSettings{}, err
	}
	var settings TeamSettings
	if err := json.Unmarshal(respBody, &settings); err != nil {
		return TeamSettings{}, err
	}
	return settings, nil
}

// GetTemplates lists the team's templates, optionally filtered to one work
// item type name.
func (c *Client) GetTemplates(ctx context.Context, workItemType string) ([]TemplateReference, error) {
	path := joinSegments(c.project, c.team, "_apis/wit/templates")
	params := url.Values{}
	params.Set("api-version", defaultAPIVersion)
	if workItemType != "" {
		params.Set("workitemtypename", workItemType)
	}
	respBody, err := c.do(ctx, http.MethodGet, path, params, nil, "")
	if err != nil {
		return nil, err
	}
	var resp TemplatesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (c *Client) GetTemplateDetail(ctx context.Context, id string) (Template, error) {
	path := joinSegments(c.project, c.team, "_apis/wit/templates/"+url.PathEscape(id))
	params := url.Values{}
	params.Set("api-version", defaultAPIVersion)
	respBody, err := c.do(ctx, http.MethodGet, path, params, nil, "")
	if err != nil {
		return Template{}, err
	}
	var tmpl Template
	if err := json.Unmarshal(respBody, &tmpl); err != nil {
		return Template{}, err
	}
	return tmpl, nil
}

func (c *Client) CreateWorkItem(ctx context.Context, wiType string, patch []PatchOp) (WorkItem, error) {
	path := fmt.Sprintf("%s/_apis/wit/workitems/$%s", c.project, url.PathEscape(wiType))
	params := url.Values{}
	params.Set("api-version", defaultAPIVersion)
	body, err := json.Marshal(patch)
	if err != nil {
		return WorkItem{}, err
	}
	respBody, err := c.do(ctx, http.MethodPost, path, params, body, "application/json-patch+json")
	if err != nil {
		return WorkItem{}, err
	}
	var wi WorkItem
	if err := json.Unmarshal(respBody, &wi); err != nil {
		return WorkItem{}, err
	}
	return wi, nil
}

// UpdateWorkItemRelations applies relation patch operations to an existing
// item, typically appending one Hierarchy-Forward link.
func (c *Client) UpdateWorkItemRelations(ctx context.Context, id int, patch []PatchOp) (WorkItem, error) {
	path := fmt.Sprintf("%s/_apis/wit/workitems/%d", c.project, id)
	params := url.Values{}
	params.Set("api-version", defaultAPIVersion)
	body, err := json.Marshal(patch)
	if err != nil {
		return WorkItem{}, err
	}
	respBody, err := c.do(ctx, http.MethodPatch, path, params, body, "application/json-patch+json")
	if err != nil {
		return WorkItem{}, err
	}
	var wi WorkItem
	if err := json.Unmarshal(respBody, &wi); err != nil {
		return WorkItem{}, err
	}
	return wi, nil
}

func (c *Client) ProfileMe(ctx context.Context) (Profile, error) {
	base := c.profileBaseURL()
	path := joinURL(base, "_apis/profile/profiles/me")
	params := url.Values{}
	params.Set("api-version", defaultAPIVersion)
	respBody, err := c.doFullURL(ctx, http.MethodGet, path, params, nil, "")
	if err != nil {
		return Profile{}, err
	}
	var profile Profile
	if err := json.Unmarshal(respBody, &profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func (c *Client) WhoamiFromHeaders(ctx context.Context) (HeaderIdentity, error) {
	if c.project == "" {
		return HeaderIdentity{}, errs.New(errs.CodeConfigMissing, "project is required", nil)
	}
	path := fmt.Sprintf("%s/_apis/wit/workitemtypes", c.project)
	params := url.Values{}
	params.Set("api-version", defaultAPIVersion)
	headers, _, err := c.doWithHeaders(ctx, http.MethodGet, path, params, nil, "")
	if err != nil {
		return HeaderIdentity{}, err
	}
	raw := headers.Get("X-Vss-Userdata")
	if raw == "" {
		return HeaderIdentity{}, errs.New(errs.CodeWhoamiUnavailable, "X-Vss-Userdata header missing", nil)
	}
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) == 2 {
		return HeaderIdentity{ID: parts[0], UniqueName: parts[1], Raw: raw}, nil
	}
	return HeaderIdentity{Raw: raw, UniqueName: raw}, nil
}

func (c *Client) ResolveIdentityByID(ctx context.Context, id string) (*Identity, error) {
	if id == "" {
		return nil, errs.New(errs.CodeInvalidArgs, "identity id is required", nil)
	}
	path := "_apis/identities"
	params := url.Values{}
	params.Set("api-version", defaultAPIVersion)
	params.Set("identityIds", id)
	respBody, err := c.do(ctx, http.MethodGet, path, params, nil, "")
	if err != nil {
		return nil, err
	}
	var resp IdentitiesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Value) == 0 {
		return nil, errs.New(errs.CodeIdentityNotFound, "identity not found", id)
	}
	return &resp.Value[0], nil
}

func (c *Client) WorkItemURL(id int) string {
	return joinURL(c.baseURL, fmt.Sprintf("_apis/wit/workItems/%d", id))
}

func (c *Client) profileBaseURL() string {
	lower := strings.ToLower(c.baseURL)
	if strings.Contains(lower, "dev.azure.com") || strings.Contains(lower, "visualstudio.com") {
		return "https://app.vssps.visualstudio.com"
	}
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte, contentType string) ([]byte, error) {
	url := joinURL(c.baseURL, path)
	return c.doFullURL(ctx, method, url, params, body, contentType)
}

func (c *Client) doWithHeaders(ctx context.Context, method, path string, params url.Values, body []byte, contentType string) (http.Header, []byte, error) {
	url := joinURL(c.baseURL, path)
	return c.doFullURLWithHeaders(ctx, method, url, params, body, contentType)
}

func (c *Client) doFullURL(ctx context.Context, method, fullURL string, params url.Values, body []byte, contentType string) ([]byte, error) {
	_, respBody, err := c.doFullURLWithHeaders(ctx, method, fullURL, params, body, contentType)
	return respBody, err
}

func (c *Client) doFullURLWithHeaders(ctx context.Context, method, fullURL string, params url.Values, body []byte, contentType string) (http.Header, []byte, error) {
	if len(params) > 0 {
		fullURL = fullURL + "?" + params.Encode()
	}
	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := c.newRequest(ctx, method, fullURL, body, contentType)
		if err != nil {
			return nil, nil, err
		}
		c.log.Debug("api request",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Int("bodyBytes", len(body)))
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, nil, err
		}
		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, nil, readErr
		}
		c.log.Debug("api response",
			zap.String("status", resp.Status),
			zap.String("body", truncateBody(respBody)))
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return resp.Header, respBody, nil
		}

		if shouldRetry(resp.StatusCode) && attempt < maxRetries {
			wait := retryAfter(resp.Header.Get("Retry-After"))
			if wait == 0 {
				wait = backoff
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			lastErr = errs.New(errs.CodeHTTPRetry, fmt.Sprintf("retryable status %d", resp.StatusCode), string(respBody))
			time.Sleep(wait)
			continue
		}
		return nil, nil, errs.New(errs.CodeHTTPError, fmt.Sprintf("request failed with status %d", resp.StatusCode), string(respBody))
	}
	if lastErr != nil {
		return nil, nil, lastErr
	}
	return nil, nil, errs.New(errs.CodeHTTPError, "request failed", nil)
}

func (c *Client) newRequest(ctx context.Context, method, fullURL string, body []byte, contentType string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Basic "+basicAuthToken(c.pat))
	return req, nil
}

func basicAuthToken(pat string) string {
	return base64.StdEncoding.EncodeToString([]byte(":" + pat))
}

func shouldRetry(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func retryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

func truncateBody(body []byte) string {
	const limit = 2048
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// joinSegments joins non-empty path segments, letting the team segment drop
// out when unset.
func joinSegments(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, strings.Trim(s, "/"))
		}
	}
	return strings.Join(parts, "/")
}
