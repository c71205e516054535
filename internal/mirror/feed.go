// Package mirror copies the packages of one or more NuGet v3 feeds into a
// local directory or an object-storage bucket.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultPageSize = 500

	searchResourceType  = "SearchQueryService"
	packageBaseResource = "PackageBaseAddress/3.0.0"
	userAgent           = "depctx/1.0"
)

var ErrResourceMissing = errors.New("feed resource missing")

// Package identifies one package version on a feed.
type Package struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// FileName is the name the package is stored under.
func (p Package) FileName() string {
	return p.ID + "." + p.Version + ".nupkg"
}

func (p Package) String() string {
	return p.ID + " " + p.Version
}

func (p Package) key() string {
	return strings.ToLower(p.ID) + "/" + strings.ToLower(p.Version)
}

// FeedClient talks to a NuGet v3 feed. The service index is fetched once
// and the resource URLs are reused for every later call.
type FeedClient struct {
	IndexURL string
	PageSize int
	HTTP     *http.Client

	once       sync.Once
	resolveErr error
	searchURL  string
	baseURL    string
}

func NewFeedClient(indexURL string, httpClient *http.Client) *FeedClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &FeedClient{
		IndexURL: indexURL,
		PageSize: DefaultPageSize,
		HTTP:     httpClient,
	}
}

type serviceIndex struct {
	Resources []struct {
		ID   string `json:"@id"`
		Type string `json:"@type"`
	} `json:"resources"`
}

type searchPage struct {
	TotalHits int       `json:"totalHits"`
	Data      []Package `json:"data"`
}

func (c *FeedClient) resolve(ctx context.Context) error {
	c.once.Do(func() {
		var index serviceIndex
		if err := c.getJSON(ctx, c.IndexURL, &index); err != nil {
			c.resolveErr = fmt.Errorf("service index: %w", err)
			return
		}
		for _, res := range index.Resources {
			switch {
			case c.searchURL == "" && strings.HasPrefix(res.Type, searchResourceType):
				c.searchURL = res.ID
			case c.baseURL == "" && res.Type == packageBaseResource:
				c.baseURL = res.ID
			}
		}
		if c.searchURL == "" {
			c.resolveErr = fmt.Errorf("%w: %s in %s", ErrResourceMissing, searchResourceType, c.IndexURL)
			return
		}
		if c.baseURL == "" {
			c.resolveErr = fmt.Errorf("%w: %s in %s", ErrResourceMissing, packageBaseResource, c.IndexURL)
			return
		}
		if !strings.HasSuffix(c.baseURL, "/") {
			c.baseURL += "/"
		}
	})
	return c.resolveErr
}

// ListPackages pages through the search resource, prerelease versions
// included, until the feed returns an empty page.
func (c *FeedClient) ListPackages(ctx context.Context) ([]Package, error) {
	if err := c.resolve(ctx); err != nil {
		return nil, err
	}
	take := c.PageSize
	if take <= 0 {
		take = DefaultPageSize
	}

	var packages []Package
	for skip := 0; ; skip += take {
		endpoint, err := withQuery(c.searchURL, url.Values{
			"q":          {""},
			"skip":       {strconv.Itoa(skip)},
			"take":       {strconv.Itoa(take)},
			"prerelease": {"true"},
		})
		if err != nil {
			return nil, err
		}
		var page searchPage
		if err := c.getJSON(ctx, endpoint, &page); err != nil {
			return nil, fmt.Errorf("search page at %d: %w", skip, err)
		}
		if len(page.Data) == 0 {
			return packages, nil
		}
		packages = append(packages, page.Data...)
	}
}

// DownloadURL returns the flat-container address of pkg.
func (c *FeedClient) DownloadURL(ctx context.Context, pkg Package) (string, error) {
	if err := c.resolve(ctx); err != nil {
		return "", err
	}
	id := strings.ToLower(pkg.ID)
	version := strings.ToLower(pkg.Version)
	return c.baseURL + url.PathEscape(id) + "/" + url.PathEscape(version) + "/" + url.PathEscape(id+"."+version+".nupkg"), nil
}

// Download opens the .nupkg of pkg. The caller closes the body.
func (c *FeedClient) Download(ctx context.Context, pkg Package) (io.ReadCloser, error) {
	endpoint, err := c.DownloadURL(ctx, pkg)
	if err != nil {
		return nil, err
	}
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *FeedClient) getJSON(ctx context.Context, endpoint string, v any) error {
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *FeedClient) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: unexpected status %s", endpoint, resp.Status)
	}
	return resp, nil
}

func withQuery(raw string, values url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", raw, err)
	}
	q := u.Query()
	for k, v := range values {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
