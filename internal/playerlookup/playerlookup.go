// Package playerlookup resolves bidder/seller uuids to in-game player
// names via the external profile/name lookup API (an out-of-scope
// collaborator per spec.md section 1) — this package only fixes the
// interface the query engine programs against and a batching HTTP client.
package playerlookup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/obslog"
)

// nameCacheSize bounds the resolved-name LRU: names rarely change and the
// id space is small relative to the HTTP round trips they save.
const nameCacheSize = 50_000

// Client resolves a batch of uuids to display names, with unresolved
// uuids simply absent from the returned map.
type Client interface {
	Names(ctx context.Context, ids []auction.ID) (map[auction.ID]string, error)
}

// HTTPClient calls a name-lookup HTTP API. Concurrent requests for the
// same uuid are collapsed via singleflight.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	group   singleflight.Group
	cache   *lru.Cache
	limiter *rate.Limiter
	log     obslog.Logger
}

// NewHTTPClient builds a client that caps outbound lookups to 50/s, a rate
// the skyblock.net name API tolerates without throttling us, and caches
// resolved names so the same seller/bidder uuid isn't looked up twice.
func NewHTTPClient(baseURL string) *HTTPClient {
	cache, err := lru.New(nameCacheSize)
	if err != nil {
		panic(err)
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
		cache:   cache,
		limiter: rate.NewLimiter(50, 10),
		log:     obslog.New("component", "playerlookup"),
	}
}

func (c *HTTPClient) Names(ctx context.Context, ids []auction.ID) (map[auction.ID]string, error) {
	out := make(map[auction.ID]string, len(ids))
	for _, id := range ids {
		name, err := c.nameOf(ctx, id)
		if err != nil {
			c.log.Warn("player name lookup failed, omitting from result", "uuid", id.String(), "err", err)
			continue
		}
		if name != "" {
			out[id] = name
		}
	}
	return out, nil
}

func (c *HTTPClient) nameOf(ctx context.Context, id auction.ID) (string, error) {
	key := id.String()
	if v, ok := c.cache.Get(key); ok {
		return v.(string), nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/players/"+url.PathEscape(key), nil)
		if err != nil {
			return "", err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return "", nil
		}
		if resp.StatusCode != http.StatusOK {
			return "", errHTTPStatus(resp.StatusCode)
		}

		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", err
		}
		return body.Name, nil
	})
	if err != nil {
		return "", err
	}
	name := v.(string)
	if name != "" {
		c.cache.Add(key, name)
	}
	return name, nil
}

type errHTTPStatus int

func (e errHTTPStatus) Error() string {
	return "playerlookup: unexpected status " + http.StatusText(int(e))
}

// NoOpClient resolves nothing; used in tests and as a safe default when no
// lookup endpoint is configured.
type NoOpClient struct{}

func (NoOpClient) Names(context.Context, []auction.ID) (map[auction.ID]string, error) {
	return map[auction.ID]string{}, nil
}
