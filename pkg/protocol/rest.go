// ABOUTME: HTTP client for the node REST API
// ABOUTME: Rate limited, authenticated calls for tracks, players, sessions and info
package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	maxResponseSize       = 8 << 20
)

// RESTConfig configures a REST client.
type RESTConfig struct {
	BaseURL  string // scheme://host:port, no trailing slash
	Password string
	Version  int // 3 or 4, defaults to 4

	HTTPClient *http.Client
	Timeout    time.Duration

	// RateLimit caps requests per second. Zero means unlimited.
	RateLimit rate.Limit
	Burst     int

	Logger zerolog.Logger
}

// REST talks to one node over HTTP.
type REST struct {
	config  RESTConfig
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewREST creates a REST client with defaults applied.
func NewREST(config RESTConfig) *REST {
	if config.Version == 0 {
		config.Version = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRequestTimeout
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	limit := config.RateLimit
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := config.Burst
	if burst < 1 {
		burst = 1
	}

	return &REST{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		log:     config.Logger,
	}
}

func (r *REST) v4() bool { return r.config.Version >= 4 }

func (r *REST) path(p string) string {
	if r.v4() {
		return "/v4" + p
	}
	return p
}

// LoadTracks resolves an identifier or search query.
func (r *REST) LoadTracks(ctx context.Context, identifier string) (*LoadResultData, error) {
	var out LoadResultData
	q := url.Values{"identifier": {identifier}}
	if err := r.do(ctx, http.MethodGet, r.path("/loadtracks"), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DecodeTrack turns an encoded track back into its metadata.
func (r *REST) DecodeTrack(ctx context.Context, encoded string) (*TrackData, error) {
	if !r.v4() {
		var info TrackInfo
		q := url.Values{"track": {encoded}}
		if err := r.do(ctx, http.MethodGet, "/decodetrack", q, nil, &info); err != nil {
			return nil, err
		}
		return &TrackData{Encoded: encoded, Info: info}, nil
	}

	var out TrackData
	q := url.Values{"encodedTrack": {encoded}}
	if err := r.do(ctx, http.MethodGet, r.path("/decodetrack"), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DecodeTracks decodes several tracks in one request.
func (r *REST) DecodeTracks(ctx context.Context, encoded []string) ([]TrackData, error) {
	var out []TrackData
	if err := r.do(ctx, http.MethodPost, r.path("/decodetracks"), nil, encoded, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePlayer patches the player for guildID in the given session,
// creating it if needed. v4 only.
func (r *REST) UpdatePlayer(ctx context.Context, sessionID string, guildID snowflake.ID, update UpdatePlayer, noReplace bool) (*PlayerData, error) {
	if !r.v4() {
		return nil, fmt.Errorf("update player: %w", ErrUnsupportedVersion)
	}
	var out PlayerData
	q := url.Values{}
	if noReplace {
		q.Set("noReplace", "true")
	}
	if err := r.do(ctx, http.MethodPatch, playerPath(sessionID, guildID), q, update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Player fetches the node's view of one player. v4 only.
func (r *REST) Player(ctx context.Context, sessionID string, guildID snowflake.ID) (*PlayerData, error) {
	if !r.v4() {
		return nil, fmt.Errorf("get player: %w", ErrUnsupportedVersion)
	}
	var out PlayerData
	if err := r.do(ctx, http.MethodGet, playerPath(sessionID, guildID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DestroyPlayer removes a player from the node. v4 only.
func (r *REST) DestroyPlayer(ctx context.Context, sessionID string, guildID snowflake.ID) error {
	if !r.v4() {
		return fmt.Errorf("destroy player: %w", ErrUnsupportedVersion)
	}
	return r.do(ctx, http.MethodDelete, playerPath(sessionID, guildID), nil, nil, nil)
}

// UpdateSession configures resuming for a session. v4 only.
func (r *REST) UpdateSession(ctx context.Context, sessionID string, update SessionUpdate) (*SessionData, error) {
	if !r.v4() {
		return nil, fmt.Errorf("update session: %w", ErrUnsupportedVersion)
	}
	var out SessionData
	if err := r.do(ctx, http.MethodPatch, "/v4/sessions/"+url.PathEscape(sessionID), nil, update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Info describes the node's software and enabled sources.
func (r *REST) Info(ctx context.Context) (*Info, error) {
	if !r.v4() {
		return nil, fmt.Errorf("info: %w", ErrUnsupportedVersion)
	}
	var out Info
	if err := r.do(ctx, http.MethodGet, "/v4/info", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats fetches current node statistics. v4 only; v3 nodes push them over
// the WebSocket.
func (r *REST) Stats(ctx context.Context) (*Stats, error) {
	if !r.v4() {
		return nil, fmt.Errorf("stats: %w", ErrUnsupportedVersion)
	}
	var out Stats
	if err := r.do(ctx, http.MethodGet, "/v4/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Version returns the node's version string.
func (r *REST) Version(ctx context.Context) (string, error) {
	var out string
	if err := r.do(ctx, http.MethodGet, "/version", nil, nil, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func playerPath(sessionID string, guildID snowflake.ID) string {
	return "/v4/sessions/" + url.PathEscape(sessionID) + "/players/" + strconv.FormatUint(uint64(guildID), 10)
}

// do performs one request. A *string out receives the raw body; any other
// non-nil out is JSON-decoded.
func (r *REST) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s %s: rate limit: %w", method, path, err)
	}

	target := r.config.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", r.config.Password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	r.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("rest call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError(resp.StatusCode, path, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if s, ok := out.(*string); ok {
		*s = string(data)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
