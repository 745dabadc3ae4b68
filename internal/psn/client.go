package psn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/franz/trophy-janitor/internal/util"
)

const (
	// AuthBaseURL is the Sony account authorization endpoint
	AuthBaseURL = "https://ca.account.sony.com/api/authz/v3/oauth"

	// TrophyBaseURL is the PSN mobile trophy API base URL
	TrophyBaseURL = "https://m.np.playstation.com/api/trophy/v1"

	// ProfileBaseURL resolves online ids to account ids
	ProfileBaseURL = "https://us-prof.np.community.playstation.net/userProfile/v1"

	// UserAgent identifies this application to PSN
	UserAgent = "trophy-janitor/1.0 (https://github.com/franz/trophy-janitor)"

	// RateLimit is the minimum interval between requests. PSN publishes no
	// official contract but penalizes concurrent load, so one request is in
	// flight at a time and requests are spaced out.
	RateLimit = 300 * time.Millisecond

	// clientID/clientSecret are the public mobile-app OAuth credentials the
	// trophy API accepts for NPSSO token exchange
	clientID     = "09515159-7237-4370-9b40-3806e67c0891"
	redirectURI  = "com.scee.psxandroid.scecompcall://redirect"
	authScope    = "psn:mobile.v2.core psn:clientapp"
	titlePageLen = 100
)

// Client talks to the PSN trophy API with rate limiting. One request is in
// flight at a time; callers serialize access.
type Client struct {
	httpClient  *http.Client
	userAgent   string
	rateLimiter *time.Ticker

	npsso       string
	onlineID    string
	accessToken string
	accountID   string
}

// NewClient creates a PSN API client for the given NPSSO token and online id.
// Authenticate must be called before any trophy request.
func NewClient(npsso, onlineID string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// The authorize endpoint answers with a redirect carrying the
				// auth code; we need the Location header, not the target.
				return http.ErrUseLastResponse
			},
		},
		userAgent:   UserAgent,
		rateLimiter: time.NewTicker(RateLimit),
		npsso:       npsso,
		onlineID:    onlineID,
	}
}

// Close releases resources used by the client
func (c *Client) Close() {
	if c.rateLimiter != nil {
		c.rateLimiter.Stop()
	}
}

// AccountID returns the resolved numeric account id ("me" until Authenticate
// succeeds for another user)
func (c *Client) AccountID() string {
	if c.accountID == "" {
		return "me"
	}
	return c.accountID
}

// Authenticate exchanges the NPSSO token for an access token and resolves
// the online id to an account id
func (c *Client) Authenticate(ctx context.Context) error {
	if c.npsso == "" {
		return fmt.Errorf("authenticate: %w: NPSSO token is empty", util.ErrMissingCredentials)
	}

	code, err := c.requestAuthCode(ctx)
	if err != nil {
		return fmt.Errorf("authorization code request failed: %w", err)
	}

	if err := c.exchangeCode(ctx, code); err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}

	if c.onlineID != "" {
		if err := c.resolveAccountID(ctx); err != nil {
			// Trophy endpoints accept "me"; only warn when resolution fails
			util.WarnLog("Could not resolve account id for '%s', using own account: %v", c.onlineID, err)
		}
	}

	util.DebugLog("PSN: authenticated (account=%s)", c.AccountID())
	return nil
}

// requestAuthCode drives the NPSSO cookie through the authorize endpoint and
// pulls the auth code out of the redirect location
func (c *Client) requestAuthCode(ctx context.Context) (string, error) {
	c.waitForRateLimit()

	params := url.Values{
		"access_type":   {"offline"},
		"client_id":     {clientID},
		"redirect_uri":  {redirectURI},
		"response_type": {"code"},
		"scope":         {authScope},
	}
	urlStr := fmt.Sprintf("%s/authorize?%s", AuthBaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.AddCookie(&http.Cookie{Name: "npsso", Value: c.npsso})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	location := resp.Header.Get("Location")
	if resp.StatusCode != http.StatusFound || location == "" {
		return "", fmt.Errorf("expected redirect with auth code, got status %d (is the NPSSO token expired?)", resp.StatusCode)
	}

	redirect, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid redirect location: %w", err)
	}
	code := redirect.Query().Get("code")
	if code == "" {
		return "", fmt.Errorf("redirect carried no auth code (location: %s)", redirect.Path)
	}
	return code, nil
}

// exchangeCode trades the auth code for an access token
func (c *Client) exchangeCode(ctx context.Context, code string) error {
	c.waitForRateLimit()

	form := url.Values{
		"code":         {code},
		"redirect_uri": {redirectURI},
		"grant_type":   {"authorization_code"},
		"token_format": {"jwt"},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", AuthBaseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(clientID, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("token response carried no access token")
	}

	c.accessToken = token.AccessToken
	return nil
}

// resolveAccountID maps the configured online id to a numeric account id
func (c *Client) resolveAccountID(ctx context.Context) error {
	urlStr := fmt.Sprintf("%s/users/%s/profile2?fields=accountId,onlineId", ProfileBaseURL, url.PathEscape(c.onlineID))

	var out struct {
		Profile struct {
			AccountID string `json:"accountId"`
			OnlineID  string `json:"onlineId"`
		} `json:"profile"`
	}
	if err := c.getJSON(ctx, urlStr, &out); err != nil {
		return err
	}
	if out.Profile.AccountID == "" {
		return fmt.Errorf("profile for '%s': %w", c.onlineID, util.ErrNotFound)
	}
	c.accountID = out.Profile.AccountID
	return nil
}

// serviceName selects the trophy API service for a platform. PS5 titles
// live under a separate service than legacy platforms.
func serviceName(platform Platform) string {
	if platform == PlatformPS5 {
		return "trophy2"
	}
	return "trophy"
}

// TrophyTitles lists the account's trophy titles, newest first. A limit of
// 0 fetches the complete list; pagination is handled internally.
func (c *Client) TrophyTitles(ctx context.Context, limit int) ([]TitleSummary, error) {
	var titles []TitleSummary
	offset := 0

	for {
		pageLen := titlePageLen
		if limit > 0 && limit-len(titles) < pageLen {
			pageLen = limit - len(titles)
		}

		urlStr := fmt.Sprintf("%s/users/%s/trophyTitles?limit=%d&offset=%d",
			TrophyBaseURL, c.AccountID(), pageLen, offset)

		var page struct {
			TrophyTitles   []TitleSummary `json:"trophyTitles"`
			TotalItemCount int            `json:"totalItemCount"`
		}
		if err := c.getJSON(ctx, urlStr, &page); err != nil {
			return nil, err
		}

		titles = append(titles, page.TrophyTitles...)

		offset += len(page.TrophyTitles)
		if len(page.TrophyTitles) < pageLen || offset >= page.TotalItemCount {
			break
		}
		if limit > 0 && len(titles) >= limit {
			titles = titles[:limit]
			break
		}
	}

	util.DebugLog("PSN: fetched %d trophy titles", len(titles))
	return titles, nil
}

// TrophyGroupSummary fetches the per-group trophy aggregates for one title
func (c *Client) TrophyGroupSummary(ctx context.Context, npCommID string, platform Platform) (*GroupSummary, error) {
	urlStr := fmt.Sprintf("%s/npCommunicationIds/%s/trophyGroups?npServiceName=%s",
		TrophyBaseURL, url.PathEscape(npCommID), serviceName(platform))

	var summary GroupSummary
	if err := c.getJSON(ctx, urlStr, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Trophies lists the trophies of one group. When includeProgress is set the
// per-user earned listing is fetched as well and merged onto the
// definitions by trophy id.
func (c *Client) Trophies(ctx context.Context, npCommID string, platform Platform, groupID string, includeProgress bool) ([]Trophy, error) {
	service := serviceName(platform)

	urlStr := fmt.Sprintf("%s/npCommunicationIds/%s/trophyGroups/%s/trophies?npServiceName=%s",
		TrophyBaseURL, url.PathEscape(npCommID), url.PathEscape(groupID), service)

	var defs struct {
		Trophies []Trophy `json:"trophies"`
	}
	if err := c.getJSON(ctx, urlStr, &defs); err != nil {
		return nil, err
	}

	if !includeProgress || len(defs.Trophies) == 0 {
		return defs.Trophies, nil
	}

	earnedURL := fmt.Sprintf("%s/users/%s/npCommunicationIds/%s/trophyGroups/%s/trophies?npServiceName=%s",
		TrophyBaseURL, c.AccountID(), url.PathEscape(npCommID), url.PathEscape(groupID), service)

	var earned struct {
		Trophies []Trophy `json:"trophies"`
	}
	if err := c.getJSON(ctx, earnedURL, &earned); err != nil {
		// Definitions alone are still useful; progress degrades to "not earned"
		util.DebugLog("PSN: earned listing unavailable for %s/%s: %v", npCommID, groupID, err)
		return defs.Trophies, nil
	}

	mergeEarned(defs.Trophies, earned.Trophies)
	return defs.Trophies, nil
}

// mergeEarned copies per-user progress fields onto the definition rows,
// matching by trophy id
func mergeEarned(defs, earned []Trophy) {
	byID := make(map[int]*Trophy, len(earned))
	for i := range earned {
		if earned[i].ID != nil {
			byID[*earned[i].ID] = &earned[i]
		}
	}
	for i := range defs {
		if defs[i].ID == nil {
			continue
		}
		e, ok := byID[*defs[i].ID]
		if !ok {
			continue
		}
		if defs[i].Earned == nil {
			defs[i].Earned = e.Earned
		}
		if defs[i].EarnedRate == "" {
			defs[i].EarnedRate = e.EarnedRate
		}
		if defs[i].RareRate == "" {
			defs[i].RareRate = e.RareRate
		}
		if defs[i].ComparedUser == nil {
			defs[i].ComparedUser = e.ComparedUser
		}
	}
}

// TrophySummary fetches the account-wide earned counts, used by doctor
func (c *Client) TrophySummary(ctx context.Context) (*AccountSummary, error) {
	urlStr := fmt.Sprintf("%s/users/%s/trophySummary", TrophyBaseURL, c.AccountID())

	var summary AccountSummary
	if err := c.getJSON(ctx, urlStr, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// getJSON performs an authenticated GET and decodes the JSON response
func (c *Client) getJSON(ctx context.Context, urlStr string, out any) error {
	c.waitForRateLimit()

	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("PSN rate limit exceeded (429) - too many requests")
	case resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("PSN service unavailable (503)")
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("resource %w (404)", util.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// waitForRateLimit spaces requests out to the configured minimum interval
func (c *Client) waitForRateLimit() {
	<-c.rateLimiter.C
}
