// Package mediawiki implements the wiki collaborator interfaces over the
// MediaWiki action API.
package mediawiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xqbot/vmbot/internal/wiki"
)

const defaultUserAgent = "vmbot (https://github.com/xqbot/vmbot)"

// Client talks to one wiki's api.php endpoint. It implements
// wiki.PageStore, wiki.LogQuery, and wiki.UserDirectory.
type Client struct {
	httpClient *http.Client
	endpoint   string
	username   string
	password   string
	userAgent  string
}

// NewClient creates a client for an api.php endpoint. Credentials are bot
// passwords; Login must be called before any write.
func NewClient(endpoint, username, password string) (*Client, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("api endpoint is required")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		httpClient: &http.Client{Jar: jar, Timeout: 30 * time.Second},
		endpoint:   endpoint,
		username:   username,
		password:   password,
		userAgent:  defaultUserAgent,
	}, nil
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
}

type apiEnvelope struct {
	Error *apiError       `json:"error"`
	Query json.RawMessage `json:"query"`
	Edit  json.RawMessage `json:"edit"`
	Login json.RawMessage `json:"login"`
}

// call performs one API request and decodes the response envelope. Queries
// and writes both go over POST; the API treats them alike and POST keeps
// long titles out of the URL.
func (c *Client) call(ctx context.Context, params url.Values) (apiEnvelope, error) {
	params.Set("format", "json")
	params.Set("formatversion", "2")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return apiEnvelope{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apiEnvelope{}, fmt.Errorf("call api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return apiEnvelope{}, fmt.Errorf("api status %d", resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return apiEnvelope{}, fmt.Errorf("decode api response: %w", err)
	}
	return envelope, nil
}

func (c *Client) token(ctx context.Context, tokenType string) (string, error) {
	envelope, err := c.call(ctx, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {tokenType},
	})
	if err != nil {
		return "", err
	}
	if envelope.Error != nil {
		return "", envelope.Error
	}
	var query struct {
		Tokens map[string]string `json:"tokens"`
	}
	if err := json.Unmarshal(envelope.Query, &query); err != nil {
		return "", fmt.Errorf("decode tokens: %w", err)
	}
	token := query.Tokens[tokenType+"token"]
	if token == "" {
		return "", fmt.Errorf("no %s token in response", tokenType)
	}
	return token, nil
}

// Login authenticates the bot session.
func (c *Client) Login(ctx context.Context) error {
	token, err := c.token(ctx, "login")
	if err != nil {
		return fmt.Errorf("fetch login token: %w", err)
	}
	envelope, err := c.call(ctx, url.Values{
		"action":     {"login"},
		"lgname":     {c.username},
		"lgpassword": {c.password},
		"lgtoken":    {token},
	})
	if err != nil {
		return err
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	var login struct {
		Result string `json:"result"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(envelope.Login, &login); err != nil {
		return fmt.Errorf("decode login result: %w", err)
	}
	if login.Result != "Success" {
		return fmt.Errorf("login failed: %s %s", login.Result, login.Reason)
	}
	return nil
}

// GetPage implements wiki.PageStore.
func (c *Client) GetPage(ctx context.Context, title string) (wiki.PageSnapshot, error) {
	envelope, err := c.call(ctx, url.Values{
		"action":  {"query"},
		"prop":    {"revisions"},
		"rvprop":  {"ids|content"},
		"rvslots": {"main"},
		"titles":  {title},
	})
	if err != nil {
		return wiki.PageSnapshot{}, err
	}
	if envelope.Error != nil {
		return wiki.PageSnapshot{}, envelope.Error
	}
	var query struct {
		Pages []struct {
			Title     string `json:"title"`
			Missing   bool   `json:"missing"`
			Invalid   bool   `json:"invalid"`
			Revisions []struct {
				RevID int64 `json:"revid"`
				Slots struct {
					Main struct {
						Content string `json:"content"`
					} `json:"main"`
				} `json:"slots"`
			} `json:"revisions"`
		} `json:"pages"`
	}
	if err := json.Unmarshal(envelope.Query, &query); err != nil {
		return wiki.PageSnapshot{}, fmt.Errorf("decode page query: %w", err)
	}
	if len(query.Pages) == 0 {
		return wiki.PageSnapshot{}, fmt.Errorf("no page in response for %q", title)
	}
	page := query.Pages[0]
	if page.Invalid {
		return wiki.PageSnapshot{}, fmt.Errorf("%q: %w", title, wiki.ErrInvalidName)
	}
	if page.Missing || len(page.Revisions) == 0 {
		return wiki.PageSnapshot{Title: title}, nil
	}
	return wiki.PageSnapshot{
		Title:  title,
		Text:   page.Revisions[0].Slots.Main.Content,
		RevID:  page.Revisions[0].RevID,
		Exists: true,
	}, nil
}

// PutPage implements the conditional write of wiki.PageStore.
func (c *Client) PutPage(ctx context.Context, title, text string, expectedRevID int64, summary string) error {
	return c.edit(ctx, url.Values{
		"action":     {"edit"},
		"title":      {title},
		"text":       {text},
		"summary":    {summary},
		"baserevid":  {strconv.FormatInt(expectedRevID, 10)},
		"bot":        {"1"},
		"minor":      {"1"},
		"watchlist":  {"unwatch"},
		"nocreate":   {"1"},
	})
}

// PutTalk implements the plain write of wiki.PageStore.
func (c *Client) PutTalk(ctx context.Context, title, text, summary string) error {
	return c.edit(ctx, url.Values{
		"action":    {"edit"},
		"title":     {title},
		"text":      {text},
		"summary":   {summary},
		"bot":       {"1"},
		"watchlist": {"unwatch"},
	})
}

func (c *Client) edit(ctx context.Context, params url.Values) error {
	token, err := c.token(ctx, "csrf")
	if err != nil {
		return fmt.Errorf("fetch csrf token: %w", err)
	}
	params.Set("token", token)

	envelope, err := c.call(ctx, params)
	if err != nil {
		return err
	}
	if envelope.Error != nil {
		if envelope.Error.Code == "editconflict" {
			return fmt.Errorf("%s: %w", envelope.Error.Info, wiki.ErrConflict)
		}
		return fmt.Errorf("%s: %w", envelope.Error.Info, wiki.ErrNotSaved)
	}
	var edit struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(envelope.Edit, &edit); err != nil {
		return fmt.Errorf("decode edit result: %w", err)
	}
	if edit.Result != "Success" {
		return fmt.Errorf("edit result %q: %w", edit.Result, wiki.ErrNotSaved)
	}
	return nil
}

// LinkedUsers implements wiki.PageStore. Links are restricted to the user
// and user-talk namespaces server-side.
func (c *Client) LinkedUsers(ctx context.Context, title string) ([]string, error) {
	envelope, err := c.call(ctx, url.Values{
		"action":      {"query"},
		"prop":        {"links"},
		"titles":      {title},
		"plnamespace": {"2|3"},
		"pllimit":     {"max"},
	})
	if err != nil {
		return nil, err
	}
	if envelope.Error != nil {
		return nil, envelope.Error
	}
	var query struct {
		Pages []struct {
			Links []struct {
				Title string `json:"title"`
			} `json:"links"`
		} `json:"pages"`
	}
	if err := json.Unmarshal(envelope.Query, &query); err != nil {
		return nil, fmt.Errorf("decode links query: %w", err)
	}
	var users []string
	for _, page := range query.Pages {
		for _, link := range page.Links {
			name := link.Title
			if i := strings.IndexByte(name, ':'); i >= 0 {
				name = name[i+1:]
			}
			users = append(users, wiki.StripSubpage(name))
		}
	}
	return users, nil
}

// LogEvents implements wiki.LogQuery. Entries come back newest first; end
// is the older bound of the query window.
func (c *Client) LogEvents(ctx context.Context, logType string, end time.Time, limit int) ([]wiki.LogEvent, error) {
	envelope, err := c.call(ctx, url.Values{
		"action":  {"query"},
		"list":    {"logevents"},
		"letype":  {logType},
		"leend":   {end.UTC().Format(time.RFC3339)},
		"lelimit": {strconv.Itoa(limit)},
		"leprop":  {"ids|title|type|user|timestamp|comment|details"},
	})
	if err != nil {
		return nil, err
	}
	if envelope.Error != nil {
		return nil, envelope.Error
	}
	var query struct {
		LogEvents []logEntry `json:"logevents"`
	}
	if err := json.Unmarshal(envelope.Query, &query); err != nil {
		return nil, fmt.Errorf("decode log events: %w", err)
	}
	events := make([]wiki.LogEvent, 0, len(query.LogEvents))
	for _, entry := range query.LogEvents {
		events = append(events, entry.toLogEvent())
	}
	return events, nil
}

type logEntry struct {
	Action       string `json:"action"`
	Title        string `json:"title"`
	NS           int    `json:"ns"`
	User         string `json:"user"`
	Timestamp    string `json:"timestamp"`
	Comment      string `json:"comment"`
	ActionHidden bool   `json:"actionhidden"`
	Suppressed   bool   `json:"suppressed"`
	Params       struct {
		Duration    string `json:"duration"`
		Expiry      string `json:"expiry"`
		Description string `json:"description"`
		Details     []struct {
			Type string `json:"type"`
		} `json:"details"`
		Restrictions *struct {
			Pages []struct {
				PageTitle string `json:"page_title"`
			} `json:"pages"`
			Namespaces []int `json:"namespaces"`
		} `json:"restrictions"`
	} `json:"params"`
}

func (e logEntry) toLogEvent() wiki.LogEvent {
	event := wiki.LogEvent{
		Action:      e.Action,
		Actor:       e.User,
		Comment:     e.Comment,
		Duration:    e.Params.Duration,
		Description: e.Params.Description,
		NamespaceID: e.NS,
		PageHidden:  e.Title == "" || e.ActionHidden || e.Suppressed,
	}
	event.Page = e.Title
	if e.NS == wiki.NamespaceUser {
		// user log entries name the subject with its namespace prefix
		if i := strings.IndexByte(e.Title, ':'); i >= 0 {
			event.Page = e.Title[i+1:]
		}
	}
	if ts, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
		event.Timestamp = ts
	}
	if ts, err := time.Parse(time.RFC3339, e.Params.Expiry); err == nil {
		event.Expiry = ts
	}
	for _, detail := range e.Params.Details {
		if detail.Type == "edit" {
			event.EditProtect = true
			break
		}
	}
	if r := e.Params.Restrictions; r != nil {
		restrict := &wiki.Restrictions{Namespaces: r.Namespaces}
		for _, page := range r.Pages {
			restrict.Pages = append(restrict.Pages, page.PageTitle)
		}
		event.Restrict = restrict
	}
	return event
}

// UserInfo implements wiki.UserDirectory. Anonymous subjects never appear
// in list=users (the API reports them as invalid names), so IP addresses
// are answered from the active blocks list instead.
func (c *Client) UserInfo(ctx context.Context, name string) (wiki.UserInfo, error) {
	if net.ParseIP(name) != nil {
		return c.anonInfo(ctx, name)
	}
	envelope, err := c.call(ctx, url.Values{
		"action":  {"query"},
		"list":    {"users"},
		"ususers": {name},
		"usprop":  {"groups|editcount|blockinfo"},
	})
	if err != nil {
		return wiki.UserInfo{}, err
	}
	if envelope.Error != nil {
		return wiki.UserInfo{}, envelope.Error
	}
	var query struct {
		Users []struct {
			Name      string   `json:"name"`
			Missing   bool     `json:"missing"`
			Invalid   bool     `json:"invalid"`
			EditCount int      `json:"editcount"`
			Groups    []string `json:"groups"`
			BlockID   int64    `json:"blockid"`
		} `json:"users"`
	}
	if err := json.Unmarshal(envelope.Query, &query); err != nil {
		return wiki.UserInfo{}, fmt.Errorf("decode user query: %w", err)
	}
	if len(query.Users) == 0 {
		return wiki.UserInfo{}, fmt.Errorf("no user in response for %q", name)
	}
	user := query.Users[0]
	if user.Invalid {
		return wiki.UserInfo{}, fmt.Errorf("%q: %w", name, wiki.ErrInvalidName)
	}
	info := wiki.UserInfo{
		Name:       user.Name,
		Registered: !user.Missing,
		EditCount:  user.EditCount,
		Blocked:    user.BlockID != 0,
	}
	for _, group := range user.Groups {
		switch group {
		case "bot":
			info.Bot = true
		case "autoconfirmed", "confirmed":
			info.Autoconfirmed = true
		}
	}
	return info, nil
}

// anonInfo reports whether an IP address is currently blocked.
func (c *Client) anonInfo(ctx context.Context, addr string) (wiki.UserInfo, error) {
	envelope, err := c.call(ctx, url.Values{
		"action": {"query"},
		"list":   {"blocks"},
		"bkip":   {addr},
		"bkprop": {"id"},
	})
	if err != nil {
		return wiki.UserInfo{}, err
	}
	if envelope.Error != nil {
		return wiki.UserInfo{}, envelope.Error
	}
	var query struct {
		Blocks []struct {
			ID int64 `json:"id"`
		} `json:"blocks"`
	}
	if err := json.Unmarshal(envelope.Query, &query); err != nil {
		return wiki.UserInfo{}, fmt.Errorf("decode blocks query: %w", err)
	}
	return wiki.UserInfo{Name: addr, Blocked: len(query.Blocks) > 0}, nil
}

var (
	_ wiki.PageStore     = (*Client)(nil)
	_ wiki.LogQuery      = (*Client)(nil)
	_ wiki.UserDirectory = (*Client)(nil)
)
