package stargatesdk

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
)

// Client is a minimal Stargate HTTP API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults. baseURL should include the API
// base path, e.g. http://localhost:8080/v1.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Result is the envelope every response carries.
type Result struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	ErrorKind    string `json:"error_kind,omitempty"`
	ResponseCode int    `json:"response_code"`
}

type Person struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PersonAstronaut is a person with career dates and current assignment.
type PersonAstronaut struct {
	PersonID         int64   `json:"person_id"`
	Name             string  `json:"name"`
	CurrentRank      string  `json:"current_rank,omitempty"`
	CurrentDutyTitle string  `json:"current_duty_title,omitempty"`
	CareerStartDate  *string `json:"career_start_date,omitempty"`
	CareerEndDate    *string `json:"career_end_date,omitempty"`
}

type Duty struct {
	ID            int64   `json:"id"`
	PersonID      int64   `json:"person_id"`
	RankID        int64   `json:"rank_id"`
	DutyTitleID   int64   `json:"duty_title_id"`
	DutyStartDate string  `json:"duty_start_date"`
	DutyEndDate   *string `json:"duty_end_date,omitempty"`
	Rank          string  `json:"rank,omitempty"`
	DutyTitle     string  `json:"duty_title,omitempty"`
}

type Rank struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Level        int    `json:"level"`
}

type DutyTitle struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// CreateDutyInput describes a new duty. StartDate is YYYY-MM-DD.
type CreateDutyInput struct {
	Name        string `json:"name"`
	RankID      int64  `json:"rank_id"`
	DutyTitleID int64  `json:"duty_title_id"`
	StartDate   string `json:"duty_start_date"`
}

// APIError wraps non-2xx responses. Kind and Message come from the result
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("api error: status=%d kind=%s message=%s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreatePerson creates a person and returns it with its id.
func (c *Client) CreatePerson(ctx context.Context, name string) (Person, error) {
	var resp struct {
		Result
		Person Person `json:"person"`
	}
	err := c.do(ctx, http.MethodPost, "person", map[string]any{"name": name}, &resp)
	return resp.Person, err
}

// People lists every person with their current assignment.
func (c *Client) People(ctx context.Context) ([]PersonAstronaut, error) {
	var resp struct {
		Result
		People []PersonAstronaut `json:"people"`
	}
	err := c.do(ctx, http.MethodGet, "person", nil, &resp)
	return resp.People, err
}

// Person fetches a person by name. A missing person returns (nil, nil).
func (c *Client) Person(ctx context.Context, name string) (*PersonAstronaut, error) {
	var resp struct {
		Result
		Person *PersonAstronaut `json:"person"`
	}
	err := c.do(ctx, http.MethodGet, "person/"+url.PathEscape(name), nil, &resp)
	return resp.Person, err
}

// CreateDuty assigns a new duty, closing the person's current one.
func (c *Client) CreateDuty(ctx context.Context, in CreateDutyInput) (Duty, error) {
	var resp struct {
		Result
		Duty Duty `json:"duty"`
	}
	err := c.do(ctx, http.MethodPost, "astronautduty", in, &resp)
	return resp.Duty, err
}

// Duties returns a person's duty history, newest first. A missing person
// returns an empty slice.
func (c *Client) Duties(ctx context.Context, name string) ([]Duty, error) {
	var resp struct {
		Result
		Duties []Duty `json:"astronaut_duties"`
	}
	err := c.do(ctx, http.MethodGet, "astronautduty/"+url.PathEscape(name), nil, &resp)
	return resp.Duties, err
}

func (c *Client) Ranks(ctx context.Context) ([]Rank, error) {
	var resp struct {
		Result
		Ranks []Rank `json:"ranks"`
	}
	err := c.do(ctx, http.MethodGet, "referencedata/ranks", nil, &resp)
	return resp.Ranks, err
}

func (c *Client) DutyTitles(ctx context.Context) ([]DutyTitle, error) {
	var resp struct {
		Result
		DutyTitles []DutyTitle `json:"duty_titles"`
	}
	err := c.do(ctx, http.MethodGet, "referencedata/duty-titles", nil, &resp)
	return resp.DutyTitles, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var r Result
		if json.Unmarshal(b, &r) == nil {
			apiErr.Kind = r.ErrorKind
			apiErr.Message = r.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
