package draughtsmansdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Draughtsman HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "v0",
		Timeout:  10 * time.Second,
	}
}

// FormResult is the answer to every form submission.
type FormResult struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Issues  []string          `json:"issues,omitempty"`
}

// AuthResult is a FormResult that carries a token after sign-in.
type AuthResult struct {
	FormResult
	Token string `json:"token,omitempty"`
}

type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Instructor struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Bio            string `json:"bio"`
	ImageURL       string `json:"imageUrl,omitempty"`
	Specialization string `json:"specialization"`
}

// Program represents a training program.
type Program struct {
	ID                  string       `json:"id"`
	Title               string       `json:"title"`
	Slug                string       `json:"slug"`
	ShortDescription    string       `json:"shortDescription"`
	DetailedDescription string       `json:"detailedDescription"`
	Schedule            string       `json:"schedule"`
	Duration            string       `json:"duration"`
	Price               string       `json:"price"`
	Instructors         []Instructor `json:"instructors"`
	Image               string       `json:"image,omitempty"`
	Learnings           []string     `json:"learnings"`
}

type Resource struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	Description   string `json:"description"`
	DownloadURL   string `json:"downloadUrl,omitempty"`
	Content       string `json:"content,omitempty"`
	Type          string `json:"type"`
	ImageURL      string `json:"imageUrl,omitempty"`
	Category      string `json:"category"`
	PublishedDate string `json:"publishedDate"`
}

type Testimonial struct {
	ID               string `json:"id"`
	ClientName       string `json:"clientName"`
	Company          string `json:"company,omitempty"`
	Testimonial      string `json:"testimonial"`
	ProjectTitle     string `json:"projectTitle,omitempty"`
	CaseStudySummary string `json:"caseStudySummary,omitempty"`
	ImageURL         string `json:"imageUrl,omitempty"`
	ClientImageURL   string `json:"clientImageUrl,omitempty"`
}

type ShowcaseActivity struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	Link        string `json:"link,omitempty"`
	Category    string `json:"category"`
}

// Listing wraps catalog responses with the tier that served them.
type Listing[T any] struct {
	Items  []T    `json:"items"`
	Source string `json:"source"`
}

// Item wraps a single catalog entry with the tier that served it.
type Item[T any] struct {
	Item   T      `json:"item"`
	Source string `json:"source"`
}

// APIError wraps non-2xx responses that carry no form result.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// SubmitForm posts fields to the form of kind. Rejected and failed
// submissions come back as a FormResult with Success=false and a nil error.
func (c *Client) SubmitForm(ctx context.Context, kind string, fields map[string]string) (FormResult, error) {
	var resp FormResult
	endpoint := "forms/" + url.PathEscape(kind)
	err := c.do(ctx, http.MethodPost, endpoint, fields, &resp,
		http.StatusUnprocessableEntity, http.StatusInternalServerError)
	return resp, err
}

// Recommend asks for training recommendations matching designNeeds.
func (c *Client) Recommend(ctx context.Context, designNeeds string) (string, error) {
	var resp struct {
		Success        bool   `json:"success"`
		Recommendation string `json:"recommendation"`
		Error          string `json:"error"`
	}
	body := map[string]string{"designNeeds": designNeeds}
	var apiErr *APIError
	err := c.do(ctx, http.MethodPost, "recommendations", body, &resp)
	if errors.As(err, &apiErr) && apiErr.Message == "" {
		_ = json.Unmarshal([]byte(apiErr.Body), &resp)
		apiErr.Message = resp.Error
	}
	if err != nil {
		return "", err
	}
	return resp.Recommendation, nil
}

// Register creates an account. On success the client keeps the token.
func (c *Client) Register(ctx context.Context, fullName, email, password, confirm string) (AuthResult, error) {
	return c.authenticate(ctx, "auth/register", map[string]string{
		"fullName":        fullName,
		"email":           email,
		"password":        password,
		"confirmPassword": confirm,
	})
}

// Login signs in. On success the client keeps the token.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	return c.authenticate(ctx, "auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (c *Client) authenticate(ctx context.Context, endpoint string, body map[string]string) (AuthResult, error) {
	var resp AuthResult
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp,
		http.StatusUnauthorized, http.StatusConflict, http.StatusUnprocessableEntity, http.StatusInternalServerError)
	if err == nil && resp.Success && resp.Token != "" {
		c.BearerToken = resp.Token
	}
	return resp, err
}

// Me returns the principal of the current token.
func (c *Client) Me(ctx context.Context) (Principal, error) {
	var resp Principal
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

func (c *Client) Programs(ctx context.Context) (Listing[Program], error) {
	var resp Listing[Program]
	err := c.do(ctx, http.MethodGet, "programs", nil, &resp)
	return resp, err
}

// Program fetches a program by slug.
func (c *Client) Program(ctx context.Context, slug string) (Item[Program], error) {
	var resp Item[Program]
	err := c.do(ctx, http.MethodGet, "programs/"+url.PathEscape(slug), nil, &resp)
	return resp, err
}

func (c *Client) Resources(ctx context.Context) (Listing[Resource], error) {
	var resp Listing[Resource]
	err := c.do(ctx, http.MethodGet, "resources", nil, &resp)
	return resp, err
}

// Resource fetches a resource by slug.
func (c *Client) Resource(ctx context.Context, slug string) (Item[Resource], error) {
	var resp Item[Resource]
	err := c.do(ctx, http.MethodGet, "resources/"+url.PathEscape(slug), nil, &resp)
	return resp, err
}

func (c *Client) Testimonials(ctx context.Context) (Listing[Testimonial], error) {
	var resp Listing[Testimonial]
	err := c.do(ctx, http.MethodGet, "testimonials", nil, &resp)
	return resp, err
}

func (c *Client) Showcase(ctx context.Context) (Listing[ShowcaseActivity], error) {
	var resp Listing[ShowcaseActivity]
	err := c.do(ctx, http.MethodGet, "showcase", nil, &resp)
	return resp, err
}

// do sends one request. Statuses listed in accept are decoded into out like
// a success.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any, accept ...int) error {
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
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && !accepted(resp.StatusCode, accept) {
		b, _ := io.ReadAll(resp.Body)
		return newAPIError(resp.StatusCode, b)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func accepted(status int, accept []int) bool {
	for _, s := range accept {
		if s == status {
			return true
		}
	}
	return false
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: string(body)}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		e.Code = envelope.Error.Code
		e.Message = envelope.Error.Message
	}
	return e
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
