// Package apiclient is the HTTP client for the classtrack API. It
// implements taking.Backend so the taking flow can run against a remote
// server exactly as it runs against a fake in tests.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"classtrack/internal/attendance"
	"classtrack/internal/timetable"
)

// Client calls the classtrack API with bearer-token auth.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New creates a client pointed at baseURL.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api error %s: %s", resp.Status, string(bodyBytes))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Login authenticates a teacher and stores the access token on the client.
func (c *Client) Login(ctx context.Context, teacherID, password string) error {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	in := map[string]string{"teacher_id": teacherID, "password": password}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", in, &out); err != nil {
		return err
	}
	if out.AccessToken == "" {
		return fmt.Errorf("login returned no access token")
	}
	c.Token = out.AccessToken
	return nil
}

// ListSlots returns the authenticated teacher's timetable slots.
func (c *Client) ListSlots(ctx context.Context) ([]timetable.Slot, error) {
	var out struct {
		Slots []timetable.Slot `json:"slots"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/slots", nil, &out); err != nil {
		return nil, err
	}
	return out.Slots, nil
}

// ListSessions returns sessions filtered by date and class.
func (c *Client) ListSessions(ctx context.Context, date, classID string) ([]attendance.Session, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	if classID != "" {
		q.Set("class_id", classID)
	}
	var out struct {
		Sessions []attendance.Session `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/sessions?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// CreateSession creates a not_started session for the slot and date.
func (c *Client) CreateSession(ctx context.Context, slotID, date, notes string) (attendance.Session, error) {
	in := attendance.CreateSessionInput{SlotID: slotID, Date: date, Notes: notes}
	var out attendance.Session
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", in, &out); err != nil {
		return attendance.Session{}, err
	}
	return out, nil
}

// StartSession starts a session, materializing its roster server-side.
func (c *Client) StartSession(ctx context.Context, id string) (attendance.Session, error) {
	var out attendance.Session
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+id+"/start", nil, &out); err != nil {
		return attendance.Session{}, err
	}
	return out, nil
}

// ListRecords returns a session's roster.
func (c *Client) ListRecords(ctx context.Context, sessionID string) ([]attendance.Record, error) {
	var out struct {
		Students []attendance.Record `json:"students"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+sessionID+"/records", nil, &out); err != nil {
		return nil, err
	}
	return out.Students, nil
}

// BulkMark writes all marks for a session in one request.
func (c *Client) BulkMark(ctx context.Context, sessionID string, marks []attendance.Mark) error {
	in := map[string][]attendance.Mark{"records": marks}
	return c.do(ctx, http.MethodPost, "/v1/sessions/"+sessionID+"/bulk-mark", in, nil)
}

// CompleteSession finalizes a session.
func (c *Client) CompleteSession(ctx context.Context, id string) (attendance.Session, error) {
	var out attendance.Session
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+id+"/complete", nil, &out); err != nil {
		return attendance.Session{}, err
	}
	return out, nil
}

// DeleteSession removes a session; used by history views, not the live flow.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/sessions/"+id, nil, nil)
}
