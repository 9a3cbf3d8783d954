package whisker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"seattlehumus/internal/litter"
)

const robotsQuery = `query GetLR4($userId: String!) {
  getLitterRobot4ByUser(userId: $userId) { unitId name serial userId }
}`

const activityQuery = `query GetLR4Activity($serial: String!, $startTimestamp: String, $endTimestamp: String, $limit: Int, $consumer: String) {
  getLitterRobot4Activity(serial: $serial, startTimestamp: $startTimestamp, endTimestamp: $endTimestamp, limit: $limit, consumer: $consumer) {
    timestamp value actionValue
  }
}`

// Session is a logged-in Whisker account.
type Session struct {
	client *Client
	userID string

	mu     sync.Mutex
	tok    tokens
	expiry time.Time
	closed bool
	robots []*Robot
}

// Robot is a Litter-Robot 4 unit.
type Robot struct {
	s      *Session
	id     string
	name   string
	serial string
}

func (r *Robot) ID() string     { return r.id }
func (r *Robot) Name() string   { return r.name }
func (r *Robot) Serial() string { return r.serial }

// History returns the robot's most recent activity entries.
func (r *Robot) History(ctx context.Context) ([]litter.RawHistoryEvent, error) {
	var out struct {
		Activity []activity `json:"getLitterRobot4Activity"`
	}
	err := r.s.query(ctx, activityQuery, map[string]any{
		"serial":   r.serial,
		"limit":    r.s.client.cfg.HistoryLimit,
		"consumer": "app",
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("robot %s activity: %w", r.name, err)
	}
	events := make([]litter.RawHistoryEvent, 0, len(out.Activity))
	for _, a := range out.Activity {
		events = append(events, a.toRaw())
	}
	return events, nil
}

func (s *Session) Devices() []litter.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]litter.Device, 0, len(s.robots))
	for _, r := range s.robots {
		out = append(out, r)
	}
	return out
}

// Close ends the session. Cognito tokens are not revoked; they are dropped.
func (s *Session) Close(context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.tok = tokens{}
	s.mu.Unlock()
	s.client.cfg.HTTPClient.CloseIdleConnections()
	s.client.log.Info("whisker session closed")
	return nil
}

func (s *Session) loadRobots(ctx context.Context) error {
	var out struct {
		Robots []struct {
			UnitID string `json:"unitId"`
			Name   string `json:"name"`
			Serial string `json:"serial"`
		} `json:"getLitterRobot4ByUser"`
	}
	if err := s.query(ctx, robotsQuery, map[string]any{"userId": s.userID}, &out); err != nil {
		return fmt.Errorf("load robots: %w", err)
	}
	robots := make([]*Robot, 0, len(out.Robots))
	for _, r := range out.Robots {
		id := r.UnitID
		if id == "" {
			id = r.Serial
		}
		robots = append(robots, &Robot{s: s, id: id, name: r.Name, serial: r.Serial})
	}
	s.mu.Lock()
	s.robots = robots
	s.mu.Unlock()
	return nil
}

// bearer returns a valid id token, refreshing it first if it is about to expire.
func (s *Session) bearer(ctx context.Context, force bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	if force || (!s.expiry.IsZero() && time.Now().After(s.expiry)) {
		tok, err := s.client.refresh(ctx, s.tok)
		if err != nil {
			return "", err
		}
		s.tok = tok
		s.expiry = expiryOf(tok)
		s.client.log.Debug("whisker token refreshed")
	}
	return s.tok.IDToken, nil
}

type gqlError struct {
	Message string `json:"message"`
}

// query runs a GraphQL request, retrying once with a refreshed token on 401.
func (s *Session) query(ctx context.Context, q string, vars map[string]any, out any) error {
	err := s.queryOnce(ctx, q, vars, out, false)
	if errors.Is(err, errTokenRejected) {
		err = s.queryOnce(ctx, q, vars, out, true)
		if errors.Is(err, errTokenRejected) {
			return ErrUnauthorized
		}
	}
	return err
}

var errTokenRejected = errors.New("token rejected")

func (s *Session) queryOnce(ctx context.Context, q string, vars map[string]any, out any, forceRefresh bool) error {
	token, err := s.bearer(ctx, forceRefresh)
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]any{"query": q, "variables": vars})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errTokenRejected
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var env struct {
		Data   json.RawMessage `json:"data"`
		Errors []gqlError      `json:"errors"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if len(env.Errors) > 0 {
		msg := env.Errors[0].Message
		if strings.Contains(strings.ToLower(msg), "unauthorized") {
			return errTokenRejected
		}
		return fmt.Errorf("graphql: %s", msg)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

type activity struct {
	Timestamp   string          `json:"timestamp"`
	Value       string          `json:"value"`
	ActionValue json.RawMessage `json:"actionValue"`
}

// toRaw renders an LR4 activity entry the way the Whisker app words it.
func (a activity) toRaw() litter.RawHistoryEvent {
	action, ok := activityValues[a.Value]
	if !ok {
		action = a.Value
	}
	if a.Value == "catWeight" {
		action = fmt.Sprintf("%s: %s lbs", action, strings.Trim(string(a.ActionValue), `" `))
	}
	ts, _ := parseTimestamp(a.Timestamp)
	return litter.RawHistoryEvent{Action: action, Timestamp: ts}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp accepts the layouts the API has been seen to return.
// Timestamps without a zone are UTC.
func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
