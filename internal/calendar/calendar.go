// Package calendar sends meeting invitations for scheduled demos.
package calendar

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

	"github.com/diewo77/go-crm/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"
)

const (
	calendarScope   = "https://www.googleapis.com/auth/calendar.events"
	googleTokenURL  = "https://oauth2.googleapis.com/token"
	calendarBaseURL = "https://www.googleapis.com/calendar/v3"
	requestTimeout  = 10 * time.Second
)

// Invitation describes a demo meeting.
type Invitation struct {
	Summary     string
	Description string
	Start       time.Time
	Duration    time.Duration
	Attendees   []string
}

// Inviter creates calendar events and returns their external id.
type Inviter interface {
	Invite(ctx context.Context, inv Invitation) (eventID string, err error)
}

// Noop is the inviter used when no calendar is configured.
type Noop struct{}

func (Noop) Invite(context.Context, Invitation) (string, error) { return "", nil }

// Google creates events through the Google Calendar v3 API, authenticated as
// a service account.
type Google struct {
	calendarID string
	baseURL    string
	client     *http.Client
}

// NewGoogle builds an inviter from the service-account settings.
// It returns Noop when the calendar is not configured.
func NewGoogle(cfg config.CalendarConfig) Inviter {
	if !cfg.Enabled() {
		return Noop{}
	}
	jwtCfg := &jwt.Config{
		Email: cfg.ClientEmail,
		// Keys pasted into env files usually carry escaped newlines.
		PrivateKey: []byte(strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n")),
		Scopes:     []string{calendarScope},
		TokenURL:   googleTokenURL,
	}
	return newGoogle(cfg.CalendarID, calendarBaseURL, jwtCfg.TokenSource(context.Background()))
}

func newGoogle(calendarID, baseURL string, ts oauth2.TokenSource) *Google {
	client := oauth2.NewClient(context.Background(), ts)
	client.Timeout = requestTimeout
	return &Google{calendarID: calendarID, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type eventTime struct {
	DateTime string `json:"dateTime"`
}

type attendee struct {
	Email string `json:"email"`
}

type event struct {
	ID          string     `json:"id,omitempty"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Start       eventTime  `json:"start"`
	End         eventTime  `json:"end"`
	Attendees   []attendee `json:"attendees,omitempty"`
}

// Invite inserts the event and lets Google e-mail the attendees.
func (g *Google) Invite(ctx context.Context, inv Invitation) (string, error) {
	ev := event{
		Summary:     inv.Summary,
		Description: inv.Description,
		Start:       eventTime{DateTime: inv.Start.Format(time.RFC3339)},
		End:         eventTime{DateTime: inv.Start.Add(inv.Duration).Format(time.RFC3339)},
	}
	for _, email := range inv.Attendees {
		if email != "" {
			ev.Attendees = append(ev.Attendees, attendee{Email: email})
		}
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events?sendUpdates=all", g.baseURL, url.PathEscape(g.calendarID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calendar request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("calendar api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var created event
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode event: %w", err)
	}
	return created.ID, nil
}
