package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/chora/internal/config"
	"github.com/dukerupert/chora/internal/database"
	"github.com/dukerupert/chora/internal/docstore"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	docs := docstore.NewSQLite(db)
	t.Cleanup(func() { docs.Close() })

	cfg := config.Config{
		WeekStart:  time.Sunday,
		SessionTTL: time.Hour,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(New(docs, cfg, logger).Router())
	t.Cleanup(ts.Close)
	return ts
}

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, ts *httptest.Server) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &client{t: t, base: ts.URL, http: &http.Client{Jar: jar}}
}

// do sends body as JSON and decodes the response into out when out is not nil.
func (c *client) do(method, path string, body, out any) int {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatal(err)
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	if err != nil {
		c.t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (c *client) expect(method, path string, body, out any, want int) {
	c.t.Helper()
	if got := c.do(method, path, body, out); got != want {
		c.t.Fatalf("%s %s: status = %d, want %d", method, path, got, want)
	}
}

type user struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Color    string `json:"color"`
	GroupID  string `json:"groupId"`
}

func (c *client) register(email, username string) user {
	c.t.Helper()
	var u user
	c.expect("POST", "/api/register", map[string]string{
		"email": email, "password": "correct horse", "username": username,
	}, &u, http.StatusCreated)
	return u
}

type matrix struct {
	Dates []string `json:"dates"`
	Rows  []struct {
		ChoreID string `json:"choreId"`
		Title   string `json:"title"`
		Cells   []struct {
			Due       bool   `json:"due"`
			Assignee  string `json:"assignee"`
			Completed bool   `json:"completed"`
		} `json:"cells"`
	} `json:"rows"`
	Selected string `json:"selectedMember"`
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	var body map[string]string
	newClient(t, ts).expect("GET", "/health", nil, &body, http.StatusOK)
	if body["status"] != "ok" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t, ts)
	for _, path := range []string{"/api/me", "/api/chores", "/api/schedule/week", "/api/reports"} {
		if got := c.do("GET", path, nil, nil); got != http.StatusUnauthorized {
			t.Errorf("GET %s: status = %d, want 401", path, got)
		}
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t, ts)

	u := c.register("Alice@Example.com", "alice")
	if u.Email != "alice@example.com" || u.Color == "" {
		t.Errorf("registered user = %+v", u)
	}

	var errBody map[string]string
	c.expect("POST", "/api/register", map[string]string{
		"email": "alice@example.com", "password": "another pass",
	}, &errBody, http.StatusConflict)

	c.expect("POST", "/api/register", map[string]string{
		"email": "bob@example.com", "password": "short",
	}, nil, http.StatusBadRequest)

	c.expect("POST", "/api/logout", nil, nil, http.StatusNoContent)
	c.expect("GET", "/api/me", nil, nil, http.StatusUnauthorized)

	c.expect("POST", "/api/login", map[string]string{
		"email": "alice@example.com", "password": "wrong password",
	}, nil, http.StatusUnauthorized)
	c.expect("POST", "/api/login", map[string]string{
		"email": "nobody@example.com", "password": "correct horse",
	}, nil, http.StatusUnauthorized)

	var me user
	c.expect("POST", "/api/login", map[string]string{
		"email": "alice@example.com", "password": "correct horse",
	}, nil, http.StatusOK)
	c.expect("GET", "/api/me", nil, &me, http.StatusOK)
	if me.UID != u.UID {
		t.Errorf("me = %q, want %q", me.UID, u.UID)
	}
}

func TestGroupRoutesNeedGroup(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t, ts)
	c.register("alice@example.com", "alice")

	var body map[string]string
	c.expect("GET", "/api/chores", nil, &body, http.StatusConflict)
	if body["error"] == "" {
		t.Error("expected an error message")
	}

	c.expect("POST", "/api/groups/join", map[string]string{"groupId": "123"}, &body, http.StatusNotFound)
	if body["error"] != "Group not found" {
		t.Errorf("error = %q", body["error"])
	}
	c.expect("POST", "/api/groups", map[string]string{"name": "  "}, nil, http.StatusBadRequest)
}

func TestChoreScheduleAndReportFlow(t *testing.T) {
	ts := newTestServer(t)
	alice := newClient(t, ts)
	bob := newClient(t, ts)
	aliceUser := alice.register("alice@example.com", "alice")
	bobUser := bob.register("bob@example.com", "bob")

	var created struct {
		Group struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"group"`
		Members []user `json:"members"`
	}
	alice.expect("POST", "/api/groups", map[string]string{"name": "Home"}, &created, http.StatusCreated)
	if created.Group.Name != "Home" || len(created.Members) != 1 {
		t.Fatalf("created group = %+v", created)
	}

	var joined struct {
		Members []user `json:"members"`
	}
	bob.expect("POST", "/api/groups/join", map[string]string{"groupId": created.Group.ID}, &joined, http.StatusOK)
	if len(joined.Members) != 2 {
		t.Fatalf("members after join = %d, want 2", len(joined.Members))
	}

	var chore struct {
		ID         string `json:"id"`
		AssignedTo string `json:"assignedTo"`
		StartDate  string `json:"startDate"`
		Repeats    string `json:"repeats"`
	}
	alice.expect("POST", "/api/chores", map[string]any{
		"title":           "Vacuum",
		"startDate":       "2024-01-01",
		"repeatFrequency": map[string]any{"type": "daily", "days": 7},
	}, &chore, http.StatusCreated)
	if chore.AssignedTo != aliceUser.UID || chore.Repeats != "Repeats every 7 days" || chore.StartDate != "2024-01-01" {
		t.Errorf("chore = %+v", chore)
	}

	alice.expect("POST", "/api/chores", map[string]any{
		"title":           "Bad",
		"startDate":       "2024-01-01",
		"repeatFrequency": map[string]any{"type": "weekly"},
	}, nil, http.StatusBadRequest)

	toggle := "/api/chores/" + chore.ID + "/completions/2024-01-08"
	bob.expect("PUT", toggle, map[string]bool{"completed": true}, nil, http.StatusForbidden)
	alice.expect("PUT", "/api/chores/missing/completions/2024-01-08", map[string]bool{"completed": true}, nil, http.StatusNotFound)
	alice.expect("PUT", "/api/chores/"+chore.ID+"/completions/not-a-date", map[string]bool{"completed": true}, nil, http.StatusBadRequest)

	alice.expect("PUT", toggle, map[string]bool{"completed": true}, nil, http.StatusOK)
	alice.expect("PUT", toggle, map[string]bool{"completed": true}, nil, http.StatusOK)

	var records []struct {
		ID        string `json:"id"`
		Completed bool   `json:"completed"`
		UserID    string `json:"userId"`
	}
	bob.expect("GET", "/api/completions", nil, &records, http.StatusOK)
	if len(records) != 1 || records[0].ID != chore.ID+"_2024-01-08" || !records[0].Completed || records[0].UserID != aliceUser.UID {
		t.Fatalf("records = %+v", records)
	}

	var day matrix
	bob.expect("GET", "/api/schedule/day?date=2024-01-08", nil, &day, http.StatusOK)
	if len(day.Rows) != 1 || !day.Rows[0].Cells[0].Completed || day.Rows[0].Cells[0].Assignee != "alice" {
		t.Fatalf("day 2024-01-08 = %+v", day)
	}
	bob.expect("GET", "/api/schedule/day?date=2024-01-09", nil, &day, http.StatusOK)
	if len(day.Rows) != 0 {
		t.Errorf("2024-01-09 rows = %d, want 0", len(day.Rows))
	}

	var week matrix
	bob.expect("GET", "/api/schedule/week", nil, &week, http.StatusOK)
	if len(week.Dates) != 7 || len(week.Rows) != 1 {
		t.Errorf("week = %d dates, %d rows", len(week.Dates), len(week.Rows))
	}

	var sel map[string]string
	bob.expect("POST", "/api/schedule/filter/"+bobUser.UID, nil, &sel, http.StatusOK)
	if sel["selectedMember"] != bobUser.UID {
		t.Errorf("selected = %q", sel["selectedMember"])
	}
	bob.expect("GET", "/api/schedule/day?date=2024-01-08", nil, &day, http.StatusOK)
	if len(day.Rows) != 0 || day.Selected != bobUser.UID {
		t.Errorf("filtered day = %+v", day)
	}
	// The filter belongs to bob's session only.
	alice.expect("GET", "/api/schedule/day?date=2024-01-08", nil, &day, http.StatusOK)
	if len(day.Rows) != 1 {
		t.Errorf("alice day rows = %d, want 1", len(day.Rows))
	}
	bob.expect("POST", "/api/schedule/filter/"+bobUser.UID, nil, &sel, http.StatusOK)
	if sel["selectedMember"] != "" {
		t.Errorf("selected after second toggle = %q", sel["selectedMember"])
	}
	bob.expect("POST", "/api/schedule/filter/stranger", nil, nil, http.StatusBadRequest)

	var rep struct {
		TotalChores    int     `json:"totalChores"`
		CompletedCount int     `json:"completedCount"`
		CompletionRate float64 `json:"completionRate"`
		Members        []struct {
			UID       string `json:"uid"`
			Completed int    `json:"completed"`
		} `json:"members"`
	}
	alice.expect("GET", "/api/reports?from=2024-01-07&to=2024-01-13", nil, &rep, http.StatusOK)
	if rep.TotalChores != 1 || rep.CompletedCount != 1 || rep.CompletionRate != 14.29 {
		t.Errorf("report = %+v", rep)
	}
	alice.expect("GET", "/api/reports?from=2024-01-09", nil, &rep, http.StatusOK)
	if rep.CompletedCount != 0 {
		t.Errorf("completed after 01-09 = %d, want 0", rep.CompletedCount)
	}

	var edited struct {
		Title      string `json:"title"`
		AssignedTo string `json:"assignedTo"`
	}
	bob.expect("PUT", "/api/chores/"+chore.ID, map[string]any{
		"title":           "Vacuum upstairs",
		"assignedTo":      bobUser.UID,
		"startDate":       "2024-01-01",
		"repeatFrequency": map[string]any{"type": "weekly", "weekdays": []int{1}},
	}, &edited, http.StatusOK)
	if edited.Title != "Vacuum upstairs" || edited.AssignedTo != bobUser.UID {
		t.Errorf("edited = %+v", edited)
	}

	alice.expect("DELETE", "/api/chores/"+chore.ID, nil, nil, http.StatusNoContent)
	alice.expect("DELETE", "/api/chores/"+chore.ID, nil, nil, http.StatusNotFound)

	var chores []any
	alice.expect("GET", "/api/chores", nil, &chores, http.StatusOK)
	if len(chores) != 0 {
		t.Errorf("chores after delete = %d", len(chores))
	}
}

func TestBackupsDisabled(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t, ts)
	c.register("alice@example.com", "alice")
	c.expect("POST", "/api/groups", map[string]string{"name": "Home"}, nil, http.StatusCreated)

	c.expect("POST", "/api/backups", map[string]string{"passphrase": "secret"}, nil, http.StatusServiceUnavailable)

	var list struct {
		Status struct {
			State string `json:"state"`
		} `json:"status"`
		Backups []any `json:"backups"`
	}
	c.expect("GET", "/api/backups", nil, &list, http.StatusOK)
	if list.Status.State != "disabled" || len(list.Backups) != 0 {
		t.Errorf("backups = %+v", list)
	}
}

func TestLoginRateLimited(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t, ts)
	creds := map[string]string{"email": "nobody@example.com", "password": "whatever1"}
	for i := 0; i < 10; i++ {
		c.expect("POST", "/api/login", creds, nil, http.StatusUnauthorized)
	}
	c.expect("POST", "/api/login", creds, nil, http.StatusTooManyRequests)
}

func TestCleanupSessions(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	docs := docstore.NewSQLite(db)
	t.Cleanup(func() { docs.Close() })
	srv := New(docs, config.Config{WeekStart: time.Sunday, SessionTTL: time.Hour}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := t.Context()

	if _, err := srv.SessionStore().Create(ctx, "u1", time.Hour); err != nil {
		t.Fatal(err)
	}
	n, err := srv.CleanupSessions(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 0 {
		t.Errorf("deleted = %d, want 0 for a live session", n)
	}
}
