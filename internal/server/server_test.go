package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"stargate/internal/config"
	"stargate/internal/db"
	"stargate/internal/engine"
	"stargate/internal/metrics"
	"stargate/internal/migrate"
	"stargate/internal/repo"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn, db.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	m := metrics.New()
	e := engine.New(repo.Repo{DB: conn, Driver: db.SQLite}, config.Default())
	e.Metrics = m
	handler, err := New(Config{Engine: e, BasePath: "/v1", Metrics: m})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		conn.Close()
	})
	return srv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("unmarshal %s: %v", string(data), err)
	}
	return v
}

func personURL(base, name string) string {
	return base + "/v1/person/" + url.PathEscape(name)
}

func TestPersonAndDutyLifecycle(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/person", map[string]any{"name": "John Doe"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create person status %d: %s", res.StatusCode, data)
	}
	created := decode[PersonCreatedResult](t, data)
	if !created.Success || created.ID == 0 || created.ResponseCode != http.StatusCreated {
		t.Fatalf("created = %+v", created)
	}
	if res.Header.Get("X-Request-Id") == "" {
		t.Fatalf("missing request id header")
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/astronautduty", map[string]any{
		"name": "John Doe", "rank_id": 2, "duty_title_id": 1, "duty_start_date": "2020-01-01",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create duty status %d: %s", res.StatusCode, data)
	}
	duty := decode[DutyCreatedResult](t, data)
	if duty.ID == 0 || duty.Duty.DutyStartDate != "2020-01-01" || duty.Duty.DutyEndDate != nil {
		t.Fatalf("duty = %+v", duty)
	}

	res, data = doJSON(t, client, http.MethodGet, personURL(srv.URL, "John Doe"), nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get person status %d: %s", res.StatusCode, data)
	}
	person := decode[PersonResult](t, data)
	if person.Person == nil || person.Person.CurrentRank != "1LT" || person.Person.CurrentDutyTitle != "Commander" {
		t.Fatalf("person = %+v", person)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/astronautduty/"+url.PathEscape("John Doe"), nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get duties status %d: %s", res.StatusCode, data)
	}
	duties := decode[DutiesResult](t, data)
	if len(duties.AstronautDuties) != 1 || duties.AstronautDuties[0].Rank != "1LT" || duties.AstronautDuties[0].DutyTitle != "Commander" {
		t.Fatalf("duties = %+v", duties)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/person", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list people status %d: %s", res.StatusCode, data)
	}
	if people := decode[PeopleResult](t, data); len(people.People) != 1 {
		t.Fatalf("people = %+v", people)
	}
}

func TestErrorKindsMapToStatus(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	doJSON(t, client, http.MethodPost, srv.URL+"/v1/person", map[string]any{"name": "John Doe"})
	doJSON(t, client, http.MethodPost, srv.URL+"/v1/astronautduty", map[string]any{
		"name": "John Doe", "rank_id": 2, "duty_title_id": 1, "duty_start_date": "2020-01-01",
	})

	cases := []struct {
		name   string
		method string
		path   string
		body   map[string]any
		status int
		kind   string
	}{
		{"unknown person", http.MethodPost, "/v1/astronautduty", map[string]any{"name": "Ghost", "rank_id": 2, "duty_title_id": 1, "duty_start_date": "2021-01-01"}, http.StatusNotFound, "not_found"},
		{"bad rank", http.MethodPost, "/v1/astronautduty", map[string]any{"name": "John Doe", "rank_id": 42, "duty_title_id": 1, "duty_start_date": "2021-01-01"}, http.StatusBadRequest, "invalid_reference"},
		{"bad title", http.MethodPost, "/v1/astronautduty", map[string]any{"name": "John Doe", "rank_id": 2, "duty_title_id": 42, "duty_start_date": "2021-01-01"}, http.StatusBadRequest, "invalid_reference"},
		{"bad date", http.MethodPost, "/v1/astronautduty", map[string]any{"name": "John Doe", "rank_id": 2, "duty_title_id": 1, "duty_start_date": "01/01/2021"}, http.StatusBadRequest, "invalid_reference"},
		{"duplicate duty", http.MethodPost, "/v1/astronautduty", map[string]any{"name": "John Doe", "rank_id": 3, "duty_title_id": 1, "duty_start_date": "2020-01-01"}, http.StatusConflict, "conflict"},
		{"current duty", http.MethodPost, "/v1/astronautduty", map[string]any{"name": "John Doe", "rank_id": 3, "duty_title_id": 2, "duty_start_date": "2019-01-01"}, http.StatusConflict, "conflict"},
		{"duplicate person", http.MethodPost, "/v1/person", map[string]any{"name": "John Doe"}, http.StatusConflict, "conflict"},
		{"blank person", http.MethodPost, "/v1/person", map[string]any{"name": "  "}, http.StatusBadRequest, "invalid_reference"},
		{"schema violation", http.MethodPost, "/v1/person", map[string]any{"name": ""}, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, data := doJSON(t, client, tc.method, srv.URL+tc.path, tc.body)
			if res.StatusCode != tc.status {
				t.Fatalf("status %d, want %d: %s", res.StatusCode, tc.status, data)
			}
			r := decode[Result](t, data)
			if r.Success || r.ErrorKind != tc.kind || r.ResponseCode != tc.status || r.Message == "" {
				t.Fatalf("result = %+v", r)
			}
		})
	}
}

func TestUnknownPersonReadsAreNotErrors(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, personURL(srv.URL, "Ghost"), nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
	person := decode[PersonResult](t, data)
	if !person.Success || person.Person != nil || person.Message != "Person 'Ghost' not found" {
		t.Fatalf("person = %+v", person)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/astronautduty/Ghost", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
	duties := decode[DutiesResult](t, data)
	if duties.Person != nil || duties.AstronautDuties == nil || len(duties.AstronautDuties) != 0 {
		t.Fatalf("duties = %+v", duties)
	}
}

func TestReferenceDataLogsAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/referencedata/ranks", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("ranks status %d: %s", res.StatusCode, data)
	}
	ranks := decode[RanksResult](t, data)
	if len(ranks.Ranks) != 6 || ranks.Ranks[0].Abbreviation != "2LT" {
		t.Fatalf("ranks = %+v", ranks)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/referencedata/duty-titles", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("titles status %d: %s", res.StatusCode, data)
	}
	if titles := decode[DutyTitlesResult](t, data); len(titles.DutyTitles) != 5 {
		t.Fatalf("titles = %+v", titles)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/logs?limit=10&level=info", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("logs status %d: %s", res.StatusCode, data)
	}
	if logs := decode[LogsResult](t, data); logs.Count != len(logs.Logs) {
		t.Fatalf("logs = %+v", logs)
	}

	doJSON(t, client, http.MethodPost, srv.URL+"/v1/person", map[string]any{"name": "Jane Doe"})
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/metrics", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d", res.StatusCode)
	}
	if !strings.Contains(string(data), "stargate_people_created_total 1") {
		t.Fatalf("metrics missing people counter")
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/openapi.json", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "/v1/astronautduty") {
		t.Fatalf("openapi status %d", res.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/health", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "ok") {
		t.Fatalf("health status %d: %s", res.StatusCode, data)
	}
}
