package stargatesdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/person":
			var in map[string]string
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in["name"] != "John Doe" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"success":true,"response_code":201,"id":7,"person":{"id":7,"name":"John Doe"}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/person/John Doe":
			w.Write([]byte(`{"success":true,"response_code":200,"person":{"person_id":7,"name":"John Doe","current_rank":"1LT"}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/person/Ghost":
			w.Write([]byte(`{"success":true,"message":"Person 'Ghost' not found","response_code":200,"person":null}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v1/astronautduty":
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"success":false,"message":"Person already has a current duty.","error_kind":"conflict","response_code":409}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/astronautduty/John Doe":
			w.Write([]byte(`{"success":true,"response_code":200,"astronaut_duties":[{"id":1,"person_id":7,"rank_id":2,"duty_title_id":1,"duty_start_date":"2020-01-01","rank":"1LT","duty_title":"Commander"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL + "/v1/")
	ctx := context.Background()

	p, err := c.CreatePerson(ctx, "John Doe")
	if err != nil || p.ID != 7 {
		t.Fatalf("create person = %+v, %v", p, err)
	}
	pa, err := c.Person(ctx, "John Doe")
	if err != nil || pa == nil || pa.CurrentRank != "1LT" {
		t.Fatalf("person = %+v, %v", pa, err)
	}
	if ghost, err := c.Person(ctx, "Ghost"); err != nil || ghost != nil {
		t.Fatalf("ghost = %+v, %v", ghost, err)
	}
	duties, err := c.Duties(ctx, "John Doe")
	if err != nil || len(duties) != 1 || duties[0].DutyTitle != "Commander" || duties[0].DutyEndDate != nil {
		t.Fatalf("duties = %+v, %v", duties, err)
	}

	_, err = c.CreateDuty(ctx, CreateDutyInput{Name: "John Doe", RankID: 3, DutyTitleID: 2, StartDate: "2019-01-01"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Kind != "conflict" {
		t.Fatalf("api error = %+v", apiErr)
	}
}
