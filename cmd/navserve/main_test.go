package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"navbake/internal/config"
)

const quadOBJ = `
v -5 0 -5
v -5 0 5
v 5 0 5
v 5 0 -5
f 1 2 3
f 1 3 4
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	s := newServer(cfg, cfg.NewLogger(false))
	ts := httptest.NewServer(s.handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestBuildAndNearest(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/build", "text/plain", strings.NewReader(quadOBJ))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("build status = %d", resp.StatusCode)
	}
	var build buildResponse
	if err := json.NewDecoder(resp.Body).Decode(&build); err != nil {
		t.Fatal(err)
	}
	if build.State != "Ready" || build.Polys < 1 {
		t.Fatalf("build response = %+v", build)
	}

	resp2, err := http.Get(ts.URL + "/api/nearest?x=0&y=0&z=0")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("nearest status = %d", resp2.StatusCode)
	}
	var near nearestResponse
	if err := json.NewDecoder(resp2.Body).Decode(&near); err != nil {
		t.Fatal(err)
	}
	if !near.Found || near.Ref == 0 {
		t.Fatalf("nearest response = %+v", near)
	}
}

func TestNearestWithoutMesh(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/nearest?x=0&y=0&z=0")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestBuildRejectsBadBody(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/build", "text/plain", strings.NewReader("not an obj"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestBuildRejectsBadPartition(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/build?partition=quadtree", "text/plain", strings.NewReader(quadOBJ))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
