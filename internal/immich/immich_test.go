package immich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/facesync/internal/httpclient"
	"github.com/rs/zerolog"
)

func loadTestData(t *testing.T, filename string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", filename))
	if err != nil {
		t.Fatalf("failed to load test data %s: %v", filename, err)
	}
	return data
}

func setupMockServer(t *testing.T) *httptest.Server {
	t.Helper()

	peopleData := loadTestData(t, "people.json")
	facesData := loadTestData(t, "faces_alice.json")

	requireKey := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("x-api-key") != "test-key" {
				http.Error(w, `{"message":"Invalid API key"}`, http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/people", requireKey(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(peopleData)
	}))
	mux.HandleFunc("GET /api/people/p-alice", requireKey(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"p-alice","name":"Alice"}`))
	}))
	mux.HandleFunc("GET /api/people/p-alice/faces", requireKey(func(w http.ResponseWriter, r *http.Request) {
		w.Write(facesData)
	}))
	mux.HandleFunc("GET /api/asset/a1/thumbnail", requireKey(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("asset-bytes"))
	}))
	mux.HandleFunc("GET /api/faces/f1/thumbnail", requireKey(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("face-bytes"))
	}))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, url, key string) *Immich {
	t.Helper()
	hc := httpclient.New(nil, httpclient.Policy{Timeout: time.Second, RetryBackoff: time.Millisecond}, zerolog.Nop())
	im, err := New(url, key, hc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return im
}

func TestGetPeople_Envelope(t *testing.T) {
	server := setupMockServer(t)
	im := newTestClient(t, server.URL+"/", "test-key")

	people, err := im.GetPeople(context.Background())
	if err != nil {
		t.Fatalf("GetPeople: %v", err)
	}
	if len(people) != 3 {
		t.Fatalf("expected 3 people, got %d", len(people))
	}
	if people[0].ID != "p-alice" || people[0].Name != "Alice" {
		t.Errorf("unexpected first person: %+v", people[0])
	}
	if people[2].Name != "" {
		t.Errorf("expected unnamed person, got %q", people[2].Name)
	}
}

func TestGetPeople_BareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"p1","name":"Carol"}]`))
	}))
	defer server.Close()

	people, err := newTestClient(t, server.URL, "k").GetPeople(context.Background())
	if err != nil {
		t.Fatalf("GetPeople: %v", err)
	}
	if len(people) != 1 || people[0].Name != "Carol" {
		t.Errorf("unexpected people: %+v", people)
	}
}

func TestGetPeople_Unauthorized(t *testing.T) {
	server := setupMockServer(t)
	im := newTestClient(t, server.URL, "wrong-key")

	_, err := im.GetPeople(context.Background())
	if err == nil {
		t.Fatal("expected error for bad API key")
	}
}

func TestGetPerson(t *testing.T) {
	server := setupMockServer(t)
	im := newTestClient(t, server.URL, "test-key")

	p, err := im.GetPerson(context.Background(), "p-alice")
	if err != nil {
		t.Fatalf("GetPerson: %v", err)
	}
	if p.Name != "Alice" {
		t.Errorf("expected Alice, got %q", p.Name)
	}

	_, err = im.GetPerson(context.Background(), "missing")
	if !httpclient.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestGetPersonFaces(t *testing.T) {
	server := setupMockServer(t)
	im := newTestClient(t, server.URL, "test-key")

	faces, err := im.GetPersonFaces(context.Background(), "p-alice")
	if err != nil {
		t.Fatalf("GetPersonFaces: %v", err)
	}
	if len(faces) != 3 {
		t.Fatalf("expected 3 faces, got %d", len(faces))
	}

	f1 := faces[0]
	if f1.BoundingBox != (BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 140}) {
		t.Errorf("unexpected nested bbox: %+v", f1.BoundingBox)
	}
	if f1.ImageWidth != 1000 || f1.ImageHeight != 800 {
		t.Errorf("unexpected image size %dx%d", f1.ImageWidth, f1.ImageHeight)
	}
	if f1.ThumbnailPath != "/api/faces/f1/thumbnail" {
		t.Errorf("unexpected thumbnail path %q", f1.ThumbnailPath)
	}

	f2 := faces[1]
	if f2.BoundingBox != (BoundingBox{X1: 5, Y1: 6, X2: 55, Y2: 66}) {
		t.Errorf("unexpected flat bbox: %+v", f2.BoundingBox)
	}
	for _, f := range faces {
		if f.PersonID != "p-alice" {
			t.Errorf("face %s: expected person id filled in, got %q", f.ID, f.PersonID)
		}
	}
}

func TestThumbnails(t *testing.T) {
	server := setupMockServer(t)
	im := newTestClient(t, server.URL, "test-key")

	data, err := im.GetAssetThumbnail(context.Background(), "a1")
	if err != nil {
		t.Fatalf("GetAssetThumbnail: %v", err)
	}
	if string(data) != "asset-bytes" {
		t.Errorf("unexpected asset thumbnail %q", data)
	}

	data, err = im.GetFaceThumbnail(context.Background(), Face{ID: "f1", ThumbnailPath: "/api/faces/f1/thumbnail"})
	if err != nil {
		t.Fatalf("GetFaceThumbnail: %v", err)
	}
	if string(data) != "face-bytes" {
		t.Errorf("unexpected face thumbnail %q", data)
	}

	if _, err := im.GetFaceThumbnail(context.Background(), Face{ID: "f3"}); err == nil {
		t.Error("expected error for face without thumbnail path")
	}
	if _, err := im.GetAssetThumbnail(context.Background(), ""); err == nil {
		t.Error("expected error for empty asset id")
	}
}

func TestNew_InvalidURL(t *testing.T) {
	if _, err := New("not a url", "k", nil); err == nil {
		t.Error("expected error for URL without scheme")
	}
}
