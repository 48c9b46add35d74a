package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eductome/eductome/internal/domain"
	"github.com/eductome/eductome/internal/session"
	"github.com/eductome/eductome/internal/store"
)

type stubMentor struct {
	text string
}

func (s stubMentor) Generate(context.Context, *domain.Profile, []domain.Message, string, string, string) (string, error) {
	return s.text, nil
}

func newTestServer(t *testing.T, limit int) (*httptest.Server, *store.MemoryStore) {
	t.Helper()

	repo := store.NewMemory()
	svc := session.NewService(repo, stubMentor{text: "Commençons."}, session.Options{})
	limiter := NewRateLimiter(limit, time.Minute)
	t.Cleanup(limiter.Stop)
	h := NewHandler(repo, svc, limiter)

	r := chi.NewRouter()
	h.RegisterProfileRoutes(r)
	h.RegisterSessionRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func onboard(t *testing.T, srv *httptest.Server) {
	t.Helper()
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/profile", ProfileRequest{
		Name:       "Awa",
		GradeClass: "Terminale D",
		Weaknesses: []string{"Intégrales"},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("onboarding status = %d", resp.StatusCode)
	}
}

func createSession(t *testing.T, srv *httptest.Server, subject string) domain.ChatSession {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions", CreateSessionRequest{Subject: subject})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d", resp.StatusCode)
	}
	var sess domain.ChatSession
	decodeBody(t, resp, &sess)
	return sess
}

func TestProfileNotFoundBeforeOnboarding(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, 10)
	resp, err := http.Get(srv.URL + "/api/profile")
	if err != nil {
		t.Fatalf("GET profile: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestProfileSaveAndGet(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, 10)
	onboard(t, srv)

	resp, err := http.Get(srv.URL + "/api/profile")
	if err != nil {
		t.Fatalf("GET profile: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var p domain.Profile
	decodeBody(t, resp, &p)
	if p.Name != "Awa" || p.GradeClass != "Terminale D" {
		t.Errorf("unexpected profile %+v", p)
	}
}

func TestProfileEditPreservesEarnedState(t *testing.T) {
	t.Parallel()

	srv, repo := newTestServer(t, 10)
	if err := repo.SaveProfile(context.Background(), &domain.Profile{
		Name:             "Awa",
		DisciplinePoints: 120,
		Badges:           []string{domain.BadgeDisciple},
	}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/profile", ProfileRequest{
		Name:       "Awa K.",
		GradeClass: "Première C",
	})
	var p domain.Profile
	decodeBody(t, resp, &p)
	if p.Name != "Awa K." || p.GradeClass != "Première C" {
		t.Errorf("identity fields not updated: %+v", p)
	}
	if p.DisciplinePoints != 120 || !p.HasBadge(domain.BadgeDisciple) {
		t.Errorf("earned state lost: %+v", p)
	}
}

func TestProfileRequiresName(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, 10)
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/profile", ProfileRequest{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateSessionRequiresProfile(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, 10)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions", CreateSessionRequest{Subject: domain.SubjectMath})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChatTurnFlow(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, 10)
	onboard(t, srv)
	sess := createSession(t, srv, domain.SubjectMath)

	if len(sess.Messages) != 1 {
		t.Fatalf("new session should hold the welcome message, got %d", len(sess.Messages))
	}

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/sessions/%s/messages", srv.URL, sess.ID), SendMessageRequest{
		Message: "Explique les limites",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send status = %d", resp.StatusCode)
	}
	var updated domain.ChatSession
	decodeBody(t, resp, &updated)
	if len(updated.Messages) != 3 {
		t.Fatalf("expected 3 messages after one turn, got %d", len(updated.Messages))
	}
	last := updated.Messages[2]
	if last.Role != domain.RoleModel || last.Content != "Commençons." || last.IsThinking {
		t.Errorf("unexpected reply %+v", last)
	}
}

func TestSendToUnknownSession(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, 10)
	onboard(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/nope/messages", SendMessageRequest{Message: "allo"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSendEmptyMessage(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, 10)
	onboard(t, srv)
	sess := createSession(t, srv, domain.SubjectMath)

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/sessions/%s/messages", srv.URL, sess.ID), SendMessageRequest{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSendRateLimited(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, 1)
	onboard(t, srv)
	sess := createSession(t, srv, domain.SubjectMath)
	url := fmt.Sprintf("%s/api/sessions/%s/messages", srv.URL, sess.ID)

	resp := doJSON(t, http.MethodPost, url, SendMessageRequest{Message: "allo"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first send status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, url, SendMessageRequest{Message: "encore"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second send status = %d, want 429", resp.StatusCode)
	}
}

func TestClearState(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, 10)
	onboard(t, srv)
	createSession(t, srv, domain.SubjectMath)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/state", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE state: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear status = %d", resp.StatusCode)
	}

	listResp, err := http.Get(srv.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("GET sessions: %v", err)
	}
	var sessions []domain.ChatSession
	decodeBody(t, listResp, &sessions)
	if len(sessions) != 0 {
		t.Errorf("expected no sessions after clear, got %d", len(sessions))
	}

	profResp, err := http.Get(srv.URL + "/api/profile")
	if err != nil {
		t.Fatalf("GET profile: %v", err)
	}
	profResp.Body.Close()
	if profResp.StatusCode != http.StatusNotFound {
		t.Errorf("profile after clear = %d, want 404", profResp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, 10)
	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
