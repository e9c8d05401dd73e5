package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crmlite/api/internal/auth"
	"crmlite/api/internal/config"
	"crmlite/api/internal/identity"
	"crmlite/api/internal/record"
	"crmlite/api/internal/upstream"
)

type fakeBackend struct {
	listOpportunities  func(ctx context.Context, userID string) ([]record.Opportunity, error)
	createOpportunity  func(ctx context.Context, req upstream.CreateOpportunityRequest) (record.Opportunity, error)
	getOpportunity     func(ctx context.Context, id, userID string) (record.Opportunity, error)
	updateOpportunity  func(ctx context.Context, id, userID string, patch json.RawMessage) (record.Opportunity, error)
	deleteOpportunity  func(ctx context.Context, id, userID string) error
	listInteractions   func(ctx context.Context, opportunityID string) ([]record.Interaction, error)
	createInteraction  func(ctx context.Context, req upstream.CreateInteractionRequest) (record.Interaction, error)
	deleteInteraction  func(ctx context.Context, id, userID string) (json.RawMessage, error)
	generateStrategy   func(ctx context.Context, opportunityID string) (record.StrategyResult, error)
	latestStrategy     func(ctx context.Context, opportunityID string) (record.StrategyResult, error)
	upsertUser         func(ctx context.Context, req upstream.UpsertUserRequest) (record.UserProfile, error)
	getUser            func(ctx context.Context, id string) (record.UserProfile, error)
	searchOpportunites func(ctx context.Context, userID, q string, limit int) ([]record.Opportunity, error)
}

func (f *fakeBackend) ListOpportunities(ctx context.Context, userID string) ([]record.Opportunity, error) {
	if f.listOpportunities == nil {
		return nil, nil
	}
	return f.listOpportunities(ctx, userID)
}

func (f *fakeBackend) CreateOpportunity(ctx context.Context, req upstream.CreateOpportunityRequest) (record.Opportunity, error) {
	if f.createOpportunity == nil {
		return record.Opportunity{}, nil
	}
	return f.createOpportunity(ctx, req)
}

func (f *fakeBackend) GetOpportunity(ctx context.Context, id, userID string) (record.Opportunity, error) {
	if f.getOpportunity == nil {
		return record.Opportunity{ID: id, OwnerID: userID}, nil
	}
	return f.getOpportunity(ctx, id, userID)
}

func (f *fakeBackend) UpdateOpportunity(ctx context.Context, id, userID string, patch json.RawMessage) (record.Opportunity, error) {
	if f.updateOpportunity == nil {
		return record.Opportunity{}, nil
	}
	return f.updateOpportunity(ctx, id, userID, patch)
}

func (f *fakeBackend) DeleteOpportunity(ctx context.Context, id, userID string) error {
	if f.deleteOpportunity == nil {
		return nil
	}
	return f.deleteOpportunity(ctx, id, userID)
}

func (f *fakeBackend) ListInteractions(ctx context.Context, opportunityID string) ([]record.Interaction, error) {
	if f.listInteractions == nil {
		return nil, nil
	}
	return f.listInteractions(ctx, opportunityID)
}

func (f *fakeBackend) CreateInteraction(ctx context.Context, req upstream.CreateInteractionRequest) (record.Interaction, error) {
	if f.createInteraction == nil {
		return record.Interaction{}, nil
	}
	return f.createInteraction(ctx, req)
}

func (f *fakeBackend) DeleteInteraction(ctx context.Context, id, userID string) (json.RawMessage, error) {
	if f.deleteInteraction == nil {
		return json.RawMessage(`{"ok":true}`), nil
	}
	return f.deleteInteraction(ctx, id, userID)
}

func (f *fakeBackend) GenerateStrategy(ctx context.Context, opportunityID string) (record.StrategyResult, error) {
	if f.generateStrategy == nil {
		return record.StrategyResult{}, nil
	}
	return f.generateStrategy(ctx, opportunityID)
}

func (f *fakeBackend) LatestStrategy(ctx context.Context, opportunityID string) (record.StrategyResult, error) {
	if f.latestStrategy == nil {
		return record.StrategyResult{}, nil
	}
	return f.latestStrategy(ctx, opportunityID)
}

func (f *fakeBackend) UpsertUser(ctx context.Context, req upstream.UpsertUserRequest) (record.UserProfile, error) {
	if f.upsertUser == nil {
		return record.UserProfile{ID: req.ID, Email: req.Email, FullName: req.FullName}, nil
	}
	return f.upsertUser(ctx, req)
}

func (f *fakeBackend) GetUser(ctx context.Context, id string) (record.UserProfile, error) {
	if f.getUser == nil {
		return record.UserProfile{ID: id}, nil
	}
	return f.getUser(ctx, id)
}

func (f *fakeBackend) SearchOpportunities(ctx context.Context, userID, q string, limit int) ([]record.Opportunity, error) {
	if f.searchOpportunites == nil {
		return nil, nil
	}
	return f.searchOpportunites(ctx, userID, q, limit)
}

type fakeSessions struct {
	saved map[string]identity.User
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{saved: make(map[string]identity.User)}
}

func (f *fakeSessions) SaveRefreshSession(ctx context.Context, tokenHash string, user identity.User, expiresAt time.Time) error {
	f.saved[tokenHash] = user
	return nil
}

func (f *fakeSessions) LookupRefreshSession(ctx context.Context, tokenHash string) (identity.User, error) {
	user, ok := f.saved[tokenHash]
	if !ok {
		return identity.User{}, context.Canceled
	}
	return user, nil
}

func (f *fakeSessions) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	delete(f.saved, tokenHash)
	return nil
}

func (f *fakeSessions) Ping(ctx context.Context) error { return nil }

func testConfig() config.Config {
	return config.Config{
		JWTSecret:                "test-secret",
		AccessTTL:                15 * time.Minute,
		RefreshTTL:               30 * 24 * time.Hour,
		CORSOrigin:               "*",
		BackendInteractionFilter: true,
	}
}

func newTestServer(t *testing.T, cfg config.Config, backend backendClient) *httptest.Server {
	t.Helper()
	service := New(cfg, identity.NewService(identity.NewMemoryStore()), newFakeSessions(), backend)
	srv := httptest.NewServer(NewHTTPServer(service, cfg.CORSOrigin).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func testToken(t *testing.T, cfg config.Config, userID string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(cfg.JWTSecret), auth.Claims{
		Sub:   userID,
		Email: userID + "@example.com",
		Name:  "Test User",
		JTI:   "jti-test",
		Exp:   time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestOpportunitiesRequireSession(t *testing.T) {
	backendHit := false
	backend := &fakeBackend{
		listOpportunities: func(ctx context.Context, userID string) ([]record.Opportunity, error) {
			backendHit = true
			return nil, nil
		},
	}
	srv := newTestServer(t, testConfig(), backend)

	resp := doJSON(t, http.MethodGet, srv.URL+"/opportunities", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	var body struct {
		Code string `json:"code"`
	}
	decodeResponse(t, resp, &body)
	if body.Code != "UNAUTHORIZED" {
		t.Fatalf("code = %q, want UNAUTHORIZED", body.Code)
	}
	if backendHit {
		t.Fatal("backend was called without a session")
	}
}

func TestCreateOpportunityStampsOwnerAndDefaults(t *testing.T) {
	var got upstream.CreateOpportunityRequest
	backend := &fakeBackend{
		createOpportunity: func(ctx context.Context, req upstream.CreateOpportunityRequest) (record.Opportunity, error) {
			got = req
			return record.Opportunity{
				ID:      "opp_new",
				Name:    req.Name,
				Email:   req.Email,
				Status:  req.Status,
				Value:   req.Value,
				OwnerID: req.UserID,
			}, nil
		},
	}
	cfg := testConfig()
	srv := newTestServer(t, cfg, backend)
	token := testToken(t, cfg, "usr_1")

	resp := doJSON(t, http.MethodPost, srv.URL+"/opportunities", token, map[string]any{
		"name":  "Globex",
		"email": "buyer@globex.test",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()

	if got.UserID != "usr_1" {
		t.Fatalf("user_id = %q, want usr_1", got.UserID)
	}
	if got.Status != record.StatusNew {
		t.Fatalf("status = %q, want %q", got.Status, record.StatusNew)
	}
	if got.Value != 0 {
		t.Fatalf("value = %v, want 0", got.Value)
	}
}

func TestCreateOpportunityMissingEmailPersistsNothing(t *testing.T) {
	backendHit := false
	backend := &fakeBackend{
		createOpportunity: func(ctx context.Context, req upstream.CreateOpportunityRequest) (record.Opportunity, error) {
			backendHit = true
			return record.Opportunity{}, nil
		},
	}
	cfg := testConfig()
	srv := newTestServer(t, cfg, backend)
	token := testToken(t, cfg, "usr_1")

	resp := doJSON(t, http.MethodPost, srv.URL+"/opportunities", token, map[string]any{
		"name": "Globex",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body struct {
		Code string `json:"code"`
	}
	decodeResponse(t, resp, &body)
	if body.Code != "INVALID_INPUT" {
		t.Fatalf("code = %q, want INVALID_INPUT", body.Code)
	}
	if backendHit {
		t.Fatal("backend create was called for an invalid request")
	}
}

func TestGetOpportunityNotFoundForForeignRecord(t *testing.T) {
	backend := &fakeBackend{
		getOpportunity: func(ctx context.Context, id, userID string) (record.Opportunity, error) {
			return record.Opportunity{}, &upstream.StatusError{Status: http.StatusNotFound, Detail: "Opportunity not found"}
		},
	}
	cfg := testConfig()
	srv := newTestServer(t, cfg, backend)
	token := testToken(t, cfg, "usr_2")

	resp := doJSON(t, http.MethodGet, srv.URL+"/opportunities/opp_1", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var body struct {
		Code string `json:"code"`
	}
	decodeResponse(t, resp, &body)
	if body.Code != "NOT_FOUND" {
		t.Fatalf("code = %q, want NOT_FOUND", body.Code)
	}
}

func TestUpstreamRejectionPassesDetailThrough(t *testing.T) {
	backend := &fakeBackend{
		createOpportunity: func(ctx context.Context, req upstream.CreateOpportunityRequest) (record.Opportunity, error) {
			return record.Opportunity{}, &upstream.StatusError{Status: http.StatusUnprocessableEntity, Detail: "value must not be negative"}
		},
	}
	cfg := testConfig()
	srv := newTestServer(t, cfg, backend)
	token := testToken(t, cfg, "usr_1")

	resp := doJSON(t, http.MethodPost, srv.URL+"/opportunities", token, map[string]any{
		"name":  "Globex",
		"email": "buyer@globex.test",
		"value": 5,
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	var body struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	decodeResponse(t, resp, &body)
	if body.Code != "UPSTREAM_REJECTED" {
		t.Fatalf("code = %q, want UPSTREAM_REJECTED", body.Code)
	}
	if body.Error != "value must not be negative" {
		t.Fatalf("error = %q, want backend detail verbatim", body.Error)
	}
}

func TestUnreachableBackendMapsToUnavailable(t *testing.T) {
	backend := &fakeBackend{
		listOpportunities: func(ctx context.Context, userID string) ([]record.Opportunity, error) {
			return nil, upstream.ErrUnavailable
		},
	}
	cfg := testConfig()
	srv := newTestServer(t, cfg, backend)
	token := testToken(t, cfg, "usr_1")

	resp := doJSON(t, http.MethodGet, srv.URL+"/opportunities", token, nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	var body struct {
		Code string `json:"code"`
	}
	decodeResponse(t, resp, &body)
	if body.Code != "UPSTREAM_UNAVAILABLE" {
		t.Fatalf("code = %q, want UPSTREAM_UNAVAILABLE", body.Code)
	}
}

func TestListInteractionsFiltersLocallyWhenBackendCannot(t *testing.T) {
	var requestedFilter string
	backend := &fakeBackend{
		listInteractions: func(ctx context.Context, opportunityID string) ([]record.Interaction, error) {
			requestedFilter = opportunityID
			return []record.Interaction{
				{ID: "int_1", OpportunityID: "opp_1", Type: record.TypePhoneCall, Notes: "a"},
				{ID: "int_2", OpportunityID: "opp_2", Type: record.TypeEmailSent, Notes: "b"},
				{ID: "int_3", OpportunityID: "opp_1", Type: record.TypeCustomNote, Notes: "c"},
			}, nil
		},
	}
	cfg := testConfig()
	cfg.BackendInteractionFilter = false
	srv := newTestServer(t, cfg, backend)
	token := testToken(t, cfg, "usr_1")

	resp := doJSON(t, http.MethodGet, srv.URL+"/opportunities/opp_1/interactions", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Interactions []record.Interaction `json:"interactions"`
	}
	decodeResponse(t, resp, &body)
	items := body.Interactions

	if requestedFilter != "" {
		t.Fatalf("backend was asked to filter (%q) despite the capability flag", requestedFilter)
	}
	if len(items) != 2 {
		t.Fatalf("got %d interactions, want 2", len(items))
	}
	for _, item := range items {
		if item.OpportunityID != "opp_1" {
			t.Fatalf("interaction %s belongs to %s", item.ID, item.OpportunityID)
		}
	}
}

func TestResourceResponsesAreWrapped(t *testing.T) {
	backend := &fakeBackend{
		listOpportunities: func(ctx context.Context, userID string) ([]record.Opportunity, error) {
			return []record.Opportunity{{ID: "opp_1", OwnerID: userID}}, nil
		},
		getOpportunity: func(ctx context.Context, id, userID string) (record.Opportunity, error) {
			return record.Opportunity{ID: id, OwnerID: userID}, nil
		},
	}
	cfg := testConfig()
	srv := newTestServer(t, cfg, backend)
	token := testToken(t, cfg, "usr_1")

	resp := doJSON(t, http.MethodGet, srv.URL+"/opportunities", token, nil)
	var list struct {
		Opportunities []record.Opportunity `json:"opportunities"`
	}
	decodeResponse(t, resp, &list)
	if len(list.Opportunities) != 1 || list.Opportunities[0].ID != "opp_1" {
		t.Fatalf("list envelope = %+v", list)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/opportunities/opp_1", token, nil)
	var single struct {
		Opportunity record.Opportunity `json:"opportunity"`
	}
	decodeResponse(t, resp, &single)
	if single.Opportunity.ID != "opp_1" {
		t.Fatalf("detail envelope = %+v", single)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/opportunities/opp_1", token, nil)
	var deleted map[string]any
	decodeResponse(t, resp, &deleted)
	if deleted["success"] != true {
		t.Fatalf("delete body = %v, want {\"success\":true}", deleted)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/user", token, nil)
	var user struct {
		User record.UserProfile `json:"user"`
	}
	decodeResponse(t, resp, &user)
	if user.User.ID != "usr_1" {
		t.Fatalf("user envelope = %+v", user)
	}
}

func TestCreateInteractionRejectsUnknownType(t *testing.T) {
	backendHit := false
	backend := &fakeBackend{
		createInteraction: func(ctx context.Context, req upstream.CreateInteractionRequest) (record.Interaction, error) {
			backendHit = true
			return record.Interaction{}, nil
		},
	}
	cfg := testConfig()
	srv := newTestServer(t, cfg, backend)
	token := testToken(t, cfg, "usr_1")

	resp := doJSON(t, http.MethodPost, srv.URL+"/opportunities/opp_1/interactions", token, map[string]any{
		"type":  "Carrier Pigeon",
		"notes": "flew away",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
	if backendHit {
		t.Fatal("backend create was called for an invalid type")
	}
}

func TestAssistRoutesNeedNoSession(t *testing.T) {
	var generated, fetched bool
	backend := &fakeBackend{
		generateStrategy: func(ctx context.Context, opportunityID string) (record.StrategyResult, error) {
			generated = true
			return record.StrategyResult{
				OpportunityID:  opportunityID,
				Summary:        "Deal is warming up",
				NextStep:       "Schedule a demo",
				Sentiment:      "WARM - engaged recently",
				TacticalAdvice: "Reference the last call",
				CreatedAt:      time.Now(),
			}, nil
		},
		latestStrategy: func(ctx context.Context, opportunityID string) (record.StrategyResult, error) {
			fetched = true
			return record.StrategyResult{OpportunityID: opportunityID, Summary: "stored"}, nil
		},
	}
	srv := newTestServer(t, testConfig(), backend)

	resp := doJSON(t, http.MethodPost, srv.URL+"/opportunities/opp_1/ai-assist", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate status = %d, want 200", resp.StatusCode)
	}
	var payload map[string]any
	decodeResponse(t, resp, &payload)
	if !generated {
		t.Fatal("POST did not trigger generation")
	}
	if payload["suggestedNextStep"] != "Schedule a demo" {
		t.Fatalf("suggestedNextStep = %v", payload["suggestedNextStep"])
	}
	if payload["urgency"] != "WARM - engaged recently" {
		t.Fatalf("urgency = %v", payload["urgency"])
	}
	if _, leaked := payload["next_step"]; leaked {
		t.Fatal("backend field name leaked through")
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/opportunities/opp_1/ai-assist", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("latest status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()
	if !fetched {
		t.Fatal("GET did not hit the stored result")
	}
}

func TestAuthFlow(t *testing.T) {
	var synced []upstream.UpsertUserRequest
	backend := &fakeBackend{
		upsertUser: func(ctx context.Context, req upstream.UpsertUserRequest) (record.UserProfile, error) {
			synced = append(synced, req)
			return record.UserProfile{ID: req.ID, Email: req.Email, FullName: req.FullName}, nil
		},
	}
	cfg := testConfig()
	srv := newTestServer(t, cfg, backend)

	resp := doJSON(t, http.MethodPost, srv.URL+"/auth/signup", "", map[string]any{
		"email":    "ada@example.com",
		"password": "correct-horse",
		"fullName": "Ada Lovelace",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201", resp.StatusCode)
	}
	var created struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		UserID       string `json:"userId"`
	}
	decodeResponse(t, resp, &created)
	if created.AccessToken == "" || created.RefreshToken == "" {
		t.Fatal("signup returned empty tokens")
	}
	if len(synced) != 1 || synced[0].ID != created.UserID {
		t.Fatalf("profile sync = %+v, want one entry for %s", synced, created.UserID)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/auth/signin", "", map[string]any{
		"email":    "ada@example.com",
		"password": "correct-horse",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signin status = %d, want 200", resp.StatusCode)
	}
	var signedIn struct {
		RefreshToken string `json:"refreshToken"`
	}
	decodeResponse(t, resp, &signedIn)

	resp = doJSON(t, http.MethodPost, srv.URL+"/auth/refresh", "", map[string]any{
		"refreshToken": signedIn.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", resp.StatusCode)
	}
	var refreshed struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	decodeResponse(t, resp, &refreshed)

	// The used refresh token is single-use.
	resp = doJSON(t, http.MethodPost, srv.URL+"/auth/refresh", "", map[string]any{
		"refreshToken": signedIn.RefreshToken,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("reused refresh status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/auth/logout", "", map[string]any{
		"refreshToken": refreshed.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/auth/refresh", "", map[string]any{
		"refreshToken": refreshed.RefreshToken,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSignUpSucceedsWhenProfileSyncFails(t *testing.T) {
	backend := &fakeBackend{
		upsertUser: func(ctx context.Context, req upstream.UpsertUserRequest) (record.UserProfile, error) {
			return record.UserProfile{}, upstream.ErrUnavailable
		},
	}
	srv := newTestServer(t, testConfig(), backend)

	resp := doJSON(t, http.MethodPost, srv.URL+"/auth/signup", "", map[string]any{
		"email":    "ada@example.com",
		"password": "correct-horse",
		"fullName": "Ada Lovelace",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201 despite backend being down", resp.StatusCode)
	}
	var created struct {
		AccessToken string `json:"accessToken"`
	}
	decodeResponse(t, resp, &created)
	if created.AccessToken == "" {
		t.Fatal("signup returned no token")
	}
}

func TestSignInWrongPassword(t *testing.T) {
	cfg := testConfig()
	srv := newTestServer(t, cfg, &fakeBackend{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/auth/signup", "", map[string]any{
		"email":    "ada@example.com",
		"password": "correct-horse",
	})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/auth/signin", "", map[string]any{
		"email":    "ada@example.com",
		"password": "wrong-horse",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDeleteInteractionPassesBodyThrough(t *testing.T) {
	backend := &fakeBackend{
		deleteInteraction: func(ctx context.Context, id, userID string) (json.RawMessage, error) {
			if userID != "usr_1" {
				t.Errorf("user_id = %q, want usr_1", userID)
			}
			return json.RawMessage(`{"ok":true,"id":"` + id + `"}`), nil
		},
	}
	cfg := testConfig()
	srv := newTestServer(t, cfg, backend)
	token := testToken(t, cfg, "usr_1")

	resp := doJSON(t, http.MethodDelete, srv.URL+"/interactions/int_4", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	decodeResponse(t, resp, &body)
	if body["id"] != "int_4" {
		t.Fatalf("body = %v, want backend payload verbatim", body)
	}
}
