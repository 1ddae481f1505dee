package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-inventory-insights/internal/cache"
	"go-inventory-insights/internal/model"
	"go-inventory-insights/internal/service"
	"go-inventory-insights/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

type fakeInsights struct {
	lastStore    uuid.UUID
	lastCategory string
}

func (f *fakeInsights) GetQuickInsights(_ context.Context, storeID uuid.UUID) (*service.QuickInsightsView, error) {
	f.lastStore = storeID
	return &service.QuickInsightsView{
		QuickInsights: model.QuickInsights{UrgentCount: 2, CriticalItems: []model.InsightItem{}},
		Meta:          cache.Meta{CachedAt: time.Unix(0, 0).UTC()},
	}, nil
}

func (f *fakeInsights) GetCategoryInsights(_ context.Context, storeID uuid.UUID, category string) (*service.CategoryInsightsView, error) {
	f.lastStore, f.lastCategory = storeID, category
	return &service.CategoryInsightsView{CategoryInsights: model.CategoryInsights{Category: category}}, nil
}

func (f *fakeInsights) ListCategoryInsights(_ context.Context, storeID uuid.UUID) ([]service.CategoryInsightsView, error) {
	f.lastStore = storeID
	return []service.CategoryInsightsView{{CategoryInsights: model.CategoryInsights{Category: "dairy"}}}, nil
}

func (f *fakeInsights) Invalidate(context.Context, uuid.UUID, ...string)  {}
func (f *fakeInsights) PublishDashboard(context.Context, uuid.UUID)       {}
func (f *fakeInsights) PublishCategory(context.Context, uuid.UUID, string) {}

type fakePredictions struct {
	known    map[uuid.UUID]bool
	batchIDs []uuid.UUID
}

func (f *fakePredictions) Recompute(_ context.Context, storeID, productID uuid.UUID) (*model.Prediction, error) {
	if !f.known[productID] {
		return nil, fmt.Errorf("load product %s: %w", productID, service.ErrProductNotFound)
	}
	return &model.Prediction{StoreID: storeID, ProductID: productID}, nil
}

func (f *fakePredictions) BatchRecompute(_ context.Context, _ uuid.UUID, ids []uuid.UUID) service.BatchResult {
	f.batchIDs = ids
	return service.BatchResult{Succeeded: ids, Failed: []service.BatchFailure{}}
}

func (f *fakePredictions) GetPrediction(ctx context.Context, storeID, productID uuid.UUID) (*model.Prediction, error) {
	return f.Recompute(ctx, storeID, productID)
}

func (f *fakePredictions) Warmup(context.Context) error { return nil }

type fakeNotifications struct {
	service.NotificationService
	lastUser    *uuid.UUID
	acknowledge uuid.UUID
}

func (f *fakeNotifications) GetUnread(_ context.Context, _ uuid.UUID, userID *uuid.UUID) ([]model.Notification, error) {
	f.lastUser = userID
	return []model.Notification{{Type: model.NotificationCriticalRisk, Priority: model.PriorityCritical}}, nil
}

func (f *fakeNotifications) GetUnreadCount(context.Context, uuid.UUID, *uuid.UUID) (int64, error) {
	return 3, nil
}

func (f *fakeNotifications) MarkAsRead(_ context.Context, _ uuid.UUID, _ *uuid.UUID, id uuid.UUID) error {
	return fmt.Errorf("find notification %s: %w", id, service.ErrNotificationNotFound)
}

func (f *fakeNotifications) Acknowledge(_ context.Context, _ uuid.UUID, productID uuid.UUID) (int64, error) {
	f.acknowledge = productID
	return 2, nil
}

type fakeSettings struct{}

func (fakeSettings) Get(_ context.Context, storeID uuid.UUID) (*model.AlertSettings, error) {
	s := model.DefaultAlertSettings(storeID)
	return &s, nil
}

func (fakeSettings) Update(_ context.Context, storeID uuid.UUID, _ *uuid.UUID, req service.UpdateAlertSettingsRequest) (*model.AlertSettings, error) {
	if req.RiskCutoff < 1 || req.RiskCutoff > 100 {
		return nil, fmt.Errorf("%w: riskCutoff out of range", service.ErrInvalidSettings)
	}
	s := model.DefaultAlertSettings(storeID)
	s.RiskCutoff = req.RiskCutoff
	return &s, nil
}

type fakeTrigger struct{ busy bool }

func (f *fakeTrigger) Trigger(context.Context) bool { return !f.busy }

type testApp struct {
	app           *fiber.App
	verifier      *jwt.Verifier
	insights      *fakeInsights
	predictions   *fakePredictions
	notifications *fakeNotifications
	trigger       *fakeTrigger
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ta := &testApp{
		app:           fiber.New(),
		verifier:      jwt.NewVerifier(testSecret),
		insights:      &fakeInsights{},
		predictions:   &fakePredictions{known: map[uuid.UUID]bool{}},
		notifications: &fakeNotifications{},
		trigger:       &fakeTrigger{},
	}
	RegisterRoutes(ta.app, ta.verifier, Handlers{
		Analytics:     NewAnalyticsHandler(ta.insights, ta.predictions),
		Predictions:   NewPredictionHandler(ta.predictions),
		Alerts:        NewAlertHandler(fakeSettings{}, ta.notifications),
		Notifications: NewNotificationHandler(ta.notifications),
		Admin:         NewAdminHandler(ta.trigger),
	})
	return ta
}

func (ta *testApp) token(t *testing.T, userID, storeID uuid.UUID, role string) string {
	t.Helper()
	tok, err := ta.verifier.GenerateToken(userID, storeID, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ta *testApp) do(t *testing.T, method, path, token, body string, headers ...string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestRoutesRequireToken(t *testing.T) {
	ta := newTestApp(t)

	status, body := ta.do(t, http.MethodGet, "/api/v1/analytics/dashboard", "", "")
	assert.Equal(t, 401, status)
	assert.Equal(t, "Missing authorization token", body["error"])

	status, _ = ta.do(t, http.MethodGet, "/api/v1/analytics/dashboard", "not-a-jwt", "")
	assert.Equal(t, 401, status)

	other := jwt.NewVerifier("other-secret")
	forged, err := other.GenerateToken(uuid.New(), uuid.New(), "owner", time.Hour)
	require.NoError(t, err)
	status, _ = ta.do(t, http.MethodGet, "/api/v1/analytics/dashboard", forged, "")
	assert.Equal(t, 401, status)
}

func TestDashboardUsesTokenStore(t *testing.T) {
	ta := newTestApp(t)
	storeID := uuid.New()
	tok := ta.token(t, uuid.New(), storeID, "owner")

	status, body := ta.do(t, http.MethodGet, "/api/v1/analytics/dashboard", tok, "")
	require.Equal(t, 200, status)
	assert.Equal(t, storeID, ta.insights.lastStore)
	assert.EqualValues(t, 2, body["urgentCount"])
	assert.Equal(t, false, body["stale"])
}

func TestStoreHeaderOnlyHonouredForAuthor(t *testing.T) {
	ta := newTestApp(t)
	own, target := uuid.New(), uuid.New()

	tok := ta.token(t, uuid.New(), own, "owner")
	status, _ := ta.do(t, http.MethodGet, "/api/v1/analytics/dashboard", tok, "", "X-Store-ID", target.String())
	require.Equal(t, 200, status)
	assert.Equal(t, own, ta.insights.lastStore)

	author := ta.token(t, uuid.New(), uuid.Nil, jwt.RoleAuthor)
	status, _ = ta.do(t, http.MethodGet, "/api/v1/analytics/dashboard", author, "", "X-Store-ID", target.String())
	require.Equal(t, 200, status)
	assert.Equal(t, target, ta.insights.lastStore)

	status, _ = ta.do(t, http.MethodGet, "/api/v1/analytics/dashboard", author, "")
	assert.Equal(t, 400, status)

	status, _ = ta.do(t, http.MethodGet, "/api/v1/analytics/dashboard", author, "", "X-Store-ID", "nope")
	assert.Equal(t, 400, status)
}

func TestProductAnalyticsStatuses(t *testing.T) {
	ta := newTestApp(t)
	tok := ta.token(t, uuid.New(), uuid.New(), "owner")
	known := uuid.New()
	ta.predictions.known[known] = true

	status, body := ta.do(t, http.MethodGet, "/api/v1/analytics/product/"+known.String(), tok, "")
	assert.Equal(t, 200, status)
	assert.Equal(t, known.String(), body["productId"])

	status, _ = ta.do(t, http.MethodGet, "/api/v1/analytics/product/"+uuid.NewString(), tok, "")
	assert.Equal(t, 404, status)

	status, _ = ta.do(t, http.MethodGet, "/api/v1/analytics/product/xyz", tok, "")
	assert.Equal(t, 400, status)
}

func TestCategoryAnalytics(t *testing.T) {
	ta := newTestApp(t)
	tok := ta.token(t, uuid.New(), uuid.New(), "owner")

	status, body := ta.do(t, http.MethodGet, "/api/v1/analytics/by-category?category=bakery", tok, "")
	require.Equal(t, 200, status)
	assert.Equal(t, "bakery", ta.insights.lastCategory)
	assert.Equal(t, "bakery", body["category"])

	status, body = ta.do(t, http.MethodGet, "/api/v1/analytics/by-category", tok, "")
	require.Equal(t, 200, status)
	assert.Len(t, body["categories"], 1)
}

func TestRecomputeAndBatch(t *testing.T) {
	ta := newTestApp(t)
	tok := ta.token(t, uuid.New(), uuid.New(), "owner")
	known := uuid.New()
	ta.predictions.known[known] = true

	status, body := ta.do(t, http.MethodPost, "/api/v1/predictions/"+known.String()+"/recompute", tok, "")
	assert.Equal(t, 200, status)
	assert.Equal(t, "Prediction updated", body["message"])

	status, _ = ta.do(t, http.MethodPost, "/api/v1/predictions/"+uuid.NewString()+"/recompute", tok, "")
	assert.Equal(t, 404, status)

	a, b := uuid.New(), uuid.New()
	status, body = ta.do(t, http.MethodPost, "/api/v1/predictions/batch", tok,
		fmt.Sprintf(`{"productIds":[%q,%q]}`, a, b))
	require.Equal(t, 200, status)
	assert.Equal(t, []uuid.UUID{a, b}, ta.predictions.batchIDs)
	assert.Len(t, body["succeeded"], 2)

	status, _ = ta.do(t, http.MethodPost, "/api/v1/predictions/batch", tok, `{"productIds":[]}`)
	assert.Equal(t, 400, status)
	status, _ = ta.do(t, http.MethodPost, "/api/v1/predictions/batch", tok, `{`)
	assert.Equal(t, 400, status)
}

func TestAlertSettings(t *testing.T) {
	ta := newTestApp(t)
	storeID := uuid.New()
	tok := ta.token(t, uuid.New(), storeID, "owner")

	status, body := ta.do(t, http.MethodGet, "/api/v1/alerts/settings", tok, "")
	require.Equal(t, 200, status)
	assert.EqualValues(t, model.DefaultRiskCutoff, body["riskCutoff"])

	status, body = ta.do(t, http.MethodPut, "/api/v1/alerts/settings", tok, `{"riskCutoff":70}`)
	require.Equal(t, 200, status)
	assert.EqualValues(t, 70, body["data"].(map[string]any)["riskCutoff"])

	status, _ = ta.do(t, http.MethodPut, "/api/v1/alerts/settings", tok, `{"riskCutoff":300}`)
	assert.Equal(t, 400, status)
}

func TestAcknowledge(t *testing.T) {
	ta := newTestApp(t)
	tok := ta.token(t, uuid.New(), uuid.New(), "owner")
	productID := uuid.New()

	status, body := ta.do(t, http.MethodPost, "/api/v1/alerts/acknowledge", tok, fmt.Sprintf(`{"productId":%q}`, productID))
	require.Equal(t, 200, status)
	assert.Equal(t, productID, ta.notifications.acknowledge)
	assert.EqualValues(t, 2, body["updated"])

	status, _ = ta.do(t, http.MethodPost, "/api/v1/alerts/acknowledge", tok, `{}`)
	assert.Equal(t, 400, status)
}

func TestNotificationRoutes(t *testing.T) {
	ta := newTestApp(t)
	userID := uuid.New()
	tok := ta.token(t, userID, uuid.New(), "owner")

	status, body := ta.do(t, http.MethodGet, "/api/v1/notifications", tok, "")
	require.Equal(t, 200, status)
	assert.EqualValues(t, 1, body["count"])
	require.NotNil(t, ta.notifications.lastUser)
	assert.Equal(t, userID, *ta.notifications.lastUser)

	status, body = ta.do(t, http.MethodGet, "/api/v1/notifications/count", tok, "")
	require.Equal(t, 200, status)
	assert.EqualValues(t, 3, body["count"])

	status, _ = ta.do(t, http.MethodPatch, "/api/v1/notifications/"+uuid.NewString()+"/read", tok, "")
	assert.Equal(t, 404, status)

	status, _ = ta.do(t, http.MethodPatch, "/api/v1/notifications/bad/dismiss", tok, "")
	assert.Equal(t, 400, status)
}

func TestAdminRefreshRequiresAuthor(t *testing.T) {
	ta := newTestApp(t)

	owner := ta.token(t, uuid.New(), uuid.New(), "owner")
	status, _ := ta.do(t, http.MethodPost, "/admin/refresh", owner, "")
	assert.Equal(t, 403, status)

	author := ta.token(t, uuid.New(), uuid.Nil, jwt.RoleAuthor)
	status, _ = ta.do(t, http.MethodPost, "/admin/refresh", author, "")
	assert.Equal(t, 202, status)

	ta.trigger.busy = true
	status, _ = ta.do(t, http.MethodPost, "/admin/refresh", author, "")
	assert.Equal(t, 409, status)
}
