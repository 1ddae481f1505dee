package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"go-inventory-insights/internal/cache"
	"go-inventory-insights/internal/model"
	"go-inventory-insights/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── clock ────────────────────────────────────────────────────────────────────

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// ── products ─────────────────────────────────────────────────────────────────

type stubProductRepo struct {
	mu         sync.Mutex
	products   map[uuid.UUID]*model.Product
	categories map[string]*model.Category
}

func newStubProductRepo() *stubProductRepo {
	return &stubProductRepo{
		products:   make(map[uuid.UUID]*model.Product),
		categories: make(map[string]*model.Category),
	}
}

func (r *stubProductRepo) add(p *model.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.products[p.ID] = p
}

func (r *stubProductRepo) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
}

func (r *stubProductRepo) addCategory(c *model.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[c.StoreID.String()+"/"+c.Name] = c
}

func (r *stubProductRepo) FindByID(_ context.Context, storeID, id uuid.UUID) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.StoreID != storeID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *stubProductRepo) idsInCategory(storeID uuid.UUID, category string) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for _, p := range r.products {
		if p.StoreID == storeID && p.Category == category {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (r *stubProductRepo) ListStoreIDs(_ context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, p := range r.products {
		if !seen[p.StoreID] {
			seen[p.StoreID] = true
			ids = append(ids, p.StoreID)
		}
	}
	return ids, nil
}

func (r *stubProductRepo) FindCategory(_ context.Context, storeID uuid.UUID, name string) (*model.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[storeID.String()+"/"+name]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

// ── sales ────────────────────────────────────────────────────────────────────

type stubSaleRepo struct {
	mu       sync.Mutex
	sales    []model.Sale
	products *stubProductRepo
	// onFind runs on every FindByProductSince call, outside the lock.
	onFind func()
}

func newStubSaleRepo(products *stubProductRepo) *stubSaleRepo {
	return &stubSaleRepo{products: products}
}

func (r *stubSaleRepo) add(s model.Sale) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.sales = append(r.sales, s)
}

func (r *stubSaleRepo) FindByProductSince(_ context.Context, storeID, productID uuid.UUID, since time.Time) ([]model.Sale, error) {
	if r.onFind != nil {
		r.onFind()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Sale
	for _, s := range r.sales {
		if s.StoreID == storeID && s.ProductID == productID && s.SaleDate.After(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubSaleRepo) CategorySalesSince(_ context.Context, storeID uuid.UUID, category string, since time.Time) (*repository.CategorySales, error) {
	ids := r.products.idsInCategory(storeID, category)
	inCategory := map[uuid.UUID]bool{}
	for _, id := range ids {
		inCategory[id] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out := &repository.CategorySales{ProductCount: int64(len(ids)), Revenue: decimal.Zero}
	for _, s := range r.sales {
		if s.StoreID == storeID && inCategory[s.ProductID] && s.SaleDate.After(since) {
			out.Quantity += int64(s.QuantitySold)
			out.Revenue = out.Revenue.Add(s.PriceAtSale.Mul(decimal.NewFromInt(int64(s.QuantitySold))))
		}
	}
	return out, nil
}

func (r *stubSaleRepo) RecentProductIDs(_ context.Context, storeID uuid.UUID, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := map[uuid.UUID]time.Time{}
	for _, s := range r.sales {
		if s.StoreID == storeID && s.SaleDate.After(latest[s.ProductID]) {
			latest[s.ProductID] = s.SaleDate
		}
	}
	ids := make([]uuid.UUID, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return latest[ids[i]].After(latest[ids[j]]) })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// ── predictions ──────────────────────────────────────────────────────────────

type stubPredictionRepo struct {
	mu      sync.Mutex
	rows    map[[2]uuid.UUID]*model.Prediction
	upserts int
	failOn  map[uuid.UUID]error
	listErr error

	// listGate, when set, holds the next ListByStore after it has read its rows
	listGate    chan struct{}
	listEntered chan struct{}
}

// holdNextList makes the next ListByStore take its snapshot and then wait for
// release. entered is closed once that snapshot is taken.
func (r *stubPredictionRepo) holdNextList() (entered <-chan struct{}, release func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gate, in := make(chan struct{}), make(chan struct{})
	r.listGate, r.listEntered = gate, in
	return in, func() { close(gate) }
}

func newStubPredictionRepo() *stubPredictionRepo {
	return &stubPredictionRepo{rows: make(map[[2]uuid.UUID]*model.Prediction), failOn: map[uuid.UUID]error{}}
}

func (r *stubPredictionRepo) Upsert(_ context.Context, p *model.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn[p.ProductID]; err != nil {
		return err
	}
	r.upserts++
	k := [2]uuid.UUID{p.StoreID, p.ProductID}
	if prev, ok := r.rows[k]; ok {
		p.ID = prev.ID
		p.CreatedAt = prev.CreatedAt
	} else if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.rows[k] = &cp
	return nil
}

func (r *stubPredictionRepo) FindByProduct(_ context.Context, storeID, productID uuid.UUID) (*model.Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[[2]uuid.UUID{storeID, productID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *stubPredictionRepo) list(storeID uuid.UUID, keep func(*model.Prediction) bool) []model.Prediction {
	var out []model.Prediction
	for _, p := range r.rows {
		if p.StoreID == storeID && keep(p) {
			out = append(out, *p)
		}
	}
	return out
}

func (r *stubPredictionRepo) ListByStore(_ context.Context, storeID uuid.UUID) ([]model.Prediction, error) {
	r.mu.Lock()
	if r.listErr != nil {
		err := r.listErr
		r.mu.Unlock()
		return nil, err
	}
	out := r.list(storeID, func(*model.Prediction) bool { return true })
	gate, entered := r.listGate, r.listEntered
	r.listGate, r.listEntered = nil, nil
	r.mu.Unlock()

	if gate != nil {
		close(entered)
		<-gate
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Metrics.RiskScore > out[j].Metrics.RiskScore })
	return out, nil
}

func (r *stubPredictionRepo) ListByCategory(_ context.Context, storeID uuid.UUID, category string) ([]model.Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := r.list(storeID, func(p *model.Prediction) bool { return p.Category == category })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Metrics.Velocity > out[j].Metrics.Velocity })
	return out, nil
}

func (r *stubPredictionRepo) ListCategories(_ context.Context, storeID uuid.UUID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, p := range r.rows {
		if p.StoreID == storeID && p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *stubPredictionRepo) setListErr(err error) {
	r.mu.Lock()
	r.listErr = err
	r.mu.Unlock()
}

func (r *stubPredictionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *stubPredictionRepo) DeleteByProduct(_ context.Context, storeID, productID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, [2]uuid.UUID{storeID, productID})
	return nil
}

// ── notifications ────────────────────────────────────────────────────────────

type dedupKey struct {
	store, product uuid.UUID
	typ            model.NotificationType
}

// stubNotificationRepo claims dedup keys under its mutex, which gives the
// same all-or-nothing outcome as the conditional upsert in Postgres.
type stubNotificationRepo struct {
	mu   sync.Mutex
	rows []*model.Notification
	keys map[dedupKey]time.Time
}

func newStubNotificationRepo() *stubNotificationRepo {
	return &stubNotificationRepo{keys: make(map[dedupKey]time.Time)}
}

func inScope(n *model.Notification, storeID uuid.UUID, userID *uuid.UUID) bool {
	if n.StoreID != storeID {
		return false
	}
	return userID == nil || n.UserID == nil || *n.UserID == *userID
}

func sameProduct(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *stubNotificationRepo) ExistsSimilar(_ context.Context, storeID uuid.UUID, productID *uuid.UUID, typ model.NotificationType, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.StoreID == storeID && n.Type == typ && sameProduct(n.ProductID, productID) && n.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubNotificationRepo) CreateIfNoSimilar(_ context.Context, n *model.Notification, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := dedupKey{store: n.StoreID, typ: n.Type}
	if n.ProductID != nil {
		k.product = *n.ProductID
	}
	if last, ok := r.keys[k]; ok && last.After(n.CreatedAt.Add(-window)) {
		return false, nil
	}
	r.keys[k] = n.CreatedAt
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	cp := *n
	r.rows = append(r.rows, &cp)
	return true, nil
}

func (r *stubNotificationRepo) find(storeID, id uuid.UUID) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.ID == id && n.StoreID == storeID {
			cp := *n
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubNotificationRepo) ListUnread(_ context.Context, storeID uuid.UUID, userID *uuid.UUID, now time.Time, limit int) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.rows {
		if inScope(n, storeID, userID) && n.Visible(now) {
			out = append(out, *n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PriorityRank != out[j].PriorityRank {
			return out[i].PriorityRank < out[j].PriorityRank
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubNotificationRepo) CountUnread(ctx context.Context, storeID uuid.UUID, userID *uuid.UUID, now time.Time) (int64, error) {
	out, err := r.ListUnread(ctx, storeID, userID, now, 1<<30)
	return int64(len(out)), err
}

func (r *stubNotificationRepo) update(storeID uuid.UUID, userID *uuid.UUID, id uuid.UUID, apply func(*model.Notification)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.ID == id && inScope(n, storeID, userID) {
			apply(n)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubNotificationRepo) MarkAsRead(_ context.Context, storeID uuid.UUID, userID *uuid.UUID, id uuid.UUID) error {
	return r.update(storeID, userID, id, func(n *model.Notification) { n.Read = true })
}

func (r *stubNotificationRepo) Dismiss(_ context.Context, storeID uuid.UUID, userID *uuid.UUID, id uuid.UUID) error {
	return r.update(storeID, userID, id, func(n *model.Notification) { n.Dismissed = true })
}

func (r *stubNotificationRepo) MarkAllAsRead(_ context.Context, storeID uuid.UUID, userID *uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.rows {
		if inScope(n, storeID, userID) && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

func (r *stubNotificationRepo) MarkProductAsRead(_ context.Context, storeID, productID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.rows {
		if n.StoreID == storeID && n.ProductID != nil && *n.ProductID == productID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

func (r *stubNotificationRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	var deleted int64
	for _, n := range r.rows {
		if n.ExpiresAt.After(now) {
			kept = append(kept, n)
		} else {
			deleted++
		}
	}
	r.rows = kept
	return deleted, nil
}

func (r *stubNotificationRepo) byType(storeID uuid.UUID, typ model.NotificationType) []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.rows {
		if n.StoreID == storeID && n.Type == typ {
			out = append(out, *n)
		}
	}
	return out
}

// ── alert settings ───────────────────────────────────────────────────────────

type stubSettingsRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.AlertSettings
}

func newStubSettingsRepo() *stubSettingsRepo {
	return &stubSettingsRepo{rows: make(map[uuid.UUID]*model.AlertSettings)}
}

func (r *stubSettingsRepo) FindByStore(_ context.Context, storeID uuid.UUID) (*model.AlertSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[storeID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *stubSettingsRepo) Upsert(_ context.Context, s *model.AlertSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.rows[s.StoreID]; ok {
		s.ID = prev.ID
	} else if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	r.rows[s.StoreID] = &cp
	return nil
}

// ── publisher ────────────────────────────────────────────────────────────────

type published struct {
	StoreID uuid.UUID
	Event   string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(storeID uuid.UUID, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{StoreID: storeID, Event: event, Payload: payload})
}

func (p *recordingPublisher) named(event string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// ── wiring ───────────────────────────────────────────────────────────────────

type testEnv struct {
	clock        *fakeClock
	products     *stubProductRepo
	sales        *stubSaleRepo
	predictions  *stubPredictionRepo
	notifRepo    *stubNotificationRepo
	settingsRepo *stubSettingsRepo
	pub          *recordingPublisher

	settings      AlertSettingsService
	insights      *insightsService
	notifications *notificationService
	svc           *predictionService
}

func newTestEnv(t *testing.T, opts PredictionOptions) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:        newFakeClock(),
		products:     newStubProductRepo(),
		predictions:  newStubPredictionRepo(),
		notifRepo:    newStubNotificationRepo(),
		settingsRepo: newStubSettingsRepo(),
		pub:          &recordingPublisher{},
	}
	env.sales = newStubSaleRepo(env.products)

	store := cache.NewMemoryStore().WithClock(env.clock.Now)
	loader := cache.NewLoader(store, 30*time.Second).WithClock(env.clock.Now)

	env.settings = NewAlertSettingsService(env.settingsRepo, 0)
	env.insights = NewInsightsService(env.predictions, env.sales, loader, env.pub).(*insightsService)
	env.insights.now = env.clock.Now
	env.notifications = NewNotificationService(env.notifRepo, env.products, env.settings, env.pub).(*notificationService)
	env.notifications.now = env.clock.Now
	env.svc = NewPredictionService(env.products, env.sales, env.predictions, env.insights, env.notifications, env.pub, opts).(*predictionService)
	env.svc.now = env.clock.Now
	return env
}

// seedProduct adds a non-perishable product holding stock units.
func (e *testEnv) seedProduct(storeID uuid.UUID, name, category string, stock int) *model.Product {
	p := &model.Product{
		StoreID:       storeID,
		Name:          name,
		Barcode:       name,
		Category:      category,
		TotalQuantity: stock,
	}
	e.products.add(p)
	return p
}

// seedSales records n sales of qty units, one every interval, newest at now.
func (e *testEnv) seedSales(p *model.Product, n, qty int, every time.Duration) {
	now := e.clock.Now()
	for i := 0; i < n; i++ {
		e.sales.add(model.Sale{
			StoreID:      p.StoreID,
			ProductID:    p.ID,
			QuantitySold: qty,
			PriceAtSale:  decimal.NewFromFloat(2.5),
			SaleDate:     now.Add(-time.Duration(i) * every),
		})
	}
}
