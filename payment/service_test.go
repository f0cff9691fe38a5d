package payment

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"checkout-svc/cart"
	"checkout-svc/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "rzp_secret"

type memStore struct {
	mu       sync.Mutex
	orders   map[string]models.Order
	creates  int
	createFn func(o *models.Order) error
}

func newMemStore() *memStore {
	return &memStore{orders: map[string]models.Order{}}
}

func (m *memStore) Create(ctx context.Context, o *models.Order) error {
	if m.createFn != nil {
		if err := m.createFn(o); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	m.orders[o.ID] = *o
	m.creates++
	return nil
}

func (m *memStore) FindForUser(ctx context.Context, id string, userID int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.UserID != userID {
		return nil, models.ErrOrderNotFound
	}
	return &o, nil
}

func (m *memStore) MarkPaid(ctx context.Context, id string, userID int64, paymentID, signature string, paidAt time.Time) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.UserID != userID || o.PaymentStatus != models.PaymentStatusCreated {
		return nil, models.ErrStatusConflict
	}
	o.PaymentStatus = models.PaymentStatusPaid
	o.OrderStatus = models.OrderStatusConfirmed
	o.ProviderPaymentID = paymentID
	o.ProviderSignature = signature
	o.PaidAt = &paidAt
	m.orders[id] = o
	return &o, nil
}

func (m *memStore) MarkFailed(ctx context.Context, id string, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.UserID != userID || o.PaymentStatus != models.PaymentStatusCreated {
		return models.ErrStatusConflict
	}
	o.PaymentStatus = models.PaymentStatusFailed
	m.orders[id] = o
	return nil
}

func (m *memStore) get(id string) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

type fakeProvider struct {
	calls int
	last  SessionRequest
	err   error
	// reply, when set, rewrites the echoed session.
	reply func(*Session)
}

func (p *fakeProvider) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	p.calls++
	p.last = req
	if p.err != nil {
		return nil, p.err
	}
	session := &Session{ID: "order_P1", Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}
	if p.reply != nil {
		p.reply(session)
	}
	return session, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PaymentEvent
}

func (p *recordingPublisher) PublishPaymentEvent(ctx context.Context, e models.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType
	}
	return out
}

type fixture struct {
	svc       *Service
	store     *memStore
	provider  *fakeProvider
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{store: newMemStore(), provider: &fakeProvider{}, publisher: &recordingPublisher{}}
	f.svc = NewService(f.store, f.provider, f.publisher, Config{
		KeyID:     "rzp_test_key",
		KeySecret: testSecret,
		Rules:     cart.DefaultRules(),
	}, zaptest.NewLogger(t))
	return f
}

func chairRequest(t *testing.T, total string) models.CreatePaymentRequest {
	t.Helper()
	var req models.CreatePaymentRequest
	body := `{"customerInfo":{"name":"Asha","email":"asha@example.com","phone":"98765","address":"12 MG Road"},
		"items":[{"productId":"p1","productName":"Chair","price":100,"quantity":2}],
		"subtotal":200,"shipping":50,"total":` + total + `}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return req
}

func (f *fixture) createChairOrder(t *testing.T, userID int64) *models.PaymentSession {
	t.Helper()
	session, err := f.svc.CreateOrder(context.Background(), userID, chairRequest(t, "250"))
	require.NoError(t, err)
	return session
}

func TestCreateOrderPersistsCreatedOrder(t *testing.T) {
	f := newFixture(t)

	session := f.createChairOrder(t, 42)

	assert.Equal(t, int64(25000), session.Amount)
	assert.Equal(t, "INR", session.Currency)
	assert.Equal(t, "order_P1", session.ProviderOrderID)
	assert.Equal(t, "rzp_test_key", session.ProviderKeyID)
	assert.Regexp(t, `^FUR-\d+-\d{4}$`, session.Receipt)
	assert.Equal(t, "42", f.provider.last.Notes["userId"])

	stored := f.store.get(session.AppOrderID)
	assert.Equal(t, models.PaymentStatusCreated, stored.PaymentStatus)
	assert.Equal(t, models.OrderStatusCreated, stored.OrderStatus)
	assert.Equal(t, "order_P1", stored.ProviderOrderID)
	assert.Equal(t, session.Receipt, stored.Receipt)
	assert.Equal(t, 1, f.store.creates)
	assert.Equal(t, []string{models.EventOrderCreated}, f.publisher.types())
}

func TestCreateOrderRejectsZeroTotalBeforeProvider(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), 42, chairRequest(t, "0"))

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, f.provider.calls)
	assert.Equal(t, 0, f.store.creates)
}

func TestCreateOrderProviderFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.provider.err = &models.ProviderError{StatusCode: 400, Message: "Authentication failed"}

	_, err := f.svc.CreateOrder(context.Background(), 42, chairRequest(t, "250"))

	var perr *models.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Authentication failed", perr.Message)
	assert.Equal(t, 0, f.store.creates)
	assert.Empty(t, f.publisher.types())
}

func TestCreateOrderRejectsMismatchedSession(t *testing.T) {
	tests := []struct {
		name  string
		reply func(*Session)
	}{
		{"different amount", func(s *Session) { s.Amount = 100 }},
		{"zero amount", func(s *Session) { s.Amount = 0 }},
		{"different currency", func(s *Session) { s.Currency = "USD" }},
		{"missing id", func(s *Session) { s.ID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.provider.reply = tt.reply

			session, err := f.svc.CreateOrder(context.Background(), 42, chairRequest(t, "250"))

			assert.Nil(t, session)
			var perr *models.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "Malformed response from payment provider.", perr.Message)
			assert.Equal(t, 1, f.provider.calls)
			assert.Equal(t, 0, f.store.creates)
			assert.Empty(t, f.publisher.types())
		})
	}
}

func TestCreateOrderAcceptsLowercaseCurrency(t *testing.T) {
	f := newFixture(t)
	f.provider.reply = func(s *Session) { s.Currency = "inr" }

	session, err := f.svc.CreateOrder(context.Background(), 42, chairRequest(t, "250"))

	require.NoError(t, err)
	assert.Equal(t, int64(25000), session.Amount)
	assert.Equal(t, 1, f.store.creates)
}

func TestCreateOrderWrapsUnknownProviderErrors(t *testing.T) {
	f := newFixture(t)
	f.provider.err = errors.New("dial tcp: connection refused")

	_, err := f.svc.CreateOrder(context.Background(), 42, chairRequest(t, "250"))

	var perr *models.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 0, f.store.creates)
}

func TestCreateOrderRequiresConfiguration(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.KeySecret = ""

	_, err := f.svc.CreateOrder(context.Background(), 42, chairRequest(t, "250"))
	assert.ErrorIs(t, err, models.ErrNotConfigured)
	assert.Equal(t, 0, f.provider.calls)
}

func validCallback(appOrderID string) models.VerifyPaymentRequest {
	return models.VerifyPaymentRequest{
		AppOrderID:        appOrderID,
		ProviderOrderID:   "order_P1",
		ProviderPaymentID: "pay_1",
		ProviderSignature: Sign(testSecret, "order_P1", "pay_1"),
	}
}

func TestVerifyPaymentMarksPaid(t *testing.T) {
	f := newFixture(t)
	session := f.createChairOrder(t, 42)

	res, err := f.svc.VerifyPayment(context.Background(), 42, validCallback(session.AppOrderID))
	require.NoError(t, err)
	assert.False(t, res.AlreadyVerified)
	assert.Equal(t, models.PaymentStatusPaid, res.Order.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, res.Order.OrderStatus)
	assert.Equal(t, "pay_1", res.Order.ProviderPaymentID)
	require.NotNil(t, res.Order.PaidAt)
	assert.Equal(t, []string{models.EventOrderCreated, models.EventPaymentSuccess}, f.publisher.types())
}

func TestVerifyPaymentAcceptsProviderFieldNames(t *testing.T) {
	f := newFixture(t)
	session := f.createChairOrder(t, 42)

	res, err := f.svc.VerifyPayment(context.Background(), 42, models.VerifyPaymentRequest{
		AppOrderID:        session.AppOrderID,
		RazorpayOrderID:   "order_P1",
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: Sign(testSecret, "order_P1", "pay_1"),
	})
	require.NoError(t, err)
	assert.True(t, res.Order.IsPaid())
}

func TestVerifyPaymentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	session := f.createChairOrder(t, 42)

	first, err := f.svc.VerifyPayment(context.Background(), 42, validCallback(session.AppOrderID))
	require.NoError(t, err)
	paidAt := *first.Order.PaidAt

	f.svc.now = func() time.Time { return paidAt.Add(time.Hour) }
	second, err := f.svc.VerifyPayment(context.Background(), 42, validCallback(session.AppOrderID))
	require.NoError(t, err)
	assert.True(t, second.AlreadyVerified)
	assert.True(t, second.Order.PaidAt.Equal(paidAt))
	assert.True(t, f.store.get(session.AppOrderID).PaidAt.Equal(paidAt))
	assert.Equal(t, []string{models.EventOrderCreated, models.EventPaymentSuccess}, f.publisher.types())
}

func TestVerifyPaymentNeverRegressesPaid(t *testing.T) {
	f := newFixture(t)
	session := f.createChairOrder(t, 42)
	_, err := f.svc.VerifyPayment(context.Background(), 42, validCallback(session.AppOrderID))
	require.NoError(t, err)

	bad := validCallback(session.AppOrderID)
	bad.ProviderSignature = "deadbeef"
	res, err := f.svc.VerifyPayment(context.Background(), 42, bad)
	require.NoError(t, err)
	assert.True(t, res.AlreadyVerified)

	mismatch := validCallback(session.AppOrderID)
	mismatch.ProviderOrderID = "order_OTHER"
	_, err = f.svc.VerifyPayment(context.Background(), 42, mismatch)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPaid, f.store.get(session.AppOrderID).PaymentStatus)
}

func TestVerifyPaymentInvalidSignatureFailsTerminally(t *testing.T) {
	f := newFixture(t)
	session := f.createChairOrder(t, 42)

	bad := validCallback(session.AppOrderID)
	sig := []byte(bad.ProviderSignature)
	if sig[0] == '0' {
		sig[0] = '1'
	} else {
		sig[0] = '0'
	}
	bad.ProviderSignature = string(sig)

	_, err := f.svc.VerifyPayment(context.Background(), 42, bad)
	assert.ErrorIs(t, err, models.ErrInvalidSignature)
	assert.Equal(t, models.PaymentStatusFailed, f.store.get(session.AppOrderID).PaymentStatus)

	_, err = f.svc.VerifyPayment(context.Background(), 42, validCallback(session.AppOrderID))
	assert.ErrorIs(t, err, models.ErrPaymentFailed)
	assert.Equal(t, models.PaymentStatusFailed, f.store.get(session.AppOrderID).PaymentStatus)
	assert.Equal(t, []string{models.EventOrderCreated, models.EventPaymentFailed}, f.publisher.types())
}

func TestVerifyPaymentOrderMismatch(t *testing.T) {
	f := newFixture(t)
	session := f.createChairOrder(t, 42)

	req := validCallback(session.AppOrderID)
	req.ProviderOrderID = "order_P2"
	req.ProviderSignature = Sign(testSecret, "order_P2", "pay_1")

	_, err := f.svc.VerifyPayment(context.Background(), 42, req)
	assert.ErrorIs(t, err, models.ErrOrderMismatch)
	assert.Equal(t, models.PaymentStatusCreated, f.store.get(session.AppOrderID).PaymentStatus)
}

func TestVerifyPaymentOwnershipIsolation(t *testing.T) {
	f := newFixture(t)
	session := f.createChairOrder(t, 42)

	_, err := f.svc.VerifyPayment(context.Background(), 99, validCallback(session.AppOrderID))
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
	assert.Equal(t, models.PaymentStatusCreated, f.store.get(session.AppOrderID).PaymentStatus)
}

func TestVerifyPaymentIncompletePayload(t *testing.T) {
	f := newFixture(t)
	req := validCallback("some-id")
	req.ProviderPaymentID = "  "

	_, err := f.svc.VerifyPayment(context.Background(), 42, req)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgIncompletePayload, verr.Message)
}

func TestVerifyPaymentConcurrentCallbacksPayOnce(t *testing.T) {
	f := newFixture(t)
	session := f.createChairOrder(t, 42)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.VerifyPayment(context.Background(), 42, validCallback(session.AppOrderID))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	success := 0
	for _, typ := range f.publisher.types() {
		if typ == models.EventPaymentSuccess {
			success++
		}
	}
	assert.Equal(t, 1, success)
}
