package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/jobs"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
	httpsvc "github.com/vladislavdragonenkov/crm/internal/service/http"
	"github.com/vladislavdragonenkov/crm/internal/service/outbox"
	"github.com/vladislavdragonenkov/crm/internal/storage/memory"
)

// collectingPublisher запоминает опубликованные события.
type collectingPublisher struct {
	mu     sync.Mutex
	events []domain.OutboxMessage
}

func (p *collectingPublisher) Publish(event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *collectingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType
	}
	return out
}

// CRMLifecycleTestSuite проходит путь от создания клиентов до фоновых задач.
type CRMLifecycleTestSuite struct {
	suite.Suite
	logger *log.Entry
	store  *memory.Store
	svc    *crm.Service
	server *httptest.Server
	dir    string
}

func (s *CRMLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	s.logger = baseLogger.WithField("component", "integration-test")

	s.store = memory.NewStore()
	s.svc = crm.NewService(s.store.Repositories(), s.store, s.logger, crm.WithEvents(true))
	s.server = httptest.NewServer(httpsvc.NewRouter(s.svc, s.logger))
	s.dir = s.T().TempDir()
}

func (s *CRMLifecycleTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *CRMLifecycleTestSuite) post(path string, body any, out any) int {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)

	resp, err := s.server.Client().Post(s.server.URL+"/api"+path, "application/json", bytes.NewReader(payload))
	s.Require().NoError(err)
	defer resp.Body.Close()

	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *CRMLifecycleTestSuite) get(path string, out any) int {
	resp, err := s.server.Client().Get(s.server.URL + "/api" + path)
	s.Require().NoError(err)
	defer resp.Body.Close()

	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type idResponse struct {
	ID          string `json:"id"`
	Stock       int    `json:"stock"`
	TotalAmount string `json:"total_amount"`
}

func (s *CRMLifecycleTestSuite) createCustomer(name, email string) string {
	var resp struct {
		Customer idResponse `json:"customer"`
		Message  string     `json:"message"`
	}
	code := s.post("/customers", map[string]string{"name": name, "email": email}, &resp)
	s.Require().Equal(http.StatusCreated, code)
	s.Require().Equal(crm.CustomerCreatedMessage, resp.Message)
	return resp.Customer.ID
}

func (s *CRMLifecycleTestSuite) createProduct(name, price string, stock int) string {
	var resp struct {
		Product idResponse `json:"product"`
	}
	code := s.post("/products", map[string]any{"name": name, "price": price, "stock": stock}, &resp)
	s.Require().Equal(http.StatusCreated, code)
	return resp.Product.ID
}

func (s *CRMLifecycleTestSuite) TestOrderLifecycle() {
	customerID := s.createCustomer("John Doe", "john.doe@example.com")
	laptop := s.createProduct("Laptop", "1200.00", 15)
	mouse := s.createProduct("Mouse", "25.00", 3)

	var created struct {
		Order idResponse `json:"order"`
	}
	code := s.post("/orders", map[string]any{
		"customer_id": customerID,
		"product_ids": []string{laptop, mouse},
	}, &created)
	s.Require().Equal(http.StatusCreated, code)
	s.Require().Equal("1225.00", created.Order.TotalAmount)

	var fetched idResponse
	s.Require().Equal(http.StatusOK, s.get("/orders/"+created.Order.ID, &fetched))
	s.Require().Equal("1225.00", fetched.TotalAmount)

	// Заказ не уменьшает остатки.
	var product idResponse
	s.Require().Equal(http.StatusOK, s.get("/products/"+mouse, &product))
	s.Require().Equal(3, product.Stock)

	var restock struct {
		Count   int    `json:"count"`
		Message string `json:"message"`
	}
	s.Require().Equal(http.StatusOK, s.post("/products/restock-low-stock", struct{}{}, &restock))
	s.Require().Equal(1, restock.Count)
	s.Require().Equal("Successfully updated 1 low-stock products", restock.Message)

	s.Require().Equal(http.StatusOK, s.get("/products/"+mouse, &product))
	s.Require().Equal(13, product.Stock)
}

func (s *CRMLifecycleTestSuite) TestOrderRejectedWithoutSideEffects() {
	customerID := s.createCustomer("Jane Smith", "jane.smith@example.com")
	keyboard := s.createProduct("Keyboard", "75.00", 50)

	var errResp struct {
		Error string `json:"error"`
	}
	code := s.post("/orders", map[string]any{
		"customer_id": customerID,
		"product_ids": []string{keyboard, "missing-product"},
	}, &errResp)
	s.Require().Equal(http.StatusBadRequest, code)
	s.Require().NotEmpty(errResp.Error)

	code = s.post("/orders", map[string]any{"customer_id": customerID, "product_ids": []string{}}, &errResp)
	s.Require().Equal(http.StatusBadRequest, code)

	stats, err := s.svc.ReportStats(context.Background())
	s.Require().NoError(err)
	s.Require().Zero(stats.Orders)
}

func (s *CRMLifecycleTestSuite) TestBulkCreatePartialFailure() {
	s.createCustomer("Existing", "existing@example.com")

	var resp struct {
		Customers []idResponse `json:"customers"`
		Errors    []string     `json:"errors"`
	}
	code := s.post("/customers/bulk", map[string]any{
		"customers": []map[string]string{
			{"name": "Alice", "email": "alice@example.com"},
			{"name": "Dup", "email": "existing@example.com"},
			{"name": "Bad", "email": "not-an-email"},
			{"name": "Bob", "email": "bob@example.com", "phone": "123-456-7890"},
		},
	}, &resp)
	s.Require().Equal(http.StatusOK, code)
	s.Require().Len(resp.Customers, 2)
	s.Require().Len(resp.Errors, 2)
	s.Require().True(strings.HasPrefix(resp.Errors[0], "Record 2:"), resp.Errors[0])
	s.Require().True(strings.HasPrefix(resp.Errors[1], "Record 3:"), resp.Errors[1])

	stats, err := s.svc.ReportStats(context.Background())
	s.Require().NoError(err)
	s.Require().Equal(3, stats.Customers)
}

func (s *CRMLifecycleTestSuite) TestEventsReachPublisher() {
	customerID := s.createCustomer("John Doe", "john.doe@example.com")
	productID := s.createProduct("Mouse", "25.00", 1)
	s.Require().Equal(http.StatusCreated, s.post("/orders", map[string]any{
		"customer_id": customerID,
		"product_ids": []string{productID},
	}, nil))
	s.Require().Equal(http.StatusOK, s.post("/products/restock-low-stock", struct{}{}, nil))

	publisher := &collectingPublisher{}
	worker := outbox.NewWorker(s.store.Repositories().Outbox, publisher,
		outbox.WithLogger(s.logger),
		outbox.WithRetryBaseDelay(0),
	)
	s.Require().Equal(4, worker.ProcessOnce(context.Background()))
	s.Require().ElementsMatch([]string{
		domain.EventCustomerCreated,
		domain.EventProductCreated,
		domain.EventOrderCreated,
		domain.EventProductRestocked,
	}, publisher.types())

	s.Require().Zero(worker.ProcessOnce(context.Background()))
}

func (s *CRMLifecycleTestSuite) TestScheduledJobsWriteAuditLogs() {
	ctx := context.Background()
	customerID := s.createCustomer("John Doe", "john.doe@example.com")
	productID := s.createProduct("Laptop", "1200.00", 5)
	var created struct {
		Order idResponse `json:"order"`
	}
	s.Require().Equal(http.StatusCreated, s.post("/orders", map[string]any{
		"customer_id": customerID,
		"product_ids": []string{productID},
	}, &created))

	now := func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	runner := jobs.NewRunner(jobs.WithLocker(jobs.NewLocalLocker()), jobs.WithRunnerLogger(s.logger))

	paths := map[string]string{
		jobs.JobLowStock:  filepath.Join(s.dir, "low_stock.txt"),
		jobs.JobReport:    filepath.Join(s.dir, "report.txt"),
		jobs.JobReminders: filepath.Join(s.dir, "reminders.txt"),
	}
	for _, job := range []jobs.Job{
		jobs.NewLowStock(jobs.NewFileAuditLog(paths[jobs.JobLowStock]), s.svc, now),
		jobs.NewReport(jobs.NewFileAuditLog(paths[jobs.JobReport]), s.svc, now),
		jobs.NewReminders(jobs.NewFileAuditLog(paths[jobs.JobReminders]), s.svc, now),
	} {
		s.Require().NoError(runner.Run(ctx, job), job.Name())
	}

	read := func(name string) string {
		raw, err := os.ReadFile(paths[name])
		s.Require().NoError(err)
		return string(raw)
	}
	s.Require().Contains(read(jobs.JobLowStock), "[2026-03-02 09:00:00] Updated product: Laptop, new stock: 15")
	s.Require().Contains(read(jobs.JobReport), "Report: 1 customers, 1 orders, $1200.00 revenue")
	s.Require().Contains(read(jobs.JobReminders), "Order ID: "+created.Order.ID+", Customer Email: john.doe@example.com")
}

func TestCRMLifecycleSuite(t *testing.T) {
	suite.Run(t, new(CRMLifecycleTestSuite))
}

func TestHello(t *testing.T) {
	store := memory.NewStore()
	svc := crm.NewService(store.Repositories(), store, nil)
	srv := httptest.NewServer(httpsvc.NewRouter(svc, nil))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/hello")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, crm.HelloMessage, body["hello"])
}
