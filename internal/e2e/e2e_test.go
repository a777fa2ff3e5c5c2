package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/nextlevelcode/meterbill/internal/billing"
	"github.com/nextlevelcode/meterbill/internal/catalog"
	"github.com/nextlevelcode/meterbill/internal/client"
	"github.com/nextlevelcode/meterbill/internal/clock"
	"github.com/nextlevelcode/meterbill/internal/config"
	"github.com/nextlevelcode/meterbill/internal/ledger"
	"github.com/nextlevelcode/meterbill/internal/logger"
	"github.com/nextlevelcode/meterbill/internal/migration"
	emailprovider "github.com/nextlevelcode/meterbill/internal/providers/email"
	pdfprovider "github.com/nextlevelcode/meterbill/internal/providers/pdf"
	"github.com/nextlevelcode/meterbill/internal/ratelimit"
	"github.com/nextlevelcode/meterbill/internal/server"
	"github.com/nextlevelcode/meterbill/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const adminKey = "e2e-admin-key"

type testEnv struct {
	app     *fx.App
	db      *gorm.DB
	baseURL string
	httpSrv *httptest.Server
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	var err error
	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		os.Exit(1)
	}

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func startEnv() (*testEnv, error) {
	receiptsDir, err := os.MkdirTemp("", "meterbill-e2e-receipts")
	if err != nil {
		return nil, err
	}

	keySum := sha256.Sum256([]byte(adminKey))
	cfg := config.Config{
		AppName:      "meterbill",
		Environment:  "test",
		LogLevel:     "error",
		DBType:       "sqlite",
		DBName:       "file:meterbill-e2e?mode=memory&cache=shared",
		SMTPHost:     "127.0.0.1",
		SMTPPort:     1,
		SMTPFrom:     "billing@example.com",
		BaseURL:      "http://localhost:8080",
		PayBaseURL:   "https://pay.example.com",
		ReceiptsDir:  receiptsDir,
		AdminEmail:   "admin@example.com",
		AdminKeyHash: hex.EncodeToString(keySum[:]),
		CompanyName:  "MeterBill",
		InvoiceTime:  "08:00",
	}

	var (
		srv    *server.Server
		dbConn *gorm.DB
	)

	app := fx.New(
		fx.NopLogger,
		fx.Provide(func() config.Config { return cfg }),
		fx.Provide(func() *config.BillingConfigHolder {
			return config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
		}),
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		logger.Module,
		db.Module,
		clock.Module,
		migration.Module,
		client.Module,
		catalog.Module,
		ledger.Module,
		emailprovider.Module,
		pdfprovider.Module,
		billing.Module,
		ratelimit.Module,
		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Populate(&srv, &dbConn),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	httpSrv := httptest.NewServer(srv.Engine())

	return &testEnv{
		app:     app,
		db:      dbConn,
		baseURL: httpSrv.URL,
		httpSrv: httpSrv,
	}, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		_ = e.app.Stop(context.Background())
	}
}

func resetDatabase(t *testing.T, dbConn *gorm.DB) {
	t.Helper()
	for _, table := range []string{"billings", "usage_records", "upload_records", "api_keys", "clients", "model_prices"} {
		if err := dbConn.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("clear table %s: %v", table, err)
		}
	}
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Key": adminKey}
}

func bearerHeaders(key string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + key}
}

func doJSON(t *testing.T, method, url string, payload any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func decodeInto(t *testing.T, data []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("decode response %s: %v", string(data), err)
	}
}

func createClient(t *testing.T, name, email string) string {
	t.Helper()

	resp, body := doJSON(t, http.MethodPost, env.baseURL+"/v1/clients", map[string]any{
		"name":  name,
		"email": email,
	}, adminHeaders())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create client: %d: %s", resp.StatusCode, string(body))
	}

	var created struct {
		ID string `json:"id"`
	}
	decodeInto(t, body, &created)
	if created.ID == "" {
		t.Fatalf("expected client id in %s", string(body))
	}
	return created.ID
}

func createClientKey(t *testing.T, clientID string) string {
	t.Helper()

	resp, body := doJSON(t, http.MethodPost, env.baseURL+"/v1/clients/"+clientID+"/keys", nil, adminHeaders())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create key: %d: %s", resp.StatusCode, string(body))
	}

	var created struct {
		APIKey string `json:"api_key"`
	}
	decodeInto(t, body, &created)
	if created.APIKey == "" {
		t.Fatalf("expected api key in %s", string(body))
	}
	return created.APIKey
}

func createModel(t *testing.T, name, inputPrice, outputPrice string) {
	t.Helper()

	resp, body := doJSON(t, http.MethodPost, env.baseURL+"/v1/models", map[string]any{
		"model_name":   name,
		"token_limit":  128000,
		"input_price":  inputPrice,
		"output_price": outputPrice,
	}, adminHeaders())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create model: %d: %s", resp.StatusCode, string(body))
	}
}

func payHashFor(t *testing.T, clientID string) string {
	t.Helper()

	id, err := snowflake.ParseString(clientID)
	if err != nil {
		t.Fatalf("parse client id: %v", err)
	}

	var row struct {
		PayHash *string
	}
	if err := env.db.Raw(
		`SELECT pay_hash FROM billings WHERE client_id = ? AND status = ? AND pay_hash IS NOT NULL`,
		id, false,
	).Scan(&row).Error; err != nil {
		t.Fatalf("query pay hash: %v", err)
	}
	if row.PayHash == nil || *row.PayHash == "" {
		t.Fatalf("expected a pay hash for client %s", clientID)
	}
	return *row.PayHash
}

func submitReceipt(t *testing.T, payHash string, content []byte) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("receipt", "proof.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, env.baseURL+"/v1/billings/pay/"+payHash, &buf)
	if err != nil {
		t.Fatalf("build receipt request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("submit receipt: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read receipt response: %v", err)
	}
	return resp, data
}

func TestE2E_HealthCheck(t *testing.T) {
	resp, err := http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestE2E_AdminKeyGate(t *testing.T) {
	resetDatabase(t, env.db)

	resp, _ := doJSON(t, http.MethodGet, env.baseURL+"/v1/models", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without admin key, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, env.baseURL+"/v1/models", nil, map[string]string{"X-Admin-Key": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong admin key, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, env.baseURL+"/v1/models", nil, adminHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with admin key, got %d", resp.StatusCode)
	}
}

func TestE2E_APIKeyAuthentication(t *testing.T) {
	resetDatabase(t, env.db)
	createModel(t, "gpt-4o", "0.0025", "0.01")

	clientID := createClient(t, "acme", "acme@example.com")
	apiKey := createClientKey(t, clientID)

	usageReq := map[string]any{
		"model":         "gpt-4o",
		"endpoint":      "/v1/chat/completions",
		"input_tokens":  1200,
		"output_tokens": 300,
	}

	resp, body := doJSON(t, http.MethodPost, env.baseURL+"/v1/usage", usageReq, bearerHeaders(apiKey))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for usage ingest, got %d: %s", resp.StatusCode, string(body))
	}

	resp, _ = doJSON(t, http.MethodPost, env.baseURL+"/v1/usage", usageReq, bearerHeaders("invalid"))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid api key, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, env.baseURL+"/v1/usage", usageReq, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without api key, got %d", resp.StatusCode)
	}
}

func TestE2E_BillingLifecycle(t *testing.T) {
	resetDatabase(t, env.db)
	createModel(t, "gpt-4o", "0.0025", "0.01")
	createModel(t, "text-embedding-3-small", "0.00002", "0")

	clientID := createClient(t, "acme", "acme@example.com")
	apiKey := createClientKey(t, clientID)

	for i := 0; i < 3; i++ {
		resp, body := doJSON(t, http.MethodPost, env.baseURL+"/v1/usage", map[string]any{
			"model":        "gpt-4o",
			"input_tokens": 1000,
		}, bearerHeaders(apiKey))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("usage ingest %d: %d: %s", i, resp.StatusCode, string(body))
		}
	}
	resp, body := doJSON(t, http.MethodPost, env.baseURL+"/v1/uploads", map[string]any{
		"model":            "text-embedding-3-small",
		"embedding_tokens": 50000,
	}, bearerHeaders(apiKey))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload ingest: %d: %s", resp.StatusCode, string(body))
	}

	var summary struct {
		ClientAmount string `json:"client_amount"`
	}
	resp, body = doJSON(t, http.MethodGet, env.baseURL+"/v1/clients/"+clientID+"/summary", nil, adminHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("client summary: %d: %s", resp.StatusCode, string(body))
	}
	decodeInto(t, body, &summary)
	if summary.ClientAmount == "" || summary.ClientAmount == "0" {
		t.Fatalf("expected a non-zero amount, got %q", summary.ClientAmount)
	}

	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/v1/clients/"+clientID+"/billings", map[string]any{
		"due_date": time.Now().UTC().Day(),
	}, adminHeaders())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("issue billing: %d: %s", resp.StatusCode, string(body))
	}

	// Invoicing snapshots the ledger and locks the client out until a
	// payment proof arrives. The invoice email is best effort and is
	// expected to fail here; the cycle must still advance.
	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/v1/clients/"+clientID+"/billings/invoice", nil, adminHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("invoice client: %d: %s", resp.StatusCode, string(body))
	}

	resp, _ = doJSON(t, http.MethodPost, env.baseURL+"/v1/usage", map[string]any{
		"model":        "gpt-4o",
		"input_tokens": 10,
	}, bearerHeaders(apiKey))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for deactivated client, got %d", resp.StatusCode)
	}

	payHash := payHashFor(t, clientID)

	var validation struct {
		Valid bool `json:"valid"`
	}
	resp, body = doJSON(t, http.MethodGet, env.baseURL+"/v1/billings/validate/"+payHash, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("validate hash: %d: %s", resp.StatusCode, string(body))
	}
	decodeInto(t, body, &validation)
	if !validation.Valid {
		t.Fatalf("expected hash to validate")
	}

	resp, body = submitReceipt(t, payHash, []byte("png-bytes"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit receipt: %d: %s", resp.StatusCode, string(body))
	}

	resp, _ = doJSON(t, http.MethodPost, env.baseURL+"/v1/usage", map[string]any{
		"model":        "gpt-4o",
		"input_tokens": 10,
	}, bearerHeaders(apiKey))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected reactivated client to ingest, got %d", resp.StatusCode)
	}

	var paid struct {
		Status bool    `json:"status"`
		PaidAt *string `json:"paid_at"`
	}
	resp, body = doJSON(t, http.MethodGet, env.baseURL+"/v1/billings/verify/"+payHash, nil, adminHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify payment: %d: %s", resp.StatusCode, string(body))
	}
	decodeInto(t, body, &paid)
	if !paid.Status || paid.PaidAt == nil {
		t.Fatalf("expected paid billing, got %s", string(body))
	}

	resp, body = doJSON(t, http.MethodGet, env.baseURL+"/v1/billings/validate/"+payHash, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("validate consumed hash: %d: %s", resp.StatusCode, string(body))
	}
	decodeInto(t, body, &validation)
	if validation.Valid {
		t.Fatalf("expected consumed hash to be invalid")
	}

	resp, _ = doJSON(t, http.MethodGet, env.baseURL+"/v1/billings/verify/"+payHash, nil, adminHeaders())
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second verify, got %d", resp.StatusCode)
	}

	id, err := snowflake.ParseString(clientID)
	if err != nil {
		t.Fatalf("parse client id: %v", err)
	}
	var cycles int64
	if err := env.db.Raw(`SELECT COUNT(*) FROM billings WHERE client_id = ?`, id).Scan(&cycles).Error; err != nil {
		t.Fatalf("count billings: %v", err)
	}
	if cycles != 2 {
		t.Fatalf("expected a successor open cycle, got %d rows", cycles)
	}
}

func TestE2E_InvoiceWithoutOpenCycle(t *testing.T) {
	resetDatabase(t, env.db)
	clientID := createClient(t, "acme", "acme@example.com")

	resp, _ := doJSON(t, http.MethodPost, env.baseURL+"/v1/clients/"+clientID+"/billings/invoice", nil, adminHeaders())
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 without an open cycle, got %d", resp.StatusCode)
	}
}
