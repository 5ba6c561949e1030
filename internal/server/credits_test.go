package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/reelforge/reelforge/internal/clock"
	"github.com/reelforge/reelforge/internal/config"
	creditdomain "github.com/reelforge/reelforge/internal/credit/domain"
	creditrepository "github.com/reelforge/reelforge/internal/credit/repository"
	creditservice "github.com/reelforge/reelforge/internal/credit/service"
	"github.com/reelforge/reelforge/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *clock.FakeClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&creditdomain.CreditAccount{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	svc := creditservice.NewService(creditservice.ServiceParam{
		Config: config.Config{SignupCredits: 100},
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   creditrepository.New(dbConn),
		Clock:  clk,
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := &Server{
		engine:    engine,
		creditSvc: svc,
	}
	srv.registerCreditRoutes()

	return srv, clk
}

func doRequest(t *testing.T, srv *Server, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()

	var buf *bytes.Buffer
	if body == "" {
		buf = bytes.NewBuffer(nil)
	} else {
		buf = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(HeaderUser, userID)
	}
	resp := httptest.NewRecorder()
	srv.engine.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error
}

func TestGetCreditsCreatesAccount(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, srv, http.MethodGet, "/credits", "user-1", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var account creditdomain.CreditAccount
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &account))
	assert.Equal(t, "user-1", account.UserID)
	assert.Equal(t, int64(100), account.Balance)
	assert.Equal(t, creditdomain.PlanFree, account.Plan)
}

func TestCreditsRequireUserHeader(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/credits"},
		{http.MethodGet, "/credits/stats"},
		{http.MethodPost, "/credits/deduct"},
		{http.MethodPost, "/credits/add"},
		{http.MethodPut, "/credits/plan"},
		{http.MethodPost, "/credits/cancel"},
	} {
		resp := doRequest(t, srv, route.method, route.path, "", "{}")
		assert.Equal(t, http.StatusUnauthorized, resp.Code, route.path)
		assert.Equal(t, "unauthorized", decodeError(t, resp).Type, route.path)
	}
}

func TestDeductHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, srv, http.MethodGet, "/credits", "user-1", "")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(t, srv, http.MethodPost, "/credits/deduct", "user-1", `{"amount":30}`)
	require.Equal(t, http.StatusOK, resp.Code)

	var account creditdomain.CreditAccount
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &account))
	assert.Equal(t, int64(70), account.Balance)
	assert.Equal(t, int64(1), account.TotalGenerations)
}

func TestDeductHandlerDefaultsToOneCredit(t *testing.T) {
	srv, _ := newTestServer(t)

	doRequest(t, srv, http.MethodGet, "/credits", "user-1", "")

	resp := doRequest(t, srv, http.MethodPost, "/credits/deduct", "user-1", `{}`)
	require.Equal(t, http.StatusOK, resp.Code)

	var account creditdomain.CreditAccount
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &account))
	assert.Equal(t, int64(99), account.Balance)
}

func TestDeductHandlerInvalidAmount(t *testing.T) {
	srv, _ := newTestServer(t)

	doRequest(t, srv, http.MethodGet, "/credits", "user-1", "")

	resp := doRequest(t, srv, http.MethodPost, "/credits/deduct", "user-1", `{"amount":0}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_amount", payload.Errors[0].Code)

	resp = doRequest(t, srv, http.MethodPost, "/credits/deduct", "user-1", `not json`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDeductHandlerInsufficient(t *testing.T) {
	srv, _ := newTestServer(t)

	doRequest(t, srv, http.MethodGet, "/credits", "user-1", "")

	resp := doRequest(t, srv, http.MethodPost, "/credits/deduct", "user-1", `{"amount":1000}`)
	require.Equal(t, http.StatusForbidden, resp.Code)
	payload := decodeError(t, resp)
	assert.Equal(t, "insufficient_credits", payload.Type)
	assert.Equal(t, "insufficient", payload.Kind)
}

func TestDeductHandlerDailyLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	doRequest(t, srv, http.MethodGet, "/credits", "user-1", "")
	resp := doRequest(t, srv, http.MethodPut, "/credits/plan", "user-1", `{"plan":"daily","dailyLimit":1}`)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(t, srv, http.MethodPost, "/credits/deduct", "user-1", `{"amount":1}`)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(t, srv, http.MethodPost, "/credits/deduct", "user-1", `{"amount":1}`)
	require.Equal(t, http.StatusForbidden, resp.Code)
	payload := decodeError(t, resp)
	assert.Equal(t, "limit_exceeded", payload.Type)
	assert.Equal(t, "daily", payload.Kind)
}

func TestDeductHandlerUnknownUser(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/credits/deduct", "ghost", `{"amount":1}`)
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "not_found", decodeError(t, resp).Type)
}

func TestAddCreditsHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	doRequest(t, srv, http.MethodGet, "/credits", "user-1", "")

	resp := doRequest(t, srv, http.MethodPost, "/credits/add", "user-1", `{"amount":50,"isBonus":true}`)
	require.Equal(t, http.StatusOK, resp.Code)

	var account creditdomain.CreditAccount
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &account))
	assert.Equal(t, int64(50), account.BonusCredits)
	assert.Equal(t, int64(100), account.Balance)
}

func TestUpdatePlanHandlerInvalidPlan(t *testing.T) {
	srv, _ := newTestServer(t)

	doRequest(t, srv, http.MethodGet, "/credits", "user-1", "")

	resp := doRequest(t, srv, http.MethodPut, "/credits/plan", "user-1", `{"plan":"gold"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_plan", payload.Errors[0].Code)
}

func TestCancelSubscriptionHandler(t *testing.T) {
	srv, clk := newTestServer(t)

	doRequest(t, srv, http.MethodGet, "/credits", "user-1", "")
	expires := clk.Now().Add(48 * time.Hour).Format(time.RFC3339)
	resp := doRequest(t, srv, http.MethodPut, "/credits/plan", "user-1",
		`{"plan":"monthly","subscriptionStatus":"active","subscriptionExpiresAt":"`+expires+`"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(t, srv, http.MethodPost, "/credits/cancel", "user-1", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var account creditdomain.CreditAccount
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &account))
	require.NotNil(t, account.SubscriptionStatus)
	assert.Equal(t, creditdomain.SubscriptionStatusCanceled, *account.SubscriptionStatus)
	assert.Equal(t, creditdomain.PlanMonthly, account.Plan)
}

func TestStatsHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	doRequest(t, srv, http.MethodGet, "/credits", "user-1", "")
	doRequest(t, srv, http.MethodPost, "/credits/deduct", "user-1", `{"amount":5}`)

	resp := doRequest(t, srv, http.MethodGet, "/credits/stats", "user-1", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var stats creditdomain.UsageStats
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stats))
	assert.Equal(t, int64(95), stats.TotalCredits)
	assert.Equal(t, int64(5), stats.TotalCreditsUsed)
	assert.Equal(t, int64(1), stats.TotalGenerations)
}
