package sslcommerz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/studyshare/studyshare-backend/pkg/errors"
	"github.com/studyshare/studyshare-backend/pkg/logger"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &Client{
		http:          resty.New().SetBaseURL(server.URL),
		storeID:       "teststore",
		storePassword: "testpass",
		environment:   sandboxEnv,
		logger:        logger.New(logger.Options{ServiceName: "sslcommerz-test", Level: zerolog.ErrorLevel}),
	}
}

func TestCreateSessionSuccess(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, sessionPath, r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "teststore", r.PostFormValue("store_id"))
		require.Equal(t, "tran-123", r.PostFormValue("tran_id"))
		require.Equal(t, "150.00", r.PostFormValue("total_amount"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"SUCCESS","sessionkey":"sess-1","GatewayPageURL":"https://sandbox.sslcommerz.com/gw/sess-1"}`))
	}))

	resp, err := client.CreateSession(context.Background(), PaymentData{
		TransactionID: "tran-123",
		Amount:        decimal.NewFromInt(150),
		Currency:      "BDT",
		SuccessURL:    "https://example.test/success",
		FailURL:       "https://example.test/fail",
		CancelURL:     "https://example.test/cancel",
		CustomerName:  "Test Buyer",
		CustomerEmail: "buyer@example.test",
	})
	require.NoError(t, err)
	require.Equal(t, SessionStatusSuccess, resp.Status)
	require.Equal(t, "https://sandbox.sslcommerz.com/gw/sess-1", resp.GatewayPageURL)
}

func TestCreateSessionRejected(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"FAILED","failedreason":"store credential mismatch"}`))
	}))

	_, err := client.CreateSession(context.Background(), PaymentData{
		TransactionID: "tran-456",
		Amount:        decimal.NewFromInt(80),
		Currency:      "BDT",
	})
	require.Error(t, err)

	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeGateway, domainErr.Code())
}

func TestCreateSessionValidatesInput(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("gateway should not be called")
	}))

	_, err := client.CreateSession(context.Background(), PaymentData{Amount: decimal.NewFromInt(10)})
	require.Error(t, err)

	_, err = client.CreateSession(context.Background(), PaymentData{TransactionID: "t", Amount: decimal.Zero})
	require.Error(t, err)
}

func TestValidateTransaction(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, validationPath, r.URL.Path)
		require.Equal(t, "val-789", r.URL.Query().Get("val_id"))
		require.Equal(t, "json", r.URL.Query().Get("format"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"VALID","tran_id":"tran-123","val_id":"val-789","amount":"150.00","currency":"BDT"}`))
	}))

	resp, err := client.ValidateTransaction(context.Background(), "val-789")
	require.NoError(t, err)
	require.True(t, resp.IsValid())
	require.Equal(t, "tran-123", resp.TransactionID)
}

func TestValidateTransactionGatewayDown(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.ValidateTransaction(context.Background(), "val-000")
	require.Error(t, err)

	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	require.Equal(t, pkgerrors.CodeDependency, domainErr.Code())
}

func TestValidationResponseIsValid(t *testing.T) {
	require.True(t, (&ValidationResponse{Status: "VALID"}).IsValid())
	require.True(t, (&ValidationResponse{Status: "VALIDATED"}).IsValid())
	require.False(t, (&ValidationResponse{Status: "INVALID_TRANSACTION"}).IsValid())
}
