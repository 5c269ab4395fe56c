package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vibez0-CONNECT/vibez/internal/errs"
	"github.com/Vibez0-CONNECT/vibez/internal/models"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/relay"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/relaysign"
)

var relaySecret = []byte("relay-shared-secret")

func TestSendCodeSignsRequest(t *testing.T) {
	signer, err := relaysign.New(relaySecret, relaysign.DefaultFreshness)
	require.NoError(t, err)

	var gotPayload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		ts, err := strconv.ParseInt(r.Header.Get("X-Vibez-Timestamp"), 10, 64)
		require.NoError(t, err)

		// The relay re-verifies with the same shared secret.
		verifier, err := relaysign.New(relaySecret, relaysign.DefaultFreshness)
		require.NoError(t, err)
		require.True(t, verifier.Verify(gotPayload, ts, r.Header.Get("X-Vibez-Signature")))

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := relay.New(srv.URL, signer, 5*time.Second)
	err = c.SendCode(context.Background(), "alice@example.com", models.PurposeVerify, "123456", 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", gotPayload["to"])
	assert.Equal(t, "verify", gotPayload["purpose"])
	assert.Equal(t, "123456", gotPayload["code"])
	assert.Equal(t, "10", gotPayload["ttl_minutes"])
}

func TestSendCodeErrorResponse(t *testing.T) {
	signer, err := relaysign.New(relaySecret, relaysign.DefaultFreshness)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "smtp down"})
	}))
	defer srv.Close()

	c := relay.New(srv.URL, signer, 5*time.Second)
	err = c.SendCode(context.Background(), "alice@example.com", models.PurposeReset, "123456", time.Minute)
	assert.True(t, errors.Is(err, errs.ErrTransportFailure))
	assert.Contains(t, err.Error(), "smtp down")
}

func TestSendCodeUnreachableEndpoint(t *testing.T) {
	signer, err := relaysign.New(relaySecret, relaysign.DefaultFreshness)
	require.NoError(t, err)

	c := relay.New("http://127.0.0.1:1/send", signer, time.Second)
	err = c.SendCode(context.Background(), "alice@example.com", models.PurposeVerify, "123456", time.Minute)
	assert.True(t, errors.Is(err, errs.ErrTransportFailure))
}
