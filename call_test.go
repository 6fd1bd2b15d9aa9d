package apic_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eatgo/apic"
	"github.com/eatgo/apic/auth"
	"github.com/eatgo/apic/intercept"
	"github.com/eatgo/apic/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_NewCall(t *testing.T) {
	ctx := context.Background()

	t.Run("attaches_token_once_for_api_url", func(t *testing.T) {
		srv := newAuthServer(t)
		client, _ := newStoreClient(t, srv.URL, "S")

		call := client.NewCall()
		require.NoError(t, call.Open("GET", "/api/orders"))
		resp, err := call.Send(ctx, nil)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Len(t, srv.requests(), 1)
		assert.Equal(t, []string{"Bearer S"}, srv.requests()[0])
	})

	t.Run("leaves_other_url_alone", func(t *testing.T) {
		srv := newAuthServer(t)
		client, _ := newStoreClient(t, srv.URL, "S")

		call := client.NewCall()
		require.NoError(t, call.Open("GET", "/other/page"))
		resp, err := call.Send(ctx, nil)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Empty(t, srv.requests()[0])
	})

	t.Run("uses_url_of_latest_open", func(t *testing.T) {
		srv := newAuthServer(t)
		client, _ := newStoreClient(t, srv.URL, "S")

		call := client.NewCall()
		require.NoError(t, call.Open("GET", "/api/orders"))
		require.NoError(t, call.Open("GET", "/other/page"))
		resp, err := call.Send(ctx, nil)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Empty(t, srv.requests()[0])
	})

	t.Run("returns_plain_call_without_bearer", func(t *testing.T) {
		client, err := apic.New()
		require.NoError(t, err)

		_, wrapped := client.NewCall().(*intercept.TrackedHandle)
		assert.False(t, wrapped)
	})

	t.Run("forwards_body_and_headers", func(t *testing.T) {
		var gotBody, gotType string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			gotType = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()
		client, _ := newStoreClient(t, srv.URL, "S")

		call := client.NewCall()
		require.NoError(t, call.Open("post", "/api/orders"))
		require.NoError(t, call.SetRequestHeader("Content-Type", "application/json"))
		resp, err := call.Send(ctx, strings.NewReader(`{"qty":1}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, `{"qty":1}`, gotBody)
		assert.Equal(t, "application/json", gotType)
	})

	t.Run("failed_reopen_does_not_carry_token", func(t *testing.T) {
		srv := newAuthServer(t)
		client, _ := newStoreClient(t, srv.URL, "secret-tok")

		call := client.NewCall()
		require.NoError(t, call.Open("GET", "/other/page"))
		require.Error(t, call.Open("", "/api/orders"))
		resp, err := call.Send(ctx, nil)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Len(t, srv.requests(), 1)
		assert.Empty(t, srv.requests()[0])
	})

	t.Run("scope_matches_client_for_relative_targets", func(t *testing.T) {
		srv := newAuthServer(t)
		client, _ := newStoreClient(t, srv.URL+"/api", "tok")

		_, err := client.Get(ctx, "orders")
		require.NoError(t, err)

		call := client.NewCall()
		require.NoError(t, call.Open("GET", "orders"))
		resp, err := call.Send(ctx, nil)
		require.NoError(t, err)
		defer resp.Body.Close()

		seen := srv.requests()
		require.Len(t, seen, 2)
		assert.Equal(t, []string{"Bearer tok"}, seen[0])
		assert.Equal(t, seen[0], seen[1])
	})

	t.Run("propagates_store_fault", func(t *testing.T) {
		srv := newAuthServer(t)
		fault := errors.New("store unavailable")
		client, err := apic.New(
			apic.WithBaseURL(srv.URL),
			apic.WithCredentials(auth.SourceFunc(func() (string, bool, error) { return "", false, fault })),
		)
		require.NoError(t, err)

		call := client.NewCall()
		require.NoError(t, call.Open("GET", "/api/orders"))
		_, err = call.Send(ctx, nil)
		assert.ErrorIs(t, err, fault)
		assert.Empty(t, srv.requests())
	})
}

func TestCall_Retry(t *testing.T) {
	ctx := context.Background()
	policy := retry.NewPolicy(retry.PolicyConfig{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  2 * time.Millisecond,
		StatusCodes: []int{http.StatusServiceUnavailable},
	})

	newBodyServer := func(t *testing.T) (*httptest.Server, func() []string) {
		t.Helper()
		var (
			mu     sync.Mutex
			bodies []string
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, string(b))
			n := len(bodies)
			mu.Unlock()
			if n == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)
		return srv, func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string(nil), bodies...)
		}
	}

	t.Run("streamed_body_is_not_resent_empty", func(t *testing.T) {
		srv, bodies := newBodyServer(t)
		client, _ := newStoreClient(t, srv.URL, "tok", apic.WithRetry(true, 3), apic.WithRetryPolicy(policy))

		call := client.NewCall()
		require.NoError(t, call.Open("PUT", "/api/orders/1"))
		resp, err := call.Send(ctx, io.MultiReader(strings.NewReader(`{"status":"PAID"}`)))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, []string{`{"status":"PAID"}`}, bodies())
	})

	t.Run("replayable_body_is_resent", func(t *testing.T) {
		srv, bodies := newBodyServer(t)
		client, _ := newStoreClient(t, srv.URL, "tok", apic.WithRetry(true, 3), apic.WithRetryPolicy(policy))

		call := client.NewCall()
		require.NoError(t, call.Open("PUT", "/api/orders/1"))
		resp, err := call.Send(ctx, strings.NewReader(`{"status":"PAID"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, []string{`{"status":"PAID"}`, `{"status":"PAID"}`}, bodies())
	})
}

func TestCall_State(t *testing.T) {
	ctx := context.Background()
	srv := newAuthServer(t)
	client, err := apic.New(apic.WithBaseURL(srv.URL))
	require.NoError(t, err)

	t.Run("requires_open", func(t *testing.T) {
		call := client.NewCall()
		assert.ErrorIs(t, call.SetRequestHeader("Accept", "*/*"), apic.ErrCallNotOpened)
		_, err := call.Send(ctx, nil)
		assert.ErrorIs(t, err, apic.ErrCallNotOpened)
	})

	t.Run("requires_method", func(t *testing.T) {
		call := client.NewCall()
		assert.Error(t, call.Open(" ", "/api/orders"))
	})

	t.Run("rejects_use_after_send", func(t *testing.T) {
		call := client.NewCall()
		require.NoError(t, call.Open("GET", "/ping"))
		resp, err := call.Send(ctx, nil)
		require.NoError(t, err)
		resp.Body.Close()

		assert.ErrorIs(t, call.SetRequestHeader("Accept", "*/*"), apic.ErrCallSent)
		_, err = call.Send(ctx, nil)
		assert.ErrorIs(t, err, apic.ErrCallSent)
	})

	t.Run("reopen_allows_another_send", func(t *testing.T) {
		call := client.NewCall()
		require.NoError(t, call.Open("GET", "/ping"))
		resp, err := call.Send(ctx, nil)
		require.NoError(t, err)
		resp.Body.Close()

		require.NoError(t, call.Open("GET", "/ping"))
		resp, err = call.Send(ctx, nil)
		require.NoError(t, err)
		resp.Body.Close()
	})

	t.Run("bad_url_keeps_call_usable", func(t *testing.T) {
		bare, err := apic.New()
		require.NoError(t, err)
		call := bare.NewCall()
		require.NoError(t, call.Open("GET", "http://[::1"))
		_, err = call.Send(ctx, nil)
		require.Error(t, err)
		assert.NotErrorIs(t, err, apic.ErrCallSent)
		assert.NoError(t, call.SetRequestHeader("Accept", "*/*"))

		require.NoError(t, call.Open("GET", srv.URL+"/ping"))
		resp, err := call.Send(ctx, nil)
		require.NoError(t, err)
		resp.Body.Close()
	})

	t.Run("has_id", func(t *testing.T) {
		call, ok := client.NewCall().(*apic.Call)
		require.True(t, ok)
		assert.NotEmpty(t, call.ID())
	})
}
