package apic

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestResponse(t *testing.T) {
	t.Run("reads_body_once", func(t *testing.T) {
		resp := newResponse(rawResponse(http.StatusOK, `{"id":7}`))

		s, err := resp.String()
		require.NoError(t, err)
		assert.Equal(t, `{"id":7}`, s)

		var out struct{ ID int }
		require.NoError(t, resp.DecodeJSON(&out))
		assert.Equal(t, 7, out.ID)
		assert.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Equal(t, "application/json", resp.Header("Content-Type"))
	})

	t.Run("bytes_returns_copy", func(t *testing.T) {
		resp := newResponse(rawResponse(http.StatusOK, "abc"))
		b, err := resp.Bytes()
		require.NoError(t, err)
		b[0] = 'x'
		again, err := resp.Bytes()
		require.NoError(t, err)
		assert.Equal(t, "abc", string(again))
	})

	t.Run("empty_body_decode", func(t *testing.T) {
		resp := newResponse(rawResponse(http.StatusNoContent, ""))
		var out map[string]any
		assert.ErrorIs(t, resp.DecodeJSON(&out), io.EOF)
	})

	t.Run("nil_raw", func(t *testing.T) {
		resp := newResponse(nil)
		assert.Equal(t, 0, resp.StatusCode())
		assert.Equal(t, "", resp.Header("X"))
		assert.NoError(t, resp.Close())
	})

	t.Run("close_without_read", func(t *testing.T) {
		resp := newResponse(rawResponse(http.StatusOK, "abc"))
		assert.NoError(t, resp.Close())
		assert.NoError(t, resp.Close())
	})
}
