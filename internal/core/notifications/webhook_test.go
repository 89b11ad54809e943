package notifications

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendWebhook(t *testing.T) {
	payload := []byte(`{"event":"payment.registered"}`)

	var gotSig, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, SendWebhook(srv.URL, payload, "s3cret"))
	require.Equal(t, string(payload), gotBody)
	require.Equal(t, "sha256="+Sign(payload, "s3cret"), gotSig)

	require.NoError(t, SendWebhook(srv.URL, payload, ""))
	require.Empty(t, gotSig, "unsigned when no secret is configured")
}

func TestSendWebhookRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := SendWebhook(srv.URL, []byte(`{}`), "")
	require.ErrorContains(t, err, "502")
}

func TestSign(t *testing.T) {
	require.Equal(t, Sign([]byte("a"), "k"), Sign([]byte("a"), "k"))
	require.NotEqual(t, Sign([]byte("a"), "k"), Sign([]byte("a"), "other"))
	require.Len(t, Sign([]byte("a"), "k"), 64)
}
