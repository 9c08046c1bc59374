package traceutils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpRequest(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://images.test/async?q=cat", nil)
	require.NoError(t, err)

	dump := DumpRequest(req)
	assert.Contains(t, dump, "GET /async?q=cat HTTP/1.1")
	assert.Contains(t, dump, "Host: images.test")
}

func TestDumpResponse(t *testing.T) {
	w := httptest.NewRecorder()
	w.WriteHeader(http.StatusTeapot)

	dump := DumpResponse(w.Result())
	assert.Contains(t, dump, "418")
}
