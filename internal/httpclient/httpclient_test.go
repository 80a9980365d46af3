package httpclient

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	client := New(Options{})

	assert.Equal(t, 60*time.Second, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 15*time.Second, transport.TLSHandshakeTimeout)
	assert.Equal(t, 30*time.Second, transport.ResponseHeaderTimeout)
}

func TestNewOverrides(t *testing.T) {
	client := New(Options{
		Timeout:               90 * time.Second,
		DialTimeout:           5 * time.Second,
		TLSHandshakeTimeout:   8 * time.Second,
		ResponseHeaderTimeout: 12 * time.Second,
	})

	assert.Equal(t, 90*time.Second, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 8*time.Second, transport.TLSHandshakeTimeout)
	assert.Equal(t, 12*time.Second, transport.ResponseHeaderTimeout)
}
