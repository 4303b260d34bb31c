package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/runtime/internal/communication"
)

func validSMS() *communication.SMS {
	return &communication.SMS{
		From: "+15550000001",
		To:   "+15550000002",
		Text: "workflow finished",
	}
}

func TestProvidersRejectInvalidMessage(t *testing.T) {
	snsProvider, err := NewSNSProvider("eu-west-1")
	require.NoError(t, err)

	providers := map[string]communication.SMSProvider{
		"twilio":      NewTwilioProvider("sid", "token"),
		"sns":         snsProvider,
		"messagebird": NewMessageBirdProvider("key"),
	}
	for name, p := range providers {
		t.Run(name, func(t *testing.T) {
			_, err := p.SendSMS(context.Background(), &communication.SMS{})
			assert.Error(t, err)
		})
	}
}

func TestMessageBirdSendsAuthenticatedJSON(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "mb-123"})
	}))
	defer server.Close()

	p := NewMessageBirdProvider("test-key")
	p.endpoint = server.URL

	id, err := p.SendSMS(context.Background(), validSMS())
	require.NoError(t, err)
	assert.Equal(t, "mb-123", id)
	assert.Equal(t, "AccessKey test-key", gotAuth)
	assert.Equal(t, "+15550000001", gotPayload["originator"])
	assert.Equal(t, []interface{}{"+15550000002"}, gotPayload["recipients"])
	assert.Equal(t, "workflow finished", gotPayload["body"])
}

func TestMessageBirdSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"description":"invalid key"}]}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewMessageBirdProvider("bad-key")
	p.endpoint = server.URL

	_, err := p.SendSMS(context.Background(), validSMS())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
