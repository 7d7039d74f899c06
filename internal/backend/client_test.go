// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/echoflow/internal/errs"
)

func newTestClient(url string) *HTTPClient {
	return NewHTTPClient(url, WithRetryDelay(time.Millisecond))
}

func TestHTTPClient_SendChatMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Message)
		assert.Equal(t, "data:image/png;base64,AAEC", req.ImageDataURI)

		json.NewEncoder(w).Encode(ChatResponse{Response: "hi there"})
	}))
	defer srv.Close()

	reply, err := newTestClient(srv.URL+"/").SendChatMessage(context.Background(), ChatRequest{
		Message:      "hello",
		ImageDataURI: EncodeDataURI("image/png", []byte{0, 1, 2}),
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)
}

func TestHTTPClient_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":""}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SendChatMessage(context.Background(), ChatRequest{Message: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.True(t, errs.IsKind(err, errs.KindBackendFailure))
	assert.Contains(t, errs.Reason(err), "empty response")
}

func TestHTTPClient_ErrorStatusCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Message is required"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SendChatMessage(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindBackendFailure))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Equal(t, "Message is required", se.Message)
}

func TestHTTPClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).TranscribeAudio(context.Background(), TranscribeRequest{AudioDataURI: "data:audio/webm;base64,AA=="})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindBackendFailure))
	assert.Contains(t, err.Error(), "failed to parse response")
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"transcribedText":"hello from audio"}`))
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).TranscribeAudio(context.Background(), TranscribeRequest{AudioDataURI: "data:audio/webm;base64,AA=="})
	require.NoError(t, err)
	assert.Equal(t, "hello from audio", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"error":"Method not allowed"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SendChatMessage(context.Background(), ChatRequest{Message: "x"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClient_DoesNotRetryProviderFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Response generation failed, received no output from the model."}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SendChatMessage(context.Background(), ChatRequest{Message: "x"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, errs.IsKind(err, errs.KindBackendFailure))
	assert.Contains(t, errs.Reason(err), "received no output from the model")
}

func TestStatusError_Retryable(t *testing.T) {
	for status, want := range map[int]bool{
		http.StatusTooManyRequests:     true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
		http.StatusInternalServerError: false,
		http.StatusNotImplemented:      false,
		http.StatusBadRequest:          false,
	} {
		assert.Equal(t, want, (&StatusError{Status: status}).Retryable(), status)
	}
}

func TestHTTPClient_EmptyTranscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transcribedText":"   "}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).TranscribeAudio(context.Background(), TranscribeRequest{})
	assert.ErrorIs(t, err, ErrEmptyTranscription)
}

func TestHTTPClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPClient(srv.URL).SendChatMessage(ctx, ChatRequest{Message: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDataURI_RoundTrip(t *testing.T) {
	uri := EncodeDataURI("audio/webm;codecs=opus", []byte("opus-bytes"))
	assert.Equal(t, "data:audio/webm;codecs=opus;base64,b3B1cy1ieXRlcw==", uri)

	mime, data, err := DecodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "audio/webm;codecs=opus", mime)
	assert.Equal(t, "audio/webm", BaseMIMEType(mime))
	assert.Equal(t, []byte("opus-bytes"), data)
}

func TestDecodeDataURI_Invalid(t *testing.T) {
	for _, uri := range []string{"", "hello", "data:image/png,plain", "data:image/png;base64,!!!"} {
		_, _, err := DecodeDataURI(uri)
		assert.ErrorIs(t, err, ErrInvalidDataURI, uri)
	}
}
