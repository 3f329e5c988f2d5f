package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Synthesize(t *testing.T) {
	var gotText, gotLang string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tts", r.URL.Path)
		gotText = r.URL.Query().Get("text")
		gotLang = r.URL.Query().Get("lang")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"url": "http://cdn/speech-abc.mp3"}`))
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, DefaultLang: "en"})

	url, err := c.Synthesize(context.Background(), "hello there", "fr")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/speech-abc.mp3", url)
	assert.Equal(t, "hello there", gotText)
	assert.Equal(t, "fr", gotLang)
}

func TestClient_SynthesizeDefaultLang(t *testing.T) {
	var gotLang string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.URL.Query().Get("lang")
		w.Write([]byte(`{"url": "http://cdn/speech.mp3"}`))
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, DefaultLang: "ja"})

	_, err := c.Synthesize(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "ja", gotLang)
}

func TestClient_SynthesizeErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		text    string
		wantErr error
	}{
		{
			name:    "empty text",
			status:  http.StatusOK,
			body:    `{"url": "x"}`,
			text:    "",
			wantErr: ErrSynthesisFailed,
		},
		{
			name:    "backend failure status",
			status:  http.StatusInternalServerError,
			body:    "boom",
			text:    "hello",
			wantErr: ErrSynthesisFailed,
		},
		{
			name:    "backend error field",
			status:  http.StatusOK,
			body:    `{"error": "unsupported language"}`,
			text:    "hello",
			wantErr: ErrSynthesisFailed,
		},
		{
			name:    "missing url",
			status:  http.StatusOK,
			body:    `{}`,
			text:    "hello",
			wantErr: ErrSynthesisFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := New(Config{BaseURL: server.URL})
			_, err := c.Synthesize(context.Background(), tt.text, "en")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_SynthesizeContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Synthesize(ctx, "hello", "en")
	assert.Error(t, err)
}
