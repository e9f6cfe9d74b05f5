package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/photosearch/internal/photo"
)

func TestCreate(t *testing.T) {
	var gotPath, gotMethod, gotAuth string
	var gotDoc photo.Document
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotDoc))
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"result":"created"}`)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL + "/", Index: "photos", User: "u", Password: "p"})
	doc := photo.Document{ObjectKey: "a photo.jpg", Bucket: "b", CreatedTimestamp: "t", Labels: []string{"cat"}}

	require.NoError(t, c.Create(context.Background(), doc))
	assert.Equal(t, "/photos/_doc", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Basic dTpw", gotAuth)
	assert.Equal(t, doc, gotDoc)
}

func TestCreateWithoutCredentialsSendsNoAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, Index: "photos", User: "only-user"})
	require.NoError(t, c.Create(context.Background(), photo.Document{}))
	assert.Empty(t, gotAuth)
}

func TestCreateFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := New(Config{Endpoint: srv.URL, Index: "photos"}).Create(context.Background(), photo.Document{})
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestNotConfigured(t *testing.T) {
	c := New(Config{Index: "photos"})
	assert.ErrorIs(t, c.Create(context.Background(), photo.Document{}), ErrNotConfigured)
	_, err := c.Search(context.Background(), []string{"cat"}, 50)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSearch(t *testing.T) {
	var gotQuery map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/photos/_search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotQuery))
		io.WriteString(w, `{"hits":{"hits":[
			{"_source":{"objectKey":"2.jpg","bucket":"b","createdTimestamp":"t2","labels":["dog"],"extra":"x"}},
			{"_source":{"objectKey":"1.jpg","bucket":"b","createdTimestamp":"t1","labels":["cat","dog"]}}
		]}}`)
	}))
	defer srv.Close()

	docs, err := New(Config{Endpoint: srv.URL, Index: "photos"}).Search(context.Background(), []string{"dog", "cat"}, 50)
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "2.jpg", docs[0].ObjectKey)
	assert.Equal(t, []string{"cat", "dog"}, docs[1].Labels)

	want := `{"size":50,"query":{"bool":{"should":[
		{"terms":{"labels.keyword":["dog","cat"]}},
		{"terms":{"labels":["dog","cat"]}}
	],"minimum_should_match":1}}}`
	got, _ := json.Marshal(gotQuery)
	assert.JSONEq(t, want, string(got))
}

func TestSearchFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(Config{Endpoint: srv.URL, Index: "photos"}).Search(context.Background(), []string{"cat"}, 50)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}
