package gcs_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/eu-innovation-monitor/internal/storage/gcs"
)

const bucket = "archive-bucket"

// fakeGCS answers bucket metadata and multipart uploads of the JSON API.
func fakeGCS(t *testing.T, uploads *[]string, fail bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if strings.Contains(r.URL.Path, "/upload/") {
			name := r.URL.Query().Get("name")
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			assert.Contains(t, string(body), "<h1>Grant announced</h1>")
			*uploads = append(*uploads, name)
			fmt.Fprintf(w, `{"name": %q, "bucket": %q}`, name, bucket)
			return
		}
		if strings.Contains(r.URL.Path, "/b/"+bucket) {
			fmt.Fprintf(w, `{"name": %q}`, bucket)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAndPutObject(t *testing.T) {
	var uploads []string
	srv := fakeGCS(t, &uploads, false)

	store, err := gcs.Open(context.Background(), gcs.Config{Bucket: bucket, Prefix: "/snapshots/"},
		option.WithEndpoint(srv.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	uri, err := store.PutObject(context.Background(), "raw/run-1/abc.html", "text/html; charset=utf-8",
		strings.NewReader("<html><h1>Grant announced</h1></html>"))
	require.NoError(t, err)
	assert.Equal(t, "gs://archive-bucket/snapshots/raw/run-1/abc.html", uri)
	assert.Equal(t, []string{"snapshots/raw/run-1/abc.html"}, uploads)
}

func TestOpenFailsWhenBucketUnavailable(t *testing.T) {
	srv := fakeGCS(t, nil, true)

	_, err := gcs.Open(context.Background(), gcs.Config{Bucket: bucket},
		option.WithEndpoint(srv.URL), option.WithoutAuthentication())
	require.Error(t, err)

	_, err = gcs.Open(context.Background(), gcs.Config{})
	require.Error(t, err)
}

func TestPutObjectServerError(t *testing.T) {
	srv := fakeGCS(t, nil, true)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(srv.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := gcs.New(client, gcs.Config{Bucket: bucket})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "a.html", "", strings.NewReader("<h1>Grant announced</h1>"))
	require.Error(t, err)
	_, err = store.PutObject(context.Background(), " ", "", strings.NewReader(""))
	require.Error(t, err)
	assert.NoError(t, store.Close())

	_, err = gcs.New(nil, gcs.Config{Bucket: bucket})
	require.Error(t, err)
}
