package blobreader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/blobreader/pkg/pipeline"
)

type sinkRecorder struct{ target string }

func (s *sinkRecorder) Redirect(target string) { s.target = target }
func (s *sinkRecorder) Redirected() bool       { return s.target != "" }

func TestRedirectDecision(t *testing.T) {
	tests := []struct {
		name     string
		redirect bool
		path     string
		query    string
		want     string
	}{
		{name: "unprocessed blob", redirect: true, path: "/store/container/img.png", want: testEndpoint + "container/img.png"},
		{name: "leading separators trimmed", redirect: true, path: `/store/\container/img.png`, want: testEndpoint + "container/img.png"},
		{name: "query without directive", redirect: true, path: "/store/container/img.png", query: "v=2", want: testEndpoint + "container/img.png"},
		{name: "processing directive", redirect: true, path: "/store/container/img.png", query: "width=100"},
		{name: "directive any case", redirect: true, path: "/store/container/img.png", query: "Format=webp"},
		{name: "redirect disabled", redirect: false, path: "/store/container/img.png"},
		{name: "outside prefix", redirect: true, path: "/other/container/img.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(nil)
			r, _ := installReader(t, Config{Prefix: "/store", RedirectIfUnmodified: tt.redirect}, store, nil)
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			sink := &sinkRecorder{}
			r.PostRewrite(&pipeline.RewriteEvent{VirtualPath: tt.path, Query: q}, sink)
			assert.Equal(t, tt.want, sink.target)
			assert.Empty(t, store.lookups, "redirect decision must not touch the store")
		})
	}
}

func TestRedirectUsesEndpointOverride(t *testing.T) {
	r, _ := installReader(t, Config{
		Prefix:               "/store",
		Endpoint:             "https://cdn.example/public",
		RedirectIfUnmodified: true,
	}, newFakeStore(nil), nil)

	sink := &sinkRecorder{}
	r.PostRewrite(&pipeline.RewriteEvent{VirtualPath: "/store/container/img.png"}, sink)
	assert.Equal(t, "https://cdn.example/public/container/img.png", sink.target)
}

func TestPipelineRedirectsUnprocessedRequest(t *testing.T) {
	store := newFakeStore(nil)
	_, p := installReader(t, Config{Prefix: "/store", RedirectIfUnmodified: true}, store, nil)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/store/container/img.png", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, testEndpoint+"container/img.png", rec.Header().Get("Location"))
	assert.Empty(t, store.lookups)
}

func TestPipelineServesProcessedRequestLocally(t *testing.T) {
	store := newFakeStore(map[string]string{testEndpoint + "container/img.png": "png-bytes"})
	reporter := &countingReporter{}
	_, p := installReader(t, Config{Prefix: "/store", RedirectIfUnmodified: true}, store, reporter)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/store/container/img.png?width=100", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
	assert.Equal(t, "png-bytes", rec.Body.String())
	assert.Equal(t, 1, reporter.calls)
}

func TestPipelineMissingBlobIs404(t *testing.T) {
	_, p := installReader(t, Config{Prefix: "/store", RedirectIfUnmodified: false}, newFakeStore(nil), nil)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/store/container/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIndependentMounts(t *testing.T) {
	images := newFakeStore(map[string]string{testEndpoint + "c/a.png": "image"})
	docs := newFakeStore(map[string]string{"https://docs.example/c/a.png": "doc"})
	docs.base = "https://docs.example/"

	imgReader, p := installReader(t, Config{Prefix: "/images"}, images, nil)
	docReader := New(Config{Prefix: "/docs", ConnectionString: "BlobEndpoint=https://docs.example"}, Options{
		Logger: nopLogger(),
		Dial:   (&dialRecorder{store: docs}).dial,
	})
	require.NoError(t, docReader.Install(context.Background(), p))

	for path, want := range map[string]string{"/images/c/a.png": "image", "/docs/c/a.png": "doc"} {
		rec := httptest.NewRecorder()
		p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Body.String(), path)
	}

	assert.True(t, imgReader.Uninstall(p))
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/images/c/a.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
