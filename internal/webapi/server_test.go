package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-studio-ai/internal/brand"
	"creator-studio-ai/internal/credential"
	"creator-studio-ai/internal/gemini"
	"creator-studio-ai/internal/generate"
)

type gatedGenerator struct {
	release chan struct{}
}

func (g gatedGenerator) GenerateImage(ctx context.Context, req gemini.ImageRequest) (gemini.Image, error) {
	if g.release != nil {
		<-g.release
	}
	return gemini.Image{MimeType: "image/png", Data: []byte("banner")}, nil
}

type testClient struct {
	t    *testing.T
	srv  *httptest.Server
	http *http.Client
}

func newTestServer(t *testing.T, key string, gen generate.Generator) *testClient {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := credential.NewGate(credential.Options{Provider: &credential.StaticProvider{Key: key}})
	orch := generate.New(generate.Options{Generator: gen, Gate: gate, Limit: 2, Logger: logger})
	s := New(Options{Orchestrator: orch, Gate: gate, Logger: logger})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{t: t, srv: srv, http: &http.Client{Jar: jar}}
}

func (c *testClient) do(method, path, contentType string, body io.Reader) (int, map[string]any) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.srv.URL+path, body)
	require.NoError(c.t, err)
	if contentType != "" {
		req.Header.Set("content-type", contentType)
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (c *testClient) form(values url.Values) (int, map[string]any) {
	return c.do(http.MethodPost, "/api/kit", "application/x-www-form-urlencoded", strings.NewReader(values.Encode()))
}

func (c *testClient) multipart(fields map[string]string, files map[string][]byte) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(c.t, mw.WriteField(k, v))
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile(name, name+".png")
		require.NoError(c.t, err)
		_, err = fw.Write(data)
		require.NoError(c.t, err)
	}
	require.NoError(c.t, mw.Close())
	return c.do(http.MethodPost, "/api/kit", mw.FormDataContentType(), &buf)
}

func pngData(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 3))))
	return buf.Bytes()
}

func TestPlatforms(t *testing.T) {
	c := newTestServer(t, "k", gatedGenerator{})
	status, body := c.do(http.MethodGet, "/api/platforms", "", nil)
	require.Equal(t, http.StatusOK, status)
	platforms := body["platforms"].([]any)
	assert.Len(t, platforms, 9)
	first := platforms[0].(map[string]any)
	assert.Equal(t, "facebook_cover", first["id"])
	assert.Equal(t, "16:9", first["aspect_ratio"])
}

func TestKitDefaultsAndCookie(t *testing.T) {
	c := newTestServer(t, "k", gatedGenerator{})
	status, body := c.do(http.MethodGet, "/api/kit", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "#6366f1", body["primary"])
	assert.Equal(t, true, body["optimize_safe_zones"])
	assert.Empty(t, body["platforms"])

	u, _ := url.Parse(c.srv.URL)
	cookies := c.http.Jar.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)

	// the same session is used on the next request
	c.form(url.Values{"headline": {"Hello"}})
	_, body = c.do(http.MethodGet, "/api/kit", "", nil)
	assert.Equal(t, "Hello", body["headline"])
}

func TestUpdateKitForm(t *testing.T) {
	c := newTestServer(t, "k", gatedGenerator{})

	status, body := c.form(url.Values{
		"headline":            {"Launch"},
		"platforms":           {"zoom_bg, facebook_cover"},
		"primary":             {"#112233"},
		"optimize_safe_zones": {"false"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Launch", body["headline"])
	assert.Equal(t, []any{"facebook_cover", "zoom_bg"}, body["platforms"])
	assert.Equal(t, "#112233", body["primary"])
	assert.Equal(t, "#ec4899", body["secondary"])
	assert.Equal(t, false, body["optimize_safe_zones"])

	status, _ = c.form(url.Values{"platforms": {`["twitter_header"]`}})
	require.Equal(t, http.StatusOK, status)

	// invalid input changes nothing
	status, _ = c.form(url.Values{"headline": {"Other"}, "accent": {"#zzz"}})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = c.form(url.Values{"platforms": {"myspace"}})
	assert.Equal(t, http.StatusBadRequest, status)

	_, body = c.do(http.MethodGet, "/api/kit", "", nil)
	assert.Equal(t, "Launch", body["headline"])
	assert.Equal(t, []any{"twitter_header"}, body["platforms"])
}

func TestUploadAttachments(t *testing.T) {
	c := newTestServer(t, "k", gatedGenerator{})
	img := pngData(t)

	status, body := c.multipart(nil, map[string][]byte{"logo": img})
	require.Equal(t, http.StatusOK, status)
	logo := body["logo"].(map[string]any)
	assert.Equal(t, "image/png", logo["mime_type"])
	assert.Nil(t, body["headshot"])

	status, _ = c.multipart(nil, map[string][]byte{"logo": img})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = c.multipart(map[string]string{"remove_logo": "1"}, map[string][]byte{"logo": img, "headshot": img})
	require.Equal(t, http.StatusOK, status)

	_, body = c.do(http.MethodGet, "/api/kit", "", nil)
	assert.NotNil(t, body["logo"])
	assert.NotNil(t, body["headshot"])

	status, body = c.multipart(map[string]string{"remove_headshot": "true"}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["headshot"])
}

func TestUndecodableUploadRejected(t *testing.T) {
	c := newTestServer(t, "k", gatedGenerator{})
	status, body := c.multipart(nil, map[string][]byte{"logo": []byte("not an image")})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "logo")
}

func TestGenerateRequiresCredential(t *testing.T) {
	c := newTestServer(t, "", gatedGenerator{})
	c.form(url.Values{"platforms": {"facebook_cover"}})

	status, _ := c.do(http.MethodPost, "/api/generate", "", nil)
	assert.Equal(t, http.StatusPreconditionFailed, status)

	_, body := c.do(http.MethodGet, "/api/credential", "", nil)
	assert.Equal(t, "unavailable", body["state"])
	_, body = c.do(http.MethodPost, "/api/credential/connect", "", nil)
	assert.Equal(t, "unavailable", body["state"])
}

func TestGenerateEmptySelection(t *testing.T) {
	c := newTestServer(t, "k", gatedGenerator{})
	status, body := c.do(http.MethodPost, "/api/generate", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body["results"])

	status, _ = c.do(http.MethodGet, "/api/run", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGenerateLifecycle(t *testing.T) {
	release := make(chan struct{})
	c := newTestServer(t, "k", gatedGenerator{release: release})
	c.form(url.Values{"platforms": {"facebook_cover,twitter_header"}})

	status, body := c.do(http.MethodPost, "/api/generate", "", nil)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, true, body["generating"])
	results := body["results"].([]any)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "pending", r.(map[string]any)["status"])
	}

	status, _ = c.do(http.MethodPost, "/api/generate", "", nil)
	assert.Equal(t, http.StatusConflict, status)

	_, kit := c.do(http.MethodGet, "/api/kit", "", nil)
	assert.Equal(t, true, kit["generating"])

	close(release)
	require.Eventually(t, func() bool {
		_, run := c.do(http.MethodGet, "/api/run", "", nil)
		return run["generating"] == false
	}, 2*time.Second, 10*time.Millisecond)

	status, body = c.do(http.MethodGet, "/api/run", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["finished_at"])
	for _, r := range body["results"].([]any) {
		res := r.(map[string]any)
		assert.Equal(t, "succeeded", res["status"])
		assert.True(t, strings.HasPrefix(res["image"].(string), "data:image/png;base64,"))
	}
}

func TestParsePlatforms(t *testing.T) {
	ids, err := parsePlatforms(`["a","b"]`)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	ids, err = parsePlatforms(" a , ,b ")
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	_, err = parsePlatforms("[oops")
	assert.Error(t, err)

	ids, err = parsePlatforms("")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestApplyFormIsAtomic(t *testing.T) {
	cfg := brand.DefaultConfiguration()
	r := httptest.NewRequest(http.MethodPost, "/api/kit", strings.NewReader("headline=X&secondary=bad"))
	r.Header.Set("content-type", "application/x-www-form-urlencoded")
	require.NoError(t, r.ParseForm())

	next := cfg.Snapshot()
	assert.Error(t, applyForm(&next, r, nil))
	assert.Empty(t, cfg.Headline)
}
