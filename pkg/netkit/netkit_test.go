package netkit_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/keboola/go-netkit/pkg/asset"
	"github.com/keboola/go-netkit/pkg/client"
	"github.com/keboola/go-netkit/pkg/codec"
	"github.com/keboola/go-netkit/pkg/dispatch"
	. "github.com/keboola/go-netkit/pkg/netkit"
	"github.com/keboola/go-netkit/pkg/request"
)

type city struct {
	Name       string `json:"name" validate:"required"`
	Population int    `json:"population"`
}

type result struct {
	body string
	ok   bool
}

func TestNetkit(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(NetkitSuite))
}

type NetkitSuite struct {
	suite.Suite

	hdl   http.HandlerFunc
	srv   *httptest.Server
	queue *dispatch.SerialQueue
	logs  *observer.ObservedLogs
	api   *API
}

func (s *NetkitSuite) SetupTest() {
	s.hdl = echo
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { s.hdl(w, r) }))
	s.queue = dispatch.NewSerialQueue()

	var core zapcore.Core
	core, s.logs = observer.New(zapcore.DebugLevel)
	s.api = New(WithClient(client.NewTestClient()), WithQueue(s.queue), WithLogger(zap.New(core)))
}

func (s *NetkitSuite) TearDownTest() {
	s.queue.Close()
	s.srv.Close()
}

func (s *NetkitSuite) TestGet() {
	outcome, err := s.api.Get(context.Background(), s.srv.URL+"/get", map[string]string{"city": "Praha 1", "page": "2"})
	s.Require().NoError(err)
	s.True(outcome.Success)
	s.Equal(http.StatusOK, outcome.StatusCode)

	body := gjson.Parse(outcome.Body)
	s.Equal("GET", body.Get("method").String())
	s.Equal("/get", body.Get("path").String())
	s.Equal("Praha 1", body.Get("args.city").String())
	s.Equal("2", body.Get("args.page").String())
}

func (s *NetkitSuite) TestGet_URLWithQuery() {
	outcome, err := s.api.Get(context.Background(), s.srv.URL+"/get?lang=cs", map[string]string{"page": "2"})
	s.Require().NoError(err)
	body := gjson.Parse(outcome.Body)
	s.Equal("cs", body.Get("args.lang").String())
	s.Equal("2", body.Get("args.page").String())
}

func (s *NetkitSuite) TestPost() {
	outcome, err := s.api.Post(context.Background(), s.srv.URL+"/post", map[string]string{"name": "Žluťoučký kůň", "symbols": "a&b=c"})
	s.Require().NoError(err)
	s.True(outcome.Success)

	body := gjson.Parse(outcome.Body)
	s.Equal("POST", body.Get("method").String())
	s.Equal("application/x-www-form-urlencoded", body.Get("header.content_type").String())
	s.Equal("Žluťoučký kůň", body.Get("form.name").String())
	s.Equal("a&b=c", body.Get("form.symbols").String())
}

func (s *NetkitSuite) TestPost_EmptyParams() {
	outcome, err := s.api.Post(context.Background(), s.srv.URL+"/post", nil)
	s.Require().NoError(err)
	s.True(outcome.Success)
	s.Empty(gjson.Get(outcome.Body, "form").Map())
}

func (s *NetkitSuite) TestCallOptions() {
	outcome, err := s.api.Get(context.Background(), s.srv.URL+"/get", nil, WithHeader("X-Test", "value"), WithTimeout(time.Second))
	s.Require().NoError(err)
	s.Equal("value", gjson.Get(outcome.Body, "header.x_test").String())
}

func (s *NetkitSuite) TestNonOKStatus() {
	s.hdl = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	}

	outcome, err := s.api.Get(context.Background(), s.srv.URL+"/missing", nil)
	s.Require().NoError(err)
	s.False(outcome.Success)
	s.Equal(http.StatusNotFound, outcome.StatusCode)
	s.Equal(`{"error":"not found"}`, outcome.Body)

	// The received body is passed to the callback
	results := make(chan result, 1)
	s.api.GetCallback(context.Background(), s.srv.URL+"/missing", nil, func(body string, ok bool) {
		results <- result{body: body, ok: ok}
	})
	s.Equal(result{body: `{"error":"not found"}`, ok: false}, <-results)

	// Typed decoding requires success
	_, err = GetObject[city](context.Background(), s.api, s.srv.URL+"/missing", nil)
	s.ErrorIs(err, request.ErrResponseFailed)
}

func (s *NetkitSuite) TestInvalidURL() {
	for _, url := range []string{"", "ftp://example.com", "http://", "://missing-scheme"} {
		_, err := s.api.Get(context.Background(), url, nil)
		s.ErrorIs(err, request.ErrInvalidURL, url)

		_, err = s.api.Post(context.Background(), url, nil)
		s.ErrorIs(err, request.ErrInvalidURL, url)

		_, err = GetObjectArray[city](context.Background(), s.api, url, nil)
		s.ErrorIs(err, request.ErrInvalidURL, url)

		results := make(chan result, 1)
		s.api.PostCallback(context.Background(), url, nil, func(body string, ok bool) {
			results <- result{body: body, ok: ok}
		})
		s.Equal(result{}, <-results, url)
	}
}

func (s *NetkitSuite) TestTimeout() {
	s.hdl = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}

	startedAt := time.Now()
	_, err := s.api.Get(context.Background(), s.srv.URL+"/slow", nil, WithTimeout(50*time.Millisecond))
	s.ErrorIs(err, request.ErrResponseFailed)
	s.Less(time.Since(startedAt), 2*time.Second)
}

func (s *NetkitSuite) TestGetObject() {
	s.hdl = jsonResponse(`{"name":"Praha","population":1357326,"unknown":true}`)

	value, err := GetObject[city](context.Background(), s.api, s.srv.URL+"/city", nil)
	s.Require().NoError(err)
	s.Equal(city{Name: "Praha", Population: 1357326}, value)

	results := make(chan *city, 1)
	GetObjectCallback[city](context.Background(), s.api, s.srv.URL+"/city", nil, func(v *city) {
		results <- v
	})
	s.Equal(&city{Name: "Praha", Population: 1357326}, <-results)
}

func (s *NetkitSuite) TestPostObject_Mismatch() {
	cases := []string{
		``,
		`null`,
		`[{"name":"Praha"}]`,
		`{"name":"Praha","population":"many"}`,
		`{"population":1}`,
		`{"name":"Praha"`,
	}

	for _, body := range cases {
		s.hdl = jsonResponse(body)

		_, err := PostObject[city](context.Background(), s.api, s.srv.URL+"/city", nil)
		s.ErrorIs(err, request.ErrDecodingDataFailed, body)

		results := make(chan *city, 1)
		PostObjectCallback[city](context.Background(), s.api, s.srv.URL+"/city", nil, func(v *city) {
			results <- v
		})
		s.Nil(<-results, body)
	}
}

func (s *NetkitSuite) TestObjectArray() {
	s.hdl = jsonResponse(`[{"name":"Praha","population":1357326},{"name":"Brno","population":382405}]`)
	expected := []city{{Name: "Praha", Population: 1357326}, {Name: "Brno", Population: 382405}}

	values, err := GetObjectArray[city](context.Background(), s.api, s.srv.URL+"/cities", nil)
	s.Require().NoError(err)
	s.Equal(expected, values)

	values, err = PostObjectArray[city](context.Background(), s.api, s.srv.URL+"/cities", map[string]string{"country": "CZ"})
	s.Require().NoError(err)
	s.Equal(expected, values)

	results := make(chan []city, 1)
	GetObjectArrayCallback[city](context.Background(), s.api, s.srv.URL+"/cities", nil, func(v []city) {
		results <- v
	})
	s.Equal(expected, <-results)
}

func (s *NetkitSuite) TestObjectArray_Empty() {
	s.hdl = jsonResponse(`[]`)

	values, err := GetObjectArray[city](context.Background(), s.api, s.srv.URL+"/cities", nil)
	s.Require().NoError(err)
	s.Empty(values)
	s.NotNil(values)
}

func (s *NetkitSuite) TestObjectArray_Mismatch() {
	cases := []string{
		``,
		`{"name":"Praha"}`,
		`[{"name":"Praha"},null]`,
		`[1,2,3]`,
	}

	for _, body := range cases {
		s.hdl = jsonResponse(body)

		_, err := GetObjectArray[city](context.Background(), s.api, s.srv.URL+"/cities", nil)
		s.ErrorIs(err, request.ErrDecodingDataFailed, body)

		results := make(chan []city, 1)
		PostObjectArrayCallback[city](context.Background(), s.api, s.srv.URL+"/cities", nil, func(v []city) {
			results <- v
		})
		s.Nil(<-results, body)
	}
}

func (s *NetkitSuite) TestUpload() {
	audioPath := filepath.Join(s.T().TempDir(), "audio.m4a")
	s.Require().NoError(os.WriteFile(audioPath, []byte("audio content"), 0o600))

	form := UploadForm{
		Params: map[string]string{"title": "My Upload"},
		Videos: map[string]string{"video": filepath.Join(s.T().TempDir(), "missing.mp4")},
		Images: map[string]image.Image{"photo": testImage()},
		Audios: map[string]string{"voice": audioPath},

		CompressionQuality: 0.5,
	}

	outcome, err := s.api.Upload(context.Background(), s.srv.URL+"/upload", form)
	s.Require().NoError(err)
	s.True(outcome.Success)

	body := gjson.Parse(outcome.Body)
	s.True(strings.HasPrefix(body.Get("header.content_type").String(), "multipart/form-data; boundary=Boundary-"))
	s.Equal("My Upload", body.Get("form.title").String())

	// Image is encoded
	s.Equal("image.jpg", body.Get("files.photo.filename").String())
	s.Equal("image/jpg", body.Get("files.photo.content_type").String())
	s.Positive(body.Get("files.photo.size").Int())

	// Audio is read from the file
	s.Equal("audio.m4a", body.Get("files.voice.filename").String())
	s.Equal("audio/m4a", body.Get("files.voice.content_type").String())
	s.Equal("audio content", body.Get("files.voice.content").String())

	// Video cannot be read, it is dropped
	s.False(body.Get("files.video").Exists())
	dropped := s.logs.FilterMessage("upload asset dropped").All()
	s.Require().Len(dropped, 1)
	s.Equal(zapcore.WarnLevel, dropped[0].Level)
	s.Equal("netkit", dropped[0].LoggerName)
	s.Equal("video", dropped[0].ContextMap()["field"])
	s.Equal("video", dropped[0].ContextMap()["kind"])
}

func (s *NetkitSuite) TestUpload_CustomAssets() {
	var qualities []float64
	api := New(
		WithClient(client.NewTestClient()),
		WithQueue(s.queue),
		WithResolver(asset.ResolverFunc(func(ctx context.Context, ref string) ([]byte, error) {
			return []byte("resolved " + ref), nil
		})),
		WithImageEncoder(asset.ImageEncoderFunc(func(img image.Image, quality float64) ([]byte, error) {
			qualities = append(qualities, quality)
			if img == nil {
				return nil, errors.New("image is nil")
			}
			return []byte("encoded image"), nil
		})),
	)

	form := UploadForm{
		Videos: map[string]string{"video": "s3://bucket/video.mp4"},
		Images: map[string]image.Image{"first": testImage(), "second": nil},

		CompressionQuality: 0.8,
	}

	results := make(chan result, 1)
	api.UploadCallback(context.Background(), s.srv.URL+"/upload", form, func(body string, ok bool) {
		results <- result{body: body, ok: ok}
	})
	res := <-results
	s.Require().True(res.ok)

	body := gjson.Parse(res.body)
	s.Equal("resolved s3://bucket/video.mp4", body.Get("files.video.content").String())
	s.Equal("encoded image", body.Get("files.first.content").String())
	s.False(body.Get("files.second").Exists())
	s.Equal([]float64{0.8, 0.8}, qualities)
}

func (s *NetkitSuite) TestUpload_NilImage() {
	form := UploadForm{
		Params: map[string]string{"title": "My Upload"},
		Images: map[string]image.Image{"photo": (*image.RGBA)(nil), "thumbnail": testImage()},
	}

	results := make(chan result, 1)
	s.api.UploadCallback(context.Background(), s.srv.URL+"/upload", form, func(body string, ok bool) {
		results <- result{body: body, ok: ok}
	})
	res := <-results
	s.Require().True(res.ok)

	body := gjson.Parse(res.body)
	s.Equal("My Upload", body.Get("form.title").String())
	s.False(body.Get("files.photo").Exists())
	s.True(body.Get("files.thumbnail").Exists())

	dropped := s.logs.FilterMessage("upload asset dropped").All()
	s.Require().Len(dropped, 1)
	s.Equal("photo", dropped[0].ContextMap()["field"])
	s.Equal("image is nil", dropped[0].ContextMap()["error"])
}

func (s *NetkitSuite) TestUpload_NoEncoderOrResolver() {
	core, logs := observer.New(zapcore.WarnLevel)
	api := New(
		WithClient(client.NewTestClient()),
		WithQueue(s.queue),
		WithLogger(zap.New(core)),
		WithImageEncoder(nil),
		WithResolver(nil),
	)

	form := UploadForm{
		Params: map[string]string{"title": "My Upload"},
		Videos: map[string]string{"video": "s3://bucket/video.mp4"},
		Images: map[string]image.Image{"photo": testImage()},
	}

	results := make(chan result, 1)
	api.UploadCallback(context.Background(), s.srv.URL+"/upload", form, func(body string, ok bool) {
		results <- result{body: body, ok: ok}
	})
	res := <-results
	s.Require().True(res.ok)

	body := gjson.Parse(res.body)
	s.Equal("My Upload", body.Get("form.title").String())
	s.False(body.Get("files.video").Exists())
	s.False(body.Get("files.photo").Exists())

	dropped := logs.FilterMessage("upload asset dropped").All()
	s.Require().Len(dropped, 2)
	s.Equal("no asset resolver is configured", dropped[0].ContextMap()["error"])
	s.Equal("no image encoder is configured", dropped[1].ContextMap()["error"])
}

func (s *NetkitSuite) TestUpload_InvalidURL() {
	_, err := s.api.Upload(context.Background(), "invalid", UploadForm{Params: map[string]string{"foo": "bar"}})
	s.ErrorIs(err, request.ErrInvalidURL)
}

func (s *NetkitSuite) TestConcurrentCalls() {
	s.hdl = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			time.Sleep(300 * time.Millisecond)
		}
		_, _ = w.Write([]byte(r.URL.Path))
	}

	results := make(chan string, 2)
	callback := func(body string, ok bool) {
		s.True(ok)
		results <- body
	}
	s.api.GetCallback(context.Background(), s.srv.URL+"/slow", nil, callback)
	s.api.GetCallback(context.Background(), s.srv.URL+"/fast", nil, callback)

	s.Equal("/fast", <-results)
	s.Equal("/slow", <-results)
}

func (s *NetkitSuite) TestDefaultQueue() {
	api := New(WithClient(client.NewTestClient()))

	results := make(chan result, 1)
	api.GetCallback(context.Background(), s.srv.URL+"/get", nil, func(body string, ok bool) {
		results <- result{body: body, ok: ok}
	})
	res := <-results
	s.True(res.ok)
	s.Equal("/get", gjson.Get(res.body, "path").String())
}

func (s *NetkitSuite) TestLogger_DefaultClient() {
	core, logs := observer.New(zapcore.InfoLevel)
	api := New(WithQueue(s.queue), WithLogger(zap.New(core)))

	outcome, err := api.Get(context.Background(), s.srv.URL+"/get", nil)
	s.Require().NoError(err)
	s.True(outcome.Success)

	processed := logs.FilterMessage("http request processed").All()
	s.Require().Len(processed, 1)
	s.Equal("netkit.http", processed[0].LoggerName)
	s.Equal(s.srv.URL+"/get", processed[0].ContextMap()["http.url"])
	s.Equal(true, processed[0].ContextMap()["success"])
}

// echo responds with a JSON description of the request.
func echo(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"args":   flatten(r.URL.Query()),
		"header": map[string]string{
			"content_type": r.Header.Get("Content-Type"),
			"x_test":       r.Header.Get("X-Test"),
		},
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		files := make(map[string]any)
		for key, headers := range r.MultipartForm.File {
			file, err := headers[0].Open()
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			data, _ := io.ReadAll(file)
			_ = file.Close()
			item := map[string]any{
				"filename":     headers[0].Filename,
				"content_type": headers[0].Header.Get("Content-Type"),
				"size":         len(data),
			}
			if utf8.Valid(data) {
				item["content"] = string(data)
			}
			files[key] = item
		}
		out["form"] = flatten(r.MultipartForm.Value)
		out["files"] = files
	} else if err := r.ParseForm(); err == nil {
		out["form"] = flatten(r.PostForm)
	}

	body, err := codec.Marshal(out)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func jsonResponse(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func flatten(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v[0]
	}
	return out
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := range 4 {
		for y := range 4 {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 128, A: 255})
		}
	}
	return img
}
