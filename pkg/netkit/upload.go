package netkit

import (
	"context"
	"errors"
	"image"
	"maps"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/keboola/go-netkit/pkg/formdata"
	"github.com/keboola/go-netkit/pkg/request"
)

var (
	errNoResolver     = errors.New("no asset resolver is configured")
	errNoImageEncoder = errors.New("no image encoder is configured")
)

// UploadForm is the content of a multipart upload.
type UploadForm struct {
	// Params are sent as text fields.
	Params map[string]string
	// Videos map a field name to a file reference, see asset.Resolver.
	Videos map[string]string
	// Images are encoded by the image encoder.
	Images map[string]image.Image
	// Audios map a field name to a file reference, see asset.Resolver.
	Audios map[string]string
	// CompressionQuality of the images in the (0, 1] interval, 0 means the best quality.
	CompressionQuality float64
}

// Upload sends the multipart POST request.
// All assets are read into memory before the request is sent.
// An asset which cannot be read or encoded is left out of the request, the failure is logged.
func (a *API) Upload(ctx context.Context, url string, form UploadForm, opts ...CallOption) (request.Outcome, error) {
	fields := a.uploadFields(ctx, form)
	boundary := formdata.NewBoundary(fields...)
	body := formdata.Build(boundary, fields)
	return a.newRequest(http.MethodPost, url, opts).WithBody(body, formdata.ContentType(boundary)).Send(ctx)
}

// UploadCallback is the callback form of the Upload method.
// On failure the callback gets an empty body and false.
func (a *API) UploadCallback(ctx context.Context, url string, form UploadForm, callback func(body string, ok bool), opts ...CallOption) {
	a.deliver(func() func() {
		outcome, err := a.Upload(ctx, url, form, opts...)
		return outcomeCallback(outcome, err, callback)
	})
}

// uploadFields converts the form to fields: params, videos, images, audios, each group sorted by key.
func (a *API) uploadFields(ctx context.Context, form UploadForm) []formdata.Field {
	var fields []formdata.Field

	for _, key := range slices.Sorted(maps.Keys(form.Params)) {
		fields = append(fields, formdata.Text(key, form.Params[key]))
	}

	for _, key := range slices.Sorted(maps.Keys(form.Videos)) {
		if data, ok := a.resolveAsset(ctx, formdata.KindVideo, key, form.Videos[key]); ok {
			fields = append(fields, formdata.Video(key, data))
		}
	}

	for _, key := range slices.Sorted(maps.Keys(form.Images)) {
		if data, ok := a.encodeImage(key, form.Images[key], form.CompressionQuality); ok {
			fields = append(fields, formdata.Image(key, data))
		}
	}

	for _, key := range slices.Sorted(maps.Keys(form.Audios)) {
		if data, ok := a.resolveAsset(ctx, formdata.KindAudio, key, form.Audios[key]); ok {
			fields = append(fields, formdata.Audio(key, data))
		}
	}

	return fields
}

func (a *API) resolveAsset(ctx context.Context, kind formdata.Kind, key, ref string) ([]byte, bool) {
	var data []byte
	err := errNoResolver
	if a.resolver != nil {
		data, err = a.resolver.Resolve(ctx, ref)
	}
	if err != nil {
		a.logger.Warn("upload asset dropped", zap.String("field", key), zap.Stringer("kind", kind), zap.String("ref", ref), zap.Error(err))
		return nil, false
	}
	return data, true
}

func (a *API) encodeImage(key string, img image.Image, quality float64) ([]byte, bool) {
	var data []byte
	err := errNoImageEncoder
	if a.images != nil {
		data, err = a.images.Encode(img, quality)
	}
	if err != nil {
		a.logger.Warn("upload asset dropped", zap.String("field", key), zap.Stringer("kind", formdata.KindImage), zap.Error(err))
		return nil, false
	}
	return data, true
}
