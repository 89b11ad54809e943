package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

const maxRedirects = 5

var (
	ErrEmptyImage = errors.New("image is empty")
	ErrNotImage   = errors.New("content is not an image")
)

// Fetcher downloads the temporary file the chat bot uploaded
type Fetcher struct {
	client *fasthttp.Client
}

func NewFetcher(maxBytes int, timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &fasthttp.Client{
			Name:                "receiptbot",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxResponseBodySize: maxBytes,
		},
	}
}

// FetchDataURL returns the image as "data:<mime>;base64,<payload>", ready to send to the vision model
func (f *Fetcher) FetchDataURL(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := f.client.DoRedirects(req, resp, maxRedirects); err != nil {
		return "", fmt.Errorf("downloading image: %w", err)
	}

	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return "", fmt.Errorf("downloading image: unexpected status %d", status)
	}

	body := resp.Body()
	if len(body) == 0 {
		return "", ErrEmptyImage
	}

	mime := contentType(string(resp.Header.ContentType()), body)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotImage, mime)
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}

// contentType trusts the header unless it is missing or generic
func contentType(header string, body []byte) string {
	mime := strings.TrimSpace(strings.SplitN(header, ";", 2)[0])
	if mime == "" || mime == "application/octet-stream" || mime == "binary/octet-stream" {
		mime = strings.SplitN(http.DetectContentType(body), ";", 2)[0]
	}
	return strings.ToLower(mime)
}
