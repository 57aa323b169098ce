package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/wagateway/pkg/gwerr"
)

// InlineMedia turns a media source into a base64 data URL for the
// internal backend, which only accepts inline payloads. Sources already
// in data URL form pass through. Remote downloads are bounded by both a
// timeout and a byte cap because the URL is attacker-suppliable.
func InlineMedia(ctx context.Context, source string, maxBytes int64, timeout time.Duration) (string, error) {
	if strings.HasPrefix(source, "data:") {
		return source, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, source, nil)
	if err != nil {
		return "", errors.Wrap(err, "build media request")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", errors.Wrap(gwerr.ErrProviderUnreachable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(gwerr.ErrProviderLogical, "media download returned status %d", resp.StatusCode)
	}
	if resp.ContentLength > maxBytes {
		return "", fmt.Errorf("media exceeds size cap of %d bytes", maxBytes)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return "", errors.Wrap(err, "read media body")
	}
	if int64(len(body)) > maxBytes {
		return "", fmt.Errorf("media exceeds size cap of %d bytes", maxBytes)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(body)
	}
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}
