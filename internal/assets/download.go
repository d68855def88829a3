package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	stdErrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const sniffLen = 3072

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".svg": true, ".avif": true, ".bmp": true, ".ico": true, ".tif": true, ".tiff": true,
}

// payload is the fetched or decoded image before it is written under its final name.
type payload struct {
	tmpPath  string // set for streamed downloads
	data     []byte // set for inline images
	ext      string
	declared string // media type from Content-Type or the data URI
}

// decodeDataURI decodes data:[<mediatype>][;base64],<data>.
func decodeDataURI(ref string, maxBytes int64) (*payload, error) {
	rest, ok := cutPrefixFold(ref, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URI")
	}
	meta, data, found := strings.Cut(rest, ",")
	if !found {
		return nil, fmt.Errorf("malformed data URI: missing ','")
	}
	isBase64 := false
	if m, ok := cutSuffixFold(meta, ";base64"); ok {
		meta, isBase64 = m, true
	}

	var raw []byte
	if isBase64 {
		clean := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, data)
		if int64(base64.StdEncoding.DecodedLen(len(clean))) > maxBytes+3 {
			return nil, fmt.Errorf("inline image exceeds %d bytes", maxBytes)
		}
		var err error
		raw, err = base64.StdEncoding.DecodeString(clean)
		if err != nil {
			raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(clean, "="))
			if err != nil {
				return nil, fmt.Errorf("decode base64 payload: %w", err)
			}
		}
	} else {
		unescaped, err := url.PathUnescape(data)
		if err != nil {
			return nil, fmt.Errorf("decode data URI payload: %w", err)
		}
		raw = []byte(unescaped)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty inline image")
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("inline image exceeds %d bytes", maxBytes)
	}

	mediaType, _, _ := mime.ParseMediaType(meta)
	ext, err := imageExtension("", mediaType, raw)
	if err != nil {
		return nil, err
	}
	return &payload{data: raw, ext: ext, declared: mediaType}, nil
}

// download streams src into a temporary file inside dir.
func (m *Materializer) download(ctx context.Context, src string) (*payload, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "image/*")
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body := io.LimitReader(resp.Body, m.maxBytes+1)
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !stdErrors.Is(err, io.ErrUnexpectedEOF) && !stdErrors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read body: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	declared, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	u, _ := url.Parse(src)
	urlPath := ""
	if u != nil {
		urlPath = u.Path
	}
	ext, err := imageExtension(urlPath, declared, head)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(m.dir, ".asset-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	written, err := io.Copy(tmp, io.MultiReader(bytes.NewReader(head), body))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > m.maxBytes {
		err = fmt.Errorf("image exceeds %d bytes", m.maxBytes)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("write image: %w", err)
	}
	return &payload{tmpPath: tmp.Name(), ext: ext, declared: declared}, nil
}

// imageExtension picks the file extension from the URL path, then the sniffed
// bytes, then the declared media type. Content that is not an image is rejected.
func imageExtension(urlPath, declared string, head []byte) (string, error) {
	detected := mimetype.Detect(head)
	isImage := strings.HasPrefix(detected.String(), "image/")
	declaredImage := strings.HasPrefix(declared, "image/")
	if !isImage && !declaredImage {
		return "", fmt.Errorf("content is %s, not an image", detected.String())
	}

	if ext := strings.ToLower(path.Ext(urlPath)); imageExtensions[ext] {
		return ext, nil
	}
	if isImage && detected.Extension() != "" {
		return detected.Extension(), nil
	}
	if declaredImage {
		if mt := mimetype.Lookup(declared); mt != nil && mt.Extension() != "" {
			return mt.Extension(), nil
		}
		if exts, _ := mime.ExtensionsByType(declared); len(exts) > 0 {
			return exts[0], nil
		}
	}
	return ".img", nil
}

// place moves the payload to dir/name+ext and returns the final path.
func (p *payload) place(dir, base string) (string, error) {
	dest := filepath.Join(dir, base+p.ext)
	if p.tmpPath != "" {
		if err := os.Rename(p.tmpPath, dest); err != nil {
			_ = os.Remove(p.tmpPath)
			return "", fmt.Errorf("rename image: %w", err)
		}
		return dest, nil
	}
	tmp, err := os.CreateTemp(dir, ".asset-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	_, err = tmp.Write(p.data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), dest)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write image: %w", err)
	}
	return dest, nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

func cutSuffixFold(s, suffix string) (string, bool) {
	if len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s[:len(s)-len(suffix)], true
	}
	return s, false
}
