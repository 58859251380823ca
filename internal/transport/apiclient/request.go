package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(v string) string {
	return quoteEscaper.Replace(v)
}

// Request describes one call. Path is either relative to the routed base URL
// or an absolute URL that bypasses routing and header injection.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header

	// At most one of JSON and Form is set.
	JSON any
	Form *Form
}

// Form is a multipart/form-data body.
type Form struct {
	Values url.Values
	Files  []FilePart
}

// FilePart is one uploaded file of a Form.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Content     []byte
}

// Response is a completed call. Failure is set when the status was classified
// and already reported to the user; the call is then not an error.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Failure    *Classification
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals a successful body into out.
func (r *Response) Decode(out any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("decode response: empty body")
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// encodeBody returns the body reader and its content type.
func (r Request) encodeBody() (io.Reader, string, error) {
	switch {
	case r.JSON != nil && r.Form != nil:
		return nil, "", fmt.Errorf("request has both a JSON and a form body")
	case r.JSON != nil:
		payload, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("encode json body: %w", err)
		}
		return bytes.NewReader(payload), "application/json", nil
	case r.Form != nil:
		return r.Form.encode()
	default:
		return nil, "", nil
	}
}

func (f *Form) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(f.Values))
	for k := range f.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range f.Values[k] {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", fmt.Errorf("encode form field %s: %w", k, err)
			}
		}
	}

	for _, file := range f.Files {
		part, err := createFilePart(w, file)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, "", fmt.Errorf("encode form file %s: %w", file.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func createFilePart(w *multipart.Writer, file FilePart) (io.Writer, error) {
	if file.ContentType == "" {
		part, err := w.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return nil, fmt.Errorf("encode form file %s: %w", file.Field, err)
		}
		return part, nil
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(file.Field), escapeQuotes(file.Filename)))
	h.Set("Content-Type", file.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("encode form file %s: %w", file.Field, err)
	}
	return part, nil
}
