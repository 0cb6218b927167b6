package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"gv-go/internal/gv"
)

type itemEnvelope[T any] struct {
	Data *T `json:"data"`
}

type listEnvelope[T any] struct {
	Data []T        `json:"data"`
	Meta *gv.Cursor `json:"meta"`
}

type deleteEnvelope struct {
	Success *bool `json:"success"`
}

// Resource is the REST client for one resource family mounted at path.
type Resource[T gv.Entity] struct {
	c    *Client
	path string
}

var _ gv.Resource[gv.Donation] = (*Resource[gv.Donation])(nil)

// NewResource creates a client for the resource at path.
func NewResource[T gv.Entity](c *Client, path string) *Resource[T] {
	return &Resource[T]{c: c, path: path}
}

func (r *Resource[T]) itemPath(id int64, rest ...string) string {
	p := r.path + "/" + strconv.FormatInt(id, 10)
	for _, s := range rest {
		p += "/" + s
	}
	return p
}

// List fetches one page. Filters are sent as query parameters.
func (r *Resource[T]) List(ctx context.Context, q gv.ListQuery) (gv.Page[T], error) {
	return listPage[T](ctx, r.c, r.path, q)
}

func listPage[T gv.Entity](ctx context.Context, c *Client, path string, q gv.ListQuery) (gv.Page[T], error) {
	query := url.Values{}
	page := q.Page
	if page < 1 {
		page = 1
	}
	query.Set("page", strconv.Itoa(page))
	for k, v := range q.Filters {
		query.Set(k, v)
	}

	_, body, err := c.do(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return gv.Page[T]{}, err
	}

	var env listEnvelope[T]
	if err := decode(body, &env); err != nil {
		return gv.Page[T]{}, err
	}
	if env.Data == nil {
		return gv.Page[T]{}, gv.Malformed(errors.New("list response missing data"))
	}
	if env.Meta == nil {
		return gv.Page[T]{}, gv.Malformed(errors.New("list response missing meta"))
	}
	if err := env.Meta.Validate(); err != nil {
		return gv.Page[T]{}, gv.Malformed(err)
	}
	for _, e := range env.Data {
		if err := e.Validate(); err != nil {
			return gv.Page[T]{}, gv.Malformed(err)
		}
	}
	return gv.Page[T]{Items: env.Data, Cursor: *env.Meta}, nil
}

// Get fetches one entity. A 404 yields (nil, nil).
func (r *Resource[T]) Get(ctx context.Context, id int64) (*T, error) {
	_, body, err := r.c.do(ctx, request{method: http.MethodGet, path: r.itemPath(id)})
	if err != nil {
		if errors.Is(err, gv.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return decodeItem[T](body)
}

func decodeItem[T gv.Entity](body []byte) (*T, error) {
	var env itemEnvelope[T]
	if err := decode(body, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, gv.Malformed(errors.New("response missing data"))
	}
	if err := (*env.Data).Validate(); err != nil {
		return nil, gv.Malformed(err)
	}
	return env.Data, nil
}

// Create posts p. Attachments switch the body to multipart/form-data.
func (r *Resource[T]) Create(ctx context.Context, p gv.Payload) (*T, error) {
	req, err := payloadRequest(http.MethodPost, r.path, p)
	if err != nil {
		return nil, err
	}
	_, body, err := r.c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeItem[T](body)
}

// Update patches id with p. With attachments the request is a multipart
// POST carrying _method=PATCH, which the platform honours as a method override.
func (r *Resource[T]) Update(ctx context.Context, id int64, p gv.Payload) (*T, error) {
	req, err := payloadRequest(http.MethodPatch, r.itemPath(id), p)
	if err != nil {
		return nil, err
	}
	_, body, err := r.c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeItem[T](body)
}

// Delete removes id. The server must confirm with success=true or 204.
func (r *Resource[T]) Delete(ctx context.Context, id int64) error {
	status, body, err := r.c.do(ctx, request{method: http.MethodDelete, path: r.itemPath(id), write: true})
	if err != nil {
		return err
	}
	if status == http.StatusNoContent {
		return nil
	}
	var env deleteEnvelope
	if err := decode(body, &env); err != nil {
		return err
	}
	if env.Success == nil {
		return gv.Malformed(errors.New("delete response missing success"))
	}
	if !*env.Success {
		return &gv.Error{Kind: gv.KindServer, Status: status, Message: "delete not confirmed"}
	}
	return nil
}

func payloadRequest(method, path string, p gv.Payload) (request, error) {
	if len(p.Attachments) == 0 {
		fields := p.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		body, err := jsonBody(fields)
		if err != nil {
			return request{}, err
		}
		return request{method: method, path: path, body: body, contentType: "application/json", write: true}, nil
	}

	fields := make(map[string]any, len(p.Fields)+1)
	for k, v := range p.Fields {
		fields[k] = v
	}
	if method != http.MethodPost {
		fields["_method"] = method
		method = http.MethodPost
	}
	body, contentType, err := multipartBody(fields, p.Attachments)
	if err != nil {
		return request{}, err
	}
	return request{method: method, path: path, body: body, contentType: contentType, write: true}, nil
}

// multipartBody encodes fields and attachments. Attachments are buffered so
// the request can be built before any network I/O.
func multipartBody(fields map[string]any, attachments []gv.Attachment) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := w.WriteField(k, formValue(v)); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", k, err)
		}
	}
	for _, a := range attachments {
		if err := writeAttachment(w, a); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finalizing multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func writeAttachment(w *multipart.Writer, a gv.Attachment) error {
	rc, err := a.Open()
	if err != nil {
		return fmt.Errorf("opening attachment %s: %w", a.FileName(), err)
	}
	defer rc.Close()

	part, err := w.CreateFormFile(a.FieldName(), a.FileName())
	if err != nil {
		return fmt.Errorf("creating form file %s: %w", a.FileName(), err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("copying attachment %s: %w", a.FileName(), err)
	}
	return nil
}

func formValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return "0"
	case nil:
		return ""
	case fmt.Stringer:
		return t.String()
	default:
		if b, err := json.Marshal(t); err == nil {
			return string(bytes.Trim(b, `"`))
		}
		return fmt.Sprint(t)
	}
}
