package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"attendance-kiosk/internal/metrics"
	"attendance-kiosk/internal/model"
)

// ErrNotRecognized is returned by Recognize when the API answers 404.
var ErrNotRecognized = errors.New("person not recognized")

// APIError is a non-2xx answer from the attendance API.
type APIError struct {
	StatusCode int
	Status     string
	// Detail is the server-provided "detail" message, empty when the body
	// had none.
	Detail string
	// Body is the raw (truncated) response body.
	Body string
}

func (e *APIError) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("attendance api error %s: %s", e.Status, e.Detail)
	case e.Body != "":
		return fmt.Sprintf("attendance api error %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("attendance api error %s", e.Status)
}

// Detail returns the server-provided detail carried by err, if any.
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// Client calls the remote face-recognition/attendance API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client with the given request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Recognize submits one JPEG frame for identification.
func (c *Client) Recognize(ctx context.Context, frame []byte) (*model.RecognizedUser, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := writeJPEG(w, "image", "capture.jpg", frame); err != nil {
		return nil, err
	}
	w.Close()

	var out model.RecognizedUser
	err := c.do(ctx, "recognize", http.MethodPost, "/recognize/", w.FormDataContentType(), &buf, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrNotRecognized
		}
		return nil, err
	}
	return &out, nil
}

// CheckDocument reports whether a document number is already registered.
func (c *Client) CheckDocument(ctx context.Context, documentNumber string) (bool, error) {
	if documentNumber == "" {
		return false, fmt.Errorf("document number required")
	}
	var out struct {
		Exists bool `json:"exists"`
	}
	path := "/check-document/" + url.PathEscape(documentNumber)
	if err := c.do(ctx, "check_document", http.MethodGet, path, "", nil, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

// GradeLevels fetches the grade catalog.
func (c *Client) GradeLevels(ctx context.Context) (model.GradeCatalog, error) {
	out := model.GradeCatalog{}
	if err := c.do(ctx, "grades", http.MethodGet, "/grades/levels", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateUser registers a new user together with their face image.
func (c *Client) CreateUser(ctx context.Context, user model.NewUser, face []byte) (json.RawMessage, error) {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("user", string(userJSON)); err != nil {
		return nil, err
	}
	if err := writeJPEG(w, "face_image", "face.jpg", face); err != nil {
		return nil, err
	}
	w.Close()

	var out json.RawMessage
	if err := c.do(ctx, "create_user", http.MethodPost, "/users/", w.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Attendance fetches statistics and absences for a date range (YYYY-MM-DD).
func (c *Client) Attendance(ctx context.Context, start, end string) (*model.AttendanceReport, error) {
	q := url.Values{}
	q.Set("start_date", start)
	q.Set("end_date", end)

	var out model.AttendanceReport
	if err := c.do(ctx, "attendance", http.MethodGet, "/attendance/?"+q.Encode(), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NonWorkingDays lists configured non-working days. A body that is not a
// list decodes to an empty result.
func (c *Client) NonWorkingDays(ctx context.Context) ([]model.NonWorkingDay, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "non_working_days", http.MethodGet, "/non-working-days/", "", nil, &raw); err != nil {
		return nil, err
	}
	var days []model.NonWorkingDay
	if err := json.Unmarshal(raw, &days); err != nil {
		return []model.NonWorkingDay{}, nil
	}
	if days == nil {
		days = []model.NonWorkingDay{}
	}
	return days, nil
}

// AddNonWorkingDay creates a non-working day. The API takes form fields.
func (c *Client) AddNonWorkingDay(ctx context.Context, day model.NonWorkingDay) error {
	form := url.Values{}
	form.Set("date", day.Date)
	form.Set("description", day.Description)
	form.Set("type", string(day.Type))

	return c.do(ctx, "non_working_days", http.MethodPost, "/non-working-days/",
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()), nil)
}

// DeleteNonWorkingDay removes a non-working day by id.
func (c *Client) DeleteNonWorkingDay(ctx context.Context, id int) error {
	return c.do(ctx, "non_working_days", http.MethodDelete, "/non-working-days/"+strconv.Itoa(id), "", nil, nil)
}

// Health checks that the API answers at all.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("attendance api unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("attendance api unhealthy: %s", resp.Status)
	}
	return nil
}

// do sends one request and decodes a JSON answer into out when out is non-nil.
func (c *Client) do(ctx context.Context, endpoint, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	started := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		metrics.ObserveAPI(endpoint, 0, started)
		return fmt.Errorf("attendance api request failed: %w", err)
	}
	defer resp.Body.Close()
	metrics.ObserveAPI(endpoint, resp.StatusCode, started)

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Detail:     parseDetail(bodyBytes),
			Body:       strings.TrimSpace(string(bodyBytes)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

func writeJPEG(w *multipart.Writer, field, filename string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create %s part: %w", field, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write %s part: %w", field, err)
	}
	return nil
}

// parseDetail extracts the "detail" member of an error body. Validation
// errors arrive as a list of objects with a "msg" field.
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(payload.Detail)
}
