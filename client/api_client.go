package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/kendall-kelly/consulting-portal-api/utils"
)

// FileUpload is a file to attach to a chat message
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// APIClient calls the order chat endpoints with a bearer token
type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures an APIClient
type Option func(*APIClient)

// WithHTTPClient replaces the default 30s-timeout http.Client
func WithHTTPClient(c *http.Client) Option {
	return func(a *APIClient) {
		a.httpClient = c
	}
}

// NewAPIClient creates a client for the API rooted at baseURL (for example http://localhost:8080/api/v1)
func NewAPIClient(baseURL, token string, opts ...Option) *APIClient {
	a := &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func (a *APIClient) messagesURL(orderID string, suffix string) string {
	return fmt.Sprintf("%s/orders/%s/messages%s", a.baseURL, url.PathEscape(orderID), suffix)
}

// do sends req and decodes the data field of the envelope into out.
// Error envelopes come back as *utils.AppError carrying the HTTP status.
func (a *APIClient) do(req *http.Request, out interface{}) error {
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		if env.Error == nil {
			return utils.NewAppError(utils.CodeInternal, http.StatusText(resp.StatusCode), resp.StatusCode, nil)
		}
		appErr := utils.NewAppError(env.Error.Code, env.Error.Message, resp.StatusCode, nil)
		if len(env.Error.Details) > 0 {
			appErr.Details = env.Error.Details
		}
		return appErr
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// GetOrderMessages returns the order's messages, oldest first
func (a *APIClient) GetOrderMessages(ctx context.Context, orderID string) ([]models.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.messagesURL(orderID, ""), nil)
	if err != nil {
		return nil, err
	}
	var messages []models.Message
	if err := a.do(req, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendOrderMessage posts a text message
func (a *APIClient) SendOrderMessage(ctx context.Context, orderID, text string) (*models.Message, error) {
	body, err := json.Marshal(map[string]string{"message": text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.messagesURL(orderID, ""), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var msg models.Message
	if err := a.do(req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendOrderMessageWithAttachment streams file as a multipart upload alongside optional text
func (a *APIClient) SendOrderMessageWithAttachment(ctx context.Context, orderID, text string, file FileUpload) (*models.Message, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeAttachment(writer, text, file))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.messagesURL(orderID, "/attachment"), pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var msg models.Message
	if err := a.do(req, &msg); err != nil {
		_ = pr.Close()
		return nil, err
	}
	return &msg, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeAttachment(writer *multipart.Writer, text string, file FileUpload) error {
	if text != "" {
		if err := writer.WriteField("message", text); err != nil {
			return err
		}
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(file.Name)))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return err
	}
	return writer.Close()
}

// MarkOrderMessagesAsRead marks messages from other senders as read and returns how many changed
func (a *APIClient) MarkOrderMessagesAsRead(ctx context.Context, orderID string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.messagesURL(orderID, "/read"), nil)
	if err != nil {
		return 0, err
	}
	var out struct {
		Marked int64 `json:"marked"`
	}
	if err := a.do(req, &out); err != nil {
		return 0, err
	}
	return out.Marked, nil
}
