package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"mediascribe-backend/internal/domain"
)

// submitChunkSize bounds each multipart request sent to the transcription
// service; the service reassembles the pieces on its side.
const submitChunkSize = 2 * 1024 * 1024

// Client is the interface to the external speech-to-text service.
type Client interface {
	// SubmitFile streams the assembled media bytes to the transcriber and
	// returns the opaque job id it assigned.
	SubmitFile(ctx context.Context, fileID, filename, contentType string, data io.Reader) (string, error)
	// Status fetches the job's current state. The detail string carries the
	// terminal payload or failure reason when present.
	Status(ctx context.Context, jobID string) (domain.JobState, string, error)
	// Result fetches the raw result payload for a completed job.
	Result(ctx context.Context, jobID string) (string, error)
}

// HTTPClient talks to the transcription service over its chunked-upload HTTP
// API.
type HTTPClient struct {
	baseURL string
	http    *retryablehttp.Client
}

// NewHTTPClient creates a client for the service at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
	}
}

func (c *HTTPClient) SubmitFile(ctx context.Context, fileID, filename, contentType string, data io.Reader) (string, error) {
	buf := make([]byte, submitChunkSize)
	for index := 0; ; index++ {
		n, err := io.ReadFull(data, buf)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return "", fmt.Errorf("read media for submission: %w", err)
		}
		if sendErr := c.sendChunk(ctx, fileID, filename, contentType, index, buf[:n]); sendErr != nil {
			return "", sendErr
		}
		if err == io.ErrUnexpectedEOF {
			break
		}
	}
	return c.finalize(ctx, fileID)
}

func (c *HTTPClient) sendChunk(ctx context.Context, fileID, filename, contentType string, index int, chunk []byte) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("session_id", fileID); err != nil {
		return err
	}
	if err := w.WriteField("chunk_index", strconv.Itoa(index)); err != nil {
		return err
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := part.Write(chunk); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload_chunk", body.Bytes())
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: chunk %d upload: %v", domain.ErrExternalCall, index, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: chunk %d upload returned status %d", domain.ErrExternalCall, index, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) finalize(ctx context.Context, fileID string) (string, error) {
	payload, err := json.Marshal(map[string]string{"session_id": fileID})
	if err != nil {
		return "", err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/finalize_upload", payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: finalize upload: %v", domain.ErrExternalCall, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: finalize upload returned status %d", domain.ErrExternalCall, resp.StatusCode)
	}

	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: invalid finalize response: %v", domain.ErrExternalCall, err)
	}
	jobID, ok := strings.CutPrefix(parsed.Message, "Job started with ID: ")
	if !ok || jobID == "" {
		return "", fmt.Errorf("%w: missing job id in finalize response", domain.ErrExternalCall)
	}
	return jobID, nil
}

func (c *HTTPClient) Status(ctx context.Context, jobID string) (domain.JobState, string, error) {
	body, err := c.get(ctx, "status", jobID)
	if err != nil {
		return "", "", err
	}

	var parsed struct {
		Status string `json:"status"`
		Data   string `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", fmt.Errorf("%w: invalid status response: %v", domain.ErrExternalCall, err)
	}

	switch parsed.Status {
	case "Pending":
		return domain.JobPending, parsed.Data, nil
	case "Completed":
		return domain.JobCompleted, parsed.Data, nil
	case "Failed":
		return domain.JobFailed, parsed.Data, nil
	default:
		return "", "", fmt.Errorf("%w: unknown job status %q", domain.ErrExternalCall, parsed.Status)
	}
}

func (c *HTTPClient) Result(ctx context.Context, jobID string) (string, error) {
	body, err := c.get(ctx, "result", jobID)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *HTTPClient) get(ctx context.Context, endpoint, jobID string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/%s", c.baseURL, endpoint, jobID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s request: %v", domain.ErrExternalCall, endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s request returned status %d", domain.ErrExternalCall, endpoint, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
