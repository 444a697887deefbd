package detector

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// HTTPClient sends frames to external inference service and reads back card instances.
// Request is multipart form with PNG encoded "file" and "conf", "iou", "imgsz" fields.
type HTTPClient struct {
	inferenceURL string
	params       Params
	client       *http.Client
}

// NewHTTPClient creates HTTPClient. Zero timeout means no timeout
func NewHTTPClient(inferenceURL string, params Params, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		inferenceURL: strings.TrimRight(inferenceURL, "/"),
		params:       params,
		client:       &http.Client{Timeout: timeout},
	}
}

// Detect implements Detector
func (c *HTTPClient) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.png")
	if err != nil {
		return nil, errors.Wrap(err, "Can't create form file")
	}
	if err := png.Encode(part, img); err != nil {
		return nil, errors.Wrap(err, "Can't encode frame")
	}
	fields := map[string]string{
		"conf":  strconv.FormatFloat(c.params.Confidence, 'f', -1, 64),
		"iou":   strconv.FormatFloat(c.params.IoU, 'f', -1, 64),
		"imgsz": strconv.Itoa(c.params.Size),
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, errors.Wrapf(err, "Can't write field %s", k)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "Can't finalize form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.inferenceURL+"/detect", body)
	if err != nil {
		return nil, errors.Wrap(err, "Can't create request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "Can't send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	var result wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "Can't decode response")
	}
	return Filter(fromWire(result.Detections), c.params.Confidence, c.params.IoU), nil
}

// CheckHealth checks inference service availability
func (c *HTTPClient) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.inferenceURL+"/health", nil)
	if err != nil {
		return errors.Wrap(err, "Can't create request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "Can't reach inference service")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
