// Package aiclient is the transport to the external AI inference service:
// a unary HTTP/JSON call for one-off embedding extraction, and a websocket
// stream for per-camera continuous face detection.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sentryvms/facecore/internal/domain"
)

// Client talks to one AI service instance.
type Client struct {
	BaseURL    string
	WSBaseURL  string
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

func New(baseURL, wsBaseURL string) *Client {
	return &Client{
		BaseURL:   baseURL,
		WSBaseURL: wsBaseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

type extractRequest struct {
	Image []byte `json:"image"`
}

type extractResponse struct {
	Success      bool                 `json:"success"`
	ErrorCode    string               `json:"errorCode"`
	ErrorMessage string               `json:"errorMessage"`
	FaceDetected bool                 `json:"faceDetected"`
	Faces        []wireDetectedFace   `json:"faces"`
}

type wireDetectedFace struct {
	BBox      domain.BBox        `json:"bbox"`
	Quality   domain.FaceQuality `json:"quality"`
	Embedding []float32          `json:"embedding"`
}

// ExtractEmbedding performs the unary extraction call.
func (c *Client) ExtractEmbedding(ctx context.Context, image []byte) (domain.ExtractResult, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(extractRequest{Image: image}); err != nil {
		return domain.ExtractResult{}, fmt.Errorf("encode extract request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/extract", &buf)
	if err != nil {
		return domain.ExtractResult{}, fmt.Errorf("build extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return domain.ExtractResult{}, fmt.Errorf("ai service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return domain.ExtractResult{}, fmt.Errorf("ai service error: status=%d", resp.StatusCode)
	}

	var wire extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return domain.ExtractResult{}, fmt.Errorf("decode extract response: %w", err)
	}

	faces := make([]domain.DetectedFace, 0, len(wire.Faces))
	for _, f := range wire.Faces {
		faces = append(faces, domain.DetectedFace{BBox: f.BBox, Quality: f.Quality, Embedding: f.Embedding})
	}

	return domain.ExtractResult{
		Success:      wire.Success,
		ErrorCode:    wire.ErrorCode,
		ErrorMessage: wire.ErrorMessage,
		FaceDetected: wire.FaceDetected,
		Faces:        faces,
	}, nil
}

// StreamConn is the minimal surface the supervisor needs from a live
// camera stream connection.
type StreamConn interface {
	ReadFrame() (domain.Frame, error)
	Close() error
}

type wireFrame struct {
	CameraID int64              `json:"cameraId"`
	FrameID  int64              `json:"frameId"`
	Faces    []wireDetectedFace `json:"faces"`
}

type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) ReadFrame() (domain.Frame, error) {
	var wire wireFrame
	if err := w.conn.ReadJSON(&wire); err != nil {
		return domain.Frame{}, err
	}
	faces := make([]domain.DetectedFace, 0, len(wire.Faces))
	for _, f := range wire.Faces {
		faces = append(faces, domain.DetectedFace{BBox: f.BBox, Quality: f.Quality, Embedding: f.Embedding})
	}
	return domain.Frame{CameraID: wire.CameraID, FrameID: wire.FrameID, Faces: faces}, nil
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

// OpenCameraStream opens the long-lived detection stream for one camera.
func (c *Client) OpenCameraStream(ctx context.Context, cameraID int64, streamURL string) (StreamConn, error) {
	endpoint := fmt.Sprintf("%s/v1/stream?cameraId=%d&streamUrl=%s", c.WSBaseURL, cameraID, streamURL)
	conn, _, err := c.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial ai stream: %w", err)
	}
	return &wsConn{conn: conn}, nil
}
