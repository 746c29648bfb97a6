// Command mock-ai-service is a standalone development/test double for the
// external AI inference service. It implements the same wire protocol
// internal/aiclient speaks: a unary POST /v1/extract and a websocket
// GET /v1/stream that emits synthetic detection frames.
package main

import (
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	addr := getEnv("MOCK_AI_LISTEN_ADDR", ":9500")
	frameIntervalMs := getEnvInt("MOCK_AI_FRAME_INTERVAL_MS", 200)
	embeddingDim := getEnvInt("MOCK_AI_EMBEDDING_DIM", 128)

	log.Printf("[mock-ai-service] listening on %s, frame interval %dms, embedding dim %d",
		addr, frameIntervalMs, embeddingDim)

	http.HandleFunc("/v1/extract", handleExtract(embeddingDim))
	http.HandleFunc("/v1/stream", handleStream(time.Duration(frameIntervalMs)*time.Millisecond, embeddingDim))

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[mock-ai-service] listen: %v", err)
	}
}

type extractRequest struct {
	Image []byte `json:"image"`
}

type wireBBox struct{ X, Y, W, H float64 }
type wireQuality struct {
	Overall    float64 `json:"overall"`
	Sharpness  float64 `json:"sharpness"`
	Brightness float64 `json:"brightness"`
	FacePx     int     `json:"facePx"`
}
type wireDetectedFace struct {
	BBox      wireBBox    `json:"bbox"`
	Quality   wireQuality `json:"quality"`
	Embedding []float32   `json:"embedding"`
}

type extractResponse struct {
	Success      bool               `json:"success"`
	FaceDetected bool               `json:"faceDetected"`
	Faces        []wireDetectedFace `json:"faces"`
}

func handleExtract(dim int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if len(req.Image) == 0 {
			json.NewEncoder(w).Encode(extractResponse{Success: true, FaceDetected: false})
			return
		}
		resp := extractResponse{
			Success:      true,
			FaceDetected: true,
			Faces: []wireDetectedFace{
				{
					BBox:      wireBBox{X: 10, Y: 10, W: 80, H: 80},
					Quality:   wireQuality{Overall: 0.9, Sharpness: 0.9, Brightness: 0.8, FacePx: 6400},
					Embedding: randomEmbedding(dim),
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

type wireFrame struct {
	CameraID int64              `json:"cameraId"`
	FrameID  int64              `json:"frameId"`
	Faces    []wireDetectedFace `json:"faces"`
}

func handleStream(interval time.Duration, dim int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cameraID, _ := strconv.ParseInt(r.URL.Query().Get("cameraId"), 10, 64)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[mock-ai-service] upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var frameID int64
		for range ticker.C {
			frameID++
			frame := wireFrame{CameraID: cameraID, FrameID: frameID}
			// Emit a face roughly one frame in five; otherwise a heartbeat frame.
			if rand.Intn(5) == 0 {
				frame.Faces = []wireDetectedFace{
					{
						BBox:      wireBBox{X: 5, Y: 5, W: 64, H: 64},
						Quality:   wireQuality{Overall: 0.85, Sharpness: 0.8, Brightness: 0.7, FacePx: 4096},
						Embedding: randomEmbedding(dim),
					},
				}
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}

func randomEmbedding(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = rand.Float32()*2 - 1
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
