package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/darshanvss/image-clipper/config"
	"github.com/darshanvss/image-clipper/utils"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// httpInputSide 远程推理服务固定的输入边长
const httpInputSide = 1024

// httpModel 远程推理后端
// 协议：POST {endpoint}/api/v1/encode 上传图片（multipart，image 字段），
// 返回 {"session_id": "..."}；POST {endpoint}/api/v1/decode 提交 JSON 提示，
// 每个提示返回一张灰度概率图（base64 PNG，灰度值/255 即概率）；
// POST {endpoint}/api/v1/release 释放会话
type httpModel struct {
	endpoint string
	client   *http.Client
}

// NewHTTPModel 构建远程推理后端
func NewHTTPModel(cfg *config.ModelConfig) (Model, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("model endpoint is empty")
	}
	return &httpModel{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type encodeResp struct {
	SessionID string `json:"session_id"`
}

func (m *httpModel) Prepare(ctx context.Context, img image.Image) (ImageSession, error) {
	// 统一缩放到固定边长，远程服务按固定输入工作
	scaled := image.NewNRGBA(image.Rect(0, 0, httpInputSide, httpInputSide))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	pngData, err := utils.EncodePNG(scaled)
	if err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "input.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(pngData); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	_ = writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/api/v1/encode", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp encodeResp
	if err := m.do(req, &resp); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if resp.SessionID == "" {
		return nil, fmt.Errorf("encode response missing session_id")
	}

	return &httpSession{model: m, sessionID: resp.SessionID}, nil
}

func (m *httpModel) Close() error {
	return nil
}

func (m *httpModel) do(req *http.Request, out any) error {
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("inference server returned %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type httpSession struct {
	model     *httpModel
	sessionID string
}

type decodeReq struct {
	SessionID string      `json:"session_id"`
	Prompts   [][]decodePt `json:"prompts"`
}

type decodePt struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label int     `json:"label"`
}

type decodeResp struct {
	Maps []struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		PNG    string `json:"png"`
	} `json:"maps"`
}

func (s *httpSession) Decode(ctx context.Context, prompts []Prompt) ([]ProbabilityMap, error) {
	reqBody := decodeReq{SessionID: s.sessionID, Prompts: make([][]decodePt, 0, len(prompts))}
	for _, prompt := range prompts {
		pts := make([]decodePt, 0, len(prompt))
		for _, p := range prompt {
			pts = append(pts, decodePt{X: p.X, Y: p.Y, Label: p.Label})
		}
		reqBody.Prompts = append(reqBody.Prompts, pts)
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.model.endpoint+"/api/v1/decode", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp decodeResp
	if err := s.model.do(req, &resp); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	maps := make([]ProbabilityMap, 0, len(resp.Maps))
	for _, m := range resp.Maps {
		pm, err := grayPNGToProbability(m.PNG, m.Width, m.Height)
		if err != nil {
			return nil, err
		}
		maps = append(maps, pm)
	}
	return maps, nil
}

func (s *httpSession) Destroy() {
	body := fmt.Sprintf(`{"session_id":%q}`, s.sessionID)
	req, err := http.NewRequest(http.MethodPost, s.model.endpoint+"/api/v1/release", bytes.NewReader([]byte(body)))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if err := s.model.do(req, nil); err != nil {
		utils.Logger.Warn("failed to release inference session",
			zap.String("session_id", s.sessionID), zap.Error(err))
	}
}

// grayPNGToProbability 灰度 PNG 概率图解码，灰度值/255 即概率
func grayPNGToProbability(encoded string, w, h int) (ProbabilityMap, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ProbabilityMap{}, fmt.Errorf("decode map base64: %w", err)
	}
	img, err := utils.DecodeImage(raw)
	if err != nil {
		return ProbabilityMap{}, fmt.Errorf("decode map png: %w", err)
	}

	b := img.Bounds()
	if w <= 0 || h <= 0 {
		w, h = b.Dx(), b.Dy()
	}
	if b.Dx() != w || b.Dy() != h {
		return ProbabilityMap{}, fmt.Errorf("map size mismatch: got %dx%d, declared %dx%d", b.Dx(), b.Dy(), w, h)
	}

	data := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			data[y*w+x] = float32(r) / 65535.0
		}
	}
	return ProbabilityMap{Width: w, Height: h, Data: data}, nil
}
