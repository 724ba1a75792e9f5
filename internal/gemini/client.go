package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultImageModel = "gemini-3-pro-image-preview"

type Options struct {
	APIKey     string
	Keys       KeySource
	BaseURL    string
	APIVersion string
	ImageModel string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	keys       KeySource
	baseURL    string
	apiVersion string
	imageModel string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = defaultImageModel
	}

	keys := opts.Keys
	if keys == nil {
		keys = StaticKey(opts.APIKey)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		keys:       keys,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		imageModel: imageModel,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

// GenerateImage returns the first image of the response. Extra images are
// dropped; a response with none yields ErrNoImage.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (Image, error) {
	images, err := c.Images(ctx, req)
	if err != nil {
		return Image{}, err
	}
	return images[0], nil
}

// Images returns every image in the first candidate, never an empty slice
// without an error.
func (c *Client) Images(ctx context.Context, req ImageRequest) ([]Image, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("prompt is empty")
	}

	payload := generateContentRequest{
		Contents: []content{{Role: "user", Parts: buildParts(req)}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE"},
		},
	}
	if req.AspectRatio != "" || req.ImageSize != "" {
		payload.GenerationConfig.ImageConfig = &imageConfig{
			AspectRatio: req.AspectRatio,
			ImageSize:   req.ImageSize,
		}
	}

	start := time.Now()
	resp, err := c.generateContent(ctx, c.imageModel, payload)
	if err != nil {
		return nil, err
	}

	images, err := extractImages(resp)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, ErrNoImage
	}

	c.logger.Debug("image generated", "model", c.imageModel, "aspect_ratio", req.AspectRatio, "images", len(images), "dur_ms", time.Since(start).Milliseconds())
	return images, nil
}

func buildParts(req ImageRequest) []part {
	parts := []part{{Text: strings.TrimSpace(req.Prompt)}}
	for _, img := range req.Images {
		if len(img.Data) == 0 {
			continue
		}
		mimeType := img.MimeType
		if mimeType == "" {
			mimeType = http.DetectContentType(img.Data)
		}
		parts = append(parts, part{InlineData: &blob{
			Data:     base64.StdEncoding.EncodeToString(img.Data),
			MimeType: mimeType,
		}})
		if caption := strings.TrimSpace(img.Caption); caption != "" {
			parts = append(parts, part{Text: caption})
		}
	}
	return parts
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (generateContentResponse, error) {
	if c.httpClient == nil {
		return generateContentResponse{}, errors.New("http client is nil")
	}

	apiKey := strings.TrimSpace(c.keys.APIKey())
	if apiKey == "" {
		return generateContentResponse{}, errors.New("gemini API key is not set")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return generateContentResponse{}, &APIError{
			StatusCode: httpResp.StatusCode,
			Status:     httpResp.Status,
			Message:    errorMessage(rawBody),
		}
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return generateContentResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return decoded, nil
}

func extractImages(resp generateContentResponse) ([]Image, error) {
	if len(resp.Candidates) == 0 {
		return nil, nil
	}

	var images []Image
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		mimeType := p.InlineData.MimeType
		if mimeType == "" {
			mimeType = "image/png"
		}
		images = append(images, Image{MimeType: mimeType, Data: data})
	}
	return images, nil
}

func errorMessage(raw []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return strings.TrimSpace(string(raw))
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}
