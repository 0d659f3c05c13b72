package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"vqa-bot/internal/domain/entity"
	"vqa-bot/internal/domain/port"
)

const (
	BackendBLIP = "blip"

	// DefaultBLIPURL Hugging Face Inference API, модель Salesforce/blip-vqa-base
	DefaultBLIPURL = "https://api-inference.huggingface.co/models/Salesforce/blip-vqa-base"
)

type blipRequest struct {
	Inputs blipInputs `json:"inputs"`
}

type blipInputs struct {
	Image    string `json:"image"`
	Question string `json:"question"`
}

type blipCandidate struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
}

type blipError struct {
	Error string `json:"error"`
}

// BLIPClient ходит в HTTP-сервис с моделью VQA (формат Hugging Face)
type BLIPClient struct {
	httpClient *resty.Client
	url        string
}

// BLIPOptions параметры клиента
type BLIPOptions struct {
	URL     string
	Token   string
	Retries int // повторы на 503, пока модель прогревается
}

// NewBLIPClient создаёт клиента
func NewBLIPClient(opts BLIPOptions) *BLIPClient {
	url := opts.URL
	if url == "" {
		url = DefaultBLIPURL
	}

	httpClient := resty.New().
		SetDebug(false).
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() == http.StatusServiceUnavailable
		})
	if opts.Token != "" {
		httpClient.SetAuthToken(opts.Token)
	}

	return &BLIPClient{httpClient: httpClient, url: url}
}

// Answer отправляет изображение и вопрос, возвращает ответ с наибольшим score
func (c *BLIPClient) Answer(ctx context.Context, image entity.Image, question string) (*entity.Answer, error) {
	body := blipRequest{Inputs: blipInputs{
		Image:    base64.StdEncoding.EncodeToString(image.Data),
		Question: question,
	}}

	res, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("blip request: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("blip request failed (status: %d): %s", res.StatusCode(), errorMessage(res.Body()))
	}

	best, err := parseBLIPResponse(res.Body())
	if err != nil {
		return nil, err
	}

	return &entity.Answer{
		Text:    best.Answer,
		Score:   best.Score,
		Backend: BackendBLIP,
	}, nil
}

// parseBLIPResponse понимает и список кандидатов, и одиночный объект
func parseBLIPResponse(data []byte) (*blipCandidate, error) {
	var candidates []blipCandidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		var single blipCandidate
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return nil, fmt.Errorf("parse blip response: %w", err)
		}
		candidates = []blipCandidate{single}
	}

	var best *blipCandidate
	for i := range candidates {
		if strings.TrimSpace(candidates[i].Answer) == "" {
			continue
		}
		if best == nil || candidates[i].Score > best.Score {
			best = &candidates[i]
		}
	}
	if best == nil {
		return nil, errors.New("blip response has no answer")
	}

	best.Answer = strings.TrimSpace(best.Answer)
	return best, nil
}

func errorMessage(data []byte) string {
	var e blipError
	if err := json.Unmarshal(data, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return string(data)
}

var _ port.Answerer = (*BLIPClient)(nil)
