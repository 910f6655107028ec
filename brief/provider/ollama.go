package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// OllamaProvider calls a local or remote Ollama server. It needs no credentials.
type OllamaProvider struct {
	client *api.Client
	model  string
}

// NewOllamaProvider connects to host, or to OLLAMA_HOST when host is empty.
func NewOllamaProvider(host, model string, httpClient *http.Client) (*OllamaProvider, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("%w: ollama: parse host %q: %v", ErrConfig, host, err)
		}
		hostURL = u
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	hc := *httpClient
	hc.Transport = statusTransport{base: hc.Transport}
	return &OllamaProvider{
		client: api.NewClient(hostURL, &hc),
		model:  model,
	}, nil
}

// The api client turns an {"error": ...} body into a plain error and drops the status code,
// so the transport records it on a holder carried by the request context.
type statusKey struct{}

type statusTransport struct {
	base http.RoundTripper
}

func (t statusTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(r)
	if resp != nil {
		if code, ok := r.Context().Value(statusKey{}).(*atomic.Int32); ok {
			code.Store(int32(resp.StatusCode))
		}
	}
	return resp, err
}

func (p *OllamaProvider) Validate() error {
	if p.model == "" {
		return fmt.Errorf("%w: ollama: model is empty", ErrConfig)
	}
	return nil
}

func (p *OllamaProvider) Complete(ctx context.Context, req Request) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	stream := false
	genReq := api.GenerateRequest{
		Model:  p.model,
		Prompt: req.Prompt,
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}

	var status atomic.Int32
	ctx = context.WithValue(ctx, statusKey{}, &status)

	var b strings.Builder
	err := p.client.Generate(ctx, &genReq, func(resp api.GenerateResponse) error {
		_, err := b.WriteString(resp.Response)
		return err
	})
	if err != nil {
		code := int(status.Load())
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			code = statusErr.StatusCode
		}
		if code >= http.StatusBadRequest {
			return "", statusError("ollama", code, err)
		}
		return "", fmt.Errorf("ollama: %w", err)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("ollama: %w", ErrEmptyCompletion)
	}
	return text, nil
}
