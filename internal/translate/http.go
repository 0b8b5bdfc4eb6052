package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPTranslator calls a LibreTranslate-compatible endpoint.
type HTTPTranslator struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPTranslator creates a translator posting to url. A nil client uses
// http.DefaultClient; the adapter bounds each call with its own timeout.
func NewHTTPTranslator(url, apiKey string, client *http.Client) *HTTPTranslator {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTranslator{url: url, apiKey: apiKey, client: client}
}

type httpRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type httpResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

// Translate implements Translator.
func (t *HTTPTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	body, err := json.Marshal(httpRequest{
		Q:      text,
		Source: sourceLang,
		Target: targetLang,
		Format: "text",
		APIKey: t.apiKey,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build translation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read translation response: %w", err)
	}

	var out httpResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode translation response (status %d): %w", resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return "", fmt.Errorf("translation rejected: %s: %w", out.Error, ErrUnsupported)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("translation service returned %d: %s", resp.StatusCode, out.Error)
	case out.TranslatedText == "":
		return "", fmt.Errorf("translation service returned empty text")
	}
	return out.TranslatedText, nil
}
