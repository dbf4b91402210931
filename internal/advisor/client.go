package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/PipeSelect/internal/catalog"
)

var ErrNoRange = errors.New("advisor: no cost range in response")

// Suggestion is an advisory cost range for one material. It pre-fills the cost
// map and is never required for a ranking.
type Suggestion struct {
	Material string  `json:"material"`
	Range    string  `json:"range"`
	Low      float64 `json:"low"`
	High     float64 `json:"high"`
	Unit     string  `json:"unit,omitempty"`
}

// Midpoint is the value proposed for the cost map.
func (s Suggestion) Midpoint() float64 {
	return (s.Low + s.High) / 2
}

type Client interface {
	SuggestCost(ctx context.Context, m catalog.Material, networkType string) (*Suggestion, error)
}

// HTTPClient talks to an Ollama-compatible text generation endpoint.
type HTTPClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, model string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type rangeAnswer struct {
	Range string `json:"range"`
}

func (c *HTTPClient) SuggestCost(ctx context.Context, m catalog.Material, networkType string) (*Suggestion, error) {
	text, err := c.generate(ctx, buildPrompt(m, networkType))
	if err != nil {
		return nil, err
	}
	s, err := ParseRange(extractRange(text))
	if err != nil {
		return nil, err
	}
	s.Material = m.Name
	return s, nil
}

func (c *HTTPClient) generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("advisor request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("advisor: %d %s", resp.StatusCode, string(body))
	}

	var gen generateResponse
	if err := json.Unmarshal(body, &gen); err != nil {
		return "", fmt.Errorf("decode advisor response: %w", err)
	}
	return gen.Response, nil
}

func buildPrompt(m catalog.Material, networkType string) string {
	network := networkType
	if network == "" {
		network = "generic plumbing"
	}
	return fmt.Sprintf(`You are a plumbing cost estimator.
Give a typical supply-and-install price range per linear metre for %s pipe
used on a %s network (pressure ratings: %s).

Return ONLY a JSON object of the form {"range": "15-25 €/m"}.
`, m.Name, network, strings.Join(m.PressureRatings, ", "))
}

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// extractRange pulls the range string out of a model answer, falling back to the
// raw text when the model did not answer with JSON.
func extractRange(text string) string {
	if obj := jsonObject.FindString(text); obj != "" {
		var ans rangeAnswer
		if err := json.Unmarshal([]byte(obj), &ans); err == nil && ans.Range != "" {
			return ans.Range
		}
	}
	return strings.TrimSpace(text)
}

var rangePattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:-|–|to|à)\s*(\d+(?:[.,]\d+)?)\s*(\S*)`)

// ParseRange reads "low-high unit" strings such as "15-25 €/m" or "12,5 à 18 €/ml".
func ParseRange(s string) (*Suggestion, error) {
	match := rangePattern.FindStringSubmatch(s)
	if match == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoRange, s)
	}
	low, err := parseNumber(match[1])
	if err != nil {
		return nil, err
	}
	high, err := parseNumber(match[2])
	if err != nil {
		return nil, err
	}
	if low > high {
		low, high = high, low
	}
	return &Suggestion{
		Range: strings.TrimSpace(match[0]),
		Low:   low,
		High:  high,
		Unit:  match[3],
	}, nil
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}
