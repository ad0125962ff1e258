package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
)

const (
	DefaultOpenAIURL   = "https://api.openai.com/v1/responses"
	DefaultOpenAIModel = "gpt-4.1-mini"
)

const instructions = `Tu évalues la réponse d'un enseignant à une question d'un plan de cours.
Vérifie si la réponse respecte la règle donnée.
Réponds uniquement avec un objet JSON de la forme
{"status": "conformant" | "non_conformant", "feedback": ["..."]}.
Le tableau feedback liste les problèmes précis, vide si la réponse est conforme.`

var resultSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["status", "feedback"],
  "properties": {
    "status": {"type": "string", "enum": ["conformant", "non_conformant"]},
    "feedback": {"type": "array", "items": {"type": "string"}}
  }
}`)

// ErrEmptyReply is returned when the model produced no output text.
var ErrEmptyReply = errors.New("grading: empty response from model")

// OpenAI grades answers through the Responses API.
type OpenAI struct {
	APIKey string
	Model  string
	URL    string
	Client *http.Client
}

func NewOpenAI(apiKey, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAI{
		APIKey: apiKey,
		Model:  model,
		URL:    DefaultOpenAIURL,
		Client: &http.Client{Timeout: timeout},
	}
}

func (o *OpenAI) Grade(ctx context.Context, label, rule, answer string) (Result, error) {
	if strings.TrimSpace(rule) == "" {
		return Pass(), nil
	}
	if o.APIKey == "" {
		return Result{}, errors.New("grading: openai api key not set")
	}

	input := fmt.Sprintf("Question: %s\nRègle: %s\nRéponse:\n%s", label, rule, answer)
	b, err := json.Marshal(map[string]any{
		"model":        o.Model,
		"instructions": instructions,
		"input":        input,
	})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL, bytes.NewReader(b))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+o.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("grading: openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("grading: openai error %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Output []struct {
			Type    string `json:"type"`
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, fmt.Errorf("grading: decode openai response: %w", err)
	}

	var sb strings.Builder
	for _, item := range parsed.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				sb.WriteString(c.Text)
			}
		}
	}
	return parseReply(sb.String())
}

// parseReply extracts and checks the JSON verdict from the model's text.
// Models sometimes wrap JSON in a code fence.
func parseReply(text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyReply
	}
	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		text = text[i : j+1]
	}

	check, err := gojsonschema.Validate(resultSchema, gojsonschema.NewStringLoader(text))
	if err != nil {
		return Result{}, fmt.Errorf("grading: model reply is not JSON: %w", err)
	}
	if !check.Valid() {
		problems := make([]string, 0, len(check.Errors()))
		for _, desc := range check.Errors() {
			problems = append(problems, desc.Field()+": "+desc.Description())
		}
		return Result{}, fmt.Errorf("grading: model reply does not match schema: %s", strings.Join(problems, "; "))
	}

	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return Result{}, err
	}
	if res.Feedback == nil {
		res.Feedback = []string{}
	}
	if res.Status == models.Conformant {
		res.Feedback = []string{}
	}
	return res, nil
}
