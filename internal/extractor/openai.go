// Package extractor implements translation, sentiment and category
// extraction on top of the OpenAI Responses API with strict JSON schemas.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"voice-forms-go/internal/capability"
	"voice-forms-go/internal/logger"
	"voice-forms-go/internal/types"
)

const maxOutputTokens = 1200

// maxHints caps how many known categories go into a prompt.
const maxHints = 50

type translationReply struct {
	IsEnglish      bool   `json:"is_english" jsonschema:"description=true when the text is already English"`
	TranslatedText string `json:"translated_text" jsonschema:"description=English translation, empty when is_english"`
	LanguageCode   string `json:"language_code" jsonschema:"description=ISO 639-1 code of the source text"`
}

type sentimentReply struct {
	Sentiment string `json:"sentiment" jsonschema:"enum=positive,enum=negative,enum=neutral"`
}

type categoryItem struct {
	Name       string   `json:"name" jsonschema:"description=Short title case theme name"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords"`
	Summary    string   `json:"summary" jsonschema:"description=One sentence under 80 characters"`
	Sentiment  string   `json:"sentiment" jsonschema:"enum=positive,enum=negative,enum=neutral"`
}

type categoriesReply struct {
	Categories []categoryItem `json:"categories"`
}

var (
	translationSchema = generateSchema[translationReply]()
	sentimentSchema   = generateSchema[sentimentReply]()
	categoriesSchema  = generateSchema[categoriesReply]()
)

const (
	translateInstructions = `Detect the language of the user's form response.
If it is English set is_english true and leave translated_text empty.
Otherwise translate it to natural English. Always report the ISO 639-1 language_code.`

	sentimentInstructions = `Classify the overall sentiment of the user's form response as positive, negative or neutral.`

	categoriesInstructions = `Extract between zero and five themes from the user's form response.
Use short, reusable, title case names (for example "Delivery Speed", "Customer Support")
so the same theme gets the same name across responses. Give a confidence between 0 and 1,
up to five keywords, a one sentence summary and the sentiment the response expresses about the theme.
Return an empty list when the response has no substantive content.`
)

// OpenAI analyzes text with a single chat model. It covers translation,
// sentiment and category extraction, and takes category hints.
type OpenAI struct {
	client       *openai.Client
	model        string
	maxRetryTime time.Duration
	log          *logger.Logger
}

var _ capability.CategoryHinter = (*OpenAI)(nil)

func NewOpenAI(apiKey, model string, log *logger.Logger, opts ...option.RequestOption) *OpenAI {
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAI{
		client:       &client,
		model:        model,
		maxRetryTime: 20 * time.Second,
		log:          log.With(map[string]any{"component": "extractor-openai"}),
	}
}

func (o *OpenAI) TranslateDetect(ctx context.Context, text string) (capability.Translation, error) {
	var out translationReply
	if err := o.respond(ctx, "FormTranslation", translateInstructions, text, translationSchema, &out); err != nil {
		return capability.Translation{}, fmt.Errorf("translate: %w", err)
	}
	tr := capability.Translation{Language: normalizeLanguage(out.LanguageCode)}
	if !out.IsEnglish && strings.TrimSpace(out.TranslatedText) != "" {
		tr.Text = strings.TrimSpace(out.TranslatedText)
		tr.Translated = true
	}
	return tr, nil
}

func (o *OpenAI) Sentiment(ctx context.Context, text string) (types.Sentiment, error) {
	var out sentimentReply
	if err := o.respond(ctx, "FormSentiment", sentimentInstructions, text, sentimentSchema, &out); err != nil {
		return "", fmt.Errorf("sentiment: %w", err)
	}
	return types.NormalizeSentiment(out.Sentiment), nil
}

func (o *OpenAI) ExtractCategories(ctx context.Context, text string) ([]types.RawCategory, error) {
	return o.ExtractCategoriesWithHints(ctx, text, nil)
}

// ExtractCategoriesWithHints lists the form's known categories in the
// instructions so the model reuses their names.
func (o *OpenAI) ExtractCategoriesWithHints(ctx context.Context, text string, known []types.Category) ([]types.RawCategory, error) {
	var out categoriesReply
	if err := o.respond(ctx, "FormCategories", categoriesPrompt(known), text, categoriesSchema, &out); err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	cats := make([]types.RawCategory, 0, len(out.Categories))
	for _, c := range out.Categories {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		cats = append(cats, types.RawCategory{
			Name:       strings.TrimSpace(c.Name),
			Confidence: c.Confidence,
			Keywords:   c.Keywords,
			Summary:    c.Summary,
			Sentiment:  types.NormalizeSentiment(c.Sentiment),
		})
	}
	return cats, nil
}

func categoriesPrompt(known []types.Category) string {
	if len(known) == 0 {
		return categoriesInstructions
	}
	var b strings.Builder
	b.WriteString(categoriesInstructions)
	b.WriteString("\n\nThis form already tracks the themes below. When the response fits one, return its name exactly as written. Only create a new theme when none fits.\n")
	for _, c := range known[:min(len(known), maxHints)] {
		if c.Summary != "" {
			fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Summary)
		} else {
			fmt.Fprintf(&b, "- %s\n", c.Name)
		}
	}
	return b.String()
}

// respond runs one structured-output request, retrying transient failures
// with exponential backoff. Client errors other than 429 are not retried.
func (o *OpenAI) respond(ctx context.Context, name, instructions, input string, schema map[string]any, out any) error {
	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(maxOutputTokens),
		Instructions:    openai.String(instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(input, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   name,
					Schema: schema,
					Strict: openai.Bool(true),
					Type:   "json_schema",
				},
			},
		},
	}

	var lastErr error
	op := func() error {
		resp, err := o.client.Responses.New(ctx, params)
		if err != nil {
			lastErr = err
			o.log.WithError(err).WithField("schema", name).Warn("llm request failed")
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := decodeModelJSON(resp.OutputText(), out); err != nil {
			lastErr = err
			return err
		}
		lastErr = nil
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = o.maxRetryTime
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}

func retryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		code := apiErr.StatusCode
		if code == http.StatusTooManyRequests || code >= 500 {
			return true
		}
		return code < 400
	}
	// transport errors
	return true
}
