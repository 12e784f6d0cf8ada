package extractor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"

	"voice-forms-go/internal/logger"
	"voice-forms-go/internal/types"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"chatter", `Sure! Here it is: {"a":{"b":2}} hope that helps`, `{"a":{"b":2}}`},
		{"brace in string", `{"a":"}"} trailing`, `{"a":"}"}`},
		{"unbalanced", `{"a":1`, ""},
		{"none", "no json here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.in); got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeModelJSON(t *testing.T) {
	var out sentimentReply
	if err := decodeModelJSON("Result:\n```json\n{\"sentiment\":\"negative\"}\n```", &out); err != nil {
		t.Fatal(err)
	}
	if out.Sentiment != "negative" {
		t.Errorf("Sentiment = %q", out.Sentiment)
	}
	if err := decodeModelJSON("   ", &out); err == nil {
		t.Error("expected error on empty output")
	}
	if err := decodeModelJSON("nothing useful", &out); err == nil {
		t.Error("expected error without JSON")
	}
}

func TestGenerateSchemaIsStrict(t *testing.T) {
	s := generateSchema[categoriesReply]()
	if s["additionalProperties"] != false {
		t.Errorf("top level additionalProperties = %v", s["additionalProperties"])
	}
	props := s["properties"].(map[string]any)
	items := props["categories"].(map[string]any)["items"].(map[string]any)
	if items["additionalProperties"] != false {
		t.Error("item schema allows additional properties")
	}
	req, _ := items["required"].([]string)
	for _, f := range []string{"name", "confidence", "keywords", "summary", "sentiment"} {
		if !slices.Contains(req, f) {
			t.Errorf("field %q not required (required=%v)", f, req)
		}
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := map[string]string{
		"es-MX":    "es",
		"PT":       "pt",
		"hi":       "hi",
		"":         types.DefaultLanguage,
		"!!nope!!": types.DefaultLanguage,
	}
	for in, want := range tests {
		if got := normalizeLanguage(in); got != want {
			t.Errorf("normalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMock(t *testing.T) {
	ctx := context.Background()
	var m Mock

	cats, _ := m.ExtractCategories(ctx, "Delivery was late and the box arrived damaged")
	var names []string
	for _, c := range cats {
		names = append(names, c.Name)
	}
	if !slices.Contains(names, "Delivery Speed") || !slices.Contains(names, "Packaging") {
		t.Errorf("categories = %v", names)
	}
	if s, _ := m.Sentiment(ctx, "terrible, slow and late"); s != types.SentimentNegative {
		t.Errorf("Sentiment() = %s", s)
	}
	if s, _ := m.Sentiment(ctx, "I love it, great support"); s != types.SentimentPositive {
		t.Errorf("Sentiment() = %s", s)
	}
	if cats, _ := m.ExtractCategories(ctx, "ok"); len(cats) != 0 {
		t.Errorf("expected no categories, got %v", cats)
	}
}

// responsesServer answers every Responses API call with reply as the model
// output and records the instructions it was sent.
func responsesServer(t *testing.T, reply string, instructions *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/responses") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Instructions string `json:"instructions"`
		}
		_ = json.Unmarshal(body, &req)
		*instructions = append(*instructions, req.Instructions)

		out, _ := json.Marshal(map[string]any{
			"id":     "resp_1",
			"object": "response",
			"status": "completed",
			"model":  "test-model",
			"output": []any{map[string]any{
				"type":   "message",
				"id":     "msg_1",
				"role":   "assistant",
				"status": "completed",
				"content": []any{map[string]any{
					"type":        "output_text",
					"text":        reply,
					"annotations": []any{},
				}},
			}},
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAICategoriesWithHints(t *testing.T) {
	var seen []string
	srv := responsesServer(t, `{"categories":[{"name":" Shipping Delay ","confidence":0.9,"keywords":["late"],"summary":"parcel late","sentiment":"Negative"},{"name":"","confidence":0,"keywords":[],"summary":"","sentiment":"neutral"}]}`, &seen)
	o := NewOpenAI("test-key", "test-model", logger.Discard(), option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))

	known := []types.Category{
		{Name: "Shipping Delay", Summary: "Orders arrive later than promised"},
		{Name: "Packaging"},
	}
	cats, err := o.ExtractCategoriesWithHints(context.Background(), "my parcel came a week late", known)
	if err != nil {
		t.Fatalf("ExtractCategoriesWithHints() = %v", err)
	}
	if len(cats) != 1 || cats[0].Name != "Shipping Delay" || cats[0].Sentiment != types.SentimentNegative {
		t.Errorf("categories = %+v", cats)
	}
	if len(seen) != 1 {
		t.Fatalf("requests = %d", len(seen))
	}
	if !strings.Contains(seen[0], "- Shipping Delay: Orders arrive later than promised") || !strings.Contains(seen[0], "- Packaging\n") {
		t.Errorf("instructions missing known categories:\n%s", seen[0])
	}

	if _, err := o.ExtractCategories(context.Background(), "fine"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(seen[1], "already tracks") {
		t.Errorf("plain extraction sent hints:\n%s", seen[1])
	}
}

func TestCategoriesPromptCapsHints(t *testing.T) {
	known := make([]types.Category, maxHints+10)
	for i := range known {
		known[i] = types.Category{Name: "Theme"}
	}
	if n := strings.Count(categoriesPrompt(known), "- Theme"); n != maxHints {
		t.Errorf("hints in prompt = %d, want %d", n, maxHints)
	}
}
