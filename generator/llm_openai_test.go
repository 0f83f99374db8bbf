package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAILLMComplete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Temperature float64 `json:"temperature"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "test-model",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"posts\": []}"}
			}]
		}`))
	}))
	defer srv.Close()

	llm, err := NewOpenAILLMFromConfig(&LLMSettings{
		Provider: "openai",
		Model:    "test-model",
		BaseURL:  srv.URL + "/",
		Keys:     StaticKey("sk-test"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	reply, err := llm.Complete(context.Background(), Prompt{
		System:  "sys",
		User:    "hello",
		Options: GenerationOptions{Temperature: 0.5},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != `{"posts": []}` {
		t.Fatalf("reply = %q", reply)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("authorization = %q", auth)
	}
	if got.Model != "test-model" || len(got.Messages) != 2 {
		t.Fatalf("request = %+v", got)
	}
	if got.Messages[0].Role != "system" || got.Messages[1].Content != "hello" {
		t.Fatalf("messages = %+v", got.Messages)
	}
	if got.Temperature != 0.5 {
		t.Fatalf("temperature = %v", got.Temperature)
	}
}

func TestOpenAILLMMissingKey(t *testing.T) {
	llm, err := NewOpenAILLMFromConfig(&LLMSettings{Model: "m", Keys: StaticKey("")})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := llm.Complete(context.Background(), Prompt{User: "x"}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestNewOpenAILLMRequiresModel(t *testing.T) {
	if _, err := NewOpenAILLMFromConfig(&LLMSettings{Keys: StaticKey("k")}); err == nil {
		t.Fatal("expected error without model")
	}
	if _, err := NewOpenAILLMFromConfig(nil); err == nil {
		t.Fatal("expected error for nil settings")
	}
}
