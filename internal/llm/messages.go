// ABOUTME: Prompt construction for the summarize/translate/ask operations
// ABOUTME: Validates payloads and produces chat messages for the provider

package llm

import (
	"fmt"
	"strings"
)

// QueryType selects the prompt template.
type QueryType string

const (
	TypeSummarize QueryType = "summarize"
	TypeTranslate QueryType = "translate"
	TypeAsk       QueryType = "ask"
)

// Default target language for summarize and translate.
const defaultLanguage = "ja"

// Payload carries the per-type inputs of a query. ArticleURL, when present
// on summarize or ask, is fetched and clipped to supply the text or context.
type Payload struct {
	Text       string      `json:"text"`
	Language   string      `json:"language"`
	TargetLang string      `json:"targetLang"`
	Question   string      `json:"question"`
	Context    string      `json:"context"`
	ArticleURL string      `json:"articleUrl"`
	Clip       *ClipLimits `json:"clip"`
}

// ClipLimits mirrors the clip pipeline's knobs in request form. MaxRedirects
// is a pointer so an explicit zero survives decoding.
type ClipLimits struct {
	MaxBytes     int  `json:"maxBytes"`
	MaxChars     int  `json:"maxChars"`
	TimeoutMs    int  `json:"timeoutMs"`
	MaxRedirects *int `json:"maxRedirects"`
}

// Options tune the provider call; nil fields are omitted from the request.
type Options struct {
	Temperature *float64 `json:"temperature"`
	TopP        *float64 `json:"topP"`
	MaxTokens   *int     `json:"maxTokens"`
}

// Message is one chat turn sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PayloadError marks a query rejected before reaching the provider.
type PayloadError struct {
	Reason string
}

func (e *PayloadError) Error() string {
	return e.Reason
}

// BuildMessages turns a typed payload into the chat messages for that
// operation. Validation failures return a *PayloadError.
func BuildMessages(queryType QueryType, payload Payload) ([]Message, error) {
	switch queryType {
	case TypeSummarize:
		if payload.Text == "" {
			return nil, &PayloadError{Reason: "payload.text is required"}
		}
		language := payload.Language
		if language == "" {
			language = defaultLanguage
		}
		return []Message{
			{Role: "system", Content: fmt.Sprintf("You are a helpful assistant. Summarize the given article concisely in %s. Use bullet points if appropriate. Avoid adding extraneous commentary.", language)},
			{Role: "user", Content: payload.Text},
		}, nil

	case TypeTranslate:
		if payload.Text == "" {
			return nil, &PayloadError{Reason: "payload.text is required"}
		}
		target := payload.TargetLang
		if target == "" {
			target = defaultLanguage
		}
		return []Message{
			{Role: "system", Content: fmt.Sprintf("You are a translator. Translate the user content into %s. Preserve meaning and style.", target)},
			{Role: "user", Content: payload.Text},
		}, nil

	case TypeAsk:
		// payload.text is accepted as a fallback spelling of the question.
		question := strings.TrimSpace(payload.Question)
		if question == "" {
			question = strings.TrimSpace(payload.Text)
		}
		if question == "" {
			return nil, &PayloadError{Reason: "payload.question is required"}
		}
		messages := []Message{
			{Role: "system", Content: "You are a helpful assistant. Answer accurately. If context is provided, ground your answer in it."},
		}
		if payload.Context != "" {
			messages = append(messages, Message{Role: "user", Content: "Context:\n" + payload.Context})
		}
		return append(messages, Message{Role: "user", Content: question}), nil
	}

	return nil, &PayloadError{Reason: fmt.Sprintf("unknown type %q", queryType)}
}
