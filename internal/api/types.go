package api

import "cryptoscout/pkg/cryptoscout"

type chatPayload struct {
	Messages []cryptoscout.ChatMessage `json:"messages"`
}

type chatResponse struct {
	Messages []cryptoscout.ChatMessage `json:"messages"`
}
