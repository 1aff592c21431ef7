package dto

import (
	"github.com/rowens2025/powervisualize/internal/application/assistant"
	"github.com/rowens2025/powervisualize/internal/domain/intent"
)

// AskRequest is the body of POST /api/ask. Question presence and length are
// checked after trimming by the assistant service.
type AskRequest struct {
	Question    string          `json:"question"`
	History     []TurnDTO       `json:"history" binding:"omitempty,max=50,dive"`
	PageContext *PageContextDTO `json:"pageContext" binding:"omitempty"`
}

// TurnDTO is one prior conversation turn.
type TurnDTO struct {
	Role    string `json:"role" binding:"oneof=user assistant"`
	Content string `json:"content" binding:"max=8000"`
}

// PageContextDTO describes the page the visitor is on.
type PageContextDTO struct {
	Path     string `json:"path" binding:"max=512"`
	Title    string `json:"title" binding:"max=256"`
	PageSlug string `json:"pageSlug" binding:"max=128"`
	PageType string `json:"pageType" binding:"max=32"`
}

// ToRequest converts the DTO to an assistant request.
func (r AskRequest) ToRequest(clientID, requestID string) assistant.Request {
	req := assistant.Request{
		Question:  r.Question,
		ClientID:  clientID,
		RequestID: requestID,
	}
	if len(r.History) > 0 {
		req.History = make([]intent.Turn, 0, len(r.History))
		for _, t := range r.History {
			req.History = append(req.History, intent.Turn{Role: t.Role, Content: t.Content})
		}
	}
	if r.PageContext != nil {
		req.Page = &intent.PageContext{
			Path:     r.PageContext.Path,
			Title:    r.PageContext.Title,
			PageSlug: r.PageContext.PageSlug,
			PageType: r.PageContext.PageType,
		}
	}
	return req
}
