package model

import "time"

type Link struct {
	ID              int64      `json:"id"`
	ShortCode       string     `json:"short_code"`
	TargetURL       string     `json:"target_url"`
	TotalClicks     int64      `json:"total_clicks"`
	LastClickedTime *time.Time `json:"last_clicked_time"`
	CreatedAt       time.Time  `json:"created_at"`
}

// CreateLinkRequest - тело POST /api/links
type CreateLinkRequest struct {
	TargetURL  string `json:"target_url" binding:"required"`
	CustomCode string `json:"custom_code" binding:"omitempty,alphanum,min=6,max=8"`
}

// WasClicked сообщает, переходили ли по ссылке хотя бы раз
func (l *Link) WasClicked() bool {
	return l.LastClickedTime != nil
}
