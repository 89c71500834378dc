package models

// Request DTOs for the signal endpoints, bound from query or JSON body.

type HistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,symbol"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type AnalyzeRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,symbol"`
}

type SettingsRequest struct {
	IntervalSeconds *int `json:"interval_seconds" validate:"omitempty,gte=60,lte=86400"`
	TopN            *int `json:"top_n" validate:"omitempty,gte=1,lte=50"`
}

func (r SettingsRequest) Update() SettingsUpdate {
	return SettingsUpdate{IntervalSeconds: r.IntervalSeconds, TopN: r.TopN}
}
