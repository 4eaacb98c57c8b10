package gemini

// JudgeItem is one segment sent for assessment. Reference is omitted for
// reference-free scoring.
type JudgeItem struct {
	ID          int    `json:"id"`
	Source      string `json:"source"`
	Translation string `json:"translation"`
	Reference   string `json:"reference,omitempty"`
}

// RequestData is the JSON document sent as the user turn.
type RequestData struct {
	SourceLanguage string      `json:"source_language,omitempty"`
	TargetLanguage string      `json:"target_language,omitempty"`
	Items          []JudgeItem `json:"items"`
}

// SegmentScore is the model's 0-100 assessment of one item.
type SegmentScore struct {
	ID    int     `json:"id"`
	Score float64 `json:"score"`
}

// ResponseData is the JSON document expected back from the model.
type ResponseData struct {
	Scores []SegmentScore `json:"scores"`
	Usage  UsageMetadata  `json:"-"` // filled from the API response, not the model output
}

// UsageMetadata holds token usage information.
type UsageMetadata struct {
	PromptTokenCount     int
	CandidatesTokenCount int
	TotalTokenCount      int
}
