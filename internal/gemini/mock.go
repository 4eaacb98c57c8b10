package gemini

import "context"

// MockClient for testing
type MockClient struct {
	Model                 string
	Response              *ResponseData
	Error                 error
	LastSystemInstruction string
	Requests              []RequestData
}

func (m *MockClient) Judge(ctx context.Context, request RequestData) (*ResponseData, error) {
	m.Requests = append(m.Requests, request)
	return m.Response, m.Error
}

func (m *MockClient) SetSystemInstruction(prompt string) {
	m.LastSystemInstruction = prompt
}

func (m *MockClient) ModelID() string {
	if m.Model == "" {
		return "mock"
	}
	return m.Model
}
