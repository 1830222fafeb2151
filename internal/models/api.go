package models

type QuestionRequest struct {
	Question string `json:"question"`
}

type RoleRequest struct {
	Role string `json:"role"`
}

type SessionResponse struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	State     string `json:"state"`
	Segments  int    `json:"segments"`
	Questions int    `json:"questions"`
}

type HistoryResponse struct {
	SessionID string `json:"session_id"`
	Turns     []Turn `json:"turns"`
	Count     int    `json:"count"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	GeneratorModel string `json:"generator_model,omitempty"`
	Sessions       int    `json:"sessions"`
}
