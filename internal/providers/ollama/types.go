package ollama

// ChatRequest rappresenta una richiesta /api/chat
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ModelOptions  `json:"options"`
}

// ChatMessage rappresenta un messaggio della conversazione
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelOptions contiene i parametri di campionamento
type ModelOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ChatResponse rappresenta una risposta non in streaming di /api/chat
type ChatResponse struct {
	Model           string      `json:"model"`
	CreatedAt       string      `json:"created_at"`
	Message         ChatMessage `json:"message"`
	Done            bool        `json:"done"`
	TotalDuration   int64       `json:"total_duration,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
}

// TagsResponse rappresenta la lista dei modelli locali
type TagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ModelInfo descrive un modello installato
type ModelInfo struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

// ErrorResponse è il corpo di errore restituito da Ollama
type ErrorResponse struct {
	Error string `json:"error"`
}
