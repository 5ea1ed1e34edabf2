package dto

type ConfigureProviderRequest struct {
	Provider string `json:"provider" binding:"required"`
	APIKey   string `json:"api_key" binding:"required"`
}

type ConfigureLocalProviderRequest struct {
	Provider string `json:"provider" binding:"required"`
	APIURL   string `json:"api_url" binding:"required"`
}

// CompleteRequest is a one-shot text completion, used for prompt enhancement
type CompleteRequest struct {
	Provider    string   `json:"provider" binding:"required"`
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt" binding:"required"`
	System      string   `json:"system"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
}

type CompleteResponse struct {
	Text string `json:"text"`
}

type SetSettingRequest struct {
	Value *string `json:"value" binding:"required"`
}

type OpenPathRequest struct {
	Path string `json:"path" binding:"required"`
	App  string `json:"app"`
}

type CheckPortRequest struct {
	Host string `form:"host"`
	Port int    `form:"port" binding:"required,min=1,max=65535"`
}
