package domain

// LaunchAnalysisRequest is the inbound payload for starting a batch
// analysis. RequestDelayMs is a pointer so an explicit zero (no pacing) can
// be told apart from the field being absent, which means the server default.
type LaunchAnalysisRequest struct {
	Name    string   `json:"name"`
	Prompts []string `json:"prompts"`
	Brands  []string `json:"brands"`
	Domains []string `json:"domains"`

	Endpoint      string `json:"endpoint"`
	APIKey        string `json:"apiKey"`
	Model         string `json:"model"`
	ProviderKind  string `json:"providerKind"`
	StrictExtract bool   `json:"strictExtract"`

	Concurrency    int    `json:"concurrency"`
	RequestDelayMs *int   `json:"requestDelayMs"`
	Webhook        string `json:"webhook"`
}

// TestProviderRequest checks credentials and connectivity for a provider
// endpoint without launching a batch.
type TestProviderRequest struct {
	Endpoint     string `json:"endpoint"`
	APIKey       string `json:"apiKey"`
	Model        string `json:"model"`
	ProviderKind string `json:"providerKind"`
}
