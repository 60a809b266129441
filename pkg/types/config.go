package types

type Config struct {
	Environment      string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
	ServerPort       uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL      string `envconfig:"DATABASE_URL"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	ReadTimeoutSec   uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec  uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"30"`

	// OIDC provider that issues access tokens. JWKS URL defaults to
	// <issuer>/.well-known/jwks.json when unset.
	OIDCIssuerURL  string `envconfig:"OIDC_ISSUER_URL"`
	OIDCJWKSURL    string `envconfig:"OIDC_JWKS_URL"`
	OIDCAudience   string `envconfig:"OIDC_AUDIENCE"`
	OIDCRolesClaim string `envconfig:"OIDC_ROLES_CLAIM" default:"roles"`

	// Session cookie written by the external login flow. Keys are base64.
	// openssl rand -base64 32
	CookieName     string `envconfig:"SESSION_COOKIE_NAME" default:"epatra_session"`
	CookieHashKey  string `envconfig:"COOKIE_HASH_KEY"`  // 32 or 64 bytes
	CookieBlockKey string `envconfig:"COOKIE_BLOCK_KEY"` // 16, 24, or 32 bytes

	// Uploaded files go to S3 when a bucket is set, otherwise to UploadDir.
	StorageBucket   string `envconfig:"STORAGE_BUCKET"`
	StorageEndpoint string `envconfig:"STORAGE_ENDPOINT"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"uploads"`
	MaxUploadBytes  int64  `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`

	// Enrichment
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel         string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	OCRTimeoutSec       uint   `envconfig:"OCR_TIMEOUT_SEC" default:"30"`
	AnalysisTimeoutSec  uint   `envconfig:"ANALYSIS_TIMEOUT_SEC" default:"30"`
	AIMaxAttempts       uint   `envconfig:"AI_MAX_ATTEMPTS" default:"1"`
	AIRetryBackoffMs    uint   `envconfig:"AI_RETRY_BACKOFF_MS" default:"500"`
	OCRConcurrency      int64  `envconfig:"OCR_CONCURRENCY" default:"4"`
	AnalysisConcurrency int64  `envconfig:"ANALYSIS_CONCURRENCY" default:"4"`
	SystemUserID        string `envconfig:"SYSTEM_USER_ID" default:"system"`

	// Communications
	ResendAPIKey                string `envconfig:"RESEND_API_KEY"`
	EmailFrom                   string `envconfig:"EMAIL_FROM" default:"no-reply@epatra.local"`
	EmailFromName               string `envconfig:"EMAIL_FROM_NAME" default:"e-Patra"`
	EmailTestMode               bool   `envconfig:"EMAIL_TEST_MODE" default:"true"`
	CommunicationsCallbackToken string `envconfig:"COMMUNICATIONS_CALLBACK_TOKEN"`
}

func (c *Config) JWKSURL() string {
	if c.OIDCJWKSURL != "" {
		return c.OIDCJWKSURL
	}
	return c.OIDCIssuerURL + "/.well-known/jwks.json"
}
