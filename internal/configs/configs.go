package configs

import "time"

type Config struct {
	Server ServerConfig `json:"server" yaml:"server"`

	Database Database `json:"database" yaml:"database"`

	Redis RedisConfig `json:"redis" yaml:"redis"`

	// AI 评估器参数
	AIConfig AIConfig `json:"ai_config" yaml:"ai_config"`

	// 链上交易执行配置
	ChainConfig ChainConfig `json:"chain_config" yaml:"chain_config"`

	// 限流参数
	RateLimits RateLimitConfig `json:"rate_limits" yaml:"rate_limits"`
}

type ServerConfig struct {
	Addr      string `json:"addr" yaml:"addr"`             // listen address, eg :8080
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"` // HS256 signing secret
}

type Database struct {
	Driver  string `json:"driver" yaml:"driver"`     // postgres or memory
	ConnStr string `json:"conn_str" yaml:"conn_str"` // 数据库连接字符串
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"` // empty disables the redis counter store
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type AIConfig struct {
	Provider  string `json:"provider" yaml:"provider"`     // anthropic or openai
	APIKey    string `json:"api_key" yaml:"api_key"`       // AI服务API密钥
	ModelType string `json:"model_type" yaml:"model_type"` // AI模型类型
}

type ChainConfig struct {
	RPCURL             string `json:"rpc_url" yaml:"rpc_url"`
	PrivateKey         string `json:"private_key" yaml:"private_key"` // hex encoded, no 0x prefix
	MarketplaceAddress string `json:"marketplace_address" yaml:"marketplace_address"`
	BreedingAddress    string `json:"breeding_address" yaml:"breeding_address"`
}

type RateLimitConfig struct {
	WindowSeconds int            `json:"window_seconds" yaml:"window_seconds"` // counter window, default 60
	Endpoints     map[string]int `json:"endpoints" yaml:"endpoints"`           // per-endpoint budgets
}

// Window returns the configured counter window as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// ApplyDefaults fills unset fields with the defaults the service is designed
// around: a 60s window and the documented per-endpoint budgets.
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.RateLimits.WindowSeconds <= 0 {
		c.RateLimits.WindowSeconds = 60
	}
	if c.RateLimits.Endpoints == nil {
		c.RateLimits.Endpoints = map[string]int{
			"health":   1000,
			"prompts":  100,
			"trades":   20,
			"breeding": 10,
		}
	}
}
