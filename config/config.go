package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	Timezone     string     `mapstructure:"timezone"` // 业务日期（“今天”）所在时区
	CORS         CORSConfig `mapstructure:"cors"`
	MaxBodyBytes int64      `mapstructure:"max_body_bytes"`
	RateLimit    int        `mapstructure:"rate_limit"` // 每分钟每 IP 写请求上限，0 表示不限
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PolicyConfig 默认借阅策略
// loan_settings 表缺行或缺字段时以此补齐
type PolicyConfig struct {
	LoanDaysStudent          int    `mapstructure:"loan_days_student"`
	DueUsesBusinessDays      bool   `mapstructure:"due_uses_business_days"`
	MaxBooksStudent          int    `mapstructure:"max_books_student"`
	MaxBooksProfessor        int    `mapstructure:"max_books_professor"`
	MaxRenewals              int    `mapstructure:"max_renewals"`
	FinePerDay               string `mapstructure:"fine_per_day"` // 十进制字符串，如 "12.00"
	GraceDays                int    `mapstructure:"grace_days"`
	CountWeekendsWhenOverdue bool   `mapstructure:"count_weekends_when_overdue"`
	RenewalBasis             string `mapstructure:"renewal_basis"` // due_date | today
	GraceUnit                string `mapstructure:"grace_unit"`    // calendar | business
	GraceOrder               string `mapstructure:"grace_order"`   // after_weekend_exclusion | before_weekend_exclusion
}

// WorkerConfig 逾期提醒任务配置
type WorkerConfig struct {
	ReminderEnabled  bool          `mapstructure:"reminder_enabled"`
	ReminderInterval time.Duration `mapstructure:"reminder_interval"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	HolidayTTL time.Duration `mapstructure:"holiday_ttl"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timezone", "America/Mexico_City")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.rate_limit", 120)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "biblioteca")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "America/Mexico_City")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("policy.loan_days_student", 3)
	v.SetDefault("policy.due_uses_business_days", true)
	v.SetDefault("policy.max_books_student", 3)
	v.SetDefault("policy.max_books_professor", 5)
	v.SetDefault("policy.max_renewals", 2)
	v.SetDefault("policy.fine_per_day", "12.00")
	v.SetDefault("policy.grace_days", 0)
	v.SetDefault("policy.count_weekends_when_overdue", true)
	v.SetDefault("policy.renewal_basis", "due_date")
	v.SetDefault("policy.grace_unit", "calendar")
	v.SetDefault("policy.grace_order", "after_weekend_exclusion")

	v.SetDefault("worker.reminder_enabled", true)
	v.SetDefault("worker.reminder_interval", "24h")

	v.SetDefault("cache.holiday_ttl", "1h")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("BIBLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("配置校验失败: server.timezone 无效: %w", err)
	}
	if c.Worker.ReminderEnabled && c.Worker.ReminderInterval <= 0 {
		return fmt.Errorf("配置校验失败: worker.reminder_interval 必须大于 0")
	}
	return c.Policy.Validate()
}

// Validate 校验默认借阅策略
func (p *PolicyConfig) Validate() error {
	if p.LoanDaysStudent < 0 || p.LoanDaysStudent > 366 {
		return fmt.Errorf("配置校验失败: policy.loan_days_student 必须在 0-366 之间")
	}
	if p.MaxBooksStudent < 0 || p.MaxBooksProfessor < 0 {
		return fmt.Errorf("配置校验失败: policy.max_books_* 不能为负")
	}
	if p.MaxRenewals < 0 || p.GraceDays < 0 {
		return fmt.Errorf("配置校验失败: policy.max_renewals / grace_days 不能为负")
	}
	fine, err := decimal.NewFromString(p.FinePerDay)
	if err != nil {
		return fmt.Errorf("配置校验失败: policy.fine_per_day 不是合法金额: %w", err)
	}
	if fine.IsNegative() {
		return fmt.Errorf("配置校验失败: policy.fine_per_day 不能为负")
	}
	switch p.RenewalBasis {
	case "due_date", "today":
	default:
		return fmt.Errorf("配置校验失败: policy.renewal_basis 只能是 due_date 或 today")
	}
	switch p.GraceUnit {
	case "calendar", "business":
	default:
		return fmt.Errorf("配置校验失败: policy.grace_unit 只能是 calendar 或 business")
	}
	switch p.GraceOrder {
	case "after_weekend_exclusion", "before_weekend_exclusion":
	default:
		return fmt.Errorf("配置校验失败: policy.grace_order 取值无效")
	}
	return nil
}
