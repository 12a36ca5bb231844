// Package config defines the application configuration, loaded through
// viper from config.yaml, environment variables and CLI flags. Secrets are
// only ever read from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable the application reads.
const EnvPrefix = "LOTOBOT"

// ValidationError marks a configuration problem the operator must fix. The
// CLI maps it to its own exit code so wrapper scripts can tell a bad .env
// from a failed purchase.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Config is the root of the application configuration tree.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Site      SiteConfig      `mapstructure:"site" yaml:"site"`
	Account   AccountConfig   `mapstructure:"account" yaml:"account"`
	Purchase  PurchaseConfig  `mapstructure:"purchase" yaml:"purchase"`
	Payment   PaymentConfig   `mapstructure:"payment" yaml:"payment"`
	Selectors SelectorConfig  `mapstructure:"selectors" yaml:"selectors"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
}

// LoggerConfig controls structured logging output.
type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	AddSource  bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the browser process.
type BrowserConfig struct {
	Headless     bool          `mapstructure:"headless" yaml:"headless"`
	UserDataDir  string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	UserAgent    string        `mapstructure:"user_agent" yaml:"user_agent"`
	Args         []string      `mapstructure:"args" yaml:"args"`
	StartTimeout time.Duration `mapstructure:"start_timeout" yaml:"start_timeout"`
}

// SiteConfig identifies the storefront and its auth host.
type SiteConfig struct {
	BaseURL     string `mapstructure:"base_url" yaml:"base_url"`
	LoginDomain string `mapstructure:"login_domain" yaml:"login_domain"`
}

// AccountConfig holds the storefront credentials. Both values are bound to
// environment variables and never belong in config.yaml.
type AccountConfig struct {
	Username string `mapstructure:"username" yaml:"-"`
	Password string `mapstructure:"password" yaml:"-"`
}

// PurchaseConfig describes what to buy and what the result should look like.
type PurchaseConfig struct {
	// FavoriteItemName is matched against favorite rows after name folding,
	// so "Mega-Sena" finds a row labeled "MEGA SENA".
	FavoriteItemName   string `mapstructure:"favorite_item_name" yaml:"favorite_item_name"`
	ExpectedTotal      string `mapstructure:"expected_total" yaml:"expected_total"`
	CookieAcceptText   string `mapstructure:"cookie_accept_text" yaml:"cookie_accept_text"`
	AgeGatePromptText  string `mapstructure:"age_gate_prompt_text" yaml:"age_gate_prompt_text"`
	AgeGateConfirmText string `mapstructure:"age_gate_confirm_text" yaml:"age_gate_confirm_text"`
	EnterSiteText      string `mapstructure:"enter_site_text" yaml:"enter_site_text"`
	AccessLoginText    string `mapstructure:"access_login_text" yaml:"access_login_text"`
	LoginNextText      string `mapstructure:"login_next_text" yaml:"login_next_text"`
	FavoritesEntryText string `mapstructure:"favorites_entry_text" yaml:"favorites_entry_text"`
	AddButtonText      string `mapstructure:"add_button_text" yaml:"add_button_text"`
	CartEntryText      string `mapstructure:"cart_entry_text" yaml:"cart_entry_text"`
	CheckoutButtonText string `mapstructure:"checkout_button_text" yaml:"checkout_button_text"`
	AccountMenuText    string `mapstructure:"account_menu_text" yaml:"account_menu_text"`
	SuccessText        string `mapstructure:"success_text" yaml:"success_text"`
	FailureText        string `mapstructure:"failure_text" yaml:"failure_text"`
}

// PaymentConfig holds card details. Card number and CVV are bound to
// environment variables.
type PaymentConfig struct {
	UseSavedCard  bool   `mapstructure:"use_saved_card" yaml:"use_saved_card"`
	SavedCardHint string `mapstructure:"saved_card_hint" yaml:"saved_card_hint"`
	HolderName    string `mapstructure:"holder_name" yaml:"holder_name"`
	Number        string `mapstructure:"number" yaml:"-"`
	ExpMonth      string `mapstructure:"exp_month" yaml:"exp_month"`
	ExpYear       string `mapstructure:"exp_year" yaml:"exp_year"`
	CVV           string `mapstructure:"cvv" yaml:"-"`
	PaySubmitText string `mapstructure:"pay_submit_text" yaml:"pay_submit_text"`
}

// SelectorConfig carries optional site-specific selector overrides. Every
// field is optional; a blank override is skipped and the built-in cascade
// takes over.
type SelectorConfig struct {
	LoginUsername    string `mapstructure:"login_username" yaml:"login_username"`
	LoginNext        string `mapstructure:"login_next" yaml:"login_next"`
	LoginPassword    string `mapstructure:"login_password" yaml:"login_password"`
	LoginSubmit      string `mapstructure:"login_submit" yaml:"login_submit"`
	LoginOTPInput    string `mapstructure:"login_otp_input" yaml:"login_otp_input"`
	LoginOTPSubmit   string `mapstructure:"login_otp_submit" yaml:"login_otp_submit"`
	CookieAccept     string `mapstructure:"cookie_accept" yaml:"cookie_accept"`
	AgeGateConfirm   string `mapstructure:"age_gate_confirm" yaml:"age_gate_confirm"`
	EnterSite        string `mapstructure:"enter_site" yaml:"enter_site"`
	AccessLogin      string `mapstructure:"access_login" yaml:"access_login"`
	AccountMenu      string `mapstructure:"account_menu" yaml:"account_menu"`
	FavoritesEntry   string `mapstructure:"favorites_entry" yaml:"favorites_entry"`
	FavoritesItem    string `mapstructure:"favorites_item" yaml:"favorites_item"`
	FavoritesAdd     string `mapstructure:"favorites_add" yaml:"favorites_add"`
	CartEntry        string `mapstructure:"cart_entry" yaml:"cart_entry"`
	CheckoutButton   string `mapstructure:"checkout_button" yaml:"checkout_button"`
	Total            string `mapstructure:"total" yaml:"total"`
	SavedCard        string `mapstructure:"saved_card" yaml:"saved_card"`
	CardHolder       string `mapstructure:"card_holder" yaml:"card_holder"`
	CardNumber       string `mapstructure:"card_number" yaml:"card_number"`
	CardExpMonth     string `mapstructure:"card_exp_month" yaml:"card_exp_month"`
	CardExpYear      string `mapstructure:"card_exp_year" yaml:"card_exp_year"`
	CardCVV          string `mapstructure:"card_cvv" yaml:"card_cvv"`
	PaySubmit        string `mapstructure:"pay_submit" yaml:"pay_submit"`
	PaymentOTPInput  string `mapstructure:"payment_otp_input" yaml:"payment_otp_input"`
	PaymentOTPSubmit string `mapstructure:"payment_otp_submit" yaml:"payment_otp_submit"`
}

// ArtifactsConfig controls where diagnostic captures land.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "lotobot.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.start_timeout", "30s")

	// -- Site --
	v.SetDefault("site.base_url", "https://www.loteriasonline.caixa.gov.br/silce-web/#/home")
	v.SetDefault("site.login_domain", "login.caixa.gov.br")

	// -- Purchase --
	v.SetDefault("purchase.cookie_accept_text", "Aceitar")
	v.SetDefault("purchase.age_gate_prompt_text", "Você tem mais de 18 anos?")
	v.SetDefault("purchase.age_gate_confirm_text", "Sim")
	v.SetDefault("purchase.access_login_text", "Acessar")
	v.SetDefault("purchase.login_next_text", "Próximo")
	v.SetDefault("purchase.favorites_entry_text", "Carrinhos favoritos")
	v.SetDefault("purchase.add_button_text", "Adicionar")
	v.SetDefault("purchase.cart_entry_text", "Carrinho")
	v.SetDefault("purchase.checkout_button_text", "Finalizar")
	v.SetDefault("purchase.account_menu_text", "Minha Conta")
	v.SetDefault("purchase.success_text", "Pagamento realizado")
	v.SetDefault("purchase.failure_text", "Pagamento recusado")

	// -- Payment --
	v.SetDefault("payment.use_saved_card", true)
	v.SetDefault("payment.pay_submit_text", "Pagar")

	// -- Artifacts --
	v.SetDefault("artifacts.dir", "artifacts")
}

// NewConfigFromViper builds and validates a Config from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets come from the environment only.
	v.BindEnv("account.username", EnvPrefix+"_USERNAME")
	v.BindEnv("account.password", EnvPrefix+"_PASSWORD")
	v.BindEnv("payment.number", EnvPrefix+"_CARD_NUMBER")
	v.BindEnv("payment.cvv", EnvPrefix+"_CARD_CVV")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and cross-field rules.
func (c *Config) Validate() error {
	if c.Account.Username == "" {
		return &ValidationError{Field: "account.username", Reason: "required, set " + EnvPrefix + "_USERNAME"}
	}
	if c.Account.Password == "" {
		return &ValidationError{Field: "account.password", Reason: "required, set " + EnvPrefix + "_PASSWORD"}
	}
	if c.Purchase.FavoriteItemName == "" {
		return &ValidationError{Field: "purchase.favorite_item_name", Reason: "required"}
	}
	if c.Purchase.ExpectedTotal == "" {
		return &ValidationError{Field: "purchase.expected_total", Reason: "required"}
	}
	if c.Site.BaseURL == "" {
		return &ValidationError{Field: "site.base_url", Reason: "required"}
	}
	return c.Payment.validate()
}

// validate enforces the card rules. The CVV is always needed because the
// confirmation dialog asks for it even with a saved card. The remaining
// card fields may be omitted only when a saved card is selected by hint.
func (p *PaymentConfig) validate() error {
	if p.CVV == "" {
		return &ValidationError{Field: "payment.cvv", Reason: "required, set " + EnvPrefix + "_CARD_CVV"}
	}
	if p.UseSavedCard && p.SavedCardHint != "" {
		return nil
	}
	if p.HolderName == "" {
		return &ValidationError{Field: "payment.holder_name", Reason: "required unless a saved card hint is set"}
	}
	if p.Number == "" {
		return &ValidationError{Field: "payment.number", Reason: "required unless a saved card hint is set, set " + EnvPrefix + "_CARD_NUMBER"}
	}
	if p.ExpMonth == "" || p.ExpYear == "" {
		return &ValidationError{Field: "payment.exp_month/exp_year", Reason: "required unless a saved card hint is set"}
	}
	return nil
}
