package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// BillingConfig holds the payment constants that operators tune without
// redeploying: payee key/city for the payment payload, currency, and the
// flat per-request surcharge.
type BillingConfig struct {
	PixKey          string `mapstructure:"pixKey"`
	PixCity         string `mapstructure:"pixCity"`
	CurrencyCode    string `mapstructure:"currencyCode"`
	ValuePerRequest string `mapstructure:"valuePerRequest"`
	InvoiceNote     string `mapstructure:"invoiceNote"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		PixKey:          "pagamentos@nextlevelcode.dev",
		PixCity:         "SAO PAULO",
		CurrencyCode:    "986",
		ValuePerRequest: "0.000005",
		InvoiceNote:     "By API Gateway",
	}
}

// FlatFee parses ValuePerRequest; invalid values fall back to zero.
func (c BillingConfig) FlatFee() decimal.Decimal {
	fee, err := decimal.NewFromString(strings.TrimSpace(c.ValuePerRequest))
	if err != nil || fee.IsNegative() {
		return decimal.Zero
	}
	return fee
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewBillingConfigHolder reads billing.yml and keeps it hot-reloaded.
func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/meterbill")
	v.AddConfigPath(".")

	v.SetEnvPrefix("METERBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.pixKey", defaults.PixKey)
	v.SetDefault("billing.pixCity", defaults.PixCity)
	v.SetDefault("billing.currencyCode", defaults.CurrencyCode)
	v.SetDefault("billing.valuePerRequest", defaults.ValuePerRequest)
	v.SetDefault("billing.invoiceNote", defaults.InvoiceNote)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingConfigHolder wraps a fixed config with no file
// watching. Meant for tests and tooling.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if strings.TrimSpace(cfg.PixKey) == "" {
		return errors.New("billing.pixKey cannot be empty")
	}
	if strings.TrimSpace(cfg.PixCity) == "" {
		return errors.New("billing.pixCity cannot be empty")
	}
	if strings.TrimSpace(cfg.CurrencyCode) == "" {
		return errors.New("billing.currencyCode cannot be empty")
	}
	if _, err := decimal.NewFromString(strings.TrimSpace(cfg.ValuePerRequest)); err != nil {
		return errors.New("billing.valuePerRequest must be a decimal")
	}
	return nil
}
