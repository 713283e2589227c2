package main

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LoginURL         string `yaml:"login_url"`
	VerificationURL  string `yaml:"verification_url"`
	ProfileURL       string `yaml:"profile_url"`
	ManageProductURL string `yaml:"manage_product_url"`

	Endpoints EndpointConfig `yaml:"endpoints"`

	ProductID   string `yaml:"product_id"`
	ProductName string `yaml:"product_name"`

	// UserDataKey is the client-side storage key the portal reads its
	// authenticated user payload from.
	UserDataKey string `yaml:"user_data_key"`

	DataDir            string `yaml:"data_dir"`
	BrowserProfilePath string `yaml:"browser_profile_path"`

	OperationTimeoutSeconds  int `yaml:"operation_timeout_seconds"`
	LoginSettleDelaySeconds  int `yaml:"login_settle_delay_seconds"`
	RateLimitCooldownSeconds int `yaml:"rate_limit_cooldown_seconds"`

	Headless  bool `yaml:"headless"`
	DebugMode bool `yaml:"debug_mode"`

	Selectors SelectorConfig `yaml:"selectors"`
}

type EndpointConfig struct {
	Login          string `yaml:"login"`
	VerifyCustomer string `yaml:"verify_customer"`
	Profile        string `yaml:"profile"`
	Products       string `yaml:"products"`
	Transactions   string `yaml:"transactions"`
}

type SelectorConfig struct {
	PhoneNumberField string `yaml:"phone_number_field"`
	PINField         string `yaml:"pin_field"`
	LoginSubmit      string `yaml:"login_submit"`

	LogoutMenu   string `yaml:"logout_menu"`
	LogoutDialog string `yaml:"logout_dialog"`

	NationalityIDField string `yaml:"nationality_id_field"`
	CheckButton        string `yaml:"check_button"`

	// CustomerTypeRadio is a template; the eligible type name is
	// substituted for %s before use.
	CustomerTypeRadio string `yaml:"customer_type_radio"`
	QuantityStepper   string `yaml:"quantity_stepper"`
	ConfirmButton     string `yaml:"confirm_button"`
	PayButton         string `yaml:"pay_button"`
}

func DefaultConfig() *Config {
	userDataDir := getUserDataDir()

	return &Config{
		LoginURL:         "https://subsiditepatlpg.mypertamina.id/merchant/auth/login",
		VerificationURL:  "https://subsiditepatlpg.mypertamina.id/merchant/app/verification-nik",
		ProfileURL:       "https://subsiditepatlpg.mypertamina.id/merchant/app/profile",
		ManageProductURL: "https://subsiditepatlpg.mypertamina.id/merchant/app/manage-product",
		Endpoints: EndpointConfig{
			Login:          "https://api-map.my-pertamina.id/general/v1/users/login",
			VerifyCustomer: "https://api-map.my-pertamina.id/customers/v1/verify-nik",
			Profile:        "https://api-map.my-pertamina.id/general/v1/users/profile",
			Products:       "https://api-map.my-pertamina.id/stocks/v1/products",
			Transactions:   "https://api-map.my-pertamina.id/transactions/v1/transactions",
		},
		ProductID:   "LPG3KG",
		ProductName: "LPG 3 kg",
		UserDataKey: "maplite_user_data",
		DataDir:     filepath.Join(userDataDir, "data"),

		BrowserProfilePath: filepath.Join(userDataDir, "browser-profile"),

		OperationTimeoutSeconds:  120,
		LoginSettleDelaySeconds:  3,
		RateLimitCooldownSeconds: 60,

		Headless:  true,
		DebugMode: false,

		Selectors: SelectorConfig{
			PhoneNumberField: `input[placeholder="Email atau No. Handphone"]`,
			PINField:         `input[placeholder="PIN (6-digit)"]`,
			LoginSubmit:      `button[type="submit"]`,

			LogoutMenu:   `div[data-testid="btnLogout"]`,
			LogoutDialog: `button[data-testid="btnLogout"][type="button"]`,

			NationalityIDField: `input[placeholder="Masukkan 16 digit NIK KTP Pelanggan"]`,
			CheckButton:        `button[data-testid="btnCheckNik"]`,

			CustomerTypeRadio: `input[type="radio"][value="%s"]`,
			QuantityStepper:   `button[data-testid="actionIcon2"]`,
			ConfirmButton:     `button[data-testid="btnCheckOrder"]`,
			PayButton:         `button[data-testid="btnPay"]`,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if config.BrowserProfilePath != "" {
		if err := os.MkdirAll(config.BrowserProfilePath, 0755); err != nil {
			return nil, err
		}
	}

	return config, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) OperationTimeout() time.Duration {
	if c.OperationTimeoutSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.OperationTimeoutSeconds) * time.Second
}

func (c *Config) LoginSettleDelay() time.Duration {
	return time.Duration(c.LoginSettleDelaySeconds) * time.Second
}

func (c *Config) RateLimitCooldown() time.Duration {
	if c.RateLimitCooldownSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitCooldownSeconds) * time.Second
}

func (c *Config) SessionFile() string {
	return filepath.Join(c.DataDir, "auth.json")
}

func (c *Config) CustomersFile() string {
	return filepath.Join(c.DataDir, "customers.json")
}

func (c *Config) OrdersFile() string {
	return filepath.Join(c.DataDir, "orders.json")
}

func getUserDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./maplite-data"
	}
	return filepath.Join(home, ".maplite")
}
