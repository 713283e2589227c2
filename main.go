package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgPath   string
	headful   bool
	debugMode bool

	phoneNumber string
	pin         string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "maplite",
	Short: "Automates the subsidized LPG merchant portal",
	Long: `maplite drives the MyPertamina merchant portal through a headless
browser: logging in, checking the merchant profile and stock, verifying
customer eligibility by national ID, and placing orders.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment variables and flags win.
		_ = godotenv.Load()

		var err error
		if debugMode {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log into the portal and save the session bundle",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out of the portal and delete the saved session",
	RunE:  runLogout,
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the merchant profile of the logged-in account",
	RunE:  runProfile,
}

var stockCmd = &cobra.Command{
	Use:   "stock",
	Short: "Show the current product stock",
	RunE:  runStock,
}

var verifyCustomersCmd = &cobra.Command{
	Use:   "verify-customers <path>",
	Short: "Verify every national ID in a JSON input file",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerifyCustomers,
}

var createOrdersCmd = &cobra.Command{
	Use:   "create-orders <path>",
	Short: "Place every order in a JSON input file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreateOrders,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&headful, "headful", false, "Run the browser with a visible window")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable detailed debug logging")

	loginCmd.Flags().StringVar(&phoneNumber, "phone", "", "Registered phone number (or MAPLITE_PHONE_NUMBER)")
	loginCmd.Flags().StringVar(&pin, "pin", "", "6-digit PIN (or MAPLITE_PIN)")

	rootCmd.AddCommand(loginCmd, logoutCmd, profileCmd, stockCmd, verifyCustomersCmd, createOrdersCmd)
}

// app bundles everything a command needs once input validation has passed.
// The browser is launched here, so commands validate their inputs first.
type app struct {
	config *Config
	driver *rodDriver
	flows  *Workflows
	store  *SessionStore
}

func newApp() (*app, error) {
	config, err := LoadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if headful {
		config.Headless = false
	}
	if debugMode {
		config.DebugMode = true
	}

	driver := NewDriver(config, logger)
	if err := driver.Launch(); err != nil {
		return nil, err
	}

	return &app{
		config: config,
		driver: driver,
		flows:  NewWorkflows(config, logger),
		store:  NewSessionStore(config.SessionFile()),
	}, nil
}

func (a *app) Close() {
	a.driver.Close()
	_ = logger.Sync()
}

func runLogin(cmd *cobra.Command, args []string) error {
	phone := phoneNumber
	if phone == "" {
		phone = os.Getenv("MAPLITE_PHONE_NUMBER")
	}
	pinValue := pin
	if pinValue == "" {
		pinValue = os.Getenv("MAPLITE_PIN")
	}

	if !isValidPhoneNumber(phone) {
		return errors.New("phone number must be 10 to 13 digits without a country code prefix (use --phone or MAPLITE_PHONE_NUMBER)")
	}
	if !isValidPIN(pinValue) {
		return errors.New("PIN must be exactly 6 digits (use --pin or MAPLITE_PIN)")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	session, err := a.flows.Login(a.driver, phone, pinValue)
	if err != nil {
		return err
	}
	if err := a.store.Save(session); err != nil {
		return err
	}

	fmt.Println("Login successful.")
	fmt.Printf("  Merchant type: %s\n", session.Settings.MerchantType)
	fmt.Printf("  Session saved to %s\n", a.store.Path())
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	session, err := a.store.Load()
	if err != nil {
		return err
	}

	if err := a.flows.Logout(a.driver, session); err != nil {
		// An expired bundle is dead either way; don't keep it around.
		if isSessionExpired(err) {
			_ = a.store.Delete()
		}
		return err
	}
	if err := a.store.Delete(); err != nil {
		return err
	}

	fmt.Println("You have been logged out.")
	return nil
}

func runProfile(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	session, err := a.store.Load()
	if err != nil {
		return err
	}

	profile, err := a.flows.GetProfile(a.driver, session)
	if err != nil {
		return err
	}

	fmt.Printf("Store:    %s (%s)\n", profile.StoreName, profile.MerchantType)
	fmt.Printf("Owner:    %s <%s>\n", profile.Person.Name, profile.Person.Email)
	fmt.Printf("Phone:    %s\n", profile.Person.PhoneNumber)
	fmt.Printf("Address:  %s, %s, %s, %s %s\n",
		profile.Location.Address, profile.Location.District,
		profile.Location.City, profile.Location.Province, profile.Location.ZipCode)
	fmt.Printf("Agent:    %s\n", profile.Agent.Name)
	return nil
}

func runStock(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	session, err := a.store.Load()
	if err != nil {
		return err
	}

	product, err := a.flows.GetStock(a.driver, session)
	if err != nil {
		return err
	}

	fmt.Printf("Product:   %s (%s)\n", product.Name, product.ID)
	fmt.Printf("Available: %d\n", product.StockAvailable)
	fmt.Printf("Redeemed:  %d\n", product.StockRedeem)
	if product.LastSyncAt != "" {
		fmt.Printf("Synced:    %s\n", product.LastSyncAt)
	}
	return nil
}

func runVerifyCustomers(cmd *cobra.Command, args []string) error {
	ids, err := loadNationalityIDs(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runner := NewBatchRunner(a.store, a.config.RateLimitCooldown(), logger)
	customers, err := runBatch(cmd.Context(), runner, a.driver, ids,
		func(id string) string { return id },
		a.flows.VerifyCustomer)
	if err != nil {
		return err
	}

	if err := writeResults(a.config.CustomersFile(), customers); err != nil {
		return err
	}

	fmt.Printf("Verified %d of %d customers.\n", len(customers), len(ids))
	fmt.Printf("Results written to %s\n", a.config.CustomersFile())
	return nil
}

func runCreateOrders(cmd *cobra.Command, args []string) error {
	requests, err := loadOrderRequests(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runner := NewBatchRunner(a.store, a.config.RateLimitCooldown(), logger)
	orders, err := runBatch(cmd.Context(), runner, a.driver, requests,
		func(r OrderRequest) string { return fmt.Sprintf("%s x%d", r.NationalityID, r.Quantity) },
		a.flows.CreateOrder)
	if err != nil {
		return err
	}

	if err := writeResults(a.config.OrdersFile(), orders); err != nil {
		return err
	}

	fmt.Printf("Created %d of %d orders.\n", len(orders), len(requests))
	fmt.Printf("Results written to %s\n", a.config.OrdersFile())
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
