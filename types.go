package main

import "regexp"

// CustomerType is a portal-side eligibility classification.
type CustomerType string

const (
	CustomerTypeHousehold     CustomerType = "Rumah Tangga"
	CustomerTypeMicroBusiness CustomerType = "Usaha Mikro"
)

// Quota is a customer's remaining subsidized allotment. The authoritative
// figures live server-side; local copies are snapshots.
type Quota struct {
	Remaining int `json:"remaining"`
	LastMonth int `json:"lastMonth"`
}

// Customer is the result of a verify-customer call. Read-only afterward;
// only the quota snapshot is decremented locally when an order is placed.
type Customer struct {
	NationalityID    string         `json:"nationalityId"`
	FamilyID         string         `json:"familyId,omitempty"`
	Name             string         `json:"name"`
	Email            string         `json:"email,omitempty"`
	PhoneNumber      string         `json:"phoneNumber,omitempty"`
	Quota            Quota          `json:"quota"`
	Types            []CustomerType `json:"types"`
	AgreedTerms      bool           `json:"agreedTerms"`
	ProfileCompleted bool           `json:"profileCompleted"`
	SubsidyEligible  bool           `json:"subsidyEligible"`
}

// Product is a read-only stock snapshot, never cached across workflow calls.
type Product struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	MinPrice       float64 `json:"minPrice"`
	MaxPrice       float64 `json:"maxPrice"`
	StockAvailable int     `json:"stockAvailable"`
	StockRedeem    int     `json:"stockRedeem"`
	LastSyncAt     string  `json:"lastSyncAt,omitempty"`
}

// OrderCustomer echoes the customer an order was placed against, with the
// quota optimistically decremented by the order quantity.
type OrderCustomer struct {
	NationalityID string `json:"nationalityId"`
	Name          string `json:"name"`
	Quota         int    `json:"quota"`
}

// OrderProduct echoes the redeemed product and quantity.
type OrderProduct struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Order is immutable once returned by the create-order workflow.
type Order struct {
	TransactionID string        `json:"transactionId"`
	Customer      OrderCustomer `json:"customer"`
	Product       OrderProduct  `json:"product"`
}

// ProfilePerson holds the registered merchant owner's identity.
type ProfilePerson struct {
	NationalityID string `json:"nationalityId"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	PhoneNumber   string `json:"phoneNumber"`
}

// ProfileLocation holds the registered store location.
type ProfileLocation struct {
	Address    string `json:"address"`
	Village    string `json:"village"`
	District   string `json:"district"`
	City       string `json:"city"`
	Province   string `json:"province"`
	ZipCode    string `json:"zipCode"`
	Coordinate string `json:"coordinate"`
}

// ProfileAgent identifies the LPG distribution agent the store buys from.
type ProfileAgent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Profile is the merchant/store registration info for the session. Read-only.
type Profile struct {
	RegistrationID string          `json:"registrationId"`
	StoreName      string          `json:"storeName"`
	MerchantType   string          `json:"merchantType"`
	Person         ProfilePerson   `json:"person"`
	Location       ProfileLocation `json:"location"`
	Agent          ProfileAgent    `json:"agent"`
}

var (
	nationalityIDPattern = regexp.MustCompile(`^\d{16}$`)
	pinPattern           = regexp.MustCompile(`^\d{6}$`)
	phoneNumberPattern   = regexp.MustCompile(`^\d{10,13}$`)
)

func isValidNationalityID(id string) bool {
	return nationalityIDPattern.MatchString(id)
}

func isValidPIN(pin string) bool {
	return pinPattern.MatchString(pin)
}

// isValidPhoneNumber accepts local numbers without a country code prefix.
func isValidPhoneNumber(phoneNumber string) bool {
	return phoneNumberPattern.MatchString(phoneNumber)
}

// maxOrderQuantity is the portal's hard per-transaction cap.
const maxOrderQuantity = 20

// isValidOrderQuantity holds iff 1 <= q <= 20 and q <= quota.
func isValidOrderQuantity(quantity, quota int) bool {
	return quantity >= 1 && quantity <= maxOrderQuantity && quantity <= quota
}
