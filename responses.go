package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Wire-format payloads for the portal's XHR endpoints. Field names follow
// the portal's JSON contract, including its misspellings.

type loginData struct {
	AccessToken       string `json:"accessToken"`
	IsLogin           bool   `json:"isLogin"`
	MyptmMerchantType string `json:"myptmMerchantType"`
	IsDefaultPin      bool   `json:"isDefaultPin"`
	IsNewUserMyptm    bool   `json:"isNewUserMyptm"`
	IsSubsidiProduct  bool   `json:"isSubsidiProduct"`
}

type quotaFigures struct {
	Type     int `json:"type"`
	Parent   int `json:"parent"`
	Retailer int `json:"retailer"`
}

type merchantData struct {
	Name    string `json:"name"`
	MID     string `json:"mid"`
	Address string `json:"address"`
}

type customerTypeData struct {
	Name         string       `json:"name"`
	SourceTypeID int          `json:"sourceTypeId"`
	Status       int          `json:"status"`
	Merchant     merchantData `json:"merchant"`
}

type verifyData struct {
	NationalityID           string             `json:"nationalityId"`
	FamilyID                string             `json:"familyId"`
	Name                    string             `json:"name"`
	Email                   string             `json:"email"`
	PhoneNumber             string             `json:"phoneNumber"`
	QuotaRemaining          quotaFigures       `json:"quotaRemaining"`
	QuotaRemainingLastMonth quotaFigures       `json:"quotaRemainingLastMonth"`
	CustomerTypes           []customerTypeData `json:"customerTypes"`
	ChannelInject           string             `json:"channelInject"`
	IsAgreedTermsConditions bool               `json:"isAgreedTermsConditions"`
	IsCompleted             bool               `json:"isCompleted"`
	IsSubsidi               bool               `json:"isSubsidi"`
}

type agentData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type profileData struct {
	RegistrationID string    `json:"registrationId"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	City           string    `json:"city"`
	Province       string    `json:"province"`
	Coordinate     string    `json:"coordinate"`
	StoreName      string    `json:"storeName"`
	PhoneNumber    string    `json:"phoneNumber"`
	MerchantType   string    `json:"merchantType"`
	Email          string    `json:"email"`
	NationalityID  string    `json:"nationalityId"`
	DitrictName    string    `json:"ditrictName"`
	VillageName    string    `json:"villageName"`
	Zipcode        string    `json:"zipcode"`
	Agen           agentData `json:"agen"`
}

type productData struct {
	RegistrationID  string  `json:"registrationId"`
	StoreName       string  `json:"storeName"`
	ProductID       string  `json:"productId"`
	ProductName     string  `json:"productName"`
	StockAvailable  int     `json:"stockAvailable"`
	StockRedeem     int     `json:"stockRedeem"`
	ProductMinPrice float64 `json:"productMinPrice"`
	ProductMaxPrice float64 `json:"productMaxPrice"`
	LastSyncAt      string  `json:"lastSyncAt"`
}

type transactionData struct {
	TransactionID string `json:"transactionId"`
}

// decodeResponse unwraps the portal's common {success, data, message, code}
// envelope around every endpoint payload.
func decodeResponse[T any](body []byte) (*T, error) {
	var envelope struct {
		Success bool            `json:"success"`
		Data    T               `json:"data"`
		Message string          `json:"message"`
		Code    json.RawMessage `json:"code"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("parse portal response: %w", err)
	}
	return &envelope.Data, nil
}

// sessionFromLogin combines the login payload with the browser's cookie jar
// into a persistable auth bundle.
func sessionFromLogin(data *loginData, cookies []SessionCookie) *Session {
	return &Session{
		ID:          uuid.NewString(),
		SavedAt:     time.Now(),
		Cookies:     cookies,
		AccessToken: data.AccessToken,
		Settings: SessionSettings{
			IsLogin:          data.IsLogin,
			MerchantType:     data.MyptmMerchantType,
			IsDefaultPin:     data.IsDefaultPin,
			IsNewUser:        data.IsNewUserMyptm,
			IsSubsidyProduct: data.IsSubsidiProduct,
		},
	}
}

// hydrationPayload renders the session back into the wire-format JSON the
// portal expects to find in its client-side storage key.
func hydrationPayload(session *Session) (string, error) {
	data, err := json.Marshal(loginData{
		AccessToken:       session.AccessToken,
		IsLogin:           session.Settings.IsLogin,
		MyptmMerchantType: session.Settings.MerchantType,
		IsDefaultPin:      session.Settings.IsDefaultPin,
		IsNewUserMyptm:    session.Settings.IsNewUser,
		IsSubsidiProduct:  session.Settings.IsSubsidyProduct,
	})
	if err != nil {
		return "", fmt.Errorf("encode hydration payload: %w", err)
	}
	return string(data), nil
}

// customerFromVerify keys the domain Customer by the ID that was submitted,
// not the one echoed back, so batch results line up with batch inputs.
func customerFromVerify(data *verifyData, nationalityID string) *Customer {
	types := make([]CustomerType, 0, len(data.CustomerTypes))
	for _, ct := range data.CustomerTypes {
		types = append(types, CustomerType(ct.Name))
	}

	return &Customer{
		NationalityID: nationalityID,
		FamilyID:      data.FamilyID,
		Name:          data.Name,
		Email:         data.Email,
		PhoneNumber:   data.PhoneNumber,
		Quota: Quota{
			Remaining: data.QuotaRemaining.Parent,
			LastMonth: data.QuotaRemainingLastMonth.Parent,
		},
		Types:            types,
		AgreedTerms:      data.IsAgreedTermsConditions,
		ProfileCompleted: data.IsCompleted,
		SubsidyEligible:  data.IsSubsidi,
	}
}

func profileFromResponse(data *profileData) *Profile {
	return &Profile{
		RegistrationID: data.RegistrationID,
		StoreName:      data.StoreName,
		MerchantType:   data.MerchantType,
		Person: ProfilePerson{
			NationalityID: data.NationalityID,
			Name:          data.Name,
			Email:         data.Email,
			PhoneNumber:   data.PhoneNumber,
		},
		Location: ProfileLocation{
			Address:    data.Address,
			Village:    data.VillageName,
			District:   data.DitrictName,
			City:       data.City,
			Province:   data.Province,
			ZipCode:    data.Zipcode,
			Coordinate: data.Coordinate,
		},
		Agent: ProfileAgent{
			ID:   data.Agen.ID,
			Name: data.Agen.Name,
		},
	}
}

func productFromResponse(data *productData) *Product {
	return &Product{
		ID:             data.ProductID,
		Name:           data.ProductName,
		MinPrice:       data.ProductMinPrice,
		MaxPrice:       data.ProductMaxPrice,
		StockAvailable: data.StockAvailable,
		StockRedeem:    data.StockRedeem,
		LastSyncAt:     data.LastSyncAt,
	}
}

// orderFromTransaction merges the remote transaction id with the local
// customer and product context. The quota is decremented optimistically;
// the authoritative figure lives server-side.
func orderFromTransaction(data *transactionData, customer *Customer, productID, productName string, quantity int) *Order {
	return &Order{
		TransactionID: data.TransactionID,
		Customer: OrderCustomer{
			NationalityID: customer.NationalityID,
			Name:          customer.Name,
			Quota:         customer.Quota.Remaining - quantity,
		},
		Product: OrderProduct{
			ID:       productID,
			Name:     productName,
			Quantity: quantity,
		},
	}
}
