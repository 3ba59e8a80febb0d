package models

type StartSessionResponse struct {
	SessionId string `json:"session_id"`
	Nonce     string `json:"nonce"`
}

// ParseMRZResponse reports one scan attempt. Detected stays false while the
// camera has not yet produced a readable line pair; clients keep submitting
// frames until it flips.
type ParseMRZResponse struct {
	Detected bool     `json:"detected"`
	MRZ      *MRZData `json:"mrz,omitempty"`
	BacKey   string   `json:"bac_key,omitempty"`
}

type MRZData struct {
	DocumentType   string `json:"document_type"`
	IssuingCountry string `json:"issuing_country"`
	Surname        string `json:"surname"`
	GivenNames     string `json:"given_names"`
	DocumentNumber string `json:"document_number"`
	Nationality    string `json:"nationality"`
	DateOfBirth    string `json:"date_of_birth"`
	Sex            string `json:"sex"`
	DateOfExpiry   string `json:"date_of_expiry"`
	PersonalNumber string `json:"personal_number,omitempty"`
}

type ParseBarcodeResponse struct {
	LicenseNumber string `json:"license_number,omitempty"`
	FirstName     string `json:"first_name,omitempty"`
	MiddleName    string `json:"middle_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`

	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
	Zip     string `json:"zip,omitempty"`

	DateOfBirth    string `json:"date_of_birth,omitempty"`
	IssueDate      string `json:"issue_date,omitempty"`
	ExpirationDate string `json:"expiration_date,omitempty"`

	LicenseClass string `json:"license_class,omitempty"`
	Sex          string `json:"sex,omitempty"`
	EyeColor     string `json:"eye_color,omitempty"`
	HairColor    string `json:"hair_color,omitempty"`
	Height       string `json:"height,omitempty"`
	Weight       string `json:"weight,omitempty"`

	Restrictions          string `json:"restrictions,omitempty"`
	DocumentDiscriminator string `json:"document_discriminator,omitempty"`

	RealID bool `json:"real_id"`
	Hazmat bool `json:"hazmat"`
}

type RegisterDeviceResponse struct {
	DeviceId string `json:"device_id"`
	CsrPem   string `json:"csr_pem"`
}
