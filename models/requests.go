package models

// SessionRequest carries the session credentials every authenticated
// endpoint requires.
type SessionRequest struct {
	SessionId string `json:"session_id"`
	Nonce     string `json:"nonce"`
}

type ParseMRZRequest struct {
	SessionRequest
	Lines []string `json:"lines"`
}

// ParseBarcodeRequest takes either the decoded barcode text or the raw
// scanner bytes (base64 in JSON). Raw bytes win when both are set; they are
// Latin-1 decoded before parsing.
type ParseBarcodeRequest struct {
	SessionRequest
	Payload  string `json:"payload,omitempty"`
	RawBytes []byte `json:"raw_bytes,omitempty"`
}

type CompareRequest struct {
	SessionRequest
	OcrFields map[string]string `json:"ocr_fields"`
	Payload   string            `json:"payload,omitempty"`
	RawBytes  []byte            `json:"raw_bytes,omitempty"`
}

// RegisterDeviceRequest asks for a certificate signing request for the
// device's key pair. The key pair is created on first registration and
// reused afterwards.
type RegisterDeviceRequest struct {
	DeviceId string     `json:"device_id"`
	Subject  CSRSubject `json:"subject"`
}

type CSRSubject struct {
	Country            string `json:"country,omitempty"`
	State              string `json:"state,omitempty"`
	Locality           string `json:"locality,omitempty"`
	Organization       string `json:"organization,omitempty"`
	OrganizationalUnit string `json:"organizational_unit,omitempty"`
	CommonName         string `json:"common_name"`
}
