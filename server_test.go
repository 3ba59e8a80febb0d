package main

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-docverify/compare"
	"go-docverify/models"

	"github.com/stretchr/testify/require"
)

const testMRZLine1 = "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<"
const testMRZLine2 = "L898902C36UTO7408122F1204159ZE184226B<<<<<10"

const testBarcodePayload = "DLDAQD12345678\n" +
	"DCSPUBLIC\n" +
	"DACJOHN\n" +
	"DADQUINCY\n" +
	"DBB01151980\n" +
	"DBA01152030\n" +
	"DAG789 E OAK ST\n" +
	"DAIANYTOWN\n" +
	"DAJCA\n" +
	"DAK902300000\n"

type fakeSigner struct{}

func (fakeSigner) SignResult(sessionId string, result compare.Result) (string, error) {
	return "test-jwt", nil
}

func newTestState() *ServerState {
	return &ServerState{
		keyStore: NewInMemoryKeyStore(),
		signer:   fakeSigner{},
		comparer: compare.New(),
	}
}

func postRequest(t *testing.T, path string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
}

func decodeResponse[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func startedSession(t *testing.T, state *ServerState) models.StartSessionResponse {
	t.Helper()
	w := httptest.NewRecorder()
	handleStartSession(state, w, postRequest(t, "/api/start-session", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return decodeResponse[models.StartSessionResponse](t, w)
}

func TestStartSessionStoresNonce(t *testing.T) {
	state := newTestState()

	session := startedSession(t, state)
	require.Len(t, session.SessionId, 32)
	require.Len(t, session.Nonce, 16)

	stored, err := state.keyStore.Get(sessionKeyPrefix + session.SessionId)
	require.NoError(t, err)
	require.Equal(t, session.Nonce, string(stored))
}

func TestStartSessionRejectsGet(t *testing.T) {
	state := newTestState()

	w := httptest.NewRecorder()
	handleStartSession(state, w, httptest.NewRequest(http.MethodGet, "/api/start-session", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestParseMRZRequiresValidSession(t *testing.T) {
	state := newTestState()
	session := startedSession(t, state)

	request := models.ParseMRZRequest{
		SessionRequest: models.SessionRequest{SessionId: session.SessionId, Nonce: "wrong"},
		Lines:          []string{testMRZLine1, testMRZLine2},
	}

	w := httptest.NewRecorder()
	handleParseMRZ(state, w, postRequest(t, "/api/parse-mrz", request))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestParseMRZDetected(t *testing.T) {
	state := newTestState()
	session := startedSession(t, state)

	request := models.ParseMRZRequest{
		SessionRequest: models.SessionRequest{SessionId: session.SessionId, Nonce: session.Nonce},
		Lines:          []string{"some ocr noise", testMRZLine1, testMRZLine2},
	}

	w := httptest.NewRecorder()
	handleParseMRZ(state, w, postRequest(t, "/api/parse-mrz", request))
	require.Equal(t, http.StatusOK, w.Code)

	response := decodeResponse[models.ParseMRZResponse](t, w)
	require.True(t, response.Detected)
	require.NotNil(t, response.MRZ)
	require.Equal(t, "ERIKSSON", response.MRZ.Surname)
	require.Equal(t, "L898902C3", response.MRZ.DocumentNumber)
	require.Equal(t, "UTO", response.MRZ.Nationality)
	require.Equal(t, "L898902C3|740812|120415", response.BacKey)
}

func TestParseMRZNotDetected(t *testing.T) {
	state := newTestState()
	session := startedSession(t, state)

	request := models.ParseMRZRequest{
		SessionRequest: models.SessionRequest{SessionId: session.SessionId, Nonce: session.Nonce},
		Lines:          []string{"nothing", "useful", "here"},
	}

	w := httptest.NewRecorder()
	handleParseMRZ(state, w, postRequest(t, "/api/parse-mrz", request))
	require.Equal(t, http.StatusOK, w.Code)

	response := decodeResponse[models.ParseMRZResponse](t, w)
	require.False(t, response.Detected)
	require.Nil(t, response.MRZ)
	require.Empty(t, response.BacKey)
}

func TestParseBarcode(t *testing.T) {
	state := newTestState()
	session := startedSession(t, state)

	request := models.ParseBarcodeRequest{
		SessionRequest: models.SessionRequest{SessionId: session.SessionId, Nonce: session.Nonce},
		Payload:        testBarcodePayload,
	}

	w := httptest.NewRecorder()
	handleParseBarcode(state, w, postRequest(t, "/api/parse-barcode", request))
	require.Equal(t, http.StatusOK, w.Code)

	response := decodeResponse[models.ParseBarcodeResponse](t, w)
	require.Equal(t, "D12345678", response.LicenseNumber)
	require.Equal(t, "PUBLIC", response.LastName)
	require.Equal(t, "JOHN", response.FirstName)
	require.Equal(t, "01/15/1980", response.DateOfBirth)
	require.Equal(t, "CA", response.State)
}

func TestParseBarcodeRawBytes(t *testing.T) {
	state := newTestState()
	session := startedSession(t, state)

	request := models.ParseBarcodeRequest{
		SessionRequest: models.SessionRequest{SessionId: session.SessionId, Nonce: session.Nonce},
		RawBytes:       []byte(testBarcodePayload),
	}

	w := httptest.NewRecorder()
	handleParseBarcode(state, w, postRequest(t, "/api/parse-barcode", request))
	require.Equal(t, http.StatusOK, w.Code)

	response := decodeResponse[models.ParseBarcodeResponse](t, w)
	require.Equal(t, "D12345678", response.LicenseNumber)
}

func TestCompareIssuesVerdictAndEndsSession(t *testing.T) {
	state := newTestState()
	session := startedSession(t, state)

	request := models.CompareRequest{
		SessionRequest: models.SessionRequest{SessionId: session.SessionId, Nonce: session.Nonce},
		Payload:        testBarcodePayload,
		OcrFields: map[string]string{
			compare.FieldFirstName:      "John",
			compare.FieldLastName:       "Public",
			compare.FieldLicenseNumber:  "D12345678",
			compare.FieldDateOfBirth:    "01/15/1980",
			compare.FieldExpirationDate: "01/15/2030",
			compare.FieldStreet:         "789 E Oak St",
			compare.FieldCity:           "Anytown",
			compare.FieldState:          "CA",
			compare.FieldZip:            "90230",
		},
	}

	w := httptest.NewRecorder()
	handleCompare(state, w, postRequest(t, "/api/compare", request))
	require.Equal(t, http.StatusOK, w.Code)

	response := decodeResponse[struct {
		Result compare.Result `json:"result"`
		Jwt    string         `json:"jwt"`
	}](t, w)
	require.True(t, response.Result.IsMatch)
	require.Equal(t, 1.0, response.Result.MatchPercentage)
	require.Equal(t, "test-jwt", response.Jwt)

	// the nonce is single use
	_, err := state.keyStore.Get(sessionKeyPrefix + session.SessionId)
	require.Error(t, err)
}

func TestCompareRequiresValidSession(t *testing.T) {
	state := newTestState()

	request := models.CompareRequest{
		SessionRequest: models.SessionRequest{SessionId: "unknown", Nonce: "nope"},
		Payload:        testBarcodePayload,
	}

	w := httptest.NewRecorder()
	handleCompare(state, w, postRequest(t, "/api/compare", request))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func registerDevice(t *testing.T, state *ServerState, deviceId string) models.RegisterDeviceResponse {
	t.Helper()

	request := models.RegisterDeviceRequest{
		DeviceId: deviceId,
		Subject: models.CSRSubject{
			Country:      "US",
			Organization: "DocVerify",
			CommonName:   deviceId,
		},
	}

	w := httptest.NewRecorder()
	handleRegisterDevice(state, w, postRequest(t, "/api/register-device", request))
	require.Equal(t, http.StatusOK, w.Code)
	return decodeResponse[models.RegisterDeviceResponse](t, w)
}

func parseCSRPublicKey(t *testing.T, csrPem string) any {
	t.Helper()
	block, _ := pem.Decode([]byte(csrPem))
	require.NotNil(t, block)
	request, err := x509.ParseCertificateRequest(block.Bytes)
	require.NoError(t, err)
	require.NoError(t, request.CheckSignature())
	return request.PublicKey
}

func TestRegisterDeviceReturnsValidCSR(t *testing.T) {
	state := newTestState()

	response := registerDevice(t, state, "device-1")
	require.Equal(t, "device-1", response.DeviceId)
	parseCSRPublicKey(t, response.CsrPem)
}

func TestRegisterDeviceReusesKeyPair(t *testing.T) {
	state := newTestState()

	first := registerDevice(t, state, "device-1")
	second := registerDevice(t, state, "device-1")
	require.Equal(t, parseCSRPublicKey(t, first.CsrPem), parseCSRPublicKey(t, second.CsrPem))

	other := registerDevice(t, state, "device-2")
	require.NotEqual(t, parseCSRPublicKey(t, first.CsrPem), parseCSRPublicKey(t, other.CsrPem))
}

func TestRegisterDeviceMissingId(t *testing.T) {
	state := newTestState()

	request := models.RegisterDeviceRequest{
		Subject: models.CSRSubject{CommonName: "nameless"},
	}

	w := httptest.NewRecorder()
	handleRegisterDevice(state, w, postRequest(t, "/api/register-device", request))
	require.Equal(t, http.StatusBadRequest, w.Code)
}
