package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go-docverify/aamva"
	"go-docverify/compare"
	"go-docverify/csr"
	"go-docverify/models"
	"go-docverify/mrz"
	"go-docverify/mrzkey"

	"github.com/gorilla/mux"
)

const ErrorInternal = "error:internal"
const ERR_MARSHAL = "failed to marshal response message"
const ERR_JWT_CREATION = "failed to create jwt"
const ERR_TOKEN_REMOVAL = "failed to remove token from storage"
const ERR_TOKEN_RETRIEVAL = "failed to get nonce from storage"
const ERR_INVALID_NONCE_SESSION = "invalid session or nonce"
const ERR_KEY_GENERATION = "failed to generate device key"
const ERR_CSR_CREATION = "failed to build certificate request"

const sessionKeyPrefix = "session:"
const deviceKeyPrefix = "device:"

const deviceKeyBits = 2048

type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	UseTls         bool   `json:"use_tls,omitempty"`
	TlsPrivKeyPath string `json:"tls_priv_key_path,omitempty"`
	TlsCertPath    string `json:"tls_cert_path,omitempty"`
}

type ServerState struct {
	keyStore KeyStore
	signer   ResultSigner
	comparer *compare.Comparer
}

type Server struct {
	server *http.Server
	config ServerConfig
}

func (s *Server) ListenAndServe() error {
	if s.config.UseTls {
		slog.Info("Starting server with TLS", "host", s.config.Host, "port", s.config.Port, "cert", s.config.TlsCertPath, "key", s.config.TlsPrivKeyPath)
		return s.server.ListenAndServeTLS(s.config.TlsCertPath, s.config.TlsPrivKeyPath)
	} else {
		slog.Info("Starting server without TLS", "host", s.config.Host, "port", s.config.Port)
		return s.server.ListenAndServe()
	}
}

func (s *Server) Stop() error {
	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		slog.Error("Error during server shutdown", "error", err)
	} else {
		slog.Info("Server shut down successfully")
	}
	return err
}

func NewServer(state *ServerState, config ServerConfig) (*Server, error) {
	slog.Info("Creating new server", "host", config.Host, "port", config.Port, "tls", config.UseTls)
	router := mux.NewRouter()

	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("Health check request received")
		err := json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		if err != nil {
			slog.Error("failed to write body to http response", "error", err)
		}
	})

	router.HandleFunc("/api/start-session", func(w http.ResponseWriter, r *http.Request) {
		handleStartSession(state, w, r)
	})
	router.HandleFunc("/api/parse-mrz", func(w http.ResponseWriter, r *http.Request) {
		handleParseMRZ(state, w, r)
	})
	router.HandleFunc("/api/parse-barcode", func(w http.ResponseWriter, r *http.Request) {
		handleParseBarcode(state, w, r)
	})
	router.HandleFunc("/api/compare", func(w http.ResponseWriter, r *http.Request) {
		handleCompare(state, w, r)
	})
	router.HandleFunc("/api/register-device", func(w http.ResponseWriter, r *http.Request) {
		handleRegisterDevice(state, w, r)
	})

	slog.Debug("Registered all API routes")

	addr := fmt.Sprintf("%v:%v", config.Host, config.Port)
	srv := &http.Server{
		Handler: router,
		Addr:    addr,
		// Good practice: enforce timeouts for servers you create!
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	slog.Info("Server created successfully", "address", addr)
	return &Server{
		server: srv,
		config: config,
	}, nil
}

func handleStartSession(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Info("Received request to start a verification session")

	sessionId := GenerateSessionId()
	if sessionId == "" {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to generate session ID", fmt.Errorf("failed to generate session ID"))
		return
	}

	nonce, err := GenerateNonce(8)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to generate nonce", err)
		return
	}

	// The nonce lives until the comparison verdict is handed out
	err = state.keyStore.Put(sessionKeyPrefix+sessionId, []byte(nonce), SessionTTL)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to store nonce", err)
		return
	}

	response := models.StartSessionResponse{
		SessionId: sessionId,
		Nonce:     nonce,
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Verification session started", "session_id", sessionId)
}

func handleParseMRZ(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Debug("Received request to parse MRZ lines")

	var request models.ParseMRZRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "failed to decode MRZ parse request", err)
		return
	}

	if err := validateSession(state.keyStore, request.SessionId, request.Nonce); err != nil {
		respondWithErr(w, http.StatusUnauthorized, ERR_INVALID_NONCE_SESSION, ERR_INVALID_NONCE_SESSION, err)
		return
	}

	data := mrz.Parse(request.Lines)
	if data == nil {
		// Steady state while the camera is still hunting for the zone
		slog.Debug("No machine readable zone in submitted lines", "session_id", request.SessionId, "line_count", len(request.Lines))
		if err := writeJSON(w, http.StatusOK, models.ParseMRZResponse{Detected: false}); err != nil {
			respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		}
		return
	}

	bacKey, err := mrzkey.GenerateFormatted(data.DocumentNumber, data.DateOfBirth, data.DateOfExpiry)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to derive access key from parsed zone", err)
		return
	}

	response := models.ParseMRZResponse{
		Detected: true,
		MRZ: &models.MRZData{
			DocumentType:   data.DocumentType,
			IssuingCountry: data.IssuingCountry,
			Surname:        data.Surname,
			GivenNames:     data.GivenNames,
			DocumentNumber: data.DocumentNumber,
			Nationality:    data.Nationality,
			DateOfBirth:    data.DateOfBirth,
			Sex:            data.Sex,
			DateOfExpiry:   data.DateOfExpiry,
			PersonalNumber: data.PersonalNumber,
		},
		BacKey: bacKey,
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Machine readable zone parsed", "session_id", request.SessionId, "document_type", data.DocumentType)
}

func handleParseBarcode(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Debug("Received request to parse barcode payload")

	var request models.ParseBarcodeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "failed to decode barcode parse request", err)
		return
	}

	if err := validateSession(state.keyStore, request.SessionId, request.Nonce); err != nil {
		respondWithErr(w, http.StatusUnauthorized, ERR_INVALID_NONCE_SESSION, ERR_INVALID_NONCE_SESSION, err)
		return
	}

	payload, err := barcodeText(request.Payload, request.RawBytes)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "failed to decode barcode payload bytes", err)
		return
	}

	data := aamva.Parse(payload)

	if err := writeJSON(w, http.StatusOK, toBarcodeResponse(data)); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Barcode payload parsed", "session_id", request.SessionId, "license_found", data.LicenseNumber != "")
}

func handleCompare(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Info("Received request to compare document sources")

	var request models.CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "failed to decode compare request", err)
		return
	}

	if err := validateSession(state.keyStore, request.SessionId, request.Nonce); err != nil {
		respondWithErr(w, http.StatusUnauthorized, ERR_INVALID_NONCE_SESSION, ERR_INVALID_NONCE_SESSION, err)
		return
	}

	payload, err := barcodeText(request.Payload, request.RawBytes)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "failed to decode barcode payload bytes", err)
		return
	}

	barcode := aamva.Parse(payload)
	result := state.comparer.Compare(request.OcrFields, barcode)

	slog.Debug("Comparison completed", "session_id", request.SessionId, "is_match", result.IsMatch, "match_percentage", result.MatchPercentage)

	token, err := state.signer.SignResult(request.SessionId, result)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ERR_JWT_CREATION, ERR_JWT_CREATION, err)
		return
	}

	response := struct {
		Result compare.Result `json:"result"`
		Jwt    string         `json:"jwt"`
	}{
		Result: result,
		Jwt:    token,
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Comparison verdict issued", "session_id", request.SessionId, "is_match", result.IsMatch)
	removeSessionToken(w, state.keyStore, request.SessionId)
}

func handleRegisterDevice(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Info("Received request to register a device")

	var request models.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "failed to decode device registration request", err)
		return
	}

	if request.DeviceId == "" {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "device registration without device id", fmt.Errorf("missing device_id"))
		return
	}

	key, err := loadOrCreateDeviceKey(state.keyStore, request.DeviceId)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_KEY_GENERATION, err)
		return
	}

	subject := csr.Subject{
		Country:            request.Subject.Country,
		State:              request.Subject.State,
		Locality:           request.Subject.Locality,
		Organization:       request.Subject.Organization,
		OrganizationalUnit: request.Subject.OrganizationalUnit,
		CommonName:         request.Subject.CommonName,
	}

	pem, err := csr.GeneratePEM(subject, key)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_CSR_CREATION, err)
		return
	}

	response := models.RegisterDeviceResponse{
		DeviceId: request.DeviceId,
		CsrPem:   pem,
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Device registered", "device_id", request.DeviceId)
}

// loadOrCreateDeviceKey reuses the stored PKCS#1 key for a known device and
// generates a fresh 2048-bit key on first registration.
func loadOrCreateDeviceKey(store KeyStore, deviceId string) (*rsa.PrivateKey, error) {
	storeKey := deviceKeyPrefix + deviceId + ":key"

	if stored, err := store.Get(storeKey); err == nil {
		key, err := x509.ParsePKCS1PrivateKey(stored)
		if err != nil {
			return nil, fmt.Errorf("stored device key is corrupt: %w", err)
		}
		slog.Debug("Reusing stored device key", "device_id", deviceId)
		return key, nil
	}

	slog.Debug("Generating new device key", "device_id", deviceId)
	key, err := rsa.GenerateKey(rand.Reader, deviceKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generating device key: %w", err)
	}

	if err := store.Put(storeKey, x509.MarshalPKCS1PrivateKey(key), 0); err != nil {
		return nil, fmt.Errorf("storing device key: %w", err)
	}
	return key, nil
}

// -----------------------------------------------------------------------------------

// validateSession validates session and nonce
func validateSession(store KeyStore, sessionId, nonce string) error {
	slog.Debug("Validating session and nonce", "session_id", sessionId)
	storedNonce, err := store.Get(sessionKeyPrefix + sessionId)
	if err != nil {
		slog.Warn("Failed to retrieve nonce from storage", "session_id", sessionId, "error", err)
		return fmt.Errorf("%s: %w", ERR_TOKEN_RETRIEVAL, err)
	}

	if len(storedNonce) == 0 || string(storedNonce) != nonce {
		slog.Warn("Invalid nonce or session", "session_id", sessionId, "nonce_empty", len(storedNonce) == 0)
		return fmt.Errorf("%s", ERR_INVALID_NONCE_SESSION)
	}

	slog.Debug("Session validation successful", "session_id", sessionId)
	return nil
}

// removeSessionToken removes the nonce and logs error if failed
func removeSessionToken(w http.ResponseWriter, store KeyStore, sessionId string) {
	slog.Debug("Removing session nonce", "session_id", sessionId)
	if err := store.Delete(sessionKeyPrefix + sessionId); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_TOKEN_REMOVAL, err)
	} else {
		slog.Debug("Session nonce removed successfully", "session_id", sessionId)
	}
}

// barcodeText picks the payload representation: raw scanner bytes when
// present (Latin-1 decoded), the text field otherwise.
func barcodeText(payload string, rawBytes []byte) (string, error) {
	if len(rawBytes) > 0 {
		return aamva.DecodePayload(rawBytes)
	}
	return payload, nil
}

func toBarcodeResponse(data aamva.Data) models.ParseBarcodeResponse {
	return models.ParseBarcodeResponse{
		LicenseNumber:         data.LicenseNumber,
		FirstName:             data.FirstName,
		MiddleName:            data.MiddleName,
		LastName:              data.LastName,
		Street:                data.Street,
		City:                  data.City,
		State:                 data.State,
		Country:               data.Country,
		Zip:                   data.Zip,
		DateOfBirth:           data.DateOfBirth,
		IssueDate:             data.IssueDate,
		ExpirationDate:        data.ExpirationDate,
		LicenseClass:          data.LicenseClass,
		Sex:                   data.Sex,
		EyeColor:              data.EyeColor,
		HairColor:             data.HairColor,
		Height:                data.Height,
		Weight:                data.Weight,
		Restrictions:          data.Restrictions,
		DocumentDiscriminator: data.DocumentDiscriminator,
		RealID:                data.RealID,
		Hazmat:                data.Hazmat,
	}
}

func GenerateSessionId() string {
	sessionId := make([]byte, 16)
	if _, err := rand.Read(sessionId); err != nil {
		slog.Error("failed to generate session ID", "error", err)
		return ""
	}
	hexId := fmt.Sprintf("%x", sessionId)
	slog.Debug("Session ID generated successfully", "session_id", hexId)
	return hexId
}

// GenerateNonce Generates a random nonce
func GenerateNonce(i int) (string, error) {
	nonce := make([]byte, i)
	if _, err := rand.Read(nonce); err != nil {
		slog.Error("failed to generate nonce", "error", err)
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	hexString := hex.EncodeToString(nonce)
	slog.Debug("Nonce generated successfully", "length", i)
	return hexString, nil
}

func respondWithErr(w http.ResponseWriter, code int, responseBody string, logMsg string, e error) {
	slog.Error(logMsg, "error", e, "status_code", code, "response_body", responseBody)
	w.WriteHeader(code)
	if _, err := w.Write([]byte(responseBody)); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

// helpers ------------

func closeRequestBody(r *http.Request) {
	if err := r.Body.Close(); err != nil {
		slog.Error("failed to close request body", "error", err)
	}
}

func requirePOST(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		slog.Debug("Non-POST request rejected", "method", r.Method, "path", r.URL.Path)
		respondWithErr(w, http.StatusMethodNotAllowed, "method not allowed", "invalid method", nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	slog.Debug("Writing JSON response", "status_code", status)
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal JSON payload", "error", err)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(payload)
	if err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
	return nil
}
