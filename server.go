package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-kyc-verifier/images"
	"go-kyc-verifier/models"
	"go-kyc-verifier/pipeline"
)

const ErrorInternal = "error:internal"
const ERR_MARSHAL = "failed to marshal response message"
const ERR_NONCE_REMOVAL = "failed to remove nonce from storage"
const ERR_NONCE_RETRIEVAL = "failed to get nonce from storage"
const ERR_INVALID_NONCE_SESSION = "invalid session or nonce"
const ERR_VERIFICATION = "failed to verify documents"

// Uploads above this size are rejected outright.
const maxUploadBytes = 64 << 20

type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	UseTls         bool   `json:"use_tls,omitempty"`
	TlsPrivKeyPath string `json:"tls_priv_key_path,omitempty"`
	TlsCertPath    string `json:"tls_cert_path,omitempty"`

	// When true, /api/kyc/verify requires a session id and nonce issued by
	// /api/kyc/start.
	RequireSession bool `json:"require_session,omitempty"`
}

type ServerState struct {
	sessionStorage     SessionStorage
	pipeline           *pipeline.Pipeline
	converter          images.Converter
	attestationCreator AttestationCreator
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
		err := json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "service": "kyc-verification"})
		if err != nil {
			slog.Error("failed to write body to http response", "error", err)
		}
	}).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/api/kyc/start", func(w http.ResponseWriter, r *http.Request) {
		handleStartVerification(state, w, r)
	})
	router.HandleFunc("/api/kyc/verify", func(w http.ResponseWriter, r *http.Request) {
		handleVerify(state, config, w, r)
	})

	slog.Debug("Registered all API routes")

	addr := fmt.Sprintf("%v:%v", config.Host, config.Port)
	srv := &http.Server{
		Handler: router,
		Addr:    addr,
		// Good practice: enforce timeouts for servers you create!
		// Verification requests carry several image uploads and wait on the
		// vision service, so they get generous limits.
		WriteTimeout: 120 * time.Second,
		ReadTimeout:  120 * time.Second,
	}

	slog.Info("Server created successfully", "address", addr)
	return &Server{
		server: srv,
		config: config,
	}, nil
}

type StartVerificationResponse struct {
	SessionId string `json:"session_id"`
	Nonce     string `json:"nonce"`
}

func handleStartVerification(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Info("Received request to start document verification")

	slog.Debug("Generating session ID")
	sessionId := GenerateSessionId()
	if sessionId == "" {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to generate session ID", fmt.Errorf("failed to generate session ID"))
		return
	}
	slog.Debug("Session ID generated", "session_id", sessionId)

	slog.Debug("Generating nonce", "session_id", sessionId)
	nonce, err := GenerateNonce(8)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to generate nonce", err)
		return
	}

	// The nonce lives in storage until the verification result is handed out
	slog.Debug("Storing nonce in session storage", "session_id", sessionId)
	err = state.sessionStorage.StoreNonce(sessionId, nonce)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to store nonce", err)
		return
	}

	response := StartVerificationResponse{
		SessionId: sessionId,
		Nonce:     nonce,
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Document verification session started", "session_id", sessionId)
}

func handleVerify(state *ServerState, config ServerConfig, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	slog.Info("Received request to verify documents")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", "failed to parse multipart form", err)
		return
	}

	sessionId := r.FormValue("session_id")
	if config.RequireSession {
		nonce := r.FormValue("nonce")
		if err := validateSession(state.sessionStorage, sessionId, nonce); err != nil {
			respondWithErr(w, http.StatusUnauthorized, ERR_INVALID_NONCE_SESSION, "session validation failed", err)
			return
		}
	}

	tempDir, err := os.MkdirTemp("", "kyc_")
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to create temp dir", err)
		return
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			slog.Warn("Failed to clean up temp dir", "dir", tempDir, "error", err)
		}
	}()

	docs, err := collectDocuments(r, state.converter, tempDir)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_VERIFICATION, err)
		return
	}

	result := state.pipeline.Run(r.Context(), docs)

	result.Metadata = models.RequestMetadata{
		RiderID:      optionalFormValue(r, "rider_id"),
		OnboardingID: optionalFormValue(r, "onboarding_id"),
	}

	if state.attestationCreator != nil {
		attestation, err := state.attestationCreator.CreateAttestation(sessionId, result, result.Metadata)
		if err != nil {
			slog.Warn("Failed to create attestation", "error", err)
		} else {
			result.Attestation = attestation
		}
	}

	if err := writeJSON(w, http.StatusOK, result); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Document verification completed", "status", result.Status, "session_id", sessionId)
	if config.RequireSession {
		removeSessionNonce(state.sessionStorage, sessionId)
	}
}

// collectDocuments saves each uploaded document into tempDir, converts it to
// normalized JPEGs and maps the document type to the first converted page.
// Every document except the optional RC must be present.
func collectDocuments(r *http.Request, converter images.Converter, tempDir string) (map[models.DocumentType]string, error) {
	docs := make(map[models.DocumentType]string)

	for _, doc := range models.AllDocumentTypes() {
		file, header, err := r.FormFile(string(doc))
		if err != nil {
			if doc.Mandatory() {
				return nil, fmt.Errorf("missing required document %s: %w", doc, err)
			}
			continue
		}

		rawPath := filepath.Join(tempDir, fmt.Sprintf("raw_%s_%s", doc, filepath.Base(header.Filename)))
		if err := saveUpload(file, rawPath); err != nil {
			return nil, fmt.Errorf("failed to save upload for %s: %w", doc, err)
		}

		converted, err := converter.Convert(rawPath, filepath.Join(tempDir, string(doc)))
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s: %w", doc, err)
		}
		if len(converted) == 0 {
			return nil, fmt.Errorf("no images produced for %s", doc)
		}

		// Documents are assumed single-page; only the first page is used.
		docs[doc] = converted[0]
	}

	return docs, nil
}

func saveUpload(file multipart.File, path string) error {
	defer file.Close()

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, file)
	return err
}

func optionalFormValue(r *http.Request, key string) *string {
	value := r.FormValue(key)
	if value == "" {
		return nil
	}
	return &value
}

// -----------------------------------------------------------------------------------

// validateSession validates session and nonce
func validateSession(storage SessionStorage, sessionId, nonce string) error {
	slog.Debug("Validating session and nonce", "session_id", sessionId)
	storedNonce, err := storage.RetrieveNonce(sessionId)
	if err != nil {
		slog.Warn("Failed to retrieve nonce from storage", "session_id", sessionId, "error", err)
		return fmt.Errorf("%s: %w", ERR_NONCE_RETRIEVAL, err)
	}

	if storedNonce == "" || storedNonce != nonce {
		slog.Warn("Invalid nonce or session", "session_id", sessionId, "nonce_empty", storedNonce == "", "nonce_match", storedNonce == nonce)
		return fmt.Errorf("%s", ERR_INVALID_NONCE_SESSION)
	}

	slog.Debug("Session validation successful", "session_id", sessionId)
	return nil
}

// removeSessionNonce removes the nonce and logs an error if it failed
func removeSessionNonce(storage SessionStorage, sessionId string) {
	slog.Debug("Removing session nonce", "session_id", sessionId)
	if err := storage.RemoveNonce(sessionId); err != nil {
		slog.Error(ERR_NONCE_REMOVAL, "session_id", sessionId, "error", err)
	} else {
		slog.Debug("Session nonce removed successfully", "session_id", sessionId)
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
	} else {
		slog.Debug("JSON response written successfully", "status_code", status, "payload_size", len(payload))
	}
	return nil
}
