package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/claimmatrix/claimmatrix/internal/cli/config"
)

// setupTestEnvironment creates a temporary directory with a claimmatrix.json
func setupTestEnvironment(t *testing.T, envs []config.Environment) (string, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "claimmatrix-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	cfg := config.Config{
		Environments: envs,
	}
	cfgData, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}

	cfgPath := filepath.Join(tempDir, config.ConfigFileName)
	if err := os.WriteFile(cfgPath, cfgData, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	if err := os.Chdir(tempDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}

	// Keep the selected-environment user config inside the temp dir
	originalHome := os.Getenv("HOME")
	os.Setenv("HOME", tempDir)

	cleanup := func() {
		os.Setenv("HOME", originalHome)
		os.Chdir(originalDir)
		os.RemoveAll(tempDir)
	}

	return tempDir, cleanup
}

// mockAPIServer serves the login and identity endpoints the session manager hits
func mockAPIServer(t *testing.T, email, password, token string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/auth/login" && r.Method == http.MethodPost:
			var creds struct {
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if creds.Email != email || creds.Password != password {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect email or password"})
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"access_token": token,
				"token_type":   "bearer",
			})

		case r.URL.Path == "/api/v1/users/me" && r.Method == http.MethodGet:
			if r.Header.Get("Authorization") != "Bearer "+token {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"detail": "Could not validate credentials"})
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"id":    "user-123",
				"name":  "Test User",
				"email": email,
			})

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestLoginCommand_SuccessfulLogin(t *testing.T) {
	keyring.MockInit()

	mockServer := mockAPIServer(t, "test@example.com", "password123", "test-token-abc")
	defer mockServer.Close()

	envs := []config.Environment{
		{Alias: "test", URL: mockServer.URL},
	}
	_, cleanup := setupTestEnvironment(t, envs)
	defer cleanup()

	if err := runLogin("test@example.com", "password123", ""); err != nil {
		t.Fatalf("runLogin failed: %v", err)
	}

	// The stored token should hydrate a new session
	env := &envs[0]
	mgr, err := restoredSession(env)
	if err != nil {
		t.Fatalf("restoredSession after login failed: %v", err)
	}

	identity, ok := mgr.State().Identity()
	if !ok {
		t.Fatal("expected an identity after login")
	}
	if identity.Email != "test@example.com" {
		t.Errorf("expected identity email test@example.com, got %s", identity.Email)
	}
}

func TestLoginCommand_WrongPassword(t *testing.T) {
	keyring.MockInit()

	mockServer := mockAPIServer(t, "test@example.com", "password123", "test-token-abc")
	defer mockServer.Close()

	_, cleanup := setupTestEnvironment(t, []config.Environment{
		{Alias: "test", URL: mockServer.URL},
	})
	defer cleanup()

	err := runLogin("test@example.com", "wrong-password", "")
	if err == nil {
		t.Fatal("expected error for wrong password, got nil")
	}
	if !strings.Contains(err.Error(), "login failed") {
		t.Errorf("expected login failure error, got: %v", err)
	}

	// No credentials should have been stored
	env := &config.Environment{Alias: "test", URL: mockServer.URL}
	if _, err := restoredSession(env); err == nil {
		t.Error("expected restoredSession to fail after rejected login")
	}
}

func TestLoginCommand_MissingEmail(t *testing.T) {
	_, cleanup := setupTestEnvironment(t, []config.Environment{
		{Alias: "test", URL: "http://127.0.0.1:9"},
	})
	defer cleanup()

	os.Unsetenv("CLAIMMATRIX_EMAIL")
	os.Unsetenv("CLAIMMATRIX_PASSWORD")

	err := runLogin("", "password123", "")
	if err == nil {
		t.Fatal("expected error when email is missing, got nil")
	}

	expectedError := "email is required (use --email flag or CLAIMMATRIX_EMAIL env var)"
	if err.Error() != expectedError {
		t.Errorf("expected error '%s', got '%s'", expectedError, err.Error())
	}
}

func TestLoginCommand_EnvVarCredentials(t *testing.T) {
	keyring.MockInit()

	mockServer := mockAPIServer(t, "env@example.com", "envpass", "env-token")
	defer mockServer.Close()

	_, cleanup := setupTestEnvironment(t, []config.Environment{
		{Alias: "test", URL: mockServer.URL},
	})
	defer cleanup()

	os.Setenv("CLAIMMATRIX_EMAIL", "env@example.com")
	os.Setenv("CLAIMMATRIX_PASSWORD", "envpass")
	defer os.Unsetenv("CLAIMMATRIX_EMAIL")
	defer os.Unsetenv("CLAIMMATRIX_PASSWORD")

	if err := runLogin("", "", ""); err != nil {
		t.Fatalf("runLogin with env var credentials failed: %v", err)
	}
}

func TestLoginCommand_NoConfigFile(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "claimmatrix-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	originalDir, _ := os.Getwd()
	os.Chdir(tempDir)
	defer os.Chdir(originalDir)

	err = runLogin("test@example.com", "password123", "")
	if err == nil {
		t.Fatal("expected error when config file is missing, got nil")
	}
	if !strings.Contains(err.Error(), "failed to load config") {
		t.Errorf("expected config load error, got: %v", err)
	}
}

func TestLoginCommand_Flags(t *testing.T) {
	cmd := NewLoginCmd()

	if cmd.Use != "login" {
		t.Errorf("expected Use to be 'login', got %s", cmd.Use)
	}

	for _, flag := range []string{"email", "password", "env"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected --%s flag to exist", flag)
		}
	}
}
