package auth

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{envBaseURL, envAPIURL, envPassword, envAPIKey, envHelper} {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func tempSettingsPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "settings.json")
}

func TestResolve_PrefersAPIKeyEnvOverSettingsFile(t *testing.T) {
	clearEnv(t)
	path := tempSettingsPath(t)
	if err := Save(path, Settings{BaseURL: "https://self-hosted.example", APIKey: "file-key"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	os.Setenv(envAPIKey, "env-key")

	cred, err := Resolve(path)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cred.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cred.APIKey)
	}
	if cred.Source != SourceAPIKey {
		t.Errorf("Source = %q, want %q", cred.Source, SourceAPIKey)
	}
}

func TestResolve_FallsBackToSettingsFile(t *testing.T) {
	clearEnv(t)
	path := tempSettingsPath(t)
	if err := Save(path, Settings{BaseURL: "https://self-hosted.example", APIKey: "file-key"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	cred, err := Resolve(path)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cred.APIKey != "file-key" {
		t.Errorf("APIKey = %q, want file-key", cred.APIKey)
	}
	if cred.Source != SourceSettings {
		t.Errorf("Source = %q, want %q", cred.Source, SourceSettings)
	}
	if cred.BaseURL != "https://self-hosted.example" {
		t.Errorf("BaseURL = %q, want settings file value", cred.BaseURL)
	}
}

func TestResolve_ServerPasswordIgnoredAgainstCloud(t *testing.T) {
	clearEnv(t)
	os.Setenv(envPassword, "hunter2")
	os.Setenv(envAPIKey, "cloud-key")

	cred, err := Resolve(tempSettingsPath(t))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cred.Source != SourceAPIKey {
		t.Errorf("Source = %q, want %q (password must be ignored against cloud)", cred.Source, SourceAPIKey)
	}
}

func TestResolve_ServerPasswordHonoredAgainstSelfHosted(t *testing.T) {
	clearEnv(t)
	os.Setenv(envBaseURL, "https://self-hosted.example")
	os.Setenv(envPassword, "hunter2")
	os.Setenv(envAPIKey, "should-be-superseded")

	cred, err := Resolve(tempSettingsPath(t))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cred.Source != SourcePassword {
		t.Errorf("Source = %q, want %q", cred.Source, SourcePassword)
	}
	if cred.Password != "hunter2" {
		t.Errorf("Password = %q, want hunter2", cred.Password)
	}
}

func TestResolve_HelperSupersedesAPIKeyEnv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("helper command uses a unix shell builtin")
	}
	clearEnv(t)
	os.Setenv(envAPIKey, "should-be-superseded")
	os.Setenv(envHelper, "echo helper-key")

	cred, err := Resolve(tempSettingsPath(t))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cred.APIKey != "helper-key" {
		t.Errorf("APIKey = %q, want helper-key", cred.APIKey)
	}
	if cred.Source != SourceHelper {
		t.Errorf("Source = %q, want %q", cred.Source, SourceHelper)
	}
}

func TestResolve_NoCredentialReturnsNotFound(t *testing.T) {
	clearEnv(t)
	_, err := Resolve(tempSettingsPath(t))
	if err == nil {
		t.Fatal("expected an error when no credential source is configured")
	}
}

func TestSettings_APIKeyRoundTripsEncrypted(t *testing.T) {
	path := tempSettingsPath(t)
	if err := Save(path, Settings{BaseURL: "https://example.com", APIKey: "super-secret"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if containsPlaintext(raw, "super-secret") {
		t.Error("settings file stores the api key in the clear")
	}

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if settings.APIKey != "super-secret" {
		t.Errorf("APIKey = %q, want super-secret", settings.APIKey)
	}
}

func containsPlaintext(data []byte, s string) bool {
	for i := 0; i+len(s) <= len(data); i++ {
		if string(data[i:i+len(s)]) == s {
			return true
		}
	}
	return false
}

func TestLogin_RequiresAPIKey(t *testing.T) {
	if err := Login(tempSettingsPath(t), "https://example.com", ""); err == nil {
		t.Fatal("expected an error for an empty api key")
	}
}

func TestLogin_PersistsRetrievableCredential(t *testing.T) {
	clearEnv(t)
	path := tempSettingsPath(t)
	if err := Login(path, "https://example.com", "cloud-key"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	source, baseURL, err := Status(path)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if source != SourceSettings {
		t.Errorf("Source = %q, want %q", source, SourceSettings)
	}
	if baseURL != "https://example.com" {
		t.Errorf("BaseURL = %q, want https://example.com", baseURL)
	}
}
