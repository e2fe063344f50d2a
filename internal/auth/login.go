package auth

import "github.com/letta-ai/letta-sync/internal/errkind"

// Login persists a cloud API key to the local settings file, the fallback
// `cmd/lettasync auth login` populates. A self-hosted password is never
// written to disk; export LETTA_SERVER_PASSWORD for that case instead.
func Login(settingsPath, baseURL, apiKey string) error {
	if apiKey == "" {
		return errkind.New(errkind.Validation, "an API key is required").
			WithSuggestion("for a self-hosted password, export LETTA_SERVER_PASSWORD instead of running auth login")
	}
	return Save(settingsPath, Settings{BaseURL: baseURL, APIKey: apiKey})
}

// Status reports which resolution source is currently active, without
// ever returning the secret itself.
func Status(settingsPath string) (Source, string, error) {
	cred, err := Resolve(settingsPath)
	if err != nil {
		return SourceNone, "", err
	}
	return cred.Source, cred.BaseURL, nil
}
