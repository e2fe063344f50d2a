// Package auth resolves the credential and endpoint the control-plane
// client connects with (spec.md §6 "Environment recognized by the core"):
// an external helper command, then the LETTA_SERVER_PASSWORD and
// LETTA_API_KEY environment variables, then a local settings file, in that
// order, with a `.env` file loaded first the way the teacher's config
// layer did.
package auth

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"strings"

	"github.com/joho/godotenv"

	"github.com/letta-ai/letta-sync/internal/errkind"
)

const (
	envBaseURL  = "LETTA_BASE_URL"
	envAPIURL   = "LETTA_API_URL"
	envPassword = "LETTA_SERVER_PASSWORD"
	envAPIKey   = "LETTA_API_KEY"
	envHelper   = "LETTA_API_KEY_HELPER"

	cloudDefaultBaseURL = "https://api.letta.com"
)

// Source identifies which of the four resolution sources produced the
// active credential, so `auth status` can report it without ever printing
// the secret itself.
type Source string

const (
	SourceHelper   Source = "external-helper"
	SourcePassword Source = "env:LETTA_SERVER_PASSWORD"
	SourceAPIKey   Source = "env:LETTA_API_KEY"
	SourceSettings Source = "settings-file"
	SourceNone     Source = "none"
)

// Credential is the resolved endpoint and secret the control-plane client
// authenticates with.
type Credential struct {
	BaseURL  string
	APIKey   string
	Password string
	Source   Source
}

// SelfHosted reports whether BaseURL points somewhere other than the cloud
// default, the condition under which LETTA_SERVER_PASSWORD is honored
// (spec.md §6: "ignored against cloud").
func (c Credential) SelfHosted() bool {
	return c.BaseURL != "" && c.BaseURL != cloudDefaultBaseURL
}

// Resolve implements the spec.md §6 resolution order. A `.env` file in the
// working directory, if present, is always read into the process
// environment first; variables already set are not overridden.
func Resolve(settingsPath string) (Credential, error) {
	_ = godotenv.Load()

	cred := Credential{BaseURL: resolveBaseURL()}

	if helper := os.Getenv(envHelper); helper != "" {
		key, err := runHelper(helper)
		if err != nil {
			return Credential{}, errkind.Wrap(errkind.Validation, err).WithSuggestion(
				"check the command named in " + envHelper + " runs and prints a key on stdout")
		}
		cred.APIKey = key
		cred.Source = SourceHelper
		return cred, nil
	}

	if pw := os.Getenv(envPassword); pw != "" && cred.SelfHosted() {
		cred.Password = pw
		cred.Source = SourcePassword
		return cred, nil
	}

	if key := os.Getenv(envAPIKey); key != "" {
		cred.APIKey = key
		cred.Source = SourceAPIKey
		return cred, nil
	}

	settings, err := Load(settingsPath)
	if err != nil {
		return Credential{}, err
	}
	if settings.APIKey != "" {
		cred.APIKey = settings.APIKey
		if cred.BaseURL == "" {
			cred.BaseURL = settings.BaseURL
		}
		cred.Source = SourceSettings
		return cred, nil
	}

	if cred.BaseURL == "" {
		cred.BaseURL = cloudDefaultBaseURL
	}
	cred.Source = SourceNone
	return cred, errkind.New(errkind.NotFound, "no credential found: set %s, configure %s, or run `auth login`", envAPIKey, envHelper)
}

func resolveBaseURL() string {
	if v := os.Getenv(envBaseURL); v != "" {
		return v
	}
	if v := os.Getenv(envAPIURL); v != "" {
		return v
	}
	return ""
}

// runHelper executes the configured external-helper command and returns
// its trimmed stdout as the API key. The command string is split the
// whitespace way unless it parses as a JSON array of args.
func runHelper(command string) (string, error) {
	args := splitHelperCommand(command)
	if len(args) == 0 {
		return "", errkind.New(errkind.Validation, "%s is set but empty", envHelper)
	}

	cmd := exec.Command(args[0], args[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", errkind.Wrap(errkind.Validation, err)
	}

	key := strings.TrimSpace(out.String())
	if key == "" {
		return "", errkind.New(errkind.Validation, "helper command produced no output")
	}
	return key, nil
}

func splitHelperCommand(command string) []string {
	trimmed := strings.TrimSpace(command)
	if strings.HasPrefix(trimmed, "[") {
		var parts []string
		if err := json.Unmarshal([]byte(trimmed), &parts); err == nil {
			return parts
		}
	}
	return strings.Fields(trimmed)
}
