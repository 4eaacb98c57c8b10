// Package auth resolves scorer credentials from an ordered list of sources.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const serviceName = "mqcomet"

// Service identifies which upstream a credential belongs to.
type Service string

const (
	ServiceHF     Service = "hf"
	ServiceGemini Service = "gemini"
	ServiceOpenAI Service = "openai"
)

type serviceInfo struct {
	account string
	envVar  string
	display string
}

var services = map[Service]serviceInfo{
	ServiceHF:     {account: "hf-token", envVar: "HF_TOKEN", display: "Hugging Face"},
	ServiceGemini: {account: "gemini-api-key", envVar: "GEMINI_API_KEY", display: "Gemini"},
	ServiceOpenAI: {account: "openai-api-key", envVar: "OPENAI_API_KEY", display: "OpenAI"},
}

// Services lists every known service in display order.
func Services() []Service {
	return []Service{ServiceHF, ServiceGemini, ServiceOpenAI}
}

// ParseService validates a user-supplied service name.
func ParseService(s string) (Service, error) {
	svc := Service(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := services[svc]; !ok {
		names := make([]string, 0, len(services))
		for _, known := range Services() {
			names = append(names, string(known))
		}
		return "", fmt.Errorf("invalid service %q; must be one of %s", s, strings.Join(names, ", "))
	}
	return svc, nil
}

// EnvVar returns the environment variable read for s.
func (s Service) EnvVar() string { return services[s].envVar }

// DisplayName returns the human-readable service name.
func (s Service) DisplayName() string {
	if info, ok := services[s]; ok {
		return info.display
	}
	return string(s)
}

// Source names, in the order they are usually consulted.
const (
	SourceExplicit = "explicit"
	SourceKeychain = "keychain"
	SourceEnv      = "env"
	SourceDotenv   = "dotenv"
	SourcePrompt   = "prompt"
)

var (
	// DefaultCLISources is the lookup order for command-line runs.
	DefaultCLISources = []string{SourceExplicit, SourceKeychain, SourceEnv, SourceDotenv, SourcePrompt}
	// DefaultWebSources never prompts; the form field is the explicit source.
	DefaultWebSources = []string{SourceExplicit, SourceKeychain, SourceEnv, SourceDotenv}
)

// ValidateSources rejects unknown or repeated source names.
func ValidateSources(sources []string) error {
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		switch s {
		case SourceExplicit, SourceKeychain, SourceEnv, SourceDotenv, SourcePrompt:
		default:
			return fmt.Errorf("unknown credential source %q", s)
		}
		if seen[s] {
			return fmt.Errorf("credential source %q listed twice", s)
		}
		seen[s] = true
	}
	return nil
}

// Stubbed in tests.
var (
	keyringGet    = keyring.Get
	keyringSet    = keyring.Set
	keyringDelete = keyring.Delete
	lookupEnv     = os.LookupEnv
	readDotenv    = func(path string) (map[string]string, error) { return godotenv.Read(path) }
)

// Credential is a resolved secret and the source that supplied it.
type Credential struct {
	Value  string
	Source string
}

// Chain looks a credential up in Sources order; the first non-empty value
// wins.
type Chain struct {
	Sources []string
	// Explicit is the value typed into a form field or passed by flag.
	Explicit string
	// DotenvPath defaults to ".env" in the working directory.
	DotenvPath string
	// Prompt asks the user interactively. Nil disables the prompt source.
	Prompt func(label string) (string, error)
}

// Resolve returns the first credential found for svc. ok is false when no
// source had one; err is reserved for sources that failed outright.
func (c Chain) Resolve(svc Service) (cred Credential, ok bool, err error) {
	if err := ValidateSources(c.Sources); err != nil {
		return Credential{}, false, err
	}
	info, known := services[svc]
	if !known {
		return Credential{}, false, fmt.Errorf("unknown service %q", svc)
	}

	for _, source := range c.Sources {
		value, err := c.lookup(source, svc, info)
		if err != nil {
			return Credential{}, false, fmt.Errorf("%s credential source: %w", source, err)
		}
		if value = strings.TrimSpace(value); value != "" {
			return Credential{Value: value, Source: source}, true, nil
		}
	}
	return Credential{}, false, nil
}

func (c Chain) lookup(source string, svc Service, info serviceInfo) (string, error) {
	switch source {
	case SourceExplicit:
		return c.Explicit, nil
	case SourceKeychain:
		key, err := keyringGet(serviceName, info.account)
		if err != nil {
			// A missing entry or an unavailable keychain both fall through.
			return "", nil
		}
		return key, nil
	case SourceEnv:
		v, _ := lookupEnv(info.envVar)
		return v, nil
	case SourceDotenv:
		path := c.DotenvPath
		if path == "" {
			path = ".env"
		}
		values, err := readDotenv(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", nil
			}
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return values[info.envVar], nil
	case SourcePrompt:
		if c.Prompt == nil {
			return "", nil
		}
		return c.Prompt(fmt.Sprintf("%s credential (%s, press Enter to skip): ", info.display, svc))
	}
	return "", fmt.Errorf("unknown credential source %q", source)
}

// SaveKey stores the key for svc in the OS keychain.
func SaveKey(svc Service, key string) error {
	info, ok := services[svc]
	if !ok {
		return fmt.Errorf("unknown service %q", svc)
	}
	return keyringSet(serviceName, info.account, strings.TrimSpace(key))
}

// DeleteKey removes the key for svc from the OS keychain.
func DeleteKey(svc Service) error {
	info, ok := services[svc]
	if !ok {
		return fmt.Errorf("unknown service %q", svc)
	}
	return keyringDelete(serviceName, info.account)
}

// Status reports which sources currently hold a credential for svc,
// without prompting.
func Status(svc Service, dotenvPath string) []string {
	var found []string
	for _, source := range []string{SourceKeychain, SourceEnv, SourceDotenv} {
		chain := Chain{Sources: []string{source}, DotenvPath: dotenvPath}
		if _, ok, _ := chain.Resolve(svc); ok {
			found = append(found, source)
		}
	}
	return found
}

// PromptForAPIKey securely prompts the user for a secret on the terminal.
func PromptForAPIKey(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(os.Stderr)
	return strings.TrimSpace(string(bytePassword)), nil
}
