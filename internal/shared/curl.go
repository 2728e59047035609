// Utilities for extracting credentials from cURL commands copied out of browser DevTools.
package shared

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
)

var (
	headerRegex = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	cookieRegex = regexp.MustCompile(`-b\s+'([^']+)'|-b\s+"([^"]+)"`)
	urlRegex    = regexp.MustCompile(`'(https?://[^']+)'|"(https?://[^"]+)"|(https?://[^\s'"]+)`)
)

// CurlHeaders represents parsed headers and cookies from a cURL command.
type CurlHeaders struct {
	URL     string
	Headers map[string]string
	Cookie  string
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts headers.
func ParseCurlFile(filepath string) (*CurlHeaders, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(content)
}

// ParseCurlCommand parses a cURL command string and extracts the request URL, headers and cookie.
func ParseCurlCommand(data []byte) (*CurlHeaders, error) {
	curlCmd := string(data)
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	parsed := &CurlHeaders{Headers: make(map[string]string)}

	// Header values such as Origin can hold URLs too; prefer the one carrying a client_id.
	for _, m := range urlRegex.FindAllStringSubmatch(curlCmd, -1) {
		candidate := firstNonEmpty(m[1:]...)
		if parsed.URL == "" || strings.Contains(candidate, "client_id=") {
			parsed.URL = candidate
		}
		if strings.Contains(candidate, "client_id=") {
			break
		}
	}

	for _, match := range headerRegex.FindAllStringSubmatch(curlCmd, -1) {
		key, value, ok := strings.Cut(firstNonEmpty(match[1:]...), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		if strings.EqualFold(key, "cookie") {
			if parsed.Cookie == "" {
				parsed.Cookie = value
			}
			continue
		}
		parsed.Headers[key] = value
	}

	if m := cookieRegex.FindStringSubmatch(curlCmd); m != nil {
		parsed.Cookie = firstNonEmpty(m[1:]...)
	}

	if len(parsed.Headers) == 0 && parsed.Cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}

	return parsed, nil
}

// Credentials extracts the OAuth token and client id from a parsed API request.
//
// The token comes from an "Authorization: OAuth ..." header, falling back to the oauth_token cookie.
// The client id comes from the client_id query parameter of the request URL.
func (c *CurlHeaders) Credentials() (token, clientID string, err error) {
	for key, value := range c.Headers {
		if !strings.EqualFold(key, "authorization") {
			continue
		}
		scheme, rest, ok := strings.Cut(value, " ")
		if ok && strings.EqualFold(scheme, "oauth") {
			token = strings.TrimSpace(rest)
		}
	}

	if token == "" && c.Cookie != "" {
		for _, part := range strings.Split(c.Cookie, ";") {
			name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
			if ok && name == "oauth_token" {
				token = value
			}
		}
	}

	if c.URL != "" {
		if u, perr := url.Parse(c.URL); perr == nil {
			clientID = u.Query().Get("client_id")
		}
	}

	if token == "" || clientID == "" {
		return token, clientID, fmt.Errorf("%w: curl command must include an OAuth authorization and a client_id", ErrMissingCredentials)
	}
	return token, clientID, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
