package session

import "strings"

// CookieName is the session cookie set by the login response.
const CookieName = "sysauth"

// ParseCookies splits a Set-Cookie value on ';' and each segment on its first '='.
// Attributes such as Path and HttpOnly land in the same map as the cookie itself.
func ParseCookies(header string) map[string]string {
	cookies := make(map[string]string)
	for _, seg := range strings.Split(header, ";") {
		name, value, _ := strings.Cut(strings.TrimSpace(seg), "=")
		if name == "" {
			continue
		}
		cookies[name] = value
	}
	return cookies
}

func sessionCookie(values []string) (string, bool) {
	for _, v := range values {
		if c, ok := ParseCookies(v)[CookieName]; ok && c != "" {
			return c, true
		}
	}
	return "", false
}
