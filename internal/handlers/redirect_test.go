package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeRedirect(t *testing.T) {
	cases := map[string]string{
		"":                      "/",
		"   ":                   "/",
		"/settings":             "/settings",
		"/a?b=c":                "/a?b=c",
		"//evil.example.com":    "/",
		"https://evil.example":  "/",
		"relative/path":         "/",
		"/\\evil.example.com":   "/",
		"/ok\r\nSet-Cookie: x=": "/",
	}
	for input, want := range cases {
		require.Equal(t, want, sanitizeRedirect(input, "/"), "input %q", input)
	}
}

func TestHandlerConstructorsRequireDependencies(t *testing.T) {
	_, err := NewAuthHandler(nil, nil, nil, nil)
	require.Error(t, err)

	_, err = NewFederatedHandler(nil, nil, nil, nil, nil, "")
	require.Error(t, err)
}
