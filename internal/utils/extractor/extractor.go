package extractor

import (
	"errors"
	"net/http"
	"strings"
)

// Extractor reads identity headers set by the upstream gateway.
type Extractor interface {
	Get(h http.Header, name string) []string
	GetFirst(h http.Header, name string) string
	GetUserID(h http.Header) (string, error)
	GetRoleIDs(h http.Header) []string
	GetUserName(h http.Header) string
	GetUserEmail(h http.Header) string
	GetRequestID(h http.Header) string
	GetXForwardedFor(h http.Header) string
}

type extractor struct {
}

func New() Extractor {
	return &extractor{}
}

func (t *extractor) Get(h http.Header, name string) []string {
	if h == nil {
		return nil
	}
	var values []string
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				values = append(values, part)
			}
		}
	}
	return values
}

func (t *extractor) GetFirst(h http.Header, name string) string {
	values := t.Get(h, name)
	if len(values) == 0 {
		return ""
	}

	return values[0]
}

func (t *extractor) GetUserID(h http.Header) (string, error) {
	id := t.GetFirst(h, UserID)
	if id == "" {
		return "", errors.New("header does not have x-user-id")
	}
	return id, nil
}

func (t *extractor) GetRoleIDs(h http.Header) []string {
	return t.Get(h, RoleID)
}

func (t *extractor) GetUserName(h http.Header) string {
	return strings.TrimSpace(h.Get(UserName))
}

func (t *extractor) GetUserEmail(h http.Header) string {
	return t.GetFirst(h, UserEmail)
}

func (t *extractor) GetRequestID(h http.Header) string {
	return t.GetFirst(h, RequestID)
}

func (t *extractor) GetXForwardedFor(h http.Header) string {
	return strings.Join(t.Get(h, XForwardedFor), ",")
}
