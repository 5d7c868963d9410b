package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Provider is a social link slot in the museum.
type Provider int

const (
	GitHub Provider = iota
	X
	Zenn
	Qiita
	Other
)

// Providers lists every provider in display order.
var Providers = []Provider{GitHub, X, Zenn, Qiita, Other}

func (p Provider) String() string {
	switch p {
	case GitHub:
		return "github"
	case X:
		return "x"
	case Zenn:
		return "zenn"
	case Qiita:
		return "qiita"
	case Other:
		return "other"
	}
	return fmt.Sprintf("provider(%d)", int(p))
}

// Label is the title shown on the link plate.
func (p Provider) Label() string {
	switch p {
	case GitHub:
		return "GitHub"
	case X:
		return "X"
	case Zenn:
		return "Zenn"
	case Qiita:
		return "Qiita"
	case Other:
		return "Other"
	}
	return p.String()
}

// prefixes returns the URL prefixes accepted for p. Nil means any http(s) URL.
func (p Provider) prefixes() []string {
	switch p {
	case GitHub:
		return []string{"https://github.com/"}
	case X:
		return []string{"https://x.com/", "https://twitter.com/"}
	case Zenn:
		return []string{"https://zenn.dev/"}
	case Qiita:
		return []string{"https://qiita.com/"}
	case Other:
		return nil
	}
	return nil
}

// ParseProvider maps a JSON key to a Provider.
func ParseProvider(s string) (Provider, error) {
	for _, p := range Providers {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown provider %q", s)
}

// Links holds one optional URL per provider. Empty means unset.
type Links struct {
	GitHub string `json:"github" validate:"omitempty,http_url,provider=github"`
	X      string `json:"x" validate:"omitempty,http_url,provider=x"`
	Zenn   string `json:"zenn" validate:"omitempty,http_url,provider=zenn"`
	Qiita  string `json:"qiita" validate:"omitempty,http_url,provider=qiita"`
	Other  string `json:"other" validate:"omitempty,http_url"`
}

// Get returns the URL stored for p.
func (l Links) Get(p Provider) string {
	switch p {
	case GitHub:
		return l.GitHub
	case X:
		return l.X
	case Zenn:
		return l.Zenn
	case Qiita:
		return l.Qiita
	case Other:
		return l.Other
	}
	panic(fmt.Sprintf("profile: unhandled provider %d", int(p)))
}

// With returns a copy of l with p set to url.
func (l Links) With(p Provider, url string) Links {
	switch p {
	case GitHub:
		l.GitHub = url
	case X:
		l.X = url
	case Zenn:
		l.Zenn = url
	case Qiita:
		l.Qiita = url
	case Other:
		l.Other = url
	default:
		panic(fmt.Sprintf("profile: unhandled provider %d", int(p)))
	}
	return l
}

// ErrDuplicateProvider is returned when a links object names one provider
// under two keys.
var ErrDuplicateProvider = errors.New("provider given more than once")

// DecodeLinks decodes a links object, rejecting keys that are not providers.
// The legacy "twitter" key is accepted as an alias for X, but not together
// with "x".
func DecodeLinks(data []byte) (Links, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return Links{}, err
	}
	var l Links
	seen := make(map[Provider]string, len(raw))
	for k, v := range raw {
		name := k
		if strings.EqualFold(name, "twitter") {
			name = X.String()
		}
		p, err := ParseProvider(name)
		if err != nil {
			return Links{}, err
		}
		if prev, ok := seen[p]; ok {
			return Links{}, fmt.Errorf("%w: %q and %q", ErrDuplicateProvider, prev, k)
		}
		seen[p] = k
		l = l.With(p, v)
	}
	return l, nil
}
