package channel

import (
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const (
	// NamePrefix scopes sensor channels on the broker.
	NamePrefix = "sensors_"

	// QueryParam carries the channel id in share links.
	QueryParam = "channel"

	senderPath = "/sender"
)

var ErrNoChannel = errors.New("no channel id found")

// ID identifies one pairing session. Both peers must hold the same id.
type ID string

// Resolve returns param as the id, or a fresh id when param is empty.
func Resolve(param string) ID {
	if param = strings.TrimSpace(param); param != "" {
		return ID(param)
	}
	return ID(uuid.NewString())
}

// Name returns the broker channel name for the id.
func (id ID) Name() string {
	return NamePrefix + string(id)
}

func (id ID) String() string {
	return string(id)
}

// ShareLink builds the link a sender opens to join the session.
func ShareLink(base string, id ID) string {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return strings.TrimRight(base, "/") + senderPath + "?" + QueryParam + "=" + url.QueryEscape(string(id))
	}
	u.Path = strings.TrimRight(u.Path, "/") + senderPath
	q := u.Query()
	q.Set(QueryParam, string(id))
	u.RawQuery = q.Encode()
	return u.String()
}

// Parse extracts a channel id from a bare id or from any URL carrying the
// channel query parameter.
func Parse(input string) (ID, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrNoChannel
	}

	if !strings.Contains(input, "://") && !strings.Contains(input, "?") {
		return ID(input), nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(u.Query().Get(QueryParam))
	if id == "" {
		return "", ErrNoChannel
	}
	return ID(id), nil
}
