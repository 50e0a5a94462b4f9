package core

import (
	"net/mail"
	"strings"

	"github.com/pkg/errors"
)

var ErrNoRecipients = errors.New("email has no recipients")

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Subject string
		Body    string // text/plain
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages one after the other and stops at the first failure.
		SendMessages(messages ...*EmailMessage) error
	}
)

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }

// ParseAddressList parses a comma separated list of addresses. Empty input gives no addresses.
func ParseAddressList(s string) ([]mail.Address, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	list, err := mail.ParseAddressList(s)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing addresses %q", s)
	}
	addrs := make([]mail.Address, len(list))
	for i, a := range list {
		addrs[i] = *a
	}
	return addrs, nil
}
