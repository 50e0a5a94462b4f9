package emailsvc

import (
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/cmeonline/enrollments/core"
)

type consoleService struct {
	from       mail.Address
	subjPrefix string
	out        io.Writer
}

var _ core.EmailService = (*consoleService)(nil)

// NewConsoleService returns an EmailService that prints messages to out instead of sending them (DEV & TEST).
func NewConsoleService(conf *core.Config, out io.Writer) core.EmailService {
	return &consoleService{
		from:       conf.Email.From(),
		subjPrefix: "[" + conf.AppName + "] ",
		out:        out,
	}
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) error {
	for _, msg := range messages {
		if !msg.HasRecipients() {
			return core.ErrNoRecipients
		}
		if err := svc.send(*msg); err != nil {
			return errors.Wrap(err, "printing email")
		}
	}
	return nil
}

func (svc consoleService) send(msg core.EmailMessage) error {
	body := new(strings.Builder)

	// Write mail header
	_, _ = fmt.Fprintf(body, "From: %s\r\n", svc.from.String())
	_, _ = fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		_, _ = fmt.Fprintf(body, "CC: %s\r\n", joinAddresses(msg.Cc))
	}
	_, _ = fmt.Fprint(body, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	_, _ = fmt.Fprintf(body, "%s\r\n", msg.Body)

	_, err := io.WriteString(svc.out, body.String())
	return err
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}
