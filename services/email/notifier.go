package emailsvc

import (
	"net/mail"

	"github.com/troopconnect/troopconnect/core"
	"github.com/troopconnect/troopconnect/core/member"
)

var notificationSubjects = map[string]string{
	"new_child_staff": "New child registration",
}

// Notifier sends member notifications as templated e-mails.
type Notifier struct {
	mailSvc core.EmailService
}

var _ member.Notifier = (*Notifier)(nil)

func NewNotifier(mailSvc core.EmailService) *Notifier {
	return &Notifier{mailSvc: mailSvc}
}

// Notify sends one e-mail per recipient, so staff addresses are not disclosed to each other.
func (n *Notifier) Notify(recipients []string, template string, data map[string]string) {
	subject, ok := notificationSubjects[template]
	if !ok {
		subject = "Notification"
	}
	messages := make([]*core.EmailMessage, 0, len(recipients))
	for _, to := range recipients {
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Address: to}},
			Subject:      subject,
			TemplateName: template,
			TemplateData: data,
		})
	}
	if len(messages) > 0 {
		n.mailSvc.SendMessages(messages...)
	}
}
