package service

import "context"

type ComposeParams struct {
	Recipients string
	Subject    string
	Body       string
	// Passphrase, when set, makes the new thread encrypted.
	Passphrase string
}

// Compose starts a thread from sender with a first message. The message is
// validated before recipients are resolved, so nothing is written when
// either fails. The returned thread and message carry ValidationErrors and
// InvalidRecipients for re-rendering the form.
func (s *Service) Compose(ctx context.Context, sender *User, params ComposeParams) (*Thread, *Message, error) {
	t := s.NewThread(sender)
	t.Subject = params.Subject

	m := s.NewMessage(sender, t)
	m.Update(map[string]string{"body": params.Body})

	if err := m.Validate(); err != nil {
		return t, m, err
	}
	if err := t.ParseRecipients(ctx, params.Recipients); err != nil {
		return t, m, err
	}
	if params.Passphrase != "" {
		if err := t.EnableEncryption(params.Passphrase); err != nil {
			return t, m, err
		}
	}

	if err := t.Save(ctx); err != nil {
		return t, m, err
	}
	if err := m.Send(ctx); err != nil {
		return t, m, err
	}
	if err := t.AddMessage(ctx, m); err != nil {
		return t, m, err
	}

	s.Logger.Info(ctx, "thread composed", "thread", t.Key, "sender", sender.Key, "recipients", len(t.Recipients), "encrypted", t.Encrypted)
	return t, m, nil
}

// Reply sends body into an existing thread as its acting user. An
// encrypted thread must be unlocked first.
func (s *Service) Reply(ctx context.Context, t *Thread, body string) (*Message, error) {
	m := s.NewMessage(t.user, t)
	m.Update(map[string]string{"body": body})

	if err := m.Send(ctx); err != nil {
		return m, err
	}
	if err := t.AddMessage(ctx, m); err != nil {
		return m, err
	}
	return m, nil
}
