package mailer

import (
	"context"

	"admin-auth/internal/util"
)

// LogDispatcher records that a message would have been sent. The body is
// never logged since it carries the code.
type LogDispatcher struct{}

func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{}
}

func (d *LogDispatcher) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	util.Info("Email delivery skipped (log backend)",
		util.Identity(msg.To),
		util.String("subject", msg.Subject))
	return nil
}
