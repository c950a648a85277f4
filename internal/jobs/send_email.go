package jobs

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/metrics"
	"approvedpremises.io/cas/internal/notification"
	"approvedpremises.io/cas/internal/pkg/logger"
)

// SendEmailWorker delivers one queued email.
type SendEmailWorker struct {
	river.WorkerDefaults[notification.SendArgs]
	sender  notification.Sender
	metrics *metrics.Metrics
}

// NewSendEmailWorker creates the worker.
func NewSendEmailWorker(sender notification.Sender, m *metrics.Metrics) *SendEmailWorker {
	return &SendEmailWorker{sender: sender, metrics: m}
}

// Work renders and sends the email. Template errors cannot succeed on retry
// and cancel the job.
func (w *SendEmailWorker) Work(ctx context.Context, job *river.Job[notification.SendArgs]) error {
	e := job.Args.Email
	tpl := string(e.Template)
	if _, _, err := notification.Render(e); err != nil {
		w.metrics.Email(tpl, "invalid")
		return river.JobCancel(err)
	}
	if err := w.sender.Send(ctx, e); err != nil {
		w.metrics.Email(tpl, "error")
		logger.Warn("Email delivery failed",
			zap.String("template", tpl),
			zap.Int("attempt", job.Attempt),
			zap.Error(err),
		)
		return fmt.Errorf("send %s email: %w", tpl, err)
	}
	w.metrics.Email(tpl, "ok")
	return nil
}
