// Package jobs defines the River workers for asynchronous processing.
//
// Jobs carry identifiers only where the payload is persisted elsewhere: the
// publish job carries the event id and reloads the row when it runs.
//
// Import Path: approvedpremises.io/cas/internal/jobs
package jobs

import (
	"time"

	"github.com/riverqueue/river"

	"approvedpremises.io/cas/internal/messaging"
	"approvedpremises.io/cas/internal/metrics"
	"approvedpremises.io/cas/internal/notification"
	"approvedpremises.io/cas/internal/repository"
)

// Deps are the collaborators the workers need.
type Deps struct {
	Store         repository.Store
	Publisher     messaging.Publisher
	DetailURLBase string
	Sender        notification.Sender
	Metrics       *metrics.Metrics
	AbandonAfter  time.Duration
}

// Register adds every worker to workers. The publish worker is only added
// when a publisher is configured.
func Register(workers *river.Workers, d Deps) {
	if d.Publisher != nil {
		river.AddWorker(workers, NewPublishDomainEventWorker(d.Store, d.Publisher, d.DetailURLBase, d.Metrics))
	}
	river.AddWorker(workers, NewSendEmailWorker(d.Sender, d.Metrics))
	river.AddWorker(workers, NewStaleCas2AbandonWorker(d.Store, d.AbandonAfter))
}

// PeriodicJobs lists the maintenance jobs scheduled by the River client.
func PeriodicJobs() []*river.PeriodicJob {
	return []*river.PeriodicJob{StaleCas2AbandonPeriodic()}
}
