package scanrunner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"paxreport/internal/domain"
	"paxreport/internal/ports"
	"paxreport/internal/services/scanner"
)

const shutdownReason = "shutdown before scan started"

// ScanProcessor runs one scan without recording it.
type ScanProcessor interface {
	Run(ctx context.Context, scanID string, port int, level string) (domain.ScanResult, error)
}

// Run claims queued scans and processes them with concurrency workers until
// ctx is cancelled. It blocks until every worker has returned.
func Run(ctx context.Context, repo ports.JobRepository, processor ScanProcessor, concurrency int, pollInterval time.Duration, log logrus.FieldLogger) {
	if concurrency < 1 {
		return
	}
	jobsCh := make(chan ports.ScanJob, concurrency)

	// dispatcher loop
	go func() {
		defer close(jobsCh)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNext(ctx)
					if err != nil {
						if ctx.Err() == nil {
							log.WithError(err).Warn("job claim error")
						}
						break
					}
					if !found {
						break
					}
					select {
					case jobsCh <- job:
					case <-ctx.Done():
						// Claimed but never started; leave a terminal state behind.
						markFailed(context.WithoutCancel(ctx), repo, job, domain.KindUnexpected, shutdownReason, log)
						return
					}
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for job := range jobsCh {
				handle(ctx, repo, processor, job, log.WithField("worker", idx))
			}
		}(i)
	}
	wg.Wait()
}

// handle processes a buffered job, or fails it without starting when
// shutdown began while it was waiting.
func handle(ctx context.Context, repo ports.JobRepository, processor ScanProcessor, job ports.ScanJob, log logrus.FieldLogger) {
	if ctx.Err() != nil {
		markFailed(context.WithoutCancel(ctx), repo, job, domain.KindUnexpected, shutdownReason, log)
		return
	}
	Process(ctx, repo, processor, job, log)
}

// Process runs a claimed job once and stores its outcome. No retries.
func Process(ctx context.Context, repo ports.JobRepository, processor ScanProcessor, job ports.ScanJob, log logrus.FieldLogger) {
	log = log.WithFields(logrus.Fields{"scan_id": job.ID, "port": job.Port, "level": job.Level})
	result, err := processor.Run(ctx, job.ID, job.Port, job.Level)
	// The scan may have ended because ctx was cancelled; still persist the outcome.
	storeCtx := context.WithoutCancel(ctx)
	if err != nil {
		kind := domain.KindUnexpected
		var se *domain.ScanError
		if errors.As(err, &se) {
			kind = se.Kind
		}
		markFailed(storeCtx, repo, job, kind, err.Error(), log)
		return
	}
	tunnelURL, _ := result[domain.ResultKeyTunnelURL].(string)
	if err := repo.MarkCompleted(storeCtx, job.ID, scanner.TunnelDomain(tunnelURL), result); err != nil {
		log.WithError(err).Error("mark completed failed")
		return
	}
	log.Info("queued scan completed")
}

func markFailed(ctx context.Context, repo ports.JobRepository, job ports.ScanJob, kind domain.ErrorKind, reason string, log logrus.FieldLogger) {
	if err := repo.MarkFailed(ctx, job.ID, kind, reason); err != nil {
		log.WithError(err).WithField("scan_id", job.ID).Error("mark failed failed")
		return
	}
	log.WithFields(logrus.Fields{"scan_id": job.ID, "error_type": kind}).Warn("queued scan failed")
}
