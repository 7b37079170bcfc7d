package notesync

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type PollerOptions struct {
	Interval    time.Duration
	MaxAttempts int
	Logger      zerolog.Logger
}

// Poller is the fixed-cadence fallback for jobs whose terminal status the push
// channel missed. The attempt budget keeps a stuck job from being polled
// forever.
type Poller struct {
	remote      RemoteClient
	interval    time.Duration
	maxAttempts int
	log         zerolog.Logger
}

func NewPoller(remote RemoteClient, opts PollerOptions) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 60
	}
	return &Poller{
		remote:      remote,
		interval:    interval,
		maxAttempts: maxAttempts,
		log:         opts.Logger,
	}
}

// Await polls the job until a terminal status is observed or the attempt
// budget is spent. Transient poll failures consume an attempt and are logged,
// not returned.
func (p *Poller) Await(ctx context.Context, jobID string) (JobState, error) {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		state, err := p.remote.JobStatus(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return JobState{}, ctx.Err()
			}
			p.log.Debug().Err(err).Str("jobId", jobID).Int("attempt", attempt).Msg("job status poll failed")
		} else if state.Status.Terminal() {
			return state, nil
		}
		if attempt == p.maxAttempts {
			break
		}
		if err := sleepContext(ctx, p.interval); err != nil {
			return JobState{}, err
		}
	}
	return JobState{}, ErrPollExhausted
}
