package sdgyro

import (
	"context"
	"time"

	"github.com/itsOwen/SteamDeckMotion/internal/monitoring"
	"github.com/itsOwen/SteamDeckMotion/internal/motion"
)

const (
	// maxDiffReplicate is the largest increment difference whose missing
	// frames (difference minus one) are synthesized; larger differences are
	// treated as a resynchronization.
	maxDiffReplicate = 100
	// noGyroCooldownFrames is the number of consumed frames between dead-gyro
	// notifications.
	noGyroCooldownFrames = 1000
	// maxRepeatedLoop bounds how many times one ReadSample call retries a
	// repeated frame before giving up.
	maxRepeatedLoop = 1000
)

// FrameSource supplies raw motion reports. hiddev.Reader implements it.
type FrameSource interface {
	Start(ctx context.Context) error
	Stop()
	Subscribe() (string, <-chan []byte)
	Unsubscribe(id string)
	Close() error
}

// AdapterConfig contains configuration options for the motion adapter.
type AdapterConfig struct {
	// NonPersistent selects the replication mode. In the default persistent
	// mode the caller reuses one sample buffer across calls and replicated
	// samples only advance its timestamp and frame id. In non-persistent
	// mode the adapter keeps its own copy of the last real sample and writes
	// it into the caller's buffer for each replicated step.
	NonPersistent bool
	// StatsInterval is the period between frame-flow statistics log lines.
	// Zero selects one minute.
	StatsInterval time.Duration
}

// Adapter sits between the raw report reader and a single consumer, hiding
// producer noise: repeated frames are retried, modest increment gaps are
// covered by synthesized samples, and a stuck producer surfaces as a false
// return rather than an error. Adapter state is not safe for concurrent use;
// one goroutine calls ReadSample.
type Adapter struct {
	source FrameSource
	conv   *Converter
	stats  *FrameStats

	nonPersistent bool
	statsInterval time.Duration

	subID  string
	frames <-chan []byte

	lastInc        uint32
	frameCounter   uint32
	toReplicate    int64
	lastTimestamp  uint64
	noGyroCooldown int
	ignoreFirst    bool
	cached         motion.Sample

	noGyro chan struct{}
}

// NewAdapter creates an Adapter reading from source.
func NewAdapter(source FrameSource, cfg AdapterConfig) *Adapter {
	interval := cfg.StatsInterval
	if interval == 0 {
		interval = time.Minute
	}
	return &Adapter{
		source:        source,
		conv:          NewConverter(),
		stats:         NewFrameStats(),
		nonPersistent: cfg.NonPersistent,
		statsInterval: interval,
		noGyro:        make(chan struct{}, 1),
	}
}

// NoGyro returns the dead-gyro notification channel. The signal coalesces:
// at most one notification is pending at a time.
func (a *Adapter) NoGyro() <-chan struct{} {
	return a.noGyro
}

// Start resets the adapter, starts the frame source and subscribes to it.
func (a *Adapter) Start(ctx context.Context) error {
	if a.frames != nil {
		return nil
	}
	a.lastInc = 0
	a.frameCounter = 0
	a.toReplicate = 0
	a.ignoreFirst = true
	if err := a.source.Start(ctx); err != nil {
		return err
	}
	a.subID, a.frames = a.source.Subscribe()
	go a.stats.run(ctx, a.statsInterval)
	monitoring.Debugf("MotionAdapter: Starting frame grab.")
	return nil
}

// Stop unsubscribes from the frame source and stops it.
func (a *Adapter) Stop() {
	if a.frames == nil {
		return
	}
	monitoring.Debugf("MotionAdapter: Stopping frame grab.")
	a.source.Unsubscribe(a.subID)
	a.frames = nil
	a.source.Stop()
}

// ReadSample fills out with the next motion sample. It blocks on the frame
// source for fresh frames and returns false only when the source is stopped
// or keeps repeating the same frame; the caller treats that as "no data this
// tick".
//
// Every successful call assigns a new, contiguous frame id, including calls
// satisfied by replication.
func (a *Adapter) ReadSample(out *motion.Sample) bool {
	if a.frames == nil {
		return false
	}

	if a.toReplicate > 0 {
		a.toReplicate--
		a.lastTimestamp += ScanTimeUs
		a.frameCounter++
		a.stats.AddReplicated()
		if a.nonPersistent {
			*out = a.cached
		}
		out.Timestamp = a.lastTimestamp
		out.FrameID = a.frameCounter
		return true
	}

	repeated := maxRepeatedLoop
	for {
		raw, ok := <-a.frames
		if !ok {
			return false
		}
		if a.ignoreFirst {
			a.ignoreFirst = false
			continue
		}

		frame, err := ParseFrame(raw)
		if err != nil {
			monitoring.Logf("MotionAdapter: %v", err)
			continue
		}

		if a.noGyroCooldown > 0 {
			a.noGyroCooldown--
		}
		if a.noGyroCooldown == 0 && frame.AllAxesZero() {
			select {
			case a.noGyro <- struct{}{}:
			default:
			}
			a.noGyroCooldown = noGyroCooldownFrames
		}

		diff := int64(frame.Increment) - int64(a.lastInc)

		if a.lastInc != 0 && diff < 1 && diff > -100 {
			if repeated == maxRepeatedLoop {
				monitoring.Debugf("MotionAdapter: Frame was repeated. Ignoring... (current increment 0x%08x, last 0x%08x)",
					frame.Increment, a.lastInc)
			}
			if repeated <= 0 {
				monitoring.Logf("MotionAdapter: Frame is repeated continuously...")
				return false
			}
			repeated--
			a.stats.AddRepeated()
			continue
		}

		if a.lastInc != 0 && diff > 1 {
			missed := diff - 1
			replicate := diff <= maxDiffReplicate
			msg := "MotionAdapter: Missed %d frames."
			if replicate {
				msg += " Replicating..."
			}
			if diff > 6 {
				monitoring.Logf(msg, missed)
			} else {
				monitoring.Debugf(msg, missed)
			}
			if replicate {
				a.toReplicate = missed
			}
		}

		a.frameCounter++
		a.conv.Convert(frame, a.frameCounter, out)
		if a.lastInc != 0 {
			a.stats.AddConsumed(diff)
		}

		if a.toReplicate > 0 {
			// Anchor the synthesized run on the first missing increment so
			// replicated timestamps tile forward in ScanTimeUs steps. The
			// consumed real frame carries the anchor value too.
			a.lastTimestamp = uint64(a.lastInc+1) * ScanTimeUs
			out.Timestamp = a.lastTimestamp
			if a.nonPersistent {
				a.cached = *out
			}
		}

		a.lastInc = frame.Increment
		return true
	}
}
