// Package poller implements the change-detection and snapshot-publishing
// pipeline: a recurring background task that cheaply fingerprints the
// in-scope settings and, only on detected change, rebuilds and republishes
// the in-memory snapshot consumed by live readers.
package poller

import (
	"bytes"
	"context"
	"encoding/hex"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/KhaosKoder/khaos-settings/internal/crypt"
	"github.com/KhaosKoder/khaos-settings/internal/db/models"
	"github.com/KhaosKoder/khaos-settings/internal/snapshot"
)

const (
	// MinInterval is the hard floor for the poll interval; configured values
	// below it are silently raised.
	MinInterval = 30 * time.Second
	// RecommendedInterval is the soft floor; values below it are honored but
	// logged as a warning.
	RecommendedInterval = time.Minute

	digestPrefixLen = 8
)

// Options configure a Publisher.
type Options struct {
	// ApplicationID and InstanceID select the reader scope. Global rows are
	// always included; application rows when ApplicationID is set; instance
	// rows when both are set.
	ApplicationID string
	InstanceID    string
	Interval      time.Duration
	// FailFastOnStartup aborts Run when the first, synchronous poll fails.
	FailFastOnStartup bool
	// EnableDecryption decrypts values flagged as encrypted while building
	// the snapshot. A per-key decryption failure keeps the raw value.
	EnableDecryption bool
}

// Publisher polls the store on a fixed interval and republishes the
// snapshot when the persisted scope changed. It never blocks mutation
// callers; readers are eventually consistent, bounded by the interval.
type Publisher struct {
	db        *gorm.DB
	opts      Options
	source    *snapshot.Source
	health    *Health
	decrypter crypt.Provider

	// Last detected state, owned by the single poll goroutine.
	lastFingerprint fingerprint
	lastDigest      []byte
}

// New builds a Publisher. The interval is clamped to MinInterval; values
// below RecommendedInterval draw a warning but are honored.
func New(db *gorm.DB, opts Options, source *snapshot.Source, health *Health, decrypter crypt.Provider) *Publisher {
	if opts.Interval < MinInterval {
		opts.Interval = MinInterval
	}

	if opts.Interval < RecommendedInterval {
		log.Warn().
			Dur("interval", opts.Interval).
			Dur("recommended", RecommendedInterval).
			Msg("poll interval below recommended floor")
	}

	if decrypter == nil {
		decrypter = crypt.NoOp{}
	}

	return &Publisher{
		db:        db,
		opts:      opts,
		source:    source,
		health:    health,
		decrypter: decrypter,
	}
}

// Run polls until ctx is cancelled. The first poll happens synchronously so
// a cold reader never observes an empty snapshot when data exists; its
// failure aborts startup when FailFastOnStartup is set. Later failures are
// swallowed, counted and logged with escalating severity.
func (p *Publisher) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", p.opts.Interval).
		Str("application", p.opts.ApplicationID).
		Str("instance", p.opts.InstanceID).
		Msg("settings publisher started")

	if err := p.pollSafe(ctx); err != nil && p.opts.FailFastOnStartup {
		return errors.Wrap(err, "initial settings poll failed")
	}

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("settings publisher stopped")

			return nil
		case <-ticker.C:
			_ = p.pollSafe(ctx)
		}
	}
}

// pollSafe runs one poll, classifying any failure: failure counter, health
// failure count, warn on the first consecutive failure and error afterwards.
func (p *Publisher) pollSafe(ctx context.Context) error {
	err := p.poll(ctx)
	if err == nil || ctx.Err() != nil {
		return err
	}

	failureCounter.Inc()
	n := p.health.recordFailure()
	consecutiveFailureGauge.Set(float64(n))

	evt := log.Error()
	if n == 1 {
		evt = log.Warn()
	}

	evt.Err(err).Int("consecutiveFailures", n).Msg("settings poll failed")

	return err
}

// poll is one tick: cheap fingerprint, expensive digest confirmation only
// when the fingerprint moved, rebuild and publish only when the digest
// moved.
func (p *Publisher) poll(ctx context.Context) error {
	probes, err := p.readProbes(ctx)
	if err != nil {
		return err
	}

	fp := fingerprintOf(probes)
	if fp.equal(p.lastFingerprint) {
		p.recordSkip(len(probes))

		return nil
	}

	// The cheap signal can false-positive (or a same-stamp edit could slip
	// through it); the digest over the full rows is authoritative.
	rows, err := p.readRows(ctx)
	if err != nil {
		return err
	}

	digest := digestOf(rows)
	if bytes.Equal(digest, p.lastDigest) {
		p.lastFingerprint = fp
		p.recordSkip(len(rows))

		return nil
	}

	digestHex := hex.EncodeToString(digest)
	p.source.Publish(p.buildSnapshot(rows, digestHex))

	p.lastFingerprint = fp
	p.lastDigest = digest

	prefix := digestHex
	if len(prefix) > digestPrefixLen {
		prefix = prefix[:digestPrefixLen]
	}

	successCounter.Inc()
	consecutiveFailureGauge.Set(0)
	p.health.recordSuccess(int64(len(rows)), prefix)

	log.Info().
		Int("rows", len(rows)).
		Str("digest", prefix).
		Msg("settings snapshot published")

	return nil
}

// recordSkip counts an unchanged poll as a healthy outcome.
func (p *Publisher) recordSkip(rowCount int) {
	skippedCounter.Inc()
	consecutiveFailureGauge.Set(0)

	prefix := hex.EncodeToString(p.lastDigest)
	if len(prefix) > digestPrefixLen {
		prefix = prefix[:digestPrefixLen]
	}

	p.health.recordSuccess(int64(rowCount), prefix)
}

// buildSnapshot applies rows widest scope first, so a narrower scope always
// wins key collisions regardless of write order.
func (p *Publisher) buildSnapshot(rows []models.Setting, digestHex string) *snapshot.Snapshot {
	ordered := make([]models.Setting, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Scope() < ordered[j].Scope()
	})

	b := snapshot.NewBuilder()

	for i := range ordered {
		r := &ordered[i]

		switch {
		case r.Value != nil:
			b.PutValue(r.Key, p.decode(r), r.IsSecret)
		case r.BinaryValue != nil:
			b.PutBinary(r.Key, r.BinaryValue)
		}
	}

	return b.Build(int64(len(rows)), digestHex)
}

// decode decrypts an encrypted value when decryption is enabled. A failure
// is logged and counted, and the raw value is kept so one bad key never
// aborts the rebuild.
func (p *Publisher) decode(r *models.Setting) string {
	v := *r.Value

	if !r.ValueEncrypted || !p.opts.EnableDecryption {
		return v
	}

	plain, err := p.decrypter.Decrypt(v)
	if err != nil {
		decryptFailureCounter.Inc()
		log.Warn().Err(err).Str("key", r.Key).Msg("decryption failed, keeping raw value")

		return v
	}

	return plain
}

// readProbes reads only the (key, stamp) projection for the cheap signal.
func (p *Publisher) readProbes(ctx context.Context) ([]models.Setting, error) {
	var probes []models.Setting

	err := p.db.WithContext(ctx).
		Model(&models.Setting{}).
		Select("key", "row_version").
		Where(p.scopeFilter()).
		Find(&probes).Error
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return probes, nil
}

func (p *Publisher) readRows(ctx context.Context) ([]models.Setting, error) {
	var rows []models.Setting

	err := p.db.WithContext(ctx).
		Where(p.scopeFilter()).
		Find(&rows).Error
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return rows, nil
}

// scopeFilter selects the union of the global, application and instance
// tiers for the configured reader.
func (p *Publisher) scopeFilter() *gorm.DB {
	cond := p.db.Where("application_id = ? AND instance_id = ?", "", "")

	if p.opts.ApplicationID != "" {
		cond = cond.Or("application_id = ? AND instance_id = ?", p.opts.ApplicationID, "")

		if p.opts.InstanceID != "" {
			cond = cond.Or("application_id = ? AND instance_id = ?",
				p.opts.ApplicationID, p.opts.InstanceID)
		}
	}

	return cond
}
