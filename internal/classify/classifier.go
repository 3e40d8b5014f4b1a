// Package classify runs the single-pass scan over a dataset file, deciding
// for each record whether it belongs to the organization and persisting the
// enriched matches.
package classify

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hakim/censysmatch/internal/enrich"
	"github.com/hakim/censysmatch/internal/match"
	"github.com/hakim/censysmatch/internal/models"
	"github.com/hakim/censysmatch/internal/reference"
	"github.com/sirupsen/logrus"
)

// MaxLineSize is the default longest dataset line. Longer lines are
// skipped as record defects.
const MaxLineSize = 16 << 20

// ErrLineTooLong is reported for a skipped oversize line
var ErrLineTooLong = errors.New("line exceeds maximum size")

// ResultSink persists enriched matches, replacing any stored record with the same ip
type ResultSink interface {
	UpsertResult(ctx context.Context, res *models.MatchResult) error
}

// Outcome is what happened to a single line
type Outcome int

const (
	OutcomeBlank Outcome = iota
	OutcomeRejected
	OutcomeNoMatch
	OutcomePersisted
	OutcomeNotPersisted
)

// Config controls a Classifier
type Config struct {
	// ProgressEvery logs a progress line after this many lines. Zero disables it.
	ProgressEvery int64

	// Now stamps createdAt on results. Defaults to time.Now.
	Now func() time.Time

	// MaxLineSize defaults to the package MaxLineSize
	MaxLineSize int
}

// Classifier applies the match gate and enrichment to dataset records
type Classifier struct {
	ref      *reference.Data
	resolver *enrich.Resolver
	sink     ResultSink
	log      logrus.FieldLogger
	cfg      Config
}

// New creates a classifier
func New(ref *reference.Data, resolver *enrich.Resolver, sink ResultSink, log logrus.FieldLogger, cfg Config) *Classifier {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxLineSize <= 0 {
		cfg.MaxLineSize = MaxLineSize
	}
	return &Classifier{
		ref:      ref,
		resolver: resolver,
		sink:     sink,
		log:      log,
		cfg:      cfg,
	}
}

// Passes is the persistence gate: the certificate organization matches a
// known organization, or the address lies in a confirmed range.
func (c *Classifier) Passes(entry *models.CandidateEntry) bool {
	return match.OrganizationMatch(entry, c.ref.Organizations()) ||
		c.ref.Known().Contains(entry.IP)
}

// ProcessLine classifies one dataset line. lineNo is only used for error
// reporting. A lookup failure still persists the record and is reported
// together with OutcomePersisted.
func (c *Classifier) ProcessLine(ctx context.Context, lineNo int64, line []byte) (Outcome, error) {
	if len(bytes.TrimSpace(line)) == 0 {
		return OutcomeBlank, nil
	}

	entry, err := models.ParseCandidate(line)
	if err != nil {
		kind := KindParse
		if errors.Is(err, models.ErrMissingIP) {
			kind = KindMissingIP
		}
		return OutcomeRejected, &RecordError{Kind: kind, Line: lineNo, Err: err}
	}

	if !c.Passes(entry) {
		return OutcomeNoMatch, nil
	}

	res, lookupErr := c.resolver.Enrich(ctx, entry)
	res.CreatedAt = c.cfg.Now().UTC()

	if err := c.sink.UpsertResult(ctx, res); err != nil {
		return OutcomeNotPersisted, &RecordError{Kind: KindPersist, Line: lineNo, IP: entry.IP, Err: err}
	}

	if lookupErr != nil {
		return OutcomePersisted, &RecordError{Kind: KindLookup, Line: lineNo, IP: entry.IP, Err: lookupErr}
	}
	return OutcomePersisted, nil
}

// Scan reads r line by line until EOF. Per-record errors, including lines
// longer than the size limit, are logged and counted; only a read failure or
// context cancellation stops the scan.
func (c *Classifier) Scan(ctx context.Context, r io.Reader, name string) (models.RunStats, error) {
	var stats models.RunStats

	br := bufio.NewReaderSize(r, 64*1024)
	var buf []byte

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		line, oversize, err := readLine(br, buf, c.cfg.MaxLineSize)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, &FileError{Op: "read", Path: name, Err: err}
		}
		buf = line

		stats.Lines++

		var outcome Outcome
		if oversize {
			outcome = OutcomeRejected
			err = &RecordError{Kind: KindOversize, Line: stats.Lines, Err: ErrLineTooLong}
		} else {
			outcome, err = c.ProcessLine(ctx, stats.Lines, line)
		}

		switch outcome {
		case OutcomeBlank:
			stats.Blank++
		case OutcomeRejected:
			stats.ParseErrors++
		case OutcomePersisted:
			stats.Matched++
			stats.Persisted++
		case OutcomeNotPersisted:
			stats.Matched++
			stats.PersistErrors++
		}

		if err != nil {
			if KindOf(err) == KindLookup {
				stats.LookupErrors++
			}
			c.log.WithFields(logrus.Fields{
				"line":       stats.Lines,
				"error_kind": string(KindOf(err)),
			}).WithError(err).Warn("Skipping record defect")
		}

		if c.cfg.ProgressEvery > 0 && stats.Lines%c.cfg.ProgressEvery == 0 {
			c.log.WithFields(logrus.Fields{
				"lines":   stats.Lines,
				"matched": stats.Matched,
			}).Info("Scan progress")
		}
	}

	return stats, nil
}

// readLine returns the next line without its line terminator, reusing buf.
// A line longer than limit is read to its end and discarded; it comes back
// empty with oversize set. io.EOF is returned only when no bytes are left.
func readLine(br *bufio.Reader, buf []byte, limit int) (line []byte, oversize bool, err error) {
	buf = buf[:0]
	read := 0

	for {
		frag, err := br.ReadSlice('\n')
		read += len(frag)

		if !oversize {
			buf = append(buf, frag...)
			if len(bytes.TrimRight(buf, "\r\n")) > limit {
				oversize = true
				buf = buf[:0]
			}
		}

		switch {
		case err == nil:
			return bytes.TrimRight(buf, "\r\n"), oversize, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if read == 0 {
				return buf, false, io.EOF
			}
			return bytes.TrimRight(buf, "\r\n"), oversize, nil
		default:
			return buf, false, err
		}
	}
}

// ScanFile opens path and scans it. Failing to open the file is a FileError.
func (c *Classifier) ScanFile(ctx context.Context, path string) (models.RunStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.RunStats{}, &FileError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	return c.Scan(ctx, f, path)
}

// ReadPointerFile returns the dataset path named on the first line of the
// pointer file written by the download stage
func ReadPointerFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &FileError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", &FileError{Op: "read", Path: path, Err: err}
	}

	dataset := strings.TrimSpace(line)
	if dataset == "" {
		return "", &FileError{Op: "read", Path: path, Err: errors.New("pointer file is empty")}
	}
	return dataset, nil
}
