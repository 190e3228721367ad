package sheet

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/sheetgate/internal/audit"
	"github.com/JonMunkholm/sheetgate/internal/auth"
	"github.com/JonMunkholm/sheetgate/internal/core"
	"github.com/JonMunkholm/sheetgate/internal/logging"
)

// DefaultParseTimeout bounds a single parse.
const DefaultParseTimeout = 5 * time.Second

// Ingestor runs Gate and Parser for one upload. Parses run on their own
// goroutine inside a Limiter slot; a parse that outlives its timeout keeps
// the slot until it actually finishes, so the limiter always reflects real
// CPU use.
type Ingestor struct {
	gate    *Gate
	parse   func([]byte) ParseResult
	limiter *core.Limiter
	timeout time.Duration
	audit   audit.Recorder
}

// NewIngestor wires the pipeline. A nil recorder disables auditing.
func NewIngestor(gate *Gate, parser *Parser, limiter *core.Limiter, timeout time.Duration, rec audit.Recorder) *Ingestor {
	if timeout <= 0 {
		timeout = DefaultParseTimeout
	}
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Ingestor{
		gate:    gate,
		parse:   parser.Parse,
		limiter: limiter,
		timeout: timeout,
		audit:   rec,
	}
}

// Gate exposes the size ceiling to the transport layer.
func (i *Ingestor) Gate() *Gate {
	return i.gate
}

// Limiter exposes the parse pool for health output and shutdown.
func (i *Ingestor) Limiter() *core.Limiter {
	return i.limiter
}

// Ingest validates info, then parses data. Errors are *core.Error values:
// validation for rejected or unreadable files, Busy when no parse slot
// frees up, Timeout when the parse overruns.
func (i *Ingestor) Ingest(ctx context.Context, info FileInfo, data []byte) (ParseResult, error) {
	logger := logging.WithFields(ctx, "file", info.Name, "size", info.Size)

	if err := i.gate.Check(info); err != nil {
		i.record(ctx, info, audit.OutcomeFailure, core.MessageOf(err, ""), 0)
		return ParseResult{}, err
	}
	if !AdvisoryMediaType(info.MediaType) {
		logger.Debug("sheet: unexpected media type", "media_type", info.MediaType)
	}

	if err := i.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, core.ErrBusy) {
			logger.Warn("sheet: parse pool full", "active", i.limiter.ActiveCount())
			return ParseResult{}, core.Busy(MsgBusy, err)
		}
		return ParseResult{}, core.Timeout(MsgParseTimeout, err)
	}

	done := make(chan ParseResult, 1)
	start := time.Now()
	go func() {
		defer i.limiter.Release()
		done <- i.parse(data)
	}()

	timer := time.NewTimer(i.timeout)
	defer timer.Stop()

	var res ParseResult
	select {
	case res = <-done:
	case <-timer.C:
		logger.Warn("sheet: parse timed out", "timeout", i.timeout)
		i.record(ctx, info, audit.OutcomeFailure, MsgParseTimeout, 0)
		return ParseResult{}, core.Timeout(MsgParseTimeout, context.DeadlineExceeded)
	case <-ctx.Done():
		return ParseResult{}, core.Timeout(MsgParseTimeout, ctx.Err())
	}

	if !res.Success {
		i.record(ctx, info, audit.OutcomeFailure, res.Error, 0)
		return res, core.UploadRejected(res.Error)
	}

	logger.Info("sheet: parsed",
		"rows", len(res.Rows),
		"columns", len(res.Headers),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	i.record(ctx, info, audit.OutcomeSuccess, "", len(res.Rows))
	return res, nil
}

func (i *Ingestor) record(ctx context.Context, info FileInfo, outcome audit.Outcome, reason string, rows int) {
	var subject string
	if id, ok := auth.IdentityFrom(ctx); ok {
		subject = id.SubjectID
	}
	i.audit.Record(ctx, audit.Params{
		Action:    audit.ActionUpload,
		Outcome:   outcome,
		SubjectID: subject,
		Reason:    reason,
		Details: map[string]any{
			"filename": info.Name,
			"size":     info.Size,
			"rows":     rows,
		},
	})
}
