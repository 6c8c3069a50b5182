package lansync

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/bankero/internal/ledger"
	"github.com/roach88/bankero/internal/snapshot"
)

type sentCounts struct {
	Events int
	Rates  int
}

// sendSnapshot streams the full local snapshot between begin and end. If the
// other side aborts midway, its error record is returned in place of the
// write failure.
func sendSnapshot(ctx context.Context, conn *Conn, src snapshot.Source, begin, end Message) (sentCounts, error) {
	var sent sentCounts

	snap, err := snapshot.Take(ctx, src)
	if err != nil {
		return sent, err
	}

	switch begin.(type) {
	case PushBegin:
		begin = PushBegin{Events: len(snap.Events), Rates: len(snap.Rates)}
	case PullBegin:
		begin = PullBegin{Events: len(snap.Events), Rates: len(snap.Rates)}
	default:
		return sent, fmt.Errorf("send snapshot: unexpected begin %s", begin.Type())
	}
	if err := conn.Send(begin); err != nil {
		return sent, conn.sendFailed(err)
	}

	for _, e := range snap.Events {
		if err := conn.Send(EventRecord{e}); err != nil {
			return sent, conn.sendFailed(err)
		}
		sent.Events++
	}
	for _, r := range snap.Rates {
		if err := conn.Send(RateRecord{r}); err != nil {
			return sent, conn.sendFailed(err)
		}
		sent.Rates++
	}
	if err := conn.Send(end); err != nil {
		return sent, conn.sendFailed(err)
	}
	return sent, nil
}

// receiveRecords reads begin, then event and rate records merged into sink
// as they arrive, then end. The number of records must match what begin
// declared.
func receiveRecords(ctx context.Context, conn *Conn, sink snapshot.Sink, begin, end MessageType) (snapshot.MergeStats, error) {
	var stats snapshot.MergeStats
	phase := phaseName(begin)

	msg, err := receive(conn, phase)
	if err != nil {
		return stats, err
	}
	var wantEvents, wantRates int
	switch m := msg.(type) {
	case PushBegin:
		wantEvents, wantRates = m.Events, m.Rates
	case PullBegin:
		wantEvents, wantRates = m.Events, m.Rates
	case ErrorMessage:
		return stats, peerError(m)
	}
	if msg.Type() != begin {
		return stats, ledger.NewProtocolError(phase, fmt.Sprintf("expected %s, got %s", begin, msg.Type()), nil)
	}

	var gotEvents, gotRates int
	for {
		msg, err := receive(conn, phase)
		if err != nil {
			return stats, err
		}
		switch m := msg.(type) {
		case EventRecord:
			gotEvents++
			if err := stats.MergeEvent(ctx, sink, m.Event); err != nil {
				return stats, err
			}
		case RateRecord:
			gotRates++
			if err := stats.MergeRate(ctx, sink, m.RateFact); err != nil {
				return stats, err
			}
		case ErrorMessage:
			return stats, peerError(m)
		default:
			if msg.Type() != end {
				return stats, ledger.NewProtocolError(phase,
					fmt.Sprintf("unexpected %s during %s", msg.Type(), phase), nil)
			}
			if gotEvents != wantEvents || gotRates != wantRates {
				return stats, ledger.NewProtocolError(phase, fmt.Sprintf(
					"%s announced %d events and %d rates but sent %d and %d",
					phase, wantEvents, wantRates, gotEvents, gotRates), nil)
			}
			return stats, nil
		}
	}
}

func receive(conn *Conn, phase string) (Message, error) {
	msg, err := conn.Receive()
	if errors.Is(err, io.EOF) {
		return nil, ledger.NewProtocolError(phase, "connection closed by peer", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", phase, err)
	}
	return msg, nil
}

// peerError turns an error record from the other side into a local error.
// The message is kept verbatim.
func peerError(m ErrorMessage) error {
	if m.Code == CodeRejected {
		return ledger.NewRejectedError("", m.Message)
	}
	return ledger.NewProtocolError("", m.Message, nil)
}

func phaseName(begin MessageType) string {
	if begin == TypePullBegin {
		return "pull"
	}
	return "push"
}
