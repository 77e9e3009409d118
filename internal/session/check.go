package session

import (
	"context"
	"log"

	"github.com/sweeney/gb-reaction/internal/pulse"
)

// DefaultChecks is the number of values each link check exchanges.
const DefaultChecks = 11

// CheckReport summarises a link check.
type CheckReport struct {
	Total  int
	Passed int
}

// OK reports whether every exchange passed.
func (r CheckReport) OK() bool {
	return r.Total > 0 && r.Passed == r.Total
}

// ReceiveCheck expects the host to send the bytes 0..n-1 in order and answers
// each with a short pulse when it matched and a long pulse when it did not.
// A failed receive counts as a mismatch; only ctx ends the check early.
func ReceiveCheck(ctx context.Context, link *pulse.Link, n int) (CheckReport, error) {
	report := CheckReport{Total: n}
	for i := 0; i < n; i++ {
		b, err := link.ReceiveByte(ctx)
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if err != nil {
			log.Printf("receive check %d: %v", i, err)
		}
		if err == nil && int(b) == i {
			log.Printf("receive check %d: passed", i)
			report.Passed++
			err = link.SendHighBit()
		} else {
			log.Printf("receive check %d: FAILED (got %d)", i, b)
			err = link.SendLowBit()
		}
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// SendCheck sends the integers 0..n-1 and expects the host to answer each
// with the byte 1.
func SendCheck(ctx context.Context, link *pulse.Link, n int) (CheckReport, error) {
	report := CheckReport{Total: n}
	for i := 0; i < n; i++ {
		if err := link.SendInteger(uint32(i)); err != nil {
			return report, err
		}
		b, err := link.ReceiveByte(ctx)
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if err == nil && b == 1 {
			log.Printf("send check %d: passed", i)
			report.Passed++
		} else {
			log.Printf("send check %d: FAILED (got %d, err %v)", i, b, err)
		}
	}
	return report, nil
}
