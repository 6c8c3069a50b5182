// Package lansync replicates a ledger between two devices over TCP.
//
// A session is a line-oriented exchange of JSON records, each tagged by a
// "type" field:
//
//	initiator                      responder
//	hello            ------------>
//	                 <------------  hello_ack | error
//	push_begin, event*, rate*, push_end  ---->
//	                 <------------  pull_begin, event*, rate*, pull_end
//	                 <------------  summary
//
// Push always completes before pull begins, so neither side needs to read
// and write concurrently. Every record is merged idempotently, which makes
// repeated or overlapping sessions safe.
//
// Expose runs the responder side together with a discovery responder and
// serves one session at a time.
package lansync
