// Package snapshot converts a device's full event set and rate set to and
// from line-delimited JSON records, and merges decoded records into a
// store.
//
// One record per line:
//
//	events.jsonl: {"id":"<uuid>","payload":{...}}
//	rates.jsonl:  {"provider":"bcv","base":"USD","quote":"VES","as_of":"...","rate":"45.2"}
//
// Both the folder transport and the LAN transport use these records, so a
// payload written by one path is byte-compatible with the other. Event
// metadata is carried as raw JSON and survives decoding unchanged.
package snapshot
