package chat

import (
	"bufio"
	"bytes"
	"io"
)

// ServerSentEventsReader incrementally decodes an SSE byte stream into raw
// record payloads. A record ends at a blank line; the record's "data:" line
// is trimmed and yielded as-is. Records with no data line ("event:" lines,
// comments) yield nothing and are not an error. One reader is bound to one
// stream's lifetime.
type ServerSentEventsReader struct {
	body   io.ReadCloser
	reader *bufio.Reader
	err    error
}

func NewServerSentEventsReader(stream io.ReadCloser) *ServerSentEventsReader {
	return &ServerSentEventsReader{
		body:   stream,
		reader: bufio.NewReader(stream),
	}
}

// Err returns the error that ended the stream, if any. A clean EOF is not an
// error.
func (s *ServerSentEventsReader) Err() error {
	return s.err
}

// Close closes the underlying stream body.
func (s *ServerSentEventsReader) Close() error {
	return s.body.Close()
}

// Next returns the data payload of the next complete record. It returns
// ok=false when the stream ends or fails; partial-record text is never
// yielded, except that a record terminated by stream close rather than a
// blank line still counts as complete.
func (s *ServerSentEventsReader) Next() (string, bool) {
	var data []byte
	haveData := false
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				s.err = err
				return "", false
			}
			// Stream closed. Flush a trailing record if one was buffered.
			if rest := bytes.TrimSpace(line); len(rest) > 0 {
				if payload, ok := dataLine(rest); ok && !haveData {
					data, haveData = payload, true
				}
			}
			if haveData {
				return string(data), true
			}
			return "", false
		}

		trimmed := bytes.TrimSpace(line)

		// Blank line: record boundary.
		if len(trimmed) == 0 {
			if haveData {
				return string(data), true
			}
			// Record had no data line; move on to the next record.
			continue
		}

		if payload, ok := dataLine(trimmed); ok && !haveData {
			data, haveData = payload, true
		}
	}
}

// dataLine extracts the payload of a "data:" line.
func dataLine(line []byte) ([]byte, bool) {
	if !bytes.HasPrefix(line, []byte("data:")) {
		return nil, false
	}
	return bytes.TrimSpace(line[len("data:"):]), true
}
