// Package httpreq implements a small incremental HTTP/1.0-or-1.1
// request-line-and-headers scanner. It is the "header parser" collaborator
// referenced by the connection engine: it surfaces only the request path,
// via Path, and reports whether it consumed every byte it was given
// without error — the two facts the engine's parser driver needs to decide
// between serving a resource and answering with 404.
//
// The state machine below follows the same tag-driven style as the
// teacher's pkg/sdo segmented-transfer parsers: a small enum advanced one
// transition at a time, rather than a recursive-descent or callback-chain
// parser.
package httpreq

import "bytes"

type scanState uint8

const (
	stateRequestLine scanState = iota
	stateHeaderLine
	stateDone
	stateError
)

// Parser incrementally scans request bytes. It is not safe for concurrent
// use; each connection owns exactly one Parser for its lifetime.
type Parser struct {
	state   scanState
	buf     []byte
	path    string
	havePath bool
}

// New returns a fresh parser ready to scan a new request.
func New() *Parser {
	return &Parser{state: stateRequestLine}
}

// Reset returns the parser to its initial state so it can be reused for the
// next connection without allocating.
func (p *Parser) Reset() {
	p.state = stateRequestLine
	p.buf = p.buf[:0]
	p.path = ""
	p.havePath = false
}

// Path returns the request path captured from the request line, if any.
func (p *Parser) Path() (string, bool) {
	return p.path, p.havePath
}

// Done reports whether the terminating blank line has been scanned.
func (p *Parser) Done() bool {
	return p.state == stateDone
}

// Feed appends chunk to the parser's internal buffer and advances the scan
// as far as possible. It returns the number of bytes of chunk consumed
// (len(chunk), including on the call that finds a malformed request line
// or header; 0 once the parser is already Done or has already failed),
// whether the request is now fully parsed (Done), and an error describing
// a malformed request.
//
// Feed may be called repeatedly with arbitrarily small chunks, including a
// single byte at a time; it only requires that each call's bytes are the
// next bytes in the stream.
func (p *Parser) Feed(chunk []byte) (consumed int, done bool, err error) {
	if p.state == stateDone || p.state == stateError {
		return 0, p.state == stateDone, nil
	}

	p.buf = append(p.buf, chunk...)
	consumed = len(chunk)

	for {
		switch p.state {
		case stateRequestLine:
			line, rest, ok := cutCRLF(p.buf)
			if !ok {
				return consumed, false, nil
			}
			path, perr := parseRequestLine(line)
			if perr != nil {
				p.state = stateError
				return consumed, false, perr
			}
			p.path = path
			p.havePath = true
			p.buf = rest
			p.state = stateHeaderLine

		case stateHeaderLine:
			line, rest, ok := cutCRLF(p.buf)
			if !ok {
				return consumed, false, nil
			}
			p.buf = rest
			if len(line) == 0 {
				p.state = stateDone
				return consumed, true, nil
			}
			if !looksLikeHeaderField(line) {
				p.state = stateError
				return consumed, false, ErrMalformedHeader
			}
			// Header accepted; loop to scan the next line.

		default:
			return consumed, p.state == stateDone, nil
		}
	}
}

// cutCRLF splits buf at the first "\r\n", returning the line before it
// (without the terminator), the remainder, and whether a terminator was
// found at all.
func cutCRLF(buf []byte) (line, rest []byte, ok bool) {
	idx := bytes.Index(buf, []byte("\r\n"))
	if idx < 0 {
		return nil, buf, false
	}
	return buf[:idx], buf[idx+2:], true
}

func looksLikeHeaderField(line []byte) bool {
	colon := bytes.IndexByte(line, ':')
	return colon > 0
}
