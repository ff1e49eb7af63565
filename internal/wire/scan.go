package wire

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

var errUnexpectedBreak = errors.New("unexpected break")

// itemScanner cuts complete CBOR data items out of a stream without
// decoding them. It reads only the bytes of the item it returns, so the
// input is never consumed past the current record.
type itemScanner struct {
	br  *bufio.Reader
	buf bytes.Buffer
}

func newItemScanner(r io.Reader) *itemScanner {
	return &itemScanner{br: bufio.NewReader(r)}
}

// peekHead parses the next head without consuming it.
func (s *itemScanner) peekHead() (head, error) {
	p, rerr := s.br.Peek(9)
	h, err := readHead(p)
	if err != nil {
		if rerr != nil && rerr != io.EOF {
			return head{}, rerr
		}
		return head{}, err
	}
	return h, nil
}

// atBreak reports whether the next byte is a break stop code.
func (s *itemScanner) atBreak() (bool, error) {
	p, err := s.br.Peek(1)
	if len(p) == 0 {
		if err == io.EOF {
			return false, io.ErrUnexpectedEOF
		}
		return false, err
	}
	return p[0] == breakByte, nil
}

func (s *itemScanner) skip(n int) {
	_, _ = s.br.Discard(n)
}

// drain discards the rest of the input and reports its length.
func (s *itemScanner) drain() (int64, error) {
	return io.Copy(io.Discard, s.br)
}

// item returns the raw bytes of the next complete data item.
func (s *itemScanner) item() ([]byte, error) {
	s.buf.Reset()
	if err := s.scan(0); err != nil {
		return nil, err
	}
	return bytes.Clone(s.buf.Bytes()), nil
}

// take moves the next n bytes of input into the item buffer.
func (s *itemScanner) take(n uint64) error {
	if n > uint64(maxArrayElements) {
		return fmt.Errorf("length %d exceeds limit", n)
	}
	m, err := io.CopyN(&s.buf, s.br, int64(n))
	if m < int64(n) && err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (s *itemScanner) scan(depth int) error {
	if depth > maxNestedLevels {
		return fmt.Errorf("exceeded max nested level %d", maxNestedLevels)
	}
	h, err := s.peekHead()
	if err != nil {
		return err
	}
	if err := s.take(uint64(h.size)); err != nil {
		return err
	}

	switch h.major {
	case majorUint, majorNegInt:
		return nil

	case majorSimple:
		if h.indefinite {
			return errUnexpectedBreak
		}
		return nil

	case majorBytes, majorText:
		if !h.indefinite {
			return s.take(h.arg)
		}
		for {
			brk, err := s.atBreak()
			if err != nil {
				return err
			}
			if brk {
				return s.take(1)
			}
			ch, err := s.peekHead()
			if err != nil {
				return err
			}
			if ch.major != h.major || ch.indefinite {
				return fmt.Errorf("invalid chunk in indefinite-length string")
			}
			if err := s.take(uint64(ch.size)); err != nil {
				return err
			}
			if err := s.take(ch.arg); err != nil {
				return err
			}
		}

	case majorArray, majorMap:
		per := 1
		if h.major == majorMap {
			per = 2
		}
		if h.indefinite {
			for {
				brk, err := s.atBreak()
				if err != nil {
					return err
				}
				if brk {
					return s.take(1)
				}
				for i := 0; i < per; i++ {
					if err := s.scan(depth + 1); err != nil {
						return err
					}
				}
			}
		}
		if h.arg > uint64(maxArrayElements) {
			return fmt.Errorf("container length %d exceeds limit", h.arg)
		}
		for i := uint64(0); i < h.arg*uint64(per); i++ {
			if err := s.scan(depth + 1); err != nil {
				return err
			}
		}
		return nil

	default: // majorTag
		return s.scan(depth + 1)
	}
}

// countTag counts the occurrences of tag n in the well-formed item at the
// start of data, in encoding order.
func countTag(data []byte, n uint64) (int, error) {
	count := 0
	_, err := walkItem(data, func(h head) {
		if h.major == majorTag && h.arg == n {
			count++
		}
	})
	return count, err
}

// walkItem calls visit for every head of the item at the start of data and
// returns the bytes after it.
func walkItem(data []byte, visit func(head)) ([]byte, error) {
	h, err := readHead(data)
	if err != nil {
		return nil, err
	}
	visit(h)
	data = data[h.size:]

	switch h.major {
	case majorBytes, majorText:
		if h.indefinite {
			return walkUntilBreak(data, 1, visit)
		}
		if h.arg > uint64(len(data)) {
			return nil, io.ErrUnexpectedEOF
		}
		return data[h.arg:], nil
	case majorArray, majorMap:
		per := 1
		if h.major == majorMap {
			per = 2
		}
		if h.indefinite {
			return walkUntilBreak(data, per, visit)
		}
		for i := uint64(0); i < h.arg*uint64(per); i++ {
			if data, err = walkItem(data, visit); err != nil {
				return nil, err
			}
		}
		return data, nil
	case majorTag:
		return walkItem(data, visit)
	default:
		return data, nil
	}
}

func walkUntilBreak(data []byte, per int, visit func(head)) ([]byte, error) {
	var err error
	for {
		if len(data) == 0 {
			return nil, io.ErrUnexpectedEOF
		}
		if data[0] == breakByte {
			return data[1:], nil
		}
		for i := 0; i < per; i++ {
			if data, err = walkItem(data, visit); err != nil {
				return nil, err
			}
		}
	}
}
