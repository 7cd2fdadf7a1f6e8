package command

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
)

// DefaultQueueSize bounds the number of commands waiting for dispatch.
const DefaultQueueSize = 128

// MaxLineSize is the longest input line accepted. Longer lines are
// discarded and reading continues with the next line.
const MaxLineSize = 64 * 1024

// Tokenize splits one command into trimmed tokens. A leading '>' and a
// trailing ';' are dropped, as are trailing empty tokens, so "1,7,enable,;"
// yields [1 7 enable].
func Tokenize(cmd string) []string {
	cmd = strings.TrimSpace(cmd)
	cmd = strings.TrimPrefix(cmd, ">")
	cmd = strings.TrimSuffix(cmd, ";")
	if strings.TrimSpace(cmd) == "" {
		return nil
	}

	tokens := strings.Split(cmd, ",")
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}
	for len(tokens) > 0 && tokens[len(tokens)-1] == "" {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// Source buffers command lines read from an input stream and hands them to
// the control loop one at a time.
//
// Lines are read on a helper goroutine; Read moves whatever has arrived
// into the queue without blocking. Only lines addressed to the configured
// session id are queued.
type Source struct {
	session string
	lines   chan string
	queue   [][]string
	max     int
	eof     bool
	err     error
	errc    chan error
	logger  *slog.Logger

	dropped uint64
	tooLong atomic.Uint64
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) SourceOption {
	return func(s *Source) {
		if n > 0 {
			s.max = n
		}
	}
}

// WithLogger sets the logger used for dropped lines.
func WithLogger(l *slog.Logger) SourceOption {
	return func(s *Source) {
		s.logger = l
	}
}

// NewSource starts reading lines from r. Commands whose session token does
// not equal session are ignored.
func NewSource(r io.Reader, session uint16, opts ...SourceOption) *Source {
	s := &Source{
		session: strconv.FormatUint(uint64(session), 10),
		lines:   make(chan string, DefaultQueueSize),
		errc:    make(chan error, 1),
		max:     DefaultQueueSize,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.readLoop(r)
	return s
}

func (s *Source) readLoop(r io.Reader) {
	br := bufio.NewReaderSize(r, MaxLineSize)
	for {
		line, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			err = s.skipLine(br)
			line = nil
		}
		if len(line) > 0 {
			s.lines <- strings.TrimSuffix(string(line), "\n")
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			s.errc <- err
			close(s.lines)
			return
		}
	}
}

// skipLine discards the rest of an oversized line.
func (s *Source) skipLine(br *bufio.Reader) error {
	n := s.tooLong.Add(1)
	s.logger.Warn("input line too long, discarding", "max", MaxLineSize, "discarded", n)
	for {
		_, err := br.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

// Read pulls every line that has arrived so far into the queue and returns
// the number of commands queued. It never blocks.
func (s *Source) Read() int {
	queued := 0
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				s.eof = true
				s.err = <-s.errc
				s.lines = nil
				return queued
			}
			queued += s.accept(line)
		default:
			return queued
		}
	}
}

// accept splits a line into commands and queues the ones addressed to us.
func (s *Source) accept(line string) int {
	n := 0
	for _, cmd := range strings.Split(line, ";") {
		tokens := Tokenize(cmd)
		if len(tokens) == 0 {
			continue
		}
		if len(tokens) < 2 || !s.addressed(tokens[1]) {
			s.logger.Debug("ignoring command for another session", "command", cmd)
			continue
		}
		if len(s.queue) >= s.max {
			s.dropped++
			s.logger.Warn("command queue full, dropping command", "command", cmd, "dropped", s.dropped)
			continue
		}
		s.queue = append(s.queue, tokens)
		n++
	}
	return n
}

func (s *Source) addressed(tok string) bool {
	if tok == s.session {
		return true
	}
	v, err := strconv.ParseUint(tok, 10, 16)
	return err == nil && strconv.FormatUint(v, 10) == s.session
}

// Empty reports whether no command is waiting.
func (s *Source) Empty() bool {
	return len(s.queue) == 0
}

// Len returns the number of queued commands.
func (s *Source) Len() int {
	return len(s.queue)
}

// Next dequeues the oldest command.
func (s *Source) Next() ([]string, bool) {
	if len(s.queue) == 0 {
		return nil, false
	}
	tokens := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return tokens, true
}

// EOF reports whether the input stream has ended.
func (s *Source) EOF() bool {
	return s.eof
}

// Done reports whether the input has ended and every queued command has
// been taken.
func (s *Source) Done() bool {
	return s.eof && len(s.queue) == 0
}

// Err returns the read error that ended the stream, if any.
func (s *Source) Err() error {
	return s.err
}

// Dropped returns the number of commands dropped because the queue was
// full, plus input lines discarded for exceeding MaxLineSize.
func (s *Source) Dropped() uint64 {
	return s.dropped + s.tooLong.Load()
}
