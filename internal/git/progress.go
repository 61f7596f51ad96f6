package git

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
)

// RemoteStats are the transfer statistics of one remote's fetch.
type RemoteStats struct {
	Remote          string `json:"remote"`
	ReceivedObjects int    `json:"received_objects"`
	TotalObjects    int    `json:"total_objects"`
	IndexedDeltas   int    `json:"indexed_deltas"`
	TotalDeltas     int    `json:"total_deltas"`
	LocalObjects    int    `json:"local_objects"`
	ReceivedBytes   uint64 `json:"received_bytes"`
	Err             error  `json:"-"`
}

// ProgressParser is an io.Writer that forwards git's progress output and
// extracts transfer statistics from it. Progress lines end in \r or \n.
type ProgressParser struct {
	out     io.Writer
	mu      sync.Mutex
	partial []byte
	stats   RemoteStats
}

var progressPatterns = struct {
	objects, deltas, local, total *regexp.Regexp
}{
	// Receiving objects: 100% (152/152), 5.51 KiB | 5.51 MiB/s, done.
	// Unpacking objects: 100% (3/3), 290 bytes | 290.00 KiB/s, done.
	objects: regexp.MustCompile(`(?:Receiving|Unpacking) objects:\s+\d+% \((\d+)/(\d+)\)(?:, ([\d.]+ [A-Za-z]+))?`),

	// Resolving deltas: 100% (1/1), completed with 1 local object.
	deltas: regexp.MustCompile(`Resolving deltas:\s+\d+% \((\d+)/(\d+)\)`),
	local:  regexp.MustCompile(`completed with (\d+) local objects?`),

	// remote: Total 3 (delta 1), reused 0 (delta 0), pack-reused 0
	total: regexp.MustCompile(`Total (\d+) \(delta \d+\)`),
}

// NewProgressParser creates a parser that copies everything it receives to out.
func NewProgressParser(out io.Writer) *ProgressParser {
	if out == nil {
		out = io.Discard
	}
	return &ProgressParser{out: out}
}

// Write implements io.Writer.
func (p *ProgressParser) Write(data []byte) (int, error) {
	n, err := p.out.Write(data)
	if err != nil {
		return n, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.partial = append(p.partial, data...)
	for {
		i := bytes.IndexAny(p.partial, "\r\n")
		if i < 0 {
			break
		}
		p.parseLine(string(p.partial[:i]))
		p.partial = p.partial[i+1:]
	}

	return len(data), nil
}

// Stats returns the statistics seen so far, including any unterminated last line.
func (p *ProgressParser) Stats() RemoteStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.partial) > 0 {
		p.parseLine(string(p.partial))
		p.partial = nil
	}
	return p.stats
}

func (p *ProgressParser) parseLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if m := progressPatterns.objects.FindStringSubmatch(line); m != nil {
		p.stats.ReceivedObjects = atoi(m[1])
		p.stats.TotalObjects = atoi(m[2])
		if m[3] != "" {
			if size, err := parseSize(m[3]); err == nil {
				p.stats.ReceivedBytes = size
			}
		}
	}

	if m := progressPatterns.deltas.FindStringSubmatch(line); m != nil {
		p.stats.IndexedDeltas = atoi(m[1])
		p.stats.TotalDeltas = atoi(m[2])
	}

	if m := progressPatterns.local.FindStringSubmatch(line); m != nil {
		p.stats.LocalObjects = atoi(m[1])
	}

	if m := progressPatterns.total.FindStringSubmatch(line); m != nil && p.stats.TotalObjects == 0 {
		p.stats.TotalObjects = atoi(m[1])
	}
}

// parseSize parses git's human sizes such as "290 bytes" or "5.51 KiB".
func parseSize(s string) (uint64, error) {
	s = strings.Replace(s, "bytes", "B", 1)
	s = strings.Replace(s, "byte", "B", 1)
	return humanize.ParseBytes(s)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
