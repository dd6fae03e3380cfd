package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/seedloop/internal/corpus"
	"github.com/ppiankov/seedloop/internal/knowledge"
	"github.com/ppiankov/seedloop/internal/model"
)

// reply is what the human answered to one question
type reply int

const (
	replyYes     reply = iota // Evidence states the fact
	replyNo                   // Evidence does not state the fact
	replySkip                 // No opinion, ask again later
	replyProcess              // Stop asking and run a round now
	replyQuit                 // Stop the session
)

func parseReply(line string) (reply, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return replyYes, true
	case "n", "no":
		return replyNo, true
	case "s", "skip", "":
		return replySkip, true
	case "r", "run":
		return replyProcess, true
	case "q", "quit", "exit":
		return replyQuit, true
	}
	return 0, false
}

// prompter asks questions on out and reads replies from in
type prompter struct {
	in       *bufio.Scanner
	out      io.Writer
	segments corpus.SegmentLookup
}

func newPrompter(in io.Reader, out io.Writer, segments corpus.SegmentLookup) *prompter {
	return &prompter{in: bufio.NewScanner(in), out: out, segments: segments}
}

// ask shows question n of total and returns the reply. End of input reads
// as quit.
func (p *prompter) ask(ctx context.Context, n, total int, q knowledge.Item) (reply, error) {
	text, err := p.describe(ctx, q.Evidence)
	if err != nil {
		return replyQuit, err
	}

	fmt.Fprintf(p.out, "\n[%d/%d] %s  (score %.2f)\n", n, total, q.Evidence.Fact, q.Score.Value())
	fmt.Fprintf(p.out, "    %s\n", text)

	for {
		fmt.Fprint(p.out, "Does the text state this fact? [y]es [n]o [s]kip [r]un round [q]uit: ")
		if !p.in.Scan() {
			fmt.Fprintln(p.out)
			return replyQuit, errors.Wrap(p.in.Err(), "read reply")
		}
		if r, ok := parseReply(p.in.Text()); ok {
			return r, nil
		}
		fmt.Fprintln(p.out, "Please answer y, n, s, r or q.")
	}
}

// describe renders the segment text with both occurrences bracketed
func (p *prompter) describe(ctx context.Context, e model.Evidence) (string, error) {
	if !e.Grounded() || p.segments == nil {
		return "(no text)", nil
	}
	seg, err := p.segments.Segment(ctx, e.Segment)
	if err != nil {
		if errors.Is(err, corpus.ErrSegmentNotFound) {
			return "(segment missing from corpus)", nil
		}
		return "", err
	}
	return highlight(seg, e.O1, e.O2), nil
}

func highlight(seg *corpus.Segment, o1, o2 int) string {
	tokens := append([]string(nil), seg.Tokens...)
	for _, i := range []int{o1, o2} {
		if i < 0 || i >= len(seg.Occurrences) {
			continue
		}
		o := seg.Occurrences[i]
		if o.Start >= o.End || o.End > len(tokens) {
			continue
		}
		tokens[o.Start] = "[" + tokens[o.Start]
		tokens[o.End-1] += "]"
	}
	return strings.Join(tokens, " ")
}
